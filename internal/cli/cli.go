// Package cli implements the ducats command-line front end as a set of
// subcommands operating on the local ledger database.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/mmynk/ducats/internal/app"
	"github.com/mmynk/ducats/internal/config"
)

// Env is the state shared by every command of one invocation.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer

	app *app.App
}

// NewEnv creates an Env writing to the process's standard streams.
func NewEnv(cfg *config.Config, logger *slog.Logger) *Env {
	return &Env{Config: cfg, Logger: logger, Stdout: os.Stdout, Stderr: os.Stderr}
}

// App opens the ledger on first use.
func (e *Env) App() (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := app.New(e.Config, e.Logger)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

// Close releases the ledger if it was opened.
func (e *Env) Close() error {
	if e.app == nil {
		return nil
	}
	err := e.app.Close()
	e.app = nil
	return err
}

// Register adds every command to c.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&addProjectCmd{env: env}, "projects")
	c.Register(&projectsCmd{env: env}, "projects")
	c.Register(&completeCmd{env: env}, "projects")
	c.Register(&deleteProjectCmd{env: env}, "projects")

	c.Register(&addExpenseCmd{env: env}, "expenses")
	c.Register(&editExpenseCmd{env: env}, "expenses")
	c.Register(&deleteExpenseCmd{env: env}, "expenses")
	c.Register(&ledgerCmd{env: env}, "expenses")

	c.Register(&exportCmd{env: env}, "export")
	c.Register(&issueTokenCmd{env: env}, "server")
}

// failf prints an error and returns ExitFailure.
func (e *Env) failf(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// usagef prints a usage error and returns ExitUsageError.
func (e *Env) usagef(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// run opens the app, calls fn and closes the app again.
func (e *Env) run(ctx context.Context, fn func(ctx context.Context, a *app.App) error) subcommands.ExitStatus {
	a, err := e.App()
	if err != nil {
		return e.failf("%v", err)
	}
	defer e.Close()

	if err := fn(ctx, a); err != nil {
		return e.failf("%v", err)
	}
	return subcommands.ExitSuccess
}

// formatMoney renders amount in currency using the currency's symbol and
// fraction digits.
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

var dateLayouts = []string{"2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02"}

// parseDate reads a date flag in loc. An empty value is the zero time.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD [HH:MM:SS]", s)
}
