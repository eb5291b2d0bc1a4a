package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/mmynk/ducats/internal/app"
	"github.com/mmynk/ducats/internal/ledger"
	"github.com/mmynk/ducats/internal/view"
)

// expenseFlags are the draft fields shared by add-expense and edit-expense.
type expenseFlags struct {
	amount  string
	date    string
	desc    string
	where   string
	what    string
	receipt string
}

func (e *expenseFlags) register(f *flag.FlagSet) {
	f.StringVar(&e.amount, "amount", "", "Amount, e.g. 12.50")
	f.StringVar(&e.date, "date", "", "Date as YYYY-MM-DD [HH:MM:SS]; defaults to now")
	f.StringVar(&e.desc, "desc", "", "Description")
	f.StringVar(&e.where, "where", "", "Where the purchase was made")
	f.StringVar(&e.what, "what", "", "What was purchased")
	f.StringVar(&e.receipt, "receipt", "", "Path to a receipt image to attach")
}

// apply copies the flags that were set on the command line into d. The -date
// value must already be parsed.
func (e *expenseFlags) apply(f *flag.FlagSet, d *ledger.Draft, date time.Time) {
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "amount":
			d.Amount = e.amount
		case "desc":
			d.Description = e.desc
		case "where":
			d.WhereMade = e.where
		case "what":
			d.WhatPurchased = e.what
		case "date":
			d.Date = date
		}
	})
}

// loadReceipt attaches the -receipt file to d, waiting for the load to finish.
func (e *expenseFlags) loadReceipt(ctx context.Context, d *ledger.Draft, a *app.App) error {
	if e.receipt == "" {
		return nil
	}
	res := <-a.Loader.Load(ctx, e.receipt, d)
	if res.Err != nil {
		return fmt.Errorf("failed to load receipt: %w", res.Err)
	}
	return nil
}

type addExpenseCmd struct {
	env     *Env
	project string
	expenseFlags
}

func (*addExpenseCmd) Name() string     { return "add-expense" }
func (*addExpenseCmd) Synopsis() string { return "record an expense in a project" }
func (*addExpenseCmd) Usage() string {
	return `add-expense -project <id> -amount <amount> [-date <date>] [-desc <text>] [-where <text>] [-what <text>] [-receipt <path>]

  Adds an expense to the project's ledger. The amount must be a plain decimal
  number; the date defaults to the current time.
`
}

func (c *addExpenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project id (required)")
	c.register(f)
}

func (c *addExpenseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.project == "" {
		return c.env.usagef("-project is required")
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		date, err := parseDate(c.date, a.Config.Location())
		if err != nil {
			return err
		}
		draft := ledger.NewDraft()
		c.apply(f, draft, date)
		if err := c.loadReceipt(ctx, draft, a); err != nil {
			return err
		}
		expense, err := a.Engine.AddExpense(ctx, c.project, draft)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "Added expense %s: %s\n", expense.ID, formatMoney(expense.Amount, a.Config.Currency))
		return nil
	})
}

type editExpenseCmd struct {
	env          *Env
	project      string
	expense      string
	clearReceipt bool
	expenseFlags
}

func (*editExpenseCmd) Name() string     { return "edit-expense" }
func (*editExpenseCmd) Synopsis() string { return "change an existing expense" }
func (*editExpenseCmd) Usage() string {
	return `edit-expense -project <id> -expense <id> [-amount <amount>] [-date <date>] [-desc <text>] [-where <text>] [-what <text>] [-receipt <path> | -clear-receipt]

  Replaces the fields given on the command line and keeps the others.
`
}

func (c *editExpenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project id (required)")
	f.StringVar(&c.expense, "expense", "", "Expense id (required)")
	f.BoolVar(&c.clearReceipt, "clear-receipt", false, "Remove the attached receipt image")
	c.register(f)
}

func (c *editExpenseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.project == "" || c.expense == "" {
		return c.env.usagef("-project and -expense are required")
	}
	if c.clearReceipt && c.receipt != "" {
		return c.env.usagef("-receipt and -clear-receipt are mutually exclusive")
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		date, err := parseDate(c.date, a.Config.Location())
		if err != nil {
			return err
		}

		// The receipt is read before the edit so the file I/O happens
		// outside the engine's lock.
		var receipt []byte
		if c.receipt != "" {
			scratch := ledger.NewDraft()
			if err := c.loadReceipt(ctx, scratch, a); err != nil {
				return err
			}
			receipt = scratch.ReceiptImage()
		}

		expense, err := a.Engine.EditExpense(ctx, c.project, c.expense, func(d *ledger.Draft) {
			c.apply(f, d, date)
			switch {
			case receipt != nil:
				d.SetReceiptImage(receipt)
			case c.clearReceipt:
				d.ClearReceiptImage()
			}
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "Updated expense %s: %s\n", expense.ID, formatMoney(expense.Amount, a.Config.Currency))
		return nil
	})
}

type deleteExpenseCmd struct {
	env     *Env
	project string
	expense string
}

func (*deleteExpenseCmd) Name() string     { return "delete-expense" }
func (*deleteExpenseCmd) Synopsis() string { return "remove an expense from a project" }
func (*deleteExpenseCmd) Usage() string {
	return `delete-expense -project <id> -expense <id>
`
}

func (c *deleteExpenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project id (required)")
	f.StringVar(&c.expense, "expense", "", "Expense id (required)")
}

func (c *deleteExpenseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.project == "" || c.expense == "" {
		return c.env.usagef("-project and -expense are required")
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		if err := a.Engine.DeleteExpense(ctx, c.project, c.expense); err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "Deleted expense %s\n", c.expense)
		return nil
	})
}

type ledgerCmd struct {
	env     *Env
	project string
	filter  string
	order   string
}

func (*ledgerCmd) Name() string     { return "ledger" }
func (*ledgerCmd) Synopsis() string { return "show a project's expenses" }
func (*ledgerCmd) Usage() string {
	return `ledger -project <id> [-filter <text>] [-order dateDesc|dateAsc|amountDesc|amountAsc]

  Prints the expenses whose description contains the filter text, sorted by
  the given order. The total always covers the whole ledger.
`
}

func (c *ledgerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project id (required)")
	f.StringVar(&c.filter, "filter", "", "Only show expenses whose description contains this text")
	f.StringVar(&c.order, "order", string(view.DefaultSortOrder), "Sort order")
}

func (c *ledgerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.project == "" {
		return c.env.usagef("-project is required")
	}
	order, err := view.ParseSortOrder(c.order)
	if err != nil {
		return c.env.usagef("%v", err)
	}

	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		project, l, err := a.Engine.Ledger(ctx, c.project, c.filter, order)
		if err != nil {
			return err
		}
		cur := a.Config.Currency
		loc := a.Config.Location()

		fmt.Fprintf(c.env.Stdout, "%s\n\n", project.Name)
		w := tabwriter.NewWriter(c.env.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tDESCRIPTION\tWHERE\tWHAT\tRECEIPT")
		for _, e := range l.Entries {
			receipt := ""
			if e.HasReceipt() {
				receipt = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.Date.In(loc).Format("2006-01-02 15:04"), formatMoney(e.Amount, cur),
				e.Description, e.WhereMade, e.WhatPurchased, receipt)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "\nTotal: %s (%d expenses)\n", formatMoney(l.Total, cur), l.Count)
		return nil
	})
}
