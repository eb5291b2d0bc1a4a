package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/mmynk/ducats/internal/app"
	"github.com/mmynk/ducats/internal/export"
)

type exportCmd struct {
	env     *Env
	project string
	sink    string
	dir     string
	to      string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a project's ledger as CSV" }
func (*exportCmd) Usage() string {
	return `export -project <id> [-sink file|mail] [-dir <directory>] [-to <addr,...>]

  Encodes the ledger as CSV and hands it to a sink:
  - file: writes <project name>.csv into -dir (default EXPORT_DIR).
  - mail: sends the CSV as an attachment to -to (default MAIL_TO) through
    the SMTP server configured with SMTP_HOST and SMTP_FROM.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project id (required)")
	f.StringVar(&c.sink, "sink", "file", "Where to send the export: file or mail")
	f.StringVar(&c.dir, "dir", "", "Directory for the file sink")
	f.StringVar(&c.to, "to", "", "Comma-separated recipients for the mail sink")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.project == "" {
		return c.env.usagef("-project is required")
	}
	if c.sink != "file" && c.sink != "mail" {
		return c.env.usagef("unknown sink %q, expected file or mail", c.sink)
	}
	if c.to != "" {
		c.env.Config.MailTo = splitList(c.to)
	}

	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		sink, err := c.pick(a)
		if err != nil {
			return err
		}
		attempt, err := a.Exports.Start(ctx, c.project, sink)
		if err != nil {
			return err
		}
		res, err := attempt.Wait(ctx)
		if err != nil {
			return err
		}
		if res.State == export.Failed {
			return res.Err
		}
		fmt.Fprintln(c.env.Stdout, res.Message)
		return nil
	})
}

func (c *exportCmd) pick(a *app.App) (export.Sink, error) {
	if c.sink == "mail" {
		if a.Sinks.Mail == nil {
			return nil, errors.New("mail is not configured, set SMTP_HOST and SMTP_FROM")
		}
		return a.Sinks.Mail, nil
	}
	if c.dir != "" {
		return export.NewDirSink(c.dir), nil
	}
	return a.Sinks.File, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
