package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/mmynk/ducats/internal/app"
	"github.com/mmynk/ducats/internal/models"
	"github.com/mmynk/ducats/internal/view"
)

type addProjectCmd struct {
	env     *Env
	name    string
	details string
}

func (*addProjectCmd) Name() string     { return "add-project" }
func (*addProjectCmd) Synopsis() string { return "create a new project" }
func (*addProjectCmd) Usage() string {
	return `add-project [-name <name>] [-details <text>]

  Creates an empty project and prints its id. Without -name the project is
  called "New Project".
`
}

func (c *addProjectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Project name")
	f.StringVar(&c.details, "details", "", "Free-form project details")
}

func (c *addProjectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		project, err := a.Engine.CreateProject(ctx, c.name, c.details)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "Created project %q (%s)\n", project.Name, project.ID)
		return nil
	})
}

type projectsCmd struct {
	env    *Env
	filter string
}

func (*projectsCmd) Name() string     { return "projects" }
func (*projectsCmd) Synopsis() string { return "list projects with their totals" }
func (*projectsCmd) Usage() string {
	return `projects [-filter all|active|completed]

  Lists projects oldest first with the number of expenses and the ledger total.
`
}

func (c *projectsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.filter, "filter", "all", "Which projects to list: all, active or completed")
}

func (c *projectsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter, err := models.ParseProjectFilter(c.filter)
	if err != nil {
		return c.env.usagef("%v", err)
	}

	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		projects, err := a.Engine.ListProjects(ctx, filter)
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Fprintln(c.env.Stdout, "No projects.")
			return nil
		}

		w := tabwriter.NewWriter(c.env.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tEXPENSES\tTOTAL")
		for _, p := range projects {
			status := "active"
			if p.Completed {
				status = "completed"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				p.ID, p.Name, status, len(p.Expenses),
				formatMoney(view.Total(p.Expenses), a.Config.Currency))
		}
		return w.Flush()
	})
}

type completeCmd struct {
	env     *Env
	project string
	reopen  bool
}

func (*completeCmd) Name() string     { return "complete" }
func (*completeCmd) Synopsis() string { return "mark a project completed or reopen it" }
func (*completeCmd) Usage() string {
	return `complete -project <id> [-reopen]

  Marks the project completed. With -reopen the project becomes active again.
`
}

func (c *completeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project id (required)")
	f.BoolVar(&c.reopen, "reopen", false, "Mark the project active instead")
}

func (c *completeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.project == "" {
		return c.env.usagef("-project is required")
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		project, err := a.Engine.SetCompleted(ctx, c.project, !c.reopen)
		if err != nil {
			return err
		}
		state := "completed"
		if !project.Completed {
			state = "active"
		}
		fmt.Fprintf(c.env.Stdout, "Project %q is now %s\n", project.Name, state)
		return nil
	})
}

type deleteProjectCmd struct {
	env     *Env
	project string
}

func (*deleteProjectCmd) Name() string     { return "delete-project" }
func (*deleteProjectCmd) Synopsis() string { return "delete a project and all of its expenses" }
func (*deleteProjectCmd) Usage() string {
	return `delete-project -project <id>
`
}

func (c *deleteProjectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project id (required)")
}

func (c *deleteProjectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.project == "" {
		return c.env.usagef("-project is required")
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		if err := a.Engine.DeleteProject(ctx, c.project); err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "Deleted project %s\n", c.project)
		return nil
	})
}
