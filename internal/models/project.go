package models

import (
	"fmt"
	"time"
)

// DefaultProjectName is used when a project is created without a name.
const DefaultProjectName = "New Project"

// Project is a named expense ledger.
type Project struct {
	// ID is the unique identifier for the project (UUID format).
	ID string

	// Name is the display name. It may be empty while the user is editing it.
	Name string

	// Details is free-form text describing the project.
	Details string

	// CreatedAt is set once when the project is created.
	CreatedAt time.Time

	// Completed marks the project as finished. Completed projects are listed
	// separately but remain fully editable and exportable.
	Completed bool

	// Expenses is the ledger, ordered by date with insertion order breaking
	// ties. Exports serialize it in this order.
	Expenses []Expense
}

// ProjectFilter selects which projects a listing returns.
type ProjectFilter string

const (
	AllProjects       ProjectFilter = "all"
	ActiveProjects    ProjectFilter = "active"
	CompletedProjects ProjectFilter = "completed"
)

// ParseProjectFilter validates s. The empty string selects AllProjects.
func ParseProjectFilter(s string) (ProjectFilter, error) {
	switch f := ProjectFilter(s); f {
	case "":
		return AllProjects, nil
	case AllProjects, ActiveProjects, CompletedProjects:
		return f, nil
	default:
		return "", fmt.Errorf("unknown project filter %q", s)
	}
}

// Clone returns a copy of p whose Expenses slice and receipt images do not
// alias p.
func (p *Project) Clone() *Project {
	c := *p
	c.Expenses = make([]Expense, len(p.Expenses))
	for i := range p.Expenses {
		c.Expenses[i] = p.Expenses[i].Clone()
	}
	return &c
}
