// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/ducats/internal/models"
)

// Store defines the Entity Store: projects, their expenses and the ownership
// edge between them. It carries no business logic. Missing records are
// reported with apperrors.ErrNotFound.
//
// This abstraction allows swapping storage backends without changing the
// ledger engine.
type Store interface {
	// CreateProject persists a new project.
	// The ID and CreatedAt fields are populated by the store when empty.
	CreateProject(ctx context.Context, project *models.Project) error

	// GetProject retrieves a project and its expenses in ledger order.
	GetProject(ctx context.Context, projectID string) (*models.Project, error)

	// ListProjects returns projects ordered by creation time, each with its
	// ledger.
	ListProjects(ctx context.Context, filter models.ProjectFilter) ([]*models.Project, error)

	// UpdateProject replaces the mutable fields (name, details, completed).
	UpdateProject(ctx context.Context, project *models.Project) error

	// DeleteProject removes a project and every expense it owns.
	DeleteProject(ctx context.Context, projectID string) error

	// CreateExpense appends an expense to the ledger of expense.ProjectID.
	// The ID field is populated by the store when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense by ID.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns a project's expenses in ledger order: by date,
	// with insertion order breaking ties.
	ListExpenses(ctx context.Context, projectID string) ([]models.Expense, error)

	// UpdateExpense replaces every field of an expense owned by expense.ProjectID.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense. It fails with NotFound when the
	// expense does not exist or is not owned by projectID.
	DeleteExpense(ctx context.Context, projectID, expenseID string) error

	// Close releases any resources held by the store.
	Close() error
}
