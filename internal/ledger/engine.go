// Package ledger is the Ledger Engine: it applies every Entity Store mutation
// on one logical sequence, validates drafts, and hands out point-in-time
// snapshots for export.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/metrics"
	"github.com/mmynk/ducats/internal/models"
	"github.com/mmynk/ducats/internal/storage"
	"github.com/mmynk/ducats/internal/view"
)

// Engine serializes all mutations and snapshot reads on a single mutex.
// Reads of the projected ledger share the same lock so a view never observes
// half of a mutation.
type Engine struct {
	mu      sync.Mutex
	store   storage.Store
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for creation timestamps and default
// expense dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics records applied mutations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine over store.
func NewEngine(store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProjectUpdate carries the project fields to change. Nil fields are kept.
type ProjectUpdate struct {
	Name      *string
	Details   *string
	Completed *bool
}

// CreateProject creates a project. An empty name becomes models.DefaultProjectName.
func (e *Engine) CreateProject(ctx context.Context, name, details string) (*models.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if name == "" {
		name = models.DefaultProjectName
	}
	project := &models.Project{
		Name:      name,
		Details:   details,
		CreatedAt: e.now(),
		Expenses:  []models.Expense{},
	}
	if err := e.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	e.metrics.Mutation("create_project")
	e.logger.Info("Project created", "project_id", project.ID, "name", project.Name)
	return project, nil
}

// GetProject returns a project with its full ledger.
func (e *Engine) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.GetProject(ctx, projectID)
}

// ListProjects returns projects matching filter, oldest first.
func (e *Engine) ListProjects(ctx context.Context, filter models.ProjectFilter) ([]*models.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListProjects(ctx, filter)
}

// UpdateProject applies the non-nil fields of update.
func (e *Engine) UpdateProject(ctx context.Context, projectID string, update ProjectUpdate) (*models.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		project.Name = *update.Name
	}
	if update.Details != nil {
		project.Details = *update.Details
	}
	if update.Completed != nil {
		project.Completed = *update.Completed
	}
	if err := e.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}

	e.metrics.Mutation("update_project")
	e.logger.Info("Project updated", "project_id", projectID, "completed", project.Completed)
	return project, nil
}

// SetCompleted marks a project completed or reopens it.
func (e *Engine) SetCompleted(ctx context.Context, projectID string, completed bool) (*models.Project, error) {
	return e.UpdateProject(ctx, projectID, ProjectUpdate{Completed: &completed})
}

// DeleteProject deletes a project and every expense it owns.
func (e *Engine) DeleteProject(ctx context.Context, projectID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	e.metrics.Mutation("delete_project")
	e.logger.Info("Project deleted", "project_id", projectID)
	return nil
}

// AddExpense validates draft and appends the expense to the project's ledger.
// On a validation error nothing is stored and the draft is left intact. On
// success the draft is reset.
func (e *Engine) AddExpense(ctx context.Context, projectID string, draft *Draft) (*models.Expense, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	expense, err := draft.expense(e.now())
	if err != nil {
		e.logger.Debug("Expense draft rejected", "project_id", projectID, "error", err)
		return nil, err
	}
	expense.ProjectID = projectID
	if err := e.store.CreateExpense(ctx, &expense); err != nil {
		return nil, err
	}
	draft.Reset()

	e.metrics.Mutation("add_expense")
	e.logger.Info("Expense added", "project_id", projectID, "expense_id", expense.ID, "amount", expense.Amount.String())
	return &expense, nil
}

// UpdateExpense replaces every field of an expense owned by projectID with
// the draft's values. Validation failures leave the store and the draft as
// they were.
func (e *Engine) UpdateExpense(ctx context.Context, projectID, expenseID string, draft *Draft) (*models.Expense, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateExpense(ctx, projectID, expenseID, draft)
}

// EditExpense seeds a draft from the stored expense, lets edit change it and
// saves the result, all under one hold of the mutation lock. Fields edit does
// not touch, the receipt image included, keep their stored values.
func (e *Engine) EditExpense(ctx context.Context, projectID, expenseID string, edit func(*Draft)) (*models.Expense, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	draft, err := e.loadDraft(ctx, projectID, expenseID)
	if err != nil {
		return nil, err
	}
	if edit != nil {
		edit(draft)
	}
	return e.updateExpense(ctx, projectID, expenseID, draft)
}

func (e *Engine) updateExpense(ctx context.Context, projectID, expenseID string, draft *Draft) (*models.Expense, error) {
	expense, err := draft.expense(e.now())
	if err != nil {
		return nil, err
	}
	expense.ID = expenseID
	expense.ProjectID = projectID
	if err := e.store.UpdateExpense(ctx, &expense); err != nil {
		return nil, err
	}
	draft.Reset()

	e.metrics.Mutation("update_expense")
	e.logger.Info("Expense updated", "project_id", projectID, "expense_id", expenseID)
	return &expense, nil
}

// DeleteExpense deletes an expense by identity. It fails with NotFound when
// the expense is not owned by projectID.
func (e *Engine) DeleteExpense(ctx context.Context, projectID, expenseID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.DeleteExpense(ctx, projectID, expenseID); err != nil {
		return err
	}
	e.metrics.Mutation("delete_expense")
	e.logger.Info("Expense deleted", "project_id", projectID, "expense_id", expenseID)
	return nil
}

// Ledger returns the project's ledger filtered and sorted for display, with
// the total computed over the unfiltered ledger.
func (e *Engine) Ledger(ctx context.Context, projectID, filter string, order view.SortOrder) (*models.Project, view.Ledger, error) {
	project, err := e.Snapshot(ctx, projectID)
	if err != nil {
		return nil, view.Ledger{}, err
	}
	return project, view.Build(project.Expenses, filter, order), nil
}

// Snapshot returns a deep copy of the project and its ledger, taken under the
// mutation lock. The lock is released before the caller uses the copy.
func (e *Engine) Snapshot(ctx context.Context, projectID string) (*models.Project, error) {
	e.mu.Lock()
	project, err := e.store.GetProject(ctx, projectID)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("snapshot project %s: %w", projectID, err)
	}
	return project.Clone(), nil
}

// ExpenseDraft loads an expense owned by projectID into an edit draft. The
// draft is detached: saving it later with UpdateExpense replaces every field,
// so concurrent writers should use EditExpense instead.
func (e *Engine) ExpenseDraft(ctx context.Context, projectID, expenseID string) (*Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadDraft(ctx, projectID, expenseID)
}

func (e *Engine) loadDraft(ctx context.Context, projectID, expenseID string) (*Draft, error) {
	expense, err := e.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.ProjectID != projectID {
		return nil, apperrors.NotFound("expense", expenseID)
	}
	return EditDraft(expense), nil
}
