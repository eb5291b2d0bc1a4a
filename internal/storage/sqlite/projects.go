package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/models"
)

// CreateProject persists a new project to the database.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *models.Project) error {
	// Generate ID if not set
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (id, name, details, created_at, completed) VALUES (?, ?, ?, ?, ?)",
		project.ID, project.Name, project.Details, toUnix(project.CreatedAt), project.Completed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by ID, including its expenses in ledger order.
func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := scanProject(s.db.QueryRowContext(ctx,
		"SELECT id, name, details, created_at, completed FROM projects WHERE id = ?",
		projectID,
	))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("project", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	project.Expenses, err = s.ListExpenses(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return project, nil
}

// ListProjects retrieves projects matching filter, oldest first, each with
// its ledger.
func (s *SQLiteStore) ListProjects(ctx context.Context, filter models.ProjectFilter) ([]*models.Project, error) {
	query := "SELECT id, name, details, created_at, completed FROM projects"
	switch filter {
	case models.ActiveProjects:
		query += " WHERE completed = 0"
	case models.CompletedProjects:
		query += " WHERE completed = 1"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	// Release the only connection before loading ledgers
	rows.Close()

	for _, project := range projects {
		if project.Expenses, err = s.ListExpenses(ctx, project.ID); err != nil {
			return nil, err
		}
	}

	return projects, nil
}

// UpdateProject updates the mutable fields of an existing project.
// CreatedAt and the ledger are left untouched.
func (s *SQLiteStore) UpdateProject(ctx context.Context, project *models.Project) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, details = ?, completed = ? WHERE id = ?",
		project.Name, project.Details, project.Completed, project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireAffected(res, "project", project.ID)
}

// DeleteProject removes a project. Its expenses are removed by the
// ON DELETE CASCADE foreign key.
func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireAffected(res, "project", projectID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	project := &models.Project{Expenses: []models.Expense{}}
	var createdAt int64
	if err := row.Scan(&project.ID, &project.Name, &project.Details, &createdAt, &project.Completed); err != nil {
		return nil, err
	}
	project.CreatedAt = fromUnix(createdAt)
	return project, nil
}

// requireAffected turns a statement that matched no row into NotFound.
func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(kind, id)
	}
	return nil
}
