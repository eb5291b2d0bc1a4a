package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/models"
)

const expenseColumns = "id, project_id, amount, date, description, where_made, what_purchased, receipt_image"

// CreateExpense appends an expense to its project's ledger.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := checkDate(expense); err != nil {
		return err
	}
	// Generate ID if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Check the owning project exists
	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id = ?", expense.ProjectID).Scan(&exists)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("project", expense.ProjectID)
	}
	if err != nil {
		return fmt.Errorf("failed to check project existence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		expense.ID, expense.ProjectID, expense.Amount.String(), toUnix(expense.Date),
		expense.Description, expense.WhereMade, expense.WhatPurchased, nullBlob(expense.ReceiptImage),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// checkDate rejects dates that would overflow the nanosecond column.
func checkDate(expense *models.Expense) error {
	if models.ValidDate(expense.Date) {
		return nil
	}
	return apperrors.Validation("date", expense.Date.Format(time.RFC3339), fmt.Errorf(
		"must be between %s and %s", models.MinDate.Format(time.DateOnly), models.MaxDate.Format(time.DateOnly)))
}

// GetExpense retrieves an expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := scanExpense(s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		expenseID,
	))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("expense", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// ListExpenses retrieves a project's expenses in ledger order: by date, with
// insertion order breaking ties.
// An unknown project yields an empty ledger.
func (s *SQLiteStore) ListExpenses(ctx context.Context, projectID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE project_id = ? ORDER BY date, seq",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return expenses, nil
}

// UpdateExpense replaces all fields of an expense owned by expense.ProjectID.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if err := checkDate(expense); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses
		 SET amount = ?, date = ?, description = ?, where_made = ?, what_purchased = ?, receipt_image = ?
		 WHERE id = ? AND project_id = ?`,
		expense.Amount.String(), toUnix(expense.Date), expense.Description, expense.WhereMade,
		expense.WhatPurchased, nullBlob(expense.ReceiptImage), expense.ID, expense.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return requireAffected(res, "expense", expense.ID)
}

// DeleteExpense removes an expense by identity. An expense that exists but
// belongs to another project is reported as not found.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, projectID, expenseID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND project_id = ?",
		expenseID, projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return requireAffected(res, "expense", expenseID)
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var amount string
	var date int64
	if err := row.Scan(&expense.ID, &expense.ProjectID, &amount, &date,
		&expense.Description, &expense.WhereMade, &expense.WhatPurchased, &expense.ReceiptImage); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q for expense %s: %w", amount, expense.ID, err)
	}
	expense.Amount = d
	expense.Date = fromUnix(date)
	if len(expense.ReceiptImage) == 0 {
		expense.ReceiptImage = nil
	}
	return expense, nil
}
