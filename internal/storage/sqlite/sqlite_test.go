package sqlite

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "ducats-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addExpense(t *testing.T, store *SQLiteStore, projectID, amount, desc string, date time.Time) *models.Expense {
	t.Helper()
	e := &models.Expense{
		ProjectID:   projectID,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Description: desc,
	}
	if err := store.CreateExpense(context.Background(), e); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return e
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateProject generates ID and CreatedAt", func(t *testing.T) {
		project := &models.Project{Name: "Trip", Details: "Winter"}

		if err := store.CreateProject(ctx, project); err != nil {
			t.Fatalf("CreateProject failed: %v", err)
		}
		if project.ID == "" {
			t.Error("Expected project ID to be generated")
		}
		if project.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("GetProject retrieves project with ordered ledger", func(t *testing.T) {
		project := &models.Project{Name: "Kitchen"}
		if err := store.CreateProject(ctx, project); err != nil {
			t.Fatalf("CreateProject failed: %v", err)
		}
		day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		addExpense(t, store, project.ID, "30.00", "Tiles", day.Add(48*time.Hour))
		addExpense(t, store, project.ID, "12.5", "Grout", day)
		addExpense(t, store, project.ID, "-4.10", "Refund", day.Add(24*time.Hour))

		got, err := store.GetProject(ctx, project.ID)
		if err != nil {
			t.Fatalf("GetProject failed: %v", err)
		}
		if got.Name != "Kitchen" {
			t.Errorf("Name mismatch: got %s, want Kitchen", got.Name)
		}
		if !got.CreatedAt.Equal(project.CreatedAt) {
			t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, project.CreatedAt)
		}

		// Ledger order is chronological regardless of insertion order
		want := []string{"Grout", "Refund", "Tiles"}
		if len(got.Expenses) != len(want) {
			t.Fatalf("Expenses count mismatch: got %d, want %d", len(got.Expenses), len(want))
		}
		for i, desc := range want {
			if got.Expenses[i].Description != desc {
				t.Errorf("Expense %d: got %s, want %s", i, got.Expenses[i].Description, desc)
			}
		}
		if !got.Expenses[1].Amount.Equal(decimal.RequireFromString("-4.10")) {
			t.Errorf("Amount mismatch: got %s", got.Expenses[1].Amount)
		}
		if !got.Expenses[0].Date.Equal(day) {
			t.Errorf("Date mismatch: got %v, want %v", got.Expenses[0].Date, day)
		}
	})

	t.Run("GetProject returns NotFound for nonexistent project", func(t *testing.T) {
		_, err := store.GetProject(ctx, "nonexistent-id")
		if !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("Expected NotFound, got %v", err)
		}
	})

	t.Run("New project has empty, non-nil ledger", func(t *testing.T) {
		project := &models.Project{Name: "Empty"}
		store.CreateProject(ctx, project)

		got, err := store.GetProject(ctx, project.ID)
		if err != nil {
			t.Fatalf("GetProject failed: %v", err)
		}
		if got.Expenses == nil || len(got.Expenses) != 0 {
			t.Errorf("Expected empty non-nil ledger, got %#v", got.Expenses)
		}
	})

	t.Run("UpdateProject changes mutable fields only", func(t *testing.T) {
		project := &models.Project{Name: "Draft"}
		store.CreateProject(ctx, project)

		project.Name = "Final"
		project.Details = "Done"
		project.Completed = true
		project.CreatedAt = time.Now().Add(time.Hour)
		if err := store.UpdateProject(ctx, project); err != nil {
			t.Fatalf("UpdateProject failed: %v", err)
		}

		got, _ := store.GetProject(ctx, project.ID)
		if got.Name != "Final" || got.Details != "Done" || !got.Completed {
			t.Errorf("Unexpected project after update: %+v", got)
		}
		if got.CreatedAt.Equal(project.CreatedAt) {
			t.Error("CreatedAt must not change on update")
		}
	})

	t.Run("UpdateProject returns NotFound for nonexistent project", func(t *testing.T) {
		err := store.UpdateProject(ctx, &models.Project{ID: "missing", Name: "x"})
		if !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("Expected NotFound, got %v", err)
		}
	})

	t.Run("CreateExpense rejects unknown project", func(t *testing.T) {
		err := store.CreateExpense(ctx, &models.Expense{ProjectID: "missing", Amount: decimal.NewFromInt(1)})
		if !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("Expected NotFound, got %v", err)
		}
	})
}

func TestDeleteProjectCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doomed := &models.Project{Name: "Doomed"}
	kept := &models.Project{Name: "Kept"}
	store.CreateProject(ctx, doomed)
	store.CreateProject(ctx, kept)

	now := time.Now()
	e1 := addExpense(t, store, doomed.ID, "1", "a", now)
	e2 := addExpense(t, store, doomed.ID, "2", "b", now)
	survivor := addExpense(t, store, kept.ID, "3", "c", now)

	if err := store.DeleteProject(ctx, doomed.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	for _, id := range []string{e1.ID, e2.ID} {
		if _, err := store.GetExpense(ctx, id); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("Expense %s should be gone with its project, got %v", id, err)
		}
	}
	remaining, err := store.ListExpenses(ctx, doomed.ID)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("Expected no expenses referencing deleted project, got %d", len(remaining))
	}

	if _, err := store.GetExpense(ctx, survivor.ID); err != nil {
		t.Errorf("Expense of another project must survive: %v", err)
	}

	if err := store.DeleteProject(ctx, doomed.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Second delete should be NotFound, got %v", err)
	}
}

func TestDeleteExpenseByIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := &models.Project{Name: "A"}
	b := &models.Project{Name: "B"}
	store.CreateProject(ctx, a)
	store.CreateProject(ctx, b)
	e := addExpense(t, store, a.ID, "9.99", "Lunch", time.Now())

	t.Run("foreign project is NotFound", func(t *testing.T) {
		err := store.DeleteExpense(ctx, b.ID, e.ID)
		if !errors.Is(err, apperrors.ErrNotFound) {
			t.Fatalf("Expected NotFound, got %v", err)
		}
		if _, err := store.GetExpense(ctx, e.ID); err != nil {
			t.Errorf("Expense must be untouched: %v", err)
		}
	})

	t.Run("owning project deletes", func(t *testing.T) {
		if err := store.DeleteExpense(ctx, a.ID, e.ID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		if err := store.DeleteExpense(ctx, a.ID, e.ID); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("Expected NotFound on repeated delete, got %v", err)
		}
	})
}

func TestUpdateExpenseReplacesFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "P"}
	store.CreateProject(ctx, p)
	when := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	first := addExpense(t, store, p.ID, "1", "first", when)
	e := addExpense(t, store, p.ID, "2", "second", when)

	e.Amount = decimal.RequireFromString("2.50")
	e.Description = "second, edited"
	e.WhereMade = "Store"
	e.WhatPurchased = "Things"
	e.ReceiptImage = []byte{0xFF, 0xD8, 0xFF}
	if err := store.UpdateExpense(ctx, e); err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	got, err := store.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if !got.Amount.Equal(e.Amount) || got.Description != e.Description ||
		got.WhereMade != "Store" || got.WhatPurchased != "Things" {
		t.Errorf("Unexpected expense after update: %+v", got)
	}
	if !bytes.Equal(got.ReceiptImage, e.ReceiptImage) {
		t.Errorf("Receipt mismatch: got %v", got.ReceiptImage)
	}

	// Same date: insertion order still breaks the tie
	ledger, _ := store.ListExpenses(ctx, p.ID)
	if ledger[0].ID != first.ID || ledger[1].ID != e.ID {
		t.Error("UpdateExpense must not reorder expenses with unchanged dates")
	}

	// Clearing the receipt stores NULL
	e.ReceiptImage = []byte{}
	store.UpdateExpense(ctx, e)
	got, _ = store.GetExpense(ctx, e.ID)
	if got.ReceiptImage != nil {
		t.Errorf("Expected nil receipt, got %v", got.ReceiptImage)
	}

	// Wrong owner
	e.ProjectID = "other"
	if err := store.UpdateExpense(ctx, e); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected NotFound for foreign project, got %v", err)
	}
}

func TestExpenseDateRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "P"}
	store.CreateProject(ctx, p)

	t.Run("dates inside the range round-trip", func(t *testing.T) {
		for _, when := range []time.Time{
			time.Date(1700, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2250, 12, 31, 23, 59, 59, 123456789, time.UTC),
			models.MinDate,
			models.MaxDate,
		} {
			e := addExpense(t, store, p.ID, "1", "in range", when)
			got, err := store.GetExpense(ctx, e.ID)
			if err != nil {
				t.Fatalf("GetExpense failed: %v", err)
			}
			if !got.Date.Equal(when) {
				t.Errorf("stored %v, read back %v", when, got.Date)
			}
		}
	})

	t.Run("dates outside the range are rejected", func(t *testing.T) {
		for _, when := range []time.Time{
			time.Date(1600, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
			models.MaxDate.Add(time.Nanosecond),
		} {
			e := &models.Expense{ProjectID: p.ID, Amount: decimal.NewFromInt(1), Date: when}
			if err := store.CreateExpense(ctx, e); !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("CreateExpense(%v): expected ValidationError, got %v", when, err)
			}
		}

		e := addExpense(t, store, p.ID, "1", "valid", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		e.Date = time.Date(1600, 1, 2, 0, 0, 0, 0, time.UTC)
		if err := store.UpdateExpense(ctx, e); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("UpdateExpense: expected ValidationError, got %v", err)
		}
		got, _ := store.GetExpense(ctx, e.ID)
		if got.Date.Year() != 2024 {
			t.Errorf("rejected update changed the date to %v", got.Date)
		}
	})
}

func TestListProjectsFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 9, 17, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"One", "Two", "Three"} {
		p := &models.Project{Name: name, CreatedAt: base.Add(time.Duration(i) * time.Minute), Completed: name == "Two"}
		if err := store.CreateProject(ctx, p); err != nil {
			t.Fatalf("CreateProject failed: %v", err)
		}
	}

	tests := []struct {
		filter models.ProjectFilter
		want   []string
	}{
		{models.AllProjects, []string{"One", "Two", "Three"}},
		{models.ActiveProjects, []string{"One", "Three"}},
		{models.CompletedProjects, []string{"Two"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			projects, err := store.ListProjects(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListProjects failed: %v", err)
			}
			if len(projects) != len(tt.want) {
				t.Fatalf("got %d projects, want %d", len(projects), len(tt.want))
			}
			for i, name := range tt.want {
				if projects[i].Name != name {
					t.Errorf("project %d = %s, want %s", i, projects[i].Name, name)
				}
				if projects[i].Expenses == nil {
					t.Errorf("project %d has a nil ledger", i)
				}
			}
		})
	}
}

func TestInMemoryStore(t *testing.T) {
	store, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", MemoryPath, err)
	}
	defer store.Close()

	ctx := context.Background()
	p := &models.Project{Name: "Scratch"}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	addExpense(t, store, p.ID, "1", "x", time.Now())

	// Cascade must work in memory too (single connection keeps the pragma)
	if err := store.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	left, _ := store.ListExpenses(ctx, p.ID)
	if len(left) != 0 {
		t.Errorf("Expected cascade in memory, %d expenses left", len(left))
	}
}
