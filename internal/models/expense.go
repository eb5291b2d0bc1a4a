package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single entry in a project's ledger.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// ProjectID references the owning project. Lookup only.
	ProjectID string

	// Amount has no enforced sign.
	Amount decimal.Decimal

	// Date defaults to the creation time.
	Date time.Time

	Description   string
	WhereMade     string
	WhatPurchased string

	// ReceiptImage is nil when no receipt was attached.
	ReceiptImage []byte
}

// HasReceipt reports whether a receipt image is attached.
func (e *Expense) HasReceipt() bool {
	return len(e.ReceiptImage) > 0
}

// Clone returns a copy of e with its own receipt buffer.
func (e Expense) Clone() Expense {
	if e.ReceiptImage != nil {
		e.ReceiptImage = append([]byte(nil), e.ReceiptImage...)
	}
	return e
}

// Dates are persisted as Unix nanoseconds, so only this range round-trips.
var (
	MinDate = time.Unix(0, math.MinInt64).UTC()
	MaxDate = time.Unix(0, math.MaxInt64).UTC()
)

// ValidDate reports whether t lies within [MinDate, MaxDate].
func ValidDate(t time.Time) bool {
	return !t.Before(MinDate) && !t.After(MaxDate)
}
