package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/models"
)

// Draft holds unsaved field values for an add or edit expense action.
//
// Text fields are owned by the caller. The receipt image may be written from
// another goroutine by the asset loader and is guarded by a mutex. A failed
// save leaves every field as it was so the user can correct and resubmit.
type Draft struct {
	Amount        string
	Date          time.Time // zero means "now" on save
	Description   string
	WhereMade     string
	WhatPurchased string

	mu      sync.Mutex
	receipt []byte
}

// NewDraft returns an empty draft for a new expense.
func NewDraft() *Draft {
	return &Draft{}
}

// EditDraft returns a draft seeded from an existing expense, receipt included.
func EditDraft(e *models.Expense) *Draft {
	d := &Draft{
		Amount:        e.Amount.String(),
		Date:          e.Date,
		Description:   e.Description,
		WhereMade:     e.WhereMade,
		WhatPurchased: e.WhatPurchased,
	}
	d.SetReceiptImage(e.ReceiptImage)
	return d
}

// SetReceiptImage replaces the pending receipt image. The last call wins.
func (d *Draft) SetReceiptImage(data []byte) {
	var cp []byte
	if len(data) > 0 {
		cp = append([]byte(nil), data...)
	}
	d.mu.Lock()
	d.receipt = cp
	d.mu.Unlock()
}

// ClearReceiptImage removes the pending receipt image.
func (d *Draft) ClearReceiptImage() {
	d.SetReceiptImage(nil)
}

// ReceiptImage returns a copy of the pending receipt image, or nil.
func (d *Draft) ReceiptImage() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.receipt == nil {
		return nil
	}
	return append([]byte(nil), d.receipt...)
}

// Reset clears every field.
func (d *Draft) Reset() {
	d.Amount = ""
	d.Date = time.Time{}
	d.Description = ""
	d.WhereMade = ""
	d.WhatPurchased = ""
	d.ClearReceiptImage()
}

// expense validates the draft and builds the record it describes.
func (d *Draft) expense(now time.Time) (models.Expense, error) {
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return models.Expense{}, err
	}
	date := d.Date
	if date.IsZero() {
		date = now
	}
	if !models.ValidDate(date) {
		return models.Expense{}, apperrors.Validation("date", date.Format(time.RFC3339),
			fmt.Errorf("must be between %d and %d", models.MinDate.Year(), models.MaxDate.Year()))
	}
	return models.Expense{
		Amount:        amount,
		Date:          date,
		Description:   d.Description,
		WhereMade:     d.WhereMade,
		WhatPurchased: d.WhatPurchased,
		ReceiptImage:  d.ReceiptImage(),
	}, nil
}

// Amount bounds. Larger values are rejected rather than stored.
const (
	MaxAmountIntegerDigits = 15
	MaxAmountScale         = 18
)

var errAmountRange = fmt.Errorf("must have at most %d integer and %d fractional digits",
	MaxAmountIntegerDigits, MaxAmountScale)

// ParseAmount parses user-entered amount text. Surrounding whitespace is
// ignored; anything that is not a finite decimal is a validation error.
func ParseAmount(text string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return decimal.Decimal{}, apperrors.Validation("amount", text, nil)
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, apperrors.Validation("amount", text, err)
	}
	// Exponents are checked first: formatting an amount like 1e2000000000
	// never finishes.
	exp := int(amount.Exponent())
	if exp > MaxAmountIntegerDigits || exp < -MaxAmountScale {
		return decimal.Decimal{}, apperrors.Validation("amount", text, errAmountRange)
	}
	if amount.NumDigits()+exp > MaxAmountIntegerDigits {
		return decimal.Decimal{}, apperrors.Validation("amount", text, errAmountRange)
	}
	return amount, nil
}
