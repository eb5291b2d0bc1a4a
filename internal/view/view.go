// Package view computes derived, read-only views of a ledger: filtered and
// sorted expense lists and totals. Every function here is pure and never
// mutates its input.
package view

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/mmynk/ducats/internal/models"
)

// SortOrder selects the ordering of a projected ledger.
type SortOrder string

const (
	DateDesc   SortOrder = "dateDesc"
	DateAsc    SortOrder = "dateAsc"
	AmountDesc SortOrder = "amountDesc"
	AmountAsc  SortOrder = "amountAsc"
)

// DefaultSortOrder is used when no order is requested.
const DefaultSortOrder = DateDesc

// SortOrders lists every supported order.
var SortOrders = []SortOrder{DateDesc, DateAsc, AmountDesc, AmountAsc}

// ParseSortOrder validates s. The empty string selects DefaultSortOrder.
func ParseSortOrder(s string) (SortOrder, error) {
	if s == "" {
		return DefaultSortOrder, nil
	}
	for _, o := range SortOrders {
		if strings.EqualFold(s, string(o)) {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Project filters expenses by description and sorts the result.
// The input slice is left untouched.
func Project(expenses []models.Expense, filterText string, order SortOrder) []models.Expense {
	return Sort(Filter(expenses, filterText), order)
}

// Filter returns the expenses whose description contains text, compared with
// Unicode case folding. An empty text keeps every expense.
func Filter(expenses []models.Expense, text string) []models.Expense {
	if text == "" {
		return slices.Clone(expenses)
	}

	fold := cases.Fold()
	needle := fold.String(text)

	out := make([]models.Expense, 0, len(expenses))
	for _, e := range expenses {
		if strings.Contains(fold.String(e.Description), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Sort returns a copy of expenses ordered by order. The sort is stable:
// expenses with equal keys keep their input order.
func Sort(expenses []models.Expense, order SortOrder) []models.Expense {
	out := slices.Clone(expenses)
	if out == nil {
		out = []models.Expense{}
	}
	slices.SortStableFunc(out, comparator(order))
	return out
}

func comparator(order SortOrder) func(a, b models.Expense) int {
	switch order {
	case DateAsc:
		return func(a, b models.Expense) int { return a.Date.Compare(b.Date) }
	case AmountDesc:
		return func(a, b models.Expense) int { return b.Amount.Cmp(a.Amount) }
	case AmountAsc:
		return func(a, b models.Expense) int { return a.Amount.Cmp(b.Amount) }
	default:
		return func(a, b models.Expense) int { return b.Date.Compare(a.Date) }
	}
}

// Total sums the amounts of expenses. Callers pass the whole ledger, not a
// filtered view.
func Total(expenses []models.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Ledger is a projected ledger together with figures computed over the
// unfiltered set.
type Ledger struct {
	Entries []models.Expense
	Total   decimal.Decimal
	Count   int
	Filter  string
	Order   SortOrder
}

// Build projects expenses and computes the unfiltered total in one pass over
// the same input.
func Build(expenses []models.Expense, filterText string, order SortOrder) Ledger {
	return Ledger{
		Entries: Project(expenses, filterText, order),
		Total:   Total(expenses),
		Count:   len(expenses),
		Filter:  filterText,
		Order:   order,
	}
}
