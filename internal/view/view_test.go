package view

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/ducats/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func expense(id, amount string, date time.Time, desc string) models.Expense {
	return models.Expense{ID: id, Amount: decimal.RequireFromString(amount), Date: date, Description: desc}
}

func ids(expenses []models.Expense) string {
	parts := make([]string, len(expenses))
	for i, e := range expenses {
		parts[i] = e.ID
	}
	return strings.Join(parts, ",")
}

func TestSort(t *testing.T) {
	// a/b share a date, c/d share an amount, b/e share both
	input := []models.Expense{
		expense("a", "5.00", day(2), "A"),
		expense("b", "7.00", day(2), "B"),
		expense("c", "3.00", day(1), "C"),
		expense("d", "3.00", day(3), "D"),
		expense("e", "7.00", day(2), "E"),
	}

	tests := []struct {
		order SortOrder
		want  string
	}{
		{DateDesc, "d,a,b,e,c"},
		{DateAsc, "c,a,b,e,d"},
		{AmountDesc, "b,e,a,c,d"},
		{AmountAsc, "c,d,a,b,e"},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			got := Sort(input, tt.order)
			if ids(got) != tt.want {
				t.Errorf("Sort(%s) = %s, want %s", tt.order, ids(got), tt.want)
			}
		})
	}

	if ids(input) != "a,b,c,d,e" {
		t.Errorf("Sort mutated its input: %s", ids(input))
	}
}

func TestSortIsStableForAllOrders(t *testing.T) {
	// Every expense has the same date and amount: output must equal input.
	var input []models.Expense
	for _, id := range []string{"p", "q", "r", "s", "t", "u", "v", "w"} {
		input = append(input, expense(id, "1.00", day(5), id))
	}
	for _, order := range SortOrders {
		if got := ids(Sort(input, order)); got != ids(input) {
			t.Errorf("%s not stable: got %s", order, got)
		}
	}
}

func TestFilter(t *testing.T) {
	input := []models.Expense{
		expense("1", "1", day(1), "Taxi to airport"),
		expense("2", "1", day(1), "Coffee"),
		expense("3", "1", day(1), "AIRPORT lounge"),
		expense("4", "1", day(1), "Café crème"),
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty passes all", "", "1,2,3,4"},
		{"case insensitive", "airport", "1,3"},
		{"upper needle", "COFFEE", "2"},
		{"no match", "hotel", ""},
		{"unicode folding", "CAFÉ", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(input, tt.text)
			if ids(got) != tt.want {
				t.Errorf("Filter(%q) = %s, want %s", tt.text, ids(got), tt.want)
			}
			// subset relation
			for _, e := range got {
				if !strings.Contains(strings.ToLower(e.Description), strings.ToLower(tt.text)) {
					t.Errorf("retained %q does not contain %q", e.Description, tt.text)
				}
			}
		})
	}
}

func TestTotalIgnoresView(t *testing.T) {
	ledger := []models.Expense{
		expense("taxi", "12.50", day(2), "Taxi"),
		expense("coffee", "7.00", day(1), "Coffee"),
		expense("refund", "-2.25", day(3), "Refund"),
	}
	want := decimal.RequireFromString("17.25")

	if got := Total(ledger); !got.Equal(want) {
		t.Errorf("Total = %s, want %s", got, want)
	}

	for _, order := range SortOrders {
		v := Build(ledger, "coffee", order)
		if !v.Total.Equal(want) {
			t.Errorf("Build(%s).Total = %s, want unfiltered %s", order, v.Total, want)
		}
		if v.Count != 3 || len(v.Entries) != 1 {
			t.Errorf("Build(%s) count=%d entries=%d", order, v.Count, len(v.Entries))
		}
	}

	if got := Total(nil); !got.IsZero() {
		t.Errorf("Total(nil) = %s, want 0", got)
	}
}

func TestTripScenario(t *testing.T) {
	ledger := []models.Expense{
		{ID: "taxi", Amount: decimal.RequireFromString("12.50"), Date: day(2), Description: "Taxi", WhereMade: "NYC", WhatPurchased: "Ride"},
		{ID: "coffee", Amount: decimal.RequireFromString("7.00"), Date: day(1), Description: "Coffee", WhereMade: "NYC", WhatPurchased: "Drink"},
	}

	got := Project(ledger, "", DateAsc)
	if ids(got) != "coffee,taxi" {
		t.Errorf("dateAsc = %s, want coffee,taxi", ids(got))
	}
	if total := Total(ledger); total.StringFixed(2) != "19.50" {
		t.Errorf("Total = %s, want 19.50", total.StringFixed(2))
	}
}

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    SortOrder
		wantErr bool
	}{
		{"", DateDesc, false},
		{"dateAsc", DateAsc, false},
		{"AMOUNTDESC", AmountDesc, false},
		{"amountAsc", AmountAsc, false},
		{"random", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortOrder(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSortOrder(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSortOrder(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
