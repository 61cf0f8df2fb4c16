package core

import (
	"testing"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"TRAVEL", CategoryTravel, true},
		{"travel", CategoryTravel, true},
		{" meals ", CategoryMeals, true},
		{"OFFICE SUPPLIES", CategoryOfficeSupplies, true},
		{"OFFICE_SUPPLIES", CategoryOfficeSupplies, true},
		{"ENTERTAINMENT", CategoryEntertainment, true},
		{"OTHER", CategoryOther, true},
		{"GROCERIES", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCategory(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeCategory(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	valid := Expense{
		Category: CategoryTravel,
		Amount:   Money{Cents: 3200},
		Date:     "09-Jun",
		Details:  "Uber",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"out of set category", func(e *Expense) { e.Category = "GROCERIES" }, ErrInvalidCategory},
		{"negative amount", func(e *Expense) { e.Amount = Money{Cents: -1} }, ErrInvalidAmount},
		{"empty details", func(e *Expense) { e.Details = "  " }, ErrEmptyDetails},
		{"empty date", func(e *Expense) { e.Date = "" }, ErrEmptyDate},
		{"malformed date", func(e *Expense) { e.Date = "someday" }, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			if err := e.Validate(); err != tt.want {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	// Zero amounts are legal: comped expenses still get recorded.
	zero := valid
	zero.Amount = Money{}
	if err := zero.Validate(); err != nil {
		t.Errorf("zero amount rejected: %v", err)
	}
}

func TestValidDate(t *testing.T) {
	for _, ok := range []string{"09-Jun", "9-Jun", "2024-06-09", "09-Jun-2024", "Jun 09"} {
		if !ValidDate(ok) {
			t.Errorf("ValidDate(%q) = false, want true", ok)
		}
	}
	for _, bad := range []string{"", "  ", "yesterday", "13-13-13"} {
		if ValidDate(bad) {
			t.Errorf("ValidDate(%q) = true, want false", bad)
		}
	}
}

func TestSameEntry(t *testing.T) {
	a := Expense{Details: "Uber", Amount: Money{Cents: 3200}, Date: "09-Jun"}
	b := a
	b.ID = 42
	b.Category = CategoryTravel
	if !a.SameEntry(b) {
		t.Error("entries differing only in id/category should match")
	}
	c := a
	c.Amount = Money{Cents: 3300}
	if a.SameEntry(c) {
		t.Error("entries with different amounts should not match")
	}
}

func TestFromPartial(t *testing.T) {
	cat := "office supplies"
	amount := 12.5
	date := " 02-Jan "
	details := "Stapler"
	e := FromPartial(PartialExpense{
		Category: &cat,
		Amount:   &amount,
		Date:     &date,
		Details:  &details,
	})
	if e.Category != CategoryOfficeSupplies {
		t.Errorf("category = %q", e.Category)
	}
	if e.Amount.Cents != 1250 {
		t.Errorf("cents = %d", e.Amount.Cents)
	}
	if e.Date != "02-Jan" || e.Details != "Stapler" {
		t.Errorf("date/details = %q/%q", e.Date, e.Details)
	}
}
