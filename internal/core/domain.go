package core

import (
	"errors"
	"strings"
	"time"
)

// Category is the closed set of expense categories the classifier may emit.
type Category string

const (
	CategoryTravel         Category = "TRAVEL"
	CategoryMeals          Category = "MEALS"
	CategoryEntertainment  Category = "ENTERTAINMENT"
	CategoryOfficeSupplies Category = "OFFICE_SUPPLIES"
	CategoryOther          Category = "OTHER"
)

// Categories lists every allowed category, in prompt order.
func Categories() []Category {
	return []Category{
		CategoryTravel,
		CategoryMeals,
		CategoryEntertainment,
		CategoryOfficeSupplies,
		CategoryOther,
	}
}

// NormalizeCategory maps a raw model string onto the closed set. The model is
// prompted with "OFFICE SUPPLIES" (space form), so both spellings normalize.
func NormalizeCategory(raw string) (Category, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	c := Category(s)
	for _, known := range Categories() {
		if c == known {
			return known, true
		}
	}
	return "", false
}

type (
	// Expense is a single categorized transaction record owned by a principal.
	Expense struct {
		ID           int64     `json:"id"`
		Category     Category  `json:"category"`
		Amount       Money     `json:"amount"`
		Date         string    `json:"date"`
		Details      string    `json:"details"`
		Participants string    `json:"participants"`
		Owner        string    `json:"owner,omitempty"`
		CreatedAt    time.Time `json:"created_at,omitempty"`
	}

	// PartialExpense is a progressively-filled Expense observed while the
	// model is still generating. Any field may be absent.
	PartialExpense struct {
		Category     *string  `json:"category,omitempty"`
		Amount       *float64 `json:"amount,omitempty"`
		Date         *string  `json:"date,omitempty"`
		Details      *string  `json:"details,omitempty"`
		Participants *string  `json:"participants,omitempty"`
	}
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrRateLimited      = errors.New("rate limited")
	ErrInvocationFailed = errors.New("invocation failed")
	ErrNotFound         = errors.New("not found")

	ErrInvalidCategory = errors.New("category outside allowed set")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyDetails    = errors.New("empty details")
	ErrEmptyDate       = errors.New("empty date")
	ErrInvalidDate     = errors.New("malformed date")
)

// dateLayouts are the calendar date shapes the classifier is allowed to emit.
// The prompt asks for dd-MMM; full ISO dates are accepted too.
var dateLayouts = []string{"02-Jan", "2-Jan", "2006-01-02", "02-Jan-2006", "Jan 02", "Jan 2"}

// ValidDate reports whether s parses as one of the accepted date layouts.
func ValidDate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func (e Expense) Validate() error {
	if _, ok := NormalizeCategory(string(e.Category)); !ok {
		return ErrInvalidCategory
	}
	if e.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Details) == "" {
		return ErrEmptyDetails
	}
	if len(e.Details) > 200 {
		return errors.New("details too long (max 200 characters)")
	}
	if strings.TrimSpace(e.Date) == "" {
		return ErrEmptyDate
	}
	if !ValidDate(e.Date) {
		return ErrInvalidDate
	}
	return nil
}

// SameEntry reports whether two expenses describe the same entry for
// deduplication purposes: identical details, amount and date.
func (e Expense) SameEntry(other Expense) bool {
	return e.Details == other.Details &&
		e.Amount.Cents == other.Amount.Cents &&
		e.Date == other.Date
}

// FromPartial builds an Expense from a fully-populated partial value.
// Missing fields stay at their zero values; Validate decides acceptability.
func FromPartial(p PartialExpense) Expense {
	var e Expense
	if p.Category != nil {
		if c, ok := NormalizeCategory(*p.Category); ok {
			e.Category = c
		} else {
			e.Category = Category(*p.Category)
		}
	}
	if p.Amount != nil {
		e.Amount = MoneyFromFloat(*p.Amount)
	}
	if p.Date != nil {
		e.Date = strings.TrimSpace(*p.Date)
	}
	if p.Details != nil {
		e.Details = strings.TrimSpace(*p.Details)
	}
	if p.Participants != nil {
		e.Participants = strings.TrimSpace(*p.Participants)
	}
	return e
}
