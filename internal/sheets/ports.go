// Package sheets defines the outbound export ledger port.
package sheets

import (
	"context"
	"time"

	"spendlens/internal/core"
)

// ExportRow is one ledger line in the export spreadsheet. Deletions are
// appended as rows too, so the sheet is an audit log rather than a mirror.
type ExportRow struct {
	Timestamp    time.Time
	Action       string
	SourceID     int64
	Owner        string
	Category     string
	Amount       core.Money
	Date         string
	Details      string
	Participants string
}

// RowFromExpense builds a ledger row for an expense mutation.
func RowFromExpense(action string, at time.Time, e core.Expense) ExportRow {
	return ExportRow{
		Timestamp:    at,
		Action:       action,
		SourceID:     e.ID,
		Owner:        e.Owner,
		Category:     string(e.Category),
		Amount:       e.Amount,
		Date:         e.Date,
		Details:      e.Details,
		Participants: e.Participants,
	}
}

// RowAppender appends ledger rows to the export destination.
type RowAppender interface {
	Append(ctx context.Context, row ExportRow) (rowRef string, err error)
}
