// Package worker drains the export queue into the spreadsheet ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendlens/internal/amqp"
	"spendlens/internal/core"
	"spendlens/internal/sheets"
)

// Lister reads the whole expense table for the resync pass.
type Lister interface {
	ListAll(ctx context.Context) ([]core.Expense, error)
}

// ExportWorker appends queued expense mutations to the export ledger and
// periodically re-exports created rows the queue may have missed. Exported
// ids are tracked in memory, so a restart re-appends at most one resync's
// worth of duplicates; the ledger is an audit log and tolerates that.
type ExportWorker struct {
	store    Lister
	appender sheets.RowAppender
	logger   *slog.Logger

	mu       sync.Mutex
	exported map[int64]struct{}
}

func NewExportWorker(store Lister, appender sheets.RowAppender, logger *slog.Logger) *ExportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{
		store:    store,
		appender: appender,
		logger:   logger,
		exported: make(map[int64]struct{}),
	}
}

// HandleEvent processes one queued expense mutation. Errors propagate so the
// consumer nacks and requeues the delivery.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	row := sheets.RowFromExpense(string(msg.Action), msg.Timestamp, msg.Expense)

	ref, err := w.appender.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append export row: %w", err)
	}

	if msg.Action == amqp.ActionCreated {
		w.markExported(msg.Expense.ID)
	}

	w.logger.InfoContext(ctx, "Expense event exported",
		"action", msg.Action,
		"id", msg.Expense.ID,
		"row", ref)
	return nil
}

// Resync re-exports stored expenses that never made it to the ledger, for
// example while the broker was down. Returns the number of rows appended.
func (w *ExportWorker) Resync(ctx context.Context) (int, error) {
	expenses, err := w.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list expenses for resync: %w", err)
	}

	appended := 0
	for _, e := range expenses {
		if w.isExported(e.ID) {
			continue
		}

		row := sheets.RowFromExpense(string(amqp.ActionCreated), e.CreatedAt, e)
		if _, err := w.appender.Append(ctx, row); err != nil {
			return appended, fmt.Errorf("append resync row for expense %d: %w", e.ID, err)
		}
		w.markExported(e.ID)
		appended++
	}

	if appended > 0 {
		w.logger.InfoContext(ctx, "Resync appended missing rows", "count", appended)
	}
	return appended, nil
}

// RunResyncLoop runs Resync on the given interval until the context is
// canceled. A failed pass is logged and retried on the next tick.
func (w *ExportWorker) RunResyncLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Resync(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Resync pass failed", "error", err)
			}
		}
	}
}

func (w *ExportWorker) markExported(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exported[id] = struct{}{}
}

func (w *ExportWorker) isExported(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.exported[id]
	return ok
}
