// Package services orchestrates expense operations across the store and the
// export queue.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"spendlens/internal/amqp"
	"spendlens/internal/core"
)

// Store is the persistence the service needs.
type Store interface {
	InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListByOwner(ctx context.Context, owner string) ([]core.Expense, error)
	DeleteOwned(ctx context.Context, id int64, owner string) error
}

// Publisher pushes expense mutations onto the export queue.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error
}

// ExpenseService persists expenses and publishes export messages. Publishing
// is best effort: the store is the source of truth and a broker outage never
// fails the request.
type ExpenseService struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

func NewExpenseService(store Store, publisher Publisher, logger *slog.Logger) *ExpenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateExpense stores the expense for its owner and publishes a created
// event. Returns the stored row with its assigned id and creation time.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	stored, err := s.store.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.ActionCreated, stored)
	return stored, nil
}

// ListExpenses returns the owner's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, owner string) ([]core.Expense, error) {
	expenses, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// DeleteExpense removes the owner's expense and publishes a deleted event.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64, owner string) error {
	if err := s.store.DeleteOwned(ctx, id, owner); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publish(ctx, amqp.ActionDeleted, core.Expense{ID: id, Owner: owner})
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, action amqp.Action, e core.Expense) {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "Export publisher not available, skipping event", "action", action)
		return
	}

	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEventMessage(action, e)); err != nil {
		// The expense is safe in the store; the resync pass picks up
		// anything the queue missed.
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			"action", action,
			"id", e.ID,
			"error", err)
	}
}
