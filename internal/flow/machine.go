// Package flow coordinates the submit/classify/persist/delete cycle for one
// authenticated session: a small state machine over an in-memory expense
// list with optimistic mutations and rollback.
package flow

import (
	"errors"
	"strings"
	"sync"

	"spendlens/internal/core"
)

// State is the machine's coarse lifecycle position.
type State string

const (
	StateChecking        State = "checking"
	StateUnauthenticated State = "unauthenticated"
	StateReady           State = "ready"
	StateSubmitting      State = "submitting"
)

var (
	// ErrNotReady is returned when an operation needs a resolved,
	// non-busy session.
	ErrNotReady = errors.New("session not ready")
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("submission already in flight")
	// ErrEmptyInput is returned for input that is empty after trimming.
	ErrEmptyInput = errors.New("empty input")
)

type removedEntry struct {
	expense core.Expense
	index   int
}

// Machine holds one session's view of the expense list. All mutations are
// serialized behind its mutex: there is one producer of state changes per
// user action.
type Machine struct {
	mu sync.Mutex

	state      State
	owner      string
	expenses   []core.Expense
	pending    *core.PartialExpense
	notices    []string
	removed    map[int64]removedEntry
	nextTempID int64
}

// NewMachine creates a machine in the checking state: neither view may be
// rendered until the principal resolves.
func NewMachine() *Machine {
	return &Machine{
		state:      StateChecking,
		removed:    make(map[int64]removedEntry),
		nextTempID: -1,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Owner returns the resolved principal's identifier, empty until resolved.
func (m *Machine) Owner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// ResolvePrincipal moves the machine to ready with the owner's persisted
// expenses, newest first.
func (m *Machine) ResolvePrincipal(owner string, expenses []core.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateReady
	m.owner = owner
	m.expenses = append([]core.Expense(nil), expenses...)
	m.pending = nil
}

// ResolveUnauthenticated records that no principal resolved.
func (m *Machine) ResolveUnauthenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnauthenticated
	m.owner = ""
	m.expenses = nil
	m.pending = nil
}

// SignOut drops the session state entirely.
func (m *Machine) SignOut() {
	m.ResolveUnauthenticated()
}

// Expenses returns a snapshot of the in-memory list.
func (m *Machine) Expenses() []core.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Expense(nil), m.expenses...)
}

// Pending returns the latest provisional partial, if a submission is in
// flight.
func (m *Machine) Pending() (core.PartialExpense, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return core.PartialExpense{}, false
	}
	return *m.pending, true
}

// Submit starts a classification cycle. At most one submission is in flight
// at a time.
func (m *Machine) Submit(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateSubmitting:
		return ErrBusy
	case StateReady:
	default:
		return ErrNotReady
	}

	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	m.state = StateSubmitting
	m.pending = &core.PartialExpense{}
	return nil
}

// ObservePartial records the latest provisional snapshot. Observations
// outside a submission are dropped.
func (m *Machine) ObservePartial(p core.PartialExpense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSubmitting {
		return
	}
	m.pending = &p
}

// Complete finishes a successful classification: the final expense is
// prepended under a temporary id and the machine returns to ready. A list
// entry with identical details, amount and date absorbs the completion
// instead, covering duplicate completion callbacks. The returned expense
// carries the temporary id to confirm later; ok is false when the entry was
// deduplicated.
func (m *Machine) Complete(final core.Expense) (core.Expense, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateReady
	m.pending = nil

	for _, existing := range m.expenses {
		if existing.SameEntry(final) {
			return core.Expense{}, false
		}
	}

	final.ID = m.nextTempID
	m.nextTempID--
	final.Owner = m.owner
	m.expenses = append([]core.Expense{final}, m.expenses...)
	return final, true
}

// FailSubmission discards the provisional partial, surfaces a notice and
// returns to ready. The list is unchanged.
func (m *Machine) FailSubmission(notice string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSubmitting {
		return
	}
	m.state = StateReady
	m.pending = nil
	m.notices = append(m.notices, notice)
}

// ConfirmInsert swaps the optimistic entry for the stored row once the
// store assigns its id and creation time.
func (m *Machine) ConfirmInsert(tempID int64, stored core.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.expenses {
		if e.ID == tempID {
			m.expenses[i] = stored
			return
		}
	}
}

// FailInsert surfaces a notice for a failed persist. The optimistic entry
// stays in the list; a reload reconciles against the store.
func (m *Machine) FailInsert(notice string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notice)
}

// Delete removes the expense from the list immediately and remembers its
// position for rollback. The removed expense is returned for the store call.
func (m *Machine) Delete(id int64) (core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.expenses {
		if e.ID == id {
			m.expenses = append(m.expenses[:i], m.expenses[i+1:]...)
			m.removed[id] = removedEntry{expense: e, index: i}
			return e, nil
		}
	}
	return core.Expense{}, core.ErrNotFound
}

// ConfirmDelete forgets the rollback entry after the store confirmed.
func (m *Machine) ConfirmDelete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.removed, id)
}

// RollbackDelete restores an optimistically removed expense at its previous
// position and surfaces a notice.
func (m *Machine) RollbackDelete(id int64, notice string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.removed[id]
	if !ok {
		return
	}
	delete(m.removed, id)

	i := entry.index
	if i > len(m.expenses) {
		i = len(m.expenses)
	}
	m.expenses = append(m.expenses[:i], append([]core.Expense{entry.expense}, m.expenses[i:]...)...)
	m.notices = append(m.notices, notice)
}

// Notices drains the queued non-fatal notices.
func (m *Machine) Notices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notices
	m.notices = nil
	return out
}
