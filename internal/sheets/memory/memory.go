// Package memory is an in-memory export ledger for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendlens/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []sheets.ExportRow
	err  error
}

// Ensure interface conformance
var _ sheets.RowAppender = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row sheets.ExportRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a snapshot of the appended rows.
func (s *Store) Rows() []sheets.ExportRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.ExportRow(nil), s.rows...)
}

// FailWith makes subsequent appends fail with err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
