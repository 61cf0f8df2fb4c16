package amqp

import (
	"encoding/json"
	"time"

	"spendlens/internal/core"
)

// Action distinguishes export message kinds.
type Action string

const (
	ActionCreated Action = "created"
	ActionDeleted Action = "deleted"
)

// ExpenseEventMessage carries one expense mutation to the export worker. It
// embeds the full record so the worker does not need store access to build
// the exported row.
type ExpenseEventMessage struct {
	Action    Action       `json:"action"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewExpenseEventMessage creates an export message for the given mutation.
func NewExpenseEventMessage(action Action, expense core.Expense) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		Action:    action,
		Expense:   expense,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON creates a message from JSON bytes.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
