package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"spendlens/internal/auth"
	"spendlens/internal/core"
)

// expensePayload is the client-supplied expense body. The owner is never
// accepted from the client; it is attached server-side from the session.
type expensePayload struct {
	Category     string     `json:"category"`
	Amount       core.Money `json:"amount"`
	Date         string     `json:"date"`
	Details      string     `json:"details"`
	Participants string     `json:"participants"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var payload expensePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expense := core.Expense{
		Category:     core.Category(payload.Category),
		Amount:       payload.Amount,
		Date:         payload.Date,
		Details:      payload.Details,
		Participants: payload.Participants,
		Owner:        principal.Username,
	}
	if c, ok := core.NormalizeCategory(payload.Category); ok {
		expense.Category = c
	}

	if err := expense.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	stored, err := s.expenses.CreateExpense(r.Context(), expense)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to save expense",
			"error", err,
			"owner", principal.Username)
		respondError(w, http.StatusInternalServerError, "failed to save expense")
		return
	}

	respondData(w, http.StatusOK, stored)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	expenses, err := s.expenses.ListExpenses(r.Context(), principal.Username)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list expenses",
			"error", err,
			"owner", principal.Username)
		respondError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}

	respondData(w, http.StatusOK, expenses)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	machine, err := s.machineFor(r.Context(), auth.SessionToken(r), principal)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to resolve session state", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load expenses")
		return
	}

	// Optimistic removal; the store call confirms or rolls back.
	removed := false
	if _, err := machine.Delete(id); err == nil {
		removed = true
	}

	if err := s.expenses.DeleteExpense(r.Context(), id, principal.Username); err != nil {
		if removed {
			machine.RollbackDelete(id, "delete failed")
		}
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "expense not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to delete expense",
			"error", err,
			"id", id,
			"owner", principal.Username)
		respondError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}

	machine.ConfirmDelete(id)
	respondData(w, http.StatusOK, nil)
}
