package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendlens/internal/auth"
	"spendlens/internal/core"
	"spendlens/internal/flow"
	"spendlens/internal/llm"
)

type chatRequest struct {
	Expense string `json:"expense"`
}

// chatEvent is one line of the NDJSON classification stream.
type chatEvent struct {
	Type         string `json:"type"`
	Expense      any    `json:"expense,omitempty"`
	Error        string `json:"error,omitempty"`
	Message      string `json:"message,omitempty"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
}

// handleChat streams the classification of a free-text expense as
// newline-delimited JSON: zero or more partial events, then a final or error
// event. Failures after the first byte are carried in-band; the HTTP status
// stays 200.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	machine, err := s.machineFor(r.Context(), auth.SessionToken(r), principal)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to resolve session state", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load expenses")
		return
	}

	if err := machine.Submit(req.Expense); err != nil {
		switch {
		case errors.Is(err, flow.ErrEmptyInput):
			respondError(w, http.StatusUnprocessableEntity, "expense text is empty")
		case errors.Is(err, flow.ErrBusy):
			respondError(w, http.StatusConflict, "a submission is already in flight")
		default:
			respondError(w, http.StatusConflict, err.Error())
		}
		return
	}

	stream, err := s.classifier.Classify(r.Context(), req.Expense)
	if err != nil {
		machine.FailSubmission("classification could not start")
		switch {
		case errors.Is(err, core.ErrRateLimited):
			respondError(w, http.StatusTooManyRequests, "classification rate limited")
		case errors.Is(err, llm.ErrEmptyInput):
			respondError(w, http.StatusUnprocessableEntity, "expense text is empty")
		default:
			s.logger.ErrorContext(r.Context(), "Classification failed to start", "error", err)
			respondError(w, http.StatusBadGateway, "classification unavailable")
		}
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	emit := func(event chatEvent) {
		_ = enc.Encode(event)
		if flusher != nil {
			flusher.Flush()
		}
	}

	for partial := range stream.Partials() {
		machine.ObservePartial(partial)
		emit(chatEvent{Type: "partial", Expense: partial})
	}

	final, err := stream.Result()
	if err != nil {
		machine.FailSubmission("could not categorize the expense")
		switch {
		case errors.Is(err, core.ErrRateLimited):
			emit(chatEvent{Type: "error", Error: "rate limited"})
		default:
			emit(chatEvent{Type: "error", Error: "classification failed"})
		}
		s.drainNotices(machine, emit)
		return
	}

	optimistic, fresh := machine.Complete(final)
	if !fresh {
		// A duplicate completion: the list already holds this entry.
		emit(chatEvent{Type: "final", Expense: final, Deduplicated: true})
		s.drainNotices(machine, emit)
		return
	}

	toInsert := optimistic
	toInsert.ID = 0
	stored, err := s.expenses.CreateExpense(r.Context(), toInsert)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to persist classified expense",
			"error", err,
			"owner", principal.Username)
		machine.FailInsert("expense could not be saved")
		emit(chatEvent{Type: "final", Expense: optimistic})
		s.drainNotices(machine, emit)
		return
	}

	machine.ConfirmInsert(optimistic.ID, stored)
	emit(chatEvent{Type: "final", Expense: stored})
	s.drainNotices(machine, emit)
}

func (s *Server) drainNotices(machine *flow.Machine, emit func(chatEvent)) {
	for _, notice := range machine.Notices() {
		emit(chatEvent{Type: "notice", Message: notice})
	}
}
