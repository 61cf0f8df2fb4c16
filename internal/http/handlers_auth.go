package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendlens/internal/auth"
	"spendlens/internal/core"
)

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal, token, err := s.gate.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.ErrorContext(r.Context(), "Sign-in failed", "error", err)
		respondError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}

	http.SetCookie(w, auth.SessionCookie(token, s.gate.SessionTTL(), s.secureCookies))
	respondData(w, http.StatusOK, principal)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := auth.SessionToken(r)
	if token != "" {
		s.dropMachine(token)
		if err := s.gate.SignOut(r.Context(), token); err != nil {
			s.logger.ErrorContext(r.Context(), "Sign-out failed", "error", err)
			respondError(w, http.StatusInternalServerError, "sign-out failed")
			return
		}
	}

	http.SetCookie(w, auth.ClearedSessionCookie(s.secureCookies))
	respondData(w, http.StatusOK, nil)
}
