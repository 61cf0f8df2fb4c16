// Package http exposes the expense API: session management, streaming
// classification, and the owner-scoped expense collection.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendlens/internal/auth"
	"spendlens/internal/core"
	"spendlens/internal/flow"
	"spendlens/internal/llm"
)

// Classifier turns free text into a stream of partial expenses.
type Classifier interface {
	Classify(ctx context.Context, text string) (*llm.Stream, error)
}

// ExpenseStore is the persistence surface the handlers need.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListExpenses(ctx context.Context, owner string) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, id int64, owner string) error
}

// Options configures the server.
type Options struct {
	Addr          string
	SecureCookies bool
	RateLimitRPM  int
	Logger        *slog.Logger
}

type Server struct {
	http.Server

	gate       *auth.Gate
	classifier Classifier
	expenses   ExpenseStore
	logger     *slog.Logger

	secureCookies bool
	rateLimiter   *rateLimiter

	machinesMu sync.Mutex
	machines   map[string]*flow.Machine

	unsubscribe  func()
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(opts Options, gate *auth.Gate, classifier Classifier, expenses ExpenseStore) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rpm := opts.RateLimitRPM
	if rpm <= 0 {
		rpm = 60
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		gate:          gate,
		classifier:    classifier,
		expenses:      expenses,
		logger:        logger,
		secureCookies: opts.SecureCookies,
		rateLimiter:   newRateLimiter(rpm),
		machines:      make(map[string]*flow.Machine),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.Handle("POST /api/session", s.withCommon(http.HandlerFunc(s.handleSignIn)))
	mux.Handle("DELETE /api/session", s.withCommon(http.HandlerFunc(s.handleSignOut)))

	protected := func(h http.HandlerFunc) http.Handler {
		return s.withCommon(gate.Middleware(h))
	}
	mux.Handle("POST /api/chat", protected(s.handleChat))
	mux.Handle("GET /api/expenses", protected(s.handleListExpenses))
	mux.Handle("POST /api/expenses", protected(s.handleCreateExpense))
	mux.Handle("DELETE /api/expenses/{id}", protected(s.handleDeleteExpense))

	events, unsubscribe := gate.Subscribe()
	s.unsubscribe = unsubscribe
	go s.watchSessions(events)

	return s
}

// watchSessions drops session machines when their principal signs out, so a
// stale browser tab cannot keep mutating a closed session's list.
func (s *Server) watchSessions(events <-chan auth.Event) {
	for event := range events {
		if event.Type != auth.EventSignedOut {
			continue
		}
		s.machinesMu.Lock()
		for token, m := range s.machines {
			if m.Owner() == event.Principal.Username {
				m.SignOut()
				delete(s.machines, token)
			}
		}
		s.machinesMu.Unlock()
	}
}

// machineFor returns the session's machine, creating and resolving it on
// first use.
func (s *Server) machineFor(ctx context.Context, token string, principal auth.Principal) (*flow.Machine, error) {
	s.machinesMu.Lock()
	if m, ok := s.machines[token]; ok {
		s.machinesMu.Unlock()
		return m, nil
	}
	s.machinesMu.Unlock()

	expenses, err := s.expenses.ListExpenses(ctx, principal.Username)
	if err != nil {
		return nil, err
	}

	s.machinesMu.Lock()
	defer s.machinesMu.Unlock()
	if m, ok := s.machines[token]; ok {
		return m, nil
	}
	m := flow.NewMachine()
	m.ResolvePrincipal(principal.Username, expenses)
	s.machines[token] = m
	return m, nil
}

func (s *Server) dropMachine(token string) {
	s.machinesMu.Lock()
	defer s.machinesMu.Unlock()
	if m, ok := s.machines[token]; ok {
		m.SignOut()
		delete(s.machines, token)
	}
}

// Shutdown stops the listener, the session watcher and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Context key type to avoid collisions.
type contextKey string

const requestIDKey contextKey = "request_id"

// withCommon adds security headers, request ids, per-IP rate limiting on
// POSTs, and request logging.
func (s *Server) withCommon(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientAddr(r)

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP,
				"url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self'")

		rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// clientAddr extracts the client IP, preferring proxy headers.
func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if i := strings.IndexByte(ip, ','); i >= 0 {
			ip = ip[:i]
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
