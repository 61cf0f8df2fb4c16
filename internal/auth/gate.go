package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendlens/internal/core"
	"spendlens/internal/storage"
)

// Principal is an authenticated account, stripped of credentials.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// EventType distinguishes session lifecycle events.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// Event is a session state change, delivered to subscribers.
type Event struct {
	Type      EventType
	Principal Principal
}

// Store is the session persistence the gate needs.
type Store interface {
	UserByUsername(ctx context.Context, username string) (storage.User, error)
	UserByID(ctx context.Context, id int64) (storage.User, error)
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	SessionByToken(ctx context.Context, token string) (storage.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Gate authenticates principals against the store and notifies subscribers
// of session changes.
type Gate struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	mu          sync.Mutex
	nextSubID   int
	subscribers map[int]chan Event
}

// NewGate creates a gate with the given session lifetime.
func NewGate(store Store, sessionTTL time.Duration, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:       store,
		ttl:         sessionTTL,
		logger:      logger,
		subscribers: make(map[int]chan Event),
	}
}

// SessionTTL returns the configured session lifetime.
func (g *Gate) SessionTTL() time.Duration {
	return g.ttl
}

// SignIn verifies the credentials and opens a session. Bad credentials are
// indistinguishable from a missing account.
func (g *Gate) SignIn(ctx context.Context, username, password string) (Principal, string, error) {
	user, err := g.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Principal{}, "", core.ErrUnauthenticated
		}
		return Principal{}, "", fmt.Errorf("look up user: %w", err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return Principal{}, "", core.ErrUnauthenticated
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return Principal{}, "", err
	}

	if err := g.store.CreateSession(ctx, token, user.ID, time.Now().Add(g.ttl)); err != nil {
		return Principal{}, "", fmt.Errorf("open session: %w", err)
	}

	principal := Principal{ID: user.ID, Username: user.Username}
	g.logger.InfoContext(ctx, "Principal signed in", "username", principal.Username)
	g.notify(Event{Type: EventSignedIn, Principal: principal})

	return principal, token, nil
}

// CurrentPrincipal resolves a session token to its principal. A missing or
// expired session is an unauthenticated state, not a failure.
func (g *Gate) CurrentPrincipal(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, core.ErrUnauthenticated
	}

	session, err := g.store.SessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Principal{}, core.ErrUnauthenticated
		}
		return Principal{}, fmt.Errorf("look up session: %w", err)
	}

	user, err := g.store.UserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Principal{}, core.ErrUnauthenticated
		}
		return Principal{}, fmt.Errorf("look up session user: %w", err)
	}

	return Principal{ID: user.ID, Username: user.Username}, nil
}

// SignOut closes the session. Signing out an unknown token is a no-op.
func (g *Gate) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	principal, err := g.CurrentPrincipal(ctx, token)
	known := err == nil

	if err := g.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	if known {
		g.logger.InfoContext(ctx, "Principal signed out", "username", principal.Username)
		g.notify(Event{Type: EventSignedOut, Principal: principal})
	}
	return nil
}

// RunSessionJanitor deletes expired sessions on a fixed interval until the
// context is canceled. SessionByToken already drops an expired session when
// its token is presented; the janitor catches tokens whose owners never
// return.
func (g *Gate) RunSessionJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := g.store.DeleteExpiredSessions(ctx)
			if err != nil {
				g.logger.ErrorContext(ctx, "Expired session cleanup failed", "error", err)
				continue
			}
			if count > 0 {
				g.logger.InfoContext(ctx, "Expired sessions removed", "count", count)
			}
		}
	}
}

// Subscribe registers for session events. The returned cancel function must
// be called to release the subscription.
func (g *Gate) Subscribe() (<-chan Event, func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextSubID
	g.nextSubID++
	ch := make(chan Event, 8)
	g.subscribers[id] = ch

	cancel := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if sub, ok := g.subscribers[id]; ok {
			delete(g.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (g *Gate) notify(event Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.subscribers {
		select {
		case ch <- event:
		default:
			// A subscriber that stopped draining loses events rather
			// than blocking sign-in.
		}
	}
}
