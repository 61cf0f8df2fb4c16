package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlens/internal/core"
	"spendlens/internal/storage"
)

func testGate(t *testing.T) (*Gate, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGate(repo, time.Hour, logger), repo
}

func createUser(t *testing.T, repo *storage.SQLiteRepository, username, password string) {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	_, err = repo.CreateUser(context.Background(), username, hash)
	require.NoError(t, err)
}

func TestSignInAndCurrentPrincipal(t *testing.T) {
	gate, repo := testGate(t)
	createUser(t, repo, "alice", "correct horse")

	principal, token, err := gate.SignIn(context.Background(), "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.Username)
	require.NotEmpty(t, token)

	resolved, err := gate.CurrentPrincipal(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, principal, resolved)
}

func TestSignInRejections(t *testing.T) {
	gate, repo := testGate(t)
	createUser(t, repo, "alice", "correct horse")

	_, _, err := gate.SignIn(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	_, _, err = gate.SignIn(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, core.ErrUnauthenticated, "missing account reads like bad credentials")
}

func TestSignOutClosesSession(t *testing.T) {
	gate, repo := testGate(t)
	createUser(t, repo, "alice", "correct horse")

	_, token, err := gate.SignIn(context.Background(), "alice", "correct horse")
	require.NoError(t, err)

	require.NoError(t, gate.SignOut(context.Background(), token))

	_, err = gate.CurrentPrincipal(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	assert.NoError(t, gate.SignOut(context.Background(), "unknown-token"))
}

func TestSessionJanitorPrunesExpiredSessions(t *testing.T) {
	gate, repo := testGate(t)
	createUser(t, repo, "alice", "correct horse")

	_, live, err := gate.SignIn(context.Background(), "alice", "correct horse")
	require.NoError(t, err)

	user, err := repo.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, repo.CreateSession(context.Background(), "stale-token", user.ID, time.Now().Add(-time.Hour)))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = gate.RunSessionJanitor(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	count, err := repo.DeleteExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "janitor should have already removed the stale session")

	_, err = gate.CurrentPrincipal(context.Background(), live)
	assert.NoError(t, err, "live sessions survive the janitor")
}

func TestCurrentPrincipalEmptyToken(t *testing.T) {
	gate, _ := testGate(t)
	_, err := gate.CurrentPrincipal(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestSubscribeReceivesSessionEvents(t *testing.T) {
	gate, repo := testGate(t)
	createUser(t, repo, "alice", "correct horse")

	events, cancel := gate.Subscribe()
	defer cancel()

	_, token, err := gate.SignIn(context.Background(), "alice", "correct horse")
	require.NoError(t, err)
	require.NoError(t, gate.SignOut(context.Background(), token))

	first := <-events
	assert.Equal(t, EventSignedIn, first.Type)
	assert.Equal(t, "alice", first.Principal.Username)

	second := <-events
	assert.Equal(t, EventSignedOut, second.Type)
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	gate, repo := testGate(t)
	createUser(t, repo, "alice", "correct horse")

	events, cancel := gate.Subscribe()
	cancel()

	_, _, err := gate.SignIn(context.Background(), "alice", "correct horse")
	require.NoError(t, err)

	_, open := <-events
	assert.False(t, open, "canceled subscription channel is closed")
}

func TestMiddleware(t *testing.T) {
	gate, repo := testGate(t)
	createUser(t, repo, "alice", "correct horse")

	_, token, err := gate.SignIn(context.Background(), "alice", "correct horse")
	require.NoError(t, err)

	var seen *Principal
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); ok {
			seen = &p
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bogus token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "bogus"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("live session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "alice", seen.Username)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestGenerateSessionTokenUnique(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
