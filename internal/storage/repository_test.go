package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"spendlens/internal/core"
)

type RepositorySuite struct {
	suite.Suite
	repo *SQLiteRepository
	ctx  context.Context
}

func (s *RepositorySuite) SetupTest() {
	repo, err := NewSQLiteRepository(":memory:")
	s.Require().NoError(err)
	s.repo = repo
	s.ctx = context.Background()
}

func (s *RepositorySuite) TearDownTest() {
	s.Require().NoError(s.repo.Close())
}

func (s *RepositorySuite) expense(owner, details string) core.Expense {
	return core.Expense{
		Category:     core.CategoryMeals,
		Amount:       core.Money{Cents: 1250},
		Date:         "09-Jun",
		Details:      details,
		Participants: "",
		Owner:        owner,
	}
}

func (s *RepositorySuite) TestInsertAssignsIDAndCreatedAt() {
	stored, err := s.repo.InsertExpense(s.ctx, s.expense("alice", "lunch"))
	s.Require().NoError(err)

	s.NotZero(stored.ID)
	s.False(stored.CreatedAt.IsZero())
	s.Equal("alice", stored.Owner)
	s.Equal(int64(1250), stored.Amount.Cents)
}

func (s *RepositorySuite) TestInsertRejectsMissingOwner() {
	_, err := s.repo.InsertExpense(s.ctx, s.expense("", "lunch"))
	s.ErrorIs(err, core.ErrUnauthenticated)
}

func (s *RepositorySuite) TestInsertRejectsInvalidRecord() {
	e := s.expense("alice", "lunch")
	e.Category = "GROCERIES"
	_, err := s.repo.InsertExpense(s.ctx, e)
	s.ErrorIs(err, core.ErrInvalidCategory)
}

func (s *RepositorySuite) TestListByOwnerNewestFirst() {
	for _, details := range []string{"first", "second", "third"} {
		_, err := s.repo.InsertExpense(s.ctx, s.expense("alice", details))
		s.Require().NoError(err)
	}
	_, err := s.repo.InsertExpense(s.ctx, s.expense("bob", "not alice's"))
	s.Require().NoError(err)

	expenses, err := s.repo.ListByOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(expenses, 3)
	s.Equal("third", expenses[0].Details)
	s.Equal("second", expenses[1].Details)
	s.Equal("first", expenses[2].Details)
}

func (s *RepositorySuite) TestListByOwnerIdempotent() {
	for _, details := range []string{"first", "second", "third"} {
		_, err := s.repo.InsertExpense(s.ctx, s.expense("alice", details))
		s.Require().NoError(err)
	}

	once, err := s.repo.ListByOwner(s.ctx, "alice")
	s.Require().NoError(err)
	twice, err := s.repo.ListByOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(once, twice, "listing without intervening writes must not reorder")
}

func (s *RepositorySuite) TestListByOwnerEmpty() {
	expenses, err := s.repo.ListByOwner(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(expenses)
	s.NotNil(expenses, "empty list, not null")
}

func (s *RepositorySuite) TestDeleteOwned() {
	stored, err := s.repo.InsertExpense(s.ctx, s.expense("alice", "lunch"))
	s.Require().NoError(err)

	s.Require().NoError(s.repo.DeleteOwned(s.ctx, stored.ID, "alice"))

	expenses, err := s.repo.ListByOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(expenses)
}

func (s *RepositorySuite) TestDeleteOwnedCrossTenant() {
	stored, err := s.repo.InsertExpense(s.ctx, s.expense("alice", "lunch"))
	s.Require().NoError(err)

	err = s.repo.DeleteOwned(s.ctx, stored.ID, "bob")
	s.ErrorIs(err, core.ErrNotFound)

	expenses, err := s.repo.ListByOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(expenses, 1, "foreign delete must not touch the row")
}

func (s *RepositorySuite) TestDeleteOwnedMissing() {
	err := s.repo.DeleteOwned(s.ctx, 9999, "alice")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *RepositorySuite) TestUsersRoundTrip() {
	created, err := s.repo.CreateUser(s.ctx, "alice", "hash")
	s.Require().NoError(err)
	s.NotZero(created.ID)

	byName, err := s.repo.UserByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(created.ID, byName.ID)
	s.Equal("hash", byName.PasswordHash)

	byID, err := s.repo.UserByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)
}

func (s *RepositorySuite) TestUserUniqueUsername() {
	_, err := s.repo.CreateUser(s.ctx, "alice", "hash")
	s.Require().NoError(err)

	_, err = s.repo.CreateUser(s.ctx, "alice", "other")
	s.Error(err)
}

func (s *RepositorySuite) TestUserNotFound() {
	_, err := s.repo.UserByUsername(s.ctx, "ghost")
	s.ErrorIs(err, core.ErrNotFound)

	_, err = s.repo.UserByID(s.ctx, 42)
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *RepositorySuite) TestSessionRoundTrip() {
	user, err := s.repo.CreateUser(s.ctx, "alice", "hash")
	s.Require().NoError(err)

	expires := time.Now().Add(time.Hour)
	s.Require().NoError(s.repo.CreateSession(s.ctx, "tok-1", user.ID, expires))

	session, err := s.repo.SessionByToken(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal(user.ID, session.UserID)

	s.Require().NoError(s.repo.DeleteSession(s.ctx, "tok-1"))
	_, err = s.repo.SessionByToken(s.ctx, "tok-1")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *RepositorySuite) TestSessionExpiry() {
	user, err := s.repo.CreateUser(s.ctx, "alice", "hash")
	s.Require().NoError(err)

	s.Require().NoError(s.repo.CreateSession(s.ctx, "tok-old", user.ID, time.Now().Add(-time.Minute)))

	_, err = s.repo.SessionByToken(s.ctx, "tok-old")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *RepositorySuite) TestDeleteExpiredSessions() {
	user, err := s.repo.CreateUser(s.ctx, "alice", "hash")
	s.Require().NoError(err)

	s.Require().NoError(s.repo.CreateSession(s.ctx, "tok-old", user.ID, time.Now().Add(-time.Minute)))
	s.Require().NoError(s.repo.CreateSession(s.ctx, "tok-live", user.ID, time.Now().Add(time.Hour)))

	removed, err := s.repo.DeleteExpiredSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	_, err = s.repo.SessionByToken(s.ctx, "tok-live")
	s.NoError(err)
}

func (s *RepositorySuite) TestDeleteSessionMissingIsNoError() {
	s.NoError(s.repo.DeleteSession(s.ctx, "never-existed"))
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}
