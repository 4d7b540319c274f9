package services

import (
	"context"
	"log/slog"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/app/storage"
	"github.com/freshmanacadamy/gebeyabot/core/logger"
)

// Users handles registration and moderation of user accounts.
type Users struct {
	store *storage.Store
}

// NewUsers builds the user service.
func NewUsers(store *storage.Store) *Users {
	return &Users{store: store}
}

// Register creates the user on first contact and returns the record. Banned
// users are still returned; callers refuse service based on the flag.
func (u *Users) Register(ctx context.Context, userID int64, name string) *models.User {
	user := u.store.EnsureUser(ctx, userID, name)
	logger.SVCUsers.Debug("user registered",
		slog.String("event", "register"),
		slog.Int64("user_id", userID),
	)
	return user
}

// Get returns the user or a NotFound error.
func (u *Users) Get(userID int64) (*models.User, error) {
	user, ok := u.store.GetUser(userID)
	if !ok {
		return nil, market.NotFound("user %d is not registered", userID)
	}
	return user, nil
}

// List returns all users ordered by join time.
func (u *Users) List() []*models.User {
	return u.store.ListUsers()
}

// Count returns the number of registered users.
func (u *Users) Count() int {
	return u.store.CountUsers()
}

// IsBanned reports whether the user is currently banned.
func (u *Users) IsBanned(userID int64) bool {
	return u.store.IsBanned(userID)
}

// SetBanned flips the ban flag on an existing user.
func (u *Users) SetBanned(ctx context.Context, userID int64, banned bool) (*models.User, error) {
	user, ok := u.store.SetBanned(ctx, userID, banned)
	if !ok {
		return nil, market.NotFound("user %d is not registered", userID)
	}
	logger.SVCUsers.Info("ban flag updated",
		slog.String("event", "ban"),
		slog.Int64("user_id", userID),
		slog.Bool("banned", banned),
	)
	return user, nil
}
