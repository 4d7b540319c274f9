package storage

import (
	"context"
	"sort"
	"time"

	"github.com/freshmanacadamy/gebeyabot/app/models"
)

// EnsureUser registers the user if absent and returns the cached record.
// Re-registration refreshes the display name but never resets the banned
// flag or the joined timestamp.
func (s *Store) EnsureUser(ctx context.Context, id int64, name string) *models.User {
	s.LockUser(id)
	defer s.UnlockUser(id)

	s.mu.Lock()
	u, ok := s.users[id]
	if ok {
		if name != "" && u.Name != name {
			u.Name = name
		}
	} else {
		u = &models.User{ID: id, Name: name, JoinedAt: time.Now().UTC()}
		s.users[id] = u
	}
	snapshot := *u
	s.mu.Unlock()

	if err := s.upsertUser(ctx, &snapshot); err != nil {
		s.degrade("store.user.upsert", err)
	}
	return &snapshot
}

// GetUser returns a copy of the cached user, if known.
func (s *Store) GetUser(id int64) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	snapshot := *u
	return &snapshot, true
}

// ListUsers returns all users ordered by join time, then id.
func (s *Store) ListUsers() []*models.User {
	s.mu.RLock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		snapshot := *u
		out = append(out, &snapshot)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// SetBanned flips the banned flag and writes the change through.
func (s *Store) SetBanned(ctx context.Context, id int64, banned bool) (*models.User, bool) {
	s.LockUser(id)
	defer s.UnlockUser(id)

	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	u.Banned = banned
	snapshot := *u
	s.mu.Unlock()

	if err := s.upsertUser(ctx, &snapshot); err != nil {
		s.degrade("store.user.ban", err)
	}
	return &snapshot, true
}

// IsBanned reports whether the user exists and is banned.
func (s *Store) IsBanned(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return ok && u.Banned
}

func (s *Store) upsertUser(ctx context.Context, u *models.User) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, banned, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, banned = EXCLUDED.banned`,
		u.ID, u.Name, u.Banned, u.JoinedAt,
	)
	return err
}
