// Package storage is the process-scoped entity store: an in-memory
// write-through cache over Postgres. The cache is the working set; the
// database is the source of truth across restarts. When the database is
// absent or a call fails, the store degrades to cache-only operation with a
// logged warning and never surfaces the failure to the dispatcher.
package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/core/logger"

	"github.com/jmoiron/sqlx"
)

// Store holds the cached entities and their per-key guards.
type Store struct {
	db *sqlx.DB

	mu       sync.RWMutex
	users    map[int64]*models.User
	products map[int64]*models.Product
	nextID   int64

	chatMu        sync.Mutex
	chatByUser    map[int64]*models.ChatSession
	chatByProduct map[int64]*models.ChatSession
	nextChatID    int64

	userLocks    *KeyMutex
	productLocks *KeyMutex
}

// New constructs a Store. db may be nil, which puts the store into
// cache-only mode from the start.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:            db,
		users:         make(map[int64]*models.User),
		products:      make(map[int64]*models.Product),
		chatByUser:    make(map[int64]*models.ChatSession),
		chatByProduct: make(map[int64]*models.ChatSession),
		userLocks:     NewKeyMutex(),
		productLocks:  NewKeyMutex(),
	}
}

// Persistent reports whether a database backs the store.
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Hydrate loads users and products from the database into the cache. Chat
// sessions are process-local and start empty. A load failure leaves the
// store in cache-only mode rather than failing startup.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.db == nil {
		logger.DB.Info("store hydrate skipped",
			slog.String("event", "store.hydrate"),
			slog.String("mode", "cache_only"),
		)
		return nil
	}

	var users []models.User
	if err := s.db.SelectContext(ctx, &users, `SELECT id, name, banned, joined_at FROM users ORDER BY joined_at, id`); err != nil {
		s.degrade("store.hydrate.users", err)
		return nil
	}

	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, `SELECT id, seller_id, title, price, category, description, photo_url, status, moderator_id, decided_at, created_at FROM products ORDER BY id`); err != nil {
		s.degrade("store.hydrate.products", err)
		return nil
	}

	s.mu.Lock()
	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
	}
	for i := range products {
		p := products[i]
		s.products[p.ID] = &p
		if p.ID > s.nextID {
			s.nextID = p.ID
		}
	}
	userCount := len(s.users)
	productCount := len(s.products)
	s.mu.Unlock()

	logger.DB.Info("store hydrated",
		slog.String("event", "store.hydrate"),
		slog.Int("users", userCount),
		slog.Int("products", productCount),
	)
	return nil
}

// Flush writes the cached entities back to the database. Called on shutdown;
// during normal operation every mutation is written through immediately, so
// this is a safety net for rows that failed to persist while degraded.
func (s *Store) Flush(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	s.mu.RLock()
	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	products := make([]*models.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	s.mu.RUnlock()

	var failed int
	for _, u := range users {
		if err := s.upsertUser(ctx, u); err != nil {
			failed++
		}
	}
	for _, p := range products {
		if err := s.upsertProduct(ctx, p); err != nil {
			failed++
		}
	}

	logger.DB.Info("store flushed",
		slog.String("event", "store.flush"),
		slog.Int("users", len(users)),
		slog.Int("products", len(products)),
		slog.Int("failed", failed),
	)
	return nil
}

// LockUser serializes mutations for a user id.
func (s *Store) LockUser(id int64) { s.userLocks.Lock(id) }

// UnlockUser releases the user mutation guard.
func (s *Store) UnlockUser(id int64) { s.userLocks.Unlock(id) }

// LockProduct serializes mutations for a product id.
func (s *Store) LockProduct(id int64) { s.productLocks.Lock(id) }

// UnlockProduct releases the product mutation guard.
func (s *Store) UnlockProduct(id int64) { s.productLocks.Unlock(id) }

// degrade logs a failed database call. The cache stays authoritative for the
// rest of the process lifetime of the affected rows.
func (s *Store) degrade(event string, err error) {
	logger.DB.Warn("db call failed, continuing on cache",
		slog.String("event", event),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}
