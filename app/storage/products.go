package storage

import (
	"context"
	"sort"
	"time"

	"github.com/freshmanacadamy/gebeyabot/app/models"
)

// CreateProduct assigns the next product id, stores the draft and writes it
// through. The caller provides everything except ID, Status and CreatedAt.
func (s *Store) CreateProduct(ctx context.Context, draft models.Product) *models.Product {
	s.mu.Lock()
	s.nextID++
	draft.ID = s.nextID
	draft.Status = models.StatusPending
	draft.CreatedAt = time.Now().UTC()
	p := draft
	s.products[p.ID] = &p
	snapshot := p
	s.mu.Unlock()

	if err := s.upsertProduct(ctx, &snapshot); err != nil {
		s.degrade("store.product.insert", err)
	}
	return &snapshot
}

// GetProduct returns a copy of the cached product, if known.
func (s *Store) GetProduct(id int64) (*models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, false
	}
	snapshot := *p
	return &snapshot, true
}

// ListByStatus returns products with the given status ordered by id.
func (s *Store) ListByStatus(status models.ProductStatus) []*models.Product {
	s.mu.RLock()
	out := make([]*models.Product, 0)
	for _, p := range s.products {
		if p.Status == status {
			snapshot := *p
			out = append(out, &snapshot)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListBySeller returns all products of one seller ordered by id.
func (s *Store) ListBySeller(sellerID int64) []*models.Product {
	s.mu.RLock()
	out := make([]*models.Product, 0)
	for _, p := range s.products {
		if p.SellerID == sellerID {
			snapshot := *p
			out = append(out, &snapshot)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountProducts returns total and per-status counts.
func (s *Store) CountProducts() (total, pending, approved, rejected int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		total++
		switch p.Status {
		case models.StatusPending:
			pending++
		case models.StatusApproved:
			approved++
		case models.StatusRejected:
			rejected++
		}
	}
	return
}

// DecideIfPending atomically moves a pending product to the given decided
// status, recording the moderator and decision time. It returns the updated
// product and true when this call won the transition; when the product was
// already decided it returns the current record and false. Callers treat the
// false case as "already decided", not as an error.
func (s *Store) DecideIfPending(ctx context.Context, id int64, status models.ProductStatus, moderatorID int64) (*models.Product, bool, bool) {
	s.LockProduct(id)
	defer s.UnlockProduct(id)

	s.mu.Lock()
	p, ok := s.products[id]
	if !ok {
		s.mu.Unlock()
		return nil, false, false
	}
	if p.Status != models.StatusPending {
		snapshot := *p
		s.mu.Unlock()
		return &snapshot, false, true
	}
	now := time.Now().UTC()
	p.Status = status
	p.ModeratorID = moderatorID
	p.DecidedAt = &now
	snapshot := *p
	s.mu.Unlock()

	// The WHERE clause repeats the pending check so the row transitions at
	// most once even if the cache was rebuilt mid-race.
	if s.db != nil {
		_, err := s.db.ExecContext(ctx, `
			UPDATE products
			SET status = $1, moderator_id = $2, decided_at = $3
			WHERE id = $4 AND status = 'pending'`,
			string(status), moderatorID, now, id,
		)
		if err != nil {
			s.degrade("store.product.decide", err)
		}
	}
	return &snapshot, true, true
}

func (s *Store) upsertProduct(ctx context.Context, p *models.Product) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, seller_id, title, price, category, description, photo_url, status, moderator_id, decided_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			moderator_id = EXCLUDED.moderator_id,
			decided_at = EXCLUDED.decided_at`,
		p.ID, p.SellerID, p.Title, p.Price, p.Category, p.Description, p.PhotoURL,
		string(p.Status), p.ModeratorID, p.DecidedAt, p.CreatedAt,
	)
	return err
}
