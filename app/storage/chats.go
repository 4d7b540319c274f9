package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freshmanacadamy/gebeyabot/app/models"
)

// OpenChat creates an active session and registers it under both participant
// ids and the product id, all-or-nothing. It fails when either participant is
// already in a session or the product already has one.
func (s *Store) OpenChat(buyerID, sellerID, productID int64) (*models.ChatSession, bool) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	if _, busy := s.chatByUser[buyerID]; busy {
		return nil, false
	}
	if _, busy := s.chatByUser[sellerID]; busy {
		return nil, false
	}
	if _, busy := s.chatByProduct[productID]; busy {
		return nil, false
	}

	s.nextChatID++
	sess := &models.ChatSession{
		ID:        s.nextChatID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		ProductID: productID,
		StartedAt: time.Now().UTC(),
	}
	s.chatByUser[buyerID] = sess
	s.chatByUser[sellerID] = sess
	s.chatByProduct[productID] = sess
	return cloneChat(sess), true
}

// cloneChat copies a session including its message history, so callers never
// hold the cached object that AppendChatMessage mutates under chatMu.
func cloneChat(sess *models.ChatSession) *models.ChatSession {
	snapshot := *sess
	snapshot.Messages = append([]models.ChatMessage(nil), sess.Messages...)
	return &snapshot
}

// ChatByUser returns a copy of a participant's active session.
func (s *Store) ChatByUser(userID int64) (*models.ChatSession, bool) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	sess, ok := s.chatByUser[userID]
	if !ok {
		return nil, false
	}
	return cloneChat(sess), true
}

// ChatByProduct returns a copy of the active session over a product.
func (s *Store) ChatByProduct(productID int64) (*models.ChatSession, bool) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	sess, ok := s.chatByProduct[productID]
	if !ok {
		return nil, false
	}
	return cloneChat(sess), true
}

// ActiveChats returns copies of all active sessions, each listed once.
func (s *Store) ActiveChats() []*models.ChatSession {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	out := make([]*models.ChatSession, 0, len(s.chatByProduct))
	for _, sess := range s.chatByProduct {
		out = append(out, cloneChat(sess))
	}
	return out
}

// CountChats returns the number of active sessions.
func (s *Store) CountChats() int {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	return len(s.chatByProduct)
}

// AppendChatMessage records a relayed message in the sender's active session
// and returns a copy of the session, or false if the sender has none.
func (s *Store) AppendChatMessage(senderID int64, text string) (*models.ChatSession, bool) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	sess, ok := s.chatByUser[senderID]
	if !ok {
		return nil, false
	}
	sess.Messages = append(sess.Messages, models.ChatMessage{
		Role:   sess.RoleOf(senderID),
		Text:   text,
		SentAt: time.Now().UTC(),
	})
	return cloneChat(sess), true
}

// EndChat removes a participant's session under both participant keys and
// the product key. Removal is both-or-neither: a single lock scope covers
// all three indexes. The transcript is archived best-effort.
func (s *Store) EndChat(ctx context.Context, requesterID int64) (*models.ChatSession, bool) {
	s.chatMu.Lock()
	sess, ok := s.chatByUser[requesterID]
	if !ok {
		s.chatMu.Unlock()
		return nil, false
	}
	delete(s.chatByUser, sess.BuyerID)
	delete(s.chatByUser, sess.SellerID)
	delete(s.chatByProduct, sess.ProductID)
	snapshot := cloneChat(sess)
	s.chatMu.Unlock()

	s.archiveChat(ctx, snapshot)
	return snapshot, true
}

// archiveChat writes the finished session's transcript to the database.
// Failures only log; the teardown already happened.
func (s *Store) archiveChat(ctx context.Context, sess *models.ChatSession) {
	if s.db == nil {
		return
	}
	transcript, err := json.Marshal(sess.Messages)
	if err != nil {
		s.degrade("store.chat.encode", err)
		return
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_logs (buyer_id, seller_id, product_id, started_at, ended_at, transcript)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.BuyerID, sess.SellerID, sess.ProductID, sess.StartedAt, time.Now().UTC(), transcript,
	)
	if err != nil {
		s.degrade("store.chat.archive", err)
	}
}
