package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/freshmanacadamy/gebeyabot/app/models"
)

func newTestStore() *Store {
	return New(nil)
}

func TestEnsureUserCreateIfAbsent(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	u := s.EnsureUser(ctx, 42, "Abel")
	if u.ID != 42 || u.Name != "Abel" || u.Banned {
		t.Fatalf("unexpected user: %+v", u)
	}
	joined := u.JoinedAt

	// re-registration keeps joined time and banned flag
	if _, ok := s.SetBanned(ctx, 42, true); !ok {
		t.Fatal("SetBanned failed for existing user")
	}
	again := s.EnsureUser(ctx, 42, "Abel K")
	if !again.Banned {
		t.Error("re-registration reset banned flag")
	}
	if !again.JoinedAt.Equal(joined) {
		t.Error("re-registration changed joined time")
	}
	if again.Name != "Abel K" {
		t.Errorf("name not refreshed: %q", again.Name)
	}
	if s.CountUsers() != 1 {
		t.Errorf("CountUsers = %d, want 1", s.CountUsers())
	}
}

func TestDecideIfPendingSingleTransition(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	p := s.CreateProduct(ctx, models.Product{SellerID: 1, Title: "Desk Lamp", Price: 300, Category: "Dorm & Furniture"})
	if p.Status != models.StatusPending {
		t.Fatalf("new product status = %s, want pending", p.Status)
	}

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			_, won, found := s.DecideIfPending(ctx, p.ID, models.StatusApproved, admin)
			if !found {
				t.Error("product disappeared")
				return
			}
			wins <- won
		}(int64(100 + i))
	}
	wg.Wait()
	close(wins)

	var winners int
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("%d decisions took effect, want exactly 1", winners)
	}

	got, _ := s.GetProduct(p.ID)
	if got.Status != models.StatusApproved {
		t.Errorf("final status = %s, want approved", got.Status)
	}
	if got.DecidedAt == nil || got.ModeratorID == 0 {
		t.Error("moderator fields not recorded")
	}
}

func TestDecideIfPendingUnknownProduct(t *testing.T) {
	s := newTestStore()
	if _, _, found := s.DecideIfPending(context.Background(), 999, models.StatusRejected, 1); found {
		t.Error("expected not-found for unknown product")
	}
}

func TestChatIndexesResolveSameSession(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	sess, ok := s.OpenChat(10, 20, 5)
	if !ok {
		t.Fatal("OpenChat failed")
	}

	byBuyer, _ := s.ChatByUser(10)
	bySeller, _ := s.ChatByUser(20)
	byProduct, _ := s.ChatByProduct(5)
	if byBuyer.ID != sess.ID || bySeller.ID != sess.ID || byProduct.ID != sess.ID {
		t.Fatal("indexes resolve to different sessions")
	}

	// second chat for a busy participant is refused
	if _, ok := s.OpenChat(10, 30, 6); ok {
		t.Error("buyer in two sessions")
	}
	if _, ok := s.OpenChat(30, 20, 6); ok {
		t.Error("seller in two sessions")
	}
	if _, ok := s.OpenChat(30, 40, 5); ok {
		t.Error("product in two sessions")
	}

	ended, ok := s.EndChat(ctx, 20)
	if !ok || ended.ID != sess.ID {
		t.Fatal("EndChat did not return the active session")
	}
	if _, ok := s.ChatByUser(10); ok {
		t.Error("buyer key survived teardown")
	}
	if _, ok := s.ChatByUser(20); ok {
		t.Error("seller key survived teardown")
	}
	if _, ok := s.ChatByProduct(5); ok {
		t.Error("product key survived teardown")
	}
}

func TestAppendChatMessageTagsRole(t *testing.T) {
	s := newTestStore()
	if _, ok := s.OpenChat(10, 20, 5); !ok {
		t.Fatal("OpenChat failed")
	}

	sess, ok := s.AppendChatMessage(10, "is this available?")
	if !ok {
		t.Fatal("append failed for active participant")
	}
	if len(sess.Messages) != 1 {
		t.Fatalf("history length = %d, want 1", len(sess.Messages))
	}
	if sess.Messages[0].Role != models.RoleBuyer {
		t.Errorf("role = %s, want buyer", sess.Messages[0].Role)
	}

	if _, ok := s.AppendChatMessage(99, "hello"); ok {
		t.Error("append succeeded for non-participant")
	}
}

func TestChatAccessorsReturnSnapshots(t *testing.T) {
	s := newTestStore()
	if _, ok := s.OpenChat(10, 20, 5); !ok {
		t.Fatal("OpenChat failed")
	}

	held, _ := s.ChatByUser(10)

	// concurrent appends must never show through a previously returned session
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendChatMessage(10, "still there?")
		}()
		if got := len(held.Messages); got != 0 {
			t.Fatalf("held snapshot grew to %d messages", got)
		}
	}
	wg.Wait()

	if got := len(held.Messages); got != 0 {
		t.Fatalf("held snapshot grew to %d messages", got)
	}
	fresh, _ := s.ChatByUser(10)
	if len(fresh.Messages) != 8 {
		t.Fatalf("fresh lookup has %d messages, want 8", len(fresh.Messages))
	}

	held.Messages = append(held.Messages, models.ChatMessage{Role: models.RoleBuyer, Text: "local"})
	again, _ := s.ChatByUser(10)
	if len(again.Messages) != 8 {
		t.Error("mutating a returned session leaked into the store")
	}
}

func TestKeyMutexSerializesPerKey(t *testing.T) {
	km := NewKeyMutex()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock(7)
			counter++
			km.Unlock(7)
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}

	km.mu.Lock()
	leftover := len(km.locks)
	km.mu.Unlock()
	if leftover != 0 {
		t.Errorf("%d lock entries leaked", leftover)
	}
}
