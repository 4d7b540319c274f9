package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/app/storage"
)

// fakeGateway records outbound traffic and can fail selected recipients.
type fakeGateway struct {
	mu      sync.Mutex
	sent    []fakeMessage
	edits   []fakeEdit
	failFor map[int64]bool
	nextID  int
}

type fakeMessage struct {
	RecipientID int64
	Text        string
	PhotoURL    string
	Buttons     [][]Button
}

type fakeEdit struct {
	Ref  MessageRef
	Text string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: make(map[int64]bool)}
}

func (g *fakeGateway) record(recipientID int64, text, photo string, rows [][]Button) (MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[recipientID] {
		return MessageRef{}, fmt.Errorf("telegram: forbidden (403)")
	}
	g.nextID++
	g.sent = append(g.sent, fakeMessage{RecipientID: recipientID, Text: text, PhotoURL: photo, Buttons: rows})
	return MessageRef{ChatID: recipientID, MessageID: strconv.Itoa(g.nextID)}, nil
}

func (g *fakeGateway) Send(_ context.Context, recipientID int64, text string, rows ...[]Button) (MessageRef, error) {
	return g.record(recipientID, text, "", rows)
}

func (g *fakeGateway) SendPhoto(_ context.Context, recipientID int64, photoURL, caption string, rows ...[]Button) (MessageRef, error) {
	return g.record(recipientID, caption, photoURL, rows)
}

func (g *fakeGateway) Edit(_ context.Context, ref MessageRef, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edits = append(g.edits, fakeEdit{Ref: ref, Text: text})
	return nil
}

func (g *fakeGateway) ClearButtons(context.Context, MessageRef) error { return nil }

func (g *fakeGateway) MediaURL(_ context.Context, fileID string) (string, error) {
	return "https://files.test/" + fileID, nil
}

func (g *fakeGateway) editCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edits)
}

func (g *fakeGateway) messagesTo(recipientID int64) []fakeMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []fakeMessage
	for _, m := range g.sent {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	return out
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1500 ETB", 1500, false},
		{"2,500", 2500, false},
		{"  800birr ", 800, false},
		{"free", 0, true},
		{"0", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParsePrice(%q) = %d, want error", tc.in, got)
			} else if !market.IsCode(err, market.CodeValidation) {
				t.Errorf("ParsePrice(%q) error code = %v, want VALIDATION", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePrice(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFinalizeCreatesPendingProductAndNotifiesModerators(t *testing.T) {
	store := storage.New(nil)
	gw := newFakeGateway()
	admins := []int64{900, 901}
	listings := NewListings(store, gw, nil, admins)

	price, err := ParsePrice("1500 ETB")
	if err != nil {
		t.Fatalf("ParsePrice: %v", err)
	}
	product, err := listings.Finalize(context.Background(), 7, Draft{
		PhotoFileID: "photo-1",
		Title:       "Calculus Textbook 3rd Edition",
		Price:       price,
		Description: "/skip",
		Category:    "Academic Books",
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if product.Price != 1500 {
		t.Errorf("price = %d, want 1500", product.Price)
	}
	if product.Description != models.DescriptionPlaceholder {
		t.Errorf("description = %q, want placeholder", product.Description)
	}
	if product.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", product.Status)
	}
	if product.PhotoURL == "" {
		t.Error("photo URL not resolved")
	}

	for _, adminID := range admins {
		msgs := gw.messagesTo(adminID)
		if len(msgs) != 1 {
			t.Fatalf("admin %d received %d notifications, want 1", adminID, len(msgs))
		}
		if len(msgs[0].Buttons) == 0 {
			t.Errorf("admin %d notification has no decision buttons", adminID)
		}
	}
}

func TestFinalizeRejectsInvalidDraft(t *testing.T) {
	store := storage.New(nil)
	listings := NewListings(store, newFakeGateway(), nil, nil)
	ctx := context.Background()

	cases := []Draft{
		{Title: "No photo", Price: 100, Category: "Other"},
		{PhotoFileID: "p", Title: "   ", Price: 100, Category: "Other"},
		{PhotoFileID: "p", Title: "Bad price", Price: 0, Category: "Other"},
		{PhotoFileID: "p", Title: "Bad category", Price: 100, Category: "Spaceships"},
	}
	for i, draft := range cases {
		if _, err := listings.Finalize(ctx, 7, draft); !market.IsCode(err, market.CodeValidation) {
			t.Errorf("case %d: err = %v, want VALIDATION", i, err)
		}
	}
	if pending := listings.ListPending(); len(pending) != 0 {
		t.Errorf("%d products created from invalid drafts", len(pending))
	}
}

func approvedProduct(t *testing.T, store *storage.Store, gw Gateway, sellerID int64, title string) *models.Product {
	t.Helper()
	listings := NewListings(store, gw, nil, nil)
	product, err := listings.Finalize(context.Background(), sellerID, Draft{
		PhotoFileID: "p",
		Title:       title,
		Price:       500,
		Description: "fine",
		Category:    "Other",
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	mod := NewModeration(store, gw, 0, "testbot")
	if _, err := mod.Approve(context.Background(), product.ID, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	p, _ := store.GetProduct(product.ID)
	return p
}

func TestApproveTwiceYieldsOneTransitionAndOnePublication(t *testing.T) {
	store := storage.New(nil)
	gw := newFakeGateway()
	listings := NewListings(store, gw, nil, nil)
	product, err := listings.Finalize(context.Background(), 7, Draft{
		PhotoFileID: "p", Title: "Bike", Price: 900, Description: "ok", Category: "Other",
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	const channelID = -100500
	mod := NewModeration(store, gw, channelID, "testbot")
	ctx := context.Background()

	if _, err := mod.Approve(ctx, product.ID, 11); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	if _, err := mod.Approve(ctx, product.ID, 12); !market.IsCode(err, market.CodeConflict) {
		t.Fatalf("second Approve err = %v, want CONFLICT", err)
	}
	if _, err := mod.Reject(ctx, product.ID, 12); !market.IsCode(err, market.CodeConflict) {
		t.Fatalf("Reject after Approve err = %v, want CONFLICT", err)
	}

	if pubs := gw.messagesTo(channelID); len(pubs) != 1 {
		t.Errorf("channel received %d publications, want 1", len(pubs))
	}
	if notes := gw.messagesTo(7); len(notes) != 1 {
		t.Errorf("seller received %d notifications, want 1", len(notes))
	}
	got, _ := store.GetProduct(product.ID)
	if got.Status != models.StatusApproved || got.ModeratorID != 11 {
		t.Errorf("final record = %+v", got)
	}
}

func TestApproveUnknownProduct(t *testing.T) {
	mod := NewModeration(storage.New(nil), newFakeGateway(), 0, "testbot")
	if _, err := mod.Approve(context.Background(), 404, 1); !market.IsCode(err, market.CodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestChatOpenRelayEnd(t *testing.T) {
	store := storage.New(nil)
	gw := newFakeGateway()
	ctx := context.Background()

	const buyerID, sellerID = 10, 20
	product := approvedProduct(t, store, gw, sellerID, "Calculus Textbook 3rd Edition")
	chats := NewChats(store, gw, []int64{900})

	if _, err := chats.Open(ctx, buyerID, product.ID); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// second attempt while paired fails without a new session
	if _, err := chats.Open(ctx, buyerID, product.ID); !market.IsCode(err, market.CodeConflict) {
		t.Fatalf("second Open err = %v, want CONFLICT", err)
	}
	if n := store.CountChats(); n != 1 {
		t.Fatalf("active sessions = %d, want 1", n)
	}

	before := len(gw.messagesTo(sellerID))
	handled, err := chats.Relay(ctx, buyerID, "is this available?")
	if err != nil || !handled {
		t.Fatalf("Relay = (%v, %v), want (true, nil)", handled, err)
	}
	sellerMsgs := gw.messagesTo(sellerID)
	if len(sellerMsgs) != before+1 {
		t.Fatalf("seller received %d new messages, want 1", len(sellerMsgs)-before)
	}
	got := sellerMsgs[len(sellerMsgs)-1].Text
	if !strings.Contains(got, "Buyer") || !strings.Contains(got, product.Title) || !strings.Contains(got, "is this available?") {
		t.Errorf("forwarded text = %q, missing role tag, title or body", got)
	}

	if _, err := chats.End(ctx, buyerID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if handled, _ := chats.Relay(ctx, buyerID, "still there?"); handled {
		t.Error("message relayed after teardown")
	}
	if chats.Active(buyerID) || chats.Active(sellerID) {
		t.Error("participants still marked active after teardown")
	}
}

func TestChatOpenGuards(t *testing.T) {
	store := storage.New(nil)
	gw := newFakeGateway()
	ctx := context.Background()
	chats := NewChats(store, gw, nil)

	product := approvedProduct(t, store, gw, 20, "Lamp")

	if _, err := chats.Open(ctx, 20, product.ID); !market.IsCode(err, market.CodeValidation) {
		t.Errorf("self-chat err = %v, want VALIDATION", err)
	}
	if _, err := chats.Open(ctx, 10, 12345); !market.IsCode(err, market.CodeNotFound) {
		t.Errorf("unknown product err = %v, want NOT_FOUND", err)
	}

	listings := NewListings(store, gw, nil, nil)
	pending, err := listings.Finalize(ctx, 21, Draft{
		PhotoFileID: "p", Title: "Pending item", Price: 100, Description: "d", Category: "Other",
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := chats.Open(ctx, 10, pending.ID); !market.IsCode(err, market.CodeValidation) {
		t.Errorf("pending product err = %v, want VALIDATION", err)
	}
}

func TestBroadcastCountsAndCompletion(t *testing.T) {
	store := storage.New(nil)
	gw := newFakeGateway()
	ctx := context.Background()

	for i := int64(1); i <= 7; i++ {
		store.EnsureUser(ctx, i, fmt.Sprintf("user%d", i))
	}
	gw.failFor[3] = true
	gw.failFor[6] = true

	b := NewBroadcast(store, gw, []int64{900})
	b.delay = 0

	job, err := b.Compose(900, models.ScopeAllUsers)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(job.Recipients) != 7 {
		t.Fatalf("recipients = %d, want 7", len(job.Recipients))
	}

	if _, err := b.SetText(job.Token, "Exams start Monday"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if _, err := b.Confirm(ctx, job.Token); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	final := waitForCompletion(t, b, job.Token)
	if final.Sent+final.Failed != len(final.Recipients) {
		t.Errorf("sent(%d)+failed(%d) != recipients(%d)", final.Sent, final.Failed, len(final.Recipients))
	}
	if final.Sent != 5 || final.Failed != 2 {
		t.Errorf("sent/failed = %d/%d, want 5/2", final.Sent, final.Failed)
	}

	// completed jobs cannot be confirmed again
	if _, err := b.Confirm(ctx, job.Token); !market.IsCode(err, market.CodeConflict) {
		t.Errorf("re-Confirm err = %v, want CONFLICT", err)
	}
}

func TestBroadcastComposeRequiresAdmin(t *testing.T) {
	b := NewBroadcast(storage.New(nil), newFakeGateway(), []int64{900})
	if _, err := b.Compose(7, models.ScopeAllUsers); !market.IsCode(err, market.CodePermission) {
		t.Errorf("Compose by non-admin err = %v, want PERMISSION", err)
	}
}

func TestBroadcastProgressEditsOneMessage(t *testing.T) {
	store := storage.New(nil)
	gw := newFakeGateway()
	ctx := context.Background()

	const requester = int64(900)
	for i := int64(1); i <= 25; i++ {
		store.EnsureUser(ctx, i, fmt.Sprintf("user%d", i))
	}

	b := NewBroadcast(store, gw, []int64{requester})
	b.delay = 0

	job, err := b.Compose(requester, models.ScopeAllUsers)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if _, err := b.SetText(job.Token, "Library closes early today"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if _, err := b.Confirm(ctx, job.Token); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	waitForCompletion(t, b, job.Token)

	// 25 recipients cross the progress threshold twice: the first report is
	// sent, the second edits it in place, then the final summary is sent
	if got := len(gw.messagesTo(requester)); got != 2 {
		t.Errorf("requester received %d messages, want 2 (progress + summary)", got)
	}
	if got := gw.editCount(); got != 1 {
		t.Errorf("progress message edited %d times, want 1", got)
	}
}

func TestBroadcastCancelBeforeConfirm(t *testing.T) {
	store := storage.New(nil)
	gw := newFakeGateway()
	ctx := context.Background()
	store.EnsureUser(ctx, 1, "only")

	b := NewBroadcast(store, gw, []int64{900})
	job, err := b.Compose(900, models.ScopeAllUsers)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if _, err := b.SetText(job.Token, "never sent"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if err := b.Cancel(job.Token); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := b.Confirm(ctx, job.Token); !market.IsCode(err, market.CodeConflict) {
		t.Errorf("Confirm after Cancel err = %v, want CONFLICT", err)
	}
	if msgs := gw.messagesTo(1); len(msgs) != 0 {
		t.Errorf("cancelled broadcast delivered %d messages", len(msgs))
	}
}

func waitForCompletion(t *testing.T, b *Broadcast, token string) *models.BroadcastJob {
	t.Helper()
	for i := 0; i < 200; i++ {
		job, err := b.Get(token)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status == models.BroadcastCompleted {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("broadcast did not complete in time")
	return nil
}
