package telegram

import (
	"testing"

	"github.com/freshmanacadamy/gebeyabot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// wizardTestContext is a minimal tele.Context for exercising wizard handlers.
// Only the methods the handlers and send helpers touch are implemented; the
// embedded interface panics on anything else, which keeps the fake honest.
type wizardTestContext struct {
	tele.Context
	userID  int64
	text    string
	photo   *tele.Photo
	store   map[string]any
	replies []string
}

func newWizardContext(userID int64, text string) *wizardTestContext {
	return &wizardTestContext{userID: userID, text: text, store: make(map[string]any)}
}

func (c *wizardTestContext) Sender() *tele.User { return &tele.User{ID: c.userID} }
func (c *wizardTestContext) Chat() *tele.Chat   { return &tele.Chat{ID: c.userID} }
func (c *wizardTestContext) Update() tele.Update {
	return tele.Update{ID: 1}
}
func (c *wizardTestContext) Text() string { return c.text }
func (c *wizardTestContext) Message() *tele.Message {
	return &tele.Message{Text: c.text, Photo: c.photo}
}
func (c *wizardTestContext) Get(key string) any      { return c.store[key] }
func (c *wizardTestContext) Set(key string, val any) { c.store[key] = val }
func (c *wizardTestContext) Send(what any, _ ...any) error {
	if s, ok := what.(string); ok {
		c.replies = append(c.replies, s)
	}
	return nil
}

func TestWizardPriceRepromptsWithoutTransition(t *testing.T) {
	b := &Bot{fsm: state.NewMemoryManager()}
	const userID = int64(7)
	b.fsm.Begin(userID, stateSellPrice)

	for _, bad := range []string{"free", "a lot", "", "0"} {
		c := newWizardContext(userID, bad)
		if err := b.wizardPrice(c); err != nil {
			t.Fatalf("wizardPrice(%q): %v", bad, err)
		}
		if st := b.fsm.GetState(userID); st != stateSellPrice {
			t.Fatalf("after %q state = %s, want %s", bad, st, stateSellPrice)
		}
		if len(c.replies) != 1 {
			t.Fatalf("after %q got %d replies, want 1 re-prompt", bad, len(c.replies))
		}
	}

	c := newWizardContext(userID, "1500 ETB")
	if err := b.wizardPrice(c); err != nil {
		t.Fatalf("wizardPrice(valid): %v", err)
	}
	if st := b.fsm.GetState(userID); st != stateSellDescription {
		t.Fatalf("state = %s, want %s", st, stateSellDescription)
	}
	price, ok := b.fsm.GetInt64(userID, draftKeyPrice)
	if !ok || price != 1500 {
		t.Fatalf("stored price = (%d, %v), want (1500, true)", price, ok)
	}
}

func TestWizardImageRejectsTextInput(t *testing.T) {
	b := &Bot{fsm: state.NewMemoryManager()}
	const userID = int64(7)
	b.fsm.Begin(userID, stateSellImage)

	c := newWizardContext(userID, "no photo, just words")
	if err := b.wizardImage(c); err != nil {
		t.Fatalf("wizardImage: %v", err)
	}
	if st := b.fsm.GetState(userID); st != stateSellImage {
		t.Fatalf("state = %s, want %s", st, stateSellImage)
	}

	c = newWizardContext(userID, "")
	c.photo = &tele.Photo{File: tele.File{FileID: "photo-1"}}
	if err := b.wizardImage(c); err != nil {
		t.Fatalf("wizardImage(photo): %v", err)
	}
	if st := b.fsm.GetState(userID); st != stateSellTitle {
		t.Fatalf("state = %s, want %s", st, stateSellTitle)
	}
	if id, ok := b.fsm.GetString(userID, draftKeyPhoto); !ok || id != "photo-1" {
		t.Fatalf("stored photo id = (%q, %v), want (photo-1, true)", id, ok)
	}
}
