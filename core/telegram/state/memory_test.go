package state

import (
	"sync"
	"testing"
)

func TestBeginOverwritesExistingSession(t *testing.T) {
	m := NewMemoryManager()
	m.Begin(1, State("step_one"))
	m.SetData(1, "title", "old draft")

	m.Begin(1, State("step_one"))

	if _, ok := m.GetString(1, "title"); ok {
		t.Fatal("payload from the discarded session should be gone")
	}
	if got := m.GetState(1); got != State("step_one") {
		t.Fatalf("state = %s, want step_one", got)
	}
}

func TestSingleSessionPerUser(t *testing.T) {
	m := NewMemoryManager()
	m.Begin(7, State("a"))
	m.SetState(7, State("b"))
	if got := m.GetState(7); got != State("b") {
		t.Fatalf("state = %s, want b", got)
	}
	if !m.InProgress(7) {
		t.Fatal("expected in-progress session")
	}
	m.Clear(7)
	if m.InProgress(7) {
		t.Fatal("cleared session should not be in progress")
	}
	if got := m.GetState(7); got != StateIdle {
		t.Fatalf("state after clear = %s, want idle", got)
	}
}

func TestPayloadTypes(t *testing.T) {
	m := NewMemoryManager()
	m.Begin(3, State("s"))
	m.SetData(3, "price", int64(1500))
	m.SetData(3, "title", "Calculus Textbook")

	if v, ok := m.GetInt64(3, "price"); !ok || v != 1500 {
		t.Fatalf("price = %d ok=%v", v, ok)
	}
	if v, ok := m.GetString(3, "title"); !ok || v != "Calculus Textbook" {
		t.Fatalf("title = %q ok=%v", v, ok)
	}
	if _, ok := m.GetInt64(3, "title"); ok {
		t.Fatal("type mismatch should not be ok")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewMemoryManager()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.Begin(id, State("x"))
			m.SetData(id, "k", id)
			m.GetState(id)
			m.Clear(id)
		}(int64(i % 4))
	}
	wg.Wait()
}
