package sessions

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/haasonsaas/showroom/pkg/models"
)

func TestMemoryStore_GetOrCreateHonorsSuppliedID(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "customer-42")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if session.ID != "customer-42" {
		t.Errorf("id = %q, want supplied id kept", session.ID)
	}

	again, err := store.GetOrCreate(ctx, "customer-42")
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if again.ID != session.ID {
		t.Errorf("second call created a new session: %q", again.ID)
	}

	fresh, err := store.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("empty id: %v", err)
	}
	if fresh.ID == "" || fresh.ID == "customer-42" {
		t.Errorf("fresh id = %q", fresh.ID)
	}
}

func TestMemoryStore_CreateDuplicateFails(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if _, err := store.Create(ctx, "dup"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, "dup"); err == nil {
		t.Error("duplicate create succeeded")
	}
}

func TestMemoryStore_RetentionTrimsOldest(t *testing.T) {
	store := NewMemoryStore(4)
	ctx := context.Background()
	if _, err := store.Create(ctx, "s"); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 10; i++ {
		err := store.AppendMessages(ctx, "s", &models.Message{
			Role:    models.RoleUser,
			Content: fmt.Sprintf("msg-%d", i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	history, err := store.History(ctx, "s", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("len = %d, want 4", len(history))
	}
	if history[0].Content != "msg-6" || history[3].Content != "msg-9" {
		t.Errorf("window = [%s .. %s], want [msg-6 .. msg-9]",
			history[0].Content, history[3].Content)
	}
}

func TestMemoryStore_HistoryLimit(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	store.Create(ctx, "s")
	for i := 0; i < 6; i++ {
		store.AppendMessages(ctx, "s", &models.Message{Role: models.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	history, err := store.History(ctx, "s", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[1].Content != "m5" {
		t.Errorf("history = %+v", history)
	}
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	store.Create(ctx, "s")

	msg := &models.Message{
		Role:    models.RoleAssistant,
		Content: "original",
		ToolCalls: []models.ToolCall{
			{ID: "call_1", Name: "list_cars", Input: []byte(`{"showSold":false}`)},
		},
	}
	if err := store.AppendMessages(ctx, "s", msg); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Mutating the input afterwards must not reach the stored copy.
	msg.Content = "mutated"
	msg.ToolCalls[0].Input[2] = 'X'

	history, _ := store.History(ctx, "s", 0)
	if history[0].Content != "original" {
		t.Errorf("stored content = %q", history[0].Content)
	}
	if string(history[0].ToolCalls[0].Input) != `{"showSold":false}` {
		t.Errorf("stored input = %s", history[0].ToolCalls[0].Input)
	}

	// Mutating the returned copy must not reach the store either.
	history[0].Content = "tampered"
	again, _ := store.History(ctx, "s", 0)
	if again[0].Content != "original" {
		t.Errorf("store mutated through returned copy: %q", again[0].Content)
	}
}

func TestMemoryStore_UnknownSession(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if _, err := store.History(ctx, "nope", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("History err = %v", err)
	}
	if err := store.AppendMessages(ctx, "nope", &models.Message{Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Append err = %v", err)
	}
	if err := store.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete err = %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	store.Create(ctx, "s")
	store.AppendMessages(ctx, "s", &models.Message{Content: "x"})

	if err := store.Delete(ctx, "s"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Errorf("session survived delete: %v", err)
	}
}
