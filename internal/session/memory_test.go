package session

import (
	"context"
	"testing"
	"time"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected nil for an unknown chat")
	}

	sess := &domain.Session{ChatID: 1, State: domain.StateCollectingName, Name: "Иван Петров"}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, err = store.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "Иван Петров" || got.State != domain.StateCollectingName {
		t.Fatalf("unexpected session: %+v", got)
	}

	// The store must hand out copies, not aliases.
	got.Name = "mutated"
	again, _ := store.Get(ctx, 1)
	if again.Name != "Иван Петров" {
		t.Fatal("store returned an aliased session")
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get(ctx, 1)
	if got != nil {
		t.Fatal("expected nil after delete")
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.Put(ctx, &domain.Session{ChatID: 5}); err != nil {
		t.Fatal(err)
	}

	current = current.Add(30 * time.Second)
	if got, _ := store.Get(ctx, 5); got == nil {
		t.Fatal("session expired too early")
	}

	current = current.Add(2 * time.Minute)
	if got, _ := store.Get(ctx, 5); got != nil {
		t.Fatal("session should have expired")
	}
}
