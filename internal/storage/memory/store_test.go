package memory

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		return New(WithShards(4))
	})
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	e := domain.NewLinkEntry("tok-copy", domain.Reference{ChatID: -1, MessageID: 1}, 0, time.Now())
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Mutating the inserted value or a returned copy must not leak into the store.
	e.Uses = 99
	got, err := store.Get(ctx, "tok-copy")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Uses != 0 {
		t.Fatalf("Uses = %d, want 0", got.Uses)
	}
	got.Uses = 42

	again, _ := store.Get(ctx, "tok-copy")
	if again.Uses != 0 {
		t.Fatalf("Uses after mutating copy = %d, want 0", again.Uses)
	}
}

func TestStore_InsertRejectsInvalidEntry(t *testing.T) {
	store := New()

	err := store.Insert(context.Background(), &domain.LinkEntry{Token: "tok", CreatedAt: time.Now()})
	if err == nil {
		t.Fatal("Insert should reject an entry without a reference")
	}
	if store.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", store.Count())
	}
}

func TestStore_Count(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	for _, tok := range []string{"a", "b", "c"} {
		if err := store.Insert(ctx, domain.NewLinkEntry(tok, domain.Reference{ChatID: -1, MessageID: 1}, 0, now)); err != nil {
			t.Fatalf("Insert(%s): %v", tok, err)
		}
	}
	if store.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", store.Count())
	}

	n, _ := store.DeleteExpired(ctx, now.Add(time.Hour))
	if n != 3 || store.Count() != 0 {
		t.Fatalf("DeleteExpired() = %d, Count() = %d; want 3, 0", n, store.Count())
	}
}
