package querycache

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testSnapshot() *Snapshot[string] {
	return &Snapshot[string]{
		Items:                []string{"a", "b"},
		AllFetchedItems:      []string{"a", "b"},
		Cursor:               "2",
		HasMore:              true,
		IsInfiniteScrollMode: true,
		CurrentPage:          1,
		TotalPages:           1,
	}
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	store := NewMemoryStore[string]()
	ctx := context.Background()

	if err := store.Set(ctx, "coins", testSnapshot()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "coins")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(testSnapshot(), got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStore_Get_CacheMiss(t *testing.T) {
	store := NewMemoryStore[string]()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryStore_Set_NilSnapshot(t *testing.T) {
	store := NewMemoryStore[string]()

	if err := store.Set(context.Background(), "coins", nil); !errors.Is(err, ErrNilSnapshot) {
		t.Errorf("Set(nil) = %v, want ErrNilSnapshot", err)
	}
}

func TestMemoryStore_LastWriterWins(t *testing.T) {
	store := NewMemoryStore[string]()
	ctx := context.Background()

	first := testSnapshot()
	second := testSnapshot()
	second.Cursor = "9"
	second.HasMore = false

	_ = store.Set(ctx, "coins", first)
	_ = store.Set(ctx, "coins", second)

	got, err := store.Get(ctx, "coins")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Cursor != "9" || got.HasMore {
		t.Errorf("Get() = %+v, want second snapshot", got)
	}
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := NewMemoryStore[string]()
	ctx := context.Background()

	snap := testSnapshot()
	_ = store.Set(ctx, "coins", snap)

	// Mutating the caller's snapshot must not leak into the store
	snap.Items[0] = "mutated"
	snap.AllFetchedItems = append(snap.AllFetchedItems, "c")

	got, _ := store.Get(ctx, "coins")
	if got.Items[0] != "a" {
		t.Errorf("stored Items[0] = %q, want %q", got.Items[0], "a")
	}
	if len(got.AllFetchedItems) != 2 {
		t.Errorf("stored AllFetchedItems len = %d, want 2", len(got.AllFetchedItems))
	}

	// Mutating a returned snapshot must not leak either
	got.Items[1] = "mutated"
	again, _ := store.Get(ctx, "coins")
	if again.Items[1] != "b" {
		t.Errorf("stored Items[1] = %q, want %q", again.Items[1], "b")
	}
}

func TestMemoryStore_DeleteAndClear(t *testing.T) {
	store := NewMemoryStore[string]()
	ctx := context.Background()

	_ = store.Set(ctx, "coins", testSnapshot())
	_ = store.Set(ctx, "creators", testSnapshot())

	if err := store.Delete(ctx, "coins"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "coins"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", store.Len())
	}
}

func TestSnapshot_CloneNil(t *testing.T) {
	var snap *Snapshot[int]
	if snap.Clone() != nil {
		t.Error("Clone of nil snapshot should be nil")
	}
}
