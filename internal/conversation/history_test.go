package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryStore(client, time.Hour)
}

func TestHistoryAppendAndList(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "15550001234", HistoryEntry{Role: "user", Body: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, "15550001234", HistoryEntry{Role: "assistant", Body: "welcome"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := store.List(ctx, "15550001234", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != "user" || entries[0].Body != "hi" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Role != "assistant" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	if entries[0].ID == "" || entries[0].Timestamp.IsZero() {
		t.Fatal("expected id and timestamp to be filled in")
	}
}

func TestHistoryListLimit(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, "15550001234", HistoryEntry{Role: "user", Body: "msg"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, err := store.List(ctx, "15550001234", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestHistoryIsolatedByPhone(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "111", HistoryEntry{Role: "user", Body: "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := store.List(ctx, "222", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries for other number, got %d", len(entries))
	}
}

func TestHistoryNilStore(t *testing.T) {
	var store *HistoryStore
	if err := store.Append(context.Background(), "111", HistoryEntry{Body: "x"}); err != nil {
		t.Fatalf("nil store append should be a no-op: %v", err)
	}
	entries, err := store.List(context.Background(), "111", 0)
	if err != nil || entries != nil {
		t.Fatalf("nil store list should return nothing: %v %v", entries, err)
	}
}
