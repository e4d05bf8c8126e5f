package redis

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

func newTestStore(t *testing.T) (*DocStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewDocStore(client), mr
}

func TestDocStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	in := docstore.Doc{
		"userId": "u1",
		"score":  float64(540),
		"ids":    []any{"q1", "q2"},
	}
	if err := store.Create(ctx, "records", "a", in); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := store.Get(ctx, "records", "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out["userId"] != "u1" || out["score"] != float64(540) {
		t.Fatalf("unexpected doc %v", out)
	}
	ids, ok := out["ids"].([]any)
	if !ok || len(ids) != 2 || ids[0] != "q1" {
		t.Fatalf("slice field mangled: %v", out["ids"])
	}
	if _, present := out[idField]; present {
		t.Fatalf("internal id marker leaked into the document")
	}
}

func TestDocStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "records", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocStoreConditionalCreate(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.Create(ctx, "daily", "u1:2025-06-10", docstore.Doc{"score": float64(300)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Create(ctx, "daily", "u1:2025-06-10", docstore.Doc{"score": float64(720)})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	doc, err := store.Get(ctx, "daily", "u1:2025-06-10")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["score"] != float64(300) {
		t.Fatalf("losing writer overwrote the document: %v", doc)
	}
}

func TestDocStoreCreateOrMerge(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.CreateOrMerge(ctx, "stats", "u1", docstore.Doc{"bestPercent": float64(50), "userId": "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateOrMerge(ctx, "stats", "u1", docstore.Doc{"bestPercent": float64(80)}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	doc, err := store.Get(ctx, "stats", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["bestPercent"] != float64(80) || doc["userId"] != "u1" {
		t.Fatalf("merge lost fields: %v", doc)
	}
}

func TestDocStoreAtomicIncrement(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.AtomicIncrement(ctx, "stats", "u1", "totalPoints", 30); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.AtomicIncrement(ctx, "stats", "u1", "totalPoints", 50); err != nil {
		t.Fatalf("increment again: %v", err)
	}

	doc, err := store.Get(ctx, "stats", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Counters live as bare integers so HINCRBY works; they decode numerically.
	if doc["totalPoints"] != float64(80) {
		t.Fatalf("totalPoints = %v (%T), want 80", doc["totalPoints"], doc["totalPoints"])
	}
}

func TestDocStoreIncrementThenMergeCoexist(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.AtomicIncrement(ctx, "stats", "u1", "totalSessions", 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.CreateOrMerge(ctx, "stats", "u1", docstore.Doc{"bestPercent": float64(75)}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := store.AtomicIncrement(ctx, "stats", "u1", "totalSessions", 1); err != nil {
		t.Fatalf("increment 2: %v", err)
	}

	doc, err := store.Get(ctx, "stats", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["totalSessions"] != float64(2) || doc["bestPercent"] != float64(75) {
		t.Fatalf("fields stepped on each other: %v", doc)
	}
}

func TestDocStoreQueryFilters(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	store.Create(ctx, "badges", "u1:first", docstore.Doc{"userId": "u1", "badgeId": "first"})
	store.Create(ctx, "badges", "u1:owl", docstore.Doc{"userId": "u1", "badgeId": "owl"})
	store.Create(ctx, "badges", "u2:first", docstore.Doc{"userId": "u2", "badgeId": "first"})

	docs, err := store.Query(ctx, "badges", map[string]any{"userId": "u1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 badges for u1, got %d", len(docs))
	}

	all, err := store.Query(ctx, "badges", nil)
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(all))
	}
}

func TestDocStoreQuerySkipsOrphanedRegistryEntries(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	store.Create(ctx, "badges", "u1:first", docstore.Doc{"userId": "u1"})
	store.Create(ctx, "badges", "u1:owl", docstore.Doc{"userId": "u1"})
	// Simulate an expired document whose registry entry is still around.
	mr.Del(docKey("badges", "u1:owl"))

	docs, err := store.Query(ctx, "badges", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected orphan to be skipped, got %d docs", len(docs))
	}
}
