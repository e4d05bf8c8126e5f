// Package docstore defines the generic document-store contract the core
// components persist through. Implementations live under internal/infra.
package docstore

import (
	"context"
	"encoding/json"
)

// Collection names used across the service.
const (
	ColSessionHistory = "session_history"
	ColUserStats      = "user_stats"
	ColEarnedBadges   = "earned_badges"
	ColDailyRecords   = "daily_records"
	ColDailySets      = "daily_sets"
)

// ColDailyLeaderboard returns the per-date leaderboard collection, keyed by
// user id within the collection.
func ColDailyLeaderboard(dateKey string) string {
	return "daily_leaderboard:" + dateKey
}

// Doc is a JSON-shaped document. Numeric values decode as float64, the way
// encoding/json produces them.
type Doc map[string]any

// Store is a minimal document store: typed collections of JSON documents with
// equality queries, conditional creation, and atomic numeric increments.
type Store interface {
	// Get returns the document or domain.ErrNotFound.
	Get(ctx context.Context, collection, id string) (Doc, error)

	// Query returns every document in the collection whose fields equal all
	// the given filters. A nil filter returns the whole collection. Ordering
	// is unspecified; callers sort.
	Query(ctx context.Context, collection string, filters map[string]any) ([]Doc, error)

	// Create stores the document only if the id is absent, returning
	// domain.ErrConflict otherwise. This is the primitive that makes daily
	// records and badge awards race-safe.
	Create(ctx context.Context, collection, id string, doc Doc) error

	// CreateOrMerge upserts, overwriting only the supplied fields.
	CreateOrMerge(ctx context.Context, collection, id string, doc Doc) error

	// AtomicIncrement adds delta to a numeric field, creating the document
	// and/or field as needed.
	AtomicIncrement(ctx context.Context, collection, id, field string, delta int64) error
}

// Encode converts a struct into a Doc via its JSON form.
func Encode(v any) (Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode populates v from a Doc via its JSON form.
func Decode(doc Doc, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
