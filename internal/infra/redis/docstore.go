package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

// DocStore implements docstore.Store on Redis. Layout:
//   - each document is a hash at doc:{collection}:{id}, one JSON-encoded
//     value per field (integers stay bare, so HINCRBY works on them)
//   - each collection keeps an id registry set at col:{collection} for Query
//
// Conditional create rides on HSETNX of the reserved "_id" field: only the
// first writer of a document wins it, which is what makes daily records and
// badge awards race-safe across instances.
type DocStore struct {
	client *redis.Client
}

func NewDocStore(client *redis.Client) *DocStore {
	return &DocStore{client: client}
}

const idField = "_id"

func (s *DocStore) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	fields, err := s.client.HGetAll(ctx, docKey(collection, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeFields(fields)
}

func (s *DocStore) Query(ctx context.Context, collection string, filters map[string]any) ([]docstore.Doc, error) {
	ids, err := s.client.SMembers(ctx, colKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers: %w", err)
	}
	var out []docstore.Doc
	for _, id := range ids {
		doc, err := s.Get(ctx, collection, id)
		if err != nil {
			if isNotFound(err) {
				continue // registry entry outlived its document
			}
			return nil, err
		}
		if matches(doc, filters) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *DocStore) Create(ctx context.Context, collection, id string, doc docstore.Doc) error {
	created, err := s.client.HSetNX(ctx, docKey(collection, id), idField, id).Result()
	if err != nil {
		return fmt.Errorf("hsetnx: %w", err)
	}
	if !created {
		return domain.ErrConflict
	}
	return s.writeFields(ctx, collection, id, doc)
}

func (s *DocStore) CreateOrMerge(ctx context.Context, collection, id string, doc docstore.Doc) error {
	if err := s.client.HSet(ctx, docKey(collection, id), idField, id).Err(); err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	return s.writeFields(ctx, collection, id, doc)
}

func (s *DocStore) AtomicIncrement(ctx context.Context, collection, id, field string, delta int64) error {
	pipe := s.client.Pipeline()
	pipe.HSetNX(ctx, docKey(collection, id), idField, id)
	pipe.HIncrBy(ctx, docKey(collection, id), field, delta)
	pipe.SAdd(ctx, colKey(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hincrby: %w", err)
	}
	return nil
}

func (s *DocStore) writeFields(ctx context.Context, collection, id string, doc docstore.Doc) error {
	pipe := s.client.Pipeline()
	for field, value := range doc {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", field, err)
		}
		pipe.HSet(ctx, docKey(collection, id), field, string(raw))
	}
	pipe.SAdd(ctx, colKey(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hset fields: %w", err)
	}
	return nil
}

func docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func colKey(collection string) string {
	return "col:" + collection
}

func decodeFields(fields map[string]string) (docstore.Doc, error) {
	doc := make(docstore.Doc, len(fields))
	for field, raw := range fields {
		if field == idField {
			continue
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			// HINCRBY writes bare integers, which are valid JSON, so this
			// only triggers for the id marker or corrupt data.
			value = raw
		}
		doc[field] = value
	}
	return doc, nil
}

func matches(doc docstore.Doc, filters map[string]any) bool {
	for field, want := range filters {
		if doc[field] != want {
			return false
		}
	}
	return true
}
