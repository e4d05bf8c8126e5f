package memory

import (
	"context"
	"sync"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

// DocStore is the in-process docstore.Store used for tests, demos, and
// running the binary without external backends.
type DocStore struct {
	mu   sync.RWMutex
	data map[string]map[string]docstore.Doc // collection -> id -> doc
}

func NewDocStore() *DocStore {
	return &DocStore{data: make(map[string]map[string]docstore.Doc)}
}

func (s *DocStore) Get(_ context.Context, collection, id string) (docstore.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *DocStore) Query(_ context.Context, collection string, filters map[string]any) ([]docstore.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docstore.Doc
	for _, doc := range s.data[collection] {
		if matches(doc, filters) {
			out = append(out, cloneDoc(doc))
		}
	}
	return out, nil
}

func (s *DocStore) Create(_ context.Context, collection, id string, doc docstore.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collection(collection)
	if _, ok := col[id]; ok {
		return domain.ErrConflict
	}
	col[id] = cloneDoc(doc)
	return nil
}

func (s *DocStore) CreateOrMerge(_ context.Context, collection, id string, doc docstore.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collection(collection)
	existing, ok := col[id]
	if !ok {
		col[id] = cloneDoc(doc)
		return nil
	}
	for k, v := range doc {
		existing[k] = v
	}
	return nil
}

func (s *DocStore) AtomicIncrement(_ context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collection(collection)
	doc, ok := col[id]
	if !ok {
		doc = docstore.Doc{}
		col[id] = doc
	}
	current := int64(0)
	switch v := doc[field].(type) {
	case float64:
		current = int64(v)
	case int64:
		current = v
	case int:
		current = int64(v)
	}
	// Stored as float64 to stay consistent with JSON-decoded documents.
	doc[field] = float64(current + delta)
	return nil
}

func (s *DocStore) collection(name string) map[string]docstore.Doc {
	col, ok := s.data[name]
	if !ok {
		col = make(map[string]docstore.Doc)
		s.data[name] = col
	}
	return col
}

func matches(doc docstore.Doc, filters map[string]any) bool {
	for field, want := range filters {
		if doc[field] != want {
			return false
		}
	}
	return true
}

// cloneDoc is a shallow copy one level deep; nested values are shared but
// never mutated by callers, which round-trip through JSON anyway.
func cloneDoc(doc docstore.Doc) docstore.Doc {
	out := make(docstore.Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
