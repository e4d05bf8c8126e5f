package app

import (
	"context"
	"errors"
	"sync"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

// stubStore is an in-memory docstore.Store with failure injection, used by
// the app tests. (The real memory implementation lives in infra/memory, which
// imports this package and therefore cannot back in-package tests.)
type stubStore struct {
	mu             sync.Mutex
	data           map[string]map[string]docstore.Doc
	failIncrements int // next N AtomicIncrement calls fail
	failCreates    int // next N Create calls fail (not with conflict)

	// afterMerge, when set, runs on the stored document right after a
	// CreateOrMerge applies, simulating a concurrent writer landing last.
	afterMerge func(collection, id string, doc docstore.Doc)
}

func newStubStore() *stubStore {
	return &stubStore{data: make(map[string]map[string]docstore.Doc)}
}

var errStubUnavailable = errors.New("store unavailable")

func (s *stubStore) col(name string) map[string]docstore.Doc {
	col, ok := s.data[name]
	if !ok {
		col = make(map[string]docstore.Doc)
		s.data[name] = col
	}
	return col
}

func (s *stubStore) Get(_ context.Context, collection, id string) (docstore.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make(docstore.Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (s *stubStore) Query(_ context.Context, collection string, filters map[string]any) ([]docstore.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []docstore.Doc
	for _, doc := range s.data[collection] {
		match := true
		for field, want := range filters {
			if doc[field] != want {
				match = false
				break
			}
		}
		if match {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *stubStore) Create(_ context.Context, collection, id string, doc docstore.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreates > 0 {
		s.failCreates--
		return errStubUnavailable
	}
	col := s.col(collection)
	if _, ok := col[id]; ok {
		return domain.ErrConflict
	}
	col[id] = doc
	return nil
}

func (s *stubStore) CreateOrMerge(_ context.Context, collection, id string, doc docstore.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.col(collection)
	existing, ok := col[id]
	if !ok {
		col[id] = doc
		existing = doc
	} else {
		for k, v := range doc {
			existing[k] = v
		}
	}
	if s.afterMerge != nil {
		s.afterMerge(collection, id, existing)
	}
	return nil
}

func (s *stubStore) AtomicIncrement(_ context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIncrements > 0 {
		s.failIncrements--
		return errStubUnavailable
	}
	col := s.col(collection)
	doc, ok := col[id]
	if !ok {
		doc = docstore.Doc{}
		col[id] = doc
	}
	current := int64(0)
	if v, ok := doc[field].(float64); ok {
		current = int64(v)
	}
	doc[field] = float64(current + delta)
	return nil
}

func (s *stubStore) count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[collection])
}

// stubBank serves a fixed slice and counts loads; mutate questions between
// calls to simulate a drifting content pool.
type stubBank struct {
	mu        sync.Mutex
	questions []domain.Question
	calls     int
}

func (b *stubBank) Questions(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	var out []domain.Question
	for _, q := range b.questions {
		if filter.SubjectID != "" && q.SubjectID != filter.SubjectID {
			continue
		}
		if filter.ThemeID != "" && q.ThemeID != filter.ThemeID {
			continue
		}
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (b *stubBank) add(qs ...domain.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions = append(b.questions, qs...)
}
