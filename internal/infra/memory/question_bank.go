package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizquest-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
}

// StaticQuestionBank serves a fixed in-memory question set; useful for tests
// and for running the binary with no Postgres configured. Content is
// validated once at construction.
type StaticQuestionBank struct {
	questions []domain.Question
}

func NewStaticQuestionBank(questions []domain.Question) (*StaticQuestionBank, error) {
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return &StaticQuestionBank{questions: questions}, nil
}

func (b *StaticQuestionBank) Questions(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	var out []domain.Question
	for _, q := range b.questions {
		if matchesFilter(q, filter) {
			out = append(out, q)
		}
	}
	return out, nil
}

// LoadQuestions lets a StaticQuestionBank double as a QuestionLoader behind
// the caching banks.
func (b *StaticQuestionBank) LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	return b.Questions(ctx, filter)
}

func matchesFilter(q domain.Question, f domain.QuestionFilter) bool {
	if f.SubjectID != "" && q.SubjectID != f.SubjectID {
		return false
	}
	if f.ThemeID != "" && q.ThemeID != f.ThemeID {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	return true
}

// CachedQuestionBank caches loader results per filter with a TTL so repeated
// pool queries (daily selection re-reads, new sessions) do not hammer the
// backing store.
type CachedQuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewCachedQuestionBank(loader QuestionLoader, ttl time.Duration) *CachedQuestionBank {
	return &CachedQuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedPool),
	}
}

func (b *CachedQuestionBank) Questions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	key := filterKey(filter)
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[key]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(key, func() (any, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[key]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx, filter)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.cache[key] = cachedPool{questions: questions, expiresAt: now.Add(b.ttl)}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func filterKey(f domain.QuestionFilter) string {
	return f.SubjectID + "|" + f.ThemeID + "|" + string(f.Difficulty)
}
