package app

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

// dailySeedTag namespaces daily seeds; dailySeedVersion lets the selection
// algorithm change later without perturbing historical dates.
const (
	dailySeedTag     = "quizquest:daily"
	dailySeedVersion = "v1"
)

// DailySeed builds the deterministic seed string for a "YYYY-MM-DD" date key.
func DailySeed(dateKey string) string {
	return dailySeedTag + ":" + dailySeedVersion + ":" + dateKey
}

// SelectDaily deterministically picks count questions for a date: same date
// and same pool yield the identical ordered result on every call and every
// machine. Returns domain.ErrInsufficientContent when the pool is short; it
// never pads or duplicates.
func SelectDaily(dateKey string, pool []domain.Question, count int) ([]domain.Question, error) {
	if len(pool) < count {
		return nil, fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientContent, len(pool), count)
	}
	// Shuffle order must not depend on how the bank happened to return the
	// pool, so fix the input order first.
	sorted := make([]domain.Question, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	shuffled := Shuffle(sorted, NewSeededRand(DailySeed(dateKey)))
	return shuffled[:count], nil
}

// QuestionBank supplies candidate questions. Implementations live under
// internal/infra (postgres canonical, redis cached, memory static).
type QuestionBank interface {
	Questions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
}

// dailySet is the persisted snapshot of one date's selection.
type dailySet struct {
	Date        string   `json:"date"`
	QuestionIDs []string `json:"questionIds"`
}

// DailyService resolves the question set for a date. The first resolution of
// each date snapshots the selected question ids into the store with a
// conditional create, so the set stays stable even if the underlying pool
// grows during the day; later callers replay the stored ids.
type DailyService struct {
	store docstore.Store
	bank  QuestionBank
	count int
	sf    singleflight.Group
}

func NewDailyService(store docstore.Store, bank QuestionBank, count int) *DailyService {
	return &DailyService{store: store, bank: bank, count: count}
}

// Count returns the configured questions-per-day.
func (s *DailyService) Count() int {
	return s.count
}

// QuestionsFor returns the shared question set for dateKey, selecting and
// snapshotting it on first use.
func (s *DailyService) QuestionsFor(ctx context.Context, dateKey string) ([]domain.Question, error) {
	result, err, _ := s.sf.Do(dateKey, func() (any, error) {
		return s.questionsFor(ctx, dateKey)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *DailyService) questionsFor(ctx context.Context, dateKey string) ([]domain.Question, error) {
	if doc, err := s.store.Get(ctx, docstore.ColDailySets, dateKey); err == nil {
		return s.resolveSet(ctx, doc)
	}

	pool, err := s.bank.Questions(ctx, domain.QuestionFilter{})
	if err != nil {
		return nil, fmt.Errorf("load daily pool: %w", err)
	}
	selected, err := SelectDaily(dateKey, pool, s.count)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(selected))
	for i, q := range selected {
		ids[i] = q.ID
	}
	doc, err := docstore.Encode(dailySet{Date: dateKey, QuestionIDs: ids})
	if err != nil {
		return nil, err
	}
	switch err := s.store.Create(ctx, docstore.ColDailySets, dateKey, doc); {
	case err == nil:
		return selected, nil
	case isConflict(err):
		// Another instance snapshotted first; use its set.
		stored, err := s.store.Get(ctx, docstore.ColDailySets, dateKey)
		if err != nil {
			return nil, err
		}
		return s.resolveSet(ctx, stored)
	default:
		return nil, fmt.Errorf("snapshot daily set: %w", err)
	}
}

// resolveSet rehydrates full questions from a stored id list, preserving the
// stored order.
func (s *DailyService) resolveSet(ctx context.Context, doc docstore.Doc) ([]domain.Question, error) {
	var set dailySet
	if err := docstore.Decode(doc, &set); err != nil {
		return nil, err
	}
	pool, err := s.bank.Questions(ctx, domain.QuestionFilter{})
	if err != nil {
		return nil, fmt.Errorf("load daily pool: %w", err)
	}
	byID := make(map[string]domain.Question, len(pool))
	for _, q := range pool {
		byID[q.ID] = q
	}
	questions := make([]domain.Question, 0, len(set.QuestionIDs))
	for _, id := range set.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("daily set %s references missing question %s: %w", set.Date, id, domain.ErrInsufficientContent)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
