package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizquest-service/internal/domain"
	"quizquest-service/internal/infra/memory"
)

// QuestionBank caches question pools in Redis (one JSON blob per filter) and
// falls back to a loader on miss. TTL carries jitter so a fleet's cache
// entries do not expire in lockstep.
type QuestionBank struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Questions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	key := poolKey(filter)

	if questions, err := b.fromCache(ctx, key); err == nil {
		return questions, nil
	}

	result, err, _ := b.sf.Do(key, func() (any, error) {
		// Re-check in case another goroutine filled the cache.
		if questions, err := b.fromCache(ctx, key); err == nil {
			return questions, nil
		}

		questions, err := b.loader.LoadQuestions(ctx, filter)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(questions)
		if err != nil {
			return nil, err
		}
		_ = b.client.Set(ctx, key, raw, b.ttlWithJitter()).Err()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

var errCacheMiss = errors.New("cache miss")

func (b *QuestionBank) fromCache(ctx context.Context, key string) ([]domain.Question, error) {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, errCacheMiss
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, errCacheMiss
	}
	return questions, nil
}

func poolKey(f domain.QuestionFilter) string {
	return "questions:" + f.SubjectID + "|" + f.ThemeID + "|" + string(f.Difficulty)
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
