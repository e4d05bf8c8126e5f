package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// ResultPersister writes a finished session's outcome: the append-only
// history record first, then the stats increments, then (for daily mode) the
// per-date record and leaderboard mirror. The history write is the only one
// that fails the call; stats updates are retried with backoff since they are
// recomputable from history.
type ResultPersister struct {
	store   docstore.Store
	log     *zap.Logger
	loc     *time.Location
	retries int
	backoff time.Duration
	sleep   func(time.Duration)
}

func NewResultPersister(store docstore.Store, log *zap.Logger, loc *time.Location) *ResultPersister {
	if loc == nil {
		loc = time.Local
	}
	return &ResultPersister{
		store:   store,
		log:     log,
		loc:     loc,
		retries: 3,
		backoff: 250 * time.Millisecond,
		sleep:   time.Sleep,
	}
}

// Persist appends rec to history and updates the user's aggregates. The
// history document is keyed by rec.ID, so a finish retried after an earlier
// failure lands on the same document rather than appending a duplicate. For
// daily-mode records it also creates the DailyChallengeRecord; a second
// completion for the same (user, date) is ignored, never overwritten, so a
// day cannot be replayed for a better score.
func (p *ResultPersister) Persist(ctx context.Context, userID string, rec domain.SessionRecord, questionIDs []string) error {
	doc, err := docstore.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	switch err := p.store.Create(ctx, docstore.ColSessionHistory, id, doc); {
	case err == nil:
	case isConflict(err):
		// A retried finish; the record is already on file.
	default:
		return fmt.Errorf("append session history: %w", err)
	}

	if err := p.withRetry(ctx, "update stats", func() error {
		return p.updateStats(ctx, userID, rec)
	}); err != nil {
		return err
	}

	if rec.Mode == domain.ModeDaily {
		if err := p.persistDaily(ctx, userID, rec, questionIDs); err != nil {
			return err
		}
	}
	return nil
}

func (p *ResultPersister) updateStats(ctx context.Context, userID string, rec domain.SessionRecord) error {
	increments := map[string]int64{
		"totalSessions": 1,
		"totalPoints":   int64(rec.Score),
		"percentSum":    int64(rec.Percentage),
	}
	for field, delta := range increments {
		if err := p.store.AtomicIncrement(ctx, docstore.ColUserStats, userID, field, delta); err != nil {
			return err
		}
	}

	// The best-percent update is a read-then-merge; a concurrent finish on
	// another device can land a lower merge between our read and our write.
	// Reread after writing and rewrite until the stored best is at least ours.
	best := int64(rec.Percentage)
	for attempt := 0; attempt <= p.retries; attempt++ {
		stats, err := p.LoadStats(ctx, userID)
		if err != nil {
			return err
		}
		if stats.BestPercent >= best {
			return nil
		}
		if err := p.store.CreateOrMerge(ctx, docstore.ColUserStats, userID, docstore.Doc{
			"userId":      userID,
			"bestPercent": rec.Percentage,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *ResultPersister) persistDaily(ctx context.Context, userID string, rec domain.SessionRecord, questionIDs []string) error {
	dateKey := rec.DateKey(p.loc)
	daily := domain.DailyChallengeRecord{
		UserID:          userID,
		Date:            dateKey,
		Score:           rec.Score,
		MaxScore:        rec.MaxScore,
		Percentage:      rec.Percentage,
		DurationSeconds: rec.DurationSeconds,
		Answers:         rec.Answers,
		QuestionIDs:     questionIDs,
	}
	doc, err := docstore.Encode(daily)
	if err != nil {
		return fmt.Errorf("encode daily record: %w", err)
	}
	id := userID + ":" + dateKey
	switch err := p.store.Create(ctx, docstore.ColDailyRecords, id, doc); {
	case err == nil:
	case isConflict(err):
		// Already completed today on another device or an earlier run. The
		// first result stands.
		p.log.Info("daily record exists, keeping first completion",
			zap.String("user", userID), zap.String("date", dateKey))
		return nil
	default:
		return fmt.Errorf("create daily record: %w", err)
	}

	entry, err := docstore.Encode(domain.LeaderboardEntry{
		UserID:     userID,
		Score:      rec.Score,
		Percentage: rec.Percentage,
	})
	if err != nil {
		return err
	}
	return p.withRetry(ctx, "mirror daily leaderboard", func() error {
		return p.store.CreateOrMerge(ctx, docstore.ColDailyLeaderboard(dateKey), userID, entry)
	})
}

// LoadStats materializes the user's aggregate view. A user with no documents
// yet gets zeroed stats, not an error.
func (p *ResultPersister) LoadStats(ctx context.Context, userID string) (domain.UserStats, error) {
	doc, err := p.store.Get(ctx, docstore.ColUserStats, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return domain.UserStats{}, err
	}
	var stats domain.UserStats
	if err := docstore.Decode(doc, &stats); err != nil {
		return domain.UserStats{}, err
	}
	stats.UserID = userID
	return stats, nil
}

// DailyLeaderboard returns the per-date board sorted by score descending.
func (p *ResultPersister) DailyLeaderboard(ctx context.Context, dateKey string) (domain.Leaderboard, error) {
	docs, err := p.store.Query(ctx, docstore.ColDailyLeaderboard(dateKey), nil)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(docs))
	for _, doc := range docs {
		var entry domain.LeaderboardEntry
		if err := docstore.Decode(doc, &entry); err != nil {
			return domain.Leaderboard{}, err
		}
		entries = append(entries, entry)
	}
	sortLeaderboard(entries)
	return domain.Leaderboard{Key: dateKey, Entries: entries, UpdatedAt: time.Now()}, nil
}

func (p *ResultPersister) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	delay := p.backoff
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			p.log.Warn("retrying persistence step",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
			p.sleep(delay)
			delay *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
