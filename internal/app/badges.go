package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

// DefaultBadges is the shipped achievement catalog. Every RequirementKind
// appears at least once.
var DefaultBadges = []domain.Badge{
	{ID: "first-steps", Name: "First Steps", Rarity: domain.RarityCommon, Points: 10,
		Requirement: domain.Requirement{Kind: domain.ReqTotalSessions, Threshold: 1}},
	{ID: "regular", Name: "Regular", Rarity: domain.RarityCommon, Points: 25,
		Requirement: domain.Requirement{Kind: domain.ReqTotalSessions, Threshold: 10}},
	{ID: "veteran", Name: "Veteran", Rarity: domain.RarityRare, Points: 100,
		Requirement: domain.Requirement{Kind: domain.ReqTotalSessions, Threshold: 50}},
	{ID: "flawless", Name: "Flawless", Rarity: domain.RarityRare, Points: 50,
		Requirement: domain.Requirement{Kind: domain.ReqPerfectSession}},
	{ID: "consistent", Name: "Consistent", Rarity: domain.RarityEpic, Points: 75,
		Requirement: domain.Requirement{Kind: domain.ReqAveragePercent, Threshold: 80, MinSessions: 10}},
	{ID: "on-fire", Name: "On Fire", Rarity: domain.RarityRare, Points: 50,
		Requirement: domain.Requirement{Kind: domain.ReqStreak, Threshold: 7}},
	{ID: "unstoppable", Name: "Unstoppable", Rarity: domain.RarityLegendary, Points: 200,
		Requirement: domain.Requirement{Kind: domain.ReqStreak, Threshold: 30}},
	{ID: "specialist", Name: "Specialist", Rarity: domain.RarityRare, Points: 60,
		Requirement: domain.Requirement{Kind: domain.ReqSubjectSessions, SubjectID: "math", Threshold: 20}},
	{ID: "daredevil", Name: "Daredevil", Rarity: domain.RarityEpic, Points: 80,
		Requirement: domain.Requirement{Kind: domain.ReqDifficultySessions, Difficulty: domain.DifficultyHard, Threshold: 15}},
	{ID: "speedrunner", Name: "Speedrunner", Rarity: domain.RarityEpic, Points: 80,
		Requirement: domain.Requirement{Kind: domain.ReqFastestUnder, Seconds: 60}},
	{ID: "night-owl", Name: "Night Owl", Rarity: domain.RarityRare, Points: 40,
		Requirement: domain.Requirement{Kind: domain.ReqNightOwl, Threshold: 5}},
}

// BadgeEvaluator re-checks a user's achievement predicates after each session
// and awards whatever newly holds. Awards go through conditional creates
// keyed (user, badge), so concurrent evaluations cannot double-award: the
// race loser sees the conflict and treats the badge as already earned.
type BadgeEvaluator struct {
	store   docstore.Store
	streaks *StreakTracker
	catalog []domain.Badge
	log     *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

func NewBadgeEvaluator(store docstore.Store, streaks *StreakTracker, catalog []domain.Badge, log *zap.Logger, loc *time.Location) *BadgeEvaluator {
	if loc == nil {
		loc = time.Local
	}
	return &BadgeEvaluator{
		store:   store,
		streaks: streaks,
		catalog: catalog,
		log:     log,
		loc:     loc,
		now:     time.Now,
	}
}

// Catalog returns the badge definitions the evaluator runs against.
func (e *BadgeEvaluator) Catalog() []domain.Badge {
	return e.catalog
}

// Evaluate returns the badges newly earned by this call. Idempotent: calling
// again with no new sessions returns an empty slice.
func (e *BadgeEvaluator) Evaluate(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	earned, err := e.Earned(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(earned))
	for _, b := range earned {
		have[b.BadgeID] = true
	}

	stats, history, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var awarded []domain.EarnedBadge
	for _, badge := range e.catalog {
		if have[badge.ID] {
			continue
		}
		ok, err := e.satisfied(ctx, userID, badge.Requirement, stats, history)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		grant := domain.EarnedBadge{UserID: userID, BadgeID: badge.ID, EarnedAt: e.now()}
		doc, err := docstore.Encode(grant)
		if err != nil {
			return nil, err
		}
		switch err := e.store.Create(ctx, docstore.ColEarnedBadges, userID+":"+badge.ID, doc); {
		case err == nil:
			awarded = append(awarded, grant)
			e.log.Info("badge awarded", zap.String("user", userID), zap.String("badge", badge.ID))
		case isConflict(err):
			// A concurrent evaluation got there first.
		default:
			return nil, fmt.Errorf("award badge %s: %w", badge.ID, err)
		}
	}
	return awarded, nil
}

// Earned lists the user's already-earned badges.
func (e *BadgeEvaluator) Earned(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	docs, err := e.store.Query(ctx, docstore.ColEarnedBadges, map[string]any{"userId": userID})
	if err != nil {
		return nil, err
	}
	earned := make([]domain.EarnedBadge, 0, len(docs))
	for _, doc := range docs {
		var b domain.EarnedBadge
		if err := docstore.Decode(doc, &b); err != nil {
			return nil, err
		}
		earned = append(earned, b)
	}
	return earned, nil
}

func (e *BadgeEvaluator) loadUser(ctx context.Context, userID string) (domain.UserStats, []domain.SessionRecord, error) {
	statsDoc, err := e.store.Get(ctx, docstore.ColUserStats, userID)
	var stats domain.UserStats
	switch {
	case err == nil:
		if err := docstore.Decode(statsDoc, &stats); err != nil {
			return domain.UserStats{}, nil, err
		}
	case isNotFound(err):
		stats = domain.UserStats{UserID: userID}
	default:
		return domain.UserStats{}, nil, err
	}

	docs, err := e.store.Query(ctx, docstore.ColSessionHistory, map[string]any{"userId": userID})
	if err != nil {
		return domain.UserStats{}, nil, err
	}
	history := make([]domain.SessionRecord, 0, len(docs))
	for _, doc := range docs {
		var rec domain.SessionRecord
		if err := docstore.Decode(doc, &rec); err != nil {
			return domain.UserStats{}, nil, err
		}
		history = append(history, rec)
	}
	return stats, history, nil
}

// satisfied evaluates one requirement against stats and history. Read-only.
func (e *BadgeEvaluator) satisfied(ctx context.Context, userID string, req domain.Requirement, stats domain.UserStats, history []domain.SessionRecord) (bool, error) {
	switch req.Kind {
	case domain.ReqTotalSessions:
		return stats.TotalSessions >= int64(req.Threshold), nil

	case domain.ReqPerfectSession:
		for _, rec := range history {
			if rec.Percentage == 100 {
				return true, nil
			}
		}
		return false, nil

	case domain.ReqAveragePercent:
		return stats.TotalSessions >= int64(req.MinSessions) &&
			stats.AveragePercent() >= float64(req.Threshold), nil

	case domain.ReqStreak:
		streak, err := e.streaks.CurrentStreak(ctx, userID, e.now())
		if err != nil {
			return false, err
		}
		return streak >= req.Threshold, nil

	case domain.ReqSubjectSessions:
		count := 0
		for _, rec := range history {
			if rec.SubjectID == req.SubjectID {
				count++
			}
		}
		return count >= req.Threshold, nil

	case domain.ReqDifficultySessions:
		count := 0
		for _, rec := range history {
			if rec.Difficulty == req.Difficulty {
				count++
			}
		}
		return count >= req.Threshold, nil

	case domain.ReqFastestUnder:
		for _, rec := range history {
			if rec.DurationSeconds <= req.Seconds {
				return true, nil
			}
		}
		return false, nil

	case domain.ReqNightOwl:
		count := 0
		for _, rec := range history {
			if inNightWindow(rec.CompletedAt.In(e.loc)) {
				count++
			}
		}
		return count >= req.Threshold, nil
	}
	return false, fmt.Errorf("unknown requirement kind %q", req.Kind)
}

// inNightWindow reports whether t falls in the 23:00-06:00 local window.
func inNightWindow(t time.Time) bool {
	h := t.Hour()
	return h >= 23 || h < 6
}
