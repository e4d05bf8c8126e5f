package app

import (
	"context"
	"time"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

// StreakTracker computes consecutive-day activity streaks from session
// history. Semantics are strict: a user with no session on asOf itself has a
// streak of 0 for asOf, however long the run before it was.
type StreakTracker struct {
	store docstore.Store
	loc   *time.Location
}

func NewStreakTracker(store docstore.Store, loc *time.Location) *StreakTracker {
	if loc == nil {
		loc = time.Local
	}
	return &StreakTracker{store: store, loc: loc}
}

// CurrentStreak counts consecutive calendar days with at least one finished
// session, walking backward from asOf until the first gap. Pure read.
func (t *StreakTracker) CurrentStreak(ctx context.Context, userID string, asOf time.Time) (int, error) {
	docs, err := t.store.Query(ctx, docstore.ColSessionHistory, map[string]any{"userId": userID})
	if err != nil {
		return 0, err
	}
	days := make(map[string]bool, len(docs))
	for _, doc := range docs {
		var rec domain.SessionRecord
		if err := docstore.Decode(doc, &rec); err != nil {
			return 0, err
		}
		days[rec.DateKey(t.loc)] = true
	}

	streak := 0
	day := asOf.In(t.loc)
	for days[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

// PersistStreak recomputes the streak as of asOf and writes it into the
// user's stats document. Returns the computed value.
func (t *StreakTracker) PersistStreak(ctx context.Context, userID string, asOf time.Time) (int, error) {
	streak, err := t.CurrentStreak(ctx, userID, asOf)
	if err != nil {
		return 0, err
	}
	err = t.store.CreateOrMerge(ctx, docstore.ColUserStats, userID, docstore.Doc{
		"userId":        userID,
		"currentStreak": streak,
	})
	if err != nil {
		return 0, err
	}
	return streak, nil
}
