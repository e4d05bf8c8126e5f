package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
)

func testRecord(userID string, mode domain.Mode, score, max int, at time.Time) domain.SessionRecord {
	return domain.SessionRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Mode:       mode,
		SubjectID:  "math",
		Difficulty: domain.DifficultyMedium,
		Score:      score,
		MaxScore:   max,
		Percentage: percentage(score, max),
		Answers: []domain.AnswerLogEntry{
			{QuestionID: "q0", SelectedIndex: 0, Correct: score > 0, Points: score},
		},
		DurationSeconds: 120,
		CompletedAt:     at,
	}
}

func newTestPersister(store docstore.Store) *ResultPersister {
	p := NewResultPersister(store, zap.NewNop(), time.UTC)
	p.sleep = func(time.Duration) {} // no real backoff in tests
	return p
}

func TestPersistAppendsHistoryAndStats(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	rec := testRecord("u1", domain.ModeNormal, 60, 90, day(10, 9))
	if err := p.Persist(ctx, "u1", rec, nil); err != nil {
		t.Fatalf("persist: %v", err)
	}

	if store.count(docstore.ColSessionHistory) != 1 {
		t.Fatalf("expected 1 history doc, got %d", store.count(docstore.ColSessionHistory))
	}
	stats, err := p.LoadStats(ctx, "u1")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if stats.TotalSessions != 1 || stats.TotalPoints != 60 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.BestPercent != 67 {
		t.Fatalf("best percent %d, want 67", stats.BestPercent)
	}
}

func TestPersistAccumulatesAverages(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	if err := p.Persist(ctx, "u1", testRecord("u1", domain.ModeNormal, 90, 90, day(10, 9)), nil); err != nil {
		t.Fatalf("persist 1: %v", err)
	}
	if err := p.Persist(ctx, "u1", testRecord("u1", domain.ModeNormal, 45, 90, day(10, 10)), nil); err != nil {
		t.Fatalf("persist 2: %v", err)
	}

	stats, err := p.LoadStats(ctx, "u1")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if stats.TotalSessions != 2 || stats.TotalPoints != 135 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := stats.AveragePercent(); got != 75 {
		t.Fatalf("average percent %.2f, want 75", got)
	}
	// Best must not drop after a weaker session.
	if stats.BestPercent != 100 {
		t.Fatalf("best percent %d, want 100", stats.BestPercent)
	}
}

func TestPersistRetriesStatsUpdate(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	store.failIncrements = 2 // transient outage, recovers within retry budget
	if err := p.Persist(ctx, "u1", testRecord("u1", domain.ModeNormal, 30, 30, day(10, 9)), nil); err != nil {
		t.Fatalf("persist should have retried through the outage: %v", err)
	}

	stats, err := p.LoadStats(ctx, "u1")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if stats.TotalSessions != 1 {
		t.Fatalf("stats not updated after retry: %+v", stats)
	}
}

func TestPersistGivesUpAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	store.failIncrements = 100
	err := p.Persist(ctx, "u1", testRecord("u1", domain.ModeNormal, 30, 30, day(10, 9)), nil)
	if err == nil {
		t.Fatalf("expected persistent stats failure to surface")
	}
	// History stays written: it is append-only and safe to leave, stats can
	// be recomputed on a later retry.
	if store.count(docstore.ColSessionHistory) != 1 {
		t.Fatalf("history write should survive stats failure")
	}
}

func TestPersistRetrySkipsExistingHistory(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	rec := testRecord("u1", domain.ModeNormal, 60, 90, day(10, 9))
	if err := p.Persist(ctx, "u1", rec, nil); err != nil {
		t.Fatalf("persist: %v", err)
	}
	// A client retry replays the same record; the history document must not
	// be duplicated.
	if err := p.Persist(ctx, "u1", rec, nil); err != nil {
		t.Fatalf("retried persist: %v", err)
	}
	if store.count(docstore.ColSessionHistory) != 1 {
		t.Fatalf("retry duplicated history: %d docs", store.count(docstore.ColSessionHistory))
	}
}

func TestBestPercentSurvivesConcurrentMerge(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	clobbered := false
	store.afterMerge = func(collection, _ string, doc docstore.Doc) {
		if clobbered || collection != docstore.ColUserStats {
			return
		}
		if _, ok := doc["bestPercent"]; !ok {
			return
		}
		// A slower finish from another device lands its weaker merge last.
		clobbered = true
		doc["bestPercent"] = float64(60)
	}

	if err := p.Persist(ctx, "u1", testRecord("u1", domain.ModeNormal, 81, 90, day(10, 9)), nil); err != nil {
		t.Fatalf("persist: %v", err)
	}

	stats, err := p.LoadStats(ctx, "u1")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if stats.BestPercent != 90 {
		t.Fatalf("best percent regressed to %d, want 90", stats.BestPercent)
	}
}

func TestPersistDailyWritesRecordAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	rec := testRecord("u1", domain.ModeDaily, 540, 720, day(10, 9))
	if err := p.Persist(ctx, "u1", rec, []string{"q1", "q2"}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	doc, err := store.Get(ctx, docstore.ColDailyRecords, "u1:2025-06-10")
	if err != nil {
		t.Fatalf("daily record missing: %v", err)
	}
	var daily domain.DailyChallengeRecord
	if err := docstore.Decode(doc, &daily); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if daily.Score != 540 || daily.Percentage != 75 || len(daily.QuestionIDs) != 2 {
		t.Fatalf("unexpected daily record %+v", daily)
	}

	board, err := p.DailyLeaderboard(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].Score != 540 {
		t.Fatalf("unexpected leaderboard %+v", board.Entries)
	}
}

func TestPersistDailyKeepsFirstCompletion(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	if err := p.Persist(ctx, "u1", testRecord("u1", domain.ModeDaily, 300, 720, day(10, 9)), []string{"q1"}); err != nil {
		t.Fatalf("persist first: %v", err)
	}
	// Replaying the day with a better score must not overwrite the record.
	if err := p.Persist(ctx, "u1", testRecord("u1", domain.ModeDaily, 720, 720, day(10, 15)), []string{"q1"}); err != nil {
		t.Fatalf("persist second: %v", err)
	}

	doc, err := store.Get(ctx, docstore.ColDailyRecords, "u1:2025-06-10")
	if err != nil {
		t.Fatalf("daily record: %v", err)
	}
	var daily domain.DailyChallengeRecord
	if err := docstore.Decode(doc, &daily); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if daily.Score != 300 {
		t.Fatalf("first completion overwritten: score %d", daily.Score)
	}

	board, err := p.DailyLeaderboard(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].Score != 300 {
		t.Fatalf("leaderboard overwritten: %+v", board.Entries)
	}
}

func TestDailyLeaderboardSortsByScore(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := newTestPersister(store)

	for user, score := range map[string]int{"alice": 300, "bob": 720, "carol": 540} {
		if err := p.Persist(ctx, user, testRecord(user, domain.ModeDaily, score, 720, day(10, 9)), nil); err != nil {
			t.Fatalf("persist %s: %v", user, err)
		}
	}

	board, err := p.DailyLeaderboard(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []string{"bob", "carol", "alice"}
	if len(board.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(board.Entries))
	}
	for i, user := range want {
		if board.Entries[i].UserID != user {
			t.Fatalf("position %d = %s, want %s", i, board.Entries[i].UserID, user)
		}
	}
}

func TestLoadStatsUnknownUser(t *testing.T) {
	store := newStubStore()
	p := newTestPersister(store)

	stats, err := p.LoadStats(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if stats.TotalSessions != 0 || stats.AveragePercent() != 0 {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}

func TestIsConflictHelpers(t *testing.T) {
	if !isConflict(domain.ErrConflict) || isConflict(errors.New("other")) {
		t.Fatalf("isConflict misclassifies")
	}
	if !isNotFound(domain.ErrNotFound) || isNotFound(domain.ErrConflict) {
		t.Fatalf("isNotFound misclassifies")
	}
}
