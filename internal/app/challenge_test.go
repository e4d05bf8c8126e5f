package app

import (
	"errors"
	"testing"
	"time"

	"quizquest-service/internal/domain"
)

// stepClock hands out strictly increasing timestamps so tie-breaks are
// deterministic.
type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestRoom(id string) *ChallengeRoom {
	clock := &stepClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewChallengeRoomWithClock(id, clock.now)
}

func TestRoomJoinAndScore(t *testing.T) {
	room := newTestRoom("room-1")

	room.Join("u1", "Alice")
	lb := room.Join("u2", "Bob")
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(lb.Entries))
	}

	lb, total, err := room.ApplyScore("u2", 30)
	if err != nil {
		t.Fatalf("apply score: %v", err)
	}
	if total != 30 {
		t.Fatalf("total = %d, want 30", total)
	}
	if lb.Entries[0].UserID != "u2" || lb.Entries[0].Score != 30 {
		t.Fatalf("scorer not on top: %+v", lb.Entries)
	}

	if _, total, err = room.ApplyScore("u2", 50); err != nil || total != 80 {
		t.Fatalf("second score total = %d err = %v, want 80", total, err)
	}
}

func TestRoomApplyScoreUnknownParticipant(t *testing.T) {
	room := newTestRoom("room-1")
	if _, _, err := room.ApplyScore("ghost", 10); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestRoomIgnoresNonPositivePoints(t *testing.T) {
	room := newTestRoom("room-1")
	room.Join("u1", "Alice")

	if _, total, err := room.ApplyScore("u1", 0); err != nil || total != 0 {
		t.Fatalf("zero points changed the score: %d (%v)", total, err)
	}
	if _, total, err := room.ApplyScore("u1", -5); err != nil || total != 0 {
		t.Fatalf("negative points changed the score: %d (%v)", total, err)
	}
}

func TestRoomTieBreaksByFirstToReach(t *testing.T) {
	room := newTestRoom("room-1")
	room.Join("u1", "Alice")
	room.Join("u2", "Bob")

	if _, _, err := room.ApplyScore("u1", 50); err != nil {
		t.Fatalf("score u1: %v", err)
	}
	lb, _, err := room.ApplyScore("u2", 50)
	if err != nil {
		t.Fatalf("score u2: %v", err)
	}

	// Alice hit 50 first, so she stays ahead on the tie.
	if lb.Entries[0].UserID != "u1" || lb.Entries[1].UserID != "u2" {
		t.Fatalf("tie-break wrong: %+v", lb.Entries)
	}
}

func TestRoomLeaveAndEmpty(t *testing.T) {
	room := newTestRoom("room-1")
	room.Join("u1", "Alice")
	room.Join("u2", "Bob")

	lb := room.Leave("u1")
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u2" {
		t.Fatalf("unexpected board after leave: %+v", lb.Entries)
	}
	if room.IsEmpty() {
		t.Fatalf("room with one participant reported empty")
	}
	room.Leave("u2")
	if !room.IsEmpty() {
		t.Fatalf("drained room not reported empty")
	}
}

func TestRoomSubscribeReceivesUpdates(t *testing.T) {
	room := newTestRoom("room-1")
	room.Join("u1", "Alice")

	updates, cancel := room.Subscribe()
	defer cancel()

	initial := <-updates
	if len(initial.Entries) != 1 {
		t.Fatalf("initial snapshot has %d entries, want 1", len(initial.Entries))
	}

	room.ApplyScore("u1", 10)
	next := <-updates
	if next.Entries[0].Score != 10 {
		t.Fatalf("update score = %d, want 10", next.Entries[0].Score)
	}
}

func TestRoomSlowSubscriberGetsLatest(t *testing.T) {
	room := newTestRoom("room-1")
	room.Join("u1", "Alice")

	updates, cancel := room.Subscribe()
	defer cancel()

	// Never read while the buffer overflows; stale boards are dropped.
	for i := 0; i < 20; i++ {
		if _, _, err := room.ApplyScore("u1", 10); err != nil {
			t.Fatalf("apply score %d: %v", i, err)
		}
	}

	var last domain.Leaderboard
	for {
		select {
		case lb := <-updates:
			last = lb
			continue
		default:
		}
		break
	}
	if last.Entries[0].Score != 200 {
		t.Fatalf("latest board score = %d, want 200", last.Entries[0].Score)
	}
}

func TestRoomCancelIsIdempotent(t *testing.T) {
	room := newTestRoom("room-1")
	_, cancel := room.Subscribe()
	cancel()
	cancel() // second cancel must not panic on a closed channel

	// Broadcasts after cancel must not reach (or block on) the dead channel.
	room.Join("u1", "Alice")
}

func TestSortLeaderboardTieBreaks(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		{UserID: "c", Score: 100, Percentage: 50},
		{UserID: "a", Score: 100, Percentage: 80},
		{UserID: "b", Score: 300, Percentage: 40},
		{UserID: "d", Score: 100, Percentage: 80},
	}
	sortLeaderboard(entries)

	want := []string{"b", "a", "d", "c"}
	for i, id := range want {
		if entries[i].UserID != id {
			t.Fatalf("position %d = %s, want %s", i, entries[i].UserID, id)
		}
	}
}
