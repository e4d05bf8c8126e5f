package app

import (
	"sort"
	"sync"
	"time"

	"quizquest-service/internal/domain"
)

// ChallengeRoom is the live scoreboard for challenge mode: participants run
// their own quiz sessions and report scores here; subscribers (websocket
// clients) receive a fresh leaderboard after every change.
type ChallengeRoom struct {
	id           string
	createdAt    time.Time
	now          func() time.Time
	mu           sync.RWMutex
	participants map[string]*domain.LeaderboardEntry
	updatedAt    map[string]time.Time
	subscribers  map[chan domain.Leaderboard]struct{}
}

// NewChallengeRoom creates an empty room.
func NewChallengeRoom(id string) *ChallengeRoom {
	return NewChallengeRoomWithClock(id, time.Now)
}

// NewChallengeRoomWithClock allows deterministic timestamps in tests.
func NewChallengeRoomWithClock(id string, now func() time.Time) *ChallengeRoom {
	return &ChallengeRoom{
		id:           id,
		createdAt:    now(),
		now:          now,
		participants: make(map[string]*domain.LeaderboardEntry),
		updatedAt:    make(map[string]time.Time),
		subscribers:  make(map[chan domain.Leaderboard]struct{}),
	}
}

// Join registers or refreshes a participant and broadcasts the new board.
func (r *ChallengeRoom) Join(userID, displayName string) domain.Leaderboard {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[userID]; ok {
		p.DisplayName = displayName
	} else {
		r.participants[userID] = &domain.LeaderboardEntry{
			UserID:      userID,
			DisplayName: displayName,
		}
	}
	r.updatedAt[userID] = r.now()
	return r.broadcastLocked()
}

// ApplyScore adds points to a participant's total and broadcasts.
func (r *ChallengeRoom) ApplyScore(userID string, points int) (domain.Leaderboard, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[userID]
	if !ok {
		return domain.Leaderboard{}, 0, domain.ErrParticipantNotFound
	}
	if points > 0 {
		p.Score += points
	}
	r.updatedAt[userID] = r.now()
	return r.broadcastLocked(), p.Score, nil
}

// Leave removes a participant and broadcasts.
func (r *ChallengeRoom) Leave(userID string) domain.Leaderboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, userID)
	delete(r.updatedAt, userID)
	return r.broadcastLocked()
}

// IsEmpty reports whether the room has no participants.
func (r *ChallengeRoom) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants) == 0
}

// Subscribe returns a channel fed with leaderboard updates, starting with the
// current snapshot. The caller must invoke cancel to avoid leaks.
func (r *ChallengeRoom) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	initial := r.snapshotLocked()
	r.mu.Unlock()

	ch <- initial

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *ChallengeRoom) broadcastLocked() domain.Leaderboard {
	lb := r.snapshotLocked()
	for ch := range r.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale update so a slow client never blocks the rest.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

func (r *ChallengeRoom) snapshotLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(r.participants))
	for _, p := range r.participants {
		entries = append(entries, *p)
	}

	// Score descending; ties go to whoever reached the score first, then name.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		ti, tj := r.updatedAt[entries[i].UserID], r.updatedAt[entries[j].UserID]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})

	return domain.Leaderboard{
		Key:       r.id,
		Entries:   entries,
		UpdatedAt: r.now(),
	}
}

// sortLeaderboard orders persisted (non-live) entries by score descending,
// breaking ties by percentage then user id.
func sortLeaderboard(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// RoomRepository abstracts how challenge rooms are tracked (in-memory,
// redis-marked, etc).
type RoomRepository interface {
	GetOrCreate(roomID string) *ChallengeRoom
	Get(roomID string) (*ChallengeRoom, bool)
	DeleteIfEmpty(roomID string)
}
