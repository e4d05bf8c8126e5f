package domain

import (
	"fmt"
	"time"
)

// Difficulty tiers map to fixed base point values (see app.ScoringPolicy).
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Mode distinguishes the three play modes. Mode affects only the scoring
// multiplier and which records get written on finish.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeDaily     Mode = "daily"
	ModeChallenge Mode = "challenge"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeNormal, ModeDaily, ModeChallenge:
		return true
	}
	return false
}

// OptionsPerQuestion is fixed for all content: every question carries exactly
// four answer options, exactly one of them correct.
const OptionsPerQuestion = 4

// AnswerOption is one of a question's four candidate answers.
type AnswerOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is an immutable content item. Never mutated during play; sessions
// reference it by ID.
type Question struct {
	ID          string         `json:"id"`
	SubjectID   string         `json:"subjectId"`
	ThemeID     string         `json:"themeId"`
	Difficulty  Difficulty     `json:"difficulty"`
	Prompt      string         `json:"prompt"`
	Options     []AnswerOption `json:"options"`
	Explanation string         `json:"explanation"`
	Order       int            `json:"order,omitempty"`
}

// Validate enforces the content invariants: four options, exactly one correct,
// a known difficulty.
func (q Question) Validate() error {
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("question %s: %w: has %d options", q.ID, ErrMalformedQuestion, len(q.Options))
	}
	correct := 0
	for _, opt := range q.Options {
		if opt.Correct {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("question %s: %w: %d options marked correct", q.ID, ErrMalformedQuestion, correct)
	}
	if !q.Difficulty.Valid() {
		return fmt.Errorf("question %s: %w: difficulty %q", q.ID, ErrMalformedQuestion, q.Difficulty)
	}
	return nil
}

// QuestionFilter narrows a question-bank query. Empty fields match everything.
type QuestionFilter struct {
	SubjectID  string
	ThemeID    string
	Difficulty Difficulty
}

// TimedOutIndex is the synthetic "selected index" recorded when a countdown
// expires before the user answers.
const TimedOutIndex = -1

// AnswerLogEntry records the outcome of a single question inside a session.
// SelectedIndex refers to the session's shuffled option order, not the
// authored one.
type AnswerLogEntry struct {
	QuestionID    string `json:"questionId"`
	SelectedIndex int    `json:"selectedIndex"`
	TimedOut      bool   `json:"timedOut"`
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
}

// SessionRecord is the immutable persisted outcome of one finished
// play-through. Written exactly once; never updated afterward. ID doubles
// as the history document id, so a retried write lands on the same document
// instead of appending a duplicate.
type SessionRecord struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Mode            Mode             `json:"mode"`
	SubjectID       string           `json:"subjectId,omitempty"`
	ThemeID         string           `json:"themeId,omitempty"`
	Difficulty      Difficulty       `json:"difficulty,omitempty"`
	Score           int              `json:"score"`
	MaxScore        int              `json:"maxScore"`
	Percentage      int              `json:"percentage"`
	Answers         []AnswerLogEntry `json:"answers"`
	DurationSeconds int              `json:"durationSeconds"`
	CompletedAt     time.Time        `json:"completedAt"`
}

// DateKey returns the record's completion date as "YYYY-MM-DD" in loc.
func (r SessionRecord) DateKey(loc *time.Location) string {
	return r.CompletedAt.In(loc).Format("2006-01-02")
}

// UserStats is the per-user mutable aggregate. Counters are stored as raw
// commutative increments (PercentSum rather than a running average) so that
// concurrent writers never need a read-modify-write cycle on the totals.
type UserStats struct {
	UserID        string `json:"userId"`
	TotalSessions int64  `json:"totalSessions"`
	TotalPoints   int64  `json:"totalPoints"`
	PercentSum    int64  `json:"percentSum"`
	BestPercent   int64  `json:"bestPercent"`
	CurrentStreak int64  `json:"currentStreak"`
}

// AveragePercent derives the running average from the raw counters.
func (s UserStats) AveragePercent() float64 {
	if s.TotalSessions == 0 {
		return 0
	}
	return float64(s.PercentSum) / float64(s.TotalSessions)
}

// Rarity buckets for badges; display-only.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// RequirementKind enumerates the badge predicate families.
type RequirementKind string

const (
	ReqTotalSessions      RequirementKind = "total_sessions"
	ReqPerfectSession     RequirementKind = "perfect_session"
	ReqAveragePercent     RequirementKind = "average_percent"
	ReqStreak             RequirementKind = "streak"
	ReqSubjectSessions    RequirementKind = "subject_sessions"
	ReqDifficultySessions RequirementKind = "difficulty_sessions"
	ReqFastestUnder       RequirementKind = "fastest_under"
	ReqNightOwl           RequirementKind = "night_owl"
)

// Requirement is a declarative badge predicate. Which fields matter depends
// on Kind; unused fields stay zero.
type Requirement struct {
	Kind        RequirementKind `json:"kind"`
	Threshold   int             `json:"threshold,omitempty"`   // count or percent, per Kind
	MinSessions int             `json:"minSessions,omitempty"` // gate for average_percent
	SubjectID   string          `json:"subjectId,omitempty"`   // subject_sessions
	Difficulty  Difficulty      `json:"difficulty,omitempty"`  // difficulty_sessions
	Seconds     int             `json:"seconds,omitempty"`     // fastest_under
}

// Badge is static reference data; the catalog ships with the binary.
type Badge struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Rarity      Rarity      `json:"rarity"`
	Points      int         `json:"points"`
	Requirement Requirement `json:"requirement"`
}

// EarnedBadge joins a user to a badge. At most one per (user, badge) pair;
// never revoked.
type EarnedBadge struct {
	UserID   string    `json:"userId"`
	BadgeID  string    `json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
}

// DailyChallengeRecord captures one user's completion of one date's shared
// challenge. At most one per (user, date); the first completion wins.
type DailyChallengeRecord struct {
	UserID          string           `json:"userId"`
	Date            string           `json:"date"` // "YYYY-MM-DD"
	Score           int              `json:"score"`
	MaxScore        int              `json:"maxScore"`
	Percentage      int              `json:"percentage"`
	DurationSeconds int              `json:"durationSeconds"`
	Answers         []AnswerLogEntry `json:"answers"`
	QuestionIDs     []string         `json:"questionIds"`
}

// LeaderboardEntry is one row of a scoreboard.
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Score       int    `json:"score"`
	Percentage  int    `json:"percentage,omitempty"`
}

// Leaderboard is an ordered scoreboard snapshot, either for a challenge room
// or for a daily-challenge date.
type Leaderboard struct {
	Key       string             `json:"key"` // room id or date key
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
