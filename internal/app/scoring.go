package app

import "quizquest-service/internal/domain"

// Base point values per difficulty tier.
const (
	PointsEasy   = 10
	PointsMedium = 30
	PointsHard   = 50
)

// DailyMultiplier doubles every daily-challenge award.
const DailyMultiplier = 2

// ScoringPolicy maps (difficulty, correctness, mode) to points. Pure lookup:
// no state, no failure modes.
type ScoringPolicy struct{}

// PointsFor returns the award for one answered question. Incorrect answers
// score zero regardless of mode.
func (ScoringPolicy) PointsFor(d domain.Difficulty, correct bool, mode domain.Mode) int {
	if !correct {
		return 0
	}
	base := 0
	switch d {
	case domain.DifficultyEasy:
		base = PointsEasy
	case domain.DifficultyMedium:
		base = PointsMedium
	case domain.DifficultyHard:
		base = PointsHard
	}
	if mode == domain.ModeDaily {
		return base * DailyMultiplier
	}
	return base
}

// MaxFor returns the ceiling a question set can score in the given mode.
func (p ScoringPolicy) MaxFor(questions []domain.Question, mode domain.Mode) int {
	total := 0
	for _, q := range questions {
		total += p.PointsFor(q.Difficulty, true, mode)
	}
	return total
}
