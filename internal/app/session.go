package app

import (
	"fmt"
	"math"
	"time"

	"quizquest-service/internal/domain"
)

type sessionState int

const (
	stateReady sessionState = iota
	stateAwaitingAnswer
	stateAnswered
	stateFinished
	stateClosed // record persisted and session discarded
)

// sessionQuestion is a question with its options in session-local shuffled
// order.
type sessionQuestion struct {
	question domain.Question
	options  []domain.AnswerOption
}

// QuestionView is what the transport may show for the current question:
// shuffled option texts with correctness withheld.
type QuestionView struct {
	Index      int               `json:"index"`
	Total      int               `json:"total"`
	QuestionID string            `json:"questionId"`
	Prompt     string            `json:"prompt"`
	Options    []string          `json:"options"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

// AnswerOutcome reports the result of one submit/timeout, including the
// explanation the UI gates behind answering.
type AnswerOutcome struct {
	QuestionID   string `json:"questionId"`
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correctIndex"`
	Points       int    `json:"points"`
	Explanation  string `json:"explanation"`
	TimedOut     bool   `json:"timedOut"`
}

// QuizSession drives one play-through: question sequencing, answer
// submission, scoring, completion. One instance belongs to exactly one
// client; transitions are sequential, so the struct carries no lock.
type QuizSession struct {
	id         string
	userID     string
	mode       domain.Mode
	subjectID  string
	themeID    string
	difficulty domain.Difficulty

	scoring   ScoringPolicy
	questions []sessionQuestion
	idx       int
	score     int
	log       []domain.AnswerLogEntry
	outcomes  []AnswerOutcome

	state     sessionState
	startedAt time.Time
	record    *domain.SessionRecord
	now       func() time.Time
	rnd       interface{ Intn(int) int }
}

// SessionOption customizes session construction; used by tests for
// deterministic clocks and shuffles.
type SessionOption func(*QuizSession)

// WithClock overrides the session's time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *QuizSession) { s.now = now }
}

// WithOptionRand overrides the generator used to shuffle answer options.
func WithOptionRand(r interface{ Intn(int) int }) SessionOption {
	return func(s *QuizSession) { s.rnd = r }
}

// NewQuizSession creates a session in the Ready state. Call Start to begin.
func NewQuizSession(id, userID string, mode domain.Mode, opts ...SessionOption) *QuizSession {
	s := &QuizSession{
		id:     id,
		userID: userID,
		mode:   mode,
		state:  stateReady,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = unseededRand(time.Now().UnixNano())
	}
	return s
}

// SetScope records the subject/theme/difficulty the questions were drawn
// from, for the persisted record. Cross-subject modes leave fields empty.
func (s *QuizSession) SetScope(subjectID, themeID string, difficulty domain.Difficulty) {
	s.subjectID = subjectID
	s.themeID = themeID
	s.difficulty = difficulty
}

// Start fixes the question order, shuffles each question's options
// independently, records the start time, and moves to AwaitingAnswer at
// index 0. A session with zero questions is invalid.
func (s *QuizSession) Start(questions []domain.Question) error {
	if s.state != stateReady {
		return fmt.Errorf("start: %w", domain.ErrInvalidState)
	}
	if len(questions) == 0 {
		return fmt.Errorf("start: %w", domain.ErrNoQuestions)
	}
	s.questions = make([]sessionQuestion, len(questions))
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		s.questions[i] = sessionQuestion{
			question: q,
			options:  Shuffle(q.Options, s.rnd),
		}
	}
	s.log = make([]domain.AnswerLogEntry, 0, len(questions))
	s.outcomes = make([]AnswerOutcome, 0, len(questions))
	s.startedAt = s.now()
	s.idx = 0
	s.state = stateAwaitingAnswer
	return nil
}

// ID returns the session id.
func (s *QuizSession) ID() string { return s.id }

// UserID returns the owning user.
func (s *QuizSession) UserID() string { return s.userID }

// Mode returns the play mode.
func (s *QuizSession) Mode() domain.Mode { return s.mode }

// Score returns the running score.
func (s *QuizSession) Score() int { return s.score }

// Current returns the view of the question awaiting an answer.
func (s *QuizSession) Current() (QuestionView, error) {
	if s.state != stateAwaitingAnswer && s.state != stateAnswered {
		return QuestionView{}, fmt.Errorf("current: %w", domain.ErrInvalidState)
	}
	sq := s.questions[s.idx]
	texts := make([]string, len(sq.options))
	for i, opt := range sq.options {
		texts[i] = opt.Text
	}
	return QuestionView{
		Index:      s.idx,
		Total:      len(s.questions),
		QuestionID: sq.question.ID,
		Prompt:     sq.question.Prompt,
		Options:    texts,
		Difficulty: sq.question.Difficulty,
	}, nil
}

// SubmitAnswer scores the given option index for the current question. Valid
// only while awaiting an answer; a repeat call after the first (including a
// racing Timeout) is a no-op returning the recorded outcome, which guarantees
// at-most-one scoring per question.
func (s *QuizSession) SubmitAnswer(index int) (AnswerOutcome, error) {
	if s.state == stateAnswered {
		return s.outcomes[len(s.outcomes)-1], nil
	}
	if s.state != stateAwaitingAnswer {
		return AnswerOutcome{}, fmt.Errorf("submit: %w", domain.ErrInvalidState)
	}
	sq := s.questions[s.idx]
	if index < 0 || index >= len(sq.options) {
		return AnswerOutcome{}, fmt.Errorf("submit index %d: %w", index, domain.ErrInvalidAnswerIndex)
	}
	return s.recordAnswer(index, sq.options[index].Correct, false), nil
}

// Timeout records a synthetic "no answer" for the current question, scored
// as incorrect. Idempotent with SubmitAnswer: whichever fires first wins.
func (s *QuizSession) Timeout() (AnswerOutcome, error) {
	if s.state == stateAnswered {
		return s.outcomes[len(s.outcomes)-1], nil
	}
	if s.state != stateAwaitingAnswer {
		return AnswerOutcome{}, fmt.Errorf("timeout: %w", domain.ErrInvalidState)
	}
	return s.recordAnswer(domain.TimedOutIndex, false, true), nil
}

func (s *QuizSession) recordAnswer(index int, correct, timedOut bool) AnswerOutcome {
	sq := s.questions[s.idx]
	points := s.scoring.PointsFor(sq.question.Difficulty, correct, s.mode)
	s.score += points
	s.log = append(s.log, domain.AnswerLogEntry{
		QuestionID:    sq.question.ID,
		SelectedIndex: index,
		TimedOut:      timedOut,
		Correct:       correct,
		Points:        points,
	})
	outcome := AnswerOutcome{
		QuestionID:   sq.question.ID,
		Correct:      correct,
		CorrectIndex: correctIndex(sq.options),
		Points:       points,
		Explanation:  sq.question.Explanation,
		TimedOut:     timedOut,
	}
	s.outcomes = append(s.outcomes, outcome)
	s.state = stateAnswered
	return outcome
}

func correctIndex(options []domain.AnswerOption) int {
	for i, opt := range options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// Advance moves past an answered question: to the next one, or to Finished
// after the last.
func (s *QuizSession) Advance() error {
	if s.state != stateAnswered {
		return fmt.Errorf("advance: %w", domain.ErrInvalidState)
	}
	if s.idx+1 < len(s.questions) {
		s.idx++
		s.state = stateAwaitingAnswer
		return nil
	}
	s.state = stateFinished
	return nil
}

// Done reports whether every question has been answered and advanced past.
func (s *QuizSession) Done() bool {
	return s.state == stateFinished || s.state == stateClosed
}

// Finish freezes the session and returns its immutable record, keyed by the
// session id. The record is computed once and cached: if persisting it fails,
// the caller can call Finish again and get the identical record back. Only
// after Close does a further call return ErrAlreadyFinished.
func (s *QuizSession) Finish() (domain.SessionRecord, error) {
	switch s.state {
	case stateClosed:
		return domain.SessionRecord{}, fmt.Errorf("finish: %w", domain.ErrAlreadyFinished)
	case stateFinished:
	default:
		return domain.SessionRecord{}, fmt.Errorf("finish: %w", domain.ErrInvalidState)
	}
	if s.record == nil {
		questions := make([]domain.Question, len(s.questions))
		for i, sq := range s.questions {
			questions[i] = sq.question
		}
		maxScore := s.scoring.MaxFor(questions, s.mode)
		completedAt := s.now()
		s.record = &domain.SessionRecord{
			ID:              s.id,
			UserID:          s.userID,
			Mode:            s.mode,
			SubjectID:       s.subjectID,
			ThemeID:         s.themeID,
			Difficulty:      s.difficulty,
			Score:           s.score,
			MaxScore:        maxScore,
			Percentage:      percentage(s.score, maxScore),
			Answers:         append([]domain.AnswerLogEntry(nil), s.log...),
			DurationSeconds: int(completedAt.Sub(s.startedAt) / time.Second),
			CompletedAt:     completedAt,
		}
	}
	return *s.record, nil
}

// Close spends the session once its record has been persisted. A closed
// session rejects any further Finish.
func (s *QuizSession) Close() {
	if s.state == stateFinished {
		s.state = stateClosed
	}
}

// QuestionIDs returns the session's question ids in play order.
func (s *QuizSession) QuestionIDs() []string {
	ids := make([]string, len(s.questions))
	for i, sq := range s.questions {
		ids[i] = sq.question.ID
	}
	return ids
}

// percentage rounds score/max to the nearest whole percent.
func percentage(score, max int) int {
	if max == 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(max) * 100))
}
