package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizquest-service/internal/domain"
)

// FinishResult is everything the UI shows on the results screen: the
// persisted record, any badges unlocked by it, and the updated streak.
type FinishResult struct {
	Record    domain.SessionRecord `json:"record"`
	NewBadges []domain.EarnedBadge `json:"newBadges"`
	Streak    int                  `json:"streak"`
}

// PlayService is the use-case facade the transport layer talks to. It owns
// the active quiz sessions and drives the finish pipeline in its fixed
// order: persist, then badges, then streak (stats must land before badge
// predicates read them).
type PlayService struct {
	bank      QuestionBank
	daily     *DailyService
	persister *ResultPersister
	badges    *BadgeEvaluator
	streaks   *StreakTracker
	rooms     RoomRepository
	log       *zap.Logger
	loc       *time.Location

	mu       sync.Mutex
	sessions map[string]*QuizSession
}

func NewPlayService(bank QuestionBank, daily *DailyService, persister *ResultPersister, badges *BadgeEvaluator, streaks *StreakTracker, rooms RoomRepository, log *zap.Logger, loc *time.Location) *PlayService {
	if loc == nil {
		loc = time.Local
	}
	return &PlayService{
		bank:      bank,
		daily:     daily,
		persister: persister,
		badges:    badges,
		streaks:   streaks,
		rooms:     rooms,
		log:       log,
		loc:       loc,
		sessions:  make(map[string]*QuizSession),
	}
}

// StartNormal begins a normal or challenge session over filtered bank
// content, count questions drawn at random.
func (s *PlayService) StartNormal(ctx context.Context, userID string, mode domain.Mode, filter domain.QuestionFilter, count int) (*QuizSession, QuestionView, error) {
	if mode != domain.ModeNormal && mode != domain.ModeChallenge {
		return nil, QuestionView{}, fmt.Errorf("mode %q: %w", mode, domain.ErrInvalidState)
	}
	pool, err := s.bank.Questions(ctx, filter)
	if err != nil {
		return nil, QuestionView{}, err
	}
	if len(pool) < count {
		return nil, QuestionView{}, fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientContent, len(pool), count)
	}
	questions := Shuffle(pool, unseededRand(time.Now().UnixNano()))[:count]

	session := NewQuizSession(uuid.NewString(), userID, mode)
	session.SetScope(filter.SubjectID, filter.ThemeID, filter.Difficulty)
	return s.admit(session, questions)
}

// StartDaily begins a daily-challenge session over the shared set for
// dateKey ("YYYY-MM-DD").
func (s *PlayService) StartDaily(ctx context.Context, userID, dateKey string) (*QuizSession, QuestionView, error) {
	questions, err := s.daily.QuestionsFor(ctx, dateKey)
	if err != nil {
		return nil, QuestionView{}, err
	}
	session := NewQuizSession(uuid.NewString(), userID, domain.ModeDaily)
	return s.admit(session, questions)
}

func (s *PlayService) admit(session *QuizSession, questions []domain.Question) (*QuizSession, QuestionView, error) {
	if err := session.Start(questions); err != nil {
		return nil, QuestionView{}, err
	}
	view, err := session.Current()
	if err != nil {
		return nil, QuestionView{}, err
	}
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	s.log.Info("session started",
		zap.String("session", session.ID()),
		zap.String("user", session.UserID()),
		zap.String("mode", string(session.Mode())),
		zap.Int("questions", len(questions)))
	return session, view, nil
}

// Session looks up an active session by id.
func (s *PlayService) Session(id string) (*QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Finish runs the completion pipeline for a session and discards it. The
// history write is the one step that blocks completion: if it fails, the
// session stays registered with its record intact so the client can retry
// the finish. Badge and streak failures degrade to a logged warning since
// the user has already seen the score and both steps are recomputable later.
func (s *PlayService) Finish(ctx context.Context, sessionID string) (FinishResult, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return FinishResult{}, err
	}
	rec, err := session.Finish()
	if err != nil {
		return FinishResult{}, err
	}
	if err := s.persister.Persist(ctx, session.UserID(), rec, session.QuestionIDs()); err != nil {
		return FinishResult{}, err
	}
	session.Close()

	result := FinishResult{Record: rec}
	if badges, err := s.badges.Evaluate(ctx, session.UserID()); err != nil {
		s.log.Warn("badge evaluation failed", zap.String("user", session.UserID()), zap.Error(err))
	} else {
		result.NewBadges = badges
	}
	if streak, err := s.streaks.PersistStreak(ctx, session.UserID(), rec.CompletedAt.In(s.loc)); err != nil {
		s.log.Warn("streak update failed", zap.String("user", session.UserID()), zap.Error(err))
	} else {
		result.Streak = streak
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	s.log.Info("session finished",
		zap.String("session", sessionID),
		zap.String("user", session.UserID()),
		zap.Int("score", rec.Score),
		zap.Int("percentage", rec.Percentage))
	return result, nil
}

// Rooms exposes the challenge-room repository to the websocket transport.
func (s *PlayService) Rooms() RoomRepository {
	return s.rooms
}

// Stats returns the user's aggregate view.
func (s *PlayService) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	return s.persister.LoadStats(ctx, userID)
}

// EarnedBadges lists a user's earned badges.
func (s *PlayService) EarnedBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	return s.badges.Earned(ctx, userID)
}

// DailyLeaderboard returns the board for a date.
func (s *PlayService) DailyLeaderboard(ctx context.Context, dateKey string) (domain.Leaderboard, error) {
	return s.persister.DailyLeaderboard(ctx, dateKey)
}

// DailyCount returns the configured daily-challenge length.
func (s *PlayService) DailyCount() int {
	return s.daily.Count()
}
