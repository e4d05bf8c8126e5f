package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quizquest-service/internal/app"
	"quizquest-service/internal/domain"
)

// APIHandler exposes the play flow as a JSON API.
type APIHandler struct {
	play *app.PlayService
	log  *zap.Logger
}

func NewAPIHandler(play *app.PlayService, log *zap.Logger) *APIHandler {
	return &APIHandler{play: play, log: log}
}

// Register mounts all routes on the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.startSession)
	mux.HandleFunc("POST /v1/sessions/{id}/answer", h.submitAnswer)
	mux.HandleFunc("POST /v1/sessions/{id}/timeout", h.timeout)
	mux.HandleFunc("POST /v1/sessions/{id}/advance", h.advance)
	mux.HandleFunc("POST /v1/sessions/{id}/finish", h.finish)
	mux.HandleFunc("GET /v1/daily/{date}/leaderboard", h.dailyLeaderboard)
	mux.HandleFunc("GET /v1/users/{id}/stats", h.userStats)
	mux.HandleFunc("GET /v1/users/{id}/badges", h.userBadges)
}

type startSessionRequest struct {
	UserID     string `json:"userId"`
	Mode       string `json:"mode"`
	SubjectID  string `json:"subjectId"`
	ThemeID    string `json:"themeId"`
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
	Date       string `json:"date"` // daily mode; defaults to today
}

type startSessionResponse struct {
	SessionID string           `json:"sessionId"`
	Question  app.QuestionView `json:"question"`
}

func (h *APIHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	mode := domain.Mode(req.Mode)
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}

	var (
		session *app.QuizSession
		view    app.QuestionView
		err     error
	)
	if mode == domain.ModeDaily {
		date := req.Date
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		session, view, err = h.play.StartDaily(r.Context(), req.UserID, date)
	} else {
		count := req.Count
		if count <= 0 {
			count = 10
		}
		filter := domain.QuestionFilter{
			SubjectID:  req.SubjectID,
			ThemeID:    req.ThemeID,
			Difficulty: domain.Difficulty(req.Difficulty),
		}
		session, view, err = h.play.StartNormal(r.Context(), req.UserID, mode, filter, count)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: session.ID(), Question: view})
}

type answerRequest struct {
	Index int `json:"index"`
}

func (h *APIHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome, err := session.SubmitAnswer(req.Index)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *APIHandler) timeout(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	outcome, err := session.Timeout()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type advanceResponse struct {
	Done     bool              `json:"done"`
	Question *app.QuestionView `json:"question,omitempty"`
}

func (h *APIHandler) advance(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Advance(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if session.Done() {
		writeJSON(w, http.StatusOK, advanceResponse{Done: true})
		return
	}
	view, err := session.Current()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{Question: &view})
}

func (h *APIHandler) finish(w http.ResponseWriter, r *http.Request) {
	result, err := h.play.Finish(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) dailyLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.play.DailyLeaderboard(r.Context(), r.PathValue("date"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *APIHandler) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.play.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		domain.UserStats
		AveragePercent float64 `json:"averagePercent"`
	}{stats, stats.AveragePercent()})
}

func (h *APIHandler) userBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.play.EarnedBadges(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if badges == nil {
		badges = []domain.EarnedBadge{}
	}
	writeJSON(w, http.StatusOK, badges)
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*app.QuizSession, bool) {
	session, err := h.play.Session(r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return nil, false
	}
	return session, true
}

func (h *APIHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientContent):
		writeError(w, http.StatusConflict, "not enough questions available, come back later")
	case errors.Is(err, domain.ErrInvalidAnswerIndex), errors.Is(err, domain.ErrNoQuestions):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrAlreadyFinished):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
