package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cvone/interview/internal/interview"
	"cvone/interview/internal/middleware"
	"cvone/interview/internal/models"
	"cvone/interview/internal/utils"
)

// InterviewService is the subset of *interview.Service the HTTP layer uses
type InterviewService interface {
	CreateSession(ctx context.Context, in interview.CreateInput) (*models.SessionResponse, error)
	GetSession(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error)
	SubmitAnswer(ctx context.Context, userID, sessionID, questionID, answer string) (*models.SubmitAnswerResponse, error)
	CompleteSession(ctx context.Context, userID, sessionID string) (*models.SessionResponse, error)
	RetakeSession(ctx context.Context, userID, sessionID string) (*models.SessionResponse, error)
	AbandonSession(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error)
	ListUserSessions(ctx context.Context, userID string, status models.SessionStatus) ([]models.InterviewSession, error)
	UserStats(ctx context.Context, userID string) (*models.UserStats, error)
	PreGenerateQuestions(ctx context.Context, in interview.PreGenerateInput) (*models.PreGenerateResponse, error)
}

type InterviewHandler struct {
	service InterviewService
	logger  *zap.Logger
}

func NewInterviewHandler(service InterviewService, logger *zap.Logger) *InterviewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterviewHandler{service: service, logger: logger}
}

func (h *InterviewHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.CreateSessionRequest](r)
	userID := middleware.UserIDFromContext(r.Context())

	start := time.Now()
	resp, err := h.service.CreateSession(r.Context(), interview.CreateInput{
		UserID:         userID,
		JobDescription: req.JobDescription,
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		Count:          req.Count,
		Difficulty:     models.Difficulty(req.Difficulty),
	})
	if err != nil {
		writeServiceError(w, h.logger, "create_session", err)
		return
	}

	h.logger.Info("Interview session created",
		zap.String("session_id", resp.Session.ID),
		zap.String("user_id", userID),
		zap.Bool("cache_hit", resp.CacheHit),
		zap.Int("tokens_used", resp.TokensUsed),
		zap.Duration("elapsed", time.Since(start)))

	utils.JSON(w, http.StatusCreated, resp)
}

func (h *InterviewHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.SessionStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	sessions, err := h.service.ListUserSessions(r.Context(), middleware.UserIDFromContext(r.Context()), status)
	if err != nil {
		writeServiceError(w, h.logger, "list_sessions", err)
		return
	}
	utils.JSON(w, http.StatusOK, models.SessionsResponse{Total: len(sessions), Items: sessions})
}

func (h *InterviewHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.UserStats(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, "user_stats", err)
		return
	}
	utils.JSON(w, http.StatusOK, stats)
}

func (h *InterviewHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "get_session", err)
		return
	}
	utils.JSON(w, http.StatusOK, session)
}

func (h *InterviewHandler) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.SubmitAnswerRequest](r)
	sessionID := chi.URLParam(r, "id")

	resp, err := h.service.SubmitAnswer(r.Context(), middleware.UserIDFromContext(r.Context()), sessionID, req.QuestionID, req.Answer)
	if err != nil {
		writeServiceError(w, h.logger, "submit_answer", err)
		return
	}

	h.logger.Info("Answer evaluated",
		zap.String("session_id", sessionID),
		zap.String("question_id", req.QuestionID),
		zap.Int("score", resp.Feedback.Score),
		zap.Int("tokens_used", resp.TokensUsed))

	utils.JSON(w, http.StatusOK, resp)
}

func (h *InterviewHandler) CompleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.CompleteSession(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "complete_session", err)
		return
	}
	utils.JSON(w, http.StatusOK, resp)
}

func (h *InterviewHandler) RetakeSessionHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.RetakeSession(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "retake_session", err)
		return
	}
	utils.JSON(w, http.StatusCreated, resp)
}

func (h *InterviewHandler) AbandonSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.AbandonSession(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "abandon_session", err)
		return
	}
	utils.JSON(w, http.StatusOK, session)
}

// PreGenerateHandler warms the question pool for a job description. Admin only.
func (h *InterviewHandler) PreGenerateHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.PreGenerateRequest](r)

	resp, err := h.service.PreGenerateQuestions(r.Context(), interview.PreGenerateInput{
		JobDescription: req.JobDescription,
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		Count:          req.Count,
		Difficulty:     models.Difficulty(req.Difficulty),
	})
	if err != nil {
		writeServiceError(w, h.logger, "pregenerate", err)
		return
	}

	h.logger.Info("Question pool warmed",
		zap.String("pool_key", resp.PoolKey),
		zap.String("difficulty", string(resp.Difficulty)),
		zap.Bool("cache_hit", resp.CacheHit))

	utils.JSON(w, http.StatusOK, resp)
}
