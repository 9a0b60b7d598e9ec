package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cvone/interview/internal/interview"
	"cvone/interview/internal/middleware"
	"cvone/interview/internal/models"
)

type mockService struct {
	createFn   func(ctx context.Context, in interview.CreateInput) (*models.SessionResponse, error)
	getFn      func(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error)
	submitFn   func(ctx context.Context, userID, sessionID, questionID, answer string) (*models.SubmitAnswerResponse, error)
	completeFn func(ctx context.Context, userID, sessionID string) (*models.SessionResponse, error)
	retakeFn   func(ctx context.Context, userID, sessionID string) (*models.SessionResponse, error)
	abandonFn  func(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error)
	listFn     func(ctx context.Context, userID string, status models.SessionStatus) ([]models.InterviewSession, error)
	statsFn    func(ctx context.Context, userID string) (*models.UserStats, error)
	preGenFn   func(ctx context.Context, in interview.PreGenerateInput) (*models.PreGenerateResponse, error)
}

func (m *mockService) CreateSession(ctx context.Context, in interview.CreateInput) (*models.SessionResponse, error) {
	return m.createFn(ctx, in)
}

func (m *mockService) GetSession(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	return m.getFn(ctx, userID, sessionID)
}

func (m *mockService) SubmitAnswer(ctx context.Context, userID, sessionID, questionID, answer string) (*models.SubmitAnswerResponse, error) {
	return m.submitFn(ctx, userID, sessionID, questionID, answer)
}

func (m *mockService) CompleteSession(ctx context.Context, userID, sessionID string) (*models.SessionResponse, error) {
	return m.completeFn(ctx, userID, sessionID)
}

func (m *mockService) RetakeSession(ctx context.Context, userID, sessionID string) (*models.SessionResponse, error) {
	return m.retakeFn(ctx, userID, sessionID)
}

func (m *mockService) AbandonSession(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	return m.abandonFn(ctx, userID, sessionID)
}

func (m *mockService) ListUserSessions(ctx context.Context, userID string, status models.SessionStatus) ([]models.InterviewSession, error) {
	return m.listFn(ctx, userID, status)
}

func (m *mockService) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	return m.statsFn(ctx, userID)
}

func (m *mockService) PreGenerateQuestions(ctx context.Context, in interview.PreGenerateInput) (*models.PreGenerateResponse, error) {
	return m.preGenFn(ctx, in)
}

// asUser injects an authenticated caller without a token
func asUser(userID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), userID, role)))
		})
	}
}

func newTestRouter(h *InterviewHandler, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(asUser(userID, middleware.RoleAdmin))
	r.With(middleware.ValidateRequest[*models.CreateSessionRequest]()).Post("/interviews", h.CreateSessionHandler)
	r.Get("/interviews", h.ListSessionsHandler)
	r.Get("/interviews/stats", h.StatsHandler)
	r.Get("/interviews/{id}", h.GetSessionHandler)
	r.With(middleware.ValidateRequest[*models.SubmitAnswerRequest]()).Post("/interviews/{id}/answers", h.SubmitAnswerHandler)
	r.Post("/interviews/{id}/complete", h.CompleteSessionHandler)
	r.Post("/interviews/{id}/retake", h.RetakeSessionHandler)
	r.Post("/interviews/{id}/abandon", h.AbandonSessionHandler)
	r.With(middleware.ValidateRequest[*models.PreGenerateRequest]()).Post("/pregenerate", h.PreGenerateHandler)
	return r
}
