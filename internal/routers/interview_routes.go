package routers

import (
	"cvone/interview/internal/handlers"
	"cvone/interview/internal/middleware"
	"cvone/interview/internal/models"

	"github.com/go-chi/chi/v5"
)

func InterviewRoutes(router *chi.Mux, interviewHandler *handlers.InterviewHandler, jwtSecret string) {
	router.Route("/api/v1/interviews", func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtSecret))

		r.With(middleware.ValidateRequest[*models.CreateSessionRequest]()).Post("/", interviewHandler.CreateSessionHandler)
		r.Get("/", interviewHandler.ListSessionsHandler)
		r.Get("/stats", interviewHandler.StatsHandler)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", interviewHandler.GetSessionHandler)
			r.With(middleware.ValidateRequest[*models.SubmitAnswerRequest]()).Post("/answers", interviewHandler.SubmitAnswerHandler)
			r.Post("/complete", interviewHandler.CompleteSessionHandler)
			r.Post("/retake", interviewHandler.RetakeSessionHandler)
			r.Post("/abandon", interviewHandler.AbandonSessionHandler)
		})
	})
}

func AdminRoutes(router *chi.Mux, interviewHandler *handlers.InterviewHandler, jwtSecret string) {
	router.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtSecret), middleware.RequireAdmin)
		r.With(middleware.ValidateRequest[*models.PreGenerateRequest]()).Post("/question-pool/pregenerate", interviewHandler.PreGenerateHandler)
	})
}
