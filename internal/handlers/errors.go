package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"cvone/interview/internal/models"
	"cvone/interview/internal/repositories"
	"cvone/interview/internal/utils"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{repositories.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{models.ErrSessionNotActive, http.StatusConflict, "session_not_active"},
	{repositories.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
	{models.ErrValidation, http.StatusBadGateway, "ai_invalid_response"},
	{models.ErrProviderUnavailable, http.StatusServiceUnavailable, "ai_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// statusFor maps a service error onto an HTTP status and error code
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeServiceError(w http.ResponseWriter, logger *zap.Logger, operation string, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
		if status == http.StatusInternalServerError {
			message = "Internal server error"
		}
	} else {
		logger.Debug("request rejected", zap.String("operation", operation), zap.Error(err))
	}
	utils.JSON(w, status, models.ErrorResponse{Code: code, Message: message})
}
