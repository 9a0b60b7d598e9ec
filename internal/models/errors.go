package models

import "errors"

// error taxonomy shared by the interview core. Callers match with errors.Is.
var (
	// session or question missing, or not owned by the caller
	ErrNotFound = errors.New("not found")
	// malformed AI output (bad JSON, out-of-range score)
	ErrValidation = errors.New("invalid ai response")
	// AI call errored or timed out after retries
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	// caller supplied bad input
	ErrInvalidInput = errors.New("invalid input")
	// session already completed or abandoned
	ErrSessionNotActive = errors.New("session is not in progress")
)

// uniform error responses
type ErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []ValidationErrorDetail `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// single field validation error
type ValidationErrorDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}
