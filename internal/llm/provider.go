package llm

import (
	"context"
	"errors"
	"time"

	"cvone/interview/internal/models"
)

// defines the interface for LLM providers
type Provider interface {
	GenerateContent(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error)
	GetProviderName() string
}

// represents an error from an LLM provider
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same call may succeed
func (e *ProviderError) Temporary() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeServiceDown, ErrCodeTimeout:
		return true
	}
	return false
}

// Common error codes
// For current and future use across different providers
const (
	ErrCodeAPIKey        = "invalid_api_key"
	ErrCodeRateLimit     = "rate_limit_exceeded"
	ErrCodeServiceDown   = "service_unavailable"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeTimeout       = "timeout"
	ErrCodeEmptyResponse = "empty_response"
)

// IsTemporary reports whether err is worth retrying
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Temporary()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsRateLimit reports whether err is a rate limit / quota error
func IsRateLimit(err error) bool {
	var provErr *ProviderError
	return errors.As(err, &provErr) && provErr.Code == ErrCodeRateLimit
}

// Generate runs a single provider call bounded by timeout. A timeout is
// reported as a ProviderError with ErrCodeTimeout.
func Generate(ctx context.Context, provider Provider, req *models.GenerationRequest, timeout time.Duration) (*models.GenerationResponse, error) {
	if provider == nil {
		return nil, &ProviderError{Provider: "none", Code: ErrCodeServiceDown, Message: "no AI provider configured"}
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := provider.GenerateContent(callCtx, req)
	if err != nil {
		// parent cancellation is not a provider timeout
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &ProviderError{
				Provider: provider.GetProviderName(),
				Code:     ErrCodeTimeout,
				Message:  "generation timed out",
				Err:      err,
			}
		}
		return nil, err
	}
	return resp, nil
}
