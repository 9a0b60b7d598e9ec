package metrics

import (
	"context"
	"errors"
	"time"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/models"
)

type instrumentedProvider struct {
	next llm.Provider
}

// InstrumentProvider counts calls, latency and tokens of every generation
func InstrumentProvider(p llm.Provider) llm.Provider {
	if p == nil {
		return nil
	}
	return &instrumentedProvider{next: p}
}

func (p *instrumentedProvider) GenerateContent(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	name := p.next.GetProviderName()
	start := time.Now()
	resp, err := p.next.GenerateContent(ctx, req)
	aiLatency.WithLabelValues(name, req.Operation).Observe(time.Since(start).Seconds())

	aiCalls.WithLabelValues(name, req.Operation, outcome(err)).Inc()
	if resp != nil && resp.TokensUsed > 0 {
		aiTokens.WithLabelValues(name, req.Operation).Add(float64(resp.TokensUsed))
	}
	return resp, err
}

func (p *instrumentedProvider) GetProviderName() string {
	return p.next.GetProviderName()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && provErr.Code != "" {
		return provErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.ErrCodeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}
