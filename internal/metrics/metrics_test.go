package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/llm/llmtest"
	"cvone/interview/internal/models"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/v1/interviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/v1/interviews/{id}", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/interviews/abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/v1/interviews/{id}", "418"))
	assert.Equal(t, before+1, after)
}

func TestInstrumentProvider(t *testing.T) {
	fake := llmtest.New().
		Enqueue("op_test", llmtest.Reply{Content: "ok", TokensUsed: 7}).
		Enqueue("op_test", llmtest.Reply{Err: &llm.ProviderError{Provider: "llmtest", Code: llm.ErrCodeRateLimit}})
	p := InstrumentProvider(fake)
	assert.Equal(t, "llmtest", p.GetProviderName())

	_, err := p.GenerateContent(context.Background(), &models.GenerationRequest{Operation: "op_test"})
	require.NoError(t, err)
	_, err = p.GenerateContent(context.Background(), &models.GenerationRequest{Operation: "op_test"})
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(aiCalls.WithLabelValues("llmtest", "op_test", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(aiCalls.WithLabelValues("llmtest", "op_test", llm.ErrCodeRateLimit)))
	assert.Equal(t, float64(7), testutil.ToFloat64(aiTokens.WithLabelValues("llmtest", "op_test")))

	assert.Nil(t, InstrumentProvider(nil))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, llm.ErrCodeTimeout, outcome(context.DeadlineExceeded))
	assert.Equal(t, "canceled", outcome(context.Canceled))
	assert.Equal(t, "error", outcome(errors.New("x")))
}

func TestHandlerExposesPoolCounter(t *testing.T) {
	ObservePoolLookup(PoolHit)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "cvone_interview_pool_lookups_total"))
}
