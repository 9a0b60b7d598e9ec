package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/models"
	"cvone/interview/internal/prompts"
)

// Aggregator writes the overall narrative of a finished session. It never
// fails: provider errors produce a generic text that still states the
// average score.
type Aggregator struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	timeout  time.Duration
	logger   *zap.Logger
}

func NewAggregator(provider llm.Provider, pm prompts.PromptProvider, timeout time.Duration, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		provider: provider,
		prompts:  pm,
		timeout:  timeout,
		logger:   logger.Named("aggregator"),
	}
}

func (a *Aggregator) Summarize(ctx context.Context, session *models.InterviewSession) (string, int) {
	avg := models.AverageFeedbackScore(session.Feedbacks)
	if len(session.Feedbacks) == 0 || a.provider == nil || a.prompts == nil {
		return FallbackSummary(session, avg), 0
	}

	prompt, err := a.prompts.BuildPrompt(prompts.SummarizeSession, "", map[string]string{
		"JobTitle":      jobLabel(session),
		"AnsweredCount": strconv.Itoa(len(session.Feedbacks)),
		"QuestionCount": strconv.Itoa(len(session.Questions)),
		"AverageScore":  strconv.FormatFloat(avg, 'f', 1, 64),
		"Language":      session.Language,
		"Results":       results(session),
	})
	if err != nil {
		a.logger.Error("failed to build summary prompt", zap.Error(err))
		return FallbackSummary(session, avg), 0
	}

	resp, err := llm.Generate(ctx, a.provider, &models.GenerationRequest{
		Operation:         prompts.SummarizeSession,
		Prompt:            prompt,
		SystemInstruction: a.prompts.SystemInstruction(prompts.SummarizeSession),
		RequestID:         session.ID,
	}, a.timeout)
	if err != nil {
		a.logger.Warn("session summary failed, using fallback",
			zap.String("session_id", session.ID), zap.Error(err))
		return FallbackSummary(session, avg), 0
	}

	text := strings.TrimSpace(llm.StripFences(resp.Content))
	if text == "" {
		return FallbackSummary(session, avg), resp.TokensUsed
	}
	return text, resp.TokensUsed
}

// FallbackSummary is the narrative used when the model is unavailable
func FallbackSummary(session *models.InterviewSession, avg float64) string {
	if len(session.Feedbacks) == 0 {
		return fmt.Sprintf("Interview completed without evaluated answers (0 of %d questions). Average score: 0.0/10.",
			len(session.Questions))
	}
	return fmt.Sprintf("Interview completed: %d of %d questions answered with an average score of %.1f/10. Review the per-question feedback for strengths and areas to improve.",
		len(session.Feedbacks), len(session.Questions), avg)
}

func results(session *models.InterviewSession) string {
	var b strings.Builder
	for i, q := range session.Questions {
		fb, ok := session.FeedbackFor(q.ID)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%d. [%s] %s -> %d/10: %s\n", i+1, q.Category, q.Question, fb.Score, fb.Feedback)
	}
	return strings.TrimSpace(b.String())
}

func jobLabel(s *models.InterviewSession) string {
	if s.JobTitle != "" {
		return s.JobTitle
	}
	return "unspecified role"
}
