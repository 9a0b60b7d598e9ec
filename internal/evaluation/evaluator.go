package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/models"
	"cvone/interview/internal/prompts"
)

type Input struct {
	Question       models.InterviewQuestion
	Answer         string
	JobDescription string
	Language       string
}

// Evaluator scores one answer from 1 to 10 with qualitative feedback
type Evaluator struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	policy   llm.RetryPolicy
	logger   *zap.Logger
	now      func() time.Time
}

func NewEvaluator(provider llm.Provider, pm prompts.PromptProvider, policy llm.RetryPolicy, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		provider: provider,
		prompts:  pm,
		policy:   policy,
		logger:   logger.Named("evaluation"),
		now:      time.Now,
	}
}

// Evaluate fails with models.ErrValidation when the score is missing or
// outside [1,10], and with models.ErrProviderUnavailable once retries are
// exhausted.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (models.InterviewFeedback, int, error) {
	language := in.Language
	if !models.SupportedLanguages[language] {
		language = models.DefaultLanguage
	}

	prompt, err := e.prompts.BuildPrompt(prompts.EvaluateAnswer, "", map[string]string{
		"Language":       language,
		"JobDescription": in.JobDescription,
		"Category":       string(in.Question.Category),
		"Difficulty":     string(in.Question.Difficulty),
		"Question":       in.Question.Question,
		"ExpectedAnswer": orNone(in.Question.ExpectedAnswer),
		"Answer":         in.Answer,
	})
	if err != nil {
		return models.InterviewFeedback{}, 0, fmt.Errorf("build evaluation prompt: %w", err)
	}

	req := &models.GenerationRequest{
		Operation:         prompts.EvaluateAnswer,
		Prompt:            prompt,
		SystemInstruction: e.prompts.SystemInstruction(prompts.EvaluateAnswer),
		RequestID:         uuid.NewString(),
		JSON:              true,
	}
	resp, err := llm.Retry(ctx, e.policy, e.logger, prompts.EvaluateAnswer,
		func(ctx context.Context) (*models.GenerationResponse, error) {
			return llm.Generate(ctx, e.provider, req, e.policy.Timeout)
		})
	if err != nil {
		return models.InterviewFeedback{}, 0, fmt.Errorf("evaluate answer: %w: %w", models.ErrProviderUnavailable, err)
	}

	fb, err := ParseFeedback(resp.Content)
	if err != nil {
		e.logger.Warn("evaluation returned invalid output",
			zap.String("request_id", req.RequestID),
			zap.String("question_id", in.Question.ID),
			zap.Error(err))
		return models.InterviewFeedback{}, resp.TokensUsed, err
	}

	fb.QuestionID = in.Question.ID
	fb.UserAnswer = in.Answer
	fb.EvaluatedAt = e.now().UTC()
	return fb, resp.TokensUsed, nil
}

// ParseFeedback reads the model's evaluation JSON. Question and answer
// fields are left for the caller.
func ParseFeedback(raw string) (models.InterviewFeedback, error) {
	var data map[string]any
	if err := llm.DecodeJSON(raw, &data); err != nil {
		return models.InterviewFeedback{}, err
	}

	score, ok := llm.CoerceInt(data["score"])
	if !ok {
		return models.InterviewFeedback{}, fmt.Errorf("%w: score %v is not an integer", models.ErrValidation, data["score"])
	}
	if score < models.MinScore || score > models.MaxScore {
		return models.InterviewFeedback{}, fmt.Errorf("%w: score %d outside [%d,%d]", models.ErrValidation, score, models.MinScore, models.MaxScore)
	}

	feedback := llm.CoerceString(data["feedback"])
	if feedback == "" {
		return models.InterviewFeedback{}, fmt.Errorf("%w: empty feedback", models.ErrValidation)
	}

	return models.InterviewFeedback{
		Score:        score,
		Feedback:     feedback,
		Strengths:    nonNil(llm.CoerceStrings(data["strengths"])),
		Improvements: nonNil(llm.CoerceStrings(data["improvements"])),
		Suggestions:  nonNil(llm.CoerceStrings(data["suggestions"])),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "none provided"
	}
	return s
}
