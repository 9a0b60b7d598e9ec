package questions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/models"
	"cvone/interview/internal/prompts"
)

type Input struct {
	JobDescription string
	JobTitle       string
	CompanyName    string
	Count          int
	Difficulty     models.Difficulty
	Language       string
}

// Generator turns a job description into a validated question set
type Generator struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	policy   llm.RetryPolicy
	logger   *zap.Logger
}

func NewGenerator(provider llm.Provider, pm prompts.PromptProvider, policy llm.RetryPolicy, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider: provider,
		prompts:  pm,
		policy:   policy,
		logger:   logger.Named("questions"),
	}
}

// Generate returns exactly in.Count questions. Transient provider errors are
// retried; malformed output fails with models.ErrValidation and exhausted
// retries with models.ErrProviderUnavailable. Tokens spent are returned
// alongside validation errors as well.
func (g *Generator) Generate(ctx context.Context, in Input) ([]models.InterviewQuestion, int, error) {
	if in.Count < models.MinQuestionCount {
		return nil, 0, fmt.Errorf("%w: question count must be at least %d", models.ErrInvalidInput, models.MinQuestionCount)
	}
	if !in.Difficulty.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown difficulty %q", models.ErrInvalidInput, in.Difficulty)
	}
	if !models.SupportedLanguages[in.Language] {
		in.Language = models.DefaultLanguage
	}

	prompt, err := g.prompts.BuildPrompt(prompts.GenerateQuestions, string(in.Difficulty), map[string]string{
		"Count":          strconv.Itoa(in.Count),
		"JobTitle":       orUnknown(in.JobTitle),
		"CompanyName":    orUnknown(in.CompanyName),
		"JobDescription": in.JobDescription,
		"Language":       in.Language,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("build question prompt: %w", err)
	}

	req := &models.GenerationRequest{
		Operation:         prompts.GenerateQuestions,
		Prompt:            prompt,
		SystemInstruction: g.prompts.SystemInstruction(prompts.GenerateQuestions),
		RequestID:         uuid.NewString(),
		JSON:              true,
	}

	resp, err := llm.Retry(ctx, g.policy, g.logger, prompts.GenerateQuestions,
		func(ctx context.Context) (*models.GenerationResponse, error) {
			return llm.Generate(ctx, g.provider, req, g.policy.Timeout)
		})
	if err != nil {
		return nil, 0, fmt.Errorf("generate questions: %w: %w", models.ErrProviderUnavailable, err)
	}

	questions, err := Parse(resp.Content, in.Count, in.Difficulty)
	if err != nil {
		g.logger.Warn("question generation returned invalid output",
			zap.String("request_id", req.RequestID),
			zap.Int("tokens", resp.TokensUsed),
			zap.Error(err))
		return nil, resp.TokensUsed, err
	}

	g.logger.Info("questions generated",
		zap.String("request_id", req.RequestID),
		zap.String("difficulty", string(in.Difficulty)),
		zap.String("language", in.Language),
		zap.Int("count", len(questions)),
		zap.Int("tokens", resp.TokensUsed))
	return questions, resp.TokensUsed, nil
}

// Parse validates a model response and builds count questions with fresh
// IDs. It accepts {"questions": [...]} or a bare array.
func Parse(raw string, count int, difficulty models.Difficulty) ([]models.InterviewQuestion, error) {
	var payload any
	if err := llm.DecodeJSON(raw, &payload); err != nil {
		return nil, err
	}

	var items []any
	switch v := payload.(type) {
	case []any:
		items = v
	case map[string]any:
		list, ok := v["questions"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: missing questions array", models.ErrValidation)
		}
		items = list
	default:
		return nil, fmt.Errorf("%w: unexpected JSON shape", models.ErrValidation)
	}

	if len(items) < count {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", models.ErrValidation, count, len(items))
	}
	items = items[:count]

	out := make([]models.InterviewQuestion, 0, count)
	seen := make(map[models.Category]bool)
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: question %d is not an object", models.ErrValidation, i)
		}

		text := llm.CoerceString(obj["question"])
		if text == "" {
			return nil, fmt.Errorf("%w: question %d has no text", models.ErrValidation, i)
		}
		category := models.Category(strings.ToLower(llm.CoerceString(obj["category"])))
		if !category.Valid() {
			return nil, fmt.Errorf("%w: question %d has unknown category %q", models.ErrValidation, i, category)
		}
		tips := llm.CoerceStrings(obj["tips"])
		if len(tips) == 0 {
			return nil, fmt.Errorf("%w: question %d has no tips", models.ErrValidation, i)
		}

		expected := llm.CoerceString(obj["expectedAnswer"])
		if expected == "" {
			expected = llm.CoerceString(obj["expected_answer"])
		}

		seen[category] = true
		out = append(out, models.InterviewQuestion{
			ID:             uuid.NewString(),
			Question:       text,
			Category:       category,
			Difficulty:     difficulty,
			Tips:           tips,
			ExpectedAnswer: expected,
		})
	}

	if count >= len(models.Categories()) {
		for _, c := range models.Categories() {
			if !seen[c] {
				return nil, fmt.Errorf("%w: no %s question in set", models.ErrValidation, c)
			}
		}
	}
	return out, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not specified"
	}
	return s
}
