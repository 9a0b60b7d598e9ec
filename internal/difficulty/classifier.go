package difficulty

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/models"
	"cvone/interview/internal/prompts"
)

const (
	SourceAI      = "ai"
	SourceDefault = "default"
)

type Result struct {
	Difficulty models.Difficulty
	TokensUsed int
	Source     string
	// Estimate is the rubric baseline sent to the model
	Estimate models.Difficulty
}

// Classifier rates a job description easy, medium or hard. Any AI failure
// yields models.DefaultDifficulty rather than an error.
type Classifier struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	timeout  time.Duration
	logger   *zap.Logger
}

func NewClassifier(provider llm.Provider, pm prompts.PromptProvider, timeout time.Duration, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		provider: provider,
		prompts:  pm,
		timeout:  timeout,
		logger:   logger.Named("difficulty"),
	}
}

// Classify runs one model call. Tokens are reported even when the answer
// is discarded.
func (c *Classifier) Classify(ctx context.Context, jobTitle, jobDescription string) Result {
	estimate := Estimate(jobTitle + "\n" + jobDescription)
	fallback := Result{Difficulty: models.DefaultDifficulty, Source: SourceDefault, Estimate: estimate}

	if c.provider == nil || c.prompts == nil {
		return fallback
	}

	prompt, err := c.prompts.BuildPrompt(prompts.ClassifyDifficulty, "", map[string]string{
		"Estimate":       string(estimate),
		"JobTitle":       jobTitle,
		"JobDescription": jobDescription,
	})
	if err != nil {
		c.logger.Error("failed to build classification prompt", zap.Error(err))
		return fallback
	}

	resp, err := llm.Generate(ctx, c.provider, &models.GenerationRequest{
		Operation:         prompts.ClassifyDifficulty,
		Prompt:            prompt,
		SystemInstruction: c.prompts.SystemInstruction(prompts.ClassifyDifficulty),
		JSON:              true,
	}, c.timeout)
	if err != nil {
		c.logger.Warn("difficulty classification failed, using default",
			zap.String("default", string(models.DefaultDifficulty)), zap.Error(err))
		return fallback
	}
	fallback.TokensUsed = resp.TokensUsed

	var out struct {
		Difficulty string `json:"difficulty"`
	}
	if err := llm.DecodeJSON(resp.Content, &out); err != nil {
		c.logger.Warn("unparseable classification, using default", zap.Error(err))
		return fallback
	}

	d := models.Difficulty(strings.ToLower(strings.TrimSpace(out.Difficulty)))
	if !d.Valid() {
		c.logger.Warn("classification outside easy/medium/hard, using default",
			zap.String("difficulty", out.Difficulty))
		return fallback
	}

	c.logger.Debug("job description classified",
		zap.String("difficulty", string(d)), zap.String("estimate", string(estimate)))
	return Result{Difficulty: d, TokensUsed: resp.TokensUsed, Source: SourceAI, Estimate: estimate}
}
