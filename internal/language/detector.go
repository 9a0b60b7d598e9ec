package language

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/models"
	"cvone/interview/internal/prompts"
)

// Source values reported in Result
const (
	SourceHeuristic = "heuristic"
	SourceAI        = "ai"
	SourceFallback  = "fallback"
)

// only the head of long inputs is sent to the model
const maxAISample = 1500

type Result struct {
	Language   string
	TokensUsed int
	Source     string
}

// Detector picks the language a session is conducted in. It never fails:
// every path ends in one of models.SupportedLanguages.
type Detector struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDetector builds a detector. provider may be nil, in which case only
// the heuristic layer is used.
func NewDetector(provider llm.Provider, pm prompts.PromptProvider, timeout time.Duration, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		provider: provider,
		prompts:  pm,
		timeout:  timeout,
		logger:   logger.Named("language"),
	}
}

func (d *Detector) Detect(ctx context.Context, text string) Result {
	guess := Heuristic(text)
	if guess.Confident || d.provider == nil || d.prompts == nil {
		return Result{Language: guess.Language, Source: SourceHeuristic}
	}

	lang, tokens, err := d.askModel(ctx, text)
	if err != nil {
		d.logger.Warn("AI language detection failed, using heuristic guess",
			zap.String("guess", guess.Language), zap.Error(err))
		return Result{Language: guess.Language, TokensUsed: tokens, Source: SourceFallback}
	}
	if !models.SupportedLanguages[lang] {
		d.logger.Debug("AI returned unsupported language, ignoring",
			zap.String("language", lang), zap.String("guess", guess.Language))
		return Result{Language: guess.Language, TokensUsed: tokens, Source: SourceFallback}
	}
	return Result{Language: lang, TokensUsed: tokens, Source: SourceAI}
}

func (d *Detector) askModel(ctx context.Context, text string) (string, int, error) {
	prompt, err := d.prompts.BuildPrompt(prompts.DetectLanguage, "", map[string]string{
		"Languages": strings.Join(models.SupportedLanguagesList(), ", "),
		"Text":      truncateRunes(strings.TrimSpace(text), maxAISample),
	})
	if err != nil {
		return "", 0, err
	}

	resp, err := llm.Generate(ctx, d.provider, &models.GenerationRequest{
		Operation:         prompts.DetectLanguage,
		Prompt:            prompt,
		SystemInstruction: d.prompts.SystemInstruction(prompts.DetectLanguage),
		JSON:              true,
	}, d.timeout)
	if err != nil {
		return "", 0, err
	}

	var out struct {
		Language string `json:"language"`
	}
	if err := llm.DecodeJSON(resp.Content, &out); err != nil {
		return "", resp.TokensUsed, err
	}
	return strings.ToLower(strings.TrimSpace(out.Language)), resp.TokensUsed, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
