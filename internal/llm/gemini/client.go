package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/models"
	"cvone/interview/internal/utils"
)

const (
	providerName    = "gemini"
	logPreviewLimit = 300
)

// Client represents a Gemini LLM client
type Client struct {
	client *genai.Client
	config *Config
	logger *zap.Logger
}

func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	return newClient(context.Background(), config, nil, logger)
}

func newClient(ctx context.Context, config *Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL, APIVersion: "v1beta"}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	return &Client{
		client: client,
		config: config,
		logger: logger.With(zap.String("ai_provider", providerName), zap.String("ai_model", config.Model)),
	}, nil
}

// GenerateContent sends one prompt and returns the concatenated text of
// the first candidate
func (c *Client) GenerateContent(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	startTime := time.Now()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "Prompt must not be empty",
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		cfg.Temperature = req.Temperature
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), cfg)
	if err != nil {
		c.logger.Warn("gemini call failed",
			zap.String("operation", req.Operation),
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return nil, classifyError(err)
	}

	text := responseText(result)
	if text == "" {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeEmptyResponse,
			Message:  "Empty response generated",
		}
	}

	tokens := 0
	if result.UsageMetadata != nil {
		tokens = int(result.UsageMetadata.TotalTokenCount)
	}

	processingTime := time.Since(startTime).Milliseconds()
	c.logger.Debug("gemini call completed",
		zap.String("operation", req.Operation),
		zap.Int("tokens", tokens),
		zap.Int64("processing_ms", processingTime),
		zap.String("prompt_preview", utils.TruncateForLog(req.Prompt, logPreviewLimit)),
		zap.String("response_preview", utils.TruncateForLog(text, logPreviewLimit)))

	return &models.GenerationResponse{
		Content:    text,
		RequestID:  req.RequestID,
		TokensUsed: tokens,
		Metadata: models.GenerationMetadata{
			ProcessingTime: int(processingTime),
			Provider:       providerName,
			Model:          c.config.Model,
		},
	}, nil
}

func (c *Client) GetProviderName() string {
	return providerName
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		builder.WriteString(part.Text)
	}
	return strings.TrimSpace(builder.String())
}

// classifyError maps SDK failures onto provider error codes
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	code := llm.ErrCodeServiceDown
	var apiErr genai.APIError
	switch {
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			code = llm.ErrCodeRateLimit
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			code = llm.ErrCodeAPIKey
		case apiErr.Code == http.StatusBadRequest:
			code = llm.ErrCodeInvalidInput
		case apiErr.Code == http.StatusGatewayTimeout:
			code = llm.ErrCodeTimeout
		}
	case isRateLimitError(err):
		code = llm.ErrCodeRateLimit
	}

	return &llm.ProviderError{
		Provider: providerName,
		Code:     code,
		Message:  "Failed to generate content",
		Err:      err,
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}
