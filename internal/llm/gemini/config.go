package gemini

import (
	"errors"
	"os"

	"cvone/interview/internal/llm"
)

const defaultModel = "gemini-2.5-flash"

// holds Gemini-specific configuration
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, used against local stubs
	BaseURL string
}

// NewConfig prefers explicit options and falls back to GEMINI_* variables
func NewConfig(opts llm.Options) (*Config, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}

	model := opts.Model
	if model == "" {
		model = os.Getenv("GEMINI_MODEL")
	}
	if model == "" {
		model = defaultModel
	}

	return &Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
	}, nil
}
