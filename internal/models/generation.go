package models

// a single text-generation call
type GenerationRequest struct {
	// logical operation, e.g. "generate_questions"; used for logs and metrics
	Operation         string
	Prompt            string
	SystemInstruction string
	RequestID         string
	// ask the provider for application/json output when it supports it
	JSON        bool
	Temperature *float32
}

type GenerationResponse struct {
	Content    string             `json:"content"`
	RequestID  string             `json:"request_id"`
	TokensUsed int                `json:"tokens_used"`
	Metadata   GenerationMetadata `json:"metadata"`
}

// additional information about a generation call
type GenerationMetadata struct {
	ProcessingTime int    `json:"processing_time_ms"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
}
