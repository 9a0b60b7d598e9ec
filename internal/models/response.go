package models

// returned from create, retake and complete. TokensUsed is what the
// metering layer should debit for this call.
type SessionResponse struct {
	Session    *InterviewSession `json:"session"`
	TokensUsed int               `json:"tokens_used"`
	CacheHit   bool              `json:"cache_hit,omitempty"`
}

type SubmitAnswerResponse struct {
	Feedback             *InterviewFeedback `json:"feedback"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	AnsweredCount        int                `json:"answered_count"`
	TotalQuestions       int                `json:"total_questions"`
	TokensUsed           int                `json:"tokens_used"`
}

type SessionsResponse struct {
	Total int                `json:"total"`
	Items []InterviewSession `json:"items"`
}

type PreGenerateResponse struct {
	PoolKey       string     `json:"pool_key"`
	Difficulty    Difficulty `json:"difficulty"`
	QuestionCount int        `json:"question_count"`
	CacheHit      bool       `json:"cache_hit"`
	TokensUsed    int        `json:"tokens_used"`
}
