package models

import "time"

// InterviewQuestion is immutable once generated
type InterviewQuestion struct {
	ID             string     `json:"id" bson:"id"`
	Question       string     `json:"question" bson:"question"`
	Category       Category   `json:"category" bson:"category"`
	Difficulty     Difficulty `json:"difficulty" bson:"difficulty"`
	Tips           []string   `json:"tips" bson:"tips"`
	ExpectedAnswer string     `json:"expected_answer,omitempty" bson:"expectedAnswer,omitempty"`
}

// QuestionPoolEntry is a cached, reusable question set.
// Exactly one entry exists per PoolKey; only UsageCount and LastUsedAt change after creation.
type QuestionPoolEntry struct {
	PoolKey                  string              `json:"pool_key" bson:"poolKey"`
	JobDescription           string              `json:"job_description" bson:"jobDescription"`
	NormalizedJobDescription string              `json:"-" bson:"normalizedJobDescription"`
	JobTitle                 string              `json:"job_title,omitempty" bson:"jobTitle,omitempty"`
	CompanyName              string              `json:"company_name,omitempty" bson:"companyName,omitempty"`
	Difficulty               Difficulty          `json:"difficulty" bson:"difficulty"`
	Language                 string              `json:"language" bson:"language"`
	Questions                []InterviewQuestion `json:"questions" bson:"questions"`
	UsageCount               int64               `json:"usage_count" bson:"usageCount"`
	LastUsedAt               time.Time           `json:"last_used_at" bson:"lastUsedAt"`
	CreatedAt                time.Time           `json:"created_at" bson:"createdAt"`
}

// InterviewFeedback is the evaluation of a single answer, at most one per question
type InterviewFeedback struct {
	QuestionID   string    `json:"question_id" bson:"questionId"`
	UserAnswer   string    `json:"user_answer" bson:"userAnswer"`
	Score        int       `json:"score" bson:"score"`
	Feedback     string    `json:"feedback" bson:"feedback"`
	Suggestions  []string  `json:"suggestions" bson:"suggestions"`
	Strengths    []string  `json:"strengths" bson:"strengths"`
	Improvements []string  `json:"improvements" bson:"improvements"`
	EvaluatedAt  time.Time `json:"evaluated_at" bson:"evaluatedAt"`
}

// InterviewSession is one user's attempt at a question set
type InterviewSession struct {
	ID                   string              `json:"id" bson:"_id"`
	UserID               string              `json:"user_id" bson:"userId"`
	JobDescription       string              `json:"job_description" bson:"jobDescription"`
	JobTitle             string              `json:"job_title,omitempty" bson:"jobTitle,omitempty"`
	CompanyName          string              `json:"company_name,omitempty" bson:"companyName,omitempty"`
	PoolKey              string              `json:"pool_key,omitempty" bson:"poolKey,omitempty"`
	RetakeOf             string              `json:"retake_of,omitempty" bson:"retakeOf,omitempty"`
	Questions            []InterviewQuestion `json:"questions" bson:"questions"`
	CurrentQuestionIndex int                 `json:"current_question_index" bson:"currentQuestionIndex"`
	Answers              map[string]string   `json:"answers" bson:"answers"`
	Feedbacks            []InterviewFeedback `json:"feedbacks" bson:"feedbacks"`
	Status               SessionStatus       `json:"status" bson:"status"`
	Difficulty           Difficulty          `json:"difficulty" bson:"difficulty"`
	Language             string              `json:"language" bson:"language"`
	AverageScore         *float64            `json:"average_score,omitempty" bson:"averageScore,omitempty"`
	OverallFeedback      string              `json:"overall_feedback,omitempty" bson:"overallFeedback,omitempty"`
	TokensUsed           int                 `json:"tokens_used" bson:"tokensUsed"`
	Version              int64               `json:"-" bson:"version"`
	CreatedAt            time.Time           `json:"created_at" bson:"createdAt"`
	UpdatedAt            time.Time           `json:"updated_at" bson:"updatedAt"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty" bson:"completedAt,omitempty"`
}

// QuestionIndex returns the position of questionID in the snapshot, or -1
func (s *InterviewSession) QuestionIndex(questionID string) int {
	for i, q := range s.Questions {
		if q.ID == questionID {
			return i
		}
	}
	return -1
}

// FeedbackFor returns the stored feedback for questionID, if any
func (s *InterviewSession) FeedbackFor(questionID string) (*InterviewFeedback, bool) {
	for i := range s.Feedbacks {
		if s.Feedbacks[i].QuestionID == questionID {
			return &s.Feedbacks[i], true
		}
	}
	return nil, false
}

// UpsertFeedback replaces the feedback for fb.QuestionID or appends it
func (s *InterviewSession) UpsertFeedback(fb InterviewFeedback) {
	for i := range s.Feedbacks {
		if s.Feedbacks[i].QuestionID == fb.QuestionID {
			s.Feedbacks[i] = fb
			return
		}
	}
	s.Feedbacks = append(s.Feedbacks, fb)
}

// AdvanceTo moves CurrentQuestionIndex forward, never backwards
func (s *InterviewSession) AdvanceTo(index int) {
	if index > s.CurrentQuestionIndex {
		s.CurrentQuestionIndex = index
	}
}

// AverageFeedbackScore is the mean score over all feedbacks, 0 when there are none
func AverageFeedbackScore(feedbacks []InterviewFeedback) float64 {
	if len(feedbacks) == 0 {
		return 0
	}
	total := 0
	for _, fb := range feedbacks {
		total += fb.Score
	}
	return float64(total) / float64(len(feedbacks))
}

// CloneQuestions deep-copies a question snapshot so sessions never share slices
func CloneQuestions(questions []InterviewQuestion) []InterviewQuestion {
	out := make([]InterviewQuestion, len(questions))
	for i, q := range questions {
		out[i] = q
		out[i].Tips = append([]string(nil), q.Tips...)
	}
	return out
}

// UserStats summarises a user's sessions
type UserStats struct {
	TotalSessions      int      `json:"total_sessions"`
	InProgressSessions int      `json:"in_progress_sessions"`
	CompletedSessions  int      `json:"completed_sessions"`
	AbandonedSessions  int      `json:"abandoned_sessions"`
	AnsweredQuestions  int      `json:"answered_questions"`
	AverageScore       float64  `json:"average_score"`
	BestScore          *float64 `json:"best_score,omitempty"`
}
