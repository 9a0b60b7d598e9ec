package models

import (
	"strings"
)

// maximum accepted job description length, in bytes
const MaxJobDescriptionLength = 20000

type CreateSessionRequest struct {
	JobDescription string `json:"job_description"`
	JobTitle       string `json:"job_title,omitempty"`
	CompanyName    string `json:"company_name,omitempty"`
	Count          int    `json:"count,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
}

// implements the Validator interface
func (r *CreateSessionRequest) Validate() error {
	r.JobDescription = strings.TrimSpace(r.JobDescription)
	r.JobTitle = strings.TrimSpace(r.JobTitle)
	r.CompanyName = strings.TrimSpace(r.CompanyName)

	if r.JobDescription == "" {
		return &ErrorResponse{Code: "missing_job_description", Message: "job_description is required"}
	}
	if len(r.JobDescription) > MaxJobDescriptionLength {
		return &ErrorResponse{Code: "job_description_too_long", Message: "job_description exceeds the maximum length"}
	}

	if r.Count == 0 {
		r.Count = DefaultQuestionCount
	}
	if r.Count < MinQuestionCount || r.Count > MaxQuestionCount {
		return &ErrorResponse{Code: "invalid_count", Message: "count must be between 1 and 30"}
	}

	r.Difficulty = strings.ToLower(strings.TrimSpace(r.Difficulty))
	if r.Difficulty != "" && !Difficulty(r.Difficulty).Valid() {
		return &ErrorResponse{Code: "invalid_difficulty", Message: "difficulty must be one of: easy, medium, hard"}
	}

	return nil
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

func (r *SubmitAnswerRequest) Validate() error {
	r.QuestionID = strings.TrimSpace(r.QuestionID)
	if r.QuestionID == "" {
		return &ErrorResponse{Code: "missing_question_id", Message: "question_id is required"}
	}
	if strings.TrimSpace(r.Answer) == "" {
		return &ErrorResponse{Code: "missing_answer", Message: "answer is required"}
	}
	return nil
}

type PreGenerateRequest struct {
	JobDescription string `json:"job_description"`
	JobTitle       string `json:"job_title,omitempty"`
	CompanyName    string `json:"company_name,omitempty"`
	Count          int    `json:"count,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
}

func (r *PreGenerateRequest) Validate() error {
	// same constraints as a session create
	create := CreateSessionRequest{
		JobDescription: r.JobDescription,
		JobTitle:       r.JobTitle,
		CompanyName:    r.CompanyName,
		Count:          r.Count,
		Difficulty:     r.Difficulty,
	}
	if err := create.Validate(); err != nil {
		return err
	}
	r.JobDescription = create.JobDescription
	r.JobTitle = create.JobTitle
	r.CompanyName = create.CompanyName
	r.Count = create.Count
	r.Difficulty = create.Difficulty
	return nil
}
