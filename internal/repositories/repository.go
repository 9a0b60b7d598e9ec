// Package repositories defines the persistence contracts of the interview
// core. Implementations live in the mongo, postgres and memory subpackages.
package repositories

import (
	"context"
	"errors"
	"time"

	"cvone/interview/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// a concurrent writer created the same pool key first
	ErrDuplicateKey = errors.New("duplicate key")
	// the conditional write did not match, e.g. the session left in-progress
	ErrConditionFailed = errors.New("write condition not met")
	// optimistic version check kept failing
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// PoolRepository stores question pool entries keyed by PoolKey
type PoolRepository interface {
	FindByKey(ctx context.Context, poolKey string) (*models.QuestionPoolEntry, error)
	// Touch increments usageCount and sets lastUsedAt
	Touch(ctx context.Context, poolKey string, at time.Time) error
	// InsertOrTouch creates entry when its key is absent, otherwise touches
	// the existing one. inserted reports which happened. Implementations may
	// return ErrDuplicateKey when they lose a race to a concurrent insert.
	InsertOrTouch(ctx context.Context, entry *models.QuestionPoolEntry) (inserted bool, err error)
	Count(ctx context.Context) (int64, error)
}

// AnswerUpdate is the atomic change applied when an answer is evaluated
type AnswerUpdate struct {
	SessionID string
	Feedback  models.InterviewFeedback
	Answer    string
	// CurrentQuestionIndex becomes max(current, NextIndex)
	NextIndex  int
	TokensUsed int
	At         time.Time
}

// Completion is the atomic in-progress -> completed transition
type Completion struct {
	SessionID       string
	AverageScore    float64
	OverallFeedback string
	TokensUsed      int
	At              time.Time
}

// SessionRepository stores interview sessions. Every mutation is
// conditional on status == in-progress and fails with ErrConditionFailed
// otherwise.
type SessionRepository interface {
	Create(ctx context.Context, session *models.InterviewSession) error
	GetByID(ctx context.Context, id string) (*models.InterviewSession, error)
	ApplyAnswer(ctx context.Context, update AnswerUpdate) (*models.InterviewSession, error)
	Complete(ctx context.Context, completion Completion) (*models.InterviewSession, error)
	Abandon(ctx context.Context, sessionID string, at time.Time) (*models.InterviewSession, error)
	// ListByUser returns newest first; an empty status matches all
	ListByUser(ctx context.Context, userID string, status models.SessionStatus) ([]models.InterviewSession, error)
	// AbandonStale abandons in-progress sessions not updated since idleBefore
	AbandonStale(ctx context.Context, idleBefore time.Time, at time.Time) ([]models.InterviewSession, error)
}

// Store bundles both repositories behind one connection
type Store interface {
	Pools() PoolRepository
	Sessions() SessionRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
