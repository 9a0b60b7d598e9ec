package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cvone/interview/internal/models"
)

const DefaultChannel = "interview_events"

const (
	TypeCompleted = "interview_completed"
	TypeAbandoned = "interview_abandoned"
)

// SessionEvent is published when a session reaches a terminal state
type SessionEvent struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"sessionId"`
	UserID        string    `json:"userId"`
	AverageScore  *float64  `json:"averageScore,omitempty"`
	QuestionCount int       `json:"questionCount"`
	AnsweredCount int       `json:"answeredCount"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func FromSession(eventType string, s *models.InterviewSession, at time.Time) SessionEvent {
	return SessionEvent{
		Type:          eventType,
		SessionID:     s.ID,
		UserID:        s.UserID,
		AverageScore:  s.AverageScore,
		QuestionCount: len(s.Questions),
		AnsweredCount: len(s.Feedbacks),
		OccurredAt:    at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event SessionEvent) error
}

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger.Named("events")}
}

func (p *RedisPublisher) Publish(ctx context.Context, event SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	p.logger.Debug("session event published",
		zap.String("type", event.Type),
		zap.String("session_id", event.SessionID))
	return nil
}

// NopPublisher drops events, used when Redis is not configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SessionEvent) error { return nil }
