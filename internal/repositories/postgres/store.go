package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cvone/interview/internal/models"
	"cvone/interview/internal/repositories"
)

type poolRow struct {
	PoolKey                  string                     `gorm:"primaryKey;size:64"`
	JobDescription           string                     `gorm:"type:text;not null"`
	NormalizedJobDescription string                     `gorm:"type:text;not null"`
	JobTitle                 string                     `gorm:"size:255"`
	CompanyName              string                     `gorm:"size:255"`
	Difficulty               string                     `gorm:"size:16;not null"`
	Language                 string                     `gorm:"size:8;not null"`
	Questions                []models.InterviewQuestion `gorm:"serializer:json;not null"`
	UsageCount               int64                      `gorm:"not null;default:0"`
	LastUsedAt               time.Time                  `gorm:"autoUpdateTime:false"`
	CreatedAt                time.Time                  `gorm:"autoCreateTime:false"`
}

func (poolRow) TableName() string { return "question_pools" }

type sessionRow struct {
	ID                   string                     `gorm:"primaryKey;size:36"`
	UserID               string                     `gorm:"size:64;not null;index:idx_sessions_user_created,priority:1"`
	JobDescription       string                     `gorm:"type:text;not null"`
	JobTitle             string                     `gorm:"size:255"`
	CompanyName          string                     `gorm:"size:255"`
	PoolKey              string                     `gorm:"size:64"`
	RetakeOf             string                     `gorm:"size:36"`
	Questions            []models.InterviewQuestion `gorm:"serializer:json"`
	CurrentQuestionIndex int                        `gorm:"not null;default:0"`
	Answers              map[string]string          `gorm:"serializer:json"`
	Feedbacks            []models.InterviewFeedback `gorm:"serializer:json"`
	Status               string                     `gorm:"size:16;not null;index:idx_sessions_status_updated,priority:1"`
	Difficulty           string                     `gorm:"size:16"`
	Language             string                     `gorm:"size:8"`
	AverageScore         *float64
	OverallFeedback      string    `gorm:"type:text"`
	TokensUsed           int       `gorm:"not null;default:0"`
	Version              int64     `gorm:"not null;default:0"`
	CreatedAt            time.Time `gorm:"autoCreateTime:false;index:idx_sessions_user_created,priority:2"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime:false;index:idx_sessions_status_updated,priority:2"`
	CompletedAt          *time.Time
}

func (sessionRow) TableName() string { return "interview_sessions" }

// Store is the relational repositories.Store
type Store struct {
	db       *gorm.DB
	pools    *PoolRepo
	sessions *SessionRepo
}

// Open connects with a postgres DSN and migrates the schema
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewStore(db)
}

// NewStore migrates and wraps an open gorm handle
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&poolRow{}, &sessionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{
		db:       db,
		pools:    &PoolRepo{db: db},
		sessions: &SessionRepo{db: db, maxAttempts: defaultMaxAttempts},
	}, nil
}

func (s *Store) Pools() repositories.PoolRepository       { return s.pools }
func (s *Store) Sessions() repositories.SessionRepository { return s.sessions }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toPoolModel(r *poolRow) *models.QuestionPoolEntry {
	return &models.QuestionPoolEntry{
		PoolKey:                  r.PoolKey,
		JobDescription:           r.JobDescription,
		NormalizedJobDescription: r.NormalizedJobDescription,
		JobTitle:                 r.JobTitle,
		CompanyName:              r.CompanyName,
		Difficulty:               models.Difficulty(r.Difficulty),
		Language:                 r.Language,
		Questions:                r.Questions,
		UsageCount:               r.UsageCount,
		LastUsedAt:               r.LastUsedAt,
		CreatedAt:                r.CreatedAt,
	}
}

func toSessionRow(s *models.InterviewSession) *sessionRow {
	return &sessionRow{
		ID:                   s.ID,
		UserID:               s.UserID,
		JobDescription:       s.JobDescription,
		JobTitle:             s.JobTitle,
		CompanyName:          s.CompanyName,
		PoolKey:              s.PoolKey,
		RetakeOf:             s.RetakeOf,
		Questions:            s.Questions,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		Answers:              s.Answers,
		Feedbacks:            s.Feedbacks,
		Status:               string(s.Status),
		Difficulty:           string(s.Difficulty),
		Language:             s.Language,
		AverageScore:         s.AverageScore,
		OverallFeedback:      s.OverallFeedback,
		TokensUsed:           s.TokensUsed,
		Version:              s.Version,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
		CompletedAt:          s.CompletedAt,
	}
}

func toSessionModel(r *sessionRow) *models.InterviewSession {
	s := &models.InterviewSession{
		ID:                   r.ID,
		UserID:               r.UserID,
		JobDescription:       r.JobDescription,
		JobTitle:             r.JobTitle,
		CompanyName:          r.CompanyName,
		PoolKey:              r.PoolKey,
		RetakeOf:             r.RetakeOf,
		Questions:            r.Questions,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		Answers:              r.Answers,
		Feedbacks:            r.Feedbacks,
		Status:               models.SessionStatus(r.Status),
		Difficulty:           models.Difficulty(r.Difficulty),
		Language:             r.Language,
		AverageScore:         r.AverageScore,
		OverallFeedback:      r.OverallFeedback,
		TokensUsed:           r.TokensUsed,
		Version:              r.Version,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		CompletedAt:          r.CompletedAt,
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	if s.Feedbacks == nil {
		s.Feedbacks = []models.InterviewFeedback{}
	}
	return s
}
