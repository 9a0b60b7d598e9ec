package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"cvone/interview/internal/models"
	"cvone/interview/internal/repositories"
)

const defaultMaxAttempts = 5

// SessionRepo keeps feedbacks and answers as JSON columns, so answer
// updates are read-modify-write guarded by the version column
type SessionRepo struct {
	db          *gorm.DB
	maxAttempts int
}

func (r *SessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	row := toSessionRow(s)
	if row.Answers == nil {
		row.Answers = map[string]string{}
	}
	if row.Feedbacks == nil {
		row.Feedbacks = []models.InterviewFeedback{}
	}
	err := r.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repositories.ErrDuplicateKey
	}
	return err
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*models.InterviewSession, error) {
	row, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSessionModel(row), nil
}

func (r *SessionRepo) load(ctx context.Context, id string) (*sessionRow, error) {
	var row sessionRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *SessionRepo) ApplyAnswer(ctx context.Context, u repositories.AnswerUpdate) (*models.InterviewSession, error) {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		row, err := r.load(ctx, u.SessionID)
		if err != nil {
			return nil, err
		}
		if row.Status != string(models.StatusInProgress) {
			return nil, repositories.ErrConditionFailed
		}

		s := toSessionModel(row)
		s.UpsertFeedback(u.Feedback)
		s.Answers[u.Feedback.QuestionID] = u.Answer
		s.AdvanceTo(u.NextIndex)
		s.TokensUsed += u.TokensUsed
		s.UpdatedAt = u.At

		ok, err := r.compareAndSwap(ctx, row.Version, s)
		if err != nil {
			return nil, err
		}
		if ok {
			return s, nil
		}
	}
	return nil, repositories.ErrConcurrentUpdate
}

// compareAndSwap writes s when the stored version still equals expected
func (r *SessionRepo) compareAndSwap(ctx context.Context, expected int64, s *models.InterviewSession) (bool, error) {
	s.Version = expected + 1
	res := r.db.WithContext(ctx).Model(&sessionRow{ID: s.ID}).
		Where("version = ? AND status = ?", expected, models.StatusInProgress).
		Select("current_question_index", "answers", "feedbacks", "tokens_used", "version", "updated_at").
		Updates(toSessionRow(s))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// transition applies a status change conditional on in-progress
func (r *SessionRepo) transition(ctx context.Context, id string, values map[string]any) (*models.InterviewSession, error) {
	values["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND status = ?", id, models.StatusInProgress).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}

	row, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, repositories.ErrConditionFailed
	}
	return toSessionModel(row), nil
}

func (r *SessionRepo) Complete(ctx context.Context, c repositories.Completion) (*models.InterviewSession, error) {
	at := c.At
	return r.transition(ctx, c.SessionID, map[string]any{
		"status":           models.StatusCompleted,
		"average_score":    c.AverageScore,
		"overall_feedback": c.OverallFeedback,
		"tokens_used":      gorm.Expr("tokens_used + ?", c.TokensUsed),
		"completed_at":     &at,
		"updated_at":       at,
	})
}

func (r *SessionRepo) Abandon(ctx context.Context, sessionID string, at time.Time) (*models.InterviewSession, error) {
	return r.transition(ctx, sessionID, map[string]any{
		"status":     models.StatusAbandoned,
		"updated_at": at,
	})
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID string, status models.SessionStatus) ([]models.InterviewSession, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []sessionRow
	if err := q.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.InterviewSession, 0, len(rows))
	for i := range rows {
		out = append(out, *toSessionModel(&rows[i]))
	}
	return out, nil
}

func (r *SessionRepo) AbandonStale(ctx context.Context, idleBefore time.Time, at time.Time) ([]models.InterviewSession, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&sessionRow{}).
		Where("status = ? AND updated_at < ?", models.StatusInProgress, idleBefore).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	var out []models.InterviewSession
	for _, id := range ids {
		res := r.db.WithContext(ctx).Model(&sessionRow{}).
			Where("id = ? AND status = ? AND updated_at < ?", id, models.StatusInProgress, idleBefore).
			Updates(map[string]any{
				"status":     models.StatusAbandoned,
				"updated_at": at,
				"version":    gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return out, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		row, err := r.load(ctx, id)
		if err != nil {
			return out, err
		}
		out = append(out, *toSessionModel(row))
	}
	return out, nil
}
