package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cvone/interview/internal/models"
	"cvone/interview/internal/repositories"
)

type PoolRepo struct {
	db *gorm.DB
}

func (r *PoolRepo) FindByKey(ctx context.Context, poolKey string) (*models.QuestionPoolEntry, error) {
	var row poolRow
	err := r.db.WithContext(ctx).Where("pool_key = ?", poolKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toPoolModel(&row), nil
}

func (r *PoolRepo) Touch(ctx context.Context, poolKey string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&poolRow{}).
		Where("pool_key = ?", poolKey).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// InsertOrTouch inserts with ON CONFLICT DO NOTHING; a conflict means the
// key already exists and only the usage counter is bumped
func (r *PoolRepo) InsertOrTouch(ctx context.Context, entry *models.QuestionPoolEntry) (bool, error) {
	row := poolRow{
		PoolKey:                  entry.PoolKey,
		JobDescription:           entry.JobDescription,
		NormalizedJobDescription: entry.NormalizedJobDescription,
		JobTitle:                 entry.JobTitle,
		CompanyName:              entry.CompanyName,
		Difficulty:               string(entry.Difficulty),
		Language:                 entry.Language,
		Questions:                entry.Questions,
		UsageCount:               1,
		LastUsedAt:               entry.LastUsedAt,
		CreatedAt:                entry.CreatedAt,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pool_key"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if err := r.Touch(ctx, entry.PoolKey, entry.LastUsedAt); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PoolRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&poolRow{}).Count(&n).Error
	return n, err
}
