package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cvone/interview/internal/models"
	"cvone/interview/internal/repositories"
)

// PoolRepo wraps the question pool collection
type PoolRepo struct{ col *mongo.Collection }

func NewPoolRepo(db *mongo.Database) *PoolRepo {
	return &PoolRepo{col: db.Collection(poolCollection)}
}

func (r *PoolRepo) FindByKey(ctx context.Context, poolKey string) (*models.QuestionPoolEntry, error) {
	var entry models.QuestionPoolEntry
	err := r.col.FindOne(ctx, bson.D{{Key: "poolKey", Value: poolKey}}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *PoolRepo) Touch(ctx context.Context, poolKey string, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.D{{Key: "poolKey", Value: poolKey}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "usageCount", Value: 1}}},
			{Key: "$set", Value: bson.D{{Key: "lastUsedAt", Value: at}}},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// InsertOrTouch is a single upsert: the entry body is only written when the
// key is new, the usage counter moves either way. Two concurrent upserts on
// a new key can both miss the match; the unique index rejects the loser
// with a duplicate-key error.
func (r *PoolRepo) InsertOrTouch(ctx context.Context, entry *models.QuestionPoolEntry) (bool, error) {
	onInsert := bson.D{
		{Key: "jobDescription", Value: entry.JobDescription},
		{Key: "normalizedJobDescription", Value: entry.NormalizedJobDescription},
		{Key: "difficulty", Value: entry.Difficulty},
		{Key: "language", Value: entry.Language},
		{Key: "questions", Value: entry.Questions},
		{Key: "createdAt", Value: entry.CreatedAt},
	}
	if entry.JobTitle != "" {
		onInsert = append(onInsert, bson.E{Key: "jobTitle", Value: entry.JobTitle})
	}
	if entry.CompanyName != "" {
		onInsert = append(onInsert, bson.E{Key: "companyName", Value: entry.CompanyName})
	}

	res, err := r.col.UpdateOne(ctx,
		bson.D{{Key: "poolKey", Value: entry.PoolKey}},
		bson.D{
			{Key: "$setOnInsert", Value: onInsert},
			{Key: "$inc", Value: bson.D{{Key: "usageCount", Value: 1}}},
			{Key: "$set", Value: bson.D{{Key: "lastUsedAt", Value: entry.LastUsedAt}}},
		},
		options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, repositories.ErrDuplicateKey
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

func (r *PoolRepo) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.D{})
}
