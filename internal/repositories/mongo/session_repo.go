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

// positional update and $push can both miss when another writer inserts the
// same feedback in between; that is retried a few times
const maxAnswerAttempts = 3

// SessionRepo wraps the interview session collection
type SessionRepo struct{ col *mongo.Collection }

func NewSessionRepo(db *mongo.Database) *SessionRepo {
	return &SessionRepo{col: db.Collection(sessionCollection)}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	// $push needs an array, never a null
	if s.Feedbacks == nil {
		s.Feedbacks = []models.InterviewFeedback{}
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	_, err := r.col.InsertOne(ctx, s)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicateKey
	}
	return err
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func inProgress(id string, extra ...bson.E) bson.D {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: models.StatusInProgress},
	}
	return append(filter, extra...)
}

// findAndUpdate applies update and returns the document after it
func (r *SessionRepo) findAndUpdate(ctx context.Context, filter, update bson.D) (*models.InterviewSession, error) {
	var out models.InterviewSession
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// missReason explains why a conditional update matched nothing
func (r *SessionRepo) missReason(ctx context.Context, id string) error {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.Status != models.StatusInProgress {
		return repositories.ErrConditionFailed
	}
	return nil
}

// ApplyAnswer replaces the feedback for the question in place when one
// exists, otherwise pushes it guarded by $ne so the array never holds two
// entries for one question. The index only moves forward via $max.
func (r *SessionRepo) ApplyAnswer(ctx context.Context, u repositories.AnswerUpdate) (*models.InterviewSession, error) {
	qid := u.Feedback.QuestionID
	for attempt := 0; attempt < maxAnswerAttempts; attempt++ {
		updated, err := r.findAndUpdate(ctx,
			inProgress(u.SessionID, bson.E{Key: "feedbacks.questionId", Value: qid}),
			answerUpdate(u, bson.E{Key: "feedbacks.$", Value: u.Feedback}, nil))
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		updated, err = r.findAndUpdate(ctx,
			inProgress(u.SessionID, bson.E{Key: "feedbacks.questionId", Value: bson.D{{Key: "$ne", Value: qid}}}),
			answerUpdate(u, bson.E{}, &bson.E{Key: "$push", Value: bson.D{{Key: "feedbacks", Value: u.Feedback}}}))
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		if err := r.missReason(ctx, u.SessionID); err != nil {
			return nil, err
		}
	}
	return nil, repositories.ErrConcurrentUpdate
}

func answerUpdate(u repositories.AnswerUpdate, extraSet bson.E, push *bson.E) bson.D {
	set := bson.D{
		{Key: "answers." + u.Feedback.QuestionID, Value: u.Answer},
		{Key: "updatedAt", Value: u.At},
	}
	if extraSet.Key != "" {
		set = append(set, extraSet)
	}
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$max", Value: bson.D{{Key: "currentQuestionIndex", Value: u.NextIndex}}},
		{Key: "$inc", Value: bson.D{{Key: "tokensUsed", Value: u.TokensUsed}, {Key: "version", Value: 1}}},
	}
	if push != nil {
		update = append(update, *push)
	}
	return update
}

func (r *SessionRepo) transition(ctx context.Context, id string, set bson.D, tokens int) (*models.InterviewSession, error) {
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$inc", Value: bson.D{{Key: "tokensUsed", Value: tokens}, {Key: "version", Value: 1}}},
	}
	updated, err := r.findAndUpdate(ctx, inProgress(id), update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if err := r.missReason(ctx, id); err != nil {
			return nil, err
		}
		return nil, repositories.ErrConcurrentUpdate
	}
	return updated, err
}

func (r *SessionRepo) Complete(ctx context.Context, c repositories.Completion) (*models.InterviewSession, error) {
	return r.transition(ctx, c.SessionID, bson.D{
		{Key: "status", Value: models.StatusCompleted},
		{Key: "averageScore", Value: c.AverageScore},
		{Key: "overallFeedback", Value: c.OverallFeedback},
		{Key: "completedAt", Value: c.At},
		{Key: "updatedAt", Value: c.At},
	}, c.TokensUsed)
}

func (r *SessionRepo) Abandon(ctx context.Context, sessionID string, at time.Time) (*models.InterviewSession, error) {
	return r.transition(ctx, sessionID, bson.D{
		{Key: "status", Value: models.StatusAbandoned},
		{Key: "updatedAt", Value: at},
	}, 0)
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID string, status models.SessionStatus) ([]models.InterviewSession, error) {
	filter := bson.D{{Key: "userId", Value: userID}}
	if status != "" {
		filter = append(filter, bson.E{Key: "status", Value: status})
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.InterviewSession{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AbandonStale flips idle sessions one by one with the same conditional
// filter, so a session answered meanwhile is left alone
func (r *SessionRepo) AbandonStale(ctx context.Context, idleBefore time.Time, at time.Time) ([]models.InterviewSession, error) {
	idle := bson.E{Key: "updatedAt", Value: bson.D{{Key: "$lt", Value: idleBefore}}}
	cur, err := r.col.Find(ctx,
		bson.D{{Key: "status", Value: models.StatusInProgress}, idle},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var ids []struct {
		ID string `bson:"_id"`
	}
	err = cur.All(ctx, &ids)
	cur.Close(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.InterviewSession
	for _, doc := range ids {
		updated, err := r.findAndUpdate(ctx, inProgress(doc.ID, idle), bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "status", Value: models.StatusAbandoned},
				{Key: "updatedAt", Value: at},
			}},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
		})
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, *updated)
	}
	return out, nil
}
