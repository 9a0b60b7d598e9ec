// Package memory is a process-local Store for tests and local development.
// It honours the same atomic contracts as the database-backed stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cvone/interview/internal/models"
	"cvone/interview/internal/repositories"
)

type Store struct {
	pools    *PoolRepository
	sessions *SessionRepository
}

func NewStore() *Store {
	return &Store{
		pools:    NewPoolRepository(),
		sessions: NewSessionRepository(),
	}
}

func (s *Store) Pools() repositories.PoolRepository       { return s.pools }
func (s *Store) Sessions() repositories.SessionRepository { return s.sessions }
func (s *Store) Ping(context.Context) error               { return nil }
func (s *Store) Close(context.Context) error              { return nil }

type PoolRepository struct {
	mu      sync.Mutex
	entries map[string]models.QuestionPoolEntry
	inserts int
}

func NewPoolRepository() *PoolRepository {
	return &PoolRepository{entries: make(map[string]models.QuestionPoolEntry)}
}

func (r *PoolRepository) FindByKey(ctx context.Context, poolKey string) (*models.QuestionPoolEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[poolKey]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return clonePool(entry), nil
}

func (r *PoolRepository) Touch(ctx context.Context, poolKey string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[poolKey]
	if !ok {
		return repositories.ErrNotFound
	}
	entry.UsageCount++
	entry.LastUsedAt = at
	r.entries[poolKey] = entry
	return nil
}

func (r *PoolRepository) InsertOrTouch(ctx context.Context, entry *models.QuestionPoolEntry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[entry.PoolKey]; ok {
		existing.UsageCount++
		existing.LastUsedAt = entry.LastUsedAt
		r.entries[entry.PoolKey] = existing
		return false, nil
	}
	r.entries[entry.PoolKey] = *clonePool(*entry)
	r.inserts++
	return true, nil
}

func (r *PoolRepository) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

// Inserts reports how many entries were created, for tests
func (r *PoolRepository) Inserts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserts
}

type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]models.InterviewSession
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]models.InterviewSession)}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.InterviewSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; ok {
		return repositories.ErrDuplicateKey
	}
	r.sessions[session.ID] = *cloneSession(*session)
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.InterviewSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneSession(s), nil
}

// mutate applies fn to an in-progress session under the lock
func (r *SessionRepository) mutate(ctx context.Context, id string, fn func(s *models.InterviewSession)) (*models.InterviewSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if s.Status != models.StatusInProgress {
		return nil, repositories.ErrConditionFailed
	}
	updated := cloneSession(s)
	fn(updated)
	updated.Version++
	r.sessions[id] = *updated
	return cloneSession(*updated), nil
}

func (r *SessionRepository) ApplyAnswer(ctx context.Context, u repositories.AnswerUpdate) (*models.InterviewSession, error) {
	return r.mutate(ctx, u.SessionID, func(s *models.InterviewSession) {
		s.UpsertFeedback(u.Feedback)
		if s.Answers == nil {
			s.Answers = make(map[string]string)
		}
		s.Answers[u.Feedback.QuestionID] = u.Answer
		s.AdvanceTo(u.NextIndex)
		s.TokensUsed += u.TokensUsed
		s.UpdatedAt = u.At
	})
}

func (r *SessionRepository) Complete(ctx context.Context, c repositories.Completion) (*models.InterviewSession, error) {
	return r.mutate(ctx, c.SessionID, func(s *models.InterviewSession) {
		avg := c.AverageScore
		at := c.At
		s.Status = models.StatusCompleted
		s.AverageScore = &avg
		s.OverallFeedback = c.OverallFeedback
		s.TokensUsed += c.TokensUsed
		s.CompletedAt = &at
		s.UpdatedAt = at
	})
}

func (r *SessionRepository) Abandon(ctx context.Context, sessionID string, at time.Time) (*models.InterviewSession, error) {
	return r.mutate(ctx, sessionID, func(s *models.InterviewSession) {
		s.Status = models.StatusAbandoned
		s.UpdatedAt = at
	})
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string, status models.SessionStatus) ([]models.InterviewSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.InterviewSession
	for _, s := range r.sessions {
		if s.UserID != userID || (status != "" && s.Status != status) {
			continue
		}
		out = append(out, *cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *SessionRepository) AbandonStale(ctx context.Context, idleBefore time.Time, at time.Time) ([]models.InterviewSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.InterviewSession
	for id, s := range r.sessions {
		if s.Status != models.StatusInProgress || !s.UpdatedAt.Before(idleBefore) {
			continue
		}
		s.Status = models.StatusAbandoned
		s.UpdatedAt = at
		s.Version++
		r.sessions[id] = s
		out = append(out, *cloneSession(s))
	}
	return out, nil
}

func clonePool(e models.QuestionPoolEntry) *models.QuestionPoolEntry {
	e.Questions = models.CloneQuestions(e.Questions)
	return &e
}

func cloneSession(s models.InterviewSession) *models.InterviewSession {
	s.Questions = models.CloneQuestions(s.Questions)
	answers := make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		answers[k] = v
	}
	s.Answers = answers
	feedbacks := make([]models.InterviewFeedback, len(s.Feedbacks))
	for i, fb := range s.Feedbacks {
		feedbacks[i] = fb
		feedbacks[i].Suggestions = append([]string(nil), fb.Suggestions...)
		feedbacks[i].Strengths = append([]string(nil), fb.Strengths...)
		feedbacks[i].Improvements = append([]string(nil), fb.Improvements...)
	}
	s.Feedbacks = feedbacks
	if s.AverageScore != nil {
		avg := *s.AverageScore
		s.AverageScore = &avg
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		s.CompletedAt = &at
	}
	return &s
}
