// Package interview is the session state machine: it creates sessions from
// the shared question pool, records evaluated answers and closes sessions
// with an aggregate score.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cvone/interview/internal/evaluation"
	"cvone/interview/internal/events"
	"cvone/interview/internal/language"
	"cvone/interview/internal/metrics"
	"cvone/interview/internal/models"
	"cvone/interview/internal/pool"
	"cvone/interview/internal/repositories"
)

var tracer = otel.Tracer("cvone/interview/interview")

// session lifecycle events, also used as metric labels
const (
	EventCreated   = "created"
	EventAnswered  = "answered"
	EventCompleted = "completed"
	EventAbandoned = "abandoned"
	EventRetaken   = "retaken"
	EventReaped    = "reaped"
)

type PoolCache interface {
	GetOrCreate(ctx context.Context, req pool.Request) (*pool.Result, error)
}

type LanguageDetector interface {
	Detect(ctx context.Context, text string) language.Result
}

type Evaluator interface {
	Evaluate(ctx context.Context, in evaluation.Input) (models.InterviewFeedback, int, error)
}

type Aggregator interface {
	Summarize(ctx context.Context, session *models.InterviewSession) (string, int)
}

type Deps struct {
	Sessions   repositories.SessionRepository
	Pool       PoolCache
	Detector   LanguageDetector
	Evaluator  Evaluator
	Aggregator Aggregator
	// Events defaults to events.NopPublisher
	Events           events.Publisher
	MaxQuestionCount int
	Logger           *zap.Logger
}

type Service struct {
	sessions   repositories.SessionRepository
	pool       PoolCache
	detector   LanguageDetector
	evaluator  Evaluator
	aggregator Aggregator
	events     events.Publisher
	maxCount   int
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	maxCount := deps.MaxQuestionCount
	if maxCount <= 0 || maxCount > models.MaxQuestionCount {
		maxCount = models.MaxQuestionCount
	}
	return &Service{
		sessions:   deps.Sessions,
		pool:       deps.Pool,
		detector:   deps.Detector,
		evaluator:  deps.Evaluator,
		aggregator: deps.Aggregator,
		events:     publisher,
		maxCount:   maxCount,
		logger:     logger.Named("interview"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

type CreateInput struct {
	UserID         string
	JobDescription string
	JobTitle       string
	CompanyName    string
	Count          int
	// optional; skips classification when set
	Difficulty models.Difficulty
}

// CreateSession snapshots a question set for the user. Language detection
// runs alongside the pool lookup and is only awaited when a new set has to
// be generated.
func (s *Service) CreateSession(ctx context.Context, in CreateInput) (resp *models.SessionResponse, err error) {
	ctx, span := tracer.Start(ctx, "interview.CreateSession")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(in.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrInvalidInput)
	}
	count, err := s.questionCount(in.Count)
	if err != nil {
		return nil, err
	}
	jd := strings.TrimSpace(in.JobDescription)
	if jd == "" {
		return nil, fmt.Errorf("%w: job description is required", models.ErrInvalidInput)
	}
	if in.Difficulty != "" && !in.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", models.ErrInvalidInput, in.Difficulty)
	}

	var detected language.Result
	detectedCh := make(chan struct{})
	var res *pool.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(detectedCh)
		detected = s.detector.Detect(gctx, jd)
		return nil
	})
	g.Go(func() error {
		r, err := s.pool.GetOrCreate(gctx, pool.Request{
			JobDescription: jd,
			JobTitle:       in.JobTitle,
			CompanyName:    in.CompanyName,
			DifficultyHint: in.Difficulty,
			MinCount:       count,
			Language: func() string {
				<-detectedCh
				return detected.Language
			},
		})
		res = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// feedback follows the language the questions were written in
	lang := res.Language
	if lang == "" {
		lang = detected.Language
	}

	now := s.now().UTC()
	session := &models.InterviewSession{
		ID:             s.newID(),
		UserID:         in.UserID,
		JobDescription: jd,
		JobTitle:       in.JobTitle,
		CompanyName:    in.CompanyName,
		PoolKey:        res.PoolKey,
		Questions:      res.Questions,
		Answers:        map[string]string{},
		Feedbacks:      []models.InterviewFeedback{},
		Status:         models.StatusInProgress,
		Difficulty:     res.Difficulty,
		Language:       lang,
		TokensUsed:     res.TokensUsed() + detected.TokensUsed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.ObserveSessionEvent(EventCreated)
	span.SetAttributes(
		attribute.String("session.id", session.ID),
		attribute.Bool("pool.cache_hit", res.CacheHit),
	)
	s.logger.Info("interview session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID),
		zap.String("pool_key", session.PoolKey),
		zap.String("difficulty", string(session.Difficulty)),
		zap.String("language", session.Language),
		zap.Bool("cache_hit", res.CacheHit),
		zap.Int("tokens_used", session.TokensUsed))

	return &models.SessionResponse{Session: session, TokensUsed: session.TokensUsed, CacheHit: res.CacheHit}, nil
}

func (s *Service) GetSession(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	return s.load(ctx, userID, sessionID)
}

// SubmitAnswer evaluates answer and stores it. Resubmitting a question
// replaces its feedback; the current index never moves backwards.
func (s *Service) SubmitAnswer(ctx context.Context, userID, sessionID, questionID, answer string) (resp *models.SubmitAnswerResponse, err error) {
	ctx, span := tracer.Start(ctx, "interview.SubmitAnswer",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer func() { endSpan(span, err) }()

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer is required", models.ErrInvalidInput)
	}

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusInProgress {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, models.ErrSessionNotActive)
	}
	index := session.QuestionIndex(questionID)
	if index < 0 {
		return nil, fmt.Errorf("question %s in session %s: %w", questionID, sessionID, models.ErrNotFound)
	}

	feedback, tokens, err := s.evaluator.Evaluate(ctx, evaluation.Input{
		Question:       session.Questions[index],
		Answer:         answer,
		JobDescription: session.JobDescription,
		Language:       session.Language,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.sessions.ApplyAnswer(ctx, repositories.AnswerUpdate{
		SessionID:  sessionID,
		Feedback:   feedback,
		Answer:     answer,
		NextIndex:  index + 1,
		TokensUsed: tokens,
		At:         s.now().UTC(),
	})
	if err != nil {
		return nil, s.writeError(sessionID, err)
	}

	metrics.ObserveSessionEvent(EventAnswered)
	s.logger.Debug("answer evaluated",
		zap.String("session_id", sessionID),
		zap.String("question_id", questionID),
		zap.Int("score", feedback.Score),
		zap.Int("tokens_used", tokens))

	return &models.SubmitAnswerResponse{
		Feedback:             &feedback,
		CurrentQuestionIndex: updated.CurrentQuestionIndex,
		AnsweredCount:        len(updated.Feedbacks),
		TotalQuestions:       len(updated.Questions),
		TokensUsed:           tokens,
	}, nil
}

// CompleteSession closes the session with the mean feedback score. A
// session that is already completed is returned as is.
func (s *Service) CompleteSession(ctx context.Context, userID, sessionID string) (resp *models.SessionResponse, err error) {
	ctx, span := tracer.Start(ctx, "interview.CompleteSession",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer func() { endSpan(span, err) }()

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.StatusCompleted:
		return &models.SessionResponse{Session: session}, nil
	case models.StatusAbandoned:
		return nil, fmt.Errorf("session %s is abandoned: %w", sessionID, models.ErrSessionNotActive)
	}

	average := models.AverageFeedbackScore(session.Feedbacks)
	summary, tokens := s.aggregator.Summarize(ctx, session)

	now := s.now().UTC()
	completed, err := s.sessions.Complete(ctx, repositories.Completion{
		SessionID:       sessionID,
		AverageScore:    average,
		OverallFeedback: summary,
		TokensUsed:      tokens,
		At:              now,
	})
	if errors.Is(err, repositories.ErrConditionFailed) {
		// someone else closed it between our read and write
		current, loadErr := s.load(ctx, userID, sessionID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status == models.StatusCompleted {
			return &models.SessionResponse{Session: current, TokensUsed: tokens}, nil
		}
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, current.Status, models.ErrSessionNotActive)
	}
	if err != nil {
		return nil, s.writeError(sessionID, err)
	}

	metrics.ObserveSessionEvent(EventCompleted)
	s.publish(ctx, events.TypeCompleted, completed, now)
	s.logger.Info("interview session completed",
		zap.String("session_id", sessionID),
		zap.Float64("average_score", average),
		zap.Int("answered", len(completed.Feedbacks)),
		zap.Int("questions", len(completed.Questions)))

	return &models.SessionResponse{Session: completed, TokensUsed: tokens}, nil
}

// RetakeSession starts a fresh attempt at the same question snapshot
func (s *Service) RetakeSession(ctx context.Context, userID, sessionID string) (*models.SessionResponse, error) {
	original, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	retake := &models.InterviewSession{
		ID:             s.newID(),
		UserID:         original.UserID,
		JobDescription: original.JobDescription,
		JobTitle:       original.JobTitle,
		CompanyName:    original.CompanyName,
		PoolKey:        original.PoolKey,
		RetakeOf:       original.ID,
		Questions:      models.CloneQuestions(original.Questions),
		Answers:        map[string]string{},
		Feedbacks:      []models.InterviewFeedback{},
		Status:         models.StatusInProgress,
		Difficulty:     original.Difficulty,
		Language:       original.Language,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.sessions.Create(ctx, retake); err != nil {
		return nil, fmt.Errorf("create retake session: %w", err)
	}

	metrics.ObserveSessionEvent(EventRetaken)
	s.logger.Info("interview session retaken",
		zap.String("session_id", retake.ID),
		zap.String("retake_of", original.ID))
	return &models.SessionResponse{Session: retake}, nil
}

// AbandonSession is idempotent for abandoned sessions and rejects
// completed ones.
func (s *Service) AbandonSession(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.StatusAbandoned:
		return session, nil
	case models.StatusCompleted:
		return nil, fmt.Errorf("session %s is completed: %w", sessionID, models.ErrSessionNotActive)
	}

	now := s.now().UTC()
	abandoned, err := s.sessions.Abandon(ctx, sessionID, now)
	if errors.Is(err, repositories.ErrConditionFailed) {
		current, loadErr := s.load(ctx, userID, sessionID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status == models.StatusAbandoned {
			return current, nil
		}
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, current.Status, models.ErrSessionNotActive)
	}
	if err != nil {
		return nil, s.writeError(sessionID, err)
	}

	metrics.ObserveSessionEvent(EventAbandoned)
	s.publish(ctx, events.TypeAbandoned, abandoned, now)
	return abandoned, nil
}

// ListUserSessions returns the user's sessions newest first. An empty
// status lists all of them.
func (s *Service) ListUserSessions(ctx context.Context, userID string, status models.SessionStatus) ([]models.InterviewSession, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, status)
	}
	sessions, err := s.sessions.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []models.InterviewSession{}
	}
	return sessions, nil
}

func (s *Service) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	sessions, err := s.ListUserSessions(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	stats := &models.UserStats{TotalSessions: len(sessions)}
	var scoreSum float64
	scored := 0
	for _, session := range sessions {
		stats.AnsweredQuestions += len(session.Feedbacks)
		switch session.Status {
		case models.StatusInProgress:
			stats.InProgressSessions++
		case models.StatusAbandoned:
			stats.AbandonedSessions++
		case models.StatusCompleted:
			stats.CompletedSessions++
			if session.AverageScore == nil {
				continue
			}
			score := *session.AverageScore
			scoreSum += score
			scored++
			if stats.BestScore == nil || score > *stats.BestScore {
				best := score
				stats.BestScore = &best
			}
		}
	}
	if scored > 0 {
		stats.AverageScore = scoreSum / float64(scored)
	}
	return stats, nil
}

type PreGenerateInput struct {
	JobDescription string
	JobTitle       string
	CompanyName    string
	Count          int
	Difficulty     models.Difficulty
}

// PreGenerateQuestions warms the pool without creating a session. The
// language is only detected when a new set is generated.
func (s *Service) PreGenerateQuestions(ctx context.Context, in PreGenerateInput) (*models.PreGenerateResponse, error) {
	count, err := s.questionCount(in.Count)
	if err != nil {
		return nil, err
	}
	jd := strings.TrimSpace(in.JobDescription)

	detectionTokens := 0
	res, err := s.pool.GetOrCreate(ctx, pool.Request{
		JobDescription: jd,
		JobTitle:       in.JobTitle,
		CompanyName:    in.CompanyName,
		DifficultyHint: in.Difficulty,
		MinCount:       count,
		Language: func() string {
			detected := s.detector.Detect(ctx, jd)
			detectionTokens = detected.TokensUsed
			return detected.Language
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("question pool pre-generated",
		zap.String("pool_key", res.PoolKey),
		zap.String("difficulty", string(res.Difficulty)),
		zap.Bool("cache_hit", res.CacheHit))

	return &models.PreGenerateResponse{
		PoolKey:       res.PoolKey,
		Difficulty:    res.Difficulty,
		QuestionCount: len(res.Questions),
		CacheHit:      res.CacheHit,
		TokensUsed:    res.TokensUsed() + detectionTokens,
	}, nil
}

// AbandonIdle abandons every in-progress session untouched for longer than
// idle and returns how many were closed.
func (s *Service) AbandonIdle(ctx context.Context, idle time.Duration) (int, error) {
	now := s.now().UTC()
	reaped, err := s.sessions.AbandonStale(ctx, now.Add(-idle), now)
	for i := range reaped {
		metrics.ObserveSessionEvent(EventReaped)
		s.publish(ctx, events.TypeAbandoned, &reaped[i], now)
	}
	if err != nil {
		return len(reaped), fmt.Errorf("abandon idle sessions: %w", err)
	}
	return len(reaped), nil
}

// load returns the session only when userID owns it
func (s *Service) load(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	return session, nil
}

func (s *Service) questionCount(n int) (int, error) {
	if n == 0 {
		n = models.DefaultQuestionCount
		if n > s.maxCount {
			n = s.maxCount
		}
	}
	if n < models.MinQuestionCount || n > s.maxCount {
		return 0, fmt.Errorf("%w: count must be between %d and %d", models.ErrInvalidInput, models.MinQuestionCount, s.maxCount)
	}
	return n, nil
}

// writeError maps repository failures of a conditional session write
func (s *Service) writeError(sessionID string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	case errors.Is(err, repositories.ErrConditionFailed):
		return fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotActive)
	default:
		return fmt.Errorf("update session %s: %w", sessionID, err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, session *models.InterviewSession, at time.Time) {
	if err := s.events.Publish(ctx, events.FromSession(eventType, session, at)); err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("type", eventType),
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
