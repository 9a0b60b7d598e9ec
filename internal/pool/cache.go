package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"cvone/interview/internal/difficulty"
	"cvone/interview/internal/metrics"
	"cvone/interview/internal/models"
	"cvone/interview/internal/questions"
	"cvone/interview/internal/repositories"
)

var tracer = otel.Tracer("cvone/interview/pool")

// Classifier picks a difficulty for a job description
type Classifier interface {
	Classify(ctx context.Context, jobTitle, jobDescription string) difficulty.Result
}

// Generator produces fresh question sets
type Generator interface {
	Generate(ctx context.Context, in questions.Input) ([]models.InterviewQuestion, int, error)
}

type Request struct {
	JobDescription string
	JobTitle       string
	CompanyName    string
	// DifficultyHint is probed first and, when valid, replaces classification
	DifficultyHint models.Difficulty
	MinCount       int
	// Language is only consulted when a new set has to be generated. It may
	// block until a concurrent detection finishes.
	Language func() string
}

type Result struct {
	Questions  []models.InterviewQuestion
	Difficulty models.Difficulty
	PoolKey    string
	// Language of the question texts
	Language             string
	CacheHit             bool
	ClassificationTokens int
	GenerationTokens     int
}

func (r *Result) TokensUsed() int {
	return r.ClassificationTokens + r.GenerationTokens
}

// Cache deduplicates question generation across users. It holds no state
// of its own: every lookup goes to the repository, and the only race
// (two callers generating the same key) is settled by the repository's
// atomic insert-if-absent.
type Cache struct {
	repo       repositories.PoolRepository
	classifier Classifier
	generator  Generator
	logger     *zap.Logger
	now        func() time.Time
}

func NewCache(repo repositories.PoolRepository, classifier Classifier, generator Generator, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		repo:       repo,
		classifier: classifier,
		generator:  generator,
		logger:     logger.Named("pool"),
		now:        time.Now,
	}
}

func (c *Cache) GetOrCreate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pool.GetOrCreate")
	defer span.End()

	res, err := c.getOrCreate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("pool.key", res.PoolKey),
		attribute.String("pool.difficulty", string(res.Difficulty)),
		attribute.Bool("pool.cache_hit", res.CacheHit),
		attribute.Int("pool.tokens", res.TokensUsed()),
	)
	return res, nil
}

func (c *Cache) getOrCreate(ctx context.Context, req Request) (*Result, error) {
	if req.MinCount < models.MinQuestionCount {
		return nil, fmt.Errorf("%w: question count must be at least %d", models.ErrInvalidInput, models.MinQuestionCount)
	}
	normalized := Normalize(req.JobDescription)
	if normalized == "" {
		return nil, fmt.Errorf("%w: job description is required", models.ErrInvalidInput)
	}

	hint := req.DifficultyHint
	if hint != "" && !hint.Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", models.ErrInvalidInput, hint)
	}

	for _, d := range probeOrder(hint) {
		res, err := c.probe(ctx, normalized, d, req.MinCount)
		if err != nil {
			return nil, err
		}
		if res != nil {
			metrics.ObservePoolLookup(metrics.PoolHit)
			return res, nil
		}
	}

	chosen, classificationTokens := hint, 0
	if !chosen.Valid() {
		cr := c.classifier.Classify(ctx, req.JobTitle, req.JobDescription)
		chosen, classificationTokens = cr.Difficulty, cr.TokensUsed
	}

	// another caller may have filled the key while we were classifying
	res, err := c.probe(ctx, normalized, chosen, req.MinCount)
	if err != nil {
		return nil, err
	}
	if res != nil {
		metrics.ObservePoolLookup(metrics.PoolRaceHit)
		res.ClassificationTokens = classificationTokens
		return res, nil
	}

	language := models.DefaultLanguage
	if req.Language != nil {
		if l := req.Language(); models.SupportedLanguages[l] {
			language = l
		}
	}

	generated, generationTokens, err := c.generator.Generate(ctx, questions.Input{
		JobDescription: req.JobDescription,
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		Count:          req.MinCount,
		Difficulty:     chosen,
		Language:       language,
	})
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	key := PoolKey(normalized, chosen)
	entry := &models.QuestionPoolEntry{
		PoolKey:                  key,
		JobDescription:           req.JobDescription,
		NormalizedJobDescription: normalized,
		JobTitle:                 req.JobTitle,
		CompanyName:              req.CompanyName,
		Difficulty:               chosen,
		Language:                 language,
		Questions:                generated,
		UsageCount:               1,
		LastUsedAt:               now,
		CreatedAt:                now,
	}

	result := &Result{
		Questions:            models.CloneQuestions(generated),
		Difficulty:           chosen,
		PoolKey:              key,
		Language:             language,
		ClassificationTokens: classificationTokens,
		GenerationTokens:     generationTokens,
	}

	inserted, err := c.repo.InsertOrTouch(ctx, entry)
	switch {
	case err == nil && inserted:
		metrics.ObservePoolLookup(metrics.PoolGenerated)
		c.logger.Info("question pool entry created",
			zap.String("pool_key", key),
			zap.String("difficulty", string(chosen)),
			zap.Int("questions", len(generated)))
		return result, nil
	case errors.Is(err, repositories.ErrDuplicateKey):
		// the winner's insert landed between our upsert's match and write
		if err := c.repo.Touch(ctx, key, now); err != nil {
			c.logger.Warn("failed to touch pool entry after conflict", zap.String("pool_key", key), zap.Error(err))
		}
	case err != nil:
		return nil, fmt.Errorf("store pool entry: %w", err)
	}

	// lost the race: the stored set is canonical, ours is discarded
	canonical, err := c.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("re-read pool entry: %w", err)
	}
	if len(canonical.Questions) < req.MinCount {
		// the stored set is smaller than requested; serve ours uncached
		metrics.ObservePoolLookup(metrics.PoolUncached)
		c.logger.Info("pool entry too small for request, serving uncached questions",
			zap.String("pool_key", key),
			zap.Int("stored", len(canonical.Questions)),
			zap.Int("requested", req.MinCount))
		return result, nil
	}

	metrics.ObservePoolLookup(metrics.PoolConflict)
	c.logger.Info("lost question pool race, using stored set", zap.String("pool_key", key))
	result.Questions = models.CloneQuestions(canonical.Questions[:req.MinCount])
	result.Language = canonical.Language
	return result, nil
}

// probe returns nil when the tier has no entry large enough
func (c *Cache) probe(ctx context.Context, normalized string, d models.Difficulty, minCount int) (*Result, error) {
	key := PoolKey(normalized, d)
	entry, err := c.repo.FindByKey(ctx, key)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pool entry: %w", err)
	}
	if len(entry.Questions) < minCount {
		return nil, nil
	}

	if err := c.repo.Touch(ctx, key, c.now().UTC()); err != nil {
		c.logger.Warn("failed to touch pool entry", zap.String("pool_key", key), zap.Error(err))
	}
	return &Result{
		Questions:  models.CloneQuestions(entry.Questions[:minCount]),
		Difficulty: entry.Difficulty,
		PoolKey:    key,
		Language:   entry.Language,
		CacheHit:   true,
	}, nil
}

// probeOrder lists the hint first, then the remaining tiers easiest first
func probeOrder(hint models.Difficulty) []models.Difficulty {
	tiers := models.DifficultyTiers()
	if !hint.Valid() {
		return tiers
	}
	order := []models.Difficulty{hint}
	for _, d := range tiers {
		if d != hint {
			order = append(order, d)
		}
	}
	return order
}
