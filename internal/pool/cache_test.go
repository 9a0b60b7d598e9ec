package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvone/interview/internal/difficulty"
	"cvone/interview/internal/models"
	"cvone/interview/internal/questions"
	"cvone/interview/internal/repositories"
	"cvone/interview/internal/repositories/memory"
)

type fakeClassifier struct {
	result difficulty.Result
	calls  atomic.Int32
}

func (f *fakeClassifier) Classify(context.Context, string, string) difficulty.Result {
	f.calls.Add(1)
	return f.result
}

type fakeGenerator struct {
	delay  time.Duration
	err    error
	tokens int
	calls  atomic.Int32
	inputs chan questions.Input
}

func (f *fakeGenerator) Generate(ctx context.Context, in questions.Input) ([]models.InterviewQuestion, int, error) {
	n := f.calls.Add(1)
	if f.inputs != nil {
		f.inputs <- in
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.tokens, f.err
	}
	out := make([]models.InterviewQuestion, in.Count)
	for i := range out {
		out[i] = models.InterviewQuestion{
			ID:         fmt.Sprintf("call%d-q%d", n, i),
			Question:   fmt.Sprintf("call %d question %d (%s)", n, i, in.Language),
			Category:   models.Categories()[i%4],
			Difficulty: in.Difficulty,
			Tips:       []string{"tip"},
		}
	}
	return out, f.tokens, nil
}

func newTestCache(repo repositories.PoolRepository, c *fakeClassifier, g *fakeGenerator) *Cache {
	return NewCache(repo, c, g, nil)
}

func TestGetOrCreateMissGeneratesAndStores(t *testing.T) {
	repo := memory.NewPoolRepository()
	cls := &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyHard, TokensUsed: 20}}
	gen := &fakeGenerator{tokens: 500}
	cache := newTestCache(repo, cls, gen)

	res, err := cache.GetOrCreate(context.Background(), Request{
		JobDescription: "Senior backend engineer, 6+ years, Kubernetes, system design",
		MinCount:       10,
		Language:       func() string { return models.LanguageGerman },
	})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, models.DifficultyHard, res.Difficulty)
	assert.Equal(t, models.LanguageGerman, res.Language)
	assert.Len(t, res.Questions, 10)
	assert.Equal(t, 20, res.ClassificationTokens)
	assert.Equal(t, 500, res.GenerationTokens)
	assert.Equal(t, 520, res.TokensUsed())

	entry, err := repo.FindByKey(context.Background(), res.PoolKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.UsageCount)
	assert.Equal(t, "senior backend engineer, 6+ years, kubernetes, system design", entry.NormalizedJobDescription)
}

func TestGetOrCreateHitCostsNothing(t *testing.T) {
	repo := memory.NewPoolRepository()
	cls := &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyMedium, TokensUsed: 20}}
	gen := &fakeGenerator{tokens: 500}
	cache := newTestCache(repo, cls, gen)
	ctx := context.Background()

	first, err := cache.GetOrCreate(ctx, Request{JobDescription: "Go developer", MinCount: 5})
	require.NoError(t, err)

	second, err := cache.GetOrCreate(ctx, Request{JobDescription: "  GO   developer ", MinCount: 3})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Zero(t, second.TokensUsed())
	assert.Equal(t, first.PoolKey, second.PoolKey)
	require.Len(t, second.Questions, 3)
	assert.Equal(t, first.Questions[:3], second.Questions)

	assert.Equal(t, int32(1), cls.calls.Load())
	assert.Equal(t, int32(1), gen.calls.Load())

	entry, err := repo.FindByKey(ctx, first.PoolKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.UsageCount)
}

func TestGetOrCreateProbesAllTiers(t *testing.T) {
	repo := memory.NewPoolRepository()
	cls := &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyEasy}}
	gen := &fakeGenerator{}
	cache := newTestCache(repo, cls, gen)
	ctx := context.Background()

	_, err := cache.GetOrCreate(ctx, Request{JobDescription: "Intern", MinCount: 4, DifficultyHint: models.DifficultyEasy})
	require.NoError(t, err)

	// a hard hint still finds the easy entry
	res, err := cache.GetOrCreate(ctx, Request{JobDescription: "Intern", MinCount: 4, DifficultyHint: models.DifficultyHard})
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Equal(t, models.DifficultyEasy, res.Difficulty)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestGetOrCreateValidHintSkipsClassification(t *testing.T) {
	cls := &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyEasy, TokensUsed: 9}}
	gen := &fakeGenerator{}
	cache := newTestCache(memory.NewPoolRepository(), cls, gen)

	res, err := cache.GetOrCreate(context.Background(), Request{JobDescription: "jd", MinCount: 2, DifficultyHint: models.DifficultyHard})
	require.NoError(t, err)
	assert.Equal(t, models.DifficultyHard, res.Difficulty)
	assert.Zero(t, res.ClassificationTokens)
	assert.Zero(t, cls.calls.Load())
}

func TestGetOrCreateGenerationFailureWritesNothing(t *testing.T) {
	repo := memory.NewPoolRepository()
	gen := &fakeGenerator{err: fmt.Errorf("generate questions: %w", models.ErrProviderUnavailable)}
	cache := newTestCache(repo, &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyMedium}}, gen)

	_, err := cache.GetOrCreate(context.Background(), Request{JobDescription: "jd", MinCount: 2})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)

	n, _ := repo.Count(context.Background())
	assert.Zero(t, n)
}

func TestGetOrCreateRejectsBadInput(t *testing.T) {
	cache := newTestCache(memory.NewPoolRepository(), &fakeClassifier{}, &fakeGenerator{})
	ctx := context.Background()

	_, err := cache.GetOrCreate(ctx, Request{JobDescription: "   ", MinCount: 2})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = cache.GetOrCreate(ctx, Request{JobDescription: "jd", MinCount: 0})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = cache.GetOrCreate(ctx, Request{JobDescription: "jd", MinCount: 1, DifficultyHint: "insane"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestGetOrCreateConcurrentCallersShareOneEntry(t *testing.T) {
	repo := memory.NewPoolRepository()
	cls := &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyHard, TokensUsed: 5}}
	// the delay keeps every caller inside the miss window
	gen := &fakeGenerator{delay: 20 * time.Millisecond, tokens: 100}
	cache := newTestCache(repo, cls, gen)

	const callers = 8
	results := make([]*Result, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = cache.GetOrCreate(context.Background(), Request{
				JobDescription: "Senior backend engineer, 6+ years, Kubernetes, system design",
				MinCount:       10,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, repo.Inserts())

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i].Questions, 10)
		assert.Equal(t, results[0].PoolKey, results[i].PoolKey)
		for j := range results[i].Questions {
			assert.Equal(t, results[0].Questions[j].Question, results[i].Questions[j].Question)
			assert.Equal(t, results[0].Questions[j].ID, results[i].Questions[j].ID)
		}
	}

	entry, err := repo.FindByKey(context.Background(), results[0].PoolKey)
	require.NoError(t, err)
	assert.Equal(t, int64(callers), entry.UsageCount)
}

// conflictRepo simulates losing the upsert race with a duplicate-key error:
// a competitor's entry lands right before ours.
type conflictRepo struct {
	*memory.PoolRepository
	competitor *models.QuestionPoolEntry
}

func (r *conflictRepo) InsertOrTouch(ctx context.Context, entry *models.QuestionPoolEntry) (bool, error) {
	winner := *r.competitor
	winner.PoolKey = entry.PoolKey
	if _, err := r.PoolRepository.InsertOrTouch(ctx, &winner); err != nil {
		return false, err
	}
	return false, repositories.ErrDuplicateKey
}

func TestGetOrCreateDuplicateKeyRereadsCanonicalSet(t *testing.T) {
	competitor := &models.QuestionPoolEntry{
		Difficulty: models.DifficultyMedium,
		Language:   models.LanguageFrench,
		Questions: []models.InterviewQuestion{
			{ID: "w1", Question: "winner 1", Category: models.CategoryTechnical, Tips: []string{"t"}},
			{ID: "w2", Question: "winner 2", Category: models.CategoryCompany, Tips: []string{"t"}},
		},
		UsageCount: 1,
	}
	repo := &conflictRepo{PoolRepository: memory.NewPoolRepository(), competitor: competitor}
	cache := newTestCache(repo, &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyMedium}}, &fakeGenerator{tokens: 50})

	res, err := cache.GetOrCreate(context.Background(), Request{JobDescription: "jd", MinCount: 2})
	require.NoError(t, err)
	assert.Equal(t, "winner 1", res.Questions[0].Question)
	assert.Equal(t, models.LanguageFrench, res.Language)
	assert.Equal(t, 50, res.GenerationTokens)

	entry, err := repo.FindByKey(context.Background(), res.PoolKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.UsageCount)
}

func TestGetOrCreateServesUncachedWhenStoredSetTooSmall(t *testing.T) {
	repo := memory.NewPoolRepository()
	gen := &fakeGenerator{}
	cache := newTestCache(repo, &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyMedium}}, gen)
	ctx := context.Background()

	_, err := cache.GetOrCreate(ctx, Request{JobDescription: "jd", MinCount: 3})
	require.NoError(t, err)

	res, err := cache.GetOrCreate(ctx, Request{JobDescription: "jd", MinCount: 6})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Len(t, res.Questions, 6)

	entry, err := repo.FindByKey(ctx, res.PoolKey)
	require.NoError(t, err)
	assert.Len(t, entry.Questions, 3)
}

func TestGetOrCreateLanguageOnlyResolvedOnGeneration(t *testing.T) {
	repo := memory.NewPoolRepository()
	cache := newTestCache(repo, &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyMedium}}, &fakeGenerator{})
	ctx := context.Background()

	_, err := cache.GetOrCreate(ctx, Request{JobDescription: "jd", MinCount: 2})
	require.NoError(t, err)

	called := false
	_, err = cache.GetOrCreate(ctx, Request{JobDescription: "jd", MinCount: 2, Language: func() string {
		called = true
		return "en"
	}})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestGetOrCreateUnsupportedLanguageFallsBack(t *testing.T) {
	inputs := make(chan questions.Input, 1)
	cache := newTestCache(memory.NewPoolRepository(), &fakeClassifier{result: difficulty.Result{Difficulty: models.DifficultyMedium}}, &fakeGenerator{inputs: inputs})

	_, err := cache.GetOrCreate(context.Background(), Request{JobDescription: "jd", MinCount: 1, Language: func() string { return "xx" }})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultLanguage, (<-inputs).Language)
}

type failingRepo struct {
	*memory.PoolRepository
}

func (failingRepo) FindByKey(context.Context, string) (*models.QuestionPoolEntry, error) {
	return nil, errors.New("connection refused")
}

func TestGetOrCreateSurfacesStoreErrors(t *testing.T) {
	cache := newTestCache(failingRepo{memory.NewPoolRepository()}, &fakeClassifier{}, &fakeGenerator{})
	_, err := cache.GetOrCreate(context.Background(), Request{JobDescription: "jd", MinCount: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
