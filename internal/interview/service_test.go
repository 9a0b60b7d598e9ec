package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvone/interview/internal/difficulty"
	"cvone/interview/internal/evaluation"
	"cvone/interview/internal/events"
	"cvone/interview/internal/language"
	"cvone/interview/internal/llm"
	"cvone/interview/internal/llm/llmtest"
	"cvone/interview/internal/models"
	"cvone/interview/internal/pool"
	"cvone/interview/internal/prompts"
	"cvone/interview/internal/questions"
	"cvone/interview/internal/repositories/memory"
)

const seniorJD = "Senior backend engineer, 6+ years, Kubernetes, system design"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SessionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc       *Service
	provider  *llmtest.Provider
	store     *memory.Store
	published *recordingPublisher
	generated atomic.Int32
}

// newHarness wires the real components against a scripted provider: the
// classifier answers "hard", every generation call produces a distinct
// question set, evaluations score 7 and summaries succeed.
func newHarness(t *testing.T) *harness {
	t.Helper()

	pm, err := prompts.NewPromptManager()
	require.NoError(t, err)

	h := &harness{
		provider:  llmtest.New(),
		store:     memory.NewStore(),
		published: &recordingPublisher{},
	}
	h.provider.
		Default(prompts.ClassifyDifficulty, llmtest.Reply{Content: `{"difficulty":"hard"}`, TokensUsed: 5}).
		Default(prompts.EvaluateAnswer, llmtest.Reply{Content: llmtest.EvaluationJSON(7), TokensUsed: 10}).
		Default(prompts.SummarizeSession, llmtest.Reply{Content: "Great job", TokensUsed: 3}).
		Handle(func(req *models.GenerationRequest) (llmtest.Reply, bool) {
			if req.Operation != prompts.GenerateQuestions {
				return llmtest.Reply{}, false
			}
			n := h.generated.Add(1)
			return llmtest.Reply{
				Content:    llmtest.QuestionsJSON(models.MaxQuestionCount, fmt.Sprintf("set%d", n)),
				TokensUsed: 100,
			}, true
		})

	policy := llm.RetryPolicy{MaxAttempts: 2, Timeout: time.Second}
	classifier := difficulty.NewClassifier(h.provider, pm, time.Second, nil)
	generator := questions.NewGenerator(h.provider, pm, policy, nil)

	h.svc = NewService(Deps{
		Sessions:   h.store.Sessions(),
		Pool:       pool.NewCache(h.store.Pools(), classifier, generator, nil),
		Detector:   language.NewDetector(h.provider, pm, time.Second, nil),
		Evaluator:  evaluation.NewEvaluator(h.provider, pm, policy, nil),
		Aggregator: evaluation.NewAggregator(h.provider, pm, time.Second, nil),
		Events:     h.published,
	})
	return h
}

func (h *harness) create(t *testing.T, userID string, count int) *models.InterviewSession {
	t.Helper()
	resp, err := h.svc.CreateSession(context.Background(), CreateInput{
		UserID:         userID,
		JobDescription: seniorJD,
		Count:          count,
	})
	require.NoError(t, err)
	return resp.Session
}

func questionTexts(qs []models.InterviewQuestion) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Question
	}
	return out
}

func TestCreateSessionGeneratesThenReusesPool(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.CreateSession(ctx, CreateInput{UserID: "alice", JobDescription: seniorJD, Count: 5})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 105, first.TokensUsed)
	assert.Len(t, first.Session.Questions, 5)
	assert.Equal(t, models.DifficultyHard, first.Session.Difficulty)
	assert.Equal(t, models.StatusInProgress, first.Session.Status)
	assert.Equal(t, 0, first.Session.CurrentQuestionIndex)
	assert.Equal(t, "en", first.Session.Language)

	// whitespace and case differences hit the same entry
	second, err := h.svc.CreateSession(ctx, CreateInput{UserID: "bob", JobDescription: "  SENIOR backend engineer,   6+ years, Kubernetes, system design", Count: 5})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 0, second.TokensUsed)
	assert.Equal(t, questionTexts(first.Session.Questions), questionTexts(second.Session.Questions))
	assert.NotEqual(t, first.Session.ID, second.Session.ID)

	assert.Equal(t, 1, h.provider.Calls(prompts.GenerateQuestions))
	assert.Equal(t, 1, h.provider.Calls(prompts.ClassifyDifficulty))
	n, _ := h.store.Pools().Count(ctx)
	assert.EqualValues(t, 1, n)
}

func TestCreateSessionConcurrentCallersShareOneEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const callers = 2
	results := make([]*models.SessionResponse, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.CreateSession(ctx, CreateInput{
				UserID:         fmt.Sprintf("user-%d", i),
				JobDescription: seniorJD,
				Count:          10,
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, models.DifficultyHard, results[i].Session.Difficulty)
		assert.Len(t, results[i].Session.Questions, 10)
	}
	assert.Equal(t, questionTexts(results[0].Session.Questions), questionTexts(results[1].Session.Questions))

	n, _ := h.store.Pools().Count(ctx)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, h.store.Pools().(*memory.PoolRepository).Inserts())

	entry, err := h.store.Pools().FindByKey(ctx, pool.PoolKey(pool.Normalize(seniorJD), models.DifficultyHard))
	require.NoError(t, err)
	assert.Len(t, entry.Questions, 10)
	assert.EqualValues(t, 2, entry.UsageCount)
}

func TestCreateSessionDifficultyHintSkipsClassifier(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.CreateSession(context.Background(), CreateInput{
		UserID:         "alice",
		JobDescription: seniorJD,
		Count:          4,
		Difficulty:     models.DifficultyEasy,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DifficultyEasy, resp.Session.Difficulty)
	assert.Equal(t, 100, resp.TokensUsed)
	assert.Equal(t, 0, h.provider.Calls(prompts.ClassifyDifficulty))

	seen := map[models.Category]bool{}
	for _, q := range resp.Session.Questions {
		seen[q.Category] = true
	}
	assert.Len(t, seen, 4, "every category should be covered")
}

func TestCreateSessionGeneratesInDetectedLanguage(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.CreateSession(context.Background(), CreateInput{
		UserID:         "alice",
		JobDescription: "Kỹ sư phần mềm phát triển hệ thống thanh toán với Go và Kubernetes",
		Count:          3,
	})
	require.NoError(t, err)
	assert.Equal(t, "vi", resp.Session.Language)
	assert.True(t, h.provider.PromptContains(prompts.GenerateQuestions, `"vi"`))
	assert.Equal(t, 0, h.provider.Calls(prompts.DetectLanguage))
}

func TestCreateSessionCacheHitKeepsStoredLanguage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	now := time.Now().UTC()
	qs := make([]models.InterviewQuestion, 5)
	for i := range qs {
		qs[i] = models.InterviewQuestion{
			ID:         fmt.Sprintf("vi-%d", i),
			Question:   fmt.Sprintf("Câu hỏi %d", i+1),
			Category:   models.CategoryTechnical,
			Difficulty: models.DifficultyHard,
		}
	}
	normalized := pool.Normalize(seniorJD)
	_, err := h.store.Pools().InsertOrTouch(ctx, &models.QuestionPoolEntry{
		PoolKey:                  pool.PoolKey(normalized, models.DifficultyHard),
		JobDescription:           seniorJD,
		NormalizedJobDescription: normalized,
		Difficulty:               models.DifficultyHard,
		Language:                 "vi",
		Questions:                qs,
		LastUsedAt:               now,
		CreatedAt:                now,
	})
	require.NoError(t, err)

	resp, err := h.svc.CreateSession(ctx, CreateInput{UserID: "alice", JobDescription: seniorJD, Count: 3})
	require.NoError(t, err)
	require.True(t, resp.CacheHit)
	assert.Equal(t, "vi", resp.Session.Language)

	_, err = h.svc.SubmitAnswer(ctx, "alice", resp.Session.ID, resp.Session.Questions[0].ID, "Tôi sẽ dùng Go")
	require.NoError(t, err)
	assert.True(t, h.provider.PromptContains(prompts.EvaluateAnswer, `"vi"`))
}

func TestCreateSessionValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []CreateInput{
		{JobDescription: seniorJD},
		{UserID: "alice", JobDescription: "   "},
		{UserID: "alice", JobDescription: seniorJD, Count: models.MaxQuestionCount + 1},
		{UserID: "alice", JobDescription: seniorJD, Count: -1},
		{UserID: "alice", JobDescription: seniorJD, Difficulty: "impossible"},
	}
	for _, in := range cases {
		_, err := h.svc.CreateSession(ctx, in)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "input %+v", in)
	}
	assert.Equal(t, 0, h.provider.Calls(""))
}

func TestCreateSessionGenerationFailureLeavesNoState(t *testing.T) {
	h := newHarness(t)
	h.provider.Handle(func(req *models.GenerationRequest) (llmtest.Reply, bool) {
		if req.Operation != prompts.GenerateQuestions {
			return llmtest.Reply{}, false
		}
		return llmtest.Reply{Err: &llm.ProviderError{Provider: "llmtest", Code: llm.ErrCodeServiceDown, Message: "down"}}, true
	})
	ctx := context.Background()

	_, err := h.svc.CreateSession(ctx, CreateInput{UserID: "alice", JobDescription: seniorJD, Count: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrProviderUnavailable))
	assert.Equal(t, 2, h.provider.Calls(prompts.GenerateQuestions))

	n, _ := h.store.Pools().Count(ctx)
	assert.EqualValues(t, 0, n)
	sessions, err := h.svc.ListUserSessions(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSubmitAnswerIsMonotonicAndUpserts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.create(t, "alice", 4)
	q := session.Questions

	resp, err := h.svc.SubmitAnswer(ctx, "alice", session.ID, q[2].ID, "I would shard the database")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.CurrentQuestionIndex)
	assert.Equal(t, 1, resp.AnsweredCount)
	assert.Equal(t, 4, resp.TotalQuestions)
	assert.Equal(t, 10, resp.TokensUsed)
	assert.Equal(t, q[2].ID, resp.Feedback.QuestionID)
	assert.GreaterOrEqual(t, resp.Feedback.Score, models.MinScore)
	assert.LessOrEqual(t, resp.Feedback.Score, models.MaxScore)

	resp, err = h.svc.SubmitAnswer(ctx, "alice", session.ID, q[0].ID, "Because Go is simple")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.CurrentQuestionIndex, "index must not move backwards")

	h.provider.Enqueue(prompts.EvaluateAnswer, llmtest.Reply{Content: llmtest.EvaluationJSON(3), TokensUsed: 10})
	resp, err = h.svc.SubmitAnswer(ctx, "alice", session.ID, q[2].ID, "Actually I am not sure")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.AnsweredCount)

	stored, err := h.svc.GetSession(ctx, "alice", session.ID)
	require.NoError(t, err)
	fb, ok := stored.FeedbackFor(q[2].ID)
	require.True(t, ok)
	assert.Equal(t, 3, fb.Score)
	assert.Equal(t, "Actually I am not sure", stored.Answers[q[2].ID])

	seen := map[string]bool{}
	for _, f := range stored.Feedbacks {
		assert.False(t, seen[f.QuestionID], "duplicate feedback for %s", f.QuestionID)
		seen[f.QuestionID] = true
	}
	assert.Equal(t, 105+30, stored.TokensUsed)
}

func TestSubmitAnswerConcurrentSameSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.create(t, "alice", 5)
	q := session.Questions
	picked := []int{0, 3, 1, 3, 0, 2, 1, 3, 2, 0, 3, 1}

	var wg sync.WaitGroup
	errs := make([]error, len(picked))
	for i, idx := range picked {
		wg.Add(1)
		go func(i, idx int) {
			defer wg.Done()
			_, errs[i] = h.svc.SubmitAnswer(ctx, "alice", session.ID, q[idx].ID, fmt.Sprintf("answer %d", i))
		}(i, idx)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	stored, err := h.svc.GetSession(ctx, "alice", session.ID)
	require.NoError(t, err)

	distinct := map[string]bool{}
	maxNext := 0
	for _, idx := range picked {
		distinct[q[idx].ID] = true
		if idx+1 > maxNext {
			maxNext = idx + 1
		}
	}
	seen := map[string]bool{}
	for _, f := range stored.Feedbacks {
		assert.False(t, seen[f.QuestionID], "duplicate feedback for %s", f.QuestionID)
		seen[f.QuestionID] = true
	}
	assert.Len(t, stored.Feedbacks, len(distinct))
	assert.Len(t, stored.Answers, len(distinct))
	assert.Equal(t, maxNext, stored.CurrentQuestionIndex)
	assert.Equal(t, 105+10*len(picked), stored.TokensUsed)
	for qid, answer := range stored.Answers {
		fb, ok := stored.FeedbackFor(qid)
		require.True(t, ok)
		assert.Equal(t, answer, fb.UserAnswer, "answer and feedback for %s come from different writes", qid)
	}
}

func TestSubmitAnswerErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.create(t, "alice", 2)
	qid := session.Questions[0].ID

	_, err := h.svc.SubmitAnswer(ctx, "mallory", session.ID, qid, "answer")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = h.svc.SubmitAnswer(ctx, "alice", "missing", qid, "answer")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = h.svc.SubmitAnswer(ctx, "alice", session.ID, "not-a-question", "answer")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = h.svc.SubmitAnswer(ctx, "alice", session.ID, qid, "  ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	h.provider.Enqueue(prompts.EvaluateAnswer, llmtest.Reply{Content: `{"score": 11, "feedback": "too generous"}`})
	_, err = h.svc.SubmitAnswer(ctx, "alice", session.ID, qid, "answer")
	assert.ErrorIs(t, err, models.ErrValidation)
	stored, _ := h.svc.GetSession(ctx, "alice", session.ID)
	assert.Empty(t, stored.Feedbacks)
	assert.Equal(t, 0, stored.CurrentQuestionIndex)

	_, err = h.svc.CompleteSession(ctx, "alice", session.ID)
	require.NoError(t, err)
	_, err = h.svc.SubmitAnswer(ctx, "alice", session.ID, qid, "answer")
	assert.ErrorIs(t, err, models.ErrSessionNotActive)
}

func TestCompleteSessionAveragesScores(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.create(t, "alice", 3)

	h.provider.Enqueue(prompts.EvaluateAnswer, llmtest.Reply{Content: llmtest.EvaluationJSON(6), TokensUsed: 10})
	h.provider.Enqueue(prompts.EvaluateAnswer, llmtest.Reply{Content: llmtest.EvaluationJSON(9), TokensUsed: 10})
	_, err := h.svc.SubmitAnswer(ctx, "alice", session.ID, session.Questions[0].ID, "first")
	require.NoError(t, err)
	_, err = h.svc.SubmitAnswer(ctx, "alice", session.ID, session.Questions[1].ID, "second")
	require.NoError(t, err)

	resp, err := h.svc.CompleteSession(ctx, "alice", session.ID)
	require.NoError(t, err)
	completed := resp.Session
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.AverageScore)
	assert.Equal(t, 7.5, *completed.AverageScore)
	assert.Equal(t, "Great job", completed.OverallFeedback)
	assert.NotNil(t, completed.CompletedAt)
	assert.Equal(t, 3, resp.TokensUsed)
	assert.Equal(t, []string{events.TypeCompleted}, h.published.types())

	again, err := h.svc.CompleteSession(ctx, "alice", session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.TokensUsed)
	assert.Equal(t, *completed.AverageScore, *again.Session.AverageScore)
	assert.Equal(t, 1, h.provider.Calls(prompts.SummarizeSession), "completed sessions are not summarised twice")
	assert.Len(t, h.published.types(), 1)
}

func TestCompleteSessionWithoutAnswers(t *testing.T) {
	h := newHarness(t)
	session := h.create(t, "alice", 2)

	resp, err := h.svc.CompleteSession(context.Background(), "alice", session.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.Session.AverageScore)
	assert.Equal(t, 0.0, *resp.Session.AverageScore)
	assert.Contains(t, resp.Session.OverallFeedback, "0.0/10")
	assert.Equal(t, 0, h.provider.Calls(prompts.SummarizeSession))
}

func TestCompleteSessionSummaryFailureStillCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.create(t, "alice", 2)
	_, err := h.svc.SubmitAnswer(ctx, "alice", session.ID, session.Questions[0].ID, "answer")
	require.NoError(t, err)

	h.provider.Enqueue(prompts.SummarizeSession, llmtest.Reply{Err: &llm.ProviderError{Code: llm.ErrCodeTimeout}})
	resp, err := h.svc.CompleteSession(ctx, "alice", session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, resp.Session.Status)
	assert.Contains(t, resp.Session.OverallFeedback, "7.0/10")
}

func TestRetakeSessionCopiesQuestionsOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	original := h.create(t, "alice", 3)
	_, err := h.svc.SubmitAnswer(ctx, "alice", original.ID, original.Questions[1].ID, "answer")
	require.NoError(t, err)
	_, err = h.svc.CompleteSession(ctx, "alice", original.ID)
	require.NoError(t, err)
	generations := h.provider.Calls(prompts.GenerateQuestions)

	resp, err := h.svc.RetakeSession(ctx, "alice", original.ID)
	require.NoError(t, err)
	retake := resp.Session
	assert.NotEqual(t, original.ID, retake.ID)
	assert.Equal(t, original.ID, retake.RetakeOf)
	assert.Equal(t, original.Questions, retake.Questions)
	assert.Empty(t, retake.Answers)
	assert.Empty(t, retake.Feedbacks)
	assert.Equal(t, 0, retake.CurrentQuestionIndex)
	assert.Equal(t, models.StatusInProgress, retake.Status)
	assert.Equal(t, 0, resp.TokensUsed)
	assert.Equal(t, generations, h.provider.Calls(prompts.GenerateQuestions))

	_, err = h.svc.RetakeSession(ctx, "mallory", original.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAbandonSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.create(t, "alice", 2)

	abandoned, err := h.svc.AbandonSession(ctx, "alice", session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbandoned, abandoned.Status)

	again, err := h.svc.AbandonSession(ctx, "alice", session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbandoned, again.Status)
	assert.Equal(t, []string{events.TypeAbandoned}, h.published.types())

	_, err = h.svc.CompleteSession(ctx, "alice", session.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotActive)

	other := h.create(t, "alice", 2)
	_, err = h.svc.CompleteSession(ctx, "alice", other.ID)
	require.NoError(t, err)
	_, err = h.svc.AbandonSession(ctx, "alice", other.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotActive)
}

func TestListSessionsAndStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return clock }

	first := h.create(t, "alice", 2)
	clock = clock.Add(time.Minute)
	second := h.create(t, "alice", 2)
	clock = clock.Add(time.Minute)
	third := h.create(t, "alice", 2)
	h.create(t, "bob", 2)

	h.provider.Enqueue(prompts.EvaluateAnswer, llmtest.Reply{Content: llmtest.EvaluationJSON(4)})
	_, err := h.svc.SubmitAnswer(ctx, "alice", first.ID, first.Questions[0].ID, "answer")
	require.NoError(t, err)
	_, err = h.svc.CompleteSession(ctx, "alice", first.ID)
	require.NoError(t, err)
	_, err = h.svc.SubmitAnswer(ctx, "alice", second.ID, second.Questions[0].ID, "answer")
	require.NoError(t, err)
	_, err = h.svc.CompleteSession(ctx, "alice", second.ID)
	require.NoError(t, err)
	_, err = h.svc.AbandonSession(ctx, "alice", third.ID)
	require.NoError(t, err)

	all, err := h.svc.ListUserSessions(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)

	completed, err := h.svc.ListUserSessions(ctx, "alice", models.StatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	_, err = h.svc.ListUserSessions(ctx, "alice", "paused")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	stats, err := h.svc.UserStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 2, stats.CompletedSessions)
	assert.Equal(t, 1, stats.AbandonedSessions)
	assert.Equal(t, 0, stats.InProgressSessions)
	assert.Equal(t, 2, stats.AnsweredQuestions)
	assert.Equal(t, 5.5, stats.AverageScore)
	require.NotNil(t, stats.BestScore)
	assert.Equal(t, 7.0, *stats.BestScore)

	empty, err := h.svc.UserStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalSessions)
	assert.Nil(t, empty.BestScore)
}

func TestPreGenerateQuestionsWarmsPool(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	warm, err := h.svc.PreGenerateQuestions(ctx, PreGenerateInput{JobDescription: seniorJD, Count: 8})
	require.NoError(t, err)
	assert.False(t, warm.CacheHit)
	assert.Equal(t, 8, warm.QuestionCount)
	assert.Equal(t, models.DifficultyHard, warm.Difficulty)
	assert.Equal(t, 105, warm.TokensUsed)

	again, err := h.svc.PreGenerateQuestions(ctx, PreGenerateInput{JobDescription: seniorJD, Count: 8})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.Equal(t, warm.PoolKey, again.PoolKey)

	resp, err := h.svc.CreateSession(ctx, CreateInput{UserID: "alice", JobDescription: seniorJD, Count: 8})
	require.NoError(t, err)
	assert.True(t, resp.CacheHit)
	assert.Equal(t, 1, h.provider.Calls(prompts.GenerateQuestions))

	sessions, _ := h.svc.ListUserSessions(ctx, "alice", "")
	assert.Len(t, sessions, 1, "pre-generation must not create sessions")
}

func TestAbandonIdle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return clock }

	idle := h.create(t, "alice", 2)
	clock = clock.Add(90 * time.Minute)
	active := h.create(t, "alice", 2)
	clock = clock.Add(30 * time.Minute)

	n, err := h.svc.AbandonIdle(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := h.svc.GetSession(ctx, "alice", idle.ID)
	assert.Equal(t, models.StatusAbandoned, got.Status)
	got, _ = h.svc.GetSession(ctx, "alice", active.ID)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, []string{events.TypeAbandoned}, h.published.types())
}

func TestDetectedLanguageIsAlwaysSupported(t *testing.T) {
	h := newHarness(t)
	h.provider.Default(prompts.DetectLanguage, llmtest.Reply{Content: `{"language":"klingon"}`})

	for _, jd := range []string{"Go", "??? !!!", strings.Repeat("ü ", 5)} {
		resp, err := h.svc.CreateSession(context.Background(), CreateInput{UserID: "alice", JobDescription: jd, Count: 1})
		require.NoError(t, err)
		assert.True(t, models.SupportedLanguages[resp.Session.Language], "language %q for %q", resp.Session.Language, jd)
	}
}
