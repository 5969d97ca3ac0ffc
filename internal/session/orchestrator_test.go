package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/events"
	"github.com/deepreview/socratic/internal/grading"
	"github.com/deepreview/socratic/internal/llm"
	"github.com/deepreview/socratic/internal/lock"
	"github.com/deepreview/socratic/internal/progress"
	"github.com/deepreview/socratic/internal/questiongen"
	"github.com/deepreview/socratic/internal/store"
)

const user = "user-1"

type harness struct {
	orch    *Orchestrator
	mock    *llm.MockProvider
	store   *store.Store
	events  *events.Recorder
	locker  *lock.LocalLocker
	article *assessment.Article
	session *assessment.Session
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	st, err := store.Open(store.Config{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "session.db"),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	article := &assessment.Article{
		OwnerID:    user,
		Title:      "Sleep and Memory Consolidation",
		Abstract:   "We study how sleep stages affect recall.",
		MainTopics: []string{"sleep", "memory"},
	}
	require.NoError(t, st.Articles().Create(ctx, article))

	h := &harness{
		mock:    llm.NewMockProvider(),
		store:   st,
		events:  &events.Recorder{},
		locker:  lock.NewLocal(),
		article: article,
	}
	h.orch = New(Deps{
		Sessions:  st.Sessions(),
		Articles:  st.Articles(),
		Questions: questiongen.New(h.mock, questiongen.DefaultConfig()),
		Grader:    grading.New(h.mock, grading.DefaultConfig(), nil),
		Progress:  progress.NewAggregator(nil, st.Completions(), st.Proficiency(), h.locker, nil),
		Locker:    h.locker,
		Events:    h.events,
	}, cfg, nil)

	s, created, err := h.orch.Open(ctx, user, article.ID)
	require.NoError(t, err)
	require.True(t, created)
	h.session = s
	return h
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func verdict(correct bool, score int) string {
	return fmt.Sprintf(`{"isCorrect": %t, "score": %d, "feedback": "Feedback %d."}`, correct, score, score)
}

func (h *harness) start(t *testing.T) *TurnResponse {
	t.Helper()
	h.mock.AddText("Question 1?")
	resp, err := h.orch.Turn(context.Background(), user, TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID})
	require.NoError(t, err)
	return resp
}

func (h *harness) answerReq(i, level int, answer string) TurnRequest {
	return TurnRequest{
		ArticleID:       h.article.ID,
		SessionID:       h.session.ID,
		UserAnswer:      strp(answer),
		CurrentLevel:    intp(level),
		QuestionIndex:   intp(i),
		CurrentQuestion: strp(fmt.Sprintf("Question %d?", i)),
	}
}

func (h *harness) stored(t *testing.T) *assessment.Session {
	t.Helper()
	s, err := h.store.Sessions().Get(context.Background(), h.session.ID, user)
	require.NoError(t, err)
	return s
}

func TestTurn_Start(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	resp := h.start(t)

	require.NotNil(t, resp.Question)
	assert.Equal(t, "Question 1?", *resp.Question)
	assert.Equal(t, 3, resp.Level)
	assert.Equal(t, 1, resp.QuestionIndex)
	assert.False(t, resp.IsCompleted)
	assert.Nil(t, resp.Feedback)
	assert.Nil(t, resp.AnswerScore)
	assert.Nil(t, resp.IsCorrect)
	assert.Nil(t, resp.AverageScore)

	s := h.stored(t)
	assert.Equal(t, []string{"Question 1?"}, s.AskedQuestions())
	assert.Equal(t, 0, s.AnsweredCount())
	assert.Equal(t, 3, s.CurrentDifficulty)
	assert.Equal(t, []string{events.SessionStarted}, h.events.Types())
	assert.Contains(t, h.mock.LastCall().Messages[0].Content, "Difficulty Level: 3")
}

func TestTurn_FullSession(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	h.start(t)

	steps := []struct {
		correct   bool
		score     int
		wantLevel int
	}{
		{true, 80, 4},
		{true, 90, 5},
		{false, 0, 4},
		{true, 92, 5},
	}
	level := 3
	for n, step := range steps {
		i := n + 1
		h.mock.AddText(verdict(step.correct, step.score), fmt.Sprintf("Question %d?", i+1))
		resp, err := h.orch.Turn(ctx, user, h.answerReq(i, level, fmt.Sprintf("Answer %d", i)))
		require.NoError(t, err, "question %d", i)

		assert.Equal(t, step.wantLevel, resp.Level)
		assert.Equal(t, i+1, resp.QuestionIndex)
		assert.Equal(t, fmt.Sprintf("Question %d?", i+1), *resp.Question)
		assert.Equal(t, fmt.Sprintf("Feedback %d.", step.score), resp.Feedback)
		assert.Equal(t, step.score, *resp.AnswerScore)
		assert.Equal(t, step.correct, *resp.IsCorrect)
		assert.Nil(t, resp.AverageScore)
		assert.Contains(t, h.mock.LastCall().Messages[0].Content, fmt.Sprintf("Difficulty Level: %d", step.wantLevel))
		level = resp.Level
	}

	h.mock.AddText(verdict(true, 100))
	resp, err := h.orch.Turn(ctx, user, h.answerReq(5, level, "Answer 5"))
	require.NoError(t, err)

	assert.Nil(t, resp.Question)
	assert.Equal(t, 5, resp.Level)
	assert.Equal(t, 6, resp.QuestionIndex)
	assert.True(t, resp.IsCompleted)
	assert.Equal(t, 100, *resp.AnswerScore)
	assert.True(t, *resp.IsCorrect)
	assert.Equal(t, 72.4, *resp.AverageScore)

	final, ok := resp.Feedback.(*FinalFeedback)
	require.True(t, ok, "feedback is %T", resp.Feedback)
	assert.Equal(t, [5]int{80, 90, 0, 92, 100}, final.Scores)
	assert.Equal(t, [5]int{3, 4, 5, 4, 5}, final.DifficultyPath)
	assert.Equal(t, 72.4, final.AverageScore)
	assert.True(t, final.IsFallback)
	assert.Contains(t, final.SummaryText, "Session complete. Final average score: 72.4/100.")
	assert.Equal(t, 0, h.mock.Pending())

	s := h.stored(t)
	assert.True(t, s.IsCompleted)
	assert.NotNil(t, s.CompletedAt)
	assert.Equal(t, 5, s.AnsweredCount())

	rec, err := h.store.Proficiency().Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.SessionsCompleted)
	assert.Equal(t, 72.4, rec.LastAverageScore)
	assert.Equal(t, 72.4, *rec.ComprehensionScore)

	completed, err := h.orch.Completed(ctx, user, h.article.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, h.session.ID, completed[0].ID)

	assert.Equal(t, []string{events.SessionStarted, events.SessionCompleted}, h.events.Types())

	// A completed session accepts neither answers nor a restart, and
	// stays exactly as stored.
	before := h.stored(t)
	_, err = h.orch.Turn(ctx, user, h.answerReq(5, 5, "again"))
	assert.ErrorIs(t, err, ErrSessionCompleted)
	_, err = h.orch.Turn(ctx, user, h.answerReq(2, 1, "rewrite"))
	assert.ErrorIs(t, err, ErrSessionCompleted)
	_, err = h.orch.Turn(ctx, user, TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID})
	assert.ErrorIs(t, err, ErrSessionCompleted)

	after := h.stored(t)
	assert.Equal(t, before.Questions, after.Questions)
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, before.CurrentDifficulty, after.CurrentDifficulty)
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, after.IsCompleted)

	// The next Open starts a fresh session.
	next, created, err := h.orch.Open(ctx, user, h.article.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, h.session.ID, next.ID)
}

func TestTurn_ValidationFailsBeforeAnyCall(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	tests := map[string]struct {
		req   TurnRequest
		field string
	}{
		"no article":  {TurnRequest{SessionID: h.session.ID}, "articleId"},
		"no session":  {TurnRequest{ArticleID: h.article.ID}, "sessionId"},
		"no question": {TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID, UserAnswer: strp("x")}, "currentQuestion"},
		"blank question": {TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID, UserAnswer: strp("x"),
			CurrentQuestion: strp("  ")}, "currentQuestion"},
		"blank answer": {TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID, UserAnswer: strp(" "),
			CurrentQuestion: strp("Q?")}, "userAnswer"},
		"index too high": {TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID, UserAnswer: strp("x"),
			CurrentQuestion: strp("Q?"), QuestionIndex: intp(6)}, "questionIndex"},
		"index zero": {TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID, UserAnswer: strp("x"),
			CurrentQuestion: strp("Q?"), QuestionIndex: intp(0)}, "questionIndex"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := h.orch.Turn(context.Background(), user, tt.req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Equal(t, 0, h.mock.CallCount())
}

func TestTurn_NotFound(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	_, err := h.orch.Turn(ctx, user, TurnRequest{ArticleID: "missing", SessionID: h.session.ID})
	assert.ErrorIs(t, err, ErrArticleNotFound)

	_, err = h.orch.Turn(ctx, "intruder", TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID})
	assert.ErrorIs(t, err, ErrArticleNotFound)

	_, err = h.orch.Turn(ctx, user, TurnRequest{ArticleID: h.article.ID, SessionID: "missing"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	other := &assessment.Article{OwnerID: user, Title: "Other"}
	require.NoError(t, h.store.Articles().Create(ctx, other))
	_, err = h.orch.Turn(ctx, user, TurnRequest{ArticleID: other.ID, SessionID: h.session.ID})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = h.orch.Get(ctx, "intruder", h.session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, h.mock.CallCount())
}

func TestTurn_OutOfOrder(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.start(t)

	_, err := h.orch.Turn(context.Background(), user, h.answerReq(3, 3, "skip"))
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, 1, h.mock.CallCount())
}

func TestTurn_ReansweringOverwritesInPlace(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	h.start(t)

	h.mock.AddText(verdict(true, 80), "Question 2?")
	_, err := h.orch.Turn(ctx, user, h.answerReq(1, 3, "first"))
	require.NoError(t, err)
	h.mock.AddText(verdict(true, 70), "Question 3?")
	_, err = h.orch.Turn(ctx, user, h.answerReq(2, 4, "second"))
	require.NoError(t, err)

	h.mock.AddText(verdict(false, 0), "Easier question 2?")
	resp, err := h.orch.Turn(ctx, user, h.answerReq(1, 3, "changed my mind"))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Level)
	assert.Equal(t, 2, resp.QuestionIndex)

	s := h.stored(t)
	assert.Equal(t, 2, s.AnsweredCount())
	assert.Equal(t, "changed my mind", s.Answer(1).AnswerText)
	assert.Equal(t, 0, s.Answer(1).Score)
	require.NotNil(t, s.Answer(2))
	assert.Equal(t, "second", s.Answer(2).AnswerText)
	assert.Equal(t, 70, s.Answer(2).Score)
	assert.Equal(t, []string{"Question 1?", "Easier question 2?", "Question 3?"}, s.AskedQuestions())
	assert.Equal(t, 2, s.CurrentDifficulty)
}

func TestTurn_CallerQuestionIsAuthoritative(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.start(t)

	req := h.answerReq(1, 3, "answer")
	req.CurrentQuestion = strp("What the client displayed?")
	h.mock.AddText(verdict(true, 60), "Question 2?")
	_, err := h.orch.Turn(context.Background(), user, req)
	require.NoError(t, err)

	assert.Equal(t, "What the client displayed?", h.stored(t).Question(1))
}

func TestTurn_LevelDefaultsAndClamps(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	h.start(t)

	req := h.answerReq(1, 0, "answer")
	req.CurrentLevel = nil
	h.mock.AddText(verdict(true, 60), "Question 2?")
	resp, err := h.orch.Turn(ctx, user, req)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Level)

	h.mock.AddText(verdict(true, 60), "Question 3?")
	resp, err = h.orch.Turn(ctx, user, h.answerReq(2, 42, "answer"))
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Level)
	assert.Equal(t, 5, h.stored(t).Answer(2).DifficultyAtAsk)
}

func TestTurn_GradingFallbackLowersDifficulty(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.start(t)

	h.mock.AddText("I cannot grade this.", "Question 2?")
	resp, err := h.orch.Turn(context.Background(), user, h.answerReq(1, 3, "vague"))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Level)
	assert.Equal(t, 0, *resp.AnswerScore)
	assert.False(t, *resp.IsCorrect)
	assert.Equal(t, grading.FallbackFeedback, resp.Feedback)
}

func TestTurn_FailuresPersistNothing(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	h.start(t)
	before := h.stored(t)

	// Rate limited while grading.
	h.mock.AddResponse(llm.MockResponse{Err: &llm.ErrRateLimit{RetryAfter: 45 * time.Second}})
	_, err := h.orch.Turn(ctx, user, h.answerReq(1, 3, "answer"))
	rl, ok := llm.AsRateLimit(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 45*time.Second, rl.RetryAfter)

	// Graded, then question generation fails.
	h.mock.AddResponse(llm.MockResponse{Text: verdict(true, 90)})
	h.mock.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})
	_, err = h.orch.Turn(ctx, user, h.answerReq(1, 3, "answer"))
	var unavailable *llm.ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavailable)

	after := h.stored(t)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, 0, after.AnsweredCount())
	assert.Equal(t, []string{"Question 1?"}, after.AskedQuestions())
}

func TestTurn_Timeout(t *testing.T) {
	h := newHarness(t, Config{TurnTimeout: 50 * time.Millisecond, LockWait: time.Second})
	h.mock.AddResponse(llm.MockResponse{Text: "Question 1?", Delay: time.Second})

	_, err := h.orch.Turn(context.Background(), user, TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID})
	assert.True(t, llm.IsTimeout(err), "got %v", err)
	assert.Empty(t, h.stored(t).AskedQuestions())
}

func TestTurn_ConcurrentTurnIsRejected(t *testing.T) {
	h := newHarness(t, Config{TurnTimeout: time.Minute, LockWait: 30 * time.Millisecond})

	unlock, err := h.locker.Lock(context.Background(), "session:"+h.session.ID)
	require.NoError(t, err)
	defer unlock()

	_, err = h.orch.Turn(context.Background(), user, TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID})
	assert.ErrorIs(t, err, ErrTurnInProgress)
	assert.Equal(t, 0, h.mock.CallCount())
}

func TestTurn_StartResetsProgress(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.start(t)
	h.mock.AddText(verdict(true, 80), "Question 2?")
	_, err := h.orch.Turn(context.Background(), user, h.answerReq(1, 3, "answer"))
	require.NoError(t, err)

	h.mock.AddText("Fresh question 1?")
	resp, err := h.orch.Turn(context.Background(), user, TurnRequest{ArticleID: h.article.ID, SessionID: h.session.ID})
	require.NoError(t, err)
	assert.Equal(t, "Fresh question 1?", *resp.Question)

	s := h.stored(t)
	assert.Equal(t, []string{"Fresh question 1?"}, s.AskedQuestions())
	assert.Equal(t, 0, s.AnsweredCount())
	assert.Equal(t, 3, s.CurrentDifficulty)
}

func TestOpen_ResumesActive(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	s, created, err := h.orch.Open(ctx, user, h.article.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, h.session.ID, s.ID)

	active, err := h.orch.Active(ctx, user, h.article.ID)
	require.NoError(t, err)
	assert.Equal(t, h.session.ID, active.ID)

	_, _, err = h.orch.Open(ctx, user, "missing")
	assert.ErrorIs(t, err, ErrArticleNotFound)

	_, err = h.orch.Active(ctx, "intruder", h.article.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "invalid", resultLabel(invalid("f", "m")))
	assert.Equal(t, "not_found", resultLabel(ErrSessionNotFound))
	assert.Equal(t, "conflict", resultLabel(fmt.Errorf("wrap: %w", ErrOutOfOrder)))
	assert.Equal(t, "conflict", resultLabel(store.ErrStaleSession))
	assert.Equal(t, "timeout", resultLabel(&llm.ErrTimeout{}))
	assert.Equal(t, "rate_limited", resultLabel(&llm.ErrRateLimit{}))
	assert.Equal(t, "error", resultLabel(errors.New("boom")))
}
