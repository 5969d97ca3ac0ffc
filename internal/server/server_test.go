package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/auth"
	"github.com/deepreview/socratic/internal/grading"
	"github.com/deepreview/socratic/internal/llm"
	"github.com/deepreview/socratic/internal/logger"
	"github.com/deepreview/socratic/internal/progress"
	"github.com/deepreview/socratic/internal/questiongen"
	"github.com/deepreview/socratic/internal/session"
	"github.com/deepreview/socratic/internal/store"
)

const testUser = "user-1"

type testServer struct {
	router  *gin.Engine
	mock    *llm.MockProvider
	store   *store.Store
	token   string
	article *assessment.Article
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.Open(store.Config{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "server.db"),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	article := &assessment.Article{OwnerID: testUser, Title: "Sleep and Memory"}
	require.NoError(t, st.Articles().Create(context.Background(), article))

	mock := llm.NewMockProvider()
	orch := session.New(session.Deps{
		Sessions:  st.Sessions(),
		Articles:  st.Articles(),
		Questions: questiongen.New(mock, questiongen.DefaultConfig()),
		Grader:    grading.New(mock, grading.DefaultConfig(), nil),
		Progress:  progress.NewAggregator(nil, st.Completions(), st.Proficiency(), nil, nil),
	}, session.DefaultConfig(), nil)

	verifier, err := auth.NewVerifier("test-secret", "deepreview")
	require.NoError(t, err)
	token, err := verifier.Issue(testUser, time.Hour)
	require.NoError(t, err)

	h := NewHandler(orch, st.Proficiency(), st.Completions())
	router := NewRouter(Config{Mode: gin.TestMode, CORSOrigins: []string{"http://localhost:3000"}}, h, verifier, st, logger.Nop())
	return &testServer{router: router, mock: mock, store: st, token: token, article: article}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	switch b := body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error
}

func (ts *testServer) openSession(t *testing.T) SessionView {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/articles/"+ts.article.ID+"/sessions", nil)
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, w.Code, w.Body.String())
	var v SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.token = ""

	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	ts.token = ""
	w := ts.do(t, http.MethodPost, "/api/v1/socratic/turn", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Code)

	ts.token = "garbage"
	w = ts.do(t, http.MethodGet, "/api/v1/progress", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOpenSession(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/articles/"+ts.article.ID+"/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var first SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, 3, first.CurrentDifficulty)
	assert.Equal(t, 1, first.NextQuestionIndex)
	assert.Empty(t, first.Questions)

	w = ts.do(t, http.MethodPost, "/api/v1/articles/"+ts.article.ID+"/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var again SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, first.ID, again.ID)

	w = ts.do(t, http.MethodGet, "/api/v1/articles/"+ts.article.ID+"/sessions/active", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/articles/missing/sessions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ARTICLE_NOT_FOUND", decodeError(t, w).Code)
}

func TestTurnFlow(t *testing.T) {
	ts := newTestServer(t)
	s := ts.openSession(t)

	ts.mock.AddText("What question does the study ask?")
	w := ts.do(t, http.MethodPost, "/api/v1/socratic/turn", map[string]any{
		"articleId": ts.article.ID,
		"sessionId": s.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Body.String(), `{"question":`), w.Body.String())
	assert.JSONEq(t, `{
		"question": "What question does the study ask?",
		"level": 3,
		"questionIndex": 1,
		"isCompleted": false,
		"feedback": null,
		"answerScore": null,
		"isCorrect": null,
		"averageScore": null
	}`, w.Body.String())

	ts.mock.AddText(`{"isCorrect": true, "score": 85, "feedback": "Good."}`, "Why did they pick that design?")
	w = ts.do(t, http.MethodPost, "/api/v1/socratic/turn", map[string]any{
		"articleId":       ts.article.ID,
		"sessionId":       s.ID,
		"userAnswer":      "Whether sleep helps memory.",
		"currentLevel":    3,
		"questionIndex":   1,
		"currentQuestion": "What question does the study ask?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"question": "Why did they pick that design?",
		"level": 4,
		"questionIndex": 2,
		"isCompleted": false,
		"feedback": "Good.",
		"answerScore": 85,
		"isCorrect": true,
		"averageScore": null
	}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var v SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Len(t, v.Questions, 2)
	require.Len(t, v.Answers, 1)
	assert.Equal(t, 1, v.Answers[0].QuestionIndex)
	assert.Equal(t, 85, v.Answers[0].Score)
	assert.Equal(t, 2, v.NextQuestionIndex)
}

func TestTurnErrors(t *testing.T) {
	ts := newTestServer(t)
	s := ts.openSession(t)

	w := ts.do(t, http.MethodPost, "/api/v1/socratic/turn", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)

	w = ts.do(t, http.MethodPost, "/api/v1/socratic/turn", map[string]any{
		"articleId":  ts.article.ID,
		"sessionId":  s.ID,
		"userAnswer": "an answer without its question",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decodeError(t, w)
	assert.Equal(t, "INVALID_REQUEST", apiErr.Code)
	assert.Contains(t, apiErr.Message, "currentQuestion")
	assert.Equal(t, 0, ts.mock.CallCount())

	w = ts.do(t, http.MethodPost, "/api/v1/socratic/turn", map[string]any{
		"articleId": ts.article.ID,
		"sessionId": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w).Code)

	ts.mock.AddResponse(llm.MockResponse{Err: &llm.ErrRateLimit{RetryAfter: 42500 * time.Millisecond}})
	w = ts.do(t, http.MethodPost, "/api/v1/socratic/turn", map[string]any{
		"articleId": ts.article.ID,
		"sessionId": s.ID,
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "43", w.Header().Get("Retry-After"))
	apiErr = decodeError(t, w)
	assert.Equal(t, "RATE_LIMIT", apiErr.Code)
	require.NotNil(t, apiErr.RetryAfterSeconds)
	assert.Equal(t, 43, *apiErr.RetryAfterSeconds)
}

func TestProgressEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/progress", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)

	_, err := ts.store.Proficiency().Merge(context.Background(), testUser,
		func(*assessment.ProficiencyRecord, int) assessment.ProficiencyRecord {
			score := 70.0
			return assessment.ProficiencyRecord{ComprehensionScore: &score, SessionsCompleted: 1, Strengths: []string{"Clear"}}
		})
	require.NoError(t, err)

	w = ts.do(t, http.MethodGet, "/api/v1/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var v ProficiencyView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, 70.0, *v.ComprehensionScore)
	assert.Nil(t, v.QualityScore)
	assert.Equal(t, 1, v.SessionsCompleted)
	assert.Equal(t, []string{"Clear"}, v.Strengths)

	require.NoError(t, ts.store.Completions().Record(context.Background(), &assessment.Completion{
		UserID: testUser, ArticleID: ts.article.ID, SessionID: "s1", AverageScore: 72.4,
		Scores: [5]int{80, 90, 0, 92, 100},
	}))
	w = ts.do(t, http.MethodGet, "/api/v1/progress/completions?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Completions []CompletionView `json:"completions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Completions, 1)
	assert.Equal(t, 72.4, list.Completions[0].AverageScore)
	assert.Equal(t, [5]int{80, 90, 0, 92, 100}, list.Completions[0].Scores)

	w = ts.do(t, http.MethodGet, "/api/v1/progress/completions?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&session.ValidationError{Field: "f", Message: "m"}, 400, "INVALID_REQUEST"},
		{auth.ErrInvalidToken, 401, "UNAUTHORIZED"},
		{session.ErrArticleNotFound, 404, "ARTICLE_NOT_FOUND"},
		{session.ErrSessionNotFound, 404, "SESSION_NOT_FOUND"},
		{store.ErrNotFound, 404, "NOT_FOUND"},
		{session.ErrSessionCompleted, 409, "SESSION_COMPLETED"},
		{fmt.Errorf("x: %w", session.ErrOutOfOrder), 409, "OUT_OF_ORDER"},
		{session.ErrTurnInProgress, 409, "TURN_IN_PROGRESS"},
		{fmt.Errorf("save: %w", store.ErrStaleSession), 409, "CONFLICT"},
		{fmt.Errorf("grade: %w", &llm.ErrRateLimit{RetryAfter: time.Minute}), 429, "RATE_LIMIT"},
		{&llm.ErrTimeout{Err: context.DeadlineExceeded}, 504, "TIMEOUT"},
		{errors.New("boom"), 500, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ae := classify(tt.err)
			assert.Equal(t, tt.status, ae.Status)
			assert.Equal(t, tt.code, ae.Code)
		})
	}
}
