// Package session runs the five-question Socratic protocol: it generates
// questions, grades answers, adapts difficulty and persists each turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/difficulty"
	"github.com/deepreview/socratic/internal/events"
	"github.com/deepreview/socratic/internal/grading"
	"github.com/deepreview/socratic/internal/llm"
	"github.com/deepreview/socratic/internal/lock"
	"github.com/deepreview/socratic/internal/logger"
	"github.com/deepreview/socratic/internal/metrics"
	"github.com/deepreview/socratic/internal/progress"
	"github.com/deepreview/socratic/internal/questiongen"
	"github.com/deepreview/socratic/internal/store"
)

// Config bounds how long a turn may take.
type Config struct {
	TurnTimeout time.Duration
	LockWait    time.Duration
}

func DefaultConfig() Config {
	return Config{
		TurnTimeout: 150 * time.Second,
		LockWait:    5 * time.Second,
	}
}

// Deps are the collaborators of an Orchestrator. Locker and Events are
// optional.
type Deps struct {
	Sessions  store.SessionRepo
	Articles  store.ArticleRepo
	Questions questiongen.Generator
	Grader    grading.Grader
	Progress  *progress.Aggregator
	Locker    lock.Locker
	Events    events.Publisher
}

// Orchestrator executes turns. It is safe for concurrent use; turns on the
// same session are serialized.
type Orchestrator struct {
	Deps
	cfg Config
	log *logger.Logger
	now func() time.Time
}

func New(deps Deps, cfg Config, log *logger.Logger) *Orchestrator {
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultConfig().TurnTimeout
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = DefaultConfig().LockWait
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		Deps: deps,
		cfg:  cfg,
		log:  log.With("component", "session"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Turn runs one protocol step for userID. Nothing is persisted unless every
// generation and grading call of the turn succeeded.
func (o *Orchestrator) Turn(ctx context.Context, userID string, req TurnRequest) (resp *TurnResponse, err error) {
	kind := "start"
	if req.UserAnswer != nil {
		kind = "answer"
	}
	started := time.Now()
	defer func() {
		metrics.Turns.WithLabelValues(kind, resultLabel(err)).Inc()
		metrics.TurnDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	}()

	in, err := validate(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()
	ctx = llm.WithSessionID(ctx, in.sessionID)

	resp, err = o.turn(ctx, userID, in)
	if err != nil {
		return nil, o.timeoutAware(ctx, err)
	}
	return resp, nil
}

func (o *Orchestrator) turn(ctx context.Context, userID string, in *turnInput) (*TurnResponse, error) {
	article, err := o.article(ctx, userID, in.articleID)
	if err != nil {
		return nil, err
	}

	unlock, err := o.lock(ctx, "session:"+in.sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := o.Sessions.Get(ctx, in.sessionID, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && s.ArticleID != in.articleID) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.IsCompleted {
		return nil, ErrSessionCompleted
	}

	if !in.answering {
		return o.start(ctx, article, s)
	}
	return o.answer(ctx, article, s, in)
}

func (o *Orchestrator) start(ctx context.Context, article *assessment.Article, s *assessment.Session) (*TurnResponse, error) {
	q, err := o.Questions.Generate(ctx, questiongen.Input{
		Article:        article,
		Difficulty:     difficulty.Start,
		QuestionNumber: 1,
	})
	if err != nil {
		return nil, err
	}

	s.Reset(difficulty.Start)
	if err := s.SetQuestion(1, q); err != nil {
		return nil, err
	}
	if err := o.save(ctx, s); err != nil {
		return nil, err
	}

	o.publish(ctx, events.SessionStarted, events.SessionStartedPayload{
		SessionID: s.ID,
		ArticleID: s.ArticleID,
		UserID:    s.UserID,
	})
	o.log.Info("session started", "session_id", s.ID, "user_id", s.UserID)

	return &TurnResponse{
		Question:      &q,
		Level:         difficulty.Start,
		QuestionIndex: 1,
	}, nil
}

func (o *Orchestrator) answer(ctx context.Context, article *assessment.Article, s *assessment.Session, in *turnInput) (*TurnResponse, error) {
	i := in.index
	if i > s.AnsweredCount()+1 {
		return nil, fmt.Errorf("%w: question %d, %d answered", ErrOutOfOrder, i, s.AnsweredCount())
	}

	level := s.CurrentDifficulty
	if in.level != nil {
		level = *in.level
	}
	level = difficulty.Clamp(level)

	verdict, err := o.Grader.Grade(ctx, grading.Input{
		Article:  article,
		Question: in.question,
		Answer:   in.answer,
	})
	if err != nil {
		return nil, err
	}
	next := difficulty.Next(level, verdict.IsCorrect)

	// Re-answering overwrites slot i and the question after it in place;
	// later answers are kept.
	if err := s.SetQuestion(i, in.question); err != nil {
		return nil, err
	}
	if err := s.RecordAnswer(i, assessment.AnswerRecord{
		AnswerText:      in.answer,
		Score:           verdict.Score,
		IsCorrect:       verdict.IsCorrect,
		DifficultyAtAsk: level,
		Feedback:        verdict.Feedback,
		AnsweredAt:      o.now(),
	}); err != nil {
		return nil, err
	}
	s.CurrentDifficulty = next

	if i == assessment.QuestionsPerSession {
		return o.finish(ctx, article, s, verdict, next)
	}

	prior := s.AskedQuestions()
	if len(prior) > i {
		prior = prior[:i]
	}
	q, err := o.Questions.Generate(ctx, questiongen.Input{
		Article:        article,
		Difficulty:     next,
		QuestionNumber: i + 1,
		PriorAnswer:    in.answer,
		PriorQuestions: prior,
	})
	if err != nil {
		return nil, err
	}
	if err := s.SetQuestion(i+1, q); err != nil {
		return nil, err
	}
	if err := o.save(ctx, s); err != nil {
		return nil, err
	}

	o.log.Debug("answer graded",
		"session_id", s.ID, "question", i, "score", verdict.Score, "correct", verdict.IsCorrect,
		"level", level, "next_level", next, "grading_fallback", verdict.Fallback)

	return &TurnResponse{
		Question:      &q,
		Level:         next,
		QuestionIndex: i + 1,
		Feedback:      verdict.Feedback,
		AnswerScore:   &verdict.Score,
		IsCorrect:     &verdict.IsCorrect,
	}, nil
}

func (o *Orchestrator) finish(ctx context.Context, article *assessment.Article, s *assessment.Session, verdict *grading.Verdict, next int) (*TurnResponse, error) {
	sum := o.Progress.Summarize(ctx, article, s)

	now := o.now()
	s.IsCompleted = true
	s.CompletedAt = &now
	if err := o.save(ctx, s); err != nil {
		return nil, err
	}

	if _, err := o.Progress.Persist(ctx, s, sum); err != nil {
		o.log.Error("persist session progress", "session_id", s.ID, "user_id", s.UserID, "error", err)
	}
	metrics.SessionsCompleted.Inc()
	metrics.SessionAverageScore.Observe(sum.AverageScore)

	ev := sum.Evaluation
	o.publish(ctx, events.SessionCompleted, events.SessionCompletedPayload{
		SessionID:      s.ID,
		ArticleID:      s.ArticleID,
		UserID:         s.UserID,
		AverageScore:   sum.AverageScore,
		Scores:         sum.Scores[:],
		DifficultyPath: sum.DifficultyPath[:],
		IsFallback:     ev.IsFallback,
	})
	o.log.Info("session completed", "session_id", s.ID, "user_id", s.UserID, "average_score", sum.AverageScore)

	avg := sum.AverageScore
	return &TurnResponse{
		Question:      nil,
		Level:         next,
		QuestionIndex: assessment.QuestionsPerSession + 1,
		IsCompleted:   true,
		Feedback: &FinalFeedback{
			AverageScore:          avg,
			Scores:                sum.Scores,
			DifficultyPath:        sum.DifficultyPath,
			SummaryText:           sum.SummaryText,
			ComprehensionScore:    ev.ComprehensionScore,
			CriticalThinkingScore: ev.CriticalThinkingScore,
			QualityScore:          ev.QualityScore,
			Strengths:             ev.Strengths,
			Weaknesses:            ev.Weaknesses,
			Recommendations:       ev.Recommendations,
			IsFallback:            ev.IsFallback,
		},
		AnswerScore:  &verdict.Score,
		IsCorrect:    &verdict.IsCorrect,
		AverageScore: &avg,
	}, nil
}

// Open resumes the user's active session for the article or creates one.
func (o *Orchestrator) Open(ctx context.Context, userID, articleID string) (*assessment.Session, bool, error) {
	if _, err := o.article(ctx, userID, articleID); err != nil {
		return nil, false, err
	}

	unlock, err := o.lock(ctx, "open:"+userID+":"+articleID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	s, err := o.Sessions.Active(ctx, userID, articleID)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("find active session: %w", err)
	}

	s = &assessment.Session{
		ArticleID:         articleID,
		UserID:            userID,
		CurrentDifficulty: difficulty.Start,
	}
	if err := o.Sessions.Create(ctx, s); err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	o.log.Info("session created", "session_id", s.ID, "user_id", userID, "article_id", articleID)
	return s, true, nil
}

func (o *Orchestrator) Get(ctx context.Context, userID, sessionID string) (*assessment.Session, error) {
	s, err := o.Sessions.Get(ctx, sessionID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// Active returns the newest in-progress session for the article.
func (o *Orchestrator) Active(ctx context.Context, userID, articleID string) (*assessment.Session, error) {
	s, err := o.Sessions.Active(ctx, userID, articleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// Completed lists completed sessions for the article, newest first.
func (o *Orchestrator) Completed(ctx context.Context, userID, articleID string) ([]*assessment.Session, error) {
	if _, err := o.article(ctx, userID, articleID); err != nil {
		return nil, err
	}
	return o.Sessions.Completed(ctx, userID, articleID)
}

func (o *Orchestrator) article(ctx context.Context, userID, articleID string) (*assessment.Article, error) {
	a, err := o.Articles.Get(ctx, articleID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load article: %w", err)
	}
	return a, nil
}

func (o *Orchestrator) lock(ctx context.Context, key string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, o.cfg.LockWait)
	defer cancel()

	unlock, err := o.Locker.Lock(lockCtx, key)
	if errors.Is(err, lock.ErrNotAcquired) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTurnInProgress
	}
	if err != nil {
		return nil, err
	}
	return unlock, nil
}

func (o *Orchestrator) save(ctx context.Context, s *assessment.Session) error {
	err := o.Sessions.Save(ctx, s)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrSessionNotFound
	default:
		return fmt.Errorf("save session: %w", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, payload any) {
	if err := o.Events.Publish(ctx, eventType, payload); err != nil {
		o.log.Warn("publish event", "type", eventType, "error", err)
	}
}

// timeoutAware reports a turn that ran out of time as an llm.ErrTimeout
// whatever step it was in.
func (o *Orchestrator) timeoutAware(ctx context.Context, err error) error {
	if llm.IsTimeout(err) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
		return &llm.ErrTimeout{Err: err}
	}
	return err
}

// resultLabel is the metrics label for a turn outcome.
func resultLabel(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, ErrArticleNotFound), errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrSessionCompleted), errors.Is(err, ErrOutOfOrder),
		errors.Is(err, ErrTurnInProgress), errors.Is(err, store.ErrStaleSession):
		return "conflict"
	case llm.IsTimeout(err):
		return "timeout"
	}
	if _, ok := llm.AsRateLimit(err); ok {
		return "rate_limited"
	}
	return "error"
}
