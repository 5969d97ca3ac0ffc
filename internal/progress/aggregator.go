// Package progress turns a finished session into a final score and folds it
// into the user's long-run proficiency record.
package progress

import (
	"context"
	"fmt"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/lock"
	"github.com/deepreview/socratic/internal/logger"
	"github.com/deepreview/socratic/internal/metrics"
	"github.com/deepreview/socratic/internal/store"
)

// Summary is the final result of a session.
type Summary struct {
	AverageScore   float64
	Scores         [assessment.QuestionsPerSession]int
	DifficultyPath [assessment.QuestionsPerSession]int
	SummaryText    string
	Evaluation     Evaluation
}

// Aggregator computes session summaries and persists them.
type Aggregator struct {
	evaluator   Evaluator
	completions store.CompletionRepo
	proficiency store.ProficiencyRepo
	locker      lock.Locker
	log         *logger.Logger
}

// NewAggregator wires the aggregator. A nil evaluator always uses
// FallbackEvaluation; a nil locker uses an in-process one.
func NewAggregator(evaluator Evaluator, completions store.CompletionRepo, proficiency store.ProficiencyRepo, locker lock.Locker, log *logger.Logger) *Aggregator {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{
		evaluator:   evaluator,
		completions: completions,
		proficiency: proficiency,
		locker:      locker,
		log:         log.With("component", "progress"),
	}
}

// Summarize never fails: evaluator errors degrade to FallbackEvaluation.
func (a *Aggregator) Summarize(ctx context.Context, article *assessment.Article, s *assessment.Session) *Summary {
	sum := &Summary{
		Scores:         PadScores(s),
		DifficultyPath: PadDifficultyPath(s),
	}
	sum.AverageScore = AverageScore(sum.Scores)

	ev := a.evaluate(ctx, article, s, sum.AverageScore)
	sum.Evaluation = *ev
	sum.SummaryText = fmt.Sprintf("Session complete. Final average score: %v/100. %s", sum.AverageScore, ev.Summary)
	return sum
}

func (a *Aggregator) evaluate(ctx context.Context, article *assessment.Article, s *assessment.Session, avg float64) *Evaluation {
	if a.evaluator == nil {
		return FallbackEvaluation(avg)
	}
	ev, err := a.evaluator.Evaluate(ctx, article, s, avg)
	if err != nil {
		metrics.EvaluationFallbacks.Inc()
		a.log.Warn("session evaluation failed, using fallback", "session_id", s.ID, "error", err)
		return FallbackEvaluation(avg)
	}
	return ev
}

// Persist records the completion row and merges the summary into the
// user's proficiency record under a per-user lock.
func (a *Aggregator) Persist(ctx context.Context, s *assessment.Session, sum *Summary) (*assessment.ProficiencyRecord, error) {
	ev := sum.Evaluation
	err := a.completions.Record(ctx, &assessment.Completion{
		UserID:                s.UserID,
		ArticleID:             s.ArticleID,
		SessionID:             s.ID,
		AverageScore:          sum.AverageScore,
		Scores:                sum.Scores,
		DifficultyPath:        sum.DifficultyPath,
		ComprehensionScore:    ev.ComprehensionScore,
		CriticalThinkingScore: ev.CriticalThinkingScore,
		QualityScore:          ev.QualityScore,
		Strengths:             ev.Strengths,
		Weaknesses:            ev.Weaknesses,
		Recommendations:       ev.Recommendations,
	})
	if err != nil {
		return nil, err
	}

	unlock, err := a.locker.Lock(ctx, "proficiency:"+s.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock proficiency: %w", err)
	}
	defer unlock()

	rec, err := a.proficiency.Merge(ctx, s.UserID, func(current *assessment.ProficiencyRecord, articles int) assessment.ProficiencyRecord {
		return MergeProficiency(current, s, sum, articles)
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("session progress recorded",
		"session_id", s.ID, "user_id", s.UserID, "average_score", sum.AverageScore,
		"sessions_completed", rec.SessionsCompleted, "fallback", ev.IsFallback)
	return rec, nil
}
