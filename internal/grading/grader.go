// Package grading scores free-text answers against a rubric using an LLM.
package grading

import (
	"context"
	"fmt"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/llm"
	"github.com/deepreview/socratic/internal/logger"
	"github.com/deepreview/socratic/internal/metrics"
)

// FallbackFeedback is returned when the model output cannot be read.
const FallbackFeedback = "Could not evaluate reliably. Please be more specific and reference the article."

// Grader judges one answer.
type Grader interface {
	Grade(ctx context.Context, input Input) (*Verdict, error)
}

// Input is a question and the student's answer to it.
type Input struct {
	Article  *assessment.Article
	Question string
	Answer   string
}

// Verdict is the grading result. Score is 0 whenever IsCorrect is false.
type Verdict struct {
	IsCorrect bool
	Score     int
	Feedback  string

	// Fallback marks a verdict produced without a usable model response.
	Fallback bool
}

// FallbackVerdict is the verdict used when grading output is ambiguous.
func FallbackVerdict() *Verdict {
	return &Verdict{IsCorrect: false, Score: 0, Feedback: FallbackFeedback, Fallback: true}
}

type Config struct {
	MaxTokens   int
	Temperature float64

	// PreviewChars is how much of the full text the rubric quotes.
	PreviewChars int
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:    512,
		Temperature:  0.2,
		PreviewChars: 2000,
	}
}

// LLMGrader implements Grader with an LLM provider.
type LLMGrader struct {
	provider llm.Provider
	cfg      Config
	log      *logger.Logger
}

func New(provider llm.Provider, cfg Config, log *logger.Logger) *LLMGrader {
	if log == nil {
		log = logger.Nop()
	}
	return &LLMGrader{provider: provider, cfg: cfg, log: log.With("component", "grading")}
}

// Grade returns an error only when the generation service fails. Output that
// cannot be parsed yields FallbackVerdict.
func (g *LLMGrader) Grade(ctx context.Context, input Input) (*Verdict, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeAnswerGrading)

	prompt, err := buildPrompt(input, g.cfg)
	if err != nil {
		return nil, fmt.Errorf("build grading prompt: %w", err)
	}

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    llm.UserPrompt(prompt),
		Schema:      VerdictSchema,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("grade answer: %w", err)
	}

	v, err := parseVerdict(resp.Text)
	if err != nil {
		metrics.GradingFallbacks.Inc()
		g.log.Warn("grading output unusable, using fallback", "error", err)
		return FallbackVerdict(), nil
	}
	return v, nil
}
