package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/llm"
)

// Evaluation is the qualitative judgement of a whole session.
type Evaluation struct {
	ComprehensionScore    float64  `json:"comprehensionScore"`
	CriticalThinkingScore float64  `json:"criticalThinkingScore"`
	QualityScore          float64  `json:"qualityScore"`
	Strengths             []string `json:"strengths"`
	Weaknesses            []string `json:"weaknesses"`
	Recommendations       []string `json:"recommendations"`
	Summary               string   `json:"summary"`
	IsFallback            bool     `json:"-"`
}

// Evaluator judges a completed session.
type Evaluator interface {
	Evaluate(ctx context.Context, article *assessment.Article, s *assessment.Session, avg float64) (*Evaluation, error)
}

const fallbackSummary = "You completed the Socratic session and demonstrated a solid baseline understanding. " +
	"To improve further, focus on using specific evidence from the paper and adding deeper critical evaluation. " +
	"Keep practicing structured reasoning and connecting findings to implications."

// FallbackEvaluation is used when no evaluator is configured or it fails.
// All three qualitative scores equal the session average.
func FallbackEvaluation(avg float64) *Evaluation {
	return &Evaluation{
		ComprehensionScore:    avg,
		CriticalThinkingScore: avg,
		QualityScore:          avg,
		Strengths: []string{
			"Completed the full Socratic flow",
			"Stayed engaged through all questions",
			"Provided structured answers",
			"Showed effort to explain reasoning",
		},
		Weaknesses: []string{
			"Some answers could include more specific details",
			"Critical evaluation could be deeper",
			"More evidence/examples would strengthen arguments",
		},
		Recommendations: []string{
			"Review the methodology section and summarize it in your own words",
			"Practice connecting results to real-world implications",
			"Try to question assumptions/limitations explicitly",
			"Add 1-2 concrete examples in each answer next time",
		},
		Summary:    fallbackSummary,
		IsFallback: true,
	}
}

// EvaluationSchema is the shape the session evaluator must return.
var EvaluationSchema = &llm.Schema{
	Name:        "session-evaluation",
	Description: "Qualitative evaluation of a five-question reading assessment",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"comprehensionScore":    scoreProperty("How well the student understood the article"),
			"criticalThinkingScore": scoreProperty("How well the student questioned and evaluated the article"),
			"qualityScore":          scoreProperty("Clarity, structure and use of evidence in the answers"),
			"strengths":             listProperty("Up to five short strengths"),
			"weaknesses":            listProperty("Up to five short weaknesses"),
			"recommendations":       listProperty("Up to five concrete next steps"),
			"summary": map[string]any{
				"type":        "string",
				"description": "Two or three sentences addressed to the student",
			},
		},
		"required": []any{
			"comprehensionScore", "criticalThinkingScore", "qualityScore",
			"strengths", "weaknesses", "recommendations", "summary",
		},
	},
}

func scoreProperty(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 100, "description": desc}
}

func listProperty(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

const evaluationSystemPrompt = `You evaluate a student's completed Socratic reading session.
Base every judgement on the questions, answers and scores given. Respond with a single JSON object.`

// LLMEvaluator implements Evaluator with an LLM provider.
type LLMEvaluator struct {
	provider    llm.Provider
	maxTokens   int
	temperature float64
}

func NewLLMEvaluator(provider llm.Provider) *LLMEvaluator {
	return &LLMEvaluator{provider: provider, maxTokens: 1024, temperature: 0.3}
}

func (e *LLMEvaluator) Evaluate(ctx context.Context, article *assessment.Article, s *assessment.Session, avg float64) (*Evaluation, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeSessionEvaluation)

	resp, err := e.provider.Generate(ctx, llm.Request{
		System:      evaluationSystemPrompt,
		Messages:    llm.UserPrompt(buildEvaluationPrompt(article, s, avg)),
		Schema:      EvaluationSchema,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate session: %w", err)
	}

	raw, ok := llm.ExtractJSON(resp.Text)
	if !ok {
		return nil, &llm.ErrInvalidResponse{Content: resp.Text, Err: fmt.Errorf("no JSON object")}
	}
	if _, err := llm.ValidateJSON(EvaluationSchema, raw); err != nil {
		return nil, err
	}
	var ev Evaluation
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &llm.ErrInvalidResponse{Content: resp.Text, Err: err}
	}
	ev.Summary = strings.TrimSpace(ev.Summary)
	return &ev, nil
}

func buildEvaluationPrompt(article *assessment.Article, s *assessment.Session, avg float64) string {
	var b strings.Builder
	if article != nil {
		fmt.Fprintf(&b, "Article Title: %s\n", article.Title)
		if len(article.MainTopics) > 0 {
			fmt.Fprintf(&b, "Topics: %s\n", strings.Join(article.MainTopics, ", "))
		}
		b.WriteString("\n")
	}
	for i := 1; i <= assessment.QuestionsPerSession; i++ {
		q := s.Question(i)
		if q == "" {
			break
		}
		fmt.Fprintf(&b, "Question %d: %s\n", i, q)
		if a := s.Answer(i); a != nil {
			fmt.Fprintf(&b, "Difficulty: %d\nAnswer: %q\nScore: %d/100 (correct: %t)\n", a.DifficultyAtAsk, a.AnswerText, a.Score, a.IsCorrect)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Final average score: %v/100\n\n", avg)
	b.WriteString("Rate comprehension, critical thinking and answer quality from 0 to 100, " +
		"list strengths, weaknesses and recommendations, and write a short summary.")
	return b.String()
}
