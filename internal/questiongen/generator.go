// Package questiongen writes Socratic questions about an article at a
// requested difficulty.
package questiongen

import (
	"context"

	"github.com/deepreview/socratic/internal/assessment"
)

// Generator produces one question per call.
type Generator interface {
	// Generate returns the question text only. Question 1 is always asked
	// at the starting difficulty, whatever Input.Difficulty says.
	Generate(ctx context.Context, input Input) (string, error)
}

// Input is everything the prompt is built from.
type Input struct {
	Article *assessment.Article

	// Difficulty is the level for this question, 1..5.
	Difficulty int

	// QuestionNumber is the 1-based position of this question.
	QuestionNumber int

	// PriorAnswer is the student's answer to the previous question.
	PriorAnswer string

	// PriorQuestions are the questions already asked in this session.
	PriorQuestions []string
}

// Config controls the behavior of the LLMGenerator.
type Config struct {
	// MaxTokens is the token budget for the LLM response.
	MaxTokens int

	// Temperature controls LLM output randomness (0.0-1.0).
	Temperature float64

	// MaxPriorQuestions caps how many prior questions go into the prompt.
	MaxPriorQuestions int

	// PreviewChars is how much of the full text the first prompt quotes.
	PreviewChars int
}

// DefaultConfig returns the recommended defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:         512,
		Temperature:       0.7,
		MaxPriorQuestions: 4,
		PreviewChars:      3000,
	}
}
