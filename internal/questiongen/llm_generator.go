package questiongen

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepreview/socratic/internal/difficulty"
	"github.com/deepreview/socratic/internal/llm"
)

// LLMGenerator implements Generator using an LLM provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
}

// New creates a new LLMGenerator with the given provider and config.
func New(provider llm.Provider, cfg Config) *LLMGenerator {
	return &LLMGenerator{provider: provider, config: cfg}
}

func (g *LLMGenerator) Generate(ctx context.Context, input Input) (string, error) {
	if input.Article == nil {
		return "", errors.New("question generation needs an article")
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeQuestionGen)

	var prompt string
	if input.QuestionNumber <= 1 {
		prompt = buildFirstPrompt(input.Article, g.config)
	} else {
		input.Difficulty = difficulty.Clamp(input.Difficulty)
		prompt = buildNextPrompt(input, g.config)
	}

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    llm.UserPrompt(prompt),
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate question %d: %w", input.QuestionNumber, err)
	}

	q := cleanQuestion(resp.Text)
	if q == "" {
		return "", &llm.ErrInvalidResponse{
			Content: resp.Text,
			Err:     fmt.Errorf("empty question %d", input.QuestionNumber),
		}
	}
	return q, nil
}
