package questiongen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/llm"
)

func testArticle() *assessment.Article {
	return &assessment.Article{
		ID:         "a1",
		Title:      "Sleep and Memory Consolidation",
		Authors:    []string{"Walker", "Stickgold"},
		Abstract:   "We study how sleep stages affect recall.",
		MainTopics: []string{"sleep", "memory"},
		FullText:   strings.Repeat("x", 5000),
	}
}

func TestGenerate_FirstQuestionUsesStartDifficulty(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddText("How do the authors define consolidation?")
	gen := New(mock, DefaultConfig())

	q, err := gen.Generate(context.Background(), Input{
		Article:        testArticle(),
		Difficulty:     5,
		QuestionNumber: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "How do the authors define consolidation?", q)

	prompt := mock.LastCall().Messages[0].Content
	assert.Contains(t, prompt, "FIRST question")
	assert.Contains(t, prompt, "Difficulty Level: 3 (1=easy, 5=hard)")
	assert.Contains(t, prompt, "Authors: Walker, Stickgold")
	assert.Contains(t, prompt, "Topics: sleep, memory")
	assert.Contains(t, prompt, "Text Preview: "+strings.Repeat("x", 3000)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 3001))
	assert.Contains(t, prompt, "not yes/no")
	assert.Equal(t, systemPrompt, mock.LastCall().System)
}

func TestGenerate_FirstQuestionFallbacks(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddText("Q?")
	gen := New(mock, DefaultConfig())

	_, err := gen.Generate(context.Background(), Input{
		Article:        &assessment.Article{Title: "Bare"},
		QuestionNumber: 1,
	})
	require.NoError(t, err)

	prompt := mock.LastCall().Messages[0].Content
	assert.Contains(t, prompt, "Authors: Unknown")
	assert.Contains(t, prompt, "Abstract: No abstract")
	assert.Contains(t, prompt, "Topics: Not available")
	assert.Contains(t, prompt, "Text Preview: Not available")
}

func TestGenerate_NextQuestionPrompt(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddText("What limits the generalizability of the findings?")
	gen := New(mock, DefaultConfig())

	q, err := gen.Generate(context.Background(), Input{
		Article:        testArticle(),
		Difficulty:     4,
		QuestionNumber: 3,
		PriorAnswer:    "REM sleep helps recall",
		PriorQuestions: []string{"Q one?", "Q two?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "What limits the generalizability of the findings?", q)

	prompt := mock.LastCall().Messages[0].Content
	assert.Contains(t, prompt, "Question 3 of 5")
	assert.Contains(t, prompt, "Difficulty Level: 4 (1=easy, 5=hard)")
	assert.Contains(t, prompt, `"REM sleep helps recall"`)
	assert.Contains(t, prompt, "1. Q one?\n2. Q two?")
	assert.Contains(t, prompt, "- Level 4: implications/limitations")
	assert.Contains(t, prompt, "target level 4 (implications/limitations)")
	assert.NotContains(t, prompt, "Text Preview")
}

func TestGenerate_ClampsDifficulty(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddText("Q?")
	gen := New(mock, DefaultConfig())

	_, err := gen.Generate(context.Background(), Input{Article: testArticle(), Difficulty: 9, QuestionNumber: 2})
	require.NoError(t, err)
	assert.Contains(t, mock.LastCall().Messages[0].Content, "Difficulty Level: 5 ")
}

func TestGenerate_TagsPurpose(t *testing.T) {
	var seen string
	p := purposeSpy{fn: func(ctx context.Context) { seen = llm.PurposeFrom(ctx) }}
	_, err := New(p, DefaultConfig()).Generate(context.Background(), Input{Article: testArticle(), QuestionNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, llm.PurposeQuestionGen, seen)
}

func TestGenerate_PropagatesProviderErrors(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{RetryAfter: 30 * time.Second}})
	gen := New(mock, DefaultConfig())

	_, err := gen.Generate(context.Background(), Input{Article: testArticle(), QuestionNumber: 1})
	rl, ok := llm.AsRateLimit(err)
	require.True(t, ok, "expected rate limit, got %v", err)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
}

func TestGenerate_EmptyOutputIsInvalid(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddText("```\n\n```")
	gen := New(mock, DefaultConfig())

	_, err := gen.Generate(context.Background(), Input{Article: testArticle(), QuestionNumber: 2, Difficulty: 3})
	var inv *llm.ErrInvalidResponse
	assert.True(t, errors.As(err, &inv), "got %v", err)
}

func TestGenerate_RequiresArticle(t *testing.T) {
	_, err := New(llm.NewMockProvider(), DefaultConfig()).Generate(context.Background(), Input{QuestionNumber: 1})
	assert.Error(t, err)
}

func TestCleanQuestion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "  Why did the authors use a crossover design?  ", "Why did the authors use a crossover design?"},
		{"fenced", "```\nWhy X?\n```", "Why X?"},
		{"fenced with lang", "```text\nWhy X?\n```", "Why X?"},
		{"label", "Question 2: Why X?", "Why X?"},
		{"bold label", "**Question 4:** Why X?", "Why X?"},
		{"quoted", `"Why X?"`, "Why X?"},
		{"curly quoted", "“Why X?”", "Why X?"},
		{"preamble", "Here is the next question:\n\nWhy X?", "Why X?"},
		{"preamble and label", "Sure:\nQuestion 3: \"Why X?\"", "Why X?"},
		{"word starting with question", "Questioning the sample, is it biased?", "Questioning the sample, is it biased?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanQuestion(tt.raw))
		})
	}
}

func TestBuildDedup(t *testing.T) {
	assert.Equal(t, "None", buildDedup(nil, 4))
	assert.Equal(t, "1. c\n2. d", buildDedup([]string{"a", "b", "c", "d"}, 2))
}

type purposeSpy struct {
	fn func(ctx context.Context)
}

func (p purposeSpy) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	p.fn(ctx)
	return &llm.Response{Text: "Why?"}, nil
}

func (purposeSpy) ModelID() string { return "spy" }
