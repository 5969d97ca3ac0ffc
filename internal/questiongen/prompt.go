package questiongen

import (
	"fmt"
	"strings"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/difficulty"
)

const systemPrompt = `You are a Socratic teaching bot that helps students read academic articles critically.
Ask exactly one open question at a time. Never answer it yourself.
Respond ONLY with the question text.`

// buildFirstPrompt is the prompt for question 1.
func buildFirstPrompt(a *assessment.Article, cfg Config) string {
	var b strings.Builder

	b.WriteString("Generate the FIRST question for this academic article.\n\n")
	fmt.Fprintf(&b, "Difficulty Level: %d (1=easy, 5=hard)\n\n", difficulty.Start)
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	fmt.Fprintf(&b, "Authors: %s\n", joinOr(a.Authors, "Unknown"))
	fmt.Fprintf(&b, "Abstract: %s\n", orDefault(a.Abstract, "No abstract"))
	fmt.Fprintf(&b, "Topics: %s\n", joinOr(a.MainTopics, "Not available"))
	fmt.Fprintf(&b, "Text Preview: %s\n", orDefault(preview(a.FullText, cfg.PreviewChars), "Not available"))

	b.WriteString("\nGuidelines:\n")
	b.WriteString("- Moderately challenging comprehension\n")
	b.WriteString("- Not too basic, not too advanced\n")
	b.WriteString("- Encourage explanation (not yes/no)")

	return b.String()
}

// buildNextPrompt is the prompt for questions 2..5.
func buildNextPrompt(input Input, cfg Config) string {
	a := input.Article
	var b strings.Builder

	fmt.Fprintf(&b, "Generate the NEXT question (Question %d of %d).\n\n", input.QuestionNumber, assessment.QuestionsPerSession)
	fmt.Fprintf(&b, "Difficulty Level: %d (1=easy, 5=hard)\n\n", input.Difficulty)
	fmt.Fprintf(&b, "Article Title: %s\n", a.Title)
	fmt.Fprintf(&b, "Topics: %s\n\n", joinOr(a.MainTopics, "Not available"))
	fmt.Fprintf(&b, "Student's previous answer (for context): %q\n", input.PriorAnswer)

	b.WriteString("\nAlready asked in this session:\n")
	b.WriteString(buildDedup(input.PriorQuestions, cfg.MaxPriorQuestions))

	b.WriteString("\n\nGuidelines by difficulty:\n")
	for lvl := difficulty.Min; lvl <= difficulty.Max; lvl++ {
		fmt.Fprintf(&b, "- Level %d: %s\n", lvl, difficulty.Label(lvl))
	}
	fmt.Fprintf(&b, "\nThis question must target level %d (%s) and must not repeat an earlier question.",
		input.Difficulty, difficulty.Label(input.Difficulty))

	return b.String()
}

// buildDedup formats prior questions for the prompt, keeping the most
// recent max. Returns "None" if there are none.
func buildDedup(prior []string, max int) string {
	if len(prior) == 0 {
		return "None"
	}
	if max > 0 && len(prior) > max {
		prior = prior[len(prior)-max:]
	}

	var b strings.Builder
	for i, q := range prior {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}

// preview returns the first n runes of s.
func preview(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
