package grading

import (
	"bytes"
	"strings"
	"text/template"
)

const systemPrompt = `You are a strict but fair grader of student answers about academic articles.
Judge only against the article content. Respond with a single JSON object and nothing else.`

var gradeTemplate = template.Must(template.New("grade").Parse(`Grade the student's answer.

Article Title: {{.Title}}
{{- if .Abstract}}
Abstract: {{.Abstract}}
{{- end}}
{{- if .Preview}}
Text Preview: {{.Preview}}
{{- end}}

Question: {{.Question}}
Student Answer: {{.Answer}}

Rules:
- Decide if the answer is correct (true/false).
- If NOT correct => score MUST be 0.
- If correct => score 1-100 based on accuracy, completeness, and clarity.
- Keep feedback short (1-2 sentences).

Return ONLY valid JSON (no markdown):
{
  "isCorrect": true,
  "score": 85,
  "feedback": "..."
}`))

type promptData struct {
	Title    string
	Abstract string
	Preview  string
	Question string
	Answer   string
}

func buildPrompt(input Input, cfg Config) (string, error) {
	data := promptData{
		Question: strings.TrimSpace(input.Question),
		Answer:   strings.TrimSpace(input.Answer),
	}
	if a := input.Article; a != nil {
		data.Title = a.Title
		data.Abstract = a.Abstract
		data.Preview = truncate(a.FullText, cfg.PreviewChars)
	}

	var buf bytes.Buffer
	if err := gradeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
