package grading

import "github.com/deepreview/socratic/internal/llm"

// VerdictSchema is sent with grading requests so providers with a native
// JSON mode return the right shape.
var VerdictSchema = &llm.Schema{
	Name:        "answer-verdict",
	Description: "Correctness verdict and score for a student's answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isCorrect": map[string]any{
				"type":        "boolean",
				"description": "Whether the answer is correct",
			},
			"score": map[string]any{
				"type":        "integer",
				"description": "0 when incorrect, otherwise 1-100 for accuracy, completeness and clarity",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "One or two sentences of feedback for the student",
			},
		},
		"required": []any{"isCorrect", "score", "feedback"},
	},
}

// verdictShape is what a response must satisfy to be read at all. It is
// looser than VerdictSchema: a string or missing score and a missing
// feedback are coerced rather than rejected.
var verdictShape = &llm.Schema{
	Name: "answer-verdict-shape",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isCorrect": map[string]any{"type": "boolean"},
		},
		"required": []any{"isCorrect"},
	},
}
