package grading

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/deepreview/socratic/internal/llm"
)

var errNoJSON = errors.New("no JSON object in grading output")

// parseVerdict reads the model's JSON verdict and normalizes it: an incorrect
// answer scores 0, scores are clamped to [0,100] and rounded.
func parseVerdict(text string) (*Verdict, error) {
	raw, ok := llm.ExtractJSON(text)
	if !ok {
		return nil, errNoJSON
	}
	parsed, err := llm.ValidateJSON(verdictShape, raw)
	if err != nil {
		return nil, err
	}
	obj := parsed.(map[string]any)

	v := &Verdict{IsCorrect: obj["isCorrect"].(bool)}
	if v.IsCorrect {
		v.Score = clampScore(toFloat(obj["score"]))
	}
	if fb, ok := obj["feedback"].(string); ok {
		v.Feedback = strings.TrimSpace(fb)
	}
	return v, nil
}

// toFloat coerces a decoded JSON value to a finite number, or 0.
func toFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func clampScore(f float64) int {
	return int(math.Round(math.Max(0, math.Min(100, f))))
}
