package progress

import (
	"math"
	"strings"

	"github.com/deepreview/socratic/internal/assessment"
)

const (
	// smoothingWeight is the share the previous value keeps on merge.
	smoothingWeight = 0.6

	// maxListItems caps merged strengths, weaknesses and recommendations.
	maxListItems = 5
)

// PadScores returns the answer scores in index order, 0 for unanswered slots.
func PadScores(s *assessment.Session) [assessment.QuestionsPerSession]int {
	var out [assessment.QuestionsPerSession]int
	for i, a := range s.Answers {
		if a != nil {
			out[i] = a.Score
		}
	}
	return out
}

// PadDifficultyPath returns the difficulty each answered question was asked
// at, 0 for unanswered slots.
func PadDifficultyPath(s *assessment.Session) [assessment.QuestionsPerSession]int {
	var out [assessment.QuestionsPerSession]int
	for i, a := range s.Answers {
		if a != nil {
			out[i] = a.DifficultyAtAsk
		}
	}
	return out
}

// AverageScore is the mean over all five slots, rounded to two decimals.
func AverageScore(scores [assessment.QuestionsPerSession]int) float64 {
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return round2(float64(sum) / float64(len(scores)))
}

// Smooth blends an incoming value into the previous one. With no previous
// value the incoming one is taken as is.
func Smooth(old *float64, incoming float64) float64 {
	if old == nil {
		return round2(incoming)
	}
	return round2(smoothingWeight*(*old) + (1-smoothingWeight)*incoming)
}

// MergeList puts incoming items first, drops duplicates (case-insensitive,
// first spelling wins) and keeps at most five.
func MergeList(incoming, existing []string) []string {
	out := make([]string, 0, maxListItems)
	seen := make(map[string]struct{}, len(incoming)+len(existing))
	for _, list := range [][]string{incoming, existing} {
		for _, item := range list {
			item = strings.TrimSpace(item)
			key := strings.ToLower(item)
			if item == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, item)
			if len(out) == maxListItems {
				return out
			}
		}
	}
	return out
}

// MergeProficiency folds one completed session into the user's record.
// current is nil on the user's first completion; articles is the number of
// distinct articles the user has completed.
func MergeProficiency(current *assessment.ProficiencyRecord, s *assessment.Session, sum *Summary, articles int) assessment.ProficiencyRecord {
	var prev assessment.ProficiencyRecord
	if current != nil {
		prev = *current
	}
	ev := sum.Evaluation

	comprehension := Smooth(prev.ComprehensionScore, ev.ComprehensionScore)
	critical := Smooth(prev.CriticalThinkingScore, ev.CriticalThinkingScore)
	quality := Smooth(prev.QualityScore, ev.QualityScore)

	return assessment.ProficiencyRecord{
		UserID:                 prev.UserID,
		ComprehensionScore:     &comprehension,
		CriticalThinkingScore:  &critical,
		QualityScore:           &quality,
		Strengths:              MergeList(ev.Strengths, prev.Strengths),
		Weaknesses:             MergeList(ev.Weaknesses, prev.Weaknesses),
		Recommendations:        MergeList(ev.Recommendations, prev.Recommendations),
		SessionsCompleted:      prev.SessionsCompleted + 1,
		TotalArticles:          articles,
		TotalQuestionsAsked:    prev.TotalQuestionsAsked + s.AskedCount(),
		TotalQuestionsAnswered: prev.TotalQuestionsAnswered + s.AnsweredCount(),
		LastAverageScore:       sum.AverageScore,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
