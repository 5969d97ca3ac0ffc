// Package difficulty maps graded answers to the next question difficulty.
package difficulty

const (
	Min   = 1
	Max   = 5
	Start = 3
)

// Next returns the difficulty for the following question: one step up on a
// correct answer, one step down otherwise, never leaving [Min, Max].
func Next(current int, correct bool) int {
	if correct {
		return Clamp(current + 1)
	}
	return Clamp(current - 1)
}

// Clamp forces d into [Min, Max].
func Clamp(d int) int {
	switch {
	case d < Min:
		return Min
	case d > Max:
		return Max
	}
	return d
}

// Label describes what a question at level d should probe.
func Label(d int) string {
	switch Clamp(d) {
	case 1:
		return "simple comprehension"
	case 2:
		return "method/design basics"
	case 3:
		return "findings reasoning"
	case 4:
		return "implications/limitations"
	default:
		return "critical thinking, alternatives, future work"
	}
}
