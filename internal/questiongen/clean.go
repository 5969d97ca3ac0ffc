package questiongen

import (
	"regexp"
	"strings"
)

var (
	fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")
	labelPattern = regexp.MustCompile(`(?i)^\**\s*(?:question\s*\d*|q\d+)\s*[:.)-]\**\s*`)
	quotePairs   = [][2]string{{`"`, `"`}, {`'`, `'`}, {"“", "”"}}
)

// cleanQuestion strips the wrapping models put around a bare question:
// code fences, a preamble line ending in ":", a "Question N:" label and
// surrounding quotes.
func cleanQuestion(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	// "Here is your next question:\n\nWhat ..." keeps only the question.
	if lines := strings.Split(s, "\n"); len(lines) > 1 {
		first := strings.TrimSpace(lines[0])
		if strings.HasSuffix(first, ":") {
			s = strings.TrimSpace(strings.Join(lines[1:], "\n"))
		}
	}

	s = labelPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	for _, q := range quotePairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}
