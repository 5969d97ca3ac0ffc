package assessment

import (
	"fmt"
	"time"
)

// QuestionsPerSession is the fixed length of one Socratic session.
const QuestionsPerSession = 5

// AnswerRecord is one graded answer, addressed by question index.
type AnswerRecord struct {
	AnswerText      string    `json:"answerText"`
	Score           int       `json:"score"`
	IsCorrect       bool      `json:"isCorrect"`
	DifficultyAtAsk int       `json:"difficultyAtAsk"`
	Feedback        string    `json:"feedback,omitempty"`
	AnsweredAt      time.Time `json:"answeredAt"`
}

// Session is one five-question assessment attempt for an (article, user) pair.
// Questions and Answers are index-aligned; slot i-1 holds question i.
type Session struct {
	ID                string
	ArticleID         string
	UserID            string
	Questions         [QuestionsPerSession]string
	Answers           [QuestionsPerSession]*AnswerRecord
	CurrentDifficulty int
	IsCompleted       bool
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// AskedCount returns the number of leading non-empty question slots.
func (s *Session) AskedCount() int {
	n := 0
	for _, q := range s.Questions {
		if q == "" {
			break
		}
		n++
	}
	return n
}

// AnsweredCount returns the number of leading answered slots.
func (s *Session) AnsweredCount() int {
	n := 0
	for _, a := range s.Answers {
		if a == nil {
			break
		}
		n++
	}
	return n
}

// Question returns the stored text for 1-based index i, or "" if unset.
func (s *Session) Question(i int) string {
	if !validIndex(i) {
		return ""
	}
	return s.Questions[i-1]
}

// Answer returns the record for 1-based index i, or nil if unanswered.
func (s *Session) Answer(i int) *AnswerRecord {
	if !validIndex(i) {
		return nil
	}
	return s.Answers[i-1]
}

// SetQuestion stores the question text for 1-based index i.
func (s *Session) SetQuestion(i int, text string) error {
	if !validIndex(i) {
		return fmt.Errorf("question index %d out of range 1..%d", i, QuestionsPerSession)
	}
	s.Questions[i-1] = text
	return nil
}

// RecordAnswer upserts the answer for 1-based index i. A previous answer at
// the same index is replaced, never duplicated.
func (s *Session) RecordAnswer(i int, rec AnswerRecord) error {
	if !validIndex(i) {
		return fmt.Errorf("answer index %d out of range 1..%d", i, QuestionsPerSession)
	}
	s.Answers[i-1] = &rec
	return nil
}

// Reset returns the session to its freshly created state at difficulty d.
func (s *Session) Reset(d int) {
	s.Questions = [QuestionsPerSession]string{}
	s.Answers = [QuestionsPerSession]*AnswerRecord{}
	s.CurrentDifficulty = d
	s.IsCompleted = false
	s.CompletedAt = nil
}

// AskedQuestions returns the asked questions as an ordered slice.
func (s *Session) AskedQuestions() []string {
	return append([]string(nil), s.Questions[:s.AskedCount()]...)
}

func validIndex(i int) bool {
	return i >= 1 && i <= QuestionsPerSession
}
