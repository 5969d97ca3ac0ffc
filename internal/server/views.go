package server

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/deepreview/socratic/internal/assessment"
)

// SessionView is the API shape of a session. Questions and answers are
// trimmed to the asked and answered prefixes.
type SessionView struct {
	ID                string       `json:"id"`
	ArticleID         string       `json:"articleId"`
	CurrentDifficulty int          `json:"currentDifficulty"`
	IsCompleted       bool         `json:"isCompleted"`
	Version           int64        `json:"version"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
	CompletedAt       *time.Time   `json:"completedAt,omitempty"`
	Questions         []string     `json:"questions" copier:"-"`
	Answers           []AnswerView `json:"answers" copier:"-"`

	// NextQuestionIndex is the question the client should answer next,
	// 6 once the session is complete.
	NextQuestionIndex int `json:"nextQuestionIndex" copier:"-"`
}

type AnswerView struct {
	QuestionIndex   int       `json:"questionIndex"`
	AnswerText      string    `json:"answerText"`
	Score           int       `json:"score"`
	IsCorrect       bool      `json:"isCorrect"`
	DifficultyAtAsk int       `json:"difficultyAtAsk"`
	Feedback        string    `json:"feedback,omitempty"`
	AnsweredAt      time.Time `json:"answeredAt"`
}

type ProficiencyView struct {
	ComprehensionScore     *float64  `json:"comprehensionScore"`
	CriticalThinkingScore  *float64  `json:"criticalThinkingScore"`
	QualityScore           *float64  `json:"qualityScore"`
	Strengths              []string  `json:"strengths"`
	Weaknesses             []string  `json:"weaknesses"`
	Recommendations        []string  `json:"recommendations"`
	SessionsCompleted      int       `json:"sessionsCompleted"`
	TotalArticles          int       `json:"totalArticles"`
	TotalQuestionsAsked    int       `json:"totalQuestionsAsked"`
	TotalQuestionsAnswered int       `json:"totalQuestionsAnswered"`
	LastAverageScore       float64   `json:"lastAverageScore"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

type CompletionView struct {
	ID                    string                              `json:"id"`
	ArticleID             string                              `json:"articleId"`
	SessionID             string                              `json:"sessionId"`
	AverageScore          float64                             `json:"averageScore"`
	Scores                [assessment.QuestionsPerSession]int `json:"scores"`
	DifficultyPath        [assessment.QuestionsPerSession]int `json:"difficultyPath"`
	ComprehensionScore    float64                             `json:"comprehensionScore"`
	CriticalThinkingScore float64                             `json:"criticalThinkingScore"`
	QualityScore          float64                             `json:"qualityScore"`
	Strengths             []string                            `json:"strengths"`
	Weaknesses            []string                            `json:"weaknesses"`
	Recommendations       []string                            `json:"recommendations"`
	CreatedAt             time.Time                           `json:"createdAt"`
}

func toSessionView(s *assessment.Session) (SessionView, error) {
	var v SessionView
	if err := copier.Copy(&v, s); err != nil {
		return v, err
	}
	v.Questions = s.AskedQuestions()
	v.Answers = make([]AnswerView, 0, s.AnsweredCount())
	for i := 1; i <= s.AnsweredCount(); i++ {
		var av AnswerView
		if err := copier.Copy(&av, s.Answer(i)); err != nil {
			return v, err
		}
		av.QuestionIndex = i
		v.Answers = append(v.Answers, av)
	}
	v.NextQuestionIndex = s.AnsweredCount() + 1
	return v, nil
}

func toSessionViews(in []*assessment.Session) ([]SessionView, error) {
	out := make([]SessionView, 0, len(in))
	for _, s := range in {
		v, err := toSessionView(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
