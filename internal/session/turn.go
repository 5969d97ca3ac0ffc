package session

import (
	"strings"

	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/difficulty"
)

// TurnRequest is one call of the Socratic protocol. A nil UserAnswer starts
// (or restarts) the session; otherwise it answers question QuestionIndex.
type TurnRequest struct {
	ArticleID       string  `json:"articleId"`
	SessionID       string  `json:"sessionId"`
	UserAnswer      *string `json:"userAnswer,omitempty"`
	CurrentLevel    *int    `json:"currentLevel,omitempty"`
	QuestionIndex   *int    `json:"questionIndex,omitempty"`
	CurrentQuestion *string `json:"currentQuestion,omitempty"`
}

// TurnResponse is the result of a turn. Feedback is nil on start, the
// grader's feedback string mid-session and a *FinalFeedback on completion.
type TurnResponse struct {
	Question      *string  `json:"question"`
	Level         int      `json:"level"`
	QuestionIndex int      `json:"questionIndex"`
	IsCompleted   bool     `json:"isCompleted"`
	Feedback      any      `json:"feedback"`
	AnswerScore   *int     `json:"answerScore"`
	IsCorrect     *bool    `json:"isCorrect"`
	AverageScore  *float64 `json:"averageScore"`
}

// FinalFeedback is returned with the fifth answer.
type FinalFeedback struct {
	AverageScore          float64                             `json:"averageScore"`
	Scores                [assessment.QuestionsPerSession]int `json:"scores"`
	DifficultyPath        [assessment.QuestionsPerSession]int `json:"difficultyPath"`
	SummaryText           string                              `json:"summaryText"`
	ComprehensionScore    float64                             `json:"comprehensionScore"`
	CriticalThinkingScore float64                             `json:"criticalThinkingScore"`
	QualityScore          float64                             `json:"qualityScore"`
	Strengths             []string                            `json:"strengths"`
	Weaknesses            []string                            `json:"weaknesses"`
	Recommendations       []string                            `json:"recommendations"`
	IsFallback            bool                                `json:"isFallback"`
}

// turnInput is a validated TurnRequest.
type turnInput struct {
	articleID string
	sessionID string

	answering bool
	answer    string
	question  string
	index     int

	// level is nil when the caller did not send one; the stored difficulty
	// applies then.
	level *int
}

func validate(req TurnRequest) (*turnInput, error) {
	in := &turnInput{
		articleID: strings.TrimSpace(req.ArticleID),
		sessionID: strings.TrimSpace(req.SessionID),
	}
	if in.articleID == "" {
		return nil, invalid("articleId", "articleId is required")
	}
	if in.sessionID == "" {
		return nil, invalid("sessionId", "sessionId is required")
	}
	if req.UserAnswer == nil {
		return in, nil
	}

	in.answering = true
	in.answer = strings.TrimSpace(*req.UserAnswer)
	if in.answer == "" {
		return nil, invalid("userAnswer", "userAnswer must not be empty")
	}
	if req.CurrentQuestion != nil {
		in.question = strings.TrimSpace(*req.CurrentQuestion)
	}
	if in.question == "" {
		return nil, invalid("currentQuestion", "currentQuestion is required when submitting an answer")
	}

	in.index = 1
	if req.QuestionIndex != nil {
		in.index = *req.QuestionIndex
	}
	if in.index < 1 || in.index > assessment.QuestionsPerSession {
		return nil, invalid("questionIndex", "questionIndex must be between 1 and 5")
	}

	if req.CurrentLevel != nil {
		lvl := difficulty.Clamp(*req.CurrentLevel)
		in.level = &lvl
	}
	return in, nil
}
