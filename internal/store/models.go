package store

import (
	"time"

	"gorm.io/datatypes"

	"github.com/deepreview/socratic/internal/assessment"
)

type (
	questionSlots = [assessment.QuestionsPerSession]string
	answerSlots   = [assessment.QuestionsPerSession]*assessment.AnswerRecord
	intSlots      = [assessment.QuestionsPerSession]int
)

type sessionRow struct {
	ID                string `gorm:"primaryKey;size:36"`
	ArticleID         string `gorm:"size:64;not null;index:idx_sessions_owner,priority:2"`
	UserID            string `gorm:"size:128;not null;index:idx_sessions_owner,priority:1"`
	Questions         datatypes.JSONType[questionSlots]
	Answers           datatypes.JSONType[answerSlots]
	CurrentDifficulty int       `gorm:"not null"`
	IsCompleted       bool      `gorm:"not null;default:false"`
	Version           int64     `gorm:"not null;default:0"`
	CreatedAt         time.Time `gorm:"index"`
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

func (sessionRow) TableName() string { return "sessions" }

func sessionToRow(s *assessment.Session) sessionRow {
	return sessionRow{
		ID:                s.ID,
		ArticleID:         s.ArticleID,
		UserID:            s.UserID,
		Questions:         datatypes.NewJSONType(questionSlots(s.Questions)),
		Answers:           datatypes.NewJSONType(answerSlots(s.Answers)),
		CurrentDifficulty: s.CurrentDifficulty,
		IsCompleted:       s.IsCompleted,
		Version:           s.Version,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		CompletedAt:       s.CompletedAt,
	}
}

func (r sessionRow) toDomain() *assessment.Session {
	return &assessment.Session{
		ID:                r.ID,
		ArticleID:         r.ArticleID,
		UserID:            r.UserID,
		Questions:         r.Questions.Data(),
		Answers:           r.Answers.Data(),
		CurrentDifficulty: r.CurrentDifficulty,
		IsCompleted:       r.IsCompleted,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		CompletedAt:       r.CompletedAt,
	}
}

type articleRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	OwnerID    string `gorm:"size:128;not null;index"`
	Title      string `gorm:"not null"`
	Authors    datatypes.JSONSlice[string]
	Abstract   string `gorm:"type:text"`
	MainTopics datatypes.JSONSlice[string]
	FullText   string `gorm:"type:text"`
	CreatedAt  time.Time
}

func (articleRow) TableName() string { return "articles" }

func (r articleRow) toDomain() *assessment.Article {
	return &assessment.Article{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Title:      r.Title,
		Authors:    []string(r.Authors),
		Abstract:   r.Abstract,
		MainTopics: []string(r.MainTopics),
		FullText:   r.FullText,
		CreatedAt:  r.CreatedAt,
	}
}

type proficiencyRow struct {
	UserID                 string `gorm:"primaryKey;size:128"`
	ComprehensionScore     *float64
	CriticalThinkingScore  *float64
	QualityScore           *float64
	Strengths              datatypes.JSONSlice[string]
	Weaknesses             datatypes.JSONSlice[string]
	Recommendations        datatypes.JSONSlice[string]
	SessionsCompleted      int
	TotalArticles          int
	TotalQuestionsAsked    int
	TotalQuestionsAnswered int
	LastAverageScore       float64
	UpdatedAt              time.Time
}

func (proficiencyRow) TableName() string { return "proficiency_records" }

func proficiencyToRow(p assessment.ProficiencyRecord) proficiencyRow {
	return proficiencyRow{
		UserID:                 p.UserID,
		ComprehensionScore:     p.ComprehensionScore,
		CriticalThinkingScore:  p.CriticalThinkingScore,
		QualityScore:           p.QualityScore,
		Strengths:              datatypes.JSONSlice[string](p.Strengths),
		Weaknesses:             datatypes.JSONSlice[string](p.Weaknesses),
		Recommendations:        datatypes.JSONSlice[string](p.Recommendations),
		SessionsCompleted:      p.SessionsCompleted,
		TotalArticles:          p.TotalArticles,
		TotalQuestionsAsked:    p.TotalQuestionsAsked,
		TotalQuestionsAnswered: p.TotalQuestionsAnswered,
		LastAverageScore:       p.LastAverageScore,
		UpdatedAt:              p.UpdatedAt,
	}
}

func (r proficiencyRow) toDomain() *assessment.ProficiencyRecord {
	return &assessment.ProficiencyRecord{
		UserID:                 r.UserID,
		ComprehensionScore:     r.ComprehensionScore,
		CriticalThinkingScore:  r.CriticalThinkingScore,
		QualityScore:           r.QualityScore,
		Strengths:              []string(r.Strengths),
		Weaknesses:             []string(r.Weaknesses),
		Recommendations:        []string(r.Recommendations),
		SessionsCompleted:      r.SessionsCompleted,
		TotalArticles:          r.TotalArticles,
		TotalQuestionsAsked:    r.TotalQuestionsAsked,
		TotalQuestionsAnswered: r.TotalQuestionsAnswered,
		LastAverageScore:       r.LastAverageScore,
		UpdatedAt:              r.UpdatedAt,
	}
}

type completionRow struct {
	ID                    string `gorm:"primaryKey;size:36"`
	UserID                string `gorm:"size:128;not null;index"`
	ArticleID             string `gorm:"size:64;not null"`
	SessionID             string `gorm:"size:36;not null;uniqueIndex"`
	AverageScore          float64
	Scores                datatypes.JSONType[intSlots]
	DifficultyPath        datatypes.JSONType[intSlots]
	ComprehensionScore    float64
	CriticalThinkingScore float64
	QualityScore          float64
	Strengths             datatypes.JSONSlice[string]
	Weaknesses            datatypes.JSONSlice[string]
	Recommendations       datatypes.JSONSlice[string]
	CreatedAt             time.Time `gorm:"index"`
}

func (completionRow) TableName() string { return "session_completions" }

func completionToRow(c *assessment.Completion) completionRow {
	return completionRow{
		ID:                    c.ID,
		UserID:                c.UserID,
		ArticleID:             c.ArticleID,
		SessionID:             c.SessionID,
		AverageScore:          c.AverageScore,
		Scores:                datatypes.NewJSONType(intSlots(c.Scores)),
		DifficultyPath:        datatypes.NewJSONType(intSlots(c.DifficultyPath)),
		ComprehensionScore:    c.ComprehensionScore,
		CriticalThinkingScore: c.CriticalThinkingScore,
		QualityScore:          c.QualityScore,
		Strengths:             datatypes.JSONSlice[string](c.Strengths),
		Weaknesses:            datatypes.JSONSlice[string](c.Weaknesses),
		Recommendations:       datatypes.JSONSlice[string](c.Recommendations),
		CreatedAt:             c.CreatedAt,
	}
}

func (r completionRow) toDomain() *assessment.Completion {
	return &assessment.Completion{
		ID:                    r.ID,
		UserID:                r.UserID,
		ArticleID:             r.ArticleID,
		SessionID:             r.SessionID,
		AverageScore:          r.AverageScore,
		Scores:                r.Scores.Data(),
		DifficultyPath:        r.DifficultyPath.Data(),
		ComprehensionScore:    r.ComprehensionScore,
		CriticalThinkingScore: r.CriticalThinkingScore,
		QualityScore:          r.QualityScore,
		Strengths:             []string(r.Strengths),
		Weaknesses:            []string(r.Weaknesses),
		Recommendations:       []string(r.Recommendations),
		CreatedAt:             r.CreatedAt,
	}
}

type llmEventRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp    time.Time `gorm:"not null;index"`
	Provider     string    `gorm:"size:32"`
	Model        string    `gorm:"size:128;index"`
	Purpose      string    `gorm:"size:64;index"`
	SessionID    string    `gorm:"size:36;index"`
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string  `gorm:"type:text"`
	RequestBody  string  `gorm:"type:text"`
	ResponseBody string  `gorm:"type:text"`
	CostUSD      float64 `gorm:"column:cost_usd"`
}

func (llmEventRow) TableName() string { return "llm_request_events" }

func (r llmEventRow) toDomain() LLMEvent {
	return LLMEvent{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		LLMRequestEventData: LLMRequestEventData{
			Provider:     r.Provider,
			Model:        r.Model,
			Purpose:      r.Purpose,
			SessionID:    r.SessionID,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			LatencyMs:    r.LatencyMs,
			Success:      r.Success,
			ErrorMessage: r.ErrorMessage,
			RequestBody:  r.RequestBody,
			ResponseBody: r.ResponseBody,
			CostUSD:      r.CostUSD,
		},
	}
}

func allModels() []any {
	return []any{
		&sessionRow{},
		&articleRow{},
		&proficiencyRow{},
		&completionRow{},
		&llmEventRow{},
	}
}
