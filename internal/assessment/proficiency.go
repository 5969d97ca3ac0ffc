package assessment

import "time"

// Article is the reading material a session is about.
type Article struct {
	ID         string
	OwnerID    string
	Title      string
	Authors    []string
	Abstract   string
	MainTopics []string
	FullText   string
	CreatedAt  time.Time
}

// ProficiencyRecord is a user's long-run, cross-session competency profile.
// Nil scores mean no session has contributed a value yet.
type ProficiencyRecord struct {
	UserID                 string
	ComprehensionScore     *float64
	CriticalThinkingScore  *float64
	QualityScore           *float64
	Strengths              []string
	Weaknesses             []string
	Recommendations        []string
	SessionsCompleted      int
	TotalArticles          int
	TotalQuestionsAsked    int
	TotalQuestionsAnswered int
	LastAverageScore       float64
	UpdatedAt              time.Time
}

// Completion is the per-session record written when a session finishes.
type Completion struct {
	ID                    string
	UserID                string
	ArticleID             string
	SessionID             string
	AverageScore          float64
	Scores                [QuestionsPerSession]int
	DifficultyPath        [QuestionsPerSession]int
	ComprehensionScore    float64
	CriticalThinkingScore float64
	QualityScore          float64
	Strengths             []string
	Weaknesses            []string
	Recommendations       []string
	CreatedAt             time.Time
}
