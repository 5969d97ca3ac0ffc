package store

import (
	"context"
	"errors"
	"time"

	"github.com/deepreview/socratic/internal/assessment"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible
	// to the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrStaleSession is returned by SessionRepo.Save when the stored
	// version no longer matches the caller's copy.
	ErrStaleSession = errors.New("session was modified concurrently")
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	After     int64     // id > After
	Before    int64     // id < Before
	From      time.Time // timestamp >= From
	To        time.Time // timestamp <= To
	Purpose   string
	SessionID string
}

// SessionRepo persists assessment sessions. Every read is scoped to the
// owning user.
type SessionRepo interface {
	// Create inserts a new session. ID, timestamps and Version are assigned
	// when empty.
	Create(ctx context.Context, s *assessment.Session) error

	// Get returns the session with the given id owned by userID.
	Get(ctx context.Context, id, userID string) (*assessment.Session, error)

	// Active returns the newest not-completed session for (article, user).
	Active(ctx context.Context, userID, articleID string) (*assessment.Session, error)

	// Completed lists completed sessions for (article, user), newest first.
	Completed(ctx context.Context, userID, articleID string) ([]*assessment.Session, error)

	// Save writes s if the stored version still equals s.Version, then
	// increments s.Version. Returns ErrStaleSession otherwise.
	Save(ctx context.Context, s *assessment.Session) error
}

// ArticleRepo stores the articles sessions are about.
type ArticleRepo interface {
	Create(ctx context.Context, a *assessment.Article) error
	Get(ctx context.Context, id, ownerID string) (*assessment.Article, error)
	List(ctx context.Context, ownerID string) ([]*assessment.Article, error)
}

// MergeFunc computes the new proficiency record from the current one (nil
// on first merge) and the number of distinct articles the user has
// completed a session for.
type MergeFunc func(current *assessment.ProficiencyRecord, articles int) assessment.ProficiencyRecord

// ProficiencyRepo manages the per-user proficiency record.
type ProficiencyRepo interface {
	// Get returns the user's record or ErrNotFound.
	Get(ctx context.Context, userID string) (*assessment.ProficiencyRecord, error)

	// Merge reads, merges and upserts the record in one transaction.
	Merge(ctx context.Context, userID string, fn MergeFunc) (*assessment.ProficiencyRecord, error)
}

// CompletionRepo records one row per completed session.
type CompletionRepo interface {
	Record(ctx context.Context, c *assessment.Completion) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*assessment.Completion, error)
	CountArticles(ctx context.Context, userID string) (int, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	SessionID    string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
	CostUSD      float64
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates token usage for one purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates token usage and recorded cost for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// LLMEventRepo provides append and query access to LLM request events.
type LLMEventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event or ErrNotFound.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}
