package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"

	"github.com/deepreview/socratic/internal/apierr"
	"github.com/deepreview/socratic/internal/assessment"
	"github.com/deepreview/socratic/internal/session"
	"github.com/deepreview/socratic/internal/store"
)

// SessionService is the part of the orchestrator the API exposes.
type SessionService interface {
	Turn(ctx context.Context, userID string, req session.TurnRequest) (*session.TurnResponse, error)
	Open(ctx context.Context, userID, articleID string) (*assessment.Session, bool, error)
	Get(ctx context.Context, userID, sessionID string) (*assessment.Session, error)
	Active(ctx context.Context, userID, articleID string) (*assessment.Session, error)
	Completed(ctx context.Context, userID, articleID string) ([]*assessment.Session, error)
}

const defaultCompletionsLimit = 20

type Handler struct {
	sessions    SessionService
	proficiency store.ProficiencyRepo
	completions store.CompletionRepo
}

func NewHandler(sessions SessionService, proficiency store.ProficiencyRepo, completions store.CompletionRepo) *Handler {
	return &Handler{sessions: sessions, proficiency: proficiency, completions: completions}
}

// Turn handles POST /socratic/turn.
func (h *Handler) Turn(c *gin.Context) {
	var req session.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.New(http.StatusBadRequest, "INVALID_REQUEST", err))
		return
	}
	resp, err := h.sessions.Turn(c.Request.Context(), currentUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OpenSession handles POST /articles/:articleId/sessions.
func (h *Handler) OpenSession(c *gin.Context) {
	s, created, err := h.sessions.Open(c.Request.Context(), currentUser(c), c.Param("articleId"))
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeSession(c, status, s)
}

func (h *Handler) ActiveSession(c *gin.Context) {
	s, err := h.sessions.Active(c.Request.Context(), currentUser(c), c.Param("articleId"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.writeSession(c, http.StatusOK, s)
}

func (h *Handler) CompletedSessions(c *gin.Context) {
	list, err := h.sessions.Completed(c.Request.Context(), currentUser(c), c.Param("articleId"))
	if err != nil {
		respondError(c, err)
		return
	}
	views, err := toSessionViews(list)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h *Handler) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(c.Request.Context(), currentUser(c), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.writeSession(c, http.StatusOK, s)
}

// Progress handles GET /progress.
func (h *Handler) Progress(c *gin.Context) {
	rec, err := h.proficiency.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	var v ProficiencyView
	if err := copier.Copy(&v, rec); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Completions handles GET /progress/completions?limit=N.
func (h *Handler) Completions(c *gin.Context) {
	limit := defaultCompletionsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			respondError(c, apierr.New(http.StatusBadRequest, "INVALID_REQUEST", errInvalidLimit))
			return
		}
		limit = n
	}
	list, err := h.completions.ListByUser(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]CompletionView, 0, len(list))
	if err := copier.Copy(&views, list); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completions": views})
}

func (h *Handler) writeSession(c *gin.Context, status int, s *assessment.Session) {
	v, err := toSessionView(s)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, v)
}
