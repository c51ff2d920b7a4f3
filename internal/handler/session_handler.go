package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/forum-auth-api/internal/models"
	appErrors "github.com/noah-isme/forum-auth-api/pkg/errors"
	"github.com/noah-isme/forum-auth-api/pkg/response"
)

const defaultSessionListLimit = 50

type sessionService interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListActorSessions(ctx context.Context, actorID string, limit int) ([]models.Session, error)
}

// SessionHandler exposes session inspection endpoints.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(svc sessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// ListMine godoc
// @Summary List own sessions
// @Description Returns the caller's sessions; active=true keeps only sessions that can still refresh
// @Tags Sessions
// @Produce json
// @Param limit query int false "Maximum number of sessions"
// @Param active query bool false "Only sessions that are neither revoked nor expired"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessions, err := h.service.ListActorSessions(c.Request.Context(), claims.ActorID, listLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if c.Query("active") == "true" {
		now := time.Now().UTC()
		filtered := make([]models.Session, 0, len(sessions))
		for _, session := range sessions {
			if session.Active(now) {
				filtered = append(filtered, session)
			}
		}
		sessions = filtered
	}

	response.JSON(c, http.StatusOK, sessions, nil)
}

// Get godoc
// @Summary Inspect a session
// @Description Returns one session row by id for administrative review
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// ListByActor godoc
// @Summary List an actor's sessions
// @Description Returns sessions belonging to the given actor
// @Tags Sessions
// @Produce json
// @Param id path string true "Actor ID"
// @Param limit query int false "Maximum number of sessions"
// @Success 200 {object} response.Envelope
// @Router /admin/actors/{id}/sessions [get]
func (h *SessionHandler) ListByActor(c *gin.Context) {
	sessions, err := h.service.ListActorSessions(c.Request.Context(), c.Param("id"), listLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, nil)
}

func listLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultSessionListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 200 {
		return defaultSessionListLimit
	}
	return limit
}
