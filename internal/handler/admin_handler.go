package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/forum-auth-api/internal/models"
	"github.com/noah-isme/forum-auth-api/internal/token"
	appErrors "github.com/noah-isme/forum-auth-api/pkg/errors"
	"github.com/noah-isme/forum-auth-api/pkg/response"
)

type adminService interface {
	DeactivateActor(ctx context.Context, claims *token.Claims, actorID string) error
	RestrictGuest(ctx context.Context, claims *token.Claims, actorID string, req models.RestrictGuestRequest) error
}

// AdminHandler exposes administrative account operations.
type AdminHandler struct {
	service adminService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(svc adminService) *AdminHandler {
	return &AdminHandler{service: svc}
}

// DeactivateActor godoc
// @Summary Deactivate an actor
// @Description Soft-delete the actor and revoke all of its sessions
// @Tags Admin
// @Produce json
// @Param id path string true "Actor ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/actors/{id} [delete]
func (h *AdminHandler) DeactivateActor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeactivateActor(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// RestrictGuest godoc
// @Summary Restrict a guest visitor
// @Description Change the guest's restriction class; takes effect on the guest's next request
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Guest actor ID"
// @Param payload body models.RestrictGuestRequest true "Restriction payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/guests/{id}/restriction [put]
func (h *AdminHandler) RestrictGuest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.RestrictGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid restriction payload"))
		return
	}

	if err := h.service.RestrictGuest(c.Request.Context(), claims, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
