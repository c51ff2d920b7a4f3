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

type authService interface {
	Join(ctx context.Context, req models.JoinRequest) (*models.Authorized, error)
	Login(ctx context.Context, role models.ActorRole, req models.LoginRequest) (*models.Authorized, error)
	Refresh(ctx context.Context, req models.RefreshRequest) (*models.Authorized, error)
	GuestJoin(ctx context.Context, req models.GuestJoinRequest) (*models.Authorized, error)
	GuestRefresh(ctx context.Context, req models.RefreshRequest) (*models.Authorized, error)
	UpgradeGuest(ctx context.Context, claims *token.Claims, req models.UpgradeRequest) (*models.Authorized, error)
	Logout(ctx context.Context, claims *token.Claims) (*models.LogoutResponse, error)
	LogoutAll(ctx context.Context, claims *token.Claims) (*models.LogoutAllResponse, error)
	ChangePassword(ctx context.Context, claims *token.Claims, req models.ChangePasswordRequest) error
}

// AuthHandler wires HTTP endpoints to the session lifecycle service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Join godoc
// @Summary Register a member account
// @Description Create a member account and open its first session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.JoinRequest true "Join payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/join [post]
func (h *AuthHandler) Join(c *gin.Context) {
	var req models.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid join payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")
	req.Platform = c.GetHeader("X-Platform")

	res, err := h.service.Join(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate a member
// @Description Authenticate by username or email and open a fresh session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	h.loginWithRole(c, models.RoleMember)
}

// LoginSiteAdmin godoc
// @Summary Authenticate a site administrator
// @Description Authenticate under the siteadmin role; requires an active role grant
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/siteadmin/login [post]
func (h *AuthHandler) LoginSiteAdmin(c *gin.Context) {
	h.loginWithRole(c, models.RoleSiteAdmin)
}

// LoginSystemAdmin godoc
// @Summary Authenticate a system administrator
// @Description Authenticate under the systemadmin role; requires an active role grant
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/systemadmin/login [post]
func (h *AuthHandler) LoginSystemAdmin(c *gin.Context) {
	h.loginWithRole(c, models.RoleSystemAdmin)
}

func (h *AuthHandler) loginWithRole(c *gin.Context, role models.ActorRole) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")
	req.Platform = c.GetHeader("X-Platform")

	res, err := h.service.Login(c.Request.Context(), role, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Refresh godoc
// @Summary Rotate a token pair
// @Description Exchange the refresh secret for a rotated token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshRequest true "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// GuestJoin godoc
// @Summary Create a guest visitor
// @Description Issue a guest-scoped token pair for an anonymous visitor
// @Tags Guests
// @Accept json
// @Produce json
// @Param payload body models.GuestJoinRequest false "Guest join payload"
// @Success 201 {object} response.Envelope
// @Router /auth/guest/join [post]
func (h *AuthHandler) GuestJoin(c *gin.Context) {
	var req models.GuestJoinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid guest join payload"))
			return
		}
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.GuestJoin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// GuestRefresh godoc
// @Summary Rotate a guest token pair
// @Description Exchange a guest refresh secret for a rotated pair
// @Tags Guests
// @Accept json
// @Produce json
// @Param payload body models.RefreshRequest true "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/guest/refresh [post]
func (h *AuthHandler) GuestRefresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.GuestRefresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Upgrade godoc
// @Summary Upgrade a guest to a member
// @Description Attach credentials to the guest's actor and open a member session
// @Tags Guests
// @Accept json
// @Produce json
// @Param payload body models.UpgradeRequest true "Upgrade payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/guest/upgrade [post]
func (h *AuthHandler) Upgrade(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upgrade payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")
	req.Platform = c.GetHeader("X-Platform")

	res, err := h.service.UpgradeGuest(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the session named by the caller's access token
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.Logout(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// LogoutAll godoc
// @Summary Logout every session
// @Description Revoke all of the caller's active sessions, current one included
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.LogoutAll(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Verify the current password and store a new one
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Change password payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), claims, req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Me godoc
// @Summary Get current actor
// @Description Returns the identity carried by the verified access token
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, models.ProfileSummary{
		ID:   claims.ActorID,
		Role: claims.Role,
	}, nil)
}
