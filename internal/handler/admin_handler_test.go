package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-auth-api/internal/middleware"
	"github.com/noah-isme/forum-auth-api/internal/models"
	"github.com/noah-isme/forum-auth-api/internal/token"
	appErrors "github.com/noah-isme/forum-auth-api/pkg/errors"
)

type adminServiceMock struct {
	deactivateErr    error
	restrictErr      error
	lastActorID      string
	lastRestrictType string
}

func (m *adminServiceMock) DeactivateActor(_ context.Context, claims *token.Claims, actorID string) error {
	m.lastActorID = actorID
	return m.deactivateErr
}

func (m *adminServiceMock) RestrictGuest(_ context.Context, claims *token.Claims, actorID string, req models.RestrictGuestRequest) error {
	m.lastActorID = actorID
	m.lastRestrictType = req.RestrictionType
	return m.restrictErr
}

func adminClaims() *token.Claims {
	return &token.Claims{ActorID: "admin-1", SessionID: "session-admin", Role: models.RoleSystemAdmin}
}

func TestAdminHandlerDeactivateActor(t *testing.T) {
	mockSvc := &adminServiceMock{}
	handler := NewAdminHandler(mockSvc)

	c, w := testContext(t, http.MethodDelete, "/admin/actors/actor-9", "")
	c.Params = append(c.Params, gin.Param{Key: "id", Value: "actor-9"})
	c.Set(middleware.ContextClaimsKey, adminClaims())

	handler.DeactivateActor(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "actor-9", mockSvc.lastActorID)
}

func TestAdminHandlerDeactivateActorNotFound(t *testing.T) {
	mockSvc := &adminServiceMock{deactivateErr: appErrors.Clone(appErrors.ErrNotFound, "actor not found")}
	handler := NewAdminHandler(mockSvc)

	c, w := testContext(t, http.MethodDelete, "/admin/actors/missing", "")
	c.Params = append(c.Params, gin.Param{Key: "id", Value: "missing"})
	c.Set(middleware.ContextClaimsKey, adminClaims())

	handler.DeactivateActor(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandlerRestrictGuest(t *testing.T) {
	mockSvc := &adminServiceMock{}
	handler := NewAdminHandler(mockSvc)

	c, w := testContext(t, http.MethodPut, "/admin/guests/guest-1/restriction",
		`{"restriction_type":"suspended","restricted_until":"2025-12-01T00:00:00Z"}`)
	c.Params = append(c.Params, gin.Param{Key: "id", Value: "guest-1"})
	c.Set(middleware.ContextClaimsKey, adminClaims())

	handler.RestrictGuest(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "guest-1", mockSvc.lastActorID)
	assert.Equal(t, models.GuestSuspended, mockSvc.lastRestrictType)
}

func TestAdminHandlerRestrictGuestWithoutClaims(t *testing.T) {
	handler := NewAdminHandler(&adminServiceMock{})

	c, w := testContext(t, http.MethodPut, "/admin/guests/guest-1/restriction",
		`{"restriction_type":"suspended"}`)
	handler.RestrictGuest(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
