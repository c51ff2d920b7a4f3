package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-auth-api/internal/middleware"
	"github.com/noah-isme/forum-auth-api/internal/models"
	"github.com/noah-isme/forum-auth-api/internal/token"
	appErrors "github.com/noah-isme/forum-auth-api/pkg/errors"
)

type authServiceMock struct {
	joinResp    *models.Authorized
	joinErr     error
	loginResp   *models.Authorized
	loginErr    error
	refreshResp *models.Authorized
	refreshErr  error
	logoutResp  *models.LogoutResponse
	logoutErr   error
	allResp     *models.LogoutAllResponse
	allErr      error
	changeErr   error

	lastLoginRole models.ActorRole
	lastLoginReq  models.LoginRequest
	logoutClaims  *token.Claims
	joinCalled    bool
	changeCalled  bool
}

func (m *authServiceMock) Join(_ context.Context, req models.JoinRequest) (*models.Authorized, error) {
	m.joinCalled = true
	return m.joinResp, m.joinErr
}

func (m *authServiceMock) Login(_ context.Context, role models.ActorRole, req models.LoginRequest) (*models.Authorized, error) {
	m.lastLoginRole = role
	m.lastLoginReq = req
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) Refresh(_ context.Context, req models.RefreshRequest) (*models.Authorized, error) {
	return m.refreshResp, m.refreshErr
}

func (m *authServiceMock) GuestJoin(_ context.Context, req models.GuestJoinRequest) (*models.Authorized, error) {
	return m.joinResp, m.joinErr
}

func (m *authServiceMock) GuestRefresh(_ context.Context, req models.RefreshRequest) (*models.Authorized, error) {
	return m.refreshResp, m.refreshErr
}

func (m *authServiceMock) UpgradeGuest(_ context.Context, claims *token.Claims, req models.UpgradeRequest) (*models.Authorized, error) {
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) Logout(_ context.Context, claims *token.Claims) (*models.LogoutResponse, error) {
	m.logoutClaims = claims
	return m.logoutResp, m.logoutErr
}

func (m *authServiceMock) LogoutAll(_ context.Context, claims *token.Claims) (*models.LogoutAllResponse, error) {
	return m.allResp, m.allErr
}

func (m *authServiceMock) ChangePassword(_ context.Context, claims *token.Claims, req models.ChangePasswordRequest) error {
	m.changeCalled = true
	return m.changeErr
}

func testContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	return c, w
}

func TestAuthHandlerJoin(t *testing.T) {
	mockSvc := &authServiceMock{
		joinResp: &models.Authorized{ID: "actor-1", Token: models.TokenPair{Access: "a", Refresh: "r"}},
	}
	handler := NewAuthHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/auth/join",
		`{"username":"alice","email":"alice@example.com","password":"correct horse"}`)
	handler.Join(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.joinCalled)
}

func TestAuthHandlerJoinInvalidBody(t *testing.T) {
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/auth/join", `{"username":"alice"`)
	handler.Join(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.joinCalled)
}

func TestAuthHandlerLoginRoutesCarryRole(t *testing.T) {
	cases := []struct {
		name string
		call func(h *AuthHandler, c *gin.Context)
		want models.ActorRole
	}{
		{"member", (*AuthHandler).Login, models.RoleMember},
		{"siteadmin", (*AuthHandler).LoginSiteAdmin, models.RoleSiteAdmin},
		{"systemadmin", (*AuthHandler).LoginSystemAdmin, models.RoleSystemAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockSvc := &authServiceMock{loginResp: &models.Authorized{ID: "actor-1"}}
			handler := NewAuthHandler(mockSvc)

			c, w := testContext(t, http.MethodPost, "/auth/login",
				`{"identifier":"alice","password":"correct horse"}`)
			tc.call(handler, c)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.want, mockSvc.lastLoginRole)
			assert.Equal(t, "alice", mockSvc.lastLoginReq.Identifier)
		})
	}
}

func TestAuthHandlerLoginError(t *testing.T) {
	mockSvc := &authServiceMock{loginErr: appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")}
	handler := NewAuthHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/auth/login",
		`{"identifier":"alice","password":"wrong"}`)
	handler.Login(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, envelope.Error.Code)
}

func TestAuthHandlerLogout(t *testing.T) {
	mockSvc := &authServiceMock{
		logoutResp: &models.LogoutResponse{Status: models.SessionRevoked, SessionID: "session-1"},
	}
	handler := NewAuthHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/auth/logout", "")
	c.Set(middleware.ContextClaimsKey, &token.Claims{ActorID: "actor-1", SessionID: "session-1", Role: models.RoleMember})
	handler.Logout(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.logoutClaims)
	assert.Equal(t, "session-1", mockSvc.logoutClaims.SessionID)
}

func TestAuthHandlerLogoutWithoutClaims(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})

	c, w := testContext(t, http.MethodPost, "/auth/logout", "")
	handler.Logout(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerChangePassword(t *testing.T) {
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/auth/change-password",
		`{"current_password":"old password","new_password":"new password"}`)
	c.Set(middleware.ContextClaimsKey, &token.Claims{ActorID: "actor-1", SessionID: "session-1", Role: models.RoleMember})
	handler.ChangePassword(c)
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.changeCalled)
}

func TestAuthHandlerGuestJoinAllowsEmptyBody(t *testing.T) {
	mockSvc := &authServiceMock{joinResp: &models.Authorized{ID: "guest-1"}}
	handler := NewAuthHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/auth/guest/join", "")
	handler.GuestJoin(c)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestAuthHandlerUpgradeRequiresClaims(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})

	c, w := testContext(t, http.MethodPost, "/auth/guest/upgrade",
		`{"username":"alice","email":"alice@example.com","password":"correct horse"}`)
	handler.Upgrade(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
