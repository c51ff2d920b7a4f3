package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/forum-auth-api/internal/models"
	"github.com/noah-isme/forum-auth-api/internal/token"
	appErrors "github.com/noah-isme/forum-auth-api/pkg/errors"
)

type authActorRepository interface {
	Create(ctx context.Context, actor *models.Actor) error
	FindByNormalizedIdentifier(ctx context.Context, identifier string) (*models.Actor, error)
	FindActiveByID(ctx context.Context, id string) (*models.Actor, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	SetCredentials(ctx context.Context, id, username, email, passwordHash string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	FindActiveGrant(ctx context.Context, actorID string, role models.ActorRole) (*models.RoleGrant, error)
}

type authSessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Rotate(ctx context.Context, oldHash, newHash string, newExpiresAt time.Time, extendUntil *time.Time) (*models.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) (string, error)
	RevokeAllForActor(ctx context.Context, actorID string, exceptSessionID string, at time.Time) (int64, error)
	ListByActor(ctx context.Context, actorID string, limit int) ([]models.Session, error)
}

type authGuestRepository interface {
	CreateGuest(ctx context.Context, actor *models.Actor, guest *models.GuestVisitor) error
	FindByActorID(ctx context.Context, actorID string) (*models.GuestVisitor, bool, error)
	RotateRefresh(ctx context.Context, oldHash, newHash string, extendUntil *time.Time) (*models.GuestVisitor, error)
	SetRestriction(ctx context.Context, actorID, restrictionType string, until *time.Time) error
	Retire(ctx context.Context, actorID string, at time.Time) error
}

type auditRecorder interface {
	Record(log *models.AuditLog)
}

// AuthConfig defines the session lifecycle policy.
type AuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// RefreshSliding extends the refresh deadline on every rotation;
	// otherwise the deadline fixed at issuance is an absolute cap.
	RefreshSliding bool

	RevokeOnPasswordChange bool
	KeepCurrentSession     bool

	BcryptCost int
}

// AuthService orchestrates the session lifecycle for every role. Role is
// carried as data; there is one manager, not one per role.
type AuthService struct {
	actors    authActorRepository
	sessions  authSessionRepository
	guests    authGuestRepository
	codec     *token.Codec
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time

	// dummyHash is compared against when the identifier is unknown, so
	// the miss path costs a bcrypt round like the hit path does.
	dummyHash []byte
}

// NewAuthService constructs an AuthService instance. audit and metrics
// may be nil; now defaults to time.Now.
func NewAuthService(actors authActorRepository, sessions authSessionRepository, guests authGuestRepository, codec *token.Codec, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AuthConfig, now func() time.Time) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if now == nil {
		now = time.Now
	}
	if config.BcryptCost < bcrypt.MinCost {
		config.BcryptCost = bcrypt.DefaultCost
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("no-such-actor"), config.BcryptCost)
	if err != nil {
		logger.Warn("failed to precompute dummy password hash", zap.Error(err))
	}
	return &AuthService{
		actors:    actors,
		sessions:  sessions,
		guests:    guests,
		codec:     codec,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       now,
		dummyHash: dummyHash,
	}
}

// Join registers a member account and opens its first session.
func (s *AuthService) Join(ctx context.Context, req models.JoinRequest) (*models.Authorized, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	actor := &models.Actor{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.actors.Create(ctx, actor); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			s.metrics.RecordAuthOperation("join", string(models.RoleMember), OutcomeDenied)
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create actor")
	}

	authorized, err := s.openSession(ctx, actor, models.RoleMember, req.IP, req.UserAgent, req.Platform)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthOperation("join", string(models.RoleMember), OutcomeSuccess)
	s.record(&models.AuditLog{
		ActorID:    &actor.ID,
		Action:     models.AuditActionJoin,
		Resource:   "auth",
		ResourceID: &actor.ID,
		NewValues:  []byte(`{"status":"joined"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})
	return authorized, nil
}

// Login authenticates an actor under the requested role and opens a
// fresh session; existing sessions are never reused or extended. Unknown
// identifier, wrong password and missing role grant all produce the same
// opaque error.
func (s *AuthService) Login(ctx context.Context, role models.ActorRole, req models.LoginRequest) (*models.Authorized, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	if role == models.RoleGuestVisitor || !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
	}

	actor, err := s.actors.FindByNormalizedIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn a compare so an unknown identifier is not
			// distinguishable from a wrong password by timing.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			return nil, s.denyLogin(role, req, "unknown identifier")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch actor")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.denyLogin(role, req, "password mismatch")
	}

	if role == models.RoleSiteAdmin || role == models.RoleSystemAdmin {
		if _, err := s.actors.FindActiveGrant(ctx, actor.ID, role); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, s.denyLogin(role, req, "missing role grant")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check role grant")
		}
	}

	authorized, err := s.openSession(ctx, actor, role, req.IP, req.UserAgent, req.Platform)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthOperation("login", string(role), OutcomeSuccess)
	s.record(&models.AuditLog{
		ActorID:    &actor.ID,
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: &actor.ID,
		NewValues:  []byte(`{"status":"success","role":"` + string(role) + `"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})
	return authorized, nil
}

// Refresh rotates a session-backed token pair. The conditional update in
// the store guarantees exactly one winner per refresh secret; a replayed
// or concurrent loser observes the same opaque error as a forged token.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshRequest) (*models.Authorized, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	newSecret, err := generateRefreshSecret()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh secret")
	}

	now := s.now().UTC()
	newExpiresAt := now.Add(s.config.AccessTokenTTL)
	// With a fixed refresh lifetime the deadline never moves; the final
	// access token simply runs out its TTL past the cap.
	var extendUntil *time.Time
	if s.config.RefreshSliding {
		slid := now.Add(s.config.RefreshTokenTTL)
		extendUntil = &slid
	}

	session, err := s.sessions.Rotate(ctx, hashRefreshSecret(req.RefreshToken), hashRefreshSecret(newSecret), newExpiresAt, extendUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordAuthOperation("refresh", "", OutcomeDenied)
			s.record(&models.AuditLog{
				Action:    models.AuditActionRefreshDenied,
				Resource:  "auth",
				NewValues: []byte(`{"cause":"no_active_session"}`),
				IPAddress: req.IP,
				UserAgent: req.UserAgent,
			})
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate session")
	}

	actor, err := s.actors.FindActiveByID(ctx, session.ActorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, revokeErr := s.sessions.Revoke(ctx, session.ID, now); revokeErr != nil {
				s.logger.Warn("failed to revoke session of deleted actor", zap.Error(revokeErr))
			}
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}

	access, expiresAt, err := s.codec.Sign(actor.ID, session.ID, session.Role, s.config.AccessTokenTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign access token")
	}

	s.metrics.RecordAuthOperation("refresh", string(session.Role), OutcomeSuccess)
	s.record(&models.AuditLog{
		ActorID:    &actor.ID,
		Action:     models.AuditActionRefresh,
		Resource:   "auth",
		ResourceID: &session.ID,
		NewValues:  []byte(`{"refresh":"rotated"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})

	return &models.Authorized{
		ID: actor.ID,
		Token: models.TokenPair{
			Access:           access,
			Refresh:          newSecret,
			ExpiredAt:        expiresAt,
			RefreshableUntil: session.RefreshableUntil,
		},
	}, nil
}

// GuestRefresh rotates a guest token pair against the guest row's
// refresh chain.
func (s *AuthService) GuestRefresh(ctx context.Context, req models.RefreshRequest) (*models.Authorized, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	newSecret, err := generateRefreshSecret()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh secret")
	}

	var extendUntil *time.Time
	if s.config.RefreshSliding {
		slid := s.now().UTC().Add(s.config.RefreshTokenTTL)
		extendUntil = &slid
	}

	guest, err := s.guests.RotateRefresh(ctx, hashRefreshSecret(req.RefreshToken), hashRefreshSecret(newSecret), extendUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordAuthOperation("refresh", string(models.RoleGuestVisitor), OutcomeDenied)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate guest refresh")
	}

	if _, err := s.actors.FindActiveByID(ctx, guest.ActorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}

	access, expiresAt, err := s.codec.Sign(guest.ActorID, "", models.RoleGuestVisitor, s.config.AccessTokenTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign access token")
	}

	s.metrics.RecordAuthOperation("refresh", string(models.RoleGuestVisitor), OutcomeSuccess)
	return &models.Authorized{
		ID: guest.ActorID,
		Token: models.TokenPair{
			Access:           access,
			Refresh:          newSecret,
			ExpiredAt:        expiresAt,
			RefreshableUntil: guest.RefreshableUntil,
		},
	}, nil
}

// Logout revokes exactly the session named by the caller's claims.
// Calling it twice is not an error; the second call reports
// already_revoked.
func (s *AuthService) Logout(ctx context.Context, claims *token.Claims) (*models.LogoutResponse, error) {
	if claims == nil || claims.SessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized")
	}

	status, err := s.sessions.Revoke(ctx, claims.SessionID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke session")
	}

	if status == models.SessionRevoked {
		s.metrics.AddSessionsRevoked(1)
	}
	s.metrics.RecordAuthOperation("logout", string(claims.Role), OutcomeSuccess)
	s.record(&models.AuditLog{
		ActorID:    &claims.ActorID,
		Action:     models.AuditActionLogout,
		Resource:   "auth",
		ResourceID: &claims.SessionID,
		NewValues:  []byte(`{"status":"` + status + `"}`),
	})

	return &models.LogoutResponse{Status: status, SessionID: claims.SessionID}, nil
}

// LogoutAll revokes every active session for the caller, including the
// current one. Refreshing with any of their secrets fails afterwards.
func (s *AuthService) LogoutAll(ctx context.Context, claims *token.Claims) (*models.LogoutAllResponse, error) {
	if claims == nil || claims.ActorID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized")
	}

	count, err := s.sessions.RevokeAllForActor(ctx, claims.ActorID, "", s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
	}

	s.metrics.AddSessionsRevoked(count)
	s.metrics.RecordAuthOperation("logout_all", string(claims.Role), OutcomeSuccess)
	s.record(&models.AuditLog{
		ActorID:   &claims.ActorID,
		Action:    models.AuditActionLogoutAll,
		Resource:  "auth",
		NewValues: []byte(`{"status":"revoked_all"}`),
	})

	return &models.LogoutAllResponse{RevokedCount: count}, nil
}

// ChangePassword verifies the current password and writes the new hash.
// A failed verification leaves the stored hash untouched. Depending on
// policy and the request, the actor's other sessions are revoked.
func (s *AuthService) ChangePassword(ctx context.Context, claims *token.Claims, req models.ChangePasswordRequest) error {
	if claims == nil || claims.ActorID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	actor, err := s.actors.FindActiveByID(ctx, claims.ActorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		s.metrics.RecordAuthOperation("password_change", string(claims.Role), OutcomeDenied)
		s.record(&models.AuditLog{
			ActorID:   &actor.ID,
			Action:    models.AuditActionPasswordChange,
			Resource:  "auth",
			NewValues: []byte(`{"status":"denied"}`),
		})
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.config.BcryptCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := s.now().UTC()
	if err := s.actors.UpdatePassword(ctx, actor.ID, string(newHash), now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if req.RevokeOthers || s.config.RevokeOnPasswordChange {
		except := ""
		if s.config.KeepCurrentSession {
			except = claims.SessionID
		}
		count, err := s.sessions.RevokeAllForActor(ctx, actor.ID, except, now)
		if err != nil {
			s.logger.Warn("failed to revoke sessions after password change", zap.Error(err))
		} else {
			s.metrics.AddSessionsRevoked(count)
		}
	}

	s.metrics.RecordAuthOperation("password_change", string(claims.Role), OutcomeSuccess)
	s.record(&models.AuditLog{
		ActorID:   &actor.ID,
		Action:    models.AuditActionPasswordChange,
		Resource:  "auth",
		NewValues: []byte(`{"status":"changed"}`),
	})
	return nil
}

// GuestJoin creates an anonymous read-only visitor and issues a
// guest-scoped token pair. Guests have no session row; the refresh chain
// lives on the guest row itself.
func (s *AuthService) GuestJoin(ctx context.Context, req models.GuestJoinRequest) (*models.Authorized, error) {
	secret, err := generateRefreshSecret()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh secret")
	}

	now := s.now().UTC()
	actorID := uuid.NewString()
	actor := &models.Actor{
		ID:       actorID,
		Username: "guest-" + actorID[:8],
	}
	actor.NormalizedUsername = models.NormalizeIdentifier(actor.Username)
	guest := &models.GuestVisitor{
		ActorID:           actorID,
		DeviceFingerprint: req.DeviceFingerprint,
		RestrictionType:   models.GuestReadOnly,
		RefreshHash:       hashRefreshSecret(secret),
		RefreshableUntil:  now.Add(s.config.RefreshTokenTTL),
	}

	if err := s.guests.CreateGuest(ctx, actor, guest); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create guest")
	}

	access, expiresAt, err := s.codec.Sign(actorID, "", models.RoleGuestVisitor, s.config.AccessTokenTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign access token")
	}

	s.metrics.RecordAuthOperation("guest_join", string(models.RoleGuestVisitor), OutcomeSuccess)
	s.record(&models.AuditLog{
		ActorID:    &actorID,
		Action:     models.AuditActionGuestJoin,
		Resource:   "auth",
		ResourceID: &actorID,
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})

	return &models.Authorized{
		ID: actorID,
		Token: models.TokenPair{
			Access:           access,
			Refresh:          secret,
			ExpiredAt:        expiresAt,
			RefreshableUntil: guest.RefreshableUntil,
		},
		User: &models.ProfileSummary{ID: actorID, Username: actor.Username, Role: models.RoleGuestVisitor},
	}, nil
}

// UpgradeGuest converts an authenticated guest into a member. The actor
// id is preserved; the guest refresh chain ends and a member session
// starts.
func (s *AuthService) UpgradeGuest(ctx context.Context, claims *token.Claims, req models.UpgradeRequest) (*models.Authorized, error) {
	if claims == nil || claims.Role != models.RoleGuestVisitor {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upgrade payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := s.now().UTC()
	if err := s.actors.SetCredentials(ctx, claims.ActorID, req.Username, req.Email, string(hash), now); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach credentials")
	}

	if err := s.guests.Retire(ctx, claims.ActorID, now); err != nil {
		s.logger.Warn("failed to retire guest refresh chain", zap.Error(err))
	}

	actor := &models.Actor{ID: claims.ActorID, Username: req.Username, Email: req.Email}
	authorized, err := s.openSession(ctx, actor, models.RoleMember, req.IP, req.UserAgent, req.Platform)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthOperation("upgrade", string(models.RoleMember), OutcomeSuccess)
	s.record(&models.AuditLog{
		ActorID:    &claims.ActorID,
		Action:     models.AuditActionUpgrade,
		Resource:   "auth",
		ResourceID: &claims.ActorID,
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})
	return authorized, nil
}

// DeactivateActor soft-deletes the actor and revokes every session it
// holds. Refresh attempts with any of its secrets fail from then on.
func (s *AuthService) DeactivateActor(ctx context.Context, claims *token.Claims, actorID string) error {
	now := s.now().UTC()
	if _, err := s.actors.FindActiveByID(ctx, actorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "actor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}

	if err := s.actors.SoftDelete(ctx, actorID, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate actor")
	}

	count, err := s.sessions.RevokeAllForActor(ctx, actorID, "", now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
	}
	s.metrics.AddSessionsRevoked(count)

	var adminID *string
	if claims != nil {
		adminID = &claims.ActorID
	}
	s.record(&models.AuditLog{
		ActorID:    adminID,
		Action:     models.AuditActionDeactivate,
		Resource:   "actor",
		ResourceID: &actorID,
		NewValues:  []byte(`{"status":"deleted"}`),
	})
	return nil
}

// RestrictGuest changes a guest's restriction class. The repository
// invalidates the cached row, so the new state applies on the guest's
// next request rather than at token expiry.
func (s *AuthService) RestrictGuest(ctx context.Context, claims *token.Claims, actorID string, req models.RestrictGuestRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid restriction payload")
	}

	if _, _, err := s.guests.FindByActorID(ctx, actorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "guest not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guest")
	}

	if err := s.guests.SetRestriction(ctx, actorID, req.RestrictionType, req.RestrictedUntil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set restriction")
	}
	return nil
}

// GetSession returns one session row for administrative inspection.
func (s *AuthService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// ListActorSessions returns the actor's sessions, newest first.
func (s *AuthService) ListActorSessions(ctx context.Context, actorID string, limit int) ([]models.Session, error) {
	sessions, err := s.sessions.ListByActor(ctx, actorID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

func (s *AuthService) denyLogin(role models.ActorRole, req models.LoginRequest, cause string) error {
	s.metrics.RecordAuthOperation("login", string(role), OutcomeDenied)
	s.record(&models.AuditLog{
		Action:    models.AuditActionLoginDenied,
		Resource:  "auth",
		NewValues: []byte(`{"cause":"` + cause + `"}`),
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	})
	return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
}

// openSession creates a fresh session for the actor under the role and
// signs the matching token pair.
func (s *AuthService) openSession(ctx context.Context, actor *models.Actor, role models.ActorRole, ip, userAgent, platform string) (*models.Authorized, error) {
	secret, err := generateRefreshSecret()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh secret")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.config.AccessTokenTTL)
	refreshableUntil := now.Add(s.config.RefreshTokenTTL)
	if refreshableUntil.Before(expiresAt) {
		refreshableUntil = expiresAt
	}

	session := &models.Session{
		ID:               uuid.NewString(),
		ActorID:          actor.ID,
		Role:             role,
		RefreshHash:      hashRefreshSecret(secret),
		IssuedAt:         now,
		ExpiresAt:        expiresAt,
		RefreshableUntil: refreshableUntil,
		LastSeenAt:       now,
		IPAddress:        ip,
		UserAgent:        userAgent,
		Platform:         platform,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	access, tokenExpiresAt, err := s.codec.Sign(actor.ID, session.ID, role, s.config.AccessTokenTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign access token")
	}

	return &models.Authorized{
		ID: actor.ID,
		Token: models.TokenPair{
			Access:           access,
			Refresh:          secret,
			ExpiredAt:        tokenExpiresAt,
			RefreshableUntil: session.RefreshableUntil,
		},
		User: &models.ProfileSummary{
			ID:       actor.ID,
			Username: actor.Username,
			Email:    actor.Email,
			Role:     role,
		},
	}, nil
}

func (s *AuthService) record(log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	s.audit.Record(log)
}

func generateRefreshSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashRefreshSecret derives the stored lookup key for a refresh secret.
// Only this digest ever reaches the database.
func hashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
