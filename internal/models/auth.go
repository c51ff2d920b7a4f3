package models

import "time"

// JoinRequest registers a new member account.
type JoinRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=32"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
	Platform  string `json:"-"`
}

// LoginRequest holds credentials for authenticating an actor. Identifier
// accepts either the email address or the username.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
	Platform   string `json:"-"`
}

// RefreshRequest exchanges a refresh secret for a rotated token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// ChangePasswordRequest payload for updating the caller's password.
// RevokeOthers opts in to revoking every other active session.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	RevokeOthers    bool   `json:"revoke_others"`
}

// GuestJoinRequest creates an anonymous read-only visitor.
type GuestJoinRequest struct {
	DeviceFingerprint string `json:"device_fingerprint"`
	IP                string `json:"-"`
	UserAgent         string `json:"-"`
}

// UpgradeRequest converts an authenticated guest into a member while
// keeping the actor id.
type UpgradeRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=32"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
	Platform  string `json:"-"`
}

// RestrictGuestRequest changes a guest visitor's restriction class.
type RestrictGuestRequest struct {
	RestrictionType string     `json:"restriction_type" validate:"required,oneof=read_only suspended"`
	RestrictedUntil *time.Time `json:"restricted_until,omitempty"`
}

// TokenPair is the transient credential bundle returned to clients.
// Neither value is persisted as-is.
type TokenPair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	ExpiredAt        time.Time `json:"expired_at"`
	RefreshableUntil time.Time `json:"refreshable_until"`
}

// ProfileSummary echoes the actor profile in auth responses.
type ProfileSummary struct {
	ID       string    `json:"id"`
	Username string    `json:"username,omitempty"`
	Email    string    `json:"email,omitempty"`
	Role     ActorRole `json:"role"`
}

// Authorized is the uniform client-facing auth result for every role.
type Authorized struct {
	ID    string          `json:"id"`
	Token TokenPair       `json:"token"`
	User  *ProfileSummary `json:"user,omitempty"`
}

// LogoutResponse reports the terminal status of a revocation.
type LogoutResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// LogoutAllResponse reports how many sessions a bulk revocation hit.
type LogoutAllResponse struct {
	RevokedCount int64 `json:"revoked_count"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
