package models

import (
	"strings"
	"time"
)

// ActorRole represents the role a credential was issued under.
type ActorRole string

const (
	RoleGuestVisitor ActorRole = "guestvisitor"
	RoleMember       ActorRole = "member"
	RoleSiteAdmin    ActorRole = "siteadmin"
	RoleSystemAdmin  ActorRole = "systemadmin"
)

// Valid reports whether the role is one of the known role tags.
func (r ActorRole) Valid() bool {
	switch r {
	case RoleGuestVisitor, RoleMember, RoleSiteAdmin, RoleSystemAdmin:
		return true
	}
	return false
}

// ActorStatus represents the lifecycle state of an actor row.
type ActorStatus string

const (
	ActorActive  ActorStatus = "active"
	ActorDeleted ActorStatus = "deleted"
)

// Actor represents an authenticable principal stored in the actors table.
// Guests, members and admins all share this row shape; administrative
// capabilities live in separate role_grants rows.
type Actor struct {
	ID                 string      `db:"id" json:"id"`
	Username           string      `db:"username" json:"username"`
	Email              string      `db:"email" json:"email"`
	NormalizedUsername string      `db:"normalized_username" json:"-"`
	NormalizedEmail    string      `db:"normalized_email" json:"-"`
	PasswordHash       string      `db:"password_hash" json:"-"`
	PasswordUpdatedAt  *time.Time  `db:"password_updated_at" json:"-"`
	Status             ActorStatus `db:"status" json:"status"`
	DeletedAt          *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// RoleGrant elevates an actor to an administrative role. Grants are
// revocable independently of the actor row.
type RoleGrant struct {
	ID        string     `db:"id" json:"id"`
	ActorID   string     `db:"actor_id" json:"actor_id"`
	Role      ActorRole  `db:"role" json:"role"`
	GrantedAt time.Time  `db:"granted_at" json:"granted_at"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// NormalizeIdentifier lowercases and trims an email or username for the
// case-insensitive uniqueness and lookup rules.
func NormalizeIdentifier(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
