package models

import "time"

// Session represents one issued login instance. The refresh secret is
// stored only as a SHA-256 hash; the plaintext never touches the table.
// Rows are never deleted, only revoked, so the chain stays auditable.
type Session struct {
	ID               string     `db:"id" json:"id"`
	ActorID          string     `db:"actor_id" json:"actor_id"`
	Role             ActorRole  `db:"role" json:"role"`
	RefreshHash      string     `db:"refresh_hash" json:"-"`
	IssuedAt         time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt        time.Time  `db:"expires_at" json:"expires_at"`
	RefreshableUntil time.Time  `db:"refreshable_until" json:"refreshable_until"`
	LastSeenAt       time.Time  `db:"last_seen_at" json:"last_seen_at"`
	RevokedAt        *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress        string     `db:"ip_address" json:"ip_address"`
	UserAgent        string     `db:"user_agent" json:"user_agent"`
	Platform         string     `db:"platform" json:"platform,omitempty"`
}

// Active reports whether the session can still back a refresh at the
// given instant.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.RefreshableUntil)
}

// Revocation statuses returned by logout.
const (
	SessionRevoked        = "revoked"
	SessionAlreadyRevoked = "already_revoked"
)
