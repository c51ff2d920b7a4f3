package models

import "time"

// AuditAction constants represent actions to be logged. The external
// error surface is deliberately opaque; these records are where the real
// failure causes remain distinguishable.
const (
	AuditActionJoin           = "JOIN"
	AuditActionGuestJoin      = "GUEST_JOIN"
	AuditActionUpgrade        = "GUEST_UPGRADE"
	AuditActionLogin          = "LOGIN"
	AuditActionLoginDenied    = "LOGIN_DENIED"
	AuditActionRefresh        = "REFRESH"
	AuditActionRefreshDenied  = "REFRESH_DENIED"
	AuditActionLogout         = "LOGOUT"
	AuditActionLogoutAll      = "LOGOUT_ALL"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionDeactivate     = "ACTOR_DEACTIVATE"
	AuditActionGuestRestrict  = "GUEST_RESTRICT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
