package models

import "time"

// Guest restriction classes. ReadOnly is the default class assigned on
// guest join; Suspended guests fail authorization until restricted_until
// elapses.
const (
	GuestReadOnly  = "read_only"
	GuestSuspended = "suspended"
)

// GuestVisitor is the lightweight actor variant for anonymous visitors.
// Guests have no session row; the guest row itself carries the hashed
// refresh secret and the restriction state the authorizer consults on
// every request.
type GuestVisitor struct {
	ActorID           string     `db:"actor_id" json:"actor_id"`
	DeviceFingerprint string     `db:"device_fingerprint" json:"device_fingerprint,omitempty"`
	RestrictionType   string     `db:"restriction_type" json:"restriction_type"`
	RestrictedUntil   *time.Time `db:"restricted_until" json:"restricted_until,omitempty"`
	RefreshHash       string     `db:"refresh_hash" json:"-"`
	RefreshableUntil  time.Time  `db:"refreshable_until" json:"refreshable_until"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Authorizable reports whether the guest may pass the guest authorizer
// at the given instant.
func (g *GuestVisitor) Authorizable(now time.Time) bool {
	if g.RestrictionType == GuestReadOnly {
		return true
	}
	return g.RestrictedUntil != nil && now.After(*g.RestrictedUntil)
}
