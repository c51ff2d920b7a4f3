package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/forum-auth-api/internal/models"
)

// Verification failure variants. Authorizers collapse all three into one
// opaque category before anything reaches a client.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims is the signed access-token payload.
type Claims struct {
	ActorID   string           `json:"actor_id"`
	SessionID string           `json:"session_id,omitempty"`
	Role      models.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens. The key material and clock are
// fixed at construction; the codec performs no I/O and is safe for
// concurrent use.
type Codec struct {
	secret   []byte
	issuer   string
	audience []string
	now      func() time.Time
}

// NewCodec constructs a codec. A nil clock falls back to time.Now.
func NewCodec(secret, issuer string, audience []string, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: []byte(secret), issuer: issuer, audience: audience, now: now}
}

// Sign issues an access token for the given subject and role.
func (c *Codec) Sign(actorID, sessionID string, role models.ActorRole, ttl time.Duration) (string, time.Time, error) {
	issuedAt := c.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		ActorID:   actorID,
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   actorID,
			Audience:  c.audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature integrity and expiry and returns the claims.
func (c *Codec) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if !claims.Role.Valid() {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
