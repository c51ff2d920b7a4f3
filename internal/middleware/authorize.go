package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/forum-auth-api/internal/models"
	"github.com/noah-isme/forum-auth-api/internal/token"
	appErrors "github.com/noah-isme/forum-auth-api/pkg/errors"
	"github.com/noah-isme/forum-auth-api/pkg/response"
)

// ContextClaimsKey is the gin context key storing verified access claims.
const ContextClaimsKey = "currentActor"

type guestLookup interface {
	FindByActorID(ctx context.Context, actorID string) (*models.GuestVisitor, bool, error)
}

type cacheObserver interface {
	RecordCacheOperation(hit bool)
}

// Authorizer gates routes on a verified access token and an allowed role
// set. Every rejection surfaces the same opaque unauthorized error; the
// reason never reaches the client.
type Authorizer struct {
	codec   *token.Codec
	guests  guestLookup
	metrics cacheObserver
	now     func() time.Time
}

// NewAuthorizer builds the route guard. guests may be nil when no guest
// route is mounted; now defaults to time.Now.
func NewAuthorizer(codec *token.Codec, guests guestLookup, metrics cacheObserver, now func() time.Time) *Authorizer {
	if now == nil {
		now = time.Now
	}
	return &Authorizer{codec: codec, guests: guests, metrics: metrics, now: now}
}

// Require admits only callers whose token carries one of the allowed
// roles. Guest tokens additionally pass a live restriction check so that
// a restriction applied after issuance takes effect before token expiry.
func (a *Authorizer) Require(allowed ...models.ActorRole) gin.HandlerFunc {
	allowedRoles := make(map[models.ActorRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := a.verify(c)
		if !ok {
			return
		}

		if _, ok := allowedRoles[claims.Role]; !ok {
			reject(c)
			return
		}

		if claims.Role == models.RoleGuestVisitor && !a.guestAuthorizable(c, claims.ActorID) {
			reject(c)
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

func (a *Authorizer) verify(c *gin.Context) (*token.Claims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		reject(c)
		return nil, false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		reject(c)
		return nil, false
	}

	claims, err := a.codec.Verify(parts[1])
	if err != nil {
		reject(c)
		return nil, false
	}
	return claims, true
}

func (a *Authorizer) guestAuthorizable(c *gin.Context, actorID string) bool {
	if a.guests == nil {
		return false
	}
	guest, fromCache, err := a.guests.FindByActorID(c.Request.Context(), actorID)
	if err != nil {
		return false
	}
	if a.metrics != nil {
		a.metrics.RecordCacheOperation(fromCache)
	}
	return guest.Authorizable(a.now().UTC())
}

func reject(c *gin.Context) {
	response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized"))
	c.Abort()
}

// ClaimsFromContext extracts verified claims set by Require.
func ClaimsFromContext(c *gin.Context) (*token.Claims, bool) {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*token.Claims)
	return claims, ok
}
