package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/forum-auth-api/internal/models"
)

const guestColumns = `actor_id, device_fingerprint, restriction_type, restricted_until, refresh_hash, refreshable_until, created_at`

// GuestRepository provides database access for guest visitors. The
// authorizer consults the restriction state on every guest request, so
// reads go through a short-TTL redis cache when one is configured.
type GuestRepository struct {
	db       *sqlx.DB
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewGuestRepository creates a new instance of GuestRepository. The redis
// client may be nil; lookups then always hit the store.
func NewGuestRepository(db *sqlx.DB, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *GuestRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &GuestRepository{db: db, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// CreateGuest inserts the actor row and the guest row in one
// transaction.
func (r *GuestRepository) CreateGuest(ctx context.Context, actor *models.Actor, guest *models.GuestVisitor) error {
	if actor.ID == "" {
		actor.ID = uuid.NewString()
	}
	guest.ActorID = actor.ID
	now := time.Now().UTC()
	actor.CreatedAt = now
	actor.UpdatedAt = now
	actor.Status = models.ActorActive
	if guest.CreatedAt.IsZero() {
		guest.CreatedAt = now
	}
	if guest.RestrictionType == "" {
		guest.RestrictionType = models.GuestReadOnly
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin guest tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const actorQuery = `INSERT INTO actors (id, username, email, normalized_username, normalized_email, password_hash, password_updated_at, status, deleted_at, created_at, updated_at)
		VALUES (:id, :username, :email, :normalized_username, :normalized_email, :password_hash, :password_updated_at, :status, :deleted_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, actorQuery, actor); err != nil {
		return fmt.Errorf("create guest actor: %w", err)
	}

	const guestQuery = `INSERT INTO guest_visitors (actor_id, device_fingerprint, restriction_type, restricted_until, refresh_hash, refreshable_until, created_at)
		VALUES (:actor_id, :device_fingerprint, :restriction_type, :restricted_until, :refresh_hash, :refreshable_until, :created_at)`
	if _, err := tx.NamedExecContext(ctx, guestQuery, guest); err != nil {
		return fmt.Errorf("create guest visitor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit guest tx: %w", err)
	}
	return nil
}

// FindByActorID returns the guest row, consulting the cache first.
// The boolean reports whether the answer came from cache.
func (r *GuestRepository) FindByActorID(ctx context.Context, actorID string) (*models.GuestVisitor, bool, error) {
	if r.cache != nil {
		raw, err := r.cache.Get(ctx, guestCacheKey(actorID)).Bytes()
		if err == nil {
			var guest models.GuestVisitor
			if jsonErr := json.Unmarshal(raw, &guest); jsonErr == nil {
				return &guest, true, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			r.logger.Warn("guest cache read failed", zap.Error(err))
		}
	}

	const query = `SELECT ` + guestColumns + ` FROM guest_visitors WHERE actor_id = $1 LIMIT 1`
	var guest models.GuestVisitor
	if err := r.db.GetContext(ctx, &guest, query, actorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("find guest visitor: %w", err)
	}

	r.cacheGuest(ctx, &guest)
	return &guest, false, nil
}

// RotateRefresh swaps the guest refresh hash under the same conditional
// single-statement rule as session rotation. A nil extendUntil leaves
// the refresh deadline untouched.
func (r *GuestRepository) RotateRefresh(ctx context.Context, oldHash, newHash string, extendUntil *time.Time) (*models.GuestVisitor, error) {
	const query = `UPDATE guest_visitors
		SET refresh_hash = $2,
			refreshable_until = GREATEST(refreshable_until, COALESCE($3, refreshable_until))
		WHERE refresh_hash = $1 AND refreshable_until > NOW()
		RETURNING ` + guestColumns

	var guest models.GuestVisitor
	if err := r.db.GetContext(ctx, &guest, query, oldHash, newHash, extendUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("rotate guest refresh: %w", err)
	}

	r.invalidate(ctx, guest.ActorID)
	return &guest, nil
}

// SetRestriction updates the restriction state and drops the cached row.
func (r *GuestRepository) SetRestriction(ctx context.Context, actorID, restrictionType string, until *time.Time) error {
	const query = `UPDATE guest_visitors SET restriction_type = $2, restricted_until = $3 WHERE actor_id = $1`
	if _, err := r.db.ExecContext(ctx, query, actorID, restrictionType, until); err != nil {
		return fmt.Errorf("set guest restriction: %w", err)
	}
	r.invalidate(ctx, actorID)
	return nil
}

// Retire ends the guest refresh chain, used when a guest upgrades to a
// member account. Guest refresh attempts fail from then on.
func (r *GuestRepository) Retire(ctx context.Context, actorID string, at time.Time) error {
	const query = `UPDATE guest_visitors SET refreshable_until = $2 WHERE actor_id = $1 AND refreshable_until > $2`
	if _, err := r.db.ExecContext(ctx, query, actorID, at); err != nil {
		return fmt.Errorf("retire guest: %w", err)
	}
	r.invalidate(ctx, actorID)
	return nil
}

func (r *GuestRepository) cacheGuest(ctx context.Context, guest *models.GuestVisitor) {
	if r.cache == nil {
		return
	}
	payload, err := json.Marshal(guest)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, guestCacheKey(guest.ActorID), payload, r.cacheTTL).Err(); err != nil {
		r.logger.Warn("guest cache write failed", zap.Error(err))
	}
}

func (r *GuestRepository) invalidate(ctx context.Context, actorID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, guestCacheKey(actorID)).Err(); err != nil {
		r.logger.Warn("guest cache invalidation failed", zap.Error(err))
	}
}

func guestCacheKey(actorID string) string {
	return "guest:restriction:" + actorID
}
