package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/forum-auth-api/internal/models"
	appErrors "github.com/noah-isme/forum-auth-api/pkg/errors"
)

const actorColumns = `id, username, email, normalized_username, normalized_email, password_hash, password_updated_at, status, deleted_at, created_at, updated_at`

// ActorRepository provides database access for actor credentials and
// role grants.
type ActorRepository struct {
	db *sqlx.DB
}

// NewActorRepository creates a new instance of ActorRepository.
func NewActorRepository(db *sqlx.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// Create inserts a new actor. Unique violations on the normalized
// identity columns surface as Conflict.
func (r *ActorRepository) Create(ctx context.Context, actor *models.Actor) error {
	if actor.ID == "" {
		actor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if actor.CreatedAt.IsZero() {
		actor.CreatedAt = now
	}
	actor.UpdatedAt = now
	if actor.Status == "" {
		actor.Status = models.ActorActive
	}
	actor.NormalizedUsername = models.NormalizeIdentifier(actor.Username)
	actor.NormalizedEmail = models.NormalizeIdentifier(actor.Email)

	const query = `INSERT INTO actors (id, username, email, normalized_username, normalized_email, password_hash, password_updated_at, status, deleted_at, created_at, updated_at)
		VALUES (:id, :username, :email, :normalized_username, :normalized_email, :password_hash, :password_updated_at, :status, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, actor); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "username or email already in use")
		}
		return fmt.Errorf("create actor: %w", err)
	}
	return nil
}

// FindByNormalizedIdentifier resolves an active actor by normalized
// email or username.
func (r *ActorRepository) FindByNormalizedIdentifier(ctx context.Context, identifier string) (*models.Actor, error) {
	normalized := models.NormalizeIdentifier(identifier)
	const query = `SELECT ` + actorColumns + ` FROM actors WHERE (normalized_email = $1 OR normalized_username = $1) AND status = 'active' LIMIT 1`
	var actor models.Actor
	if err := r.db.GetContext(ctx, &actor, query, normalized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find actor by identifier: %w", err)
	}
	return &actor, nil
}

// FindActiveByID returns a non-deleted actor by identifier.
func (r *ActorRepository) FindActiveByID(ctx context.Context, id string) (*models.Actor, error) {
	const query = `SELECT ` + actorColumns + ` FROM actors WHERE id = $1 AND status = 'active' LIMIT 1`
	var actor models.Actor
	if err := r.db.GetContext(ctx, &actor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find actor by id: %w", err)
	}
	return &actor, nil
}

// UpdatePassword updates the stored hash and stamps password_updated_at.
func (r *ActorRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE actors SET password_hash = $2, password_updated_at = $3, updated_at = $3 WHERE id = $1 AND status = 'active'`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetCredentials attaches a username, email and password hash to a
// previously anonymous actor (guest upgrade). The actor keeps its id.
func (r *ActorRepository) SetCredentials(ctx context.Context, id, username, email, passwordHash string, at time.Time) error {
	const query = `UPDATE actors SET username = $2, email = $3, normalized_username = $4, normalized_email = $5, password_hash = $6, password_updated_at = $7, updated_at = $7 WHERE id = $1 AND status = 'active'`
	_, err := r.db.ExecContext(ctx, query, id, username, email,
		models.NormalizeIdentifier(username), models.NormalizeIdentifier(email), passwordHash, at)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "username or email already in use")
		}
		return fmt.Errorf("set credentials: %w", err)
	}
	return nil
}

// SoftDelete marks the actor deleted; lookups filter it out from then on.
func (r *ActorRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE actors SET status = 'deleted', deleted_at = $2, updated_at = $2 WHERE id = $1 AND status = 'active'`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("soft delete actor: %w", err)
	}
	return nil
}

// FindActiveGrant returns the unrevoked role grant for the actor, if any.
func (r *ActorRepository) FindActiveGrant(ctx context.Context, actorID string, role models.ActorRole) (*models.RoleGrant, error) {
	const query = `SELECT id, actor_id, role, granted_at, revoked_at FROM role_grants WHERE actor_id = $1 AND role = $2 AND revoked_at IS NULL LIMIT 1`
	var grant models.RoleGrant
	if err := r.db.GetContext(ctx, &grant, query, actorID, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find role grant: %w", err)
	}
	return &grant, nil
}

// CreateAuditLog stores an audit log entry.
func (r *ActorRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
		VALUES (:id, :actor_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
