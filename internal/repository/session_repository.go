package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/forum-auth-api/internal/models"
)

const sessionColumns = `id, actor_id, role, refresh_hash, issued_at, expires_at, refreshable_until, last_seen_at, revoked_at, ip_address, user_agent, platform`

// SessionRepository provides database access for issued sessions. Rows
// are only ever inserted, rotated or revoked; nothing is deleted.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.IssuedAt.IsZero() {
		session.IssuedAt = now
	}
	if session.LastSeenAt.IsZero() {
		session.LastSeenAt = session.IssuedAt
	}

	const query = `INSERT INTO sessions (id, actor_id, role, refresh_hash, issued_at, expires_at, refreshable_until, last_seen_at, revoked_at, ip_address, user_agent, platform)
		VALUES (:id, :actor_id, :role, :refresh_hash, :issued_at, :expires_at, :refreshable_until, :last_seen_at, :revoked_at, :ip_address, :user_agent, :platform)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID returns a session regardless of state, for administrative
// session-detail endpoints.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// Rotate swaps the refresh hash in a single conditional update keyed on
// the presented hash. Exactly one of any number of concurrent refreshes
// using the same secret can win; the losers observe sql.ErrNoRows. A nil
// extendUntil leaves the refresh deadline untouched; a non-nil one only
// ever moves it forward.
func (r *SessionRepository) Rotate(ctx context.Context, oldHash, newHash string, newExpiresAt time.Time, extendUntil *time.Time) (*models.Session, error) {
	const query = `UPDATE sessions
		SET refresh_hash = $2,
			expires_at = $3,
			refreshable_until = GREATEST(refreshable_until, COALESCE($4, refreshable_until)),
			last_seen_at = NOW()
		WHERE refresh_hash = $1 AND revoked_at IS NULL AND refreshable_until > NOW()
		RETURNING ` + sessionColumns

	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, oldHash, newHash, newExpiresAt, extendUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	return &session, nil
}

// Revoke sets revoked_at once. Revoking an already revoked session is a
// no-op success; the returned status distinguishes the two.
func (r *SessionRepository) Revoke(ctx context.Context, id string, at time.Time) (string, error) {
	const query = `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return "", fmt.Errorf("revoke session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("revoke session rows: %w", err)
	}
	if affected == 0 {
		return models.SessionAlreadyRevoked, nil
	}
	return models.SessionRevoked, nil
}

// RevokeAllForActor bulk-revokes every active session for the actor,
// optionally sparing one. The WHERE clause targets commit-time state, so
// a session rotated by a concurrent refresh is still caught.
func (r *SessionRepository) RevokeAllForActor(ctx context.Context, actorID string, exceptSessionID string, at time.Time) (int64, error) {
	const query = `UPDATE sessions SET revoked_at = $3 WHERE actor_id = $1 AND revoked_at IS NULL AND ($2 = '' OR id <> $2)`
	res, err := r.db.ExecContext(ctx, query, actorID, exceptSessionID, at)
	if err != nil {
		return 0, fmt.Errorf("revoke actor sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke actor sessions rows: %w", err)
	}
	return affected, nil
}

// ListByActor returns the actor's sessions, newest first.
func (r *SessionRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT `+sessionColumns+` FROM sessions WHERE actor_id = $1 ORDER BY issued_at DESC LIMIT %d`, limit)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, actorID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
