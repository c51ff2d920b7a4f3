package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-auth-api/internal/models"
	appErrors "github.com/noah-isme/forum-auth-api/pkg/errors"
)

func actorRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "normalized_username", "normalized_email",
		"password_hash", "password_updated_at", "status", "deleted_at", "created_at", "updated_at",
	}).AddRow("actor-1", "Alice", "Alice@Example.com", "alice", "alice@example.com",
		"hash", nil, string(models.ActorActive), nil, now, now)
}

func TestActorCreateNormalizesIdentifiers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	mock.ExpectExec("INSERT INTO actors").WillReturnResult(sqlmock.NewResult(1, 1))

	actor := &models.Actor{Username: "  Alice ", Email: "Alice@Example.COM", PasswordHash: "hash"}
	err := repo.Create(context.Background(), actor)
	require.NoError(t, err)
	assert.NotEmpty(t, actor.ID)
	assert.Equal(t, "alice", actor.NormalizedUsername)
	assert.Equal(t, "alice@example.com", actor.NormalizedEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorCreateUniqueViolationIsConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	mock.ExpectExec("INSERT INTO actors").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Actor{Username: "alice", Email: "alice@example.com"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorFindByNormalizedIdentifier(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + actorColumns + " FROM actors WHERE (normalized_email = $1 OR normalized_username = $1) AND status = 'active' LIMIT 1")).
		WithArgs("alice@example.com").
		WillReturnRows(actorRows(now))

	actor, err := repo.FindByNormalizedIdentifier(context.Background(), "  ALICE@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "actor-1", actor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorFindByNormalizedIdentifierNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	mock.ExpectQuery("SELECT .+ FROM actors").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByNormalizedIdentifier(context.Background(), "nobody")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorUpdatePassword(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actors SET password_hash = $2, password_updated_at = $3, updated_at = $3 WHERE id = $1 AND status = 'active'")).
		WithArgs("actor-1", "new-hash", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdatePassword(context.Background(), "actor-1", "new-hash", at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorSetCredentialsConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	mock.ExpectExec("UPDATE actors SET username").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.SetCredentials(context.Background(), "actor-1", "alice", "alice@example.com", "hash", time.Now().UTC())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveGrant(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "actor_id", "role", "granted_at", "revoked_at"}).
		AddRow("grant-1", "actor-1", string(models.RoleSiteAdmin), now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, actor_id, role, granted_at, revoked_at FROM role_grants WHERE actor_id = $1 AND role = $2 AND revoked_at IS NULL LIMIT 1")).
		WithArgs("actor-1", models.RoleSiteAdmin).
		WillReturnRows(rows)

	grant, err := repo.FindActiveGrant(context.Background(), "actor-1", models.RoleSiteAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSiteAdmin, grant.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveGrantMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	mock.ExpectQuery("SELECT .+ FROM role_grants").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveGrant(context.Background(), "actor-1", models.RoleSystemAdmin)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	actorID := "actor-1"
	err := repo.CreateAuditLog(context.Background(), &models.AuditLog{
		ActorID:  &actorID,
		Action:   models.AuditActionLogin,
		Resource: "auth",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorSoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActorRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actors SET status = 'deleted', deleted_at = $2, updated_at = $2 WHERE id = $1 AND status = 'active'")).
		WithArgs("actor-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SoftDelete(context.Background(), "actor-1", at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
