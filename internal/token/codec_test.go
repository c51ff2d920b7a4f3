package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-auth-api/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCodecSignVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", "forum", []string{"forum-api"}, fixedClock(now))

	raw, expiresAt, err := codec.Sign("actor-1", "sess-1", models.RoleMember, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), expiresAt)

	claims, err := codec.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "actor-1", claims.ActorID)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, models.RoleMember, claims.Role)
}

func TestCodecVerifyExpired(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", "forum", nil, fixedClock(issued))

	raw, _, err := codec.Sign("actor-1", "sess-1", models.RoleMember, time.Minute)
	require.NoError(t, err)

	late := NewCodec("test-secret", "forum", nil, fixedClock(issued.Add(2*time.Minute)))
	_, err = late.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCodecVerifyWrongKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", "forum", nil, fixedClock(now))
	other := NewCodec("other-secret", "forum", nil, fixedClock(now))

	raw, _, err := codec.Sign("actor-1", "sess-1", models.RoleSiteAdmin, time.Minute)
	require.NoError(t, err)

	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestCodecVerifyMalformed(t *testing.T) {
	codec := NewCodec("test-secret", "forum", nil, nil)

	for _, raw := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		_, err := codec.Verify(raw)
		assert.ErrorIs(t, err, ErrTokenMalformed, raw)
	}
}

func TestCodecRejectsUnknownRole(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", "forum", nil, fixedClock(now))

	raw, _, err := codec.Sign("actor-1", "sess-1", models.ActorRole("superuser"), time.Minute)
	require.NoError(t, err)

	_, err = codec.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
