package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, time.Minute), mr
}

func TestLocal_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(time.Minute)

	require.NoError(t, l.Acquire(ctx, "prod-1", "draft-a"))
	require.NoError(t, l.Acquire(ctx, "prod-1", "draft-a"), "same owner renews")

	err := l.Acquire(ctx, "prod-1", "draft-b")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// A release by a non-owner is ignored.
	require.NoError(t, l.Release(ctx, "prod-1", "draft-b"))
	assert.Equal(t, 1, l.Len())

	require.NoError(t, l.Release(ctx, "prod-1", "draft-a"))
	assert.Equal(t, 0, l.Len())
	assert.NoError(t, l.Acquire(ctx, "prod-1", "draft-b"))
}

func TestLocal_ExpiredLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Acquire(ctx, "prod-1", "draft-a"))

	now = now.Add(2 * time.Minute)
	assert.NoError(t, l.Acquire(ctx, "prod-1", "draft-b"))
}

func TestNewLocal_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewLocal(0).ttl)
}

func TestRedis_AcquireSetsOwnerAndTTL(t *testing.T) {
	r, mr := setupTestRedis(t)

	require.NoError(t, r.Acquire(context.Background(), "prod-1", "draft-a"))

	got, err := mr.Get("media:lease:prod-1")
	require.NoError(t, err)
	assert.Equal(t, "draft-a", got)
	assert.Equal(t, time.Minute, mr.TTL("media:lease:prod-1"))
}

func TestRedis_ConflictAndRenew(t *testing.T) {
	ctx := context.Background()
	r, mr := setupTestRedis(t)

	require.NoError(t, r.Acquire(ctx, "prod-1", "draft-a"))
	mr.FastForward(30 * time.Second)

	err := r.Acquire(ctx, "prod-1", "draft-b")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, r.Acquire(ctx, "prod-1", "draft-a"))
	assert.Equal(t, time.Minute, mr.TTL("media:lease:prod-1"))
}

func TestRedis_ExpiredLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	r, mr := setupTestRedis(t)

	require.NoError(t, r.Acquire(ctx, "prod-1", "draft-a"))
	mr.FastForward(2 * time.Minute)

	assert.NoError(t, r.Acquire(ctx, "prod-1", "draft-b"))
}

func TestRedis_ReleaseOnlyByOwner(t *testing.T) {
	ctx := context.Background()
	r, mr := setupTestRedis(t)

	require.NoError(t, r.Acquire(ctx, "prod-1", "draft-a"))

	require.NoError(t, r.Release(ctx, "prod-1", "draft-b"))
	assert.True(t, mr.Exists("media:lease:prod-1"))

	require.NoError(t, r.Release(ctx, "prod-1", "draft-a"))
	assert.False(t, mr.Exists("media:lease:prod-1"))

	// Releasing a lease nobody holds is not an error.
	assert.NoError(t, r.Release(ctx, "prod-1", "draft-a"))
}

func TestRedis_Ping(t *testing.T) {
	r, mr := setupTestRedis(t)
	require.NoError(t, r.Ping(context.Background()))

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))
}
