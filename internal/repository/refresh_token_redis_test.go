package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/domain"
)

func TestRedisRefreshTokenRepository_Contract(t *testing.T) {
	runLedgerContract(t, func(t *testing.T) Ledger {
		_, client := newTestRedis(t)
		return NewRedisRefreshTokenRepository(client, "test")
	})
}

func TestRedisRefreshTokenRepository_KeyLayout(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	repo := NewRedisRefreshTokenRepository(client, "tm")

	_, err := repo.Persist(ctx, "u1", "token-a", time.Now().Add(time.Hour))
	require.NoError(t, err)

	hash := HashToken("token-a")
	assert.True(t, mr.Exists("tm:rt:"+hash))
	assert.Equal(t, "u1", mr.HGet("tm:rt:"+hash, "user_id"))

	members, err := mr.Members("tm:rt:user:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{hash}, members)

	ttl := mr.TTL("tm:rt:" + hash)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedisRefreshTokenRepository_RejectsPastExpiry(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewRedisRefreshTokenRepository(client, "")

	_, err := repo.Persist(context.Background(), "u1", "token", time.Now().Add(-time.Second))
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestRedisRefreshTokenRepository_ExpiryAndCleanup(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	repo := NewRedisRefreshTokenRepository(client, "tm")

	_, err := repo.Persist(ctx, "u1", "short", time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = repo.Persist(ctx, "u1", "long", time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = repo.FindByTokenAndSubject(ctx, "short", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Consume(ctx, "short", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	members, err := mr.Members("tm:rt:user:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{HashToken("long")}, members)
}

func TestRedisRefreshTokenRepository_ConsumeRemovesIndexEntry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	repo := NewRedisRefreshTokenRepository(client, "tm")

	_, err := repo.Persist(ctx, "u1", "a", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Persist(ctx, "u1", "b", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = repo.Consume(ctx, "a", "u1")
	require.NoError(t, err)

	members, err := mr.Members("tm:rt:user:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{HashToken("b")}, members)
}

func TestRedisRefreshTokenRepository_Unavailable(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	repo := NewRedisRefreshTokenRepository(client, "tm")
	mr.Close()

	_, err := repo.Persist(ctx, "u1", "token", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = repo.Consume(ctx, "token", "u1")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = repo.FindByTokenAndSubject(ctx, "token", "u1")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestRedisRefreshTokenRepository_DeleteBySubjectClearsIndex(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	repo := NewRedisRefreshTokenRepository(client, "tm")

	_, err := repo.Persist(ctx, "u1", "short", time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = repo.Persist(ctx, "u1", "long", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Persist(ctx, "u2", "other", time.Now().Add(time.Hour))
	require.NoError(t, err)

	// the expired record is still indexed but no longer counts
	mr.FastForward(2 * time.Minute)

	n, err := repo.DeleteBySubject(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.False(t, mr.Exists("tm:rt:user:u1"))
	assert.False(t, mr.Exists("tm:rt:"+HashToken("long")))

	// a token persisted afterwards is indexed again and removable
	_, err = repo.Persist(ctx, "u1", "after", time.Now().Add(time.Hour))
	require.NoError(t, err)
	n, err = repo.DeleteBySubject(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.FindByTokenAndSubject(ctx, "other", "u2")
	assert.NoError(t, err)
}

func TestRedisRefreshTokenRepository_DeleteBySubjectUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRedisRefreshTokenRepository(client, "tm")
	mr.Close()

	_, err := repo.DeleteBySubject(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrStorage)
}
