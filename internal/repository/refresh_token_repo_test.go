package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/domain"
)

// runLedgerContract exercises behaviour both ledger backends must share.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) Ledger) {
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	t.Run("persist then find", func(t *testing.T) {
		l := newLedger(t)

		rec, err := l.Persist(ctx, "u1", "token-a", future)
		require.NoError(t, err)
		assert.Equal(t, HashToken("token-a"), rec.TokenHash)

		got, err := l.FindByTokenAndSubject(ctx, "token-a", "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
		assert.NotEqual(t, "token-a", got.TokenHash)
	})

	t.Run("find scoped to subject", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Persist(ctx, "u1", "token-a", future)
		require.NoError(t, err)

		_, err = l.FindByTokenAndSubject(ctx, "token-a", "u2")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = l.FindByTokenAndSubject(ctx, "token-missing", "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete by token is idempotent", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Persist(ctx, "u1", "token-a", future)
		require.NoError(t, err)

		n, err := l.DeleteByToken(ctx, "token-a")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = l.DeleteByToken(ctx, "token-a")
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		_, err = l.FindByTokenAndSubject(ctx, "token-a", "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete by subject leaves other subjects", func(t *testing.T) {
		l := newLedger(t)
		for i := 0; i < 3; i++ {
			_, err := l.Persist(ctx, "u1", fmt.Sprintf("u1-token-%d", i), future)
			require.NoError(t, err)
		}
		_, err := l.Persist(ctx, "u2", "u2-token", future)
		require.NoError(t, err)

		n, err := l.DeleteBySubject(ctx, "u1")
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		n, err = l.DeleteBySubject(ctx, "u1")
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		_, err = l.FindByTokenAndSubject(ctx, "u2-token", "u2")
		assert.NoError(t, err)
	})

	t.Run("consume is single use", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Persist(ctx, "u1", "token-a", future)
		require.NoError(t, err)

		rec, err := l.Consume(ctx, "token-a", "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", rec.UserID)

		_, err = l.Consume(ctx, "token-a", "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("consume by wrong subject keeps the token", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Persist(ctx, "u1", "token-a", future)
		require.NoError(t, err)

		_, err = l.Consume(ctx, "token-a", "u2")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = l.FindByTokenAndSubject(ctx, "token-a", "u1")
		assert.NoError(t, err)
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Persist(ctx, "u1", "token-race", future)
		require.NoError(t, err)

		const workers = 16
		var (
			wg       sync.WaitGroup
			winners  atomic.Int32
			notFound atomic.Int32
			start    = make(chan struct{})
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := l.Consume(ctx, "token-race", "u1")
				switch {
				case err == nil:
					winners.Add(1)
				case assert.ErrorIs(t, err, domain.ErrNotFound):
					notFound.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.EqualValues(t, 1, winners.Load())
		assert.EqualValues(t, workers-1, notFound.Load())
	})
}

func TestRefreshTokenRepository_Contract(t *testing.T) {
	runLedgerContract(t, func(t *testing.T) Ledger {
		return NewRefreshTokenRepository(newTestDB(t))
	})
}

func TestRefreshTokenRepository_ExpiredRows(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshTokenRepository(newTestDB(t))

	_, err := repo.Persist(ctx, "u1", "old", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = repo.Persist(ctx, "u1", "fresh", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = repo.FindByTokenAndSubject(ctx, "old", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.FindByTokenAndSubject(ctx, "fresh", "u1")
	assert.NoError(t, err)
}

func TestRefreshTokenRepository_ConsumeExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshTokenRepository(newTestDB(t))

	_, err := repo.Persist(ctx, "u1", "old", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = repo.Consume(ctx, "old", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshTokenRepository_StorageFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRefreshTokenRepository(db)
	closeDB(t, db)

	_, err := repo.Persist(ctx, "u1", "token", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = repo.FindByTokenAndSubject(ctx, "token", "u1")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = repo.Consume(ctx, "token", "u1")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = repo.DeleteByToken(ctx, "token")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = repo.DeleteBySubject(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrStorage)
}
