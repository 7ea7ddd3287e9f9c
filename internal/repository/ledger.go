package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"taskmanager/internal/config"
	"taskmanager/internal/domain"
)

// Ledger is the set of live refresh tokens, whichever backend holds it.
type Ledger interface {
	Persist(ctx context.Context, subjectID, token string, expiresAt time.Time) (*domain.RefreshToken, error)
	FindByTokenAndSubject(ctx context.Context, token, subjectID string) (*domain.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteBySubject(ctx context.Context, subjectID string) (int64, error)
	Consume(ctx context.Context, token, subjectID string) (*domain.RefreshToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

var (
	_ Ledger = (*RefreshTokenRepository)(nil)
	_ Ledger = (*RedisRefreshTokenRepository)(nil)
)

// OpenLedger picks the backend named by cfg. The returned close func
// releases the Redis client; it is a no-op for the SQL backend.
func OpenLedger(ctx context.Context, db *gorm.DB, cfg config.LedgerConfig) (Ledger, func() error, error) {
	switch cfg.Backend {
	case "", config.LedgerSQL:
		return NewRefreshTokenRepository(db), func() error { return nil }, nil
	case config.LedgerRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, domain.NewStorageError("ping redis", err)
		}
		return NewRedisRefreshTokenRepository(client, cfg.RedisPrefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown ledger backend %q", domain.ErrConfiguration, cfg.Backend)
	}
}
