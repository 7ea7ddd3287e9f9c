package auth

import (
	"context"
	"time"

	"taskmanager/internal/domain"
	"taskmanager/internal/events"
	jwtsvc "taskmanager/internal/pkg/jwt"
)

// UserRepositoryInterface lists only the methods the auth service uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	SetLoggedIn(ctx context.Context, id string, loggedIn bool) error
}

// RefreshTokenLedger is the set of live refresh tokens. Implemented by the SQL
// and Redis repositories.
type RefreshTokenLedger interface {
	Persist(ctx context.Context, subjectID, token string, expiresAt time.Time) (*domain.RefreshToken, error)
	FindByTokenAndSubject(ctx context.Context, token, subjectID string) (*domain.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteBySubject(ctx context.Context, subjectID string) (int64, error)
	Consume(ctx context.Context, token, subjectID string) (*domain.RefreshToken, error)
}

type TokenCodec interface {
	MintAccess(subjectID, bindingFact string) (string, error)
	MintRefresh(subjectID, bindingFact string) (string, error)
	VerifyRefresh(token string) (*jwtsvc.Identity, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}
