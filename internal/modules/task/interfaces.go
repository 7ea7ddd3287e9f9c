package task

import (
	"context"

	"taskmanager/internal/domain"
	"taskmanager/internal/repository"
)

// TaskRepositoryInterface scopes every call to the owning user.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, userID, id string) (*domain.Task, error)
	List(ctx context.Context, f repository.TaskFilter) ([]*domain.Task, int64, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, userID, id string) error
}
