package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"taskmanager/internal/domain"
	"taskmanager/internal/repository"
)

type Service struct {
	tasks TaskRepositoryInterface
	log   *slog.Logger
}

func NewService(tasks TaskRepositoryInterface, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: tasks, log: logger}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateTaskRequest) (*domain.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	status := domain.TaskTodo
	if req.Status != "" {
		status = domain.TaskStatus(req.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
		}
	}

	t := &domain.Task{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		CreatedBy:   userID,
		UpdatedBy:   userID,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "task created", "user_id", userID, "task_id", t.ID)
	return t, nil
}

// List pages through the caller's tasks, newest first.
func (s *Service) List(ctx context.Context, userID string, q ListTasksQuery) (*TaskListResponse, error) {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if page-1 > math.MaxInt/limit {
		return nil, fmt.Errorf("%w: page %d is out of range", ErrValidation, page)
	}

	status := domain.TaskStatus(q.Status)
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, q.Status)
	}

	tasks, total, err := s.tasks.List(ctx, repository.TaskFilter{
		UserID: userID,
		Status: status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}

	return &TaskListResponse{
		Tasks:      tasks,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, req UpdateTaskRequest) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrValidation)
		}
		t.Title = title
	}
	if req.Description != nil {
		t.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *req.Status)
		}
		t.Status = status
	}
	t.UpdatedBy = userID

	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, notFound(err)
	}
	return s.Get(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.tasks.Delete(ctx, userID, id); err != nil {
		return notFound(err)
	}
	s.log.InfoContext(ctx, "task deleted", "user_id", userID, "task_id", id)
	return nil
}

// notFound folds a missing or foreign row into ErrTaskNotFound.
func notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}
