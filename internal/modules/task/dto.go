package task

import "taskmanager/internal/domain"

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Status      string `json:"status" validate:"omitempty,oneof=Todo InProgress Completed"`
}

// UpdateTaskRequest is partial; nil fields are left as they are.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Status      *string `json:"status" validate:"omitempty,oneof=Todo InProgress Completed"`
}

type ListTasksQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=Todo InProgress Completed"`
	Page   int    `form:"page" validate:"omitempty,min=1"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

type TaskListResponse struct {
	Tasks      []*domain.Task `json:"tasks"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}
