package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskmanager/internal/domain"
)

type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository returns the gorm-backed task store.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

type taskModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:36"`
	UserID      string    `gorm:"column:user_id;size:36;index;not null"`
	Title       string    `gorm:"column:title;size:255;not null"`
	Description string    `gorm:"column:description"`
	Status      string    `gorm:"column:status;size:20;index;not null"`
	CreatedBy   string    `gorm:"column:created_by;size:36"`
	UpdatedBy   string    `gorm:"column:updated_by;size:36"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (taskModel) TableName() string { return "tasks" }

// TaskFilter narrows a task listing. Zero Status means any status.
type TaskFilter struct {
	UserID string
	Status domain.TaskStatus
	Limit  int
	Offset int
}

func toDomainTask(m taskModel) *domain.Task {
	return &domain.Task{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		Status:      domain.TaskStatus(m.Status),
		CreatedBy:   m.CreatedBy,
		UpdatedBy:   m.UpdatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toTaskModel(t *domain.Task) taskModel {
	return taskModel{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedBy:   t.CreatedBy,
		UpdatedBy:   t.UpdatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Create inserts t, assigning an id when empty.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m := toTaskModel(t)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate("create task", err)
	}
	*t = *toDomainTask(m)
	return nil
}

// GetByID returns the task only if it belongs to userID.
func (r *TaskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	var m taskModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error
	if err != nil {
		return nil, translate("get task", err)
	}
	return toDomainTask(m), nil
}

// List returns one page of tasks, newest first, and the total matching count.
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]*domain.Task, int64, error) {
	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&taskModel{}).Where("user_id = ?", f.UserID)
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, translate("count tasks", err)
	}

	var models []taskModel
	q := filtered().Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, 0, translate("list tasks", err)
	}

	out := make([]*domain.Task, 0, len(models))
	for _, m := range models {
		out = append(out, toDomainTask(m))
	}
	return out, total, nil
}

// Update writes the editable fields of a task owned by t.UserID.
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	res := r.db.WithContext(ctx).Model(&taskModel{}).
		Where("id = ? AND user_id = ?", t.ID, t.UserID).
		Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"status":      string(t.Status),
			"updated_by":  t.UpdatedBy,
		})
	if res.Error != nil {
		return translate("update task", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a task owned by userID.
func (r *TaskRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&taskModel{})
	if res.Error != nil {
		return translate("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
