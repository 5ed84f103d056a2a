package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
)

// TaskRepository 任务仓库
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓库
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID 根据ID查询任务
func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*entity.Task, error) {
	var task entity.Task
	err := r.db.WithContext(ctx).First(&task, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// Update 更新任务字段
func (r *TaskRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.Task{}).Where("id = ?", id).Updates(updates).Error
}

// ListApproachingDeadline 查询截止日期临近且未完成的任务
func (r *TaskRepository) ListApproachingDeadline(ctx context.Context, from, to time.Time) ([]entity.Task, error) {
	var tasks []entity.Task
	err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date >= ? AND due_date <= ?", from, to).
		Where("status NOT IN ?", []string{entity.TaskStatusCompleted, entity.TaskStatusCancelled}).
		Find(&tasks).Error
	return tasks, err
}

// ListOverdue 查询已逾期且未完成的任务
func (r *TaskRepository) ListOverdue(ctx context.Context, now time.Time) ([]entity.Task, error) {
	var tasks []entity.Task
	err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Where("status NOT IN ?", []string{entity.TaskStatusCompleted, entity.TaskStatusCancelled}).
		Find(&tasks).Error
	return tasks, err
}
