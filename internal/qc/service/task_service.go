package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
)

// TaskService 任务进度聚合器
// 一旦任务挂有清单，progress字段只由RecalculateProgress写入
type TaskService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewTaskService 创建任务服务
func NewTaskService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *TaskService {
	return &TaskService{db: db, repos: repos, logger: logger}
}

// GetByID 查询任务
func (s *TaskService) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: 任务ID必须为正整数", ErrInvalidArgument)
	}
	return s.repos.Task.FindByID(ctx, id)
}

// RecalculateProgress 从清单完成比全量重算任务进度
// 无清单时进度为0；进度100时任务状态同步置为completed。幂等
func (s *TaskService) RecalculateProgress(ctx context.Context, taskID int64) (int, error) {
	if taskID <= 0 {
		return 0, fmt.Errorf("%w: 任务ID必须为正整数", ErrInvalidArgument)
	}

	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return 0, err
	}

	instances, err := s.repos.Checklist.ListInstancesByTask(ctx, taskID)
	if err != nil {
		return 0, err
	}

	progress := 0
	if len(instances) > 0 {
		completed := 0
		for _, inst := range instances {
			if inst.Status == entity.ChecklistStatusCompleted {
				completed++
			}
		}
		progress = completionPercentage(completed, len(instances))
	}

	updates := map[string]interface{}{"progress": progress}
	if progress == 100 && task.Status != entity.TaskStatusCancelled {
		updates["status"] = entity.TaskStatusCompleted
	}
	if err := s.repos.Task.Update(ctx, taskID, updates); err != nil {
		return 0, err
	}

	s.logger.Debug("任务进度已重算",
		zap.Int64("task_id", taskID),
		zap.Int("progress", progress))
	return progress, nil
}
