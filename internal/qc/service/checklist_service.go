package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
)

// ChecklistService 检查清单完成引擎
// 负责按序完成检查项、全量重算完成百分比和清单聚合状态
type ChecklistService struct {
	db           *gorm.DB
	repos        *repository.Repositories
	notification *NotificationService
	clock        Clock
	logger       *zap.Logger
}

// NewChecklistService 创建检查清单服务
func NewChecklistService(db *gorm.DB, repos *repository.Repositories, notification *NotificationService, clock Clock, logger *zap.Logger) *ChecklistService {
	return &ChecklistService{
		db:           db,
		repos:        repos,
		notification: notification,
		clock:        clock,
		logger:       logger,
	}
}

// CreateTemplate 创建清单模板
func (s *ChecklistService) CreateTemplate(ctx context.Context, template *entity.ChecklistTemplate) error {
	if template.Name == "" {
		return fmt.Errorf("%w: 模板名称不能为空", ErrInvalidArgument)
	}
	return s.repos.Checklist.CreateTemplate(ctx, template)
}

// GetTemplate 查询清单模板
func (s *ChecklistService) GetTemplate(ctx context.Context, id int64) (*entity.ChecklistTemplate, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: 模板ID必须为正整数", ErrInvalidArgument)
	}
	return s.repos.Checklist.FindTemplateByID(ctx, id)
}

// ListTemplates 查询清单模板列表
func (s *ChecklistService) ListTemplates(ctx context.Context, offset, limit int) ([]entity.ChecklistTemplate, int64, error) {
	return s.repos.Checklist.ListTemplates(ctx, offset, limit)
}

// CreateInstance 基于模板为任务创建清单实例，复制检查项快照
func (s *ChecklistService) CreateInstance(ctx context.Context, taskID, templateID, createdBy int64) (*entity.ChecklistInstance, error) {
	if taskID <= 0 || templateID <= 0 {
		return nil, fmt.Errorf("%w: 任务ID和模板ID必须为正整数", ErrInvalidArgument)
	}

	if _, err := s.repos.Task.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	template, err := s.repos.Checklist.FindTemplateByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	status := entity.ChecklistStatusNotStarted
	if len(template.Items) > 0 {
		status = entity.ChecklistStatusPendingInspection
	}

	instance := &entity.ChecklistInstance{
		TaskID:               taskID,
		TemplateID:           templateID,
		Status:               status,
		CompletionPercentage: 0,
		CreatedBy:            createdBy,
	}
	items := make([]entity.ItemResult, 0, len(template.Items))
	for _, ti := range template.Items {
		items = append(items, entity.ItemResult{
			TemplateItemID: ti.ID,
			ItemText:       ti.ItemText,
			Order:          ti.Order,
		})
	}

	if err := s.repos.Checklist.CreateInstanceWithItems(ctx, instance, items); err != nil {
		return nil, err
	}
	return s.repos.Checklist.FindInstanceByID(ctx, instance.ID)
}

// GetInstance 查询清单实例
func (s *ChecklistService) GetInstance(ctx context.Context, id int64) (*entity.ChecklistInstance, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: 清单ID必须为正整数", ErrInvalidArgument)
	}
	return s.repos.Checklist.FindInstanceByID(ctx, id)
}

// ListByTask 查询任务下的清单实例
func (s *ChecklistService) ListByTask(ctx context.Context, taskID int64) ([]entity.ChecklistInstance, error) {
	if taskID <= 0 {
		return nil, fmt.Errorf("%w: 任务ID必须为正整数", ErrInvalidArgument)
	}
	return s.repos.Checklist.ListInstancesByTask(ctx, taskID)
}

// CompleteItemRequest 完成单个检查项
type CompleteItemRequest struct {
	CompletedBy int64    `json:"completed_by"`
	Result      string   `json:"result" binding:"required"`
	Notes       string   `json:"notes"`
	PhotoURLs   []string `json:"photo_urls"`
}

// CompleteItem 逐项完成路径
// 严格依赖约束：同一实例内所有order更小的检查项必须已完成，
// order相同的检查项互不阻塞。result为fail时清单立即置为failed
func (s *ChecklistService) CompleteItem(ctx context.Context, itemResultID int64, req CompleteItemRequest) error {
	if itemResultID <= 0 || req.CompletedBy <= 0 {
		return fmt.Errorf("%w: 检查项ID和用户ID必须为正整数", ErrInvalidArgument)
	}
	if !entity.IsValidItemResult(req.Result) {
		return fmt.Errorf("%w: 非法检查结果 %q", ErrInvalidArgument, req.Result)
	}

	item, err := s.repos.Checklist.FindItemResultByID(ctx, itemResultID)
	if err != nil {
		return err
	}
	instance, err := s.repos.Checklist.FindInstanceByID(ctx, item.InstanceID)
	if err != nil {
		return err
	}
	if instance.Status == entity.ChecklistStatusCompleted || instance.Status == entity.ChecklistStatusFailed {
		return fmt.Errorf("%w: 清单已是终态 %s，不能再完成检查项", ErrInvalidTransition, instance.Status)
	}
	if item.Completed {
		return fmt.Errorf("%w: 检查项已完成", ErrInvalidTransition)
	}

	items, err := s.repos.Checklist.ListItemsByInstance(ctx, item.InstanceID)
	if err != nil {
		return err
	}
	var unmet []string
	for _, it := range items {
		if it.Order < item.Order && !it.Completed {
			unmet = append(unmet, it.ItemText)
		}
	}
	if len(unmet) > 0 {
		return fmt.Errorf("%w: 前置检查项未完成: %s", ErrDependencyViolation, strings.Join(unmet, "; "))
	}

	now := s.clock()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"completed":    true,
			"result":       req.Result,
			"notes":        req.Notes,
			"completed_by": req.CompletedBy,
			"completed_at": now,
		}
		if len(req.PhotoURLs) > 0 {
			updates["photo_urls"] = entity.StringList(req.PhotoURLs)
		}
		if err := tx.Model(&entity.ItemResult{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			return err
		}

		var current []entity.ItemResult
		if err := tx.Where("instance_id = ?", item.InstanceID).Find(&current).Error; err != nil {
			return err
		}
		completed, failed := 0, false
		for _, it := range current {
			if it.Completed {
				completed++
			}
			if it.Result == entity.ItemResultFail {
				failed = true
			}
		}
		percentage := completionPercentage(completed, len(current))

		status := entity.ChecklistStatusInProgress
		switch {
		case failed:
			status = entity.ChecklistStatusFailed
		case completed == len(current):
			status = entity.ChecklistStatusCompleted
		}

		return tx.Model(&entity.ChecklistInstance{}).Where("id = ?", instance.ID).Updates(map[string]interface{}{
			"status":                status,
			"completion_percentage": percentage,
		}).Error
	})
	if err != nil {
		return err
	}

	if req.Result == entity.ItemResultFail {
		task, terr := s.repos.Task.FindByID(ctx, instance.TaskID)
		if terr != nil {
			s.logger.Error("检查项不合格后查询任务失败",
				zap.Int64("task_id", instance.TaskID), zap.Error(terr))
			return nil
		}
		s.notification.NotifyProjectManagers(ctx, task.ProjectID, entity.Notification{
			Type:             entity.NotificationChecklistFailed,
			Title:            "检查清单不合格",
			Content:          fmt.Sprintf("任务「%s」的检查项「%s」检验不合格", task.Name, item.ItemText),
			Priority:         entity.PriorityHigh,
			RelatedTaskID:    &instance.TaskID,
			RelatedProjectID: &task.ProjectID,
		})
	}
	return nil
}

// ResetInstance 从failed状态恢复清单
// 仅重置不合格的检查项，已通过项保留；历史记录不删除
func (s *ChecklistService) ResetInstance(ctx context.Context, instanceID int64) error {
	if instanceID <= 0 {
		return fmt.Errorf("%w: 清单ID必须为正整数", ErrInvalidArgument)
	}

	instance, err := s.repos.Checklist.FindInstanceByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if instance.Status != entity.ChecklistStatusFailed {
		return fmt.Errorf("%w: 只有failed状态的清单才能重置，当前 %s", ErrInvalidTransition, instance.Status)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&entity.ItemResult{}).
			Where("instance_id = ? AND result = ?", instanceID, entity.ItemResultFail).
			Updates(map[string]interface{}{
				"completed":    false,
				"result":       "",
				"completed_by": nil,
				"completed_at": nil,
			}).Error
		if err != nil {
			return err
		}

		var current []entity.ItemResult
		if err := tx.Where("instance_id = ?", instanceID).Find(&current).Error; err != nil {
			return err
		}
		completed := 0
		for _, it := range current {
			if it.Completed {
				completed++
			}
		}
		status := entity.ChecklistStatusPendingInspection
		if completed > 0 {
			status = entity.ChecklistStatusInProgress
		}

		return tx.Model(&entity.ChecklistInstance{}).Where("id = ?", instanceID).Updates(map[string]interface{}{
			"status":                status,
			"completion_percentage": completionPercentage(completed, len(current)),
		}).Error
	})
}

// completionPercentage 完成百分比，恒等于 round(100*completed/total)
func completionPercentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}
