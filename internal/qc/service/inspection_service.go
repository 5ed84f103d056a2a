package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
)

// InspectionService 检验提交事务
// 批量提交路径：条目结果、清单状态、缺陷生成、任务状态四类写入
// 必须在同一事务内全部成功或全部回滚
type InspectionService struct {
	db           *gorm.DB
	repos        *repository.Repositories
	task         *TaskService
	notification *NotificationService
	clock        Clock
	logger       *zap.Logger
}

// NewInspectionService 创建检验服务
func NewInspectionService(db *gorm.DB, repos *repository.Repositories, task *TaskService, notification *NotificationService, clock Clock, logger *zap.Logger) *InspectionService {
	return &InspectionService{
		db:           db,
		repos:        repos,
		task:         task,
		notification: notification,
		clock:        clock,
		logger:       logger,
	}
}

// SubmittedItem 单条提交的检查项结果
type SubmittedItem struct {
	ItemResultID int64    `json:"item_result_id" binding:"required"`
	Result       string   `json:"result" binding:"required"`
	Notes        string   `json:"notes"`
	PhotoURLs    []string `json:"photo_urls"`
}

// SubmitInspectionRequest 检验提交请求
type SubmitInspectionRequest struct {
	ChecklistID     int64           `json:"checklist_id"`
	TaskID          int64           `json:"task_id" binding:"required"`
	InspectedBy     int64           `json:"inspected_by"`
	Items           []SubmittedItem `json:"items" binding:"required"`
	GeneralComments string          `json:"general_comments"`
	PhotoURLs       []string        `json:"photo_urls"`
	Signature       string          `json:"signature"`
}

// SubmitInspectionResult 检验提交结果
type SubmitInspectionResult struct {
	OverallStatus  string `json:"overall_status"`
	PassedCount    int    `json:"passed_count"`
	FailedCount    int    `json:"failed_count"`
	DefectsCreated int    `json:"defects_created"`
}

// SubmitInspection 提交一次完整检验
// 事务内：写条目结果、更新清单状态、为每个不合格项生成缺陷、
// 有不合格时任务转入rectification_needed；任一步失败整体回滚。
// 提交后：重算任务进度、发送通知、写活动日志，均为尽力而为
func (s *InspectionService) SubmitInspection(ctx context.Context, req SubmitInspectionRequest) (*SubmitInspectionResult, error) {
	if req.ChecklistID <= 0 || req.TaskID <= 0 || req.InspectedBy <= 0 {
		return nil, fmt.Errorf("%w: 清单ID、任务ID和检验人ID必须为正整数", ErrInvalidArgument)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: 检验结果不能为空", ErrInvalidArgument)
	}
	for _, item := range req.Items {
		if item.ItemResultID <= 0 {
			return nil, fmt.Errorf("%w: 检查项ID必须为正整数", ErrInvalidArgument)
		}
		if !entity.IsValidItemResult(item.Result) {
			return nil, fmt.Errorf("%w: 非法检查结果 %q", ErrInvalidArgument, item.Result)
		}
	}

	instance, err := s.repos.Checklist.FindInstanceByID(ctx, req.ChecklistID)
	if err != nil {
		return nil, err
	}
	if instance.TaskID != req.TaskID {
		return nil, fmt.Errorf("%w: 清单不属于该任务", ErrInvalidArgument)
	}
	task, err := s.repos.Task.FindByID(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	passed, failed := 0, 0
	for _, item := range req.Items {
		switch item.Result {
		case entity.ItemResultPass:
			passed++
		case entity.ItemResultFail:
			failed++
		}
	}
	overallStatus := entity.ChecklistStatusCompleted
	if failed > 0 {
		overallStatus = entity.ChecklistStatusFailed
	}

	now := s.clock()
	defectsCreated := 0
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 批量路径不做逐项顺序校验，整批一起接受
		for _, item := range req.Items {
			updates := map[string]interface{}{
				"completed":    true,
				"result":       item.Result,
				"notes":        item.Notes,
				"completed_by": req.InspectedBy,
				"completed_at": now,
			}
			if len(item.PhotoURLs) > 0 {
				updates["photo_urls"] = entity.StringList(item.PhotoURLs)
			}
			result := tx.Model(&entity.ItemResult{}).
				Where("id = ? AND instance_id = ?", item.ItemResultID, req.ChecklistID).
				Updates(updates)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("检查项 %d 不存在或不属于清单 %d", item.ItemResultID, req.ChecklistID)
			}
		}

		var current []entity.ItemResult
		if err := tx.Where("instance_id = ?", req.ChecklistID).Find(&current).Error; err != nil {
			return err
		}
		completed := 0
		for _, it := range current {
			if it.Completed {
				completed++
			}
		}

		instUpdates := map[string]interface{}{
			"status":                overallStatus,
			"completion_percentage": completionPercentage(completed, len(current)),
			"inspected_by":          req.InspectedBy,
			"inspected_at":          now,
			"general_comments":      req.GeneralComments,
			"signature":             req.Signature,
		}
		if len(req.PhotoURLs) > 0 {
			instUpdates["photo_urls"] = entity.StringList(req.PhotoURLs)
		}
		if err := tx.Model(&entity.ChecklistInstance{}).Where("id = ?", req.ChecklistID).Updates(instUpdates).Error; err != nil {
			return err
		}

		for _, item := range req.Items {
			if item.Result != entity.ItemResultFail {
				continue
			}
			var itemText string
			for _, it := range current {
				if it.ID == item.ItemResultID {
					itemText = it.ItemText
					break
				}
			}
			description := fmt.Sprintf("检验不合格项：%s", itemText)
			if item.Notes != "" {
				description += fmt.Sprintf("\n检验备注：%s", item.Notes)
			}
			if req.GeneralComments != "" {
				description += fmt.Sprintf("\n总体意见：%s", req.GeneralComments)
			}
			itemResultID := item.ItemResultID
			defect := &entity.Defect{
				ProjectID:    task.ProjectID,
				TaskID:       req.TaskID,
				ChecklistID:  &req.ChecklistID,
				ItemResultID: &itemResultID,
				Title:        fmt.Sprintf("检验不合格：%s", itemText),
				Description:  description,
				Severity:     entity.SeverityMedium,
				Status:       entity.DefectStatusOpen,
				ReportedBy:   req.InspectedBy,
				AssignedTo:   task.AssigneeID,
				PhotoURLs:    entity.StringList(item.PhotoURLs),
			}
			if err := tx.Create(defect).Error; err != nil {
				return err
			}
			defectsCreated++
		}

		if failed > 0 {
			err := tx.Model(&entity.Task{}).Where("id = ?", req.TaskID).
				Update("status", entity.TaskStatusRectificationNeeded).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		s.logger.Error("检验提交事务回滚",
			zap.Int64("checklist_id", req.ChecklistID),
			zap.Int64("task_id", req.TaskID),
			zap.Error(txErr))
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, txErr)
	}

	s.afterSubmit(ctx, task, instance, req, overallStatus, passed, failed, defectsCreated)

	return &SubmitInspectionResult{
		OverallStatus:  overallStatus,
		PassedCount:    passed,
		FailedCount:    failed,
		DefectsCreated: defectsCreated,
	}, nil
}

// afterSubmit 提交后的尽力而为步骤，互不依赖，失败只记日志
func (s *InspectionService) afterSubmit(ctx context.Context, task *entity.Task, instance *entity.ChecklistInstance, req SubmitInspectionRequest, overallStatus string, passed, failed, defectsCreated int) {
	if _, err := s.task.RecalculateProgress(ctx, req.TaskID); err != nil {
		s.logger.Error("检验提交后重算任务进度失败",
			zap.Int64("task_id", req.TaskID), zap.Error(err))
	}

	noticeType := entity.NotificationInspectionCompleted
	title := "检验已通过"
	content := fmt.Sprintf("任务「%s」检验完成，%d项通过", task.Name, passed)
	priority := entity.PriorityNormal
	if failed > 0 {
		noticeType = entity.NotificationInspectionFailed
		title = "检验不合格"
		content = fmt.Sprintf("任务「%s」检验不合格：%d项通过，%d项不合格，已生成%d条缺陷", task.Name, passed, failed, defectsCreated)
		priority = entity.PriorityHigh
	}
	if task.AssigneeID != nil {
		s.notification.Notify(ctx, &entity.Notification{
			UserID:           *task.AssigneeID,
			Type:             noticeType,
			Title:            title,
			Content:          content,
			Priority:         priority,
			RelatedTaskID:    &task.ID,
			RelatedProjectID: &task.ProjectID,
		})
	}
	if failed > 0 {
		s.notification.NotifyProjectManagers(ctx, task.ProjectID, entity.Notification{
			Type:             noticeType,
			Title:            title,
			Content:          content,
			Priority:         priority,
			RelatedTaskID:    &task.ID,
			RelatedProjectID: &task.ProjectID,
		})
	}

	err := s.repos.ActivityLog.Create(ctx, &entity.ActivityLog{
		UserID:    req.InspectedBy,
		ProjectID: task.ProjectID,
		TaskID:    &task.ID,
		Action:    "inspection_submitted",
		Details:   fmt.Sprintf("清单 %d 检验提交：%s，通过%d项，不合格%d项", instance.ID, overallStatus, passed, failed),
	})
	if err != nil {
		s.logger.Error("写入检验活动日志失败",
			zap.Int64("task_id", task.ID), zap.Error(err))
	}
}
