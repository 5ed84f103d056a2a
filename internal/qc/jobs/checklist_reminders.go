package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/qc/service"
)

// ChecklistReminders 提醒任务临近截止但清单仍未检验完成的负责人
func ChecklistReminders(ctx context.Context, repos *repository.Repositories, notification *service.NotificationService, clock service.Clock, logger *zap.Logger) {
	now := clock()

	tasks, err := repos.Task.ListApproachingDeadline(ctx, now, now.Add(deadlineWindow))
	if err != nil {
		logger.Error("查询临近截止任务失败", zap.Error(err))
		return
	}

	reminded := 0
	for i := range tasks {
		task := &tasks[i]
		if task.AssigneeID == nil {
			continue
		}
		instances, err := repos.Checklist.ListInstancesByTask(ctx, task.ID)
		if err != nil {
			logger.Error("查询任务清单失败",
				zap.Int64("task_id", task.ID), zap.Error(err))
			continue
		}
		pending := 0
		for _, inst := range instances {
			switch inst.Status {
			case entity.ChecklistStatusNotStarted,
				entity.ChecklistStatusPendingInspection,
				entity.ChecklistStatusInProgress:
				pending++
			}
		}
		if pending == 0 {
			continue
		}
		notification.Notify(ctx, &entity.Notification{
			UserID:           *task.AssigneeID,
			Type:             entity.NotificationChecklistReminder,
			Title:            "检查清单待完成",
			Content:          fmt.Sprintf("任务「%s」即将到期，还有%d个检查清单未完成检验", task.Name, pending),
			Priority:         entity.PriorityNormal,
			RelatedTaskID:    &task.ID,
			RelatedProjectID: &task.ProjectID,
		})
		reminded++
	}

	if reminded > 0 {
		logger.Info("清单提醒扫描完成", zap.Int("reminded", reminded))
	}
}
