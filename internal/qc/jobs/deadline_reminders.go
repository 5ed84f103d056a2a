package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/qc/service"
)

// 截止日期提醒的提前量
const deadlineWindow = 3 * 24 * time.Hour

// DeadlineReminders 任务与缺陷的截止日期提醒
// 通知按天去重，每日重跑不会重复打扰
func DeadlineReminders(ctx context.Context, repos *repository.Repositories, notification *service.NotificationService, clock service.Clock, logger *zap.Logger) {
	now := clock()

	tasks, err := repos.Task.ListApproachingDeadline(ctx, now, now.Add(deadlineWindow))
	if err != nil {
		logger.Error("查询临近截止任务失败", zap.Error(err))
	} else {
		for i := range tasks {
			remindTaskDeadline(ctx, notification, &tasks[i], now)
		}
	}

	overdue, err := repos.Task.ListOverdue(ctx, now)
	if err != nil {
		logger.Error("查询逾期任务失败", zap.Error(err))
	} else {
		for i := range overdue {
			remindTaskOverdue(ctx, notification, &overdue[i])
		}
	}

	defects, err := repos.Defect.ListApproachingDeadline(ctx, now, now.Add(deadlineWindow))
	if err != nil {
		logger.Error("查询临近截止缺陷失败", zap.Error(err))
	} else {
		for i := range defects {
			remindDefectDeadline(ctx, notification, &defects[i])
		}
	}

	logger.Info("截止日期提醒扫描完成",
		zap.Int("approaching_tasks", len(tasks)),
		zap.Int("overdue_tasks", len(overdue)),
		zap.Int("approaching_defects", len(defects)))
}

func remindTaskDeadline(ctx context.Context, notification *service.NotificationService, task *entity.Task, now time.Time) {
	if task.AssigneeID == nil || task.DueDate == nil {
		return
	}
	days := int(task.DueDate.Sub(now).Hours() / 24)
	notification.Notify(ctx, &entity.Notification{
		UserID:           *task.AssigneeID,
		Type:             entity.NotificationTaskDeadline,
		Title:            "任务即将到期",
		Content:          fmt.Sprintf("任务「%s」将在%d天内到期，请及时完成检验", task.Name, days+1),
		Priority:         entity.PriorityNormal,
		RelatedTaskID:    &task.ID,
		RelatedProjectID: &task.ProjectID,
	})
}

func remindTaskOverdue(ctx context.Context, notification *service.NotificationService, task *entity.Task) {
	n := entity.Notification{
		Type:             entity.NotificationTaskOverdue,
		Title:            "任务已逾期",
		Content:          fmt.Sprintf("任务「%s」已超过截止日期仍未完成", task.Name),
		Priority:         entity.PriorityHigh,
		RelatedTaskID:    &task.ID,
		RelatedProjectID: &task.ProjectID,
	}
	if task.AssigneeID != nil {
		m := n
		m.UserID = *task.AssigneeID
		notification.Notify(ctx, &m)
	}
	notification.NotifyProjectManagers(ctx, task.ProjectID, n)
}

func remindDefectDeadline(ctx context.Context, notification *service.NotificationService, defect *entity.Defect) {
	if defect.AssignedTo == nil {
		return
	}
	notification.Notify(ctx, &entity.Notification{
		UserID:           *defect.AssignedTo,
		Type:             entity.NotificationDefectDeadline,
		Title:            "缺陷整改即将到期",
		Content:          fmt.Sprintf("缺陷「%s」即将到达整改期限，逾期将自动升级严重度", defect.Title),
		Priority:         entity.PriorityHigh,
		RelatedTaskID:    &defect.TaskID,
		RelatedProjectID: &defect.ProjectID,
		RelatedDefectID:  &defect.ID,
	})
}
