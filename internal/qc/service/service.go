package service

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/shared/webhook"
)

// Clock 返回当前时间,测试中可替换
type Clock func() time.Time

// Services QC服务集合
type Services struct {
	Checklist    *ChecklistService
	Inspection   *InspectionService
	Task         *TaskService
	Defect       *DefectService
	Notification *NotificationService
}

// NewServices 创建QC服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, wh *webhook.Client, logger *zap.Logger) *Services {
	clock := Clock(time.Now)
	notification := NewNotificationService(repos, rdb, wh, clock, logger)
	task := NewTaskService(db, repos, logger)
	defect := NewDefectService(db, repos, notification, clock, logger)
	checklist := NewChecklistService(db, repos, notification, clock, logger)
	inspection := NewInspectionService(db, repos, task, notification, clock, logger)
	return &Services{
		Checklist:    checklist,
		Inspection:   inspection,
		Task:         task,
		Defect:       defect,
		Notification: notification,
	}
}
