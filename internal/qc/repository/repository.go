package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories QC仓库集合
type Repositories struct {
	Project      *ProjectRepository
	Task         *TaskRepository
	Checklist    *ChecklistRepository
	Defect       *DefectRepository
	Notification *NotificationRepository
	ActivityLog  *ActivityLogRepository
}

// NewRepositories 创建QC仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Project:      NewProjectRepository(db),
		Task:         NewTaskRepository(db),
		Checklist:    NewChecklistRepository(db),
		Defect:       NewDefectRepository(db),
		Notification: NewNotificationRepository(db),
		ActivityLog:  NewActivityLogRepository(db),
	}
}
