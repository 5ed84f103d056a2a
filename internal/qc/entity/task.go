package entity

import "time"

// Task 施工任务
type Task struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	ProjectID   int64      `json:"project_id" gorm:"not null;index:idx_tasks_project"`
	Name        string     `json:"name" gorm:"size:200;not null"`
	Description string     `json:"description" gorm:"type:text"`
	Status      string     `json:"status" gorm:"size:30;default:pending"` // pending/in_progress/rectification_needed/completed/cancelled
	Priority    string     `json:"priority" gorm:"size:20;default:normal"`
	// Progress 由进度聚合器独占维护，存在清单后其他路径不得写入
	Progress   int        `json:"progress" gorm:"default:0"`
	AssigneeID *int64     `json:"assignee_id" gorm:"index:idx_tasks_assignee"`
	CreatedBy  int64      `json:"created_by"`
	StartDate  *time.Time `json:"start_date"`
	DueDate    *time.Time `json:"due_date"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// 任务状态
const (
	TaskStatusPending             = "pending"
	TaskStatusInProgress          = "in_progress"
	TaskStatusRectificationNeeded = "rectification_needed"
	TaskStatusCompleted           = "completed"
	TaskStatusCancelled           = "cancelled"
)
