package entity

import "time"

// Notification 站内通知
type Notification struct {
	ID       int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID   int64  `json:"user_id" gorm:"not null;index:idx_notifications_user"`
	Type     string `json:"type" gorm:"size:50;not null"`
	Title    string `json:"title" gorm:"size:300;not null"`
	Content  string `json:"content" gorm:"type:text"`
	Priority string `json:"priority" gorm:"size:20;default:normal"` // low/normal/high/urgent

	RelatedTaskID    *int64 `json:"related_task_id"`
	RelatedProjectID *int64 `json:"related_project_id"`
	RelatedDefectID  *int64 `json:"related_defect_id"`

	IsRead    bool      `json:"is_read" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// 通知类型
const (
	NotificationInspectionCompleted = "inspection_completed"
	NotificationInspectionFailed    = "inspection_failed"
	NotificationChecklistFailed     = "checklist_failed"
	NotificationChecklistReminder   = "checklist_reminder"
	NotificationDefectEscalated     = "defect_escalated"
	NotificationDefectAssigned      = "defect_assigned"
	NotificationDefectResolved      = "defect_resolved"
	NotificationDefectDeadline      = "defect_deadline_approaching"
	NotificationTaskDeadline        = "task_deadline_approaching"
	NotificationTaskOverdue         = "task_overdue"
)

// 通知优先级
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)
