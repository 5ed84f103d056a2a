package entity

import "time"

// ActivityLog 操作日志
type ActivityLog struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	UserID    int64  `json:"user_id" gorm:"not null"`
	ProjectID int64  `json:"project_id" gorm:"not null;index:idx_activity_logs_project"`
	TaskID    *int64 `json:"task_id" gorm:"index:idx_activity_logs_task"`

	Action  string `json:"action" gorm:"size:50;not null"` // inspection_completed/defect_escalated/checklist_reset等
	Details string `json:"details" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
