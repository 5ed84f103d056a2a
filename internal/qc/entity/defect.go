package entity

import "time"

// Defect 质量缺陷
// severity/escalation_level 只能通过升级操作修改，保证严格单调
type Defect struct {
	ID           int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	ProjectID    int64  `json:"project_id" gorm:"not null;index:idx_defects_project"`
	TaskID       int64  `json:"task_id" gorm:"not null;index:idx_defects_task"`
	ChecklistID  *int64 `json:"checklist_id"`
	ItemResultID *int64 `json:"item_result_id"`

	Title       string `json:"title" gorm:"size:300;not null"`
	Description string `json:"description" gorm:"type:text"`

	Severity        string `json:"severity" gorm:"size:20;default:medium"` // low/medium/high/critical
	Status          string `json:"status" gorm:"size:20;default:open"`     // open/in_progress/resolved/closed
	EscalationLevel int    `json:"escalation_level" gorm:"default:0"`

	ReportedBy int64      `json:"reported_by"`
	AssignedTo *int64     `json:"assigned_to" gorm:"index:idx_defects_assignee"`
	DueDate    *time.Time `json:"due_date"`
	PhotoURLs  StringList `json:"photo_urls" gorm:"type:jsonb"`

	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Defect) TableName() string {
	return "defects"
}

// 缺陷状态
const (
	DefectStatusOpen       = "open"
	DefectStatusInProgress = "in_progress"
	DefectStatusResolved   = "resolved"
	DefectStatusClosed     = "closed"
)

// 缺陷严重度阶梯 low < medium < high < critical
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// SeverityRank 返回严重度在阶梯上的序号，未知返回0
func SeverityRank(s string) int {
	return severityRank[s]
}

// IsValidSeverity 校验严重度枚举
func IsValidSeverity(s string) bool {
	return severityRank[s] > 0
}

// NextSeverity 返回阶梯上的下一级，critical没有上一级时ok=false
func NextSeverity(s string) (string, bool) {
	switch s {
	case SeverityLow:
		return SeverityMedium, true
	case SeverityMedium:
		return SeverityHigh, true
	case SeverityHigh:
		return SeverityCritical, true
	}
	return "", false
}

// EscalationHistory 升级历史，只追加不修改
type EscalationHistory struct {
	ID        int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	DefectID  int64 `json:"defect_id" gorm:"not null;index:idx_escalation_histories_defect"`
	ProjectID int64 `json:"project_id" gorm:"index:idx_escalation_histories_project"`

	FromSeverity string `json:"from_severity" gorm:"size:20;not null"`
	ToSeverity   string `json:"to_severity" gorm:"size:20;not null"`
	Reason       string `json:"reason" gorm:"type:text"`

	EscalatedBy int64     `json:"escalated_by"`
	EscalatedAt time.Time `json:"escalated_at"`
}

func (EscalationHistory) TableName() string {
	return "escalation_histories"
}
