package entity

import "time"

// ChecklistTemplate 检查清单模板
// 一旦被实例引用即视为冻结，只能基于它继续创建新实例
type ChecklistTemplate struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	Category  string    `json:"category" gorm:"size:50"`
	Stage     string    `json:"stage" gorm:"size:30"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []TemplateItem `json:"items,omitempty" gorm:"foreignKey:TemplateID"`
}

func (ChecklistTemplate) TableName() string {
	return "checklist_templates"
}

// TemplateItem 模板检查项
type TemplateItem struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TemplateID int64     `json:"template_id" gorm:"not null;index:idx_template_items_template"`
	ItemText   string    `json:"item_text" gorm:"size:500;not null"`
	Order      int       `json:"order" gorm:"column:item_order;not null;default:0"`
	Required   bool      `json:"required" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`
}

func (TemplateItem) TableName() string {
	return "checklist_template_items"
}

// ChecklistInstance 任务检查清单实例
// 创建时从模板复制检查项快照，之后与模板脱钩
type ChecklistInstance struct {
	ID         int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskID     int64 `json:"task_id" gorm:"not null;index:idx_checklist_instances_task"`
	TemplateID int64 `json:"template_id" gorm:"not null"`

	Status string `json:"status" gorm:"size:30;default:not_started"` // not_started/pending_inspection/in_progress/completed/failed
	// CompletionPercentage 恒等于 round(100*completed/total)，每次状态变化全量重算
	CompletionPercentage int `json:"completion_percentage" gorm:"default:0"`

	InspectedBy     *int64     `json:"inspected_by"`
	InspectedAt     *time.Time `json:"inspected_at"`
	GeneralComments string     `json:"general_comments" gorm:"type:text"`
	PhotoURLs       StringList `json:"photo_urls" gorm:"type:jsonb"`
	Signature       string     `json:"signature" gorm:"type:text"` // Base64签名图

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []ItemResult `json:"items,omitempty" gorm:"foreignKey:InstanceID"`
}

func (ChecklistInstance) TableName() string {
	return "checklist_instances"
}

// 清单状态
const (
	ChecklistStatusNotStarted        = "not_started"
	ChecklistStatusPendingInspection = "pending_inspection"
	ChecklistStatusInProgress        = "in_progress"
	ChecklistStatusCompleted         = "completed"
	ChecklistStatusFailed            = "failed"
)

// ItemResult 检查项结果
// 只通过完成/提交操作修改，重置时保留历史，不做物理删除
type ItemResult struct {
	ID             int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	InstanceID     int64  `json:"instance_id" gorm:"not null;index:idx_item_results_instance"`
	TemplateItemID int64  `json:"template_item_id" gorm:"not null"`
	ItemText       string `json:"item_text" gorm:"size:500"`
	Order          int    `json:"order" gorm:"column:item_order;not null;default:0"`

	Completed bool       `json:"completed" gorm:"default:false"`
	Result    string     `json:"result" gorm:"size:10"` // pass/fail/na
	Notes     string     `json:"notes" gorm:"type:text"`
	PhotoURLs StringList `json:"photo_urls" gorm:"type:jsonb"`

	CompletedBy *int64     `json:"completed_by"`
	CompletedAt *time.Time `json:"completed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ItemResult) TableName() string {
	return "checklist_item_results"
}

// 检查结果
const (
	ItemResultPass = "pass"
	ItemResultFail = "fail"
	ItemResultNA   = "na"
)

// IsValidItemResult 校验检查结果枚举
func IsValidItemResult(r string) bool {
	switch r {
	case ItemResultPass, ItemResultFail, ItemResultNA:
		return true
	}
	return false
}
