package entity

import "time"

// User 用户
type User struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:200;uniqueIndex"`
	Role      string    `json:"role" gorm:"size:30;default:worker"` // worker/qc_inspector/project_manager/admin
	Status    string    `json:"status" gorm:"size:20;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// 用户角色
const (
	RoleWorker         = "worker"
	RoleQCInspector    = "qc_inspector"
	RoleProjectManager = "project_manager"
	RoleAdmin          = "admin"
)

// Project 工程项目
type Project struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Code        string    `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"size:20;default:in_progress"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectMember 项目成员
type ProjectMember struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ProjectID int64     `json:"project_id" gorm:"not null;index:idx_project_members_project"`
	UserID    int64     `json:"user_id" gorm:"not null;index:idx_project_members_user"`
	Role      string    `json:"role" gorm:"size:30;not null"` // worker/qc_inspector/project_manager
	CreatedAt time.Time `json:"created_at"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}
