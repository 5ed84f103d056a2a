package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
)

// ProjectRepository 项目仓库
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建项目仓库
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindByID 根据ID查询项目
func (r *ProjectRepository) FindByID(ctx context.Context, id int64) (*entity.Project, error) {
	var project entity.Project
	err := r.db.WithContext(ctx).First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// FindManagerIDs 查询项目经理的用户ID列表
func (r *ProjectRepository) FindManagerIDs(ctx context.Context, projectID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&entity.ProjectMember{}).
		Where("project_id = ? AND role = ?", projectID, entity.RoleProjectManager).
		Pluck("user_id", &ids).Error
	return ids, err
}
