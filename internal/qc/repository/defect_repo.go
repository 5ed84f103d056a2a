package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
)

// DefectRepository 缺陷仓库
type DefectRepository struct {
	db *gorm.DB
}

// NewDefectRepository 创建缺陷仓库
func NewDefectRepository(db *gorm.DB) *DefectRepository {
	return &DefectRepository{db: db}
}

// Create 创建缺陷
func (r *DefectRepository) Create(ctx context.Context, defect *entity.Defect) error {
	return r.db.WithContext(ctx).Create(defect).Error
}

// FindByID 根据ID查询缺陷
func (r *DefectRepository) FindByID(ctx context.Context, id int64) (*entity.Defect, error) {
	var defect entity.Defect
	err := r.db.WithContext(ctx).First(&defect, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &defect, nil
}

// Update 更新缺陷字段
func (r *DefectRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.Defect{}).Where("id = ?", id).Updates(updates).Error
}

// ListByTask 查询任务下的缺陷列表
func (r *DefectRepository) ListByTask(ctx context.Context, taskID int64) ([]entity.Defect, error) {
	var defects []entity.Defect
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at DESC").
		Find(&defects).Error
	return defects, err
}

// ListByProject 查询项目下的缺陷列表(可按状态过滤)
func (r *DefectRepository) ListByProject(ctx context.Context, projectID int64, status string, offset, limit int) ([]entity.Defect, int64, error) {
	var defects []entity.Defect
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Defect{}).Where("project_id = ?", projectID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&defects).Error
	return defects, total, err
}

// ListOverdueOpen 查询已逾期且未关闭的缺陷
func (r *DefectRepository) ListOverdueOpen(ctx context.Context, now time.Time) ([]entity.Defect, error) {
	var defects []entity.Defect
	err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Where("status IN ?", []string{entity.DefectStatusOpen, entity.DefectStatusInProgress}).
		Find(&defects).Error
	return defects, err
}

// ListApproachingDeadline 查询截止日期临近且未关闭的缺陷
func (r *DefectRepository) ListApproachingDeadline(ctx context.Context, from, to time.Time) ([]entity.Defect, error) {
	var defects []entity.Defect
	err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date >= ? AND due_date <= ?", from, to).
		Where("status IN ?", []string{entity.DefectStatusOpen, entity.DefectStatusInProgress}).
		Find(&defects).Error
	return defects, err
}

// ListHistory 查询缺陷的升级历史(按时间升序)
func (r *DefectRepository) ListHistory(ctx context.Context, defectID int64) ([]entity.EscalationHistory, error) {
	var histories []entity.EscalationHistory
	err := r.db.WithContext(ctx).
		Where("defect_id = ?", defectID).
		Order("escalated_at ASC, id ASC").
		Find(&histories).Error
	return histories, err
}

// CountByProjectAndSeverity 统计项目下各严重级别的未关闭缺陷数
func (r *DefectRepository) CountByProjectAndSeverity(ctx context.Context, projectID int64) (map[string]int64, error) {
	type row struct {
		Severity string
		Count    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&entity.Defect{}).
		Select("severity, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Where("status IN ?", []string{entity.DefectStatusOpen, entity.DefectStatusInProgress}).
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int64, len(rows))
	for _, r := range rows {
		stats[r.Severity] = r.Count
	}
	return stats, nil
}
