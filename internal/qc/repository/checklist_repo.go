package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
)

// ChecklistRepository 检查清单仓库
type ChecklistRepository struct {
	db *gorm.DB
}

// NewChecklistRepository 创建检查清单仓库
func NewChecklistRepository(db *gorm.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// CreateTemplate 创建清单模板(含条目)
func (r *ChecklistRepository) CreateTemplate(ctx context.Context, template *entity.ChecklistTemplate) error {
	return r.db.WithContext(ctx).Create(template).Error
}

// FindTemplateByID 根据ID查询清单模板(含条目)
func (r *ChecklistRepository) FindTemplateByID(ctx context.Context, id int64) (*entity.ChecklistTemplate, error) {
	var template entity.ChecklistTemplate
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_order ASC, id ASC")
		}).
		First(&template, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &template, nil
}

// ListTemplates 查询清单模板列表
func (r *ChecklistRepository) ListTemplates(ctx context.Context, offset, limit int) ([]entity.ChecklistTemplate, int64, error) {
	var templates []entity.ChecklistTemplate
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ChecklistTemplate{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&templates).Error
	return templates, total, err
}

// CreateInstanceWithItems 创建清单实例并复制模板条目快照
func (r *ChecklistRepository) CreateInstanceWithItems(ctx context.Context, instance *entity.ChecklistInstance, items []entity.ItemResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(instance).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].InstanceID = instance.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindInstanceByID 根据ID查询清单实例(含条目结果)
func (r *ChecklistRepository) FindInstanceByID(ctx context.Context, id int64) (*entity.ChecklistInstance, error) {
	var instance entity.ChecklistInstance
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_order ASC, id ASC")
		}).
		First(&instance, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &instance, nil
}

// ListInstancesByTask 查询任务下的清单实例列表
func (r *ChecklistRepository) ListInstancesByTask(ctx context.Context, taskID int64) ([]entity.ChecklistInstance, error) {
	var instances []entity.ChecklistInstance
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&instances).Error
	return instances, err
}

// FindItemResultByID 根据ID查询条目结果
func (r *ChecklistRepository) FindItemResultByID(ctx context.Context, id int64) (*entity.ItemResult, error) {
	var item entity.ItemResult
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ListItemsByInstance 查询清单实例下的条目结果(按顺序)
func (r *ChecklistRepository) ListItemsByInstance(ctx context.Context, instanceID int64) ([]entity.ItemResult, error) {
	var items []entity.ItemResult
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("item_order ASC, id ASC").
		Find(&items).Error
	return items, err
}
