package repository

import (
	"context"

	"github.com/qmsops/capa-gin/internal/model"
	"gorm.io/gorm"
)

// InstanceRepository 工作流实例仓储接口
type InstanceRepository interface {
	Create(ctx context.Context, instance *model.WorkflowInstanceModel) error
	Save(ctx context.Context, instance *model.WorkflowInstanceModel) error
	FindByID(ctx context.Context, id string) (*model.WorkflowInstanceModel, error)
	FindByEntity(ctx context.Context, entityType, entityID string) ([]*model.WorkflowInstanceModel, error)
	FindByFilter(ctx context.Context, filter *InstanceFilter) ([]*model.WorkflowInstanceModel, error)
}

// InstanceFilter 实例查询过滤器
type InstanceFilter struct {
	Status               *string
	EntityType           *string
	WorkflowDefinitionID *string
	CreatedBy            *string
}

// instanceRepository 工作流实例仓储实现
type instanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository 创建工作流实例仓储
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &instanceRepository{db: db}
}

// Create 创建实例
func (r *instanceRepository) Create(ctx context.Context, instance *model.WorkflowInstanceModel) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

// Save 保存实例
func (r *instanceRepository) Save(ctx context.Context, instance *model.WorkflowInstanceModel) error {
	return r.db.WithContext(ctx).Save(instance).Error
}

// FindByID 根据 ID 查找实例
func (r *instanceRepository) FindByID(ctx context.Context, id string) (*model.WorkflowInstanceModel, error) {
	var instance model.WorkflowInstanceModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// FindByEntity 查找实体关联的实例
func (r *instanceRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]*model.WorkflowInstanceModel, error) {
	var instances []*model.WorkflowInstanceModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("started_at DESC").
		Find(&instances).Error
	return instances, err
}

// FindByFilter 根据过滤器查找实例
func (r *instanceRepository) FindByFilter(ctx context.Context, filter *InstanceFilter) ([]*model.WorkflowInstanceModel, error) {
	var instances []*model.WorkflowInstanceModel
	query := r.db.WithContext(ctx).Model(&model.WorkflowInstanceModel{})

	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.EntityType != nil {
			query = query.Where("entity_type = ?", *filter.EntityType)
		}
		if filter.WorkflowDefinitionID != nil {
			query = query.Where("workflow_definition_id = ?", *filter.WorkflowDefinitionID)
		}
		if filter.CreatedBy != nil {
			query = query.Where("created_by = ?", *filter.CreatedBy)
		}
	}

	err := query.Order("started_at DESC").Find(&instances).Error
	return instances, err
}
