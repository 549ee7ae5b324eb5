package repository

import (
	"context"

	"github.com/qmsops/capa-gin/internal/model"
	"gorm.io/gorm"
)

// DefinitionRepository 工作流定义仓储接口
type DefinitionRepository interface {
	Save(ctx context.Context, def *model.WorkflowDefinitionModel) error
	FindByID(ctx context.Context, id string) (*model.WorkflowDefinitionModel, error)
	FindByFilter(ctx context.Context, filter *DefinitionFilter) ([]*model.WorkflowDefinitionModel, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// DefinitionFilter 定义查询过滤器
type DefinitionFilter struct {
	EntityType *string
	IsActive   *bool
}

// definitionRepository 工作流定义仓储实现
type definitionRepository struct {
	db *gorm.DB
}

// NewDefinitionRepository 创建工作流定义仓储
func NewDefinitionRepository(db *gorm.DB) DefinitionRepository {
	return &definitionRepository{db: db}
}

// Save 保存定义
func (r *definitionRepository) Save(ctx context.Context, def *model.WorkflowDefinitionModel) error {
	return r.db.WithContext(ctx).Save(def).Error
}

// FindByID 根据 ID 查找定义
func (r *definitionRepository) FindByID(ctx context.Context, id string) (*model.WorkflowDefinitionModel, error) {
	var def model.WorkflowDefinitionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

// FindByFilter 根据过滤器查找定义
func (r *definitionRepository) FindByFilter(ctx context.Context, filter *DefinitionFilter) ([]*model.WorkflowDefinitionModel, error) {
	var defs []*model.WorkflowDefinitionModel
	query := r.db.WithContext(ctx).Model(&model.WorkflowDefinitionModel{})

	if filter != nil {
		if filter.EntityType != nil {
			query = query.Where("entity_type = ?", *filter.EntityType)
		}
		if filter.IsActive != nil {
			query = query.Where("is_active = ?", *filter.IsActive)
		}
	}

	err := query.Order("created_at DESC").Find(&defs).Error
	return defs, err
}

// SetActive 启用或停用定义
func (r *definitionRepository) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).Model(&model.WorkflowDefinitionModel{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
