package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/qmsops/capa-gin/internal/model"
	"github.com/qmsops/capa-gin/internal/workflow"
	"gorm.io/gorm"
)

// DelegationRepository 工作流委托仓储接口
type DelegationRepository interface {
	Create(ctx context.Context, delegation *model.WorkflowDelegationModel) error
	Save(ctx context.Context, delegation *model.WorkflowDelegationModel) error
	FindByID(ctx context.Context, id string) (*model.WorkflowDelegationModel, error)
	FindByFromUser(ctx context.Context, fromUserID string) ([]*model.WorkflowDelegationModel, error)

	// FindActiveDelegate 实现 workflow.DelegationLookup,供步骤指派解析器使用
	FindActiveDelegate(ctx context.Context, fromUserID, role string, entityType workflow.EntityType, at time.Time) (string, bool, error)
}

// delegationRepository 工作流委托仓储实现
type delegationRepository struct {
	db *gorm.DB
}

// NewDelegationRepository 创建工作流委托仓储
func NewDelegationRepository(db *gorm.DB) DelegationRepository {
	return &delegationRepository{db: db}
}

// Create 创建委托
func (r *delegationRepository) Create(ctx context.Context, delegation *model.WorkflowDelegationModel) error {
	return r.db.WithContext(ctx).Create(delegation).Error
}

// Save 保存委托
func (r *delegationRepository) Save(ctx context.Context, delegation *model.WorkflowDelegationModel) error {
	return r.db.WithContext(ctx).Save(delegation).Error
}

// FindByID 根据 ID 查找委托
func (r *delegationRepository) FindByID(ctx context.Context, id string) (*model.WorkflowDelegationModel, error) {
	var delegation model.WorkflowDelegationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&delegation).Error; err != nil {
		return nil, err
	}
	return &delegation, nil
}

// FindByFromUser 查找用户创建的委托
func (r *delegationRepository) FindByFromUser(ctx context.Context, fromUserID string) ([]*model.WorkflowDelegationModel, error) {
	var delegations []*model.WorkflowDelegationModel
	err := r.db.WithContext(ctx).
		Where("from_user_id = ?", fromUserID).
		Order("created_at DESC").
		Find(&delegations).Error
	return delegations, err
}

// FindActiveDelegate 查找有效委托的目标用户
// 有效 = isActive 且 at 在 [startDate, endDate] 内,角色匹配大小写不敏感,
// 委托可按实体类型限定范围,为空表示对全部实体类型生效
func (r *delegationRepository) FindActiveDelegate(ctx context.Context, fromUserID, role string, entityType workflow.EntityType, at time.Time) (string, bool, error) {
	var delegation model.WorkflowDelegationModel
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND is_active = ?", fromUserID, true).
		Where("LOWER(role) = ?", strings.ToLower(role)).
		Where("start_date <= ? AND end_date >= ?", at, at).
		Where("entity_type = ? OR entity_type = ''", string(entityType)).
		Order("created_at DESC").
		First(&delegation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return delegation.ToUserID, true, nil
}
