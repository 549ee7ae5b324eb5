package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/qmsops/capa-gin/internal/auth"
	"github.com/qmsops/capa-gin/internal/model"
	"gorm.io/gorm"
)

// AssignmentRepository 步骤指派仓储接口
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *model.StepAssignmentModel) error
	Save(ctx context.Context, assignment *model.StepAssignmentModel) error
	FindByID(ctx context.Context, id string) (*model.StepAssignmentModel, error)
	// FindPendingByInstance 查找实例的待处理指派,无待处理指派时返回 (nil, nil)
	FindPendingByInstance(ctx context.Context, instanceID string) (*model.StepAssignmentModel, error)
	FindByInstance(ctx context.Context, instanceID string) ([]*model.StepAssignmentModel, error)
	// FindPendingFor 查找指派给用户本人或其任一角色(大小写不敏感)的待处理指派
	FindPendingFor(ctx context.Context, userID string, roles []string) ([]*model.StepAssignmentModel, error)
	FindOverdue(ctx context.Context, now time.Time) ([]*model.StepAssignmentModel, error)
	CountPendingByUser(ctx context.Context, userID string) (int64, error)

	// PendingAssignee 实现 auth.AssignmentSource,供权限检查器的工作流上下文层使用
	PendingAssignee(ctx context.Context, instanceID string) (*auth.StepAssignee, error)
}

// assignmentRepository 步骤指派仓储实现
type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建步骤指派仓储
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// Create 创建指派
func (r *assignmentRepository) Create(ctx context.Context, assignment *model.StepAssignmentModel) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// Save 保存指派
func (r *assignmentRepository) Save(ctx context.Context, assignment *model.StepAssignmentModel) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

// FindByID 根据 ID 查找指派
func (r *assignmentRepository) FindByID(ctx context.Context, id string) (*model.StepAssignmentModel, error) {
	var assignment model.StepAssignmentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindPendingByInstance 查找实例的待处理指派
func (r *assignmentRepository) FindPendingByInstance(ctx context.Context, instanceID string) (*model.StepAssignmentModel, error) {
	var assignment model.StepAssignmentModel
	err := r.db.WithContext(ctx).
		Where("workflow_instance_id = ? AND status = ?", instanceID, model.AssignmentStatusPending).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// FindByInstance 查找实例的全部指派
func (r *assignmentRepository) FindByInstance(ctx context.Context, instanceID string) ([]*model.StepAssignmentModel, error) {
	var assignments []*model.StepAssignmentModel
	err := r.db.WithContext(ctx).
		Where("workflow_instance_id = ?", instanceID).
		Order("created_at ASC").
		Find(&assignments).Error
	return assignments, err
}

// FindPendingFor 查找用户可处理的待处理指派
func (r *assignmentRepository) FindPendingFor(ctx context.Context, userID string, roles []string) ([]*model.StepAssignmentModel, error) {
	lowered := make([]string, 0, len(roles))
	for _, role := range roles {
		lowered = append(lowered, strings.ToLower(role))
	}

	var assignments []*model.StepAssignmentModel
	query := r.db.WithContext(ctx).Where("status = ?", model.AssignmentStatusPending)
	if len(lowered) > 0 {
		query = query.Where("assigned_user_id = ? OR LOWER(assigned_role) IN ?", userID, lowered)
	} else {
		query = query.Where("assigned_user_id = ?", userID)
	}

	err := query.Order("created_at ASC").Find(&assignments).Error
	return assignments, err
}

// FindOverdue 查找已超期的待处理指派
func (r *assignmentRepository) FindOverdue(ctx context.Context, now time.Time) ([]*model.StepAssignmentModel, error) {
	var assignments []*model.StepAssignmentModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ?", model.AssignmentStatusPending, now).
		Order("deadline ASC").
		Find(&assignments).Error
	return assignments, err
}

// CountPendingByUser 统计用户的待处理指派数,供负载选人使用
func (r *assignmentRepository) CountPendingByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.StepAssignmentModel{}).
		Where("assigned_user_id = ? AND status = ?", userID, model.AssignmentStatusPending).
		Count(&count).Error
	return count, err
}

// PendingAssignee 查找实例当前待处理指派的处理方
func (r *assignmentRepository) PendingAssignee(ctx context.Context, instanceID string) (*auth.StepAssignee, error) {
	assignment, err := r.FindPendingByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, nil
	}
	return &auth.StepAssignee{
		AssignedUserID: assignment.AssignedUserID,
		AssignedRole:   assignment.AssignedRole,
	}, nil
}
