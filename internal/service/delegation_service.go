package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qmsops/capa-gin/internal/auth"
	"github.com/qmsops/capa-gin/internal/model"
	"github.com/qmsops/capa-gin/internal/repository"
	"github.com/qmsops/capa-gin/internal/workflow"
)

// DelegationService 工作流委托服务接口
type DelegationService interface {
	Create(ctx context.Context, req *CreateDelegationRequest) (*model.WorkflowDelegationModel, error)
	Update(ctx context.Context, id string, req *UpdateDelegationRequest) error
	Deactivate(ctx context.Context, id string) error
	ListMine(ctx context.Context) ([]*model.WorkflowDelegationModel, error)
}

// CreateDelegationRequest 创建委托请求
// @Description 创建有时限权限委托的请求参数
type CreateDelegationRequest struct {
	ToUserID   string    `json:"to_user_id" example:"user-002" binding:"required"` // 受托人 ID
	Role       string    `json:"role" example:"manager" binding:"required"`        // 委托的角色
	EntityType string    `json:"entity_type" example:"audit"`                      // 可选的实体类型范围
	StartDate  time.Time `json:"start_date" binding:"required"`                    // 生效时间
	EndDate    time.Time `json:"end_date" binding:"required"`                      // 失效时间
	Reason     string    `json:"reason" example:"年假"`                              // 委托原因
}

// UpdateDelegationRequest 更新委托请求
// @Description 更新委托的请求参数,仅提供的字段会被更新
type UpdateDelegationRequest struct {
	ToUserID  *string    `json:"to_user_id,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Reason    *string    `json:"reason,omitempty"`
}

// delegationService 工作流委托服务实现
type delegationService struct {
	delegations repository.DelegationRepository
	users       repository.UserRepository
	checker     *auth.Checker
	now         func() time.Time
}

// NewDelegationService 创建工作流委托服务
func NewDelegationService(delegations repository.DelegationRepository, users repository.UserRepository, checker *auth.Checker) DelegationService {
	return &delegationService{
		delegations: delegations,
		users:       users,
		checker:     checker,
		now:         time.Now,
	}
}

// Create 创建委托
// 要求 startDate < endDate 且受托人存在
func (s *delegationService) Create(ctx context.Context, req *CreateDelegationRequest) (*model.WorkflowDelegationModel, error) {
	user := auth.IdentityFromContext(ctx)
	if err := s.authorize(ctx, user, "delegate", nil); err != nil {
		return nil, err
	}

	if !req.StartDate.Before(req.EndDate) {
		return nil, workflow.ErrValidation("delegation start date must be before end date")
	}
	if req.EntityType != "" && !workflow.EntityType(req.EntityType).Valid() {
		return nil, workflow.ErrValidation("unknown entity type: %s", req.EntityType)
	}
	if req.ToUserID == user.ID {
		return nil, workflow.ErrValidation("cannot delegate to yourself")
	}

	exists, err := s.users.Exists(ctx, req.ToUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check delegate user: %w", err)
	}
	if !exists {
		return nil, workflow.ErrNotFound("user", req.ToUserID)
	}

	now := s.now()
	delegation := &model.WorkflowDelegationModel{
		ID:         uuid.New().String(),
		FromUserID: user.ID,
		ToUserID:   req.ToUserID,
		Role:       req.Role,
		EntityType: req.EntityType,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Reason:     req.Reason,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := delegation.Validate(); err != nil {
		return nil, workflow.ErrValidation("%s", err.Error())
	}

	if err := s.delegations.Create(ctx, delegation); err != nil {
		return nil, fmt.Errorf("failed to create delegation: %w", err)
	}
	return delegation, nil
}

// Update 更新委托
// 仅委托创建人或管理员可更新
func (s *delegationService) Update(ctx context.Context, id string, req *UpdateDelegationRequest) error {
	user := auth.IdentityFromContext(ctx)

	delegation, err := s.delegations.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "delegation", id)
	}
	if err := s.requireOwnerOrAdmin(user, delegation); err != nil {
		return err
	}

	if req.ToUserID != nil {
		exists, err := s.users.Exists(ctx, *req.ToUserID)
		if err != nil {
			return fmt.Errorf("failed to check delegate user: %w", err)
		}
		if !exists {
			return workflow.ErrNotFound("user", *req.ToUserID)
		}
		delegation.ToUserID = *req.ToUserID
	}
	if req.StartDate != nil {
		delegation.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		delegation.EndDate = *req.EndDate
	}
	if req.Reason != nil {
		delegation.Reason = *req.Reason
	}

	if !delegation.StartDate.Before(delegation.EndDate) {
		return workflow.ErrValidation("delegation start date must be before end date")
	}

	delegation.UpdatedAt = s.now()
	if err := s.delegations.Save(ctx, delegation); err != nil {
		return fmt.Errorf("failed to update delegation: %w", err)
	}
	return nil
}

// Deactivate 停用委托
// 委托不物理删除,停用后不再参与指派解析
func (s *delegationService) Deactivate(ctx context.Context, id string) error {
	user := auth.IdentityFromContext(ctx)

	delegation, err := s.delegations.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "delegation", id)
	}
	if err := s.requireOwnerOrAdmin(user, delegation); err != nil {
		return err
	}

	delegation.IsActive = false
	delegation.UpdatedAt = s.now()
	if err := s.delegations.Save(ctx, delegation); err != nil {
		return fmt.Errorf("failed to deactivate delegation: %w", err)
	}
	return nil
}

// ListMine 查询当前用户创建的委托
func (s *delegationService) ListMine(ctx context.Context) ([]*model.WorkflowDelegationModel, error) {
	user := auth.IdentityFromContext(ctx)
	if err := s.authorize(ctx, user, "read", nil); err != nil {
		return nil, err
	}
	return s.delegations.FindByFromUser(ctx, user.ID)
}

// authorize 调用权限检查器
func (s *delegationService) authorize(ctx context.Context, user *auth.Identity, action string, entity *auth.EntityRef) error {
	decision, err := s.checker.Check(ctx, user, "workflow", action, entity)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return workflow.ErrPermission(decision.Reason)
	}
	return nil
}

// requireOwnerOrAdmin 校验调用方是委托创建人或管理员
func (s *delegationService) requireOwnerOrAdmin(user *auth.Identity, delegation *model.WorkflowDelegationModel) error {
	if user == nil || user.ID == "" {
		return workflow.ErrPermission("not authenticated")
	}
	if delegation.FromUserID == user.ID || user.HasRole(s.checker.AdminRole()) {
		return nil
	}
	return workflow.ErrPermission(fmt.Sprintf("only the delegation owner or an admin can modify delegation %s", delegation.ID))
}
