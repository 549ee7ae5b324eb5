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

// DefinitionService 工作流定义服务接口
type DefinitionService interface {
	Create(ctx context.Context, req *CreateDefinitionRequest) (*model.WorkflowDefinitionModel, error)
	Get(ctx context.Context, id string) (*model.WorkflowDefinitionModel, error)
	List(ctx context.Context, filter *repository.DefinitionFilter) ([]*model.WorkflowDefinitionModel, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// CreateDefinitionRequest 创建工作流定义请求
// @Description 创建数据定义的工作流模板的请求参数
type CreateDefinitionRequest struct {
	Name       string         `json:"name" example:"CAPA 处理流程" binding:"required"` // 定义名称
	EntityType string         `json:"entity_type" example:"dof" binding:"required"` // 实体类型
	Graph      workflow.Graph `json:"graph" binding:"required"`                     // 步骤/流转/条件/否决角色
}

// definitionService 工作流定义服务实现
type definitionService struct {
	definitions repository.DefinitionRepository
	checker     *auth.Checker
	now         func() time.Time
}

// NewDefinitionService 创建工作流定义服务
func NewDefinitionService(definitions repository.DefinitionRepository, checker *auth.Checker) DefinitionService {
	return &definitionService{
		definitions: definitions,
		checker:     checker,
		now:         time.Now,
	}
}

// Create 创建工作流定义
// 定义按版本不可变: 图结构校验通过后整体序列化存储
func (s *definitionService) Create(ctx context.Context, req *CreateDefinitionRequest) (*model.WorkflowDefinitionModel, error) {
	user := auth.IdentityFromContext(ctx)
	if err := s.authorize(ctx, user, "manage"); err != nil {
		return nil, err
	}

	def := &workflow.Definition{
		ID:         uuid.New().String(),
		Name:       req.Name,
		EntityType: workflow.EntityType(req.EntityType),
		IsActive:   true,
		Graph:      req.Graph,
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	defModel := &model.WorkflowDefinitionModel{
		ID:         def.ID,
		Name:       def.Name,
		EntityType: req.EntityType,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  user.ID,
	}
	if err := defModel.SetGraph(&def.Graph); err != nil {
		return nil, fmt.Errorf("failed to serialize definition graph: %w", err)
	}

	if err := s.definitions.Save(ctx, defModel); err != nil {
		return nil, fmt.Errorf("failed to create definition: %w", err)
	}
	return defModel, nil
}

// Get 获取工作流定义
func (s *definitionService) Get(ctx context.Context, id string) (*model.WorkflowDefinitionModel, error) {
	user := auth.IdentityFromContext(ctx)
	if err := s.authorize(ctx, user, "read"); err != nil {
		return nil, err
	}

	defModel, err := s.definitions.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "definition", id)
	}
	return defModel, nil
}

// List 查询工作流定义列表
func (s *definitionService) List(ctx context.Context, filter *repository.DefinitionFilter) ([]*model.WorkflowDefinitionModel, error) {
	user := auth.IdentityFromContext(ctx)
	if err := s.authorize(ctx, user, "read"); err != nil {
		return nil, err
	}
	return s.definitions.FindByFilter(ctx, filter)
}

// SetActive 启用或停用工作流定义
// 停用不影响已启动的实例,仅阻止新实例启动
func (s *definitionService) SetActive(ctx context.Context, id string, active bool) error {
	user := auth.IdentityFromContext(ctx)
	if err := s.authorize(ctx, user, "manage"); err != nil {
		return err
	}

	if err := s.definitions.SetActive(ctx, id, active); err != nil {
		return notFoundOr(err, "definition", id)
	}
	return nil
}

// authorize 调用权限检查器
func (s *definitionService) authorize(ctx context.Context, user *auth.Identity, action string) error {
	decision, err := s.checker.Check(ctx, user, "workflow", action, nil)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return workflow.ErrPermission(decision.Reason)
	}
	return nil
}
