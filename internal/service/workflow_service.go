package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qmsops/capa-gin/internal/auth"
	"github.com/qmsops/capa-gin/internal/metrics"
	"github.com/qmsops/capa-gin/internal/model"
	"github.com/qmsops/capa-gin/internal/repository"
	"github.com/qmsops/capa-gin/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WorkflowService 工作流编排服务接口
type WorkflowService interface {
	Start(ctx context.Context, req *StartWorkflowRequest) (*model.WorkflowInstanceModel, error)
	Transition(ctx context.Context, instanceID string, req *TransitionRequest) (*TransitionResult, error)
	Veto(ctx context.Context, instanceID string, comment string) error
	Cancel(ctx context.Context, instanceID string, reason string) error
	ManualEscalate(ctx context.Context, assignmentID string, reason string) (*EscalateResult, error)
	MyTasks(ctx context.Context) ([]*model.StepAssignmentModel, error)
	GetInstance(ctx context.Context, id string) (*InstanceDetail, error)
	Timeline(ctx context.Context, instanceID string) ([]*model.WorkflowTimelineModel, error)
	ListOverdue(ctx context.Context) ([]*model.StepAssignmentModel, error)
	CheckPermission(ctx context.Context, req *CheckPermissionRequest) (*auth.Decision, error)
}

// StartWorkflowRequest 启动工作流请求
// @Description 针对指定实体启动工作流的请求参数
type StartWorkflowRequest struct {
	DefinitionID string                 `json:"definition_id" example:"def-001" binding:"required"` // 工作流定义 ID
	EntityType   string                 `json:"entity_type" example:"dof" binding:"required"`       // 实体类型: audit/finding/action/dof
	EntityID     string                 `json:"entity_id" example:"dof-001" binding:"required"`     // 实体 ID
	Entity       map[string]interface{} `json:"entity" swaggertype:"object"`                        // 实体记录,用于构建元数据快照
}

// TransitionRequest 工作流流转请求
// @Description 对实例当前步骤执行动作的请求参数
type TransitionRequest struct {
	Action  string `json:"action" example:"approve" binding:"required"` // 动作: submit/approve/reject/complete
	Comment string `json:"comment" example:"同意"`                        // 处理意见
}

// TransitionResult 工作流流转结果
type TransitionResult struct {
	NextStepID   string `json:"next_step_id"`   // 下一步骤 ID
	NextStepName string `json:"next_step_name"` // 下一步骤名称
	IsComplete   bool   `json:"is_complete"`    // 实例是否已完成
}

// EscalateResult 升级结果
type EscalateResult struct {
	EscalatedTo string `json:"escalated_to"` // 升级后的处理人 ID
}

// CheckPermissionRequest 权限检查请求
// @Description 统一权限检查的请求参数,实体快照可选
type CheckPermissionRequest struct {
	Resource string          `json:"resource" example:"audit" binding:"required"` // 资源类型
	Action   string          `json:"action" example:"update" binding:"required"`  // 动作
	Entity   *auth.EntityRef `json:"entity,omitempty"`                            // 实体快照(可选)
}

// InstanceDetail 实例详情,包含指派和时间线
type InstanceDetail struct {
	Instance    *model.WorkflowInstanceModel   `json:"instance"`
	Assignments []*model.StepAssignmentModel   `json:"assignments"`
	Timeline    []*model.WorkflowTimelineModel `json:"timeline"`
}

// Escalator 超期升级协作方接口
// 负责实际的重新指派,返回升级后的处理人 ID
type Escalator interface {
	Escalate(ctx context.Context, assignmentID string, reason string) (string, error)
}

// TimelineNotifier 时间线事件通知接口,由 WebSocket Hub 等实现
type TimelineNotifier interface {
	NotifyTimeline(entry *model.WorkflowTimelineModel)
}

// workflowService 工作流编排服务实现
// 实例与其当前指派是唯一需要串行变更的资源:
// 每次变更在实例级互斥锁和数据库事务内执行,保证
// "活跃实例至多一条 pending 指派" 不变式
type workflowService struct {
	db          *gorm.DB
	definitions repository.DefinitionRepository
	instances   repository.InstanceRepository
	assignments repository.AssignmentRepository
	timeline    repository.TimelineRepository
	checker     *auth.Checker
	resolver    *workflow.AssignmentResolver
	escalator   Escalator
	notifier    TimelineNotifier
	logger      *logrus.Logger
	locks       sync.Map // 实例 ID -> *sync.Mutex
	now         func() time.Time
}

// NewWorkflowService 创建工作流编排服务
func NewWorkflowService(
	db *gorm.DB,
	definitions repository.DefinitionRepository,
	instances repository.InstanceRepository,
	assignments repository.AssignmentRepository,
	timeline repository.TimelineRepository,
	checker *auth.Checker,
	resolver *workflow.AssignmentResolver,
	escalator Escalator,
	notifier TimelineNotifier,
	logger *logrus.Logger,
) WorkflowService {
	if logger == nil {
		logger = logrus.New()
	}
	return &workflowService{
		db:          db,
		definitions: definitions,
		instances:   instances,
		assignments: assignments,
		timeline:    timeline,
		checker:     checker,
		resolver:    resolver,
		escalator:   escalator,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// SetNotifier 设置时间线事件通知器
func (s *workflowService) SetNotifier(notifier TimelineNotifier) {
	s.notifier = notifier
}

// SetClock 设置时钟(用于测试)
func (s *workflowService) SetClock(now func() time.Time) {
	s.now = now
}

// Start 启动工作流
// 定义必须存在、启用且包含起始步骤;实例创建在起始步骤,
// 起始步骤本身不产生指派(指派代表流转进入某步骤后的待处理工作,
// 发起人默认持有起始步骤)
func (s *workflowService) Start(ctx context.Context, req *StartWorkflowRequest) (*model.WorkflowInstanceModel, error) {
	user := auth.IdentityFromContext(ctx)

	defModel, err := s.definitions.FindByID(ctx, req.DefinitionID)
	if err != nil {
		return nil, notFoundOr(err, "definition", req.DefinitionID)
	}
	if !defModel.IsActive {
		return nil, workflow.ErrValidation("workflow definition %s is not active", defModel.ID)
	}

	def, err := defModel.Definition()
	if err != nil {
		return nil, err
	}
	if string(def.EntityType) != req.EntityType {
		return nil, workflow.ErrValidation("definition %s drives %s entities, got %s", def.ID, def.EntityType, req.EntityType)
	}
	start := def.StartStep()
	if start == nil {
		return nil, workflow.ErrValidation("workflow definition %s has no start step", def.ID)
	}

	metadata, err := workflow.BuildMetadata(def.EntityType, req.Entity)
	if err != nil {
		return nil, err
	}

	ref := &auth.EntityRef{
		Type:         req.EntityType,
		ID:           req.EntityID,
		DepartmentID: stringField(metadata, "department_id"),
		Status:       stringField(metadata, "status"),
		CreatedBy:    stringField(metadata, "created_by"),
		AssignedTo:   stringField(metadata, "assigned_to"),
	}
	if err := s.authorize(ctx, user, "workflow", "start", ref); err != nil {
		return nil, err
	}

	now := s.now()
	instance := &model.WorkflowInstanceModel{
		ID:                   uuid.New().String(),
		WorkflowDefinitionID: defModel.ID,
		EntityType:           req.EntityType,
		EntityID:             req.EntityID,
		CurrentStepID:        start.ID,
		Status:               model.InstanceStatusActive,
		StartedAt:            now,
		CreatedBy:            user.ID,
	}
	if err := instance.SetMetadata(metadata); err != nil {
		return nil, err
	}

	entry := s.newTimelineEntry(instance.ID, start.ID, workflow.ActionSubmit, user.ID, "", now)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(instance).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start workflow: %w", err)
	}

	metrics.RecordWorkflowStarted(req.EntityType)
	s.notify(entry)
	s.logger.WithFields(logrus.Fields{
		"instance_id":   instance.ID,
		"definition_id": defModel.ID,
		"entity_type":   req.EntityType,
		"entity_id":     req.EntityID,
	}).Info("workflow started")

	return instance, nil
}

// Transition 对实例当前步骤执行动作
// 校验和指派解析在事务外完成,关闭当前指派、推进实例、
// 追加时间线和创建下一指派在实例锁和事务内原子执行
func (s *workflowService) Transition(ctx context.Context, instanceID string, req *TransitionRequest) (*TransitionResult, error) {
	user := auth.IdentityFromContext(ctx)

	mu := s.instanceLock(instanceID)
	mu.Lock()
	defer mu.Unlock()

	instance, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, notFoundOr(err, "instance", instanceID)
	}
	if instance.Status != model.InstanceStatusActive {
		return nil, workflow.ErrValidation("instance %s is %s, only active instances can transition", instance.ID, instance.Status)
	}

	if err := s.authorize(ctx, user, "workflow", "transition", s.entityRef(instance)); err != nil {
		return nil, err
	}

	def, err := s.loadDefinition(ctx, instance.WorkflowDefinitionID)
	if err != nil {
		return nil, err
	}
	current := def.Step(instance.CurrentStepID)
	if current == nil {
		return nil, workflow.ErrValidation("current step %s not found in definition %s", instance.CurrentStepID, def.ID)
	}

	if _, err := workflow.ValidateTransition(current.ID, req.Action, def.Transitions); err != nil {
		return nil, err
	}
	nextID := workflow.DetermineNextStep(current.ID, req.Action, def.Transitions, def.Conditions, instance.Metadata())
	next := def.Step(nextID)
	if next == nil {
		return nil, workflow.ErrValidation("next step %s not found in definition %s", nextID, def.ID)
	}

	now := s.now()
	isComplete := next.Kind == workflow.StepKindEnd
	entry := s.newTimelineEntry(instance.ID, next.ID, req.Action, user.ID, req.Comment, now)

	// 指派解析只读委托和负载数据,在事务外完成;
	// 解析器的仓储绑定在容器级连接上,事务内调用会跨会话读取
	var assignment *model.StepAssignmentModel
	if !isComplete {
		resolved, err := s.resolver.Resolve(ctx, next, workflow.EntityType(instance.EntityType))
		if err != nil {
			return nil, err
		}
		assignment = &model.StepAssignmentModel{
			ID:                 uuid.New().String(),
			WorkflowInstanceID: instance.ID,
			StepID:             next.ID,
			AssignmentType:     string(resolved.AssignmentType),
			AssignedRole:       resolved.AssignedRole,
			AssignedUserID:     resolved.AssignedUserID,
			Status:             model.AssignmentStatusPending,
			Deadline:           &resolved.Deadline,
			CreatedAt:          now,
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.closePendingAssignment(tx, instance.ID, req.Action, req.Comment, user.ID, now); err != nil {
			return err
		}

		instance.CurrentStepID = next.ID
		if isComplete {
			instance.Status = model.InstanceStatusCompleted
			instance.CompletedAt = &now
		}
		if err := tx.Save(instance).Error; err != nil {
			return err
		}

		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		if assignment != nil {
			return tx.Create(assignment).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transition workflow: %w", err)
	}

	metrics.RecordTransition(req.Action)
	s.notify(entry)
	s.logger.WithFields(logrus.Fields{
		"instance_id": instance.ID,
		"action":      req.Action,
		"next_step":   next.ID,
		"is_complete": isComplete,
	}).Info("workflow transitioned")

	return &TransitionResult{
		NextStepID:   next.ID,
		NextStepName: next.Name,
		IsComplete:   isComplete,
	}, nil
}

// Veto 否决工作流
// 权限覆盖: 绕过流转图,直接跳到定义的结束步骤并完成实例
// 调用方角色必须在定义的否决角色列表内(管理员除外)
func (s *workflowService) Veto(ctx context.Context, instanceID string, comment string) error {
	user := auth.IdentityFromContext(ctx)

	mu := s.instanceLock(instanceID)
	mu.Lock()
	defer mu.Unlock()

	instance, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return notFoundOr(err, "instance", instanceID)
	}
	if instance.Status != model.InstanceStatusActive {
		return workflow.ErrValidation("instance %s is %s, only active instances can be vetoed", instance.ID, instance.Status)
	}

	if err := s.authorize(ctx, user, "workflow", "veto", s.entityRef(instance)); err != nil {
		return err
	}

	def, err := s.loadDefinition(ctx, instance.WorkflowDefinitionID)
	if err != nil {
		return err
	}
	if !user.HasRole(s.checker.AdminRole()) && !def.HasVetoRole(user.Roles) {
		return workflow.ErrPermission(fmt.Sprintf("user %s holds no veto role for definition %s", user.Username, def.ID))
	}
	end := def.EndStep()
	if end == nil {
		return workflow.ErrValidation("workflow definition %s has no end step", def.ID)
	}

	now := s.now()
	entry := s.newTimelineEntry(instance.ID, end.ID, workflow.ActionVeto, user.ID, comment, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.closePendingAssignment(tx, instance.ID, workflow.ActionVeto, comment, user.ID, now); err != nil {
			return err
		}

		instance.CurrentStepID = end.ID
		instance.Status = model.InstanceStatusCompleted
		instance.CompletedAt = &now
		if err := tx.Save(instance).Error; err != nil {
			return err
		}

		return tx.Create(entry).Error
	})
	if err != nil {
		return fmt.Errorf("failed to veto workflow: %w", err)
	}

	metrics.RecordTransition(workflow.ActionVeto)
	s.notify(entry)
	s.logger.WithFields(logrus.Fields{
		"instance_id": instance.ID,
		"vetoed_by":   user.ID,
	}).Warn("workflow vetoed")

	return nil
}

// Cancel 取消工作流
// 仅活跃实例可取消;不创建后续指派
func (s *workflowService) Cancel(ctx context.Context, instanceID string, reason string) error {
	user := auth.IdentityFromContext(ctx)

	mu := s.instanceLock(instanceID)
	mu.Lock()
	defer mu.Unlock()

	instance, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return notFoundOr(err, "instance", instanceID)
	}
	if instance.Status != model.InstanceStatusActive {
		return workflow.ErrValidation("instance %s is %s, only active instances can be cancelled", instance.ID, instance.Status)
	}

	if err := s.authorize(ctx, user, "workflow", "cancel", s.entityRef(instance)); err != nil {
		return err
	}

	now := s.now()
	entry := s.newTimelineEntry(instance.ID, instance.CurrentStepID, workflow.ActionCancel, user.ID, reason, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.closePendingAssignment(tx, instance.ID, workflow.ActionCancel, reason, user.ID, now); err != nil {
			return err
		}

		instance.Status = model.InstanceStatusCancelled
		instance.CompletedAt = &now
		if err := tx.Save(instance).Error; err != nil {
			return err
		}

		return tx.Create(entry).Error
	})
	if err != nil {
		return fmt.Errorf("failed to cancel workflow: %w", err)
	}

	metrics.RecordTransition(workflow.ActionCancel)
	s.notify(entry)
	s.logger.WithFields(logrus.Fields{
		"instance_id":  instance.ID,
		"cancelled_by": user.ID,
	}).Info("workflow cancelled")

	return nil
}

// ManualEscalate 手动升级超期指派
// 实际的重新指派由升级协作方决定,这里只做权限校验和时间线记录
func (s *workflowService) ManualEscalate(ctx context.Context, assignmentID string, reason string) (*EscalateResult, error) {
	user := auth.IdentityFromContext(ctx)

	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, notFoundOr(err, "assignment", assignmentID)
	}
	if assignment.Status != model.AssignmentStatusPending {
		return nil, workflow.ErrValidation("assignment %s is %s, only pending assignments can be escalated", assignment.ID, assignment.Status)
	}

	instance, err := s.instances.FindByID(ctx, assignment.WorkflowInstanceID)
	if err != nil {
		return nil, notFoundOr(err, "instance", assignment.WorkflowInstanceID)
	}

	if err := s.authorize(ctx, user, "workflow", "escalate", s.entityRef(instance)); err != nil {
		return nil, err
	}

	mu := s.instanceLock(instance.ID)
	mu.Lock()
	defer mu.Unlock()

	escalatedTo, err := s.escalator.Escalate(ctx, assignment.ID, reason)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := s.newTimelineEntry(instance.ID, assignment.StepID, workflow.ActionEscalate, user.ID, reason, now)
	if err := s.timeline.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record escalation: %w", err)
	}

	metrics.RecordEscalation()
	s.notify(entry)
	s.logger.WithFields(logrus.Fields{
		"assignment_id": assignment.ID,
		"escalated_to":  escalatedTo,
	}).Warn("assignment escalated")

	return &EscalateResult{EscalatedTo: escalatedTo}, nil
}

// MyTasks 查询当前用户的待处理指派
// 返回指派给用户本人或其任一角色(大小写不敏感)的 pending 指派
func (s *workflowService) MyTasks(ctx context.Context) ([]*model.StepAssignmentModel, error) {
	user := auth.IdentityFromContext(ctx)
	if err := s.authorize(ctx, user, "workflow", "read", nil); err != nil {
		return nil, err
	}
	return s.assignments.FindPendingFor(ctx, user.ID, user.Roles)
}

// GetInstance 获取实例详情
func (s *workflowService) GetInstance(ctx context.Context, id string) (*InstanceDetail, error) {
	user := auth.IdentityFromContext(ctx)

	instance, err := s.instances.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "instance", id)
	}
	if err := s.authorize(ctx, user, "workflow", "read", s.entityRef(instance)); err != nil {
		return nil, err
	}

	assignments, err := s.assignments.FindByInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	timeline, err := s.timeline.FindByInstance(ctx, id)
	if err != nil {
		return nil, err
	}

	return &InstanceDetail{
		Instance:    instance,
		Assignments: assignments,
		Timeline:    timeline,
	}, nil
}

// Timeline 获取实例的时间线
func (s *workflowService) Timeline(ctx context.Context, instanceID string) ([]*model.WorkflowTimelineModel, error) {
	user := auth.IdentityFromContext(ctx)

	instance, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, notFoundOr(err, "instance", instanceID)
	}
	if err := s.authorize(ctx, user, "workflow", "read", s.entityRef(instance)); err != nil {
		return nil, err
	}
	return s.timeline.FindByInstance(ctx, instanceID)
}

// ListOverdue 查询已超期的待处理指派
func (s *workflowService) ListOverdue(ctx context.Context) ([]*model.StepAssignmentModel, error) {
	user := auth.IdentityFromContext(ctx)
	if err := s.authorize(ctx, user, "workflow", "read", nil); err != nil {
		return nil, err
	}
	return s.assignments.FindOverdue(ctx, s.now())
}

// CheckPermission 统一权限检查入口
// 系统内所有实体操作的单一授权门
func (s *workflowService) CheckPermission(ctx context.Context, req *CheckPermissionRequest) (*auth.Decision, error) {
	user := auth.IdentityFromContext(ctx)
	decision, err := s.checker.Check(ctx, user, req.Resource, req.Action, req.Entity)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		metrics.RecordPermissionDenial(decision.Source)
	}
	return decision, nil
}

// authorize 调用权限检查器,拒绝时转换为 PermissionError
func (s *workflowService) authorize(ctx context.Context, user *auth.Identity, resource, action string, entity *auth.EntityRef) error {
	decision, err := s.checker.Check(ctx, user, resource, action, entity)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		metrics.RecordPermissionDenial(decision.Source)
		return workflow.ErrPermission(decision.Reason)
	}
	return nil
}

// closePendingAssignment 关闭实例的待处理指派
// approve/complete 关闭为 completed,其余动作关闭为 rejected;
// 无待处理指派时为空操作(起始步骤没有指派)
func (s *workflowService) closePendingAssignment(tx *gorm.DB, instanceID, action, comment, userID string, now time.Time) error {
	var pending model.StepAssignmentModel
	err := tx.Where("workflow_instance_id = ? AND status = ?", instanceID, model.AssignmentStatusPending).
		First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	switch action {
	case workflow.ActionApprove, workflow.ActionComplete, workflow.ActionVeto:
		pending.Status = model.AssignmentStatusCompleted
	default:
		pending.Status = model.AssignmentStatusRejected
	}
	pending.CompletedAt = &now
	pending.CompletedBy = userID
	pending.Action = action
	pending.Comment = comment
	return tx.Save(&pending).Error
}

// loadDefinition 加载并反序列化工作流定义
func (s *workflowService) loadDefinition(ctx context.Context, id string) (*workflow.Definition, error) {
	defModel, err := s.definitions.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "definition", id)
	}
	return defModel.Definition()
}

// entityRef 从实例的元数据快照构建权限检查用的实体快照
func (s *workflowService) entityRef(instance *model.WorkflowInstanceModel) *auth.EntityRef {
	metadata := instance.Metadata()
	return &auth.EntityRef{
		Type:               instance.EntityType,
		ID:                 instance.EntityID,
		DepartmentID:       stringField(metadata, "department_id"),
		Status:             stringField(metadata, "status"),
		CreatedBy:          stringField(metadata, "created_by"),
		AssignedTo:         stringField(metadata, "assigned_to"),
		WorkflowInstanceID: instance.ID,
	}
}

// newTimelineEntry 构建时间线条目
func (s *workflowService) newTimelineEntry(instanceID, stepID, action, performedBy, comment string, now time.Time) *model.WorkflowTimelineModel {
	return &model.WorkflowTimelineModel{
		ID:                 uuid.New().String(),
		WorkflowInstanceID: instanceID,
		StepID:             stepID,
		Action:             action,
		PerformedBy:        performedBy,
		Comment:            comment,
		CreatedAt:          now,
	}
}

// notify 推送时间线事件
func (s *workflowService) notify(entry *model.WorkflowTimelineModel) {
	if s.notifier != nil {
		s.notifier.NotifyTimeline(entry)
	}
}

// instanceLock 获取实例级互斥锁
func (s *workflowService) instanceLock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// notFoundOr 将 gorm 的记录不存在错误转换为领域 NotFound 错误
func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.ErrNotFound(resource, id)
	}
	return fmt.Errorf("failed to load %s: %w", resource, err)
}

// stringField 从元数据中读取字符串字段
func stringField(metadata map[string]interface{}, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
