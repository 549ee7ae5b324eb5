package workflow

import (
	"context"
	"time"
)

// DefaultAssigneeRole 未配置角色时使用的兜底角色
const DefaultAssigneeRole = "manager"

// DelegationLookup 委托查询接口
// 返回指定用户在指定角色上的有效委托目标(isActive 且当前时间在有效期内)
type DelegationLookup interface {
	FindActiveDelegate(ctx context.Context, fromUserID, role string, entityType EntityType, at time.Time) (string, bool, error)
}

// WorkloadPicker 基于负载的处理人选择接口,外部协作方
type WorkloadPicker interface {
	PickAssignee(ctx context.Context, role, strategy string) (string, bool, error)
}

// Resolved 步骤指派解析结果
type Resolved struct {
	AssignmentType AssignmentType
	AssignedRole   string
	AssignedUserID string
	Deadline       time.Time
}

// AssignmentResolver 将步骤定义解析为具体指派
// 统一处理三种指派方式的委托替换,避免在各分支重复实现委托查询
type AssignmentResolver struct {
	delegations DelegationLookup
	picker      WorkloadPicker
	now         func() time.Time
}

// NewAssignmentResolver 创建步骤指派解析器
func NewAssignmentResolver(delegations DelegationLookup, picker WorkloadPicker) *AssignmentResolver {
	return &AssignmentResolver{
		delegations: delegations,
		picker:      picker,
		now:         time.Now,
	}
}

// SetClock 设置时钟(用于测试)
func (r *AssignmentResolver) SetClock(now func() time.Time) {
	r.now = now
}

// Resolve 解析步骤指派
// role 指派保持角色范围,委托在权限层的角色路径上生效,不在创建时替换;
// user 指派在创建时做委托替换;
// auto 指派先经负载选择器选人,选中后按 user 指派处理,选不到则退化为 role 指派
func (r *AssignmentResolver) Resolve(ctx context.Context, step *Step, entityType EntityType) (*Resolved, error) {
	now := r.now()
	out := &Resolved{Deadline: DeadlineAt(now, step.Deadline)}

	role := step.AssignedRole
	if role == "" {
		role = DefaultAssigneeRole
	}

	switch step.AssignmentType {
	case AssignByRole:
		out.AssignmentType = AssignByRole
		out.AssignedRole = step.AssignedRole

	case AssignByUser:
		userID, err := r.substituteDelegate(ctx, step.AssignedUser, role, entityType, now)
		if err != nil {
			return nil, err
		}
		out.AssignmentType = AssignByUser
		out.AssignedRole = step.AssignedRole
		out.AssignedUserID = userID

	case AssignByAuto:
		picked, ok, err := r.picker.PickAssignee(ctx, role, "workload")
		if err != nil {
			return nil, err
		}
		if !ok {
			// 选不到人时退化为角色指派
			out.AssignmentType = AssignByRole
			out.AssignedRole = role
			return out, nil
		}
		userID, err := r.substituteDelegate(ctx, picked, role, entityType, now)
		if err != nil {
			return nil, err
		}
		out.AssignmentType = AssignByUser
		out.AssignedRole = role
		out.AssignedUserID = userID

	default:
		return nil, ErrValidation("step %s has unknown assignment type: %s", step.ID, step.AssignmentType)
	}

	return out, nil
}

// substituteDelegate 查询有效委托并返回实际处理人
func (r *AssignmentResolver) substituteDelegate(ctx context.Context, userID, role string, entityType EntityType, at time.Time) (string, error) {
	if r.delegations == nil {
		return userID, nil
	}
	delegate, ok, err := r.delegations.FindActiveDelegate(ctx, userID, role, entityType, at)
	if err != nil {
		return "", err
	}
	if ok {
		return delegate, nil
	}
	return userID, nil
}
