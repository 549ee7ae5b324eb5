package auth

import (
	"context"
	"fmt"
	"strings"
)

// 权限判定来源,标记短路发生的层
const (
	SourceAdmin     = "admin"
	SourceRole      = "role"
	SourceWorkflow  = "workflow"
	SourceOwnership = "ownership"
	SourceDenied    = "denied"
)

// DefaultAdminRole 默认管理员角色编码
const DefaultAdminRole = "admin"

// Decision 权限判定结果
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Rule 角色权限规则,约束为空时无条件放行
type Rule struct {
	Role        string
	Constraints *Constraints
}

// RuleSource 角色权限规则查询接口
type RuleSource interface {
	Rules(ctx context.Context, roles []string, resource, action string) ([]Rule, error)
}

// StepAssignee 工作流实例当前待处理指派的处理方
type StepAssignee struct {
	AssignedUserID string
	AssignedRole   string
}

// AssignmentSource 待处理指派查询接口,实例无待处理指派时返回 nil
type AssignmentSource interface {
	PendingAssignee(ctx context.Context, instanceID string) (*StepAssignee, error)
}

// workflowContextActions 工作流上下文层放行的动作
var workflowContextActions = map[string]bool{
	"approve":  true,
	"reject":   true,
	"complete": true,
	"submit":   true,
	"update":   true,
}

// ownershipActions 所有权兜底层放行的动作
var ownershipActions = map[string]bool{
	"read":   true,
	"update": true,
}

// Checker 统一权限检查器
// 严格按序短路的四层管道: 管理员直通 -> 角色+约束规则 -> 工作流上下文 -> 所有权兜底
type Checker struct {
	rules       RuleSource
	assignments AssignmentSource
	adminRole   string
}

// NewChecker 创建权限检查器
func NewChecker(rules RuleSource, assignments AssignmentSource, adminRole string) *Checker {
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	return &Checker{
		rules:       rules,
		assignments: assignments,
		adminRole:   adminRole,
	}
}

// Check 执行权限判定
// entity 可为 nil,表示与具体实体无关的操作
func (c *Checker) Check(ctx context.Context, user *Identity, resource, action string, entity *EntityRef) (*Decision, error) {
	if user == nil || user.ID == "" {
		return &Decision{
			Allowed: false,
			Reason:  "not authenticated",
			Source:  SourceDenied,
		}, nil
	}

	// 第 1 层: 管理员直通
	if user.HasRole(c.adminRole) {
		return &Decision{Allowed: true, Source: SourceAdmin}, nil
	}

	// 第 2 层: 角色+约束规则,首个满足约束的规则生效
	if c.rules != nil && len(user.Roles) > 0 {
		rules, err := c.rules.Rules(ctx, user.Roles, resource, action)
		if err != nil {
			return nil, fmt.Errorf("failed to load permission rules: %w", err)
		}
		for _, rule := range rules {
			if EvaluateConstraints(rule.Constraints, entity, user) {
				return &Decision{Allowed: true, Source: SourceRole}, nil
			}
		}
	}

	// 第 3 层: 工作流上下文,实体关联到进行中的实例时生效
	if c.assignments != nil && entity != nil && entity.WorkflowInstanceID != "" && workflowContextActions[action] {
		assignee, err := c.assignments.PendingAssignee(ctx, entity.WorkflowInstanceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow assignment: %w", err)
		}
		if assignee != nil {
			if assignee.AssignedUserID != "" && assignee.AssignedUserID == user.ID {
				return &Decision{Allowed: true, Source: SourceWorkflow}, nil
			}
			if assignee.AssignedRole != "" && user.HasRole(assignee.AssignedRole) {
				return &Decision{Allowed: true, Source: SourceWorkflow}, nil
			}
		}
	}

	// 第 4 层: 所有权兜底,仅放行 read/update
	if entity != nil && ownershipActions[action] {
		if entity.CreatedBy == user.ID || (entity.AssignedTo != "" && entity.AssignedTo == user.ID) {
			return &Decision{Allowed: true, Source: SourceOwnership}, nil
		}
	}

	return &Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("user %s has no permission for %s.%s", user.Username, resource, action),
		Source:  SourceDenied,
	}, nil
}

// AdminRole 返回管理员角色编码
func (c *Checker) AdminRole() string {
	return c.adminRole
}

// NormalizeRoles 返回小写去重后的角色列表,用于 SQL 大小写不敏感匹配
func NormalizeRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		lower := strings.ToLower(r)
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	return out
}
