package auth_test

import (
	"context"
	"testing"

	"github.com/qmsops/capa-gin/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRules 静态角色权限规则源
type fakeRules struct {
	rules []auth.Rule
}

func (f *fakeRules) Rules(_ context.Context, _ []string, _, _ string) ([]auth.Rule, error) {
	return f.rules, nil
}

// fakeAssignments 静态待处理指派源
type fakeAssignments struct {
	assignee *auth.StepAssignee
}

func (f *fakeAssignments) PendingAssignee(_ context.Context, _ string) (*auth.StepAssignee, error) {
	return f.assignee, nil
}

func newChecker(rules []auth.Rule, assignee *auth.StepAssignee) *auth.Checker {
	return auth.NewChecker(&fakeRules{rules: rules}, &fakeAssignments{assignee: assignee}, "admin")
}

// TestCheck_Unauthenticated 未认证请求直接拒绝
func TestCheck_Unauthenticated(t *testing.T) {
	checker := newChecker(nil, nil)

	decision, err := checker.Check(context.Background(), nil, "workflow", "read", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, auth.SourceDenied, decision.Source)

	decision, err = checker.Check(context.Background(), &auth.Identity{}, "workflow", "read", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

// TestCheck_AdminBypass 管理员在第一层直通,不再评估后续层
func TestCheck_AdminBypass(t *testing.T) {
	checker := newChecker(nil, nil)
	admin := &auth.Identity{ID: "user-001", Username: "admin", Roles: []string{"Admin"}}

	decision, err := checker.Check(context.Background(), admin, "workflow", "cancel", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, auth.SourceAdmin, decision.Source)
}

// TestCheck_RoleLayer 角色规则层: 首个满足约束的规则生效
func TestCheck_RoleLayer(t *testing.T) {
	user := &auth.Identity{ID: "user-001", Username: "zhang", DepartmentID: "dept-01", Roles: []string{"quality"}}
	entity := &auth.EntityRef{Type: "dof", ID: "dof-001", DepartmentID: "dept-01", Status: "review"}

	// 第一条规则约束不满足,第二条满足
	checker := newChecker([]auth.Rule{
		{Role: "quality", Constraints: &auth.Constraints{Status: []string{"draft"}}},
		{Role: "quality", Constraints: &auth.Constraints{Department: "own"}},
	}, nil)

	decision, err := checker.Check(context.Background(), user, "workflow", "read", entity)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, auth.SourceRole, decision.Source)

	// 所有规则约束都不满足时继续向下,最终拒绝
	checker = newChecker([]auth.Rule{
		{Role: "quality", Constraints: &auth.Constraints{Status: []string{"draft"}}},
	}, nil)

	decision, err = checker.Check(context.Background(), user, "workflow", "transition", entity)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, auth.SourceDenied, decision.Source)
}

// TestCheck_WorkflowLayer_User 工作流上下文层: 指派到用户时要求用户匹配
func TestCheck_WorkflowLayer_User(t *testing.T) {
	entity := &auth.EntityRef{Type: "dof", ID: "dof-001", WorkflowInstanceID: "wf-001"}
	checker := newChecker(nil, &auth.StepAssignee{AssignedUserID: "user-001"})

	assignee := &auth.Identity{ID: "user-001", Username: "zhang", Roles: []string{"quality"}}
	decision, err := checker.Check(context.Background(), assignee, "workflow", "approve", entity)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, auth.SourceWorkflow, decision.Source)

	other := &auth.Identity{ID: "user-002", Username: "li", Roles: []string{"quality"}}
	decision, err = checker.Check(context.Background(), other, "workflow", "approve", entity)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

// TestCheck_WorkflowLayer_Role 工作流上下文层: 指派到角色时角色持有者均可处理
func TestCheck_WorkflowLayer_Role(t *testing.T) {
	entity := &auth.EntityRef{Type: "dof", ID: "dof-001", WorkflowInstanceID: "wf-001"}
	checker := newChecker(nil, &auth.StepAssignee{AssignedRole: "Quality"})

	holder := &auth.Identity{ID: "user-001", Username: "zhang", Roles: []string{"quality"}}
	decision, err := checker.Check(context.Background(), holder, "workflow", "complete", entity)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, auth.SourceWorkflow, decision.Source)
}

// TestCheck_WorkflowLayer_ActionScope 工作流上下文层只放行处理类动作
func TestCheck_WorkflowLayer_ActionScope(t *testing.T) {
	entity := &auth.EntityRef{Type: "dof", ID: "dof-001", WorkflowInstanceID: "wf-001"}
	checker := newChecker(nil, &auth.StepAssignee{AssignedUserID: "user-001"})
	user := &auth.Identity{ID: "user-001", Username: "zhang"}

	// delete 不属于工作流上下文动作,即便用户是当前处理人也拒绝
	decision, err := checker.Check(context.Background(), user, "workflow", "delete", entity)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, auth.SourceDenied, decision.Source)
}

// TestCheck_OwnershipFallback 所有权兜底: 创建人或当前负责人可 read/update
func TestCheck_OwnershipFallback(t *testing.T) {
	checker := newChecker(nil, nil)
	creator := &auth.Identity{ID: "user-001", Username: "zhang"}
	assignee := &auth.Identity{ID: "user-002", Username: "li"}
	outsider := &auth.Identity{ID: "user-003", Username: "wang"}
	entity := &auth.EntityRef{Type: "dof", ID: "dof-001", CreatedBy: "user-001", AssignedTo: "user-002"}

	decision, err := checker.Check(context.Background(), creator, "dof", "read", entity)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, auth.SourceOwnership, decision.Source)

	decision, err = checker.Check(context.Background(), assignee, "dof", "update", entity)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// 所有权不覆盖 delete
	decision, err = checker.Check(context.Background(), creator, "dof", "delete", entity)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	decision, err = checker.Check(context.Background(), outsider, "dof", "read", entity)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)
}

// TestNewChecker_DefaultAdminRole 未配置时使用默认管理员角色
func TestNewChecker_DefaultAdminRole(t *testing.T) {
	checker := auth.NewChecker(nil, nil, "")
	assert.Equal(t, auth.DefaultAdminRole, checker.AdminRole())
}

// TestNormalizeRoles 角色列表小写去重
func TestNormalizeRoles(t *testing.T) {
	assert.Equal(t, []string{"quality", "admin"},
		auth.NormalizeRoles([]string{"Quality", "QUALITY", "admin", ""}))
	assert.Empty(t, auth.NormalizeRoles(nil))
}
