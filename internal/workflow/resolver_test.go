package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/qmsops/capa-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDelegations 静态委托表: fromUserID -> delegate
type fakeDelegations struct {
	delegates map[string]string
}

func (f *fakeDelegations) FindActiveDelegate(_ context.Context, fromUserID, _ string, _ workflow.EntityType, _ time.Time) (string, bool, error) {
	d, ok := f.delegates[fromUserID]
	return d, ok, nil
}

// fakePicker 固定返回值的负载选择器
type fakePicker struct {
	userID string
	ok     bool
}

func (f *fakePicker) PickAssignee(_ context.Context, _, _ string) (string, bool, error) {
	return f.userID, f.ok, nil
}

func newResolver(delegates map[string]string, picker workflow.WorkloadPicker) *workflow.AssignmentResolver {
	r := workflow.NewAssignmentResolver(&fakeDelegations{delegates: delegates}, picker)
	r.SetClock(func() time.Time {
		return time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	})
	return r
}

// TestResolve_Role 角色指派保持角色范围,不做委托替换
func TestResolve_Role(t *testing.T) {
	r := newResolver(map[string]string{"user-001": "user-002"}, &fakePicker{})
	step := &workflow.Step{ID: "review", AssignmentType: workflow.AssignByRole, AssignedRole: "quality", Deadline: "3d"}

	resolved, err := r.Resolve(context.Background(), step, workflow.EntityDOF)
	require.NoError(t, err)

	assert.Equal(t, workflow.AssignByRole, resolved.AssignmentType)
	assert.Equal(t, "quality", resolved.AssignedRole)
	assert.Empty(t, resolved.AssignedUserID)
	assert.Equal(t, time.Date(2026, 8, 4, 9, 0, 0, 0, time.UTC), resolved.Deadline)
}

// TestResolve_UserWithDelegation 用户指派在创建时替换为委托目标
func TestResolve_UserWithDelegation(t *testing.T) {
	r := newResolver(map[string]string{"user-001": "user-002"}, &fakePicker{})
	step := &workflow.Step{ID: "review", AssignmentType: workflow.AssignByUser, AssignedUser: "user-001"}

	resolved, err := r.Resolve(context.Background(), step, workflow.EntityDOF)
	require.NoError(t, err)

	assert.Equal(t, workflow.AssignByUser, resolved.AssignmentType)
	assert.Equal(t, "user-002", resolved.AssignedUserID)
}

// TestResolve_UserWithoutDelegation 无委托时保持原指派用户
func TestResolve_UserWithoutDelegation(t *testing.T) {
	r := newResolver(nil, &fakePicker{})
	step := &workflow.Step{ID: "review", AssignmentType: workflow.AssignByUser, AssignedUser: "user-001"}

	resolved, err := r.Resolve(context.Background(), step, workflow.EntityDOF)
	require.NoError(t, err)
	assert.Equal(t, "user-001", resolved.AssignedUserID)
}

// TestResolve_AutoPicked 自动指派选中用户后按用户指派处理,且委托替换生效
func TestResolve_AutoPicked(t *testing.T) {
	r := newResolver(map[string]string{"user-003": "user-004"}, &fakePicker{userID: "user-003", ok: true})
	step := &workflow.Step{ID: "review", AssignmentType: workflow.AssignByAuto, AssignedRole: "quality"}

	resolved, err := r.Resolve(context.Background(), step, workflow.EntityDOF)
	require.NoError(t, err)

	assert.Equal(t, workflow.AssignByUser, resolved.AssignmentType)
	assert.Equal(t, "quality", resolved.AssignedRole)
	assert.Equal(t, "user-004", resolved.AssignedUserID)
}

// TestResolve_AutoFallbackToRole 选不到人时退化为角色指派
func TestResolve_AutoFallbackToRole(t *testing.T) {
	r := newResolver(nil, &fakePicker{ok: false})
	step := &workflow.Step{ID: "review", AssignmentType: workflow.AssignByAuto, AssignedRole: "quality"}

	resolved, err := r.Resolve(context.Background(), step, workflow.EntityDOF)
	require.NoError(t, err)

	assert.Equal(t, workflow.AssignByRole, resolved.AssignmentType)
	assert.Equal(t, "quality", resolved.AssignedRole)
	assert.Empty(t, resolved.AssignedUserID)
}

// TestResolve_AutoDefaultRole 未配置角色时使用兜底角色
func TestResolve_AutoDefaultRole(t *testing.T) {
	r := newResolver(nil, &fakePicker{ok: false})
	step := &workflow.Step{ID: "review", AssignmentType: workflow.AssignByAuto}

	resolved, err := r.Resolve(context.Background(), step, workflow.EntityDOF)
	require.NoError(t, err)
	assert.Equal(t, workflow.DefaultAssigneeRole, resolved.AssignedRole)
}

// TestResolve_UnknownType 未知指派方式报校验错误
func TestResolve_UnknownType(t *testing.T) {
	r := newResolver(nil, &fakePicker{})
	step := &workflow.Step{ID: "review", AssignmentType: "committee"}

	_, err := r.Resolve(context.Background(), step, workflow.EntityDOF)
	assert.True(t, workflow.IsValidation(err))
}
