package model_test

import (
	"testing"
	"time"

	"github.com/qmsops/capa-gin/internal/model"
	"github.com/qmsops/capa-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDelegationActiveAt 委托有效期窗口判定
func TestDelegationActiveAt(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	delegation := &model.WorkflowDelegationModel{
		ID: "del-001", FromUserID: "user-001", ToUserID: "user-002",
		Role: "manager", StartDate: start, EndDate: end, IsActive: true,
	}

	assert.True(t, delegation.ActiveAt(start))
	assert.True(t, delegation.ActiveAt(end))
	assert.True(t, delegation.ActiveAt(start.Add(24*time.Hour)))
	assert.False(t, delegation.ActiveAt(start.Add(-time.Second)))
	assert.False(t, delegation.ActiveAt(end.Add(time.Second)))

	delegation.IsActive = false
	assert.False(t, delegation.ActiveAt(start.Add(24*time.Hour)))
}

// TestDelegationValidate 时间窗口必须正序
func TestDelegationValidate(t *testing.T) {
	now := time.Now()
	delegation := &model.WorkflowDelegationModel{
		ID: "del-001", FromUserID: "user-001", ToUserID: "user-002",
		Role: "manager", StartDate: now, EndDate: now,
	}
	assert.Error(t, delegation.Validate())

	delegation.EndDate = now.Add(time.Hour)
	assert.NoError(t, delegation.Validate())
}

// TestAssignmentIsOverdue 超期 = pending 且期限已过
func TestAssignmentIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assignment := &model.StepAssignmentModel{Status: model.AssignmentStatusPending, Deadline: &past}
	assert.True(t, assignment.IsOverdue(now))

	assignment.Deadline = &future
	assert.False(t, assignment.IsOverdue(now))

	assignment.Deadline = nil
	assert.False(t, assignment.IsOverdue(now))

	assignment.Status = model.AssignmentStatusCompleted
	assignment.Deadline = &past
	assert.False(t, assignment.IsOverdue(now))
}

// TestDefinitionGraphRoundTrip 定义模型与领域对象的互转
func TestDefinitionGraphRoundTrip(t *testing.T) {
	graph := &workflow.Graph{
		Steps: []workflow.Step{
			{ID: "draft", Kind: workflow.StepKindStart},
			{ID: "closed", Kind: workflow.StepKindEnd},
		},
		Transitions: []workflow.Transition{
			{From: "draft", To: "closed", Action: "complete"},
		},
		VetoRoles: []string{"quality_manager"},
	}

	m := &model.WorkflowDefinitionModel{ID: "def-001", Name: "flow", EntityType: "dof", IsActive: true}
	require.NoError(t, m.SetGraph(graph))

	def, err := m.Definition()
	require.NoError(t, err)
	assert.Equal(t, workflow.EntityDOF, def.EntityType)
	assert.Len(t, def.Steps, 2)
	assert.True(t, def.HasVetoRole([]string{"quality_manager"}))

	// 损坏的图数据报校验错误
	m.Data = []byte("broken")
	_, err = m.Definition()
	assert.True(t, workflow.IsValidation(err))
}

// TestInstanceMetadata 元数据快照的序列化与容错
func TestInstanceMetadata(t *testing.T) {
	instance := &model.WorkflowInstanceModel{ID: "wf-001"}
	require.NoError(t, instance.SetMetadata(map[string]interface{}{"severity": "major"}))
	assert.Equal(t, "major", instance.Metadata()["severity"])

	// 空快照和损坏快照都返回空 map
	instance.EntityMetadata = nil
	assert.Empty(t, instance.Metadata())
	instance.EntityMetadata = []byte("broken")
	assert.Empty(t, instance.Metadata())
}

// TestUserRoleNames 角色列表的序列化与容错
func TestUserRoleNames(t *testing.T) {
	user := &model.UserModel{ID: "user-001", Username: "zhang"}
	require.NoError(t, user.SetRoleNames([]string{"quality", "auditor"}))
	assert.Equal(t, []string{"quality", "auditor"}, user.RoleNames())

	user.Roles = nil
	assert.Nil(t, user.RoleNames())
	user.Roles = []byte("broken")
	assert.Nil(t, user.RoleNames())
}
