package workflow_test

import (
	"testing"

	"github.com/qmsops/capa-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEntityTypeValid 测试实体类型枚举
func TestEntityTypeValid(t *testing.T) {
	assert.True(t, workflow.EntityAudit.Valid())
	assert.True(t, workflow.EntityFinding.Valid())
	assert.True(t, workflow.EntityAction.Valid())
	assert.True(t, workflow.EntityDOF.Valid())
	assert.False(t, workflow.EntityType("invoice").Valid())
	assert.False(t, workflow.EntityType("").Valid())
}

// TestBuildMetadata_DOF DOF 快照只包含白名单字段
func TestBuildMetadata_DOF(t *testing.T) {
	entity := map[string]interface{}{
		"department_id": "dept-01",
		"status":        "draft",
		"created_by":    "user-001",
		"severity":      "major",
		"is_critical":   true,
		"secret_notes":  "should not leak",
	}

	metadata, err := workflow.BuildMetadata(workflow.EntityDOF, entity)
	require.NoError(t, err)

	assert.Equal(t, "dept-01", metadata["department_id"])
	assert.Equal(t, "major", metadata["severity"])
	assert.Equal(t, true, metadata["is_critical"])
	assert.NotContains(t, metadata, "secret_notes")
	// 实体记录中不存在的白名单字段不出现在快照里
	assert.NotContains(t, metadata, "assigned_to")
}

// TestBuildMetadata_UnknownType 未知实体类型报校验错误
func TestBuildMetadata_UnknownType(t *testing.T) {
	_, err := workflow.BuildMetadata("invoice", map[string]interface{}{})
	assert.True(t, workflow.IsValidation(err))
}

// TestBuildMetadata_NilEntity 空实体返回空快照
func TestBuildMetadata_NilEntity(t *testing.T) {
	metadata, err := workflow.BuildMetadata(workflow.EntityAudit, nil)
	require.NoError(t, err)
	assert.Empty(t, metadata)
}
