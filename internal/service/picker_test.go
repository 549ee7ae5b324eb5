package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qmsops/capa-gin/internal/model"
	"github.com/qmsops/capa-gin/internal/repository"
	"github.com/qmsops/capa-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedPendingAssignment 为用户插入一条待处理指派
func seedPendingAssignment(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	require.NoError(t, db.Create(&model.StepAssignmentModel{
		ID:                 uuid.New().String(),
		WorkflowInstanceID: uuid.New().String(),
		StepID:             "review",
		AssignmentType:     "user",
		AssignedUserID:     userID,
		Status:             model.AssignmentStatusPending,
		CreatedAt:          time.Now(),
	}).Error)
}

// TestPickAssignee_LeastLoaded 选择待处理指派最少的角色持有者
func TestPickAssignee_LeastLoaded(t *testing.T) {
	_, db := setupEnv(t)
	picker := service.NewWorkloadPicker(
		repository.NewUserRepository(db),
		repository.NewAssignmentRepository(db),
	)

	// quality 角色: user-qa1 有 2 条待处理,user-qa2 有 1 条
	seedPendingAssignment(t, db, "user-qa1")
	seedPendingAssignment(t, db, "user-qa1")
	seedPendingAssignment(t, db, "user-qa2")

	picked, ok, err := picker.PickAssignee(context.Background(), "quality", "workload")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-qa2", picked)
}

// TestPickAssignee_TieBreak 负载相同时按用户 ID 取最小保证确定性
func TestPickAssignee_TieBreak(t *testing.T) {
	_, db := setupEnv(t)
	picker := service.NewWorkloadPicker(
		repository.NewUserRepository(db),
		repository.NewAssignmentRepository(db),
	)

	picked, ok, err := picker.PickAssignee(context.Background(), "Quality", "workload")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-qa1", picked)
}

// TestPickAssignee_NoCandidates 角色下没有活跃用户时返回未命中
func TestPickAssignee_NoCandidates(t *testing.T) {
	_, db := setupEnv(t)
	picker := service.NewWorkloadPicker(
		repository.NewUserRepository(db),
		repository.NewAssignmentRepository(db),
	)

	picked, ok, err := picker.PickAssignee(context.Background(), "nonexistent_role", "workload")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, picked)
}

// TestPickAssignee_InactiveSkipped 停用的用户不参与选人
func TestPickAssignee_InactiveSkipped(t *testing.T) {
	_, db := setupEnv(t)
	require.NoError(t, db.Model(&model.UserModel{}).
		Where("id = ?", "user-qa1").
		Update("is_active", false).Error)

	picker := service.NewWorkloadPicker(
		repository.NewUserRepository(db),
		repository.NewAssignmentRepository(db),
	)

	picked, ok, err := picker.PickAssignee(context.Background(), "quality", "workload")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-qa2", picked)
}
