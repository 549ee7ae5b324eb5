package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qmsops/capa-gin/internal/database"
	"github.com/qmsops/capa-gin/internal/model"
	"github.com/qmsops/capa-gin/internal/repository"
	"github.com/qmsops/capa-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newDelegation(fromUser, toUser, role, entityType string, start, end time.Time, active bool) *model.WorkflowDelegationModel {
	now := time.Now()
	return &model.WorkflowDelegationModel{
		ID: uuid.New().String(), FromUserID: fromUser, ToUserID: toUser,
		Role: role, EntityType: entityType,
		StartDate: start, EndDate: end, IsActive: active,
		CreatedAt: now, UpdatedAt: now,
	}
}

// TestFindActiveDelegate 委托查询: 有效期、角色大小写、实体类型范围
func TestFindActiveDelegate(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewDelegationRepository(db)
	ctx := context.Background()
	now := time.Now()

	// 对全部实体类型生效的委托
	require.NoError(t, repo.Create(ctx, newDelegation(
		"user-001", "user-002", "Manager", "", now.Add(-time.Hour), now.Add(time.Hour), true)))

	delegate, ok, err := repo.FindActiveDelegate(ctx, "user-001", "manager", workflow.EntityDOF, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-002", delegate)

	// 角色不匹配
	_, ok, err = repo.FindActiveDelegate(ctx, "user-001", "quality", workflow.EntityDOF, now)
	require.NoError(t, err)
	assert.False(t, ok)

	// 有效期外
	_, ok, err = repo.FindActiveDelegate(ctx, "user-001", "manager", workflow.EntityDOF, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestFindActiveDelegate_EntityScope 按实体类型限定范围的委托只对该类型生效
func TestFindActiveDelegate_EntityScope(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewDelegationRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newDelegation(
		"user-001", "user-002", "manager", "audit", now.Add(-time.Hour), now.Add(time.Hour), true)))

	_, ok, err := repo.FindActiveDelegate(ctx, "user-001", "manager", workflow.EntityAudit, now)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = repo.FindActiveDelegate(ctx, "user-001", "manager", workflow.EntityDOF, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestDelegationCreatedInactive 创建时即停用的委托按停用状态落库
func TestDelegationCreatedInactive(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewDelegationRepository(db)
	ctx := context.Background()
	now := time.Now()

	created := newDelegation(
		"user-001", "user-002", "manager", "", now.Add(-time.Hour), now.Add(time.Hour), false)
	require.NoError(t, repo.Create(ctx, created))

	reloaded, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
}

// TestFindActiveDelegate_Inactive 停用的委托不参与解析
func TestFindActiveDelegate_Inactive(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewDelegationRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newDelegation(
		"user-001", "user-002", "manager", "", now.Add(-time.Hour), now.Add(time.Hour), false)))

	_, ok, err := repo.FindActiveDelegate(ctx, "user-001", "manager", workflow.EntityDOF, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func newAssignment(instanceID, role, userID, status string) *model.StepAssignmentModel {
	return &model.StepAssignmentModel{
		ID: uuid.New().String(), WorkflowInstanceID: instanceID, StepID: "review",
		AssignmentType: "role", AssignedRole: role, AssignedUserID: userID,
		Status: status, CreatedAt: time.Now(),
	}
}

// TestFindPendingFor 用户待办 = 指派给本人或其任一角色的 pending 指派
func TestFindPendingFor(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewAssignmentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newAssignment("wf-1", "Quality", "", model.AssignmentStatusPending)))
	require.NoError(t, repo.Create(ctx, newAssignment("wf-2", "", "user-001", model.AssignmentStatusPending)))
	require.NoError(t, repo.Create(ctx, newAssignment("wf-3", "manager", "", model.AssignmentStatusPending)))
	require.NoError(t, repo.Create(ctx, newAssignment("wf-4", "quality", "", model.AssignmentStatusCompleted)))

	tasks, err := repo.FindPendingFor(ctx, "user-001", []string{"quality"})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	// 无角色时只按用户匹配
	tasks, err = repo.FindPendingFor(ctx, "user-001", nil)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

// TestOnePendingPerInstance 数据库兜底: 同一实例不允许第二条 pending 指派
func TestOnePendingPerInstance(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewAssignmentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newAssignment("wf-1", "quality", "", model.AssignmentStatusPending)))
	err := repo.Create(ctx, newAssignment("wf-1", "manager", "", model.AssignmentStatusPending))
	assert.Error(t, err)

	// 关闭原指派后可以创建新的 pending
	pending, err := repo.FindPendingByInstance(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	pending.Status = model.AssignmentStatusCompleted
	require.NoError(t, repo.Save(ctx, pending))

	require.NoError(t, repo.Create(ctx, newAssignment("wf-1", "manager", "", model.AssignmentStatusPending)))
}

// TestPendingAssignee 权限检查器的工作流上下文数据源
func TestPendingAssignee(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewAssignmentRepository(db)
	ctx := context.Background()

	assignee, err := repo.PendingAssignee(ctx, "wf-1")
	require.NoError(t, err)
	assert.Nil(t, assignee)

	require.NoError(t, repo.Create(ctx, newAssignment("wf-1", "quality", "user-001", model.AssignmentStatusPending)))

	assignee, err = repo.PendingAssignee(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, assignee)
	assert.Equal(t, "user-001", assignee.AssignedUserID)
	assert.Equal(t, "quality", assignee.AssignedRole)
}
