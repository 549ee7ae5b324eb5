package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qmsops/capa-gin/internal/model"
	"github.com/qmsops/capa-gin/internal/workflow"
	"gorm.io/gorm"
)

// deadlineEscalator 默认的超期升级实现
// 将超期指派标记为 escalated,并在同一步骤上为升级角色下
// 负载最低的用户创建新的待处理指派
type deadlineEscalator struct {
	db             *gorm.DB
	picker         workflow.WorkloadPicker
	escalationRole string
	now            func() time.Time
}

// NewDeadlineEscalator 创建默认超期升级器
func NewDeadlineEscalator(db *gorm.DB, picker workflow.WorkloadPicker, escalationRole string) Escalator {
	if escalationRole == "" {
		escalationRole = workflow.DefaultAssigneeRole
	}
	return &deadlineEscalator{
		db:             db,
		picker:         picker,
		escalationRole: escalationRole,
		now:            time.Now,
	}
}

// Escalate 升级指派
// 旧指派关闭为 escalated,新指派指向升级角色下选出的用户,
// 两步在同一事务内完成以维持单 pending 不变式
func (e *deadlineEscalator) Escalate(ctx context.Context, assignmentID string, reason string) (string, error) {
	var assignment model.StepAssignmentModel
	if err := e.db.WithContext(ctx).Where("id = ?", assignmentID).First(&assignment).Error; err != nil {
		return "", notFoundOr(err, "assignment", assignmentID)
	}
	if assignment.Status != model.AssignmentStatusPending {
		return "", workflow.ErrValidation("assignment %s is %s, only pending assignments can be escalated", assignment.ID, assignment.Status)
	}

	target, ok, err := e.picker.PickAssignee(ctx, e.escalationRole, "workload")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", workflow.ErrValidation("no active user holds escalation role %s", e.escalationRole)
	}

	now := e.now()
	deadline := now.Add(workflow.DefaultDeadline)
	replacement := &model.StepAssignmentModel{
		ID:                 uuid.New().String(),
		WorkflowInstanceID: assignment.WorkflowInstanceID,
		StepID:             assignment.StepID,
		AssignmentType:     string(workflow.AssignByUser),
		AssignedRole:       e.escalationRole,
		AssignedUserID:     target,
		Status:             model.AssignmentStatusPending,
		Deadline:           &deadline,
		CreatedAt:          now,
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment.Status = model.AssignmentStatusEscalated
		assignment.CompletedAt = &now
		assignment.Action = workflow.ActionEscalate
		assignment.Comment = reason
		if err := tx.Save(&assignment).Error; err != nil {
			return err
		}
		return tx.Create(replacement).Error
	})
	if err != nil {
		return "", err
	}

	return target, nil
}
