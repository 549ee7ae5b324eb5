package model

import (
	"errors"
	"time"
)

// 步骤指派状态
const (
	AssignmentStatusPending   = "pending"
	AssignmentStatusCompleted = "completed"
	AssignmentStatusRejected  = "rejected"
	AssignmentStatusEscalated = "escalated"
)

// StepAssignmentModel 步骤指派数据模型,实例当前步骤的待处理工作单元
// 不变式: 活跃实例同一时刻至多一条 pending 指派,且必须位于当前步骤
type StepAssignmentModel struct {
	ID                 string     `gorm:"primaryKey;type:varchar(64)"`
	WorkflowInstanceID string     `gorm:"type:varchar(64);not null;index"`
	StepID             string     `gorm:"type:varchar(64);not null"`
	AssignmentType     string     `gorm:"type:varchar(16);not null"` // role/user/auto
	AssignedRole       string     `gorm:"type:varchar(64);index"`
	AssignedUserID     string     `gorm:"type:varchar(64);index"`
	Status             string     `gorm:"type:varchar(16);not null;index"` // pending/completed/rejected/escalated
	Deadline           *time.Time `gorm:"index"`
	CompletedAt        *time.Time
	CompletedBy        string    `gorm:"type:varchar(64)"`
	Action             string    `gorm:"type:varchar(32)"` // 关闭指派的动作
	Comment            string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (StepAssignmentModel) TableName() string {
	return "step_assignments"
}

// Validate 验证指派模型
func (m *StepAssignmentModel) Validate() error {
	if m.ID == "" {
		return errors.New("assignment ID is required")
	}
	if m.WorkflowInstanceID == "" {
		return errors.New("assignment instance ID is required")
	}
	if m.StepID == "" {
		return errors.New("assignment step ID is required")
	}
	if m.Status == "" {
		return errors.New("assignment status is required")
	}
	return nil
}

// IsOverdue 判断指派是否已超期
func (m *StepAssignmentModel) IsOverdue(now time.Time) bool {
	return m.Status == AssignmentStatusPending && m.Deadline != nil && m.Deadline.Before(now)
}
