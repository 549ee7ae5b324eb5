package model

import (
	"errors"
	"time"
)

// WorkflowTimelineModel 工作流时间线数据模型
// 只追加的审计轨迹,记录每次状态变更,永不修改或删除
type WorkflowTimelineModel struct {
	ID                 string    `gorm:"primaryKey;type:varchar(64)"`
	WorkflowInstanceID string    `gorm:"type:varchar(64);not null;index"`
	StepID             string    `gorm:"type:varchar(64);not null"`
	Action             string    `gorm:"type:varchar(32);not null"`
	PerformedBy        string    `gorm:"type:varchar(64);not null;index"`
	Comment            string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (WorkflowTimelineModel) TableName() string {
	return "workflow_timeline"
}

// Validate 验证时间线模型
func (m *WorkflowTimelineModel) Validate() error {
	if m.ID == "" {
		return errors.New("timeline entry ID is required")
	}
	if m.WorkflowInstanceID == "" {
		return errors.New("timeline instance ID is required")
	}
	if m.Action == "" {
		return errors.New("timeline action is required")
	}
	if m.PerformedBy == "" {
		return errors.New("timeline performer is required")
	}
	return nil
}
