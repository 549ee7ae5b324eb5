package model

import (
	"errors"
	"time"
)

// WorkflowDelegationModel 工作流委托数据模型
// 有时限的权限转移记录,由 FromUserID 所有;只停用不物理删除
type WorkflowDelegationModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	FromUserID string    `gorm:"type:varchar(64);not null;index"`
	ToUserID   string    `gorm:"type:varchar(64);not null;index"`
	Role       string    `gorm:"type:varchar(64);not null;index"`
	EntityType string    `gorm:"type:varchar(32);index"` // 可选的实体类型范围,为空表示全部
	StartDate  time.Time `gorm:"not null"`
	EndDate    time.Time `gorm:"not null"`
	Reason     string    `gorm:"type:text"`
	// 不能带列默认值,否则 gorm 创建时会省略 false 写入默认值
	IsActive   bool      `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (WorkflowDelegationModel) TableName() string {
	return "workflow_delegations"
}

// Validate 验证委托模型
func (m *WorkflowDelegationModel) Validate() error {
	if m.ID == "" {
		return errors.New("delegation ID is required")
	}
	if m.FromUserID == "" {
		return errors.New("delegation from user is required")
	}
	if m.ToUserID == "" {
		return errors.New("delegation to user is required")
	}
	if m.Role == "" {
		return errors.New("delegation role is required")
	}
	if !m.StartDate.Before(m.EndDate) {
		return errors.New("delegation start date must be before end date")
	}
	return nil
}

// ActiveAt 判断委托在给定时间点是否有效
func (m *WorkflowDelegationModel) ActiveAt(t time.Time) bool {
	return m.IsActive && !t.Before(m.StartDate) && !t.After(m.EndDate)
}
