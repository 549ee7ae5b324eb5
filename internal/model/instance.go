package model

import (
	"encoding/json"
	"errors"
	"time"
)

// 工作流实例状态
const (
	InstanceStatusActive    = "active"
	InstanceStatusCompleted = "completed"
	InstanceStatusCancelled = "cancelled"
)

// WorkflowInstanceModel 工作流实例数据模型
// 仅由工作流服务创建和变更,永不删除
type WorkflowInstanceModel struct {
	ID                   string     `gorm:"primaryKey;type:varchar(64)"`
	WorkflowDefinitionID string     `gorm:"type:varchar(64);not null;index"`
	EntityType           string     `gorm:"type:varchar(32);not null;index"`
	EntityID             string     `gorm:"type:varchar(64);not null;index"`
	CurrentStepID        string     `gorm:"type:varchar(64);not null"`
	Status               string     `gorm:"type:varchar(16);not null;index"` // active/completed/cancelled
	EntityMetadata       []byte     `gorm:"type:jsonb"`                      // 启动时捕获的实体快照,条件路由据此评估
	StartedAt            time.Time  `gorm:"not null;index"`
	CompletedAt          *time.Time `gorm:"index"`
	CreatedBy            string     `gorm:"type:varchar(64);index"` // 发起人 ID
}

// TableName 指定表名
func (WorkflowInstanceModel) TableName() string {
	return "workflow_instances"
}

// Validate 验证实例模型
func (m *WorkflowInstanceModel) Validate() error {
	if m.ID == "" {
		return errors.New("instance ID is required")
	}
	if m.WorkflowDefinitionID == "" {
		return errors.New("instance definition ID is required")
	}
	if m.EntityID == "" {
		return errors.New("instance entity ID is required")
	}
	if m.CurrentStepID == "" {
		return errors.New("instance current step is required")
	}
	if m.Status == "" {
		return errors.New("instance status is required")
	}
	return nil
}

// Metadata 反序列化实体元数据快照
func (m *WorkflowInstanceModel) Metadata() map[string]interface{} {
	if len(m.EntityMetadata) == 0 {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(m.EntityMetadata, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// SetMetadata 序列化实体元数据快照
func (m *WorkflowInstanceModel) SetMetadata(metadata map[string]interface{}) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	m.EntityMetadata = data
	return nil
}
