package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/qmsops/capa-gin/internal/workflow"
)

// WorkflowDefinitionModel 工作流定义数据模型
type WorkflowDefinitionModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	Name       string    `gorm:"type:varchar(255);not null;index"`
	EntityType string    `gorm:"type:varchar(32);not null;index"` // 实体类型: audit/finding/action/dof
	IsActive   bool      `gorm:"not null;index"`
	Data       []byte    `gorm:"type:jsonb;not null"` // 序列化后的步骤/流转/条件/否决角色图结构
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
	CreatedBy  string    `gorm:"type:varchar(64)"` // 创建人 ID
}

// TableName 指定表名
func (WorkflowDefinitionModel) TableName() string {
	return "workflow_definitions"
}

// Validate 验证定义模型
func (m *WorkflowDefinitionModel) Validate() error {
	if m.ID == "" {
		return errors.New("definition ID is required")
	}
	if m.Name == "" {
		return errors.New("definition name is required")
	}
	if m.EntityType == "" {
		return errors.New("definition entity type is required")
	}
	if len(m.Data) == 0 {
		return errors.New("definition data is required")
	}
	return nil
}

// Definition 反序列化为领域定义对象
func (m *WorkflowDefinitionModel) Definition() (*workflow.Definition, error) {
	graph, err := workflow.ParseGraph(m.Data)
	if err != nil {
		return nil, err
	}
	return &workflow.Definition{
		ID:         m.ID,
		Name:       m.Name,
		EntityType: workflow.EntityType(m.EntityType),
		IsActive:   m.IsActive,
		Graph:      *graph,
	}, nil
}

// SetGraph 序列化图结构到 Data 字段
func (m *WorkflowDefinitionModel) SetGraph(g *workflow.Graph) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	m.Data = data
	return nil
}
