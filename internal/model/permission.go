package model

import (
	"errors"
	"time"
)

// RolePermissionModel 角色权限规则数据模型
// 引擎视角只读,由外部访问控制子系统维护
type RolePermissionModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	Role        string    `gorm:"type:varchar(64);not null;index:idx_role_permissions_lookup"`
	Resource    string    `gorm:"type:varchar(64);not null;index:idx_role_permissions_lookup"`
	Action      string    `gorm:"type:varchar(64);not null;index:idx_role_permissions_lookup"`
	Constraints []byte    `gorm:"type:jsonb"` // 约束谓词: department/status/owner/assigned
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (RolePermissionModel) TableName() string {
	return "role_permissions"
}

// Validate 验证权限规则模型
func (m *RolePermissionModel) Validate() error {
	if m.ID == "" {
		return errors.New("permission rule ID is required")
	}
	if m.Role == "" {
		return errors.New("permission rule role is required")
	}
	if m.Resource == "" {
		return errors.New("permission rule resource is required")
	}
	if m.Action == "" {
		return errors.New("permission rule action is required")
	}
	return nil
}
