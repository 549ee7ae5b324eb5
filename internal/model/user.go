package model

import (
	"encoding/json"
	"errors"
	"time"
)

// UserModel 用户目录投影
// 委托目标校验和负载选人依赖的最小用户信息,由外部用户目录同步维护
type UserModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	Username     string    `gorm:"type:varchar(128);not null;index"`
	Email        string    `gorm:"type:varchar(255)"`
	DepartmentID string    `gorm:"type:varchar(64);index"`
	Roles        []byte    `gorm:"type:jsonb"` // 角色名列表
	IsActive     bool      `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// Validate 验证用户模型
func (m *UserModel) Validate() error {
	if m.ID == "" {
		return errors.New("user ID is required")
	}
	if m.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

// RoleNames 反序列化角色名列表
func (m *UserModel) RoleNames() []string {
	if len(m.Roles) == 0 {
		return nil
	}
	var roles []string
	if err := json.Unmarshal(m.Roles, &roles); err != nil {
		return nil
	}
	return roles
}

// SetRoleNames 序列化角色名列表
func (m *UserModel) SetRoleNames(roles []string) error {
	data, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	m.Roles = data
	return nil
}
