package auth

import (
	"encoding/json"
	"fmt"
)

// Constraints 权限规则约束谓词
// 每个字段为一种约束类型,规则命中要求所有存在的约束同时成立
type Constraints struct {
	Department string   `json:"department,omitempty"` // "own": 实体所属部门等于用户部门
	Status     []string `json:"status,omitempty"`     // 实体状态在列表内
	Owner      string   `json:"owner,omitempty"`      // "self": 实体创建人是用户自己
	Assigned   string   `json:"assigned,omitempty"`   // "self": 实体处理人是用户自己
}

// EntityRef 权限检查用的实体快照
// 引擎只依赖这些通用字段,不感知实体的具体业务结构
type EntityRef struct {
	Type               string `json:"type"`
	ID                 string `json:"id"`
	DepartmentID       string `json:"department_id"`
	Status             string `json:"status"`
	CreatedBy          string `json:"created_by"`
	AssignedTo         string `json:"assigned_to"`
	WorkflowInstanceID string `json:"workflow_instance_id"`
}

// ParseConstraints 解析权限规则的约束 JSON,空数据返回 nil
func ParseConstraints(raw []byte) (*Constraints, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var c Constraints
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("invalid permission constraints: %w", err)
	}
	if c.Empty() {
		return nil, nil
	}
	return &c, nil
}

// Empty 判断约束是否为空
func (c *Constraints) Empty() bool {
	if c == nil {
		return true
	}
	return c.Department == "" && len(c.Status) == 0 && c.Owner == "" && c.Assigned == ""
}

// EvaluateConstraints 评估约束谓词
// 纯函数: 所有存在的约束对给定实体和用户同时成立时返回 true
// 约束非空但实体为 nil 时返回 false
func EvaluateConstraints(c *Constraints, entity *EntityRef, user *Identity) bool {
	if c.Empty() {
		return true
	}
	if entity == nil || user == nil {
		return false
	}

	if c.Department == "own" {
		if entity.DepartmentID == "" || entity.DepartmentID != user.DepartmentID {
			return false
		}
	}

	if len(c.Status) > 0 {
		found := false
		for _, s := range c.Status {
			if s == entity.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if c.Owner == "self" && entity.CreatedBy != user.ID {
		return false
	}

	if c.Assigned == "self" && entity.AssignedTo != user.ID {
		return false
	}

	return true
}
