package workflow

import (
	"sync"
)

// EntityType 工作流驱动的实体类型,封闭枚举
type EntityType string

const (
	EntityAudit   EntityType = "audit"   // 质量审核
	EntityFinding EntityType = "finding" // 审核发现
	EntityAction  EntityType = "action"  // 纠正/预防措施
	EntityDOF     EntityType = "dof"     // CAPA/DOF 记录
)

// Valid 判断实体类型是否合法
func (t EntityType) Valid() bool {
	switch t {
	case EntityAudit, EntityFinding, EntityAction, EntityDOF:
		return true
	}
	return false
}

// MetadataBuilder 实体元数据构建函数
// 从实体记录提取条件路由所需的字段快照,引擎不感知实体的具体业务字段
type MetadataBuilder func(entity map[string]interface{}) map[string]interface{}

var (
	buildersMu sync.RWMutex
	builders   = map[EntityType]MetadataBuilder{
		EntityAudit:   buildAuditMetadata,
		EntityFinding: buildFindingMetadata,
		EntityAction:  buildActionMetadata,
		EntityDOF:     buildDOFMetadata,
	}
)

// RegisterMetadataBuilder 注册实体元数据构建函数,覆盖同类型的已有注册
func RegisterMetadataBuilder(t EntityType, b MetadataBuilder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[t] = b
}

// BuildMetadata 构建实体元数据快照
// 快照在工作流启动时捕获一次,此后条件路由始终基于该快照评估
func BuildMetadata(t EntityType, entity map[string]interface{}) (map[string]interface{}, error) {
	if !t.Valid() {
		return nil, ErrValidation("unknown entity type: %s", t)
	}

	buildersMu.RLock()
	builder, ok := builders[t]
	buildersMu.RUnlock()
	if !ok {
		return nil, ErrValidation("no metadata builder registered for entity type: %s", t)
	}

	if entity == nil {
		entity = map[string]interface{}{}
	}
	return builder(entity), nil
}

// copyFields 从实体记录复制存在的字段
func copyFields(entity map[string]interface{}, keys ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := entity[k]; ok {
			out[k] = v
		}
	}
	return out
}

// buildAuditMetadata 构建审核元数据
func buildAuditMetadata(entity map[string]interface{}) map[string]interface{} {
	return copyFields(entity,
		"department_id", "status", "created_by", "assigned_to",
		"audit_type", "risk_level", "is_external")
}

// buildFindingMetadata 构建审核发现元数据
func buildFindingMetadata(entity map[string]interface{}) map[string]interface{} {
	return copyFields(entity,
		"department_id", "status", "created_by", "assigned_to",
		"severity", "category", "audit_id")
}

// buildActionMetadata 构建纠正/预防措施元数据
func buildActionMetadata(entity map[string]interface{}) map[string]interface{} {
	return copyFields(entity,
		"department_id", "status", "created_by", "assigned_to",
		"action_type", "priority", "finding_id")
}

// buildDOFMetadata 构建 CAPA/DOF 元数据
func buildDOFMetadata(entity map[string]interface{}) map[string]interface{} {
	return copyFields(entity,
		"department_id", "status", "created_by", "assigned_to",
		"severity", "source", "is_critical")
}
