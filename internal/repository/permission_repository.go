package repository

import (
	"context"

	"github.com/qmsops/capa-gin/internal/auth"
	"github.com/qmsops/capa-gin/internal/model"
	"gorm.io/gorm"
)

// PermissionRepository 角色权限规则仓储接口,实现 auth.RuleSource
type PermissionRepository interface {
	Rules(ctx context.Context, roles []string, resource, action string) ([]auth.Rule, error)
	Save(ctx context.Context, rule *model.RolePermissionModel) error
}

// permissionRepository 角色权限规则仓储实现
type permissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository 创建角色权限规则仓储
func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

// Rules 查找用户角色集合在 (resource, action) 上的权限规则
// 角色匹配大小写不敏感,约束 JSON 在此解析为谓词对象
func (r *permissionRepository) Rules(ctx context.Context, roles []string, resource, action string) ([]auth.Rule, error) {
	normalized := auth.NormalizeRoles(roles)
	if len(normalized) == 0 {
		return nil, nil
	}

	var records []*model.RolePermissionModel
	err := r.db.WithContext(ctx).
		Where("LOWER(role) IN ? AND resource = ? AND action = ?", normalized, resource, action).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	rules := make([]auth.Rule, 0, len(records))
	for _, record := range records {
		constraints, err := auth.ParseConstraints(record.Constraints)
		if err != nil {
			return nil, err
		}
		rules = append(rules, auth.Rule{
			Role:        record.Role,
			Constraints: constraints,
		})
	}
	return rules, nil
}

// Save 保存权限规则
func (r *permissionRepository) Save(ctx context.Context, rule *model.RolePermissionModel) error {
	return r.db.WithContext(ctx).Save(rule).Error
}
