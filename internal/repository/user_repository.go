package repository

import (
	"context"
	"strings"

	"github.com/qmsops/capa-gin/internal/model"
	"gorm.io/gorm"
)

// UserRepository 用户目录仓储接口
type UserRepository interface {
	Save(ctx context.Context, user *model.UserModel) error
	FindByID(ctx context.Context, id string) (*model.UserModel, error)
	Exists(ctx context.Context, id string) (bool, error)
	// FindActiveByRole 查找持有指定角色的活跃用户(大小写不敏感)
	FindActiveByRole(ctx context.Context, role string) ([]*model.UserModel, error)
}

// userRepository 用户目录仓储实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户目录仓储
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Save 保存用户
func (r *userRepository) Save(ctx context.Context, user *model.UserModel) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// FindByID 根据 ID 查找用户
func (r *userRepository) FindByID(ctx context.Context, id string) (*model.UserModel, error) {
	var user model.UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Exists 判断用户是否存在
func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// FindActiveByRole 查找持有指定角色的活跃用户
// 角色列表存储为 JSON,跨数据库的 JSON 查询不可移植,故加载后在内存中过滤
func (r *userRepository) FindActiveByRole(ctx context.Context, role string) ([]*model.UserModel, error) {
	var users []*model.UserModel
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	matched := make([]*model.UserModel, 0, len(users))
	for _, user := range users {
		for _, r := range user.RoleNames() {
			if strings.EqualFold(r, role) {
				matched = append(matched, user)
				break
			}
		}
	}
	return matched, nil
}
