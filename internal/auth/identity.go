package auth

import (
	"context"
	"strings"
)

// Identity 已认证用户身份,由认证中间件从 token 声明填充
type Identity struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	DepartmentID string   `json:"department_id"`
	Roles        []string `json:"roles"`
}

// HasRole 判断用户是否持有指定角色(大小写不敏感)
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// identityKey context 中身份信息的键类型
type identityKey struct{}

// WithIdentity 将身份信息写入 context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext 从 context 中读取身份信息,未认证时返回 nil
func IdentityFromContext(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}
	if identity, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return identity
	}
	return nil
}
