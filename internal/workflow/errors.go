package workflow

import (
	"errors"
	"fmt"
)

// NotFoundError 资源不存在错误
type NotFoundError struct {
	Resource string // 资源类型: definition, instance, assignment, delegation, user
	ID       string // 资源 ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError 业务校验错误
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PermissionError 权限校验错误,携带权限检查器的拒绝原因
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Reason
}

// ErrNotFound 创建资源不存在错误
func ErrNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ErrValidation 创建业务校验错误
func ErrValidation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrPermission 创建权限校验错误
func ErrPermission(reason string) error {
	return &PermissionError{Reason: reason}
}

// IsNotFound 判断是否为资源不存在错误
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation 判断是否为业务校验错误
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsPermission 判断是否为权限校验错误
func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}
