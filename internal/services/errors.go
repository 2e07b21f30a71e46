package services

import (
	"errors"
	"fmt"
)

// ErrAuth 密码不匹配，对外统一 401
var ErrAuth = errors.New("username or password incorrect")

// ValidationError 缺少必填字段，对外统一 400
// 未知的用户/群组引用复用 store.ErrNotFound，对外 404
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}
