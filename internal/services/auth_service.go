package services

import (
	"context"
	"errors"

	"github.com/Gopher0727/SignalRoom/internal/models"
	"github.com/Gopher0727/SignalRoom/internal/store"
	"github.com/Gopher0727/SignalRoom/pkg/utils"
)

// AuthService 认证服务
// 首次出现的用户名自动注册；密码只存 bcrypt 哈希
type AuthService struct {
	store store.Store
}

// NewAuthService 创建认证服务实例
func NewAuthService(st store.Store) *AuthService {
	return &AuthService{store: st}
}

// AuthResponse 认证响应
type AuthResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Login 登录；用户名没见过就注册，见过就校验密码
// 同一凭证重复登录返回同一个 userId
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	if username == "" {
		return nil, &ValidationError{Field: "username"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password"}
	}

	user, err := s.store.UserByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// 首次登录，自动注册
		hash, err := utils.HashPassword(password)
		if err != nil {
			return nil, err
		}
		user, err = s.store.CreateUser(ctx, username, hash)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if !utils.CheckPassword(user.PasswordHash, password) {
			return nil, ErrAuth
		}
	}

	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		UserID:   user.ID,
		Username: user.Username,
		Token:    token,
	}, nil
}

// UserByID 按 ID 解析用户（WebSocket login 事件用）
func (s *AuthService) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.store.UserByID(ctx, id)
}
