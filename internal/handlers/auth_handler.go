package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"

	"github.com/Gopher0727/SignalRoom/internal/services"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService *services.AuthService
	log         *logger.Logger
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(authService *services.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 登录；首次出现的用户名自动注册
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("login failed",
			zap.String("username", req.Username), zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
