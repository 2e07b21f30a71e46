package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SignalRoom/internal/services"
	"github.com/Gopher0727/SignalRoom/internal/store"
)

// writeError 把服务层错误分类映射到 HTTP 状态码
// ValidationError -> 400, AuthError -> 401, 未知引用 -> 404
func writeError(c *gin.Context, err error) {
	var vErr *services.ValidationError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, services.ErrAuth):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
