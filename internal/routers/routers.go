package routers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"

	"github.com/Gopher0727/SignalRoom/internal/handlers"
	"github.com/Gopher0727/SignalRoom/internal/ws"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine,
	authHandler *handlers.AuthHandler,
	groupHandler *handlers.GroupHandler,
	messageHandler *handlers.MessageHandler,
	gateway *ws.Gateway, // 注入长连接网关
	log *logger.Logger,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.Use(requestLogger(log))

	// WebSocket 路由：连接先匿名，身份由 login 事件确立
	r.GET("/ws", gateway.ServeWs)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	r.POST("/login", authHandler.Login)
	r.POST("/groups", groupHandler.CreateGroup)
	r.GET("/groups", groupHandler.ListGroups)
	r.GET("/history/:groupId", messageHandler.History)
}

// requestLogger 给每个请求挂 trace_id 并记录结构化访问日志
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := logger.NewTraceID()
		ctx := logger.ContextWithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		log.WithTraceID(traceID).Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
