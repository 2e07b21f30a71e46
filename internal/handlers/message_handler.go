package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"

	"github.com/Gopher0727/SignalRoom/internal/services"
)

// MessageHandler 消息处理器
type MessageHandler struct {
	messageService *services.MessageService
	log            *logger.Logger
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageService *services.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		log:            log,
	}
}

// History 群组消息历史，按时间戳升序
func (h *MessageHandler) History(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Param("groupId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	messages, err := h.messageService.History(c.Request.Context(), groupID)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("load history failed",
			zap.Int64("group_id", groupID), zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}
