package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"

	"github.com/Gopher0727/SignalRoom/internal/services"
)

// GroupHandler 群组处理器
type GroupHandler struct {
	groupService *services.GroupService
	log          *logger.Logger
}

// NewGroupHandler 创建群组处理器实例
func NewGroupHandler(groupService *services.GroupService, log *logger.Logger) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		log:          log,
	}
}

// CreateGroupRequest 创建群组请求
type CreateGroupRequest struct {
	GroupName string `json:"groupName"`
	UserID    int64  `json:"userId"`
}

// CreateGroup 创建群组，创建者是唯一的初始成员
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), req.GroupName, req.UserID)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("create group failed",
			zap.String("group_name", req.GroupName),
			zap.Int64("user_id", req.UserID),
			zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, group)
}

// ListGroups 列出所有群组（含解析后的成员用户名）
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupService.List(c.Request.Context())
	if err != nil {
		h.log.WithContext(c.Request.Context()).Error("list groups failed", zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, groups)
}
