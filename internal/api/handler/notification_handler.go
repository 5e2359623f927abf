package handler

import (
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/response"
	"Carhub/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
	preferenceService   service.PreferenceService
}

func NewNotificationHandler(n service.NotificationService, p service.PreferenceService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: n,
		preferenceService:   p,
	}
}

// List 获取通知列表
func (h *NotificationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	userID := c.GetUint64("user_id")

	list, err := h.notificationService.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, list)
}

// ListUnread 获取未读通知
func (h *NotificationHandler) ListUnread(c *gin.Context) {
	userID := c.GetUint64("user_id")

	list, err := h.notificationService.ListUnread(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, list)
}

// GetUnreadCount 获取未读数
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID := c.GetUint64("user_id")

	unread, err := h.notificationService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, unread)
}

// MarkRead 标记单条已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req dto.NotificationIDReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")
	if err := h.notificationService.MarkRead(c.Request.Context(), userID, req.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, nil)
}

// MarkAllRead 一键已读
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetUint64("user_id")
	res, err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, res)
}

// Delete 删除通知
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := c.GetUint64("user_id")
	if err := h.notificationService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, nil)
}

// Confirm 关键通知的送达确认，websocket 不可用时的兜底
func (h *NotificationHandler) Confirm(c *gin.Context) {
	var req dto.NotificationIDReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")
	if err := h.notificationService.Confirm(c.Request.Context(), userID, req.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, nil)
}

// Stats 当前用户的通知统计
func (h *NotificationHandler) Stats(c *gin.Context) {
	userID := c.GetUint64("user_id")
	stats, err := h.notificationService.Stats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// GetPreferences 获取通知偏好
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID := c.GetUint64("user_id")
	pref, err := h.preferenceService.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, pref)
}

// UpdatePreferences 更新通知偏好
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req dto.PreferenceDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")
	pref, err := h.preferenceService.Update(c.Request.Context(), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, pref)
}

// AdminStats 全局投递状态
func (h *NotificationHandler) AdminStats(c *gin.Context) {
	stats, err := h.notificationService.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// Announce 向指定用户发送系统公告
func (h *NotificationHandler) Announce(c *gin.Context) {
	var req dto.AnnounceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := h.notificationService.Announce(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, res)
}
