package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sitepulse/siteqc/internal/qc/service"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	svc *service.NotificationService
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	userID := GetUserID(c)
	if userID <= 0 {
		Forbidden(c, "未登录")
		return
	}
	page, pageSize := GetPagination(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, total, err := h.svc.List(c.Request.Context(), userID, unreadOnly, (page-1)*pageSize, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, NewListResponse(notifications, page, pageSize, total))
}

// UnreadCount GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := GetUserID(c)
	if userID <= 0 {
		Forbidden(c, "未登录")
		return
	}
	count, err := h.svc.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"count": count})
}

// MarkRead POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), id, GetUserID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// MarkAllRead POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := GetUserID(c)
	if userID <= 0 {
		Forbidden(c, "未登录")
		return
	}
	if err := h.svc.MarkAllRead(c.Request.Context(), userID); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}
