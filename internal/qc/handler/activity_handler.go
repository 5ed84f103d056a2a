package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sitepulse/siteqc/internal/qc/repository"
)

// ActivityHandler 活动日志处理器
type ActivityHandler struct {
	repos *repository.Repositories
}

// NewActivityHandler 创建活动日志处理器
func NewActivityHandler(repos *repository.Repositories) *ActivityHandler {
	return &ActivityHandler{repos: repos}
}

// ListByProject GET /projects/:id/activity
func (h *ActivityHandler) ListByProject(c *gin.Context) {
	projectID, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.repos.Project.FindByID(c.Request.Context(), projectID); err != nil {
		HandleServiceError(c, err)
		return
	}

	page, pageSize := GetPagination(c)
	logs, total, err := h.repos.ActivityLog.ListByProject(c.Request.Context(), projectID, (page-1)*pageSize, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, NewListResponse(logs, page, pageSize, total))
}

// ListByTask GET /tasks/:id/activity
func (h *ActivityHandler) ListByTask(c *gin.Context) {
	taskID, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.repos.Task.FindByID(c.Request.Context(), taskID); err != nil {
		HandleServiceError(c, err)
		return
	}

	logs, err := h.repos.ActivityLog.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, logs)
}
