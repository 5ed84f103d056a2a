package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sitepulse/siteqc/internal/qc/service"
)

// DefectHandler 缺陷处理器
type DefectHandler struct {
	svc *service.DefectService
}

// NewDefectHandler 创建缺陷处理器
func NewDefectHandler(svc *service.DefectService) *DefectHandler {
	return &DefectHandler{svc: svc}
}

// Create POST /defects
func (h *DefectHandler) Create(c *gin.Context) {
	var req service.CreateDefectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.ReportedBy = GetUserID(c)

	defect, err := h.svc.CreateDefect(c.Request.Context(), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, defect)
}

// Get GET /defects/:id
func (h *DefectHandler) Get(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	defect, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, defect)
}

// ListByTask GET /tasks/:id/defects
func (h *DefectHandler) ListByTask(c *gin.Context) {
	taskID, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	defects, err := h.svc.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, defects)
}

// ListByProject GET /projects/:id/defects
func (h *DefectHandler) ListByProject(c *gin.Context) {
	projectID, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	page, pageSize := GetPagination(c)
	defects, total, err := h.svc.ListByProject(c.Request.Context(), projectID, c.Query("status"), (page-1)*pageSize, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, NewListResponse(defects, page, pageSize, total))
}

// Escalate POST /defects/:id/escalate
func (h *DefectHandler) Escalate(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.EscalatedBy = GetUserID(c)

	if err := h.svc.Escalate(c.Request.Context(), id, req); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// History GET /defects/:id/history
func (h *DefectHandler) History(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	histories, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, histories)
}

// Stats GET /projects/:id/defect-stats
func (h *DefectHandler) Stats(c *gin.Context) {
	projectID, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.svc.StatsByProject(c.Request.Context(), projectID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, stats)
}

// Resolve POST /defects/:id/resolve
func (h *DefectHandler) Resolve(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Resolve(c.Request.Context(), id, GetUserID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// Close POST /defects/:id/close
func (h *DefectHandler) Close(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Close(c.Request.Context(), id); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}
