package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sitepulse/siteqc/internal/qc/service"
)

// InspectionHandler 检验提交处理器
type InspectionHandler struct {
	svc *service.InspectionService
}

// NewInspectionHandler 创建检验处理器
func NewInspectionHandler(svc *service.InspectionService) *InspectionHandler {
	return &InspectionHandler{svc: svc}
}

// Submit POST /checklists/:id/submit
func (h *InspectionHandler) Submit(c *gin.Context) {
	checklistID, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req service.SubmitInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.ChecklistID = checklistID
	req.InspectedBy = GetUserID(c)

	result, err := h.svc.SubmitInspection(c.Request.Context(), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, result)
}
