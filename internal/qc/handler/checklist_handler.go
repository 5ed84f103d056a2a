package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/service"
)

// ChecklistHandler 检查清单处理器
type ChecklistHandler struct {
	svc *service.ChecklistService
}

// NewChecklistHandler 创建检查清单处理器
func NewChecklistHandler(svc *service.ChecklistService) *ChecklistHandler {
	return &ChecklistHandler{svc: svc}
}

type createTemplateRequest struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category"`
	Stage    string `json:"stage"`
	Items    []struct {
		ItemText string `json:"item_text" binding:"required"`
		Order    int    `json:"order"`
		Required *bool  `json:"required"`
	} `json:"items"`
}

// CreateTemplate POST /checklist-templates
func (h *ChecklistHandler) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	template := &entity.ChecklistTemplate{
		Name:      req.Name,
		Category:  req.Category,
		Stage:     req.Stage,
		CreatedBy: GetUserID(c),
	}
	for _, item := range req.Items {
		required := true
		if item.Required != nil {
			required = *item.Required
		}
		template.Items = append(template.Items, entity.TemplateItem{
			ItemText: item.ItemText,
			Order:    item.Order,
			Required: required,
		})
	}

	if err := h.svc.CreateTemplate(c.Request.Context(), template); err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, template)
}

// GetTemplate GET /checklist-templates/:id
func (h *ChecklistHandler) GetTemplate(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	template, err := h.svc.GetTemplate(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, template)
}

// ListTemplates GET /checklist-templates
func (h *ChecklistHandler) ListTemplates(c *gin.Context) {
	page, pageSize := GetPagination(c)
	templates, total, err := h.svc.ListTemplates(c.Request.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, NewListResponse(templates, page, pageSize, total))
}

type createInstanceRequest struct {
	TaskID     int64 `json:"task_id" binding:"required"`
	TemplateID int64 `json:"template_id" binding:"required"`
}

// CreateInstance POST /checklists
func (h *ChecklistHandler) CreateInstance(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	instance, err := h.svc.CreateInstance(c.Request.Context(), req.TaskID, req.TemplateID, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, instance)
}

// GetInstance GET /checklists/:id
func (h *ChecklistHandler) GetInstance(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	instance, err := h.svc.GetInstance(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, instance)
}

// ListByTask GET /tasks/:id/checklists
func (h *ChecklistHandler) ListByTask(c *gin.Context) {
	taskID, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	instances, err := h.svc.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, instances)
}

// CompleteItem POST /checklist-items/:id/complete
func (h *ChecklistHandler) CompleteItem(c *gin.Context) {
	itemID, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.CompleteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.CompletedBy = GetUserID(c)

	if err := h.svc.CompleteItem(c.Request.Context(), itemID, req); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ResetInstance POST /checklists/:id/reset
func (h *ChecklistHandler) ResetInstance(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.ResetInstance(c.Request.Context(), id); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}
