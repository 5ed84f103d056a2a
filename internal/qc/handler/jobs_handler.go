package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitepulse/siteqc/internal/qc/jobs"
	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/qc/service"
)

// JobsHandler 周期任务的手动触发入口，仅限管理员排障使用
type JobsHandler struct {
	repos    *repository.Repositories
	services *service.Services
	clock    service.Clock
	logger   *zap.Logger
}

// NewJobsHandler 创建任务触发处理器
func NewJobsHandler(repos *repository.Repositories, services *service.Services, clock service.Clock, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{repos: repos, services: services, clock: clock, logger: logger}
}

// TriggerEscalationCheck POST /jobs/escalation-check
func (h *JobsHandler) TriggerEscalationCheck(c *gin.Context) {
	escalated, err := h.services.Defect.CheckAndEscalateOverdueDefects(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"escalated": escalated})
}

// TriggerDeadlineReminders POST /jobs/deadline-reminders
func (h *JobsHandler) TriggerDeadlineReminders(c *gin.Context) {
	jobs.DeadlineReminders(c.Request.Context(), h.repos, h.services.Notification, h.clock, h.logger)
	Success(c, nil)
}

// TriggerChecklistReminders POST /jobs/checklist-reminders
func (h *JobsHandler) TriggerChecklistReminders(c *gin.Context) {
	jobs.ChecklistReminders(c.Request.Context(), h.repos, h.services.Notification, h.clock, h.logger)
	Success(c, nil)
}
