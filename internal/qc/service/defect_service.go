package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
)

// DefectService 缺陷升级引擎
// 严重度阶梯 low < medium < high < critical，只升不降；
// 每次升级在同一事务内写严重度、升级层级和一条升级历史
type DefectService struct {
	db           *gorm.DB
	repos        *repository.Repositories
	notification *NotificationService
	clock        Clock
	logger       *zap.Logger
}

// NewDefectService 创建缺陷服务
func NewDefectService(db *gorm.DB, repos *repository.Repositories, notification *NotificationService, clock Clock, logger *zap.Logger) *DefectService {
	return &DefectService{
		db:           db,
		repos:        repos,
		notification: notification,
		clock:        clock,
		logger:       logger,
	}
}

// CreateDefectRequest 手工上报缺陷
type CreateDefectRequest struct {
	ProjectID   int64      `json:"project_id" binding:"required"`
	TaskID      int64      `json:"task_id" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	ReportedBy  int64      `json:"reported_by"`
	AssignedTo  *int64     `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
	PhotoURLs   []string   `json:"photo_urls"`
}

// CreateDefect 手工创建缺陷
func (s *DefectService) CreateDefect(ctx context.Context, req CreateDefectRequest) (*entity.Defect, error) {
	if req.ProjectID <= 0 || req.TaskID <= 0 {
		return nil, fmt.Errorf("%w: 项目ID和任务ID必须为正整数", ErrInvalidArgument)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("%w: 缺陷标题不能为空", ErrInvalidArgument)
	}
	severity := req.Severity
	if severity == "" {
		severity = entity.SeverityMedium
	}
	if !entity.IsValidSeverity(severity) {
		return nil, fmt.Errorf("%w: 非法严重度 %q", ErrInvalidArgument, severity)
	}

	if _, err := s.repos.Task.FindByID(ctx, req.TaskID); err != nil {
		return nil, err
	}

	defect := &entity.Defect{
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Title:       req.Title,
		Description: req.Description,
		Severity:    severity,
		Status:      entity.DefectStatusOpen,
		ReportedBy:  req.ReportedBy,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
		PhotoURLs:   entity.StringList(req.PhotoURLs),
	}
	if err := s.repos.Defect.Create(ctx, defect); err != nil {
		return nil, err
	}

	if defect.AssignedTo != nil {
		s.notification.Notify(ctx, &entity.Notification{
			UserID:           *defect.AssignedTo,
			Type:             entity.NotificationDefectAssigned,
			Title:            "新缺陷已指派",
			Content:          fmt.Sprintf("缺陷「%s」已指派给你处理", defect.Title),
			Priority:         entity.PriorityNormal,
			RelatedTaskID:    &defect.TaskID,
			RelatedProjectID: &defect.ProjectID,
			RelatedDefectID:  &defect.ID,
		})
	}
	return defect, nil
}

// GetByID 查询缺陷
func (s *DefectService) GetByID(ctx context.Context, id int64) (*entity.Defect, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: 缺陷ID必须为正整数", ErrInvalidArgument)
	}
	return s.repos.Defect.FindByID(ctx, id)
}

// ListByTask 查询任务下的缺陷
func (s *DefectService) ListByTask(ctx context.Context, taskID int64) ([]entity.Defect, error) {
	if taskID <= 0 {
		return nil, fmt.Errorf("%w: 任务ID必须为正整数", ErrInvalidArgument)
	}
	return s.repos.Defect.ListByTask(ctx, taskID)
}

// ListByProject 查询项目下的缺陷
func (s *DefectService) ListByProject(ctx context.Context, projectID int64, status string, offset, limit int) ([]entity.Defect, int64, error) {
	if projectID <= 0 {
		return nil, 0, fmt.Errorf("%w: 项目ID必须为正整数", ErrInvalidArgument)
	}
	return s.repos.Defect.ListByProject(ctx, projectID, status, offset, limit)
}

// History 查询缺陷的升级历史
func (s *DefectService) History(ctx context.Context, defectID int64) ([]entity.EscalationHistory, error) {
	if defectID <= 0 {
		return nil, fmt.Errorf("%w: 缺陷ID必须为正整数", ErrInvalidArgument)
	}
	if _, err := s.repos.Defect.FindByID(ctx, defectID); err != nil {
		return nil, err
	}
	return s.repos.Defect.ListHistory(ctx, defectID)
}

// StatsByProject 统计项目未关闭缺陷按严重度的分布
func (s *DefectService) StatsByProject(ctx context.Context, projectID int64) (map[string]int64, error) {
	if projectID <= 0 {
		return nil, fmt.Errorf("%w: 项目ID必须为正整数", ErrInvalidArgument)
	}
	if _, err := s.repos.Project.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repos.Defect.CountByProjectAndSeverity(ctx, projectID)
}

// EscalateRequest 升级缺陷
type EscalateRequest struct {
	EscalatedBy int64   `json:"escalated_by"`
	NewSeverity string  `json:"new_severity" binding:"required"`
	Reason      string  `json:"reason"`
	NotifyUsers []int64 `json:"notify_users"`
}

// Escalate 手工升级缺陷严重度
// 新严重度必须在阶梯上严格更高，critical不可再升级；
// 升级层级+1并追加一条升级历史，三者同一事务提交
func (s *DefectService) Escalate(ctx context.Context, defectID int64, req EscalateRequest) error {
	if defectID <= 0 {
		return fmt.Errorf("%w: 缺陷ID必须为正整数", ErrInvalidArgument)
	}
	if !entity.IsValidSeverity(req.NewSeverity) {
		return fmt.Errorf("%w: 非法严重度 %q", ErrInvalidArgument, req.NewSeverity)
	}

	now := s.clock()
	var defect entity.Defect
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 行锁下复核阶梯：并发升级时后提交者基于已升级后的严重度重新校验
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&defect, defectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return err
		}
		if defect.Status == entity.DefectStatusResolved || defect.Status == entity.DefectStatusClosed {
			return fmt.Errorf("%w: 缺陷已%s，不能升级", ErrInvalidTransition, defect.Status)
		}
		if entity.SeverityRank(req.NewSeverity) <= entity.SeverityRank(defect.Severity) {
			return fmt.Errorf("%w: 严重度必须严格高于当前 %s", ErrInvalidTransition, defect.Severity)
		}

		err := tx.Model(&entity.Defect{}).Where("id = ?", defectID).Updates(map[string]interface{}{
			"severity":         req.NewSeverity,
			"escalation_level": gorm.Expr("escalation_level + 1"),
		}).Error
		if err != nil {
			return err
		}
		return tx.Create(&entity.EscalationHistory{
			DefectID:     defectID,
			ProjectID:    defect.ProjectID,
			FromSeverity: defect.Severity,
			ToSeverity:   req.NewSeverity,
			Reason:       req.Reason,
			EscalatedBy:  req.EscalatedBy,
			EscalatedAt:  now,
		}).Error
	})
	if err != nil {
		return err
	}

	priority := entity.PriorityHigh
	if req.NewSeverity == entity.SeverityCritical {
		priority = entity.PriorityUrgent
	}
	notice := entity.Notification{
		Type:             entity.NotificationDefectEscalated,
		Title:            "缺陷严重度已升级",
		Content:          fmt.Sprintf("缺陷「%s」严重度由 %s 升级为 %s：%s", defect.Title, defect.Severity, req.NewSeverity, req.Reason),
		Priority:         priority,
		RelatedTaskID:    &defect.TaskID,
		RelatedProjectID: &defect.ProjectID,
		RelatedDefectID:  &defect.ID,
	}
	for _, userID := range req.NotifyUsers {
		n := notice
		n.UserID = userID
		s.notification.Notify(ctx, &n)
	}
	s.notification.NotifyProjectManagers(ctx, defect.ProjectID, notice)
	return nil
}

// CheckAndEscalateOverdueDefects 扫描逾期未关闭的缺陷并自动升一级
// critical缺陷跳过不报错；每个缺陷独立事务，单个失败不影响其余
func (s *DefectService) CheckAndEscalateOverdueDefects(ctx context.Context) (int, error) {
	defects, err := s.repos.Defect.ListOverdueOpen(ctx, s.clock())
	if err != nil {
		return 0, err
	}

	escalated := 0
	for _, d := range defects {
		next, ok := entity.NextSeverity(d.Severity)
		if !ok {
			s.logger.Info("缺陷已是critical，自动升级跳过",
				zap.Int64("defect_id", d.ID))
			continue
		}
		err := s.Escalate(ctx, d.ID, EscalateRequest{
			NewSeverity: next,
			Reason:      "overdue - due date passed",
		})
		if err != nil {
			s.logger.Error("缺陷自动升级失败",
				zap.Int64("defect_id", d.ID),
				zap.String("severity", d.Severity),
				zap.Error(err))
			continue
		}
		escalated++
	}

	if escalated > 0 || len(defects) > 0 {
		s.logger.Info("逾期缺陷扫描完成",
			zap.Int("scanned", len(defects)),
			zap.Int("escalated", escalated))
	}
	return escalated, nil
}

// Resolve 将缺陷标记为已整改
func (s *DefectService) Resolve(ctx context.Context, defectID, userID int64) error {
	if defectID <= 0 {
		return fmt.Errorf("%w: 缺陷ID必须为正整数", ErrInvalidArgument)
	}
	defect, err := s.repos.Defect.FindByID(ctx, defectID)
	if err != nil {
		return err
	}
	if defect.Status != entity.DefectStatusOpen && defect.Status != entity.DefectStatusInProgress {
		return fmt.Errorf("%w: 只有open/in_progress状态可标记整改，当前 %s", ErrInvalidTransition, defect.Status)
	}
	now := s.clock()
	if err := s.repos.Defect.Update(ctx, defectID, map[string]interface{}{
		"status":      entity.DefectStatusResolved,
		"resolved_at": now,
	}); err != nil {
		return err
	}

	if defect.ReportedBy > 0 && defect.ReportedBy != userID {
		s.notification.Notify(ctx, &entity.Notification{
			UserID:           defect.ReportedBy,
			Type:             entity.NotificationDefectResolved,
			Title:            "缺陷已整改",
			Content:          fmt.Sprintf("缺陷「%s」已标记为整改完成，等待复核", defect.Title),
			Priority:         entity.PriorityNormal,
			RelatedTaskID:    &defect.TaskID,
			RelatedProjectID: &defect.ProjectID,
			RelatedDefectID:  &defect.ID,
		})
	}
	return nil
}

// Close 关闭已整改的缺陷
func (s *DefectService) Close(ctx context.Context, defectID int64) error {
	if defectID <= 0 {
		return fmt.Errorf("%w: 缺陷ID必须为正整数", ErrInvalidArgument)
	}
	defect, err := s.repos.Defect.FindByID(ctx, defectID)
	if err != nil {
		return err
	}
	if defect.Status != entity.DefectStatusResolved {
		return fmt.Errorf("%w: 只有resolved状态可关闭，当前 %s", ErrInvalidTransition, defect.Status)
	}
	return s.repos.Defect.Update(ctx, defectID, map[string]interface{}{
		"status": entity.DefectStatusClosed,
	})
}
