package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/shared/webhook"
)

// NotificationService 通知分发服务
// 所有发送均为尽力而为：失败记日志，绝不向调用方传播
type NotificationService struct {
	repos   *repository.Repositories
	rdb     *redis.Client
	webhook *webhook.Client
	clock   Clock
	logger  *zap.Logger
}

// NewNotificationService 创建通知分发服务
func NewNotificationService(repos *repository.Repositories, rdb *redis.Client, wh *webhook.Client, clock Clock, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repos:   repos,
		rdb:     rdb,
		webhook: wh,
		clock:   clock,
		logger:  logger,
	}
}

// dedupKey 同一用户同一类型针对同一实体每天只发一次
func (s *NotificationService) dedupKey(n *entity.Notification) string {
	var taskID, projectID, defectID int64
	if n.RelatedTaskID != nil {
		taskID = *n.RelatedTaskID
	}
	if n.RelatedProjectID != nil {
		projectID = *n.RelatedProjectID
	}
	if n.RelatedDefectID != nil {
		defectID = *n.RelatedDefectID
	}
	day := s.clock().Format("2006-01-02")
	return fmt.Sprintf("siteqc:notify:%d:%s:%d:%d:%d:%s", n.UserID, n.Type, taskID, projectID, defectID, day)
}

// Notify 发送一条通知
// Redis按天去重：重复发送直接丢弃；Redis不可用时降级为直接发送并记日志
func (s *NotificationService) Notify(ctx context.Context, n *entity.Notification) {
	if n.UserID <= 0 || n.Type == "" {
		s.logger.Warn("通知参数不完整，已丢弃",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type))
		return
	}
	if n.Priority == "" {
		n.Priority = entity.PriorityNormal
	}

	if s.rdb != nil {
		key := s.dedupKey(n)
		ok, err := s.rdb.SetNX(ctx, key, 1, 24*time.Hour).Result()
		if err != nil {
			s.logger.Warn("通知去重检查失败，降级为直接发送",
				zap.String("key", key), zap.Error(err))
		} else if !ok {
			s.logger.Debug("当天已发送过同类通知，跳过",
				zap.String("key", key))
			return
		}
	}

	if err := s.repos.Notification.Create(ctx, n); err != nil {
		s.logger.Error("写入通知失败",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err))
		return
	}

	if s.webhook != nil {
		err := s.webhook.Send(ctx, webhook.Message{
			Type:     n.Type,
			Title:    n.Title,
			Content:  n.Content,
			Priority: n.Priority,
			UserID:   n.UserID,
		})
		if err != nil {
			s.logger.Warn("Webhook推送失败", zap.Error(err))
		}
	}
}

// NotifyProjectManagers 向项目的全部项目经理发送同一条通知
func (s *NotificationService) NotifyProjectManagers(ctx context.Context, projectID int64, n entity.Notification) {
	managerIDs, err := s.repos.Project.FindManagerIDs(ctx, projectID)
	if err != nil {
		s.logger.Error("查询项目经理失败",
			zap.Int64("project_id", projectID), zap.Error(err))
		return
	}
	for _, id := range managerIDs {
		m := n
		m.UserID = id
		s.Notify(ctx, &m)
	}
}

// List 查询用户通知列表
func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, offset, limit int) ([]entity.Notification, int64, error) {
	return s.repos.Notification.ListByUser(ctx, userID, unreadOnly, offset, limit)
}

// UnreadCount 查询用户未读通知数
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repos.Notification.CountUnread(ctx, userID)
}

// MarkRead 标记通知为已读
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	if id <= 0 || userID <= 0 {
		return fmt.Errorf("%w: id必须为正整数", ErrInvalidArgument)
	}
	return s.repos.Notification.MarkRead(ctx, id, userID)
}

// MarkAllRead 标记用户全部通知为已读
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.repos.Notification.MarkAllRead(ctx, userID)
}
