package service

import (
	"context"
	"testing"
	"time"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/testutil"
)

func TestNotifyPersistsRow(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.SeedUser(t, env.db, "recipient", entity.RoleWorker)
	ctx := context.Background()

	env.notification.Notify(ctx, &entity.Notification{
		UserID:  user.ID,
		Type:    entity.NotificationTaskOverdue,
		Title:   "任务已逾期",
		Content: "test content",
	})

	list, total, err := env.notification.List(ctx, user.ID, false, 0, 20)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("Expected 1 notification, got %d", total)
	}
	if list[0].Priority != entity.PriorityNormal {
		t.Errorf("Expected default priority normal, got %s", list[0].Priority)
	}
	if list[0].IsRead {
		t.Error("New notification should be unread")
	}
}

func TestNotifyDropsInvalid(t *testing.T) {
	env := newTestEnv(t)

	// missing user and type: silently dropped, never an error
	env.notification.Notify(context.Background(), &entity.Notification{Title: "orphan"})

	var count int64
	env.db.Model(&entity.Notification{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected 0 notifications, got %d", count)
	}
}

func TestNotifyProjectManagersFanOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pm1 := testutil.SeedUser(t, env.db, "pm1", entity.RoleProjectManager)
	pm2 := testutil.SeedUser(t, env.db, "pm2", entity.RoleProjectManager)
	worker := testutil.SeedUser(t, env.db, "w1", entity.RoleWorker)
	project := testutil.SeedProject(t, env.db, "fanout", pm1.ID)
	env.db.Create(&entity.ProjectMember{ProjectID: project.ID, UserID: pm2.ID, Role: entity.RoleProjectManager})
	env.db.Create(&entity.ProjectMember{ProjectID: project.ID, UserID: worker.ID, Role: entity.RoleWorker})

	env.notification.NotifyProjectManagers(ctx, project.ID, entity.Notification{
		Type:             entity.NotificationChecklistFailed,
		Title:            "检查清单不合格",
		RelatedProjectID: &project.ID,
	})

	var count int64
	env.db.Model(&entity.Notification{}).Where("type = ?", entity.NotificationChecklistFailed).Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 manager notifications, got %d", count)
	}
	var workerCount int64
	env.db.Model(&entity.Notification{}).Where("user_id = ?", worker.ID).Count(&workerCount)
	if workerCount != 0 {
		t.Errorf("Worker should not be notified, got %d", workerCount)
	}
}

func TestMarkReadFlow(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.SeedUser(t, env.db, "reader", entity.RoleWorker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.notification.Notify(ctx, &entity.Notification{
			UserID: user.ID,
			Type:   entity.NotificationTaskDeadline,
			Title:  "任务即将到期",
			RelatedTaskID: func() *int64 {
				id := int64(i + 1)
				return &id
			}(),
		})
	}

	count, err := env.notification.UnreadCount(ctx, user.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("Expected 3 unread, got %d", count)
	}

	list, _, _ := env.notification.List(ctx, user.ID, true, 0, 20)
	if err := env.notification.MarkRead(ctx, list[0].ID, user.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	count, _ = env.notification.UnreadCount(ctx, user.ID)
	if count != 2 {
		t.Errorf("Expected 2 unread, got %d", count)
	}

	// marking another user's notification is NotFound
	other := testutil.SeedUser(t, env.db, "other", entity.RoleWorker)
	if err := env.notification.MarkRead(ctx, list[1].ID, other.ID); err == nil {
		t.Error("Expected error marking another user's notification")
	}

	if err := env.notification.MarkAllRead(ctx, user.ID); err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	count, _ = env.notification.UnreadCount(ctx, user.ID)
	if count != 0 {
		t.Errorf("Expected 0 unread, got %d", count)
	}
}

func TestNotifyDedupKeyPerDay(t *testing.T) {
	env := newTestEnv(t)
	taskID := int64(42)
	n := &entity.Notification{
		UserID:        7,
		Type:          entity.NotificationTaskDeadline,
		RelatedTaskID: &taskID,
	}

	first := env.notification.dedupKey(n)
	if first != env.notification.dedupKey(n) {
		t.Error("Same notification on the same day must produce the same key")
	}

	other := *n
	other.UserID = 8
	if first == env.notification.dedupKey(&other) {
		t.Error("Different recipients must produce different keys")
	}

	env.now = env.now.Add(24 * time.Hour)
	if first == env.notification.dedupKey(n) {
		t.Error("Key must roll over to a new day")
	}
}
