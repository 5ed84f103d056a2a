package jobs

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/qc/service"
	"github.com/sitepulse/siteqc/internal/qc/testutil"
)

type jobsEnv struct {
	db       *gorm.DB
	repos    *repository.Repositories
	services *service.Services
	now      time.Time
	clock    service.Clock
	logger   *zap.Logger
}

func setupJobsTest(t *testing.T) *jobsEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	logger := zap.NewNop()
	services := service.NewServices(db, repos, nil, nil, logger)

	env := &jobsEnv{
		db:       db,
		repos:    repos,
		services: services,
		now:      time.Now(),
		logger:   logger,
	}
	env.clock = func() time.Time { return env.now }
	return env
}

func TestEscalationCheck(t *testing.T) {
	env := setupJobsTest(t)
	ctx := context.Background()

	pm := testutil.SeedUser(t, env.db, "jobs-pm", entity.RoleProjectManager)
	project := testutil.SeedProject(t, env.db, "jobs project", pm.ID)
	task := testutil.SeedTask(t, env.db, project.ID, "jobs task", nil)

	due := env.now.Add(-time.Hour)
	defect := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityMedium, &due)

	EscalationCheck(ctx, env.services.Defect, env.logger)

	got, err := env.repos.Defect.FindByID(ctx, defect.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Severity != entity.SeverityHigh {
		t.Errorf("Expected defect escalated to high, got %s", got.Severity)
	}
}

func TestDeadlineReminders(t *testing.T) {
	env := setupJobsTest(t)
	ctx := context.Background()

	pm := testutil.SeedUser(t, env.db, "dl-pm", entity.RoleProjectManager)
	worker := testutil.SeedUser(t, env.db, "dl-worker", entity.RoleWorker)
	project := testutil.SeedProject(t, env.db, "deadline project", pm.ID)

	// task due tomorrow -> approaching reminder to assignee
	soon := env.now.Add(24 * time.Hour)
	approaching := testutil.SeedTask(t, env.db, project.ID, "due soon", &worker.ID)
	env.db.Model(&entity.Task{}).Where("id = ?", approaching.ID).Update("due_date", soon)

	// task overdue -> assignee and managers
	past := env.now.Add(-24 * time.Hour)
	overdue := testutil.SeedTask(t, env.db, project.ID, "overdue", &worker.ID)
	env.db.Model(&entity.Task{}).Where("id = ?", overdue.ID).Update("due_date", past)

	// completed task is never reminded
	done := testutil.SeedTask(t, env.db, project.ID, "done", &worker.ID)
	env.db.Model(&entity.Task{}).Where("id = ?", done.ID).
		Updates(map[string]interface{}{"due_date": past, "status": entity.TaskStatusCompleted})

	// defect due in 2 days -> reminder to assignee
	defectDue := env.now.Add(48 * time.Hour)
	defect := testutil.SeedDefect(t, env.db, project.ID, overdue.ID, entity.SeverityMedium, &defectDue)
	env.db.Model(&entity.Defect{}).Where("id = ?", defect.ID).Update("assigned_to", worker.ID)

	DeadlineReminders(ctx, env.repos, env.services.Notification, env.clock, env.logger)

	countByType := func(typ string) int64 {
		var n int64
		env.db.Model(&entity.Notification{}).Where("type = ?", typ).Count(&n)
		return n
	}
	if n := countByType(entity.NotificationTaskDeadline); n != 1 {
		t.Errorf("Expected 1 task deadline reminder, got %d", n)
	}
	// overdue: assignee + 1 manager
	if n := countByType(entity.NotificationTaskOverdue); n != 2 {
		t.Errorf("Expected 2 overdue notifications, got %d", n)
	}
	if n := countByType(entity.NotificationDefectDeadline); n != 1 {
		t.Errorf("Expected 1 defect deadline reminder, got %d", n)
	}
}

func TestChecklistReminders(t *testing.T) {
	env := setupJobsTest(t)
	ctx := context.Background()

	pm := testutil.SeedUser(t, env.db, "cl-pm", entity.RoleProjectManager)
	worker := testutil.SeedUser(t, env.db, "cl-worker", entity.RoleWorker)
	project := testutil.SeedProject(t, env.db, "checklist project", pm.ID)

	soon := env.now.Add(24 * time.Hour)
	task := testutil.SeedTask(t, env.db, project.ID, "finishing", &worker.ID)
	env.db.Model(&entity.Task{}).Where("id = ?", task.ID).Update("due_date", soon)

	template := testutil.SeedTemplate(t, env.db, "remind", 2)
	if _, err := env.services.Checklist.CreateInstance(ctx, task.ID, template.ID, pm.ID); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}

	ChecklistReminders(ctx, env.repos, env.services.Notification, env.clock, env.logger)

	var count int64
	env.db.Model(&entity.Notification{}).
		Where("type = ? AND user_id = ?", entity.NotificationChecklistReminder, worker.ID).
		Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 checklist reminder, got %d", count)
	}

	// once the checklist is completed there is nothing to remind
	env.db.Model(&entity.ChecklistInstance{}).Where("task_id = ?", task.ID).
		Update("status", entity.ChecklistStatusCompleted)
	env.db.Where("1 = 1").Delete(&entity.Notification{})

	ChecklistReminders(ctx, env.repos, env.services.Notification, env.clock, env.logger)
	env.db.Model(&entity.Notification{}).
		Where("type = ?", entity.NotificationChecklistReminder).Count(&count)
	if count != 0 {
		t.Errorf("Expected no reminders for completed checklists, got %d", count)
	}
}
