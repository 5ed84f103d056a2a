package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/qc/service"
	"github.com/sitepulse/siteqc/internal/qc/testutil"
)

func setupHandlerTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, nil, nil, zap.NewNop())

	jobsHandler := NewJobsHandler(repos, services, time.Now, zap.NewNop())
	handlers := NewHandlers(services, repos, jobsHandler, NewUploadHandler(nil))

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")

	api.POST("/checklists", handlers.Checklist.CreateInstance)
	api.GET("/checklists/:id", handlers.Checklist.GetInstance)
	api.POST("/checklists/:id/reset", handlers.Checklist.ResetInstance)
	api.POST("/checklists/:id/submit", handlers.Inspection.Submit)
	api.POST("/checklist-items/:id/complete", handlers.Checklist.CompleteItem)
	api.POST("/defects/:id/escalate", handlers.Defect.Escalate)
	api.GET("/tasks/:id/activity", handlers.Activity.ListByTask)

	return router, db
}

func seedHandlerFixtures(t *testing.T, db *gorm.DB) (*entity.Task, *entity.ChecklistInstance) {
	t.Helper()
	manager := testutil.SeedUser(t, db, "h-pm", entity.RoleProjectManager)
	project := testutil.SeedProject(t, db, "handler project", manager.ID)
	task := testutil.SeedTask(t, db, project.ID, "handler task", nil)
	template := testutil.SeedTemplate(t, db, "handler", 3)

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, nil, nil, zap.NewNop())
	instance, err := services.Checklist.CreateInstance(context.Background(), task.ID, template.ID, manager.ID)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	return task, instance
}

func TestCompleteItemHTTPErrorMapping(t *testing.T) {
	router, db := setupHandlerTest(t)
	_, instance := seedHandlerFixtures(t, db)
	token := testutil.GenerateTestToken(1, "Tester", "tester@test.com", []string{entity.RoleQCInspector})

	// out-of-order completion -> 409
	path := fmt.Sprintf("/api/v1/checklist-items/%d/complete", instance.Items[2].ID)
	w := testutil.DoRequest(router, "POST", path, gin.H{"result": "pass"}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for dependency violation, got %d: %s", w.Code, w.Body.String())
	}

	// unknown item -> 404
	w = testutil.DoRequest(router, "POST", "/api/v1/checklist-items/999999/complete", gin.H{"result": "pass"}, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	// malformed id -> 400
	w = testutil.DoRequest(router, "POST", "/api/v1/checklist-items/abc/complete", gin.H{"result": "pass"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	// invalid result value -> 400
	path = fmt.Sprintf("/api/v1/checklist-items/%d/complete", instance.Items[0].ID)
	w = testutil.DoRequest(router, "POST", path, gin.H{"result": "perhaps"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad result, got %d", w.Code)
	}

	// happy path -> 200
	w = testutil.DoRequest(router, "POST", path, gin.H{"result": "pass"}, token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// no token -> 401
	w = testutil.DoRequest(router, "POST", path, gin.H{"result": "pass"}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestSubmitInspectionHTTP(t *testing.T) {
	router, db := setupHandlerTest(t)
	task, instance := seedHandlerFixtures(t, db)
	token := testutil.GenerateTestToken(7, "Inspector", "qc@test.com", []string{entity.RoleQCInspector})

	items := []gin.H{}
	for i, it := range instance.Items {
		result := "pass"
		if i == 1 {
			result = "fail"
		}
		items = append(items, gin.H{"item_result_id": it.ID, "result": result})
	}

	path := fmt.Sprintf("/api/v1/checklists/%d/submit", instance.ID)
	w := testutil.DoRequest(router, "POST", path, gin.H{
		"task_id": task.ID,
		"items":   items,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["overall_status"] != entity.ChecklistStatusFailed {
		t.Errorf("Expected failed, got %v", data["overall_status"])
	}
	if data["failed_count"].(float64) != 1 {
		t.Errorf("Expected 1 failure, got %v", data["failed_count"])
	}
	if data["defects_created"].(float64) != 1 {
		t.Errorf("Expected 1 defect, got %v", data["defects_created"])
	}

	// submission leaves an activity trail readable over HTTP
	activityPath := fmt.Sprintf("/api/v1/tasks/%d/activity", task.ID)
	w = testutil.DoRequest(router, "GET", activityPath, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	actResp := testutil.ParseResponse(w)
	logs, okCast := actResp["data"].([]interface{})
	if !okCast || len(logs) != 1 {
		t.Errorf("Expected 1 activity entry, got %v", actResp["data"])
	}

	// escalation on one of the generated defects
	var defect entity.Defect
	if err := db.Where("task_id = ?", task.ID).First(&defect).Error; err != nil {
		t.Fatalf("expected generated defect: %v", err)
	}
	escalatePath := fmt.Sprintf("/api/v1/defects/%d/escalate", defect.ID)
	w = testutil.DoRequest(router, "POST", escalatePath, gin.H{
		"new_severity": entity.SeverityHigh,
		"reason":       "blocking handover",
	}, token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// non-increasing severity -> 409
	w = testutil.DoRequest(router, "POST", escalatePath, gin.H{
		"new_severity": entity.SeverityLow,
	}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestResetInstanceHTTP(t *testing.T) {
	router, db := setupHandlerTest(t)
	task, instance := seedHandlerFixtures(t, db)
	token := testutil.GenerateTestToken(3, "Resetter", "r@test.com", []string{entity.RoleProjectManager})

	// resetting a non-failed checklist -> 409
	path := fmt.Sprintf("/api/v1/checklists/%d/reset", instance.ID)
	w := testutil.DoRequest(router, "POST", path, nil, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// fail it via submission, then reset succeeds
	items := []gin.H{}
	for _, it := range instance.Items {
		items = append(items, gin.H{"item_result_id": it.ID, "result": "fail"})
	}
	submitPath := fmt.Sprintf("/api/v1/checklists/%d/submit", instance.ID)
	w = testutil.DoRequest(router, "POST", submitPath, gin.H{"task_id": task.ID, "items": items}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("submit failed: %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "POST", path, nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got entity.ChecklistInstance
	db.First(&got, instance.ID)
	if got.Status != entity.ChecklistStatusPendingInspection {
		t.Errorf("Expected pending_inspection after full reset, got %s", got.Status)
	}
}
