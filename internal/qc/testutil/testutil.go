package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitepulse/siteqc/internal/middleware"
	"github.com/sitepulse/siteqc/internal/qc/entity"
)

const (
	TestSchema = "test_qc"
	JWTSecret  = "siteqc-jwt-secret-key-2025"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "siteqc")
	password := getEnv("DB_PASSWORD", "siteqc123")
	dbname := getEnv("DB_NAME", "siteqc")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&entity.User{},
		&entity.Project{},
		&entity.ProjectMember{},
		&entity.Task{},
		&entity.ChecklistTemplate{},
		&entity.TemplateItem{},
		&entity.ChecklistInstance{},
		&entity.ItemResult{},
		&entity.Defect{},
		&entity.EscalationHistory{},
		&entity.Notification{},
		&entity.ActivityLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID int64, name, email string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	uid := strconv.FormatInt(userID, 10)
	claims := jwt.MapClaims{
		"sub":   uid,
		"uid":   uid,
		"name":  name,
		"email": email,
		"roles": roles,
		"iss":   "siteqc",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a generic map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedUser creates a test user
func SeedUser(t *testing.T, db *gorm.DB, name, role string) *entity.User {
	t.Helper()
	user := &entity.User{
		Name:   name,
		Email:  fmt.Sprintf("%s@test.com", name),
		Role:   role,
		Status: "active",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedProject creates a test project with the given manager
func SeedProject(t *testing.T, db *gorm.DB, name string, managerID int64) *entity.Project {
	t.Helper()
	project := &entity.Project{
		Name:   name,
		Code:   fmt.Sprintf("PRJ-%d", time.Now().UnixNano()%1000000),
		Status: "active",
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to seed test project: %v", err)
	}
	if managerID > 0 {
		member := &entity.ProjectMember{
			ProjectID: project.ID,
			UserID:    managerID,
			Role:      entity.RoleProjectManager,
		}
		if err := db.Create(member).Error; err != nil {
			t.Fatalf("Failed to seed project manager: %v", err)
		}
	}
	return project
}

// SeedTask creates a test task
func SeedTask(t *testing.T, db *gorm.DB, projectID int64, name string, assigneeID *int64) *entity.Task {
	t.Helper()
	task := &entity.Task{
		ProjectID:  projectID,
		Name:       name,
		Status:     entity.TaskStatusInProgress,
		AssigneeID: assigneeID,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to seed test task: %v", err)
	}
	return task
}

// SeedTemplate creates a checklist template with n sequential items
func SeedTemplate(t *testing.T, db *gorm.DB, name string, itemCount int) *entity.ChecklistTemplate {
	t.Helper()
	template := &entity.ChecklistTemplate{Name: name}
	for i := 1; i <= itemCount; i++ {
		template.Items = append(template.Items, entity.TemplateItem{
			ItemText: fmt.Sprintf("%s item %d", name, i),
			Order:    i,
			Required: true,
		})
	}
	if err := db.Create(template).Error; err != nil {
		t.Fatalf("Failed to seed test template: %v", err)
	}
	return template
}

// SeedDefect creates a test defect
func SeedDefect(t *testing.T, db *gorm.DB, projectID, taskID int64, severity string, dueDate *time.Time) *entity.Defect {
	t.Helper()
	defect := &entity.Defect{
		ProjectID: projectID,
		TaskID:    taskID,
		Title:     fmt.Sprintf("defect-%d", time.Now().UnixNano()%1000000),
		Severity:  severity,
		Status:    entity.DefectStatusOpen,
		DueDate:   dueDate,
	}
	if err := db.Create(defect).Error; err != nil {
		t.Fatalf("Failed to seed test defect: %v", err)
	}
	return defect
}
