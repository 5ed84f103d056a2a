package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitepulse/siteqc/internal/config"
	"github.com/sitepulse/siteqc/internal/middleware"
	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/handler"
	"github.com/sitepulse/siteqc/internal/qc/jobs"
	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/qc/service"
	"github.com/sitepulse/siteqc/internal/shared/webhook"
	"github.com/sitepulse/siteqc/internal/storage"
)

func main() {
	// 加载 .env 文件（如果存在）
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// Redis只承担通知去重，挂了降级运行
		zapLogger.Warn("Redis unavailable, notification dedup disabled", zap.Error(err))
		rdb = nil
	}

	var photoStore *storage.PhotoStore
	if cfg.MinIO.Endpoint != "" {
		photoStore, err = storage.NewPhotoStore(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			zapLogger.Warn("MinIO unavailable, photo upload disabled", zap.Error(err))
			photoStore = nil
		}
	}

	wh := webhook.NewClient(cfg.Webhook.URL, cfg.Webhook.Timeout)

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, wh, zapLogger)

	clock := service.Clock(time.Now)
	jobsHandler := handler.NewJobsHandler(repos, services, clock, zapLogger)
	var uploader storage.Uploader
	if photoStore != nil {
		uploader = photoStore
	}
	handlers := handler.NewHandlers(services, repos, jobsHandler, handler.NewUploadHandler(uploader))

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 后台任务：定时器归这里所有，业务函数本身无定时概念
	jobCtx, stopJobs := context.WithCancel(context.Background())
	go runJobs(jobCtx, cfg.Jobs, repos, services, clock, zapLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
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
}

// runJobs 周期触发后台检查，关停时随context退出
func runJobs(ctx context.Context, cfg config.JobsConfig, repos *repository.Repositories, services *service.Services, clock service.Clock, zapLogger *zap.Logger) {
	escalationTicker := time.NewTicker(cfg.EscalationInterval)
	reminderTicker := time.NewTicker(cfg.ReminderInterval)
	defer escalationTicker.Stop()
	defer reminderTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-escalationTicker.C:
			jobs.EscalationCheck(ctx, services.Defect, zapLogger)
		case <-reminderTicker.C:
			jobs.DeadlineReminders(ctx, repos, services.Notification, clock, zapLogger)
			jobs.ChecklistReminders(ctx, repos, services.Notification, clock, zapLogger)
		}
	}
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		templates := authorized.Group("/checklist-templates")
		{
			templates.POST("", h.Checklist.CreateTemplate)
			templates.GET("", h.Checklist.ListTemplates)
			templates.GET("/:id", h.Checklist.GetTemplate)
		}

		checklists := authorized.Group("/checklists")
		{
			checklists.POST("", h.Checklist.CreateInstance)
			checklists.GET("/:id", h.Checklist.GetInstance)
			checklists.POST("/:id/reset", h.Checklist.ResetInstance)
			checklists.POST("/:id/submit", h.Inspection.Submit)
		}

		authorized.POST("/checklist-items/:id/complete", h.Checklist.CompleteItem)

		tasks := authorized.Group("/tasks")
		{
			tasks.GET("/:id/checklists", h.Checklist.ListByTask)
			tasks.GET("/:id/defects", h.Defect.ListByTask)
			tasks.GET("/:id/activity", h.Activity.ListByTask)
		}

		defects := authorized.Group("/defects")
		{
			defects.POST("", h.Defect.Create)
			defects.GET("/:id", h.Defect.Get)
			defects.POST("/:id/escalate", h.Defect.Escalate)
			defects.GET("/:id/history", h.Defect.History)
			defects.POST("/:id/resolve", h.Defect.Resolve)
			defects.POST("/:id/close", h.Defect.Close)
		}

		projects := authorized.Group("/projects")
		{
			projects.GET("/:id/defects", h.Defect.ListByProject)
			projects.GET("/:id/defect-stats", h.Defect.Stats)
			projects.GET("/:id/activity", h.Activity.ListByProject)
		}

		notifications := authorized.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.GET("/unread-count", h.Notification.UnreadCount)
			notifications.POST("/:id/read", h.Notification.MarkRead)
			notifications.POST("/read-all", h.Notification.MarkAllRead)
		}

		authorized.POST("/uploads/photos", h.Upload.UploadPhoto)

		admin := authorized.Group("/jobs")
		admin.Use(middleware.RequireRole(entity.RoleAdmin))
		{
			admin.POST("/escalation-check", h.Jobs.TriggerEscalationCheck)
			admin.POST("/deadline-reminders", h.Jobs.TriggerDeadlineReminders)
			admin.POST("/checklist-reminders", h.Jobs.TriggerChecklistReminders)
		}
	}
}
