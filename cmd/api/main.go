package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/fluentia/tutor-admin-api/api/swagger"
	"github.com/fluentia/tutor-admin-api/internal/handler"
	"github.com/fluentia/tutor-admin-api/internal/middleware"
	"github.com/fluentia/tutor-admin-api/internal/models"
	"github.com/fluentia/tutor-admin-api/internal/repository"
	"github.com/fluentia/tutor-admin-api/internal/service"
	"github.com/fluentia/tutor-admin-api/pkg/cache"
	"github.com/fluentia/tutor-admin-api/pkg/config"
	"github.com/fluentia/tutor-admin-api/pkg/database"
	"github.com/fluentia/tutor-admin-api/pkg/export"
	"github.com/fluentia/tutor-admin-api/pkg/jobs"
	"github.com/fluentia/tutor-admin-api/pkg/logger"
	corsmiddleware "github.com/fluentia/tutor-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fluentia/tutor-admin-api/pkg/middleware/requestid"
)

// @title Tutor Admin API
// @version 1.0.0
// @description Administrative backend for the language tutoring platform
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	contentRepo := repository.NewContentRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, enrollmentRepo, userRepo, validate, logr)
	contentSvc := service.NewContentService(contentRepo, lessonRepo, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, attendanceRepo, classRepo, contentRepo, enrollmentRepo, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, userRepo, classRepo, enrollmentRepo, metrics, validate, logr)
	dashboardSvc := service.NewDashboardService(userRepo, classRepo, contentRepo, enrollmentRepo, attendanceRepo, paymentRepo, paymentSvc, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	classHandler := handler.NewClassHandler(classSvc)
	contentHandler := handler.NewContentHandler(contentSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, export.NewCSVExporter(), export.NewPDFExporter())
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweepQueue := jobs.NewQueue("payments-sweep", func(ctx context.Context, job jobs.Job) error {
		trigger := service.SweepTriggerScheduled
		if payload, ok := job.Payload.(service.SweepJob); ok {
			trigger = payload.Trigger
		}
		swept, err := paymentSvc.SweepOverdue(ctx)
		if err != nil {
			return err
		}
		if swept > 0 {
			logr.Info("background sweep finished", zap.String("trigger", string(trigger)), zap.Int64("swept", swept))
		}
		return nil
	}, jobs.QueueConfig{Workers: cfg.Payments.SweepWorkers, Logger: logr})
	sweepQueue.Start(ctx)
	defer sweepQueue.Stop()

	if err := sweepQueue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "overdue-sweep",
		Payload: service.SweepJob{Trigger: service.SweepTriggerStartup, RequestedAt: time.Now().UTC()},
	}); err != nil {
		logr.Warn("failed to enqueue startup sweep", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(cfg.Payments.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sweepQueue.Enqueue(jobs.Job{
					ID:      uuid.NewString(),
					Type:    "overdue-sweep",
					Payload: service.SweepJob{Trigger: service.SweepTriggerScheduled, RequestedAt: time.Now().UTC()},
				}); err != nil {
					logr.Warn("failed to enqueue overdue sweep", zap.Error(err))
				}
			}
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Config{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
		MaxAge:         cfg.CORS.MaxAge,
	}))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	users := api.Group("/users", middleware.JWT(authSvc))
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
	users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleConsultant)

	classes := api.Group("/classes", middleware.JWT(authSvc), staff)
	classes.GET("", classHandler.List)
	classes.POST("", classHandler.Create)
	classes.GET("/:id", classHandler.Get)
	classes.PUT("/:id", classHandler.Update)
	classes.DELETE("/:id", classHandler.Delete)
	classes.POST("/:id/enroll", classHandler.Enroll)
	classes.DELETE("/:id/students/:studentId", classHandler.Unenroll)
	classes.GET("/:id/enrollments", classHandler.Enrollments)

	contents := api.Group("/contents", middleware.JWT(authSvc), staff)
	contents.GET("", contentHandler.List)
	contents.POST("", contentHandler.Create)
	contents.GET("/module/:module", contentHandler.ByModule)
	contents.GET("/:id", contentHandler.Get)
	contents.PUT("/:id", contentHandler.Update)
	contents.DELETE("/:id", contentHandler.Delete)

	lessons := api.Group("/lessons", middleware.JWT(authSvc), staff)
	lessons.POST("", lessonHandler.Create)
	lessons.GET("/class/:classId", lessonHandler.ByClass)
	lessons.GET("/:id", lessonHandler.Get)
	lessons.PUT("/:id", lessonHandler.Update)
	lessons.DELETE("/:id", lessonHandler.Delete)
	lessons.POST("/:id/attendance", lessonHandler.RecordAttendance)

	payments := api.Group("/payments", middleware.JWT(authSvc), staff)
	payments.GET("", paymentHandler.List)
	payments.GET("/stats", paymentHandler.Stats)
	payments.GET("/student/:studentId", paymentHandler.ByStudent)
	payments.POST("", paymentHandler.Create)
	payments.POST("/bulk", paymentHandler.Bulk)
	if cfg.Exports.Enabled {
		payments.GET("/export", paymentHandler.Export)
	}
	payments.GET("/:id", paymentHandler.Get)
	payments.PUT("/:id", paymentHandler.Update)
	payments.PATCH("/:id/pay", paymentHandler.MarkPaid)
	payments.DELETE("/:id", paymentHandler.Delete)

	dashboard := api.Group("/dashboard", middleware.JWT(authSvc), staff)
	dashboard.GET("/stats", dashboardHandler.Stats)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
