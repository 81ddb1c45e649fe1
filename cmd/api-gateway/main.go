package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-enrollment-api/api/swagger"
	"github.com/noah-isme/sma-enrollment-api/internal/handler"
	"github.com/noah-isme/sma-enrollment-api/internal/middleware"
	"github.com/noah-isme/sma-enrollment-api/internal/repository"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
	"github.com/noah-isme/sma-enrollment-api/migrations"
	"github.com/noah-isme/sma-enrollment-api/pkg/cache"
	"github.com/noah-isme/sma-enrollment-api/pkg/config"
	"github.com/noah-isme/sma-enrollment-api/pkg/database"
	"github.com/noah-isme/sma-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-enrollment-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title Student Enrollment API
// @version 1.0.0
// @description Course enrollment, grading and back-office administration
// @BasePath /
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

	if cfg.AutoMigrate {
		if err := migrateUp(cfg.Database); err != nil {
			logr.Fatal("auto migrate failed", zap.Error(err))
		}
		logr.Info("database schema up to date")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	auditSvc := service.NewAuditService(auditRepo, metricsSvc, logr, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
	})
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	auditSvc.Start(auditCtx)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	authSvc := service.NewAuthService(userRepo, sessionRepo, auditSvc, metricsSvc, validate, logr, service.AuthConfig{
		Secret:     cfg.Session.Secret,
		SessionTTL: cfg.Session.TTL,
		Issuer:     "sma-enrollment-api",
	})
	userSvc := service.NewUserService(userRepo, cacheSvc, auditSvc, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, cacheSvc, auditSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, cacheSvc, auditSvc, metricsSvc, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, courseRepo, userRepo, auditSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(userRepo, courseRepo, enrollmentRepo, gradeRepo, auditSvc, metricsSvc, logr)

	handlers := handler.Handlers{
		Auth: handler.NewAuthHandler(authSvc, handler.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
		}, cfg.Frontend.URL, cfg.Frontend.AdminLoginURL),
		Course:  handler.NewCourseHandler(courseSvc),
		Student: handler.NewStudentHandler(courseSvc, enrollmentSvc),
		Teacher: handler.NewTeacherHandler(courseSvc, gradeSvc),
		Admin: handler.NewAdminHandler(userSvc, courseSvc, gradeSvc, dashboardSvc,
			handler.NewFlashStore(cfg.Session.Secret, cfg.Session.CookieSecure), logr),
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"database": db.PingContext,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		}),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, handlers, handler.RouteConfig{
		Sessions:   authSvc,
		Audit:      auditSvc,
		CookieName: cfg.Session.CookieName,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
		}
	case sig := <-shutdown:
		logr.Info("shutdown started", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logr.Error("graceful shutdown failed", zap.Error(err))
			_ = srv.Close()
		}
	}

	auditSvc.Stop()
	logr.Info("server stopped")
}

func migrateUp(cfg config.DatabaseConfig) error {
	m, err := database.NewMigrator(migrations.FS, cfg)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck
	return database.MigrateUp(m)
}
