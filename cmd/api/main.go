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

	"github.com/ams-platform/attendance-api/internal/handler"
	"github.com/ams-platform/attendance-api/internal/middleware"
	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/internal/notify"
	"github.com/ams-platform/attendance-api/internal/repository"
	"github.com/ams-platform/attendance-api/internal/service"
	"github.com/ams-platform/attendance-api/pkg/cache"
	"github.com/ams-platform/attendance-api/pkg/config"
	"github.com/ams-platform/attendance-api/pkg/database"
	"github.com/ams-platform/attendance-api/pkg/logger"
	corsmiddleware "github.com/ams-platform/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ams-platform/attendance-api/pkg/middleware/requestid"
)

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// The rate limiter fails open, so a missing Redis degrades the limiter
	// instead of blocking startup.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, rate limiting disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	sender := notify.NewSMTPSender(cfg.SMTP)
	notifier := notify.NewNotifier(sender, cfg.Notify, logr, notify.WithDropCallback(metrics.NotifyFailed))

	notifyCtx, stopNotify := context.WithCancel(context.Background())
	notifier.Start(notifyCtx)
	defer func() {
		stopNotify()
		notifier.Stop()
	}()

	tokens := service.NewTokenService(cfg.JWT)
	authSvc := service.NewAuthService(userRepo, tokens, notifier, validate, logr, cfg.OTP)
	sessionSvc := service.NewSessionService(subjectRepo, userRepo, sessionRepo, tokens, notifier, logr)
	attendanceSvc := service.NewAttendanceService(userRepo, sessionRepo, tokens, logr)
	reportSvc := service.NewReportService(sessionRepo, logr)
	userSvc := service.NewUserService(userRepo, subjectRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, userRepo, sessionRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc, metrics)
	attendanceHandler := handler.NewAttendanceHandler(sessionSvc, attendanceSvc, metrics)
	reportHandler := handler.NewReportHandler(reportSvc)
	userHandler := handler.NewUserHandler(userSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Deadline(cfg.Database.QueryTimeout))

	auth := api.Group("/auth")
	auth.Use(middleware.RateLimit(redisClient, cfg.RateLimit, logr))
	auth.POST("/login", authHandler.Login)
	auth.POST("/verify-otp", authHandler.VerifyOTP)

	authed := api.Group("")
	authed.Use(middleware.Auth(tokens))

	attendance := authed.Group("/attendance")
	attendance.POST("/generate-session/:subjectId",
		middleware.RequireRoles(models.RoleInstructor), attendanceHandler.GenerateSession)
	// Any authenticated caller may post a mark; the service verifies the
	// session token and that the marked identity is a student.
	attendance.POST("/mark", attendanceHandler.MarkPresent)
	attendance.POST("/mark/leave",
		middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), attendanceHandler.MarkLeave)

	reports := authed.Group("/reports")
	reports.GET("/monthly", reportHandler.Monthly)
	reports.GET("/monthly/export", reportHandler.Export)

	subjects := authed.Group("/subjects")
	subjects.GET("", subjectHandler.List)
	subjects.GET("/:id", subjectHandler.Get)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))

	users := admin.Group("/users")
	users.POST("", userHandler.Create)
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)
	users.POST("/:id/subjects/:subjectId", userHandler.Enroll)
	users.DELETE("/:id/subjects/:subjectId", userHandler.Unenroll)

	adminSubjects := admin.Group("/subjects")
	adminSubjects.POST("", subjectHandler.Create)
	adminSubjects.PUT("/:id", subjectHandler.Update)
	adminSubjects.DELETE("/:id", subjectHandler.Delete)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
