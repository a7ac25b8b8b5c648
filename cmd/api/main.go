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
	"go.uber.org/zap"

	_ "github.com/noah-isme/academy-api/api/swagger"
	"github.com/noah-isme/academy-api/internal/handler"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/router"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/pkg/cache"
	"github.com/noah-isme/academy-api/pkg/config"
	"github.com/noah-isme/academy-api/pkg/database"
	"github.com/noah-isme/academy-api/pkg/events"
	"github.com/noah-isme/academy-api/pkg/jobs"
	"github.com/noah-isme/academy-api/pkg/logger"
	"github.com/noah-isme/academy-api/pkg/mailer"
	"github.com/noah-isme/academy-api/pkg/storage"
)

// @title Academy API
// @version 1.0.0
// @description Scheduling, enrollment, attendance and billing for a tutoring academy.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	loc := cfg.Location()
	validate := service.NewValidator()

	var cacheRepo service.CacheRepository
	readiness := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if cfg.Dashboard.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer client.Close()
			redisRepo := repository.NewCacheRepository(client, cfg.Dashboard.CachePrefix, logr)
			cacheRepo = redisRepo
			readiness["redis"] = redisRepo.Ping
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Messaging.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Messaging.URL, cfg.Messaging.Exchange, logr)
		if err != nil {
			logr.Warn("event broker unavailable, publishing disabled", zap.Error(err))
		} else {
			publisher = amqpPublisher
		}
	}
	defer publisher.Close() //nolint:errcheck

	var mail mailer.Mailer = mailer.NopMailer{}
	if cfg.Mail.SendGridAPIKey != "" {
		mail = mailer.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	}

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("export storage unavailable", zap.Error(err))
	}
	signer := storage.NewLinkSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	notifications := service.NewNotificationService(notificationRepo, userRepo, mail, publisher, logr)
	queue := jobs.NewQueue("notifications", notifications.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
		OnDone:     func(job jobs.Job, err error) { metrics.RecordJob("notification", err) },
	})
	queue.Start(ctx)
	notifications.UseQueue(queue)

	exports := service.NewExportService(files, signer, cfg.AppName, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.Retention,
	}, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		Audience:           []string{cfg.JWT.Audience},
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, cacheSvc, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, cacheSvc, metrics, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, notifications, cacheSvc, metrics, validate, logr)
	reservationSvc := service.NewReservationService(reservationRepo, courseRepo, scheduleRepo, notifications, cacheSvc, metrics, loc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, courseRepo, enrollmentRepo, userRepo, exports, cacheSvc, loc, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, userRepo, userRepo, exports, notifications, cacheSvc, loc, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:         dashboardRepo,
		Schedules:    scheduleRepo,
		Reservations: reservationRepo,
		Cache:        cacheSvc,
		Logger:       logr,
		Location:     loc,
		Config:       service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	scheduler := jobs.NewScheduler(jobs.SchedulerConfig{
		Location: loc,
		Logger:   logr,
		OnDone:   metrics.RecordJob,
	})
	if cfg.Cron.Enabled {
		tasks := []struct {
			name string
			spec string
			task jobs.Task
		}{
			{"reservation_reminders", cfg.Cron.ReminderSpec, func(ctx context.Context) error {
				_, err := reservationSvc.SendReminders(ctx)
				return err
			}},
			{"token_purge", cfg.Cron.TokenPurgeSpec, func(ctx context.Context) error {
				_, err := authSvc.PurgeExpiredTokens(ctx)
				return err
			}},
			{"export_cleanup", cfg.Cron.ExportPurgeSpec, func(context.Context) error {
				_, err := exports.Cleanup()
				return err
			}},
			{"payment_overdue", cfg.Cron.OverdueSpec, func(ctx context.Context) error {
				_, err := paymentSvc.MarkOverdue(ctx)
				return err
			}},
		}
		for _, t := range tasks {
			if err := scheduler.Register(t.name, t.spec, t.task); err != nil {
				logr.Fatal("invalid cron spec", zap.Error(err))
			}
		}
		scheduler.Start()
	}

	engine := router.New(router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Schedules:     handler.NewScheduleHandler(scheduleSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		Reservations:  handler.NewReservationHandler(reservationSvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc),
		Payments:      handler.NewPaymentHandler(paymentSvc),
		Notifications: handler.NewNotificationHandler(notifications),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Exports:       handler.NewExportHandler(exports),
		Metrics:       handler.NewMetricsHandler(metrics, readiness),
	}, router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableSwagger:  cfg.Swagger.Enabled && cfg.Env != config.EnvProduction,
		EnableMetrics:  cfg.Metrics.Enabled,
		Tokens:         authSvc,
		Audit:          userRepo,
		Observer:       metrics,
		Logger:         logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

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
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	queue.Stop()
}
