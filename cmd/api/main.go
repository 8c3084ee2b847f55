package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nordcrm/pipeline-api/docs"
	"github.com/nordcrm/pipeline-api/internal/auth"
	"github.com/nordcrm/pipeline-api/internal/config"
	"github.com/nordcrm/pipeline-api/internal/database"
	"github.com/nordcrm/pipeline-api/internal/http/handler"
	"github.com/nordcrm/pipeline-api/internal/http/middleware"
	"github.com/nordcrm/pipeline-api/internal/http/router"
	"github.com/nordcrm/pipeline-api/internal/integrity"
	"github.com/nordcrm/pipeline-api/internal/jobs"
	"github.com/nordcrm/pipeline-api/internal/logger"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"go.uber.org/zap"
)

// @title NordCRM Pipeline API
// @version 1.0
// @description Relational CRM core for contacts, pipelines, deals and their audit trail

// @contact.name API Support
// @contact.email support@nordcrm.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Environment),
		zap.Int("port", cfg.App.Port),
	)

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.App.Port)

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	organizationRepo := repository.NewOrganizationRepository(db)
	contactRepo := repository.NewContactRepository(db)
	pipelineRepo := repository.NewPipelineRepository(db)
	stageRepo := repository.NewStageRepository(db)
	dealRepo := repository.NewDealRepository(db)
	historyRepo := repository.NewDealStageHistoryRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRecordRepository(db)

	// Shared infrastructure: per-entity write locks and the reference
	// validator that runs inside write transactions
	locks := repository.NewKeyLock()
	validator := integrity.NewValidator(db)

	// Services
	auditService := service.NewAuditService(auditRepo, log)
	notificationService := service.NewNotificationService(notificationRepo, log)
	userService := service.NewUserService(db, userRepo, dealRepo, auditService, locks, log)
	organizationService := service.NewOrganizationService(db, organizationRepo, contactRepo, auditService, locks, log)
	contactService := service.NewContactService(db, contactRepo, dealRepo, validator, auditService, locks, log)
	pipelineService := service.NewPipelineService(db, pipelineRepo, stageRepo, dealRepo, validator, auditService, locks, log)
	dealService := service.NewDealService(db, dealRepo, stageRepo, pipelineRepo, historyRepo, validator, auditService, notificationService, locks, log)
	activityService := service.NewActivityService(db, activityRepo, validator, auditService, locks, log)
	noteService := service.NewNoteService(db, noteRepo, validator, auditService, locks, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	userHandler := handler.NewUserHandler(userService, log)
	organizationHandler := handler.NewOrganizationHandler(organizationService, log)
	contactHandler := handler.NewContactHandler(contactService, log)
	pipelineHandler := handler.NewPipelineHandler(pipelineService, dealService, log)
	dealHandler := handler.NewDealHandler(dealService, noteService, log)
	activityHandler := handler.NewActivityHandler(activityService, log)
	noteHandler := handler.NewNoteHandler(noteService, log)
	auditHandler := handler.NewAuditHandler(auditService, log)
	notificationHandler := handler.NewNotificationHandler(notificationService, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		authMiddleware,
		rateLimiter,
		userHandler,
		organizationHandler,
		contactHandler,
		pipelineHandler,
		dealHandler,
		activityHandler,
		noteHandler,
		auditHandler,
		notificationHandler,
	)

	// Background jobs: audit record retention
	scheduler := jobs.NewScheduler(log)
	retentionJob := jobs.NewAuditRetentionJob(auditService, log, cfg.Audit.RetentionDays, 10*time.Minute)
	if err := scheduler.AddJob(jobs.AuditRetentionJobName, cfg.Audit.RetentionSchedule, retentionJob.Run); err != nil {
		log.Error("Failed to register audit retention job", zap.Error(err))
	} else {
		scheduler.Start()
		log.Info("Scheduler started",
			zap.String("cron_expr", cfg.Audit.RetentionSchedule),
			zap.Int("retention_days", cfg.Audit.RetentionDays),
		)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		schedCtx := scheduler.Stop()
		<-schedCtx.Done()
		log.Info("Scheduler stopped")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
