package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nordcrm/pipeline-api/internal/auth"
	"github.com/nordcrm/pipeline-api/internal/config"
	"github.com/nordcrm/pipeline-api/internal/database"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/http/handler"
	"github.com/nordcrm/pipeline-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/nordcrm/pipeline-api/docs" // Import generated swagger docs
)

type Router struct {
	cfg                 *config.Config
	logger              *zap.Logger
	db                  *gorm.DB
	authMiddleware      *auth.Middleware
	rateLimiter         *middleware.RateLimiter
	userHandler         *handler.UserHandler
	organizationHandler *handler.OrganizationHandler
	contactHandler      *handler.ContactHandler
	pipelineHandler     *handler.PipelineHandler
	dealHandler         *handler.DealHandler
	activityHandler     *handler.ActivityHandler
	noteHandler         *handler.NoteHandler
	auditHandler        *handler.AuditHandler
	notificationHandler *handler.NotificationHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	userHandler *handler.UserHandler,
	organizationHandler *handler.OrganizationHandler,
	contactHandler *handler.ContactHandler,
	pipelineHandler *handler.PipelineHandler,
	dealHandler *handler.DealHandler,
	activityHandler *handler.ActivityHandler,
	noteHandler *handler.NoteHandler,
	auditHandler *handler.AuditHandler,
	notificationHandler *handler.NotificationHandler,
) *Router {
	return &Router{
		cfg:                 cfg,
		logger:              logger,
		db:                  db,
		authMiddleware:      authMiddleware,
		rateLimiter:         rateLimiter,
		userHandler:         userHandler,
		organizationHandler: organizationHandler,
		contactHandler:      contactHandler,
		pipelineHandler:     pipelineHandler,
		dealHandler:         dealHandler,
		activityHandler:     activityHandler,
		noteHandler:         noteHandler,
		auditHandler:        auditHandler,
		notificationHandler: notificationHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.Limit)

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with pool stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
				"wait_count":       stats.WaitCount,
			},
		})
	})

	// Combined readiness check
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		status := "healthy"
		code := http.StatusOK
		if !allHealthy {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"checks": checks,
		})
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/", rt.userHandler.List)
			r.Post("/", rt.userHandler.Create)
			r.Get("/{id}", rt.userHandler.GetByID)
			r.Get("/{id}/deals", rt.userHandler.GetDeals)
			r.Put("/{id}", rt.userHandler.Update)
			r.Delete("/{id}", rt.userHandler.Delete)
		})

		// Organizations
		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", rt.organizationHandler.List)
			r.Post("/", rt.organizationHandler.Create)
			r.Get("/{id}", rt.organizationHandler.GetByID)
			r.Put("/{id}", rt.organizationHandler.Update)
			r.Delete("/{id}", rt.organizationHandler.Delete)
		})

		// Contacts
		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", rt.contactHandler.List)
			r.Post("/", rt.contactHandler.Create)
			r.Get("/{id}", rt.contactHandler.GetByID)
			r.Put("/{id}", rt.contactHandler.Update)
			r.Delete("/{id}", rt.contactHandler.Delete)
			r.Get("/{id}/deals", rt.contactHandler.GetDeals)
		})

		// Pipelines and stages. Structural changes are restricted to
		// admins and managers.
		r.Route("/pipelines", func(r chi.Router) {
			r.Get("/", rt.pipelineHandler.List)
			r.Get("/default", rt.pipelineHandler.GetDefault)
			r.Get("/{id}", rt.pipelineHandler.GetByID)
			r.Get("/{id}/board", rt.pipelineHandler.Board)

			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRole(domain.UserRoleAdmin, domain.UserRoleManager))
				r.Post("/", rt.pipelineHandler.Create)
				r.Put("/{id}", rt.pipelineHandler.Update)
				r.Delete("/{id}", rt.pipelineHandler.Delete)
				r.Post("/{id}/stages", rt.pipelineHandler.AddStage)
				r.Put("/{id}/stages/{stageId}", rt.pipelineHandler.UpdateStage)
				r.Delete("/{id}/stages/{stageId}", rt.pipelineHandler.DeleteStage)
			})
		})

		// Deals
		r.Route("/deals", func(r chi.Router) {
			r.Get("/", rt.dealHandler.List)
			r.Post("/", rt.dealHandler.Create)
			r.Get("/{id}", rt.dealHandler.GetByID)
			r.Put("/{id}", rt.dealHandler.Update)
			r.Delete("/{id}", rt.dealHandler.Delete)
			r.Post("/{id}/stage", rt.dealHandler.MoveStage)
			r.Post("/{id}/pipeline", rt.dealHandler.MovePipeline)
			r.Post("/{id}/close", rt.dealHandler.Close)
			r.Post("/{id}/reopen", rt.dealHandler.Reopen)
			r.Get("/{id}/history", rt.dealHandler.GetStageHistory)
			r.Get("/{id}/notes", rt.dealHandler.GetNotes)
		})

		// Activities
		r.Route("/activities", func(r chi.Router) {
			r.Get("/", rt.activityHandler.List)
			r.Post("/", rt.activityHandler.Create)
			r.Get("/{id}", rt.activityHandler.GetByID)
			r.Put("/{id}", rt.activityHandler.Update)
			r.Delete("/{id}", rt.activityHandler.Delete)
		})

		// Notes
		r.Route("/notes", func(r chi.Router) {
			r.Post("/", rt.noteHandler.Create)
			r.Get("/{id}", rt.noteHandler.GetByID)
			r.Put("/{id}", rt.noteHandler.Update)
			r.Delete("/{id}", rt.noteHandler.Delete)
		})

		// Audit trail (read-only)
		r.Route("/audit", func(r chi.Router) {
			r.Get("/", rt.auditHandler.List)
			r.Get("/{kind}/{id}", rt.auditHandler.Trail)
		})

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", rt.notificationHandler.List)
			r.Get("/unread-count", rt.notificationHandler.UnreadCount)
			r.Post("/read-all", rt.notificationHandler.MarkAllRead)
			r.Post("/{id}/read", rt.notificationHandler.MarkRead)
		})
	})

	return r
}
