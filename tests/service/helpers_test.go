package service_test

import (
	"context"

	"github.com/nordcrm/pipeline-api/internal/auth"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/integrity"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// services bundles every service wired against one test database
type services struct {
	users         *service.UserService
	organizations *service.OrganizationService
	contacts      *service.ContactService
	pipelines     *service.PipelineService
	deals         *service.DealService
	activities    *service.ActivityService
	notes         *service.NoteService
	notifications *service.NotificationService
	audit         *service.AuditService
}

func newServices(db *gorm.DB) *services {
	logger := zap.NewNop()

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

	locks := repository.NewKeyLock()
	validator := integrity.NewValidator(db)

	auditService := service.NewAuditService(auditRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, logger)

	return &services{
		users:         service.NewUserService(db, userRepo, dealRepo, auditService, locks, logger),
		organizations: service.NewOrganizationService(db, organizationRepo, contactRepo, auditService, locks, logger),
		contacts:      service.NewContactService(db, contactRepo, dealRepo, validator, auditService, locks, logger),
		pipelines:     service.NewPipelineService(db, pipelineRepo, stageRepo, dealRepo, validator, auditService, locks, logger),
		deals:         service.NewDealService(db, dealRepo, stageRepo, pipelineRepo, historyRepo, validator, auditService, notificationService, locks, logger),
		activities:    service.NewActivityService(db, activityRepo, validator, auditService, locks, logger),
		notes:         service.NewNoteService(db, noteRepo, validator, auditService, locks, logger),
		notifications: notificationService,
		audit:         auditService,
	}
}

// actorCtx returns a context carrying the given user as the authenticated actor
func actorCtx(user *domain.User) context.Context {
	id := user.ID
	return auth.WithActorContext(context.Background(), &auth.ActorContext{
		ActorID:     &id,
		DisplayName: user.Name,
		Email:       user.Email,
		Role:        user.Role,
	})
}

// ptr returns a pointer to the given value
func ptr[T any](v T) *T {
	return &v
}
