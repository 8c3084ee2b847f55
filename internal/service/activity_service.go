package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/integrity"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ActivityService manages activities attached to deals
type ActivityService struct {
	db           *gorm.DB
	activityRepo *repository.ActivityRepository
	validator    *integrity.Validator
	audit        *AuditService
	locks        *repository.KeyLock
	logger       *zap.Logger
}

// NewActivityService creates a new activity service
func NewActivityService(db *gorm.DB, activityRepo *repository.ActivityRepository, validator *integrity.Validator, audit *AuditService, locks *repository.KeyLock, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		db:           db,
		activityRepo: activityRepo,
		validator:    validator,
		audit:        audit,
		locks:        locks,
		logger:       logger,
	}
}

func activitySnapshot(a *domain.Activity) map[string]interface{} {
	snap := map[string]interface{}{
		"deal_id":       a.DealID.String(),
		"type":          string(a.Type),
		"subject":       a.Subject,
		"scheduled_at":  a.ScheduledAt.UTC().Format(time.RFC3339),
		"created_by_id": a.CreatedByID.String(),
	}
	if a.CompletedAt != nil {
		snap["completed_at"] = a.CompletedAt.UTC().Format(time.RFC3339)
	}
	return snap
}

// Create creates an activity on a live deal
func (s *ActivityService) Create(ctx context.Context, req *domain.CreateActivityRequest) (*domain.Activity, error) {
	activityType := domain.ActivityType(req.Type)
	if !activityType.IsValid() {
		return nil, ErrInvalidInput
	}

	activity := &domain.Activity{
		DealID:      req.DealID,
		Type:        activityType,
		Subject:     req.Subject,
		ScheduledAt: req.ScheduledAt,
		Notes:       req.Notes,
		CreatedByID: req.CreatedByID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		validator := s.validator.WithTx(tx)

		if err := validator.CheckDeal(ctx, req.DealID, "deal_id"); err != nil {
			return err
		}
		if err := validator.CheckUser(ctx, req.CreatedByID, "created_by_id"); err != nil {
			return err
		}

		if err := s.activityRepo.WithTx(tx).Create(ctx, activity); err != nil {
			return fmt.Errorf("failed to create activity: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionCreate, domain.KindActivity, activity.ID, nil, activitySnapshot(activity))
	})
	if err != nil {
		return nil, err
	}

	return activity, nil
}

// GetByID fetches an activity
func (s *ActivityService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	activity, err := s.activityRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return activity, nil
}

// List returns activities matching the filters
func (s *ActivityService) List(ctx context.Context, page, pageSize int, filters *repository.ActivityFilters) ([]domain.Activity, int64, error) {
	return s.activityRepo.List(ctx, page, pageSize, filters)
}

// ListByDeal returns a deal's activities ordered by schedule
func (s *ActivityService) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.Activity, error) {
	return s.activityRepo.ListByDeal(ctx, dealID)
}

// Update patches an activity. Completion must not precede the schedule.
func (s *ActivityService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateActivityRequest) (*domain.Activity, error) {
	s.locks.Lock(domain.KindActivity, id)
	defer s.locks.Unlock(domain.KindActivity, id)

	var activity *domain.Activity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activityRepo := s.activityRepo.WithTx(tx)

		var err error
		activity, err = activityRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		before := activitySnapshot(activity)

		if req.Type != nil {
			activityType := domain.ActivityType(*req.Type)
			if !activityType.IsValid() {
				return ErrInvalidInput
			}
			activity.Type = activityType
		}
		if req.Subject != nil {
			activity.Subject = *req.Subject
		}
		if req.ScheduledAt != nil {
			activity.ScheduledAt = *req.ScheduledAt
		}
		if req.CompletedAt != nil {
			activity.CompletedAt = req.CompletedAt
		}
		if req.Notes != nil {
			activity.Notes = *req.Notes
		}

		if activity.CompletedAt != nil && activity.CompletedAt.Before(activity.ScheduledAt) {
			return ErrCompletedBeforeScheduled
		}

		if err := activityRepo.Update(ctx, activity); err != nil {
			return fmt.Errorf("failed to update activity: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionUpdate, domain.KindActivity, activity.ID, before, activitySnapshot(activity))
	})
	if err != nil {
		return nil, err
	}

	return activity, nil
}

// SoftDelete tombstones an activity
func (s *ActivityService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.locks.Lock(domain.KindActivity, id)
	defer s.locks.Unlock(domain.KindActivity, id)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activityRepo := s.activityRepo.WithTx(tx)

		activity, err := activityRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := activityRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete activity: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionSoftDelete, domain.KindActivity, id, activitySnapshot(activity), nil)
	})
}
