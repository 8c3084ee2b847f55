package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/auth"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/integrity"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DealService implements the deal lifecycle: creation into a pipeline's
// first stage, stage movement with history, pipeline moves, closing and
// reopening. Every mutation runs in one transaction together with its
// integrity checks and audit record, under the deal's key lock.
type DealService struct {
	db            *gorm.DB
	dealRepo      *repository.DealRepository
	stageRepo     *repository.StageRepository
	pipelineRepo  *repository.PipelineRepository
	historyRepo   *repository.DealStageHistoryRepository
	validator     *integrity.Validator
	audit         *AuditService
	notifications *NotificationService
	locks         *repository.KeyLock
	logger        *zap.Logger
}

// NewDealService creates a new deal service
func NewDealService(
	db *gorm.DB,
	dealRepo *repository.DealRepository,
	stageRepo *repository.StageRepository,
	pipelineRepo *repository.PipelineRepository,
	historyRepo *repository.DealStageHistoryRepository,
	validator *integrity.Validator,
	audit *AuditService,
	notifications *NotificationService,
	locks *repository.KeyLock,
	logger *zap.Logger,
) *DealService {
	return &DealService{
		db:            db,
		dealRepo:      dealRepo,
		stageRepo:     stageRepo,
		pipelineRepo:  pipelineRepo,
		historyRepo:   historyRepo,
		validator:     validator,
		audit:         audit,
		notifications: notifications,
		locks:         locks,
		logger:        logger,
	}
}

// dealSnapshot is the audit representation of a deal's mutable fields
func dealSnapshot(d *domain.Deal) map[string]interface{} {
	snap := map[string]interface{}{
		"title":          d.Title,
		"contact_id":     d.ContactID.String(),
		"value":          d.Value,
		"status":         string(d.Status),
		"pipeline_id":    d.PipelineID.String(),
		"stage_id":       d.StageID.String(),
		"assigned_to_id": d.AssignedToID.String(),
	}
	if d.ExpectedCloseDate != nil {
		snap["expected_close_date"] = d.ExpectedCloseDate.Format("2006-01-02")
	}
	if d.ClosedAt != nil {
		snap["closed_at"] = d.ClosedAt.UTC().Format(time.RFC3339)
	}
	return snap
}

// Create creates a deal. Without an explicit pipeline the default pipeline
// is used; without an explicit stage the deal enters the pipeline's first
// stage.
func (s *DealService) Create(ctx context.Context, req *domain.CreateDealRequest) (*domain.Deal, error) {
	deal := &domain.Deal{
		Title:             req.Title,
		ContactID:         req.ContactID,
		Value:             req.Value,
		Status:            domain.DealStatusOpen,
		ExpectedCloseDate: req.ExpectedCloseDate,
		AssignedToID:      req.AssignedToID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		validator := s.validator.WithTx(tx)
		pipelineRepo := s.pipelineRepo.WithTx(tx)
		stageRepo := s.stageRepo.WithTx(tx)

		// Resolve the pipeline
		if req.PipelineID != nil {
			deal.PipelineID = *req.PipelineID
		} else {
			def, err := pipelineRepo.GetDefault(ctx)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNoDefaultPipeline
				}
				return fmt.Errorf("failed to resolve default pipeline: %w", err)
			}
			deal.PipelineID = def.ID
		}

		// Resolve the stage
		if req.StageID != nil {
			deal.StageID = *req.StageID
		} else {
			first, err := stageRepo.GetFirstStage(ctx, deal.PipelineID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.NewIntegrityError("pipeline_id", "pipeline has no stages")
				}
				return fmt.Errorf("failed to resolve first stage: %w", err)
			}
			deal.StageID = first.ID
		}

		if err := validator.CheckDealReferences(ctx, deal); err != nil {
			return err
		}

		if err := s.dealRepo.WithTx(tx).Create(ctx, deal); err != nil {
			return fmt.Errorf("failed to create deal: %w", err)
		}

		// Initial stage entry, no origin stage
		if err := s.historyRepo.WithTx(tx).RecordTransition(ctx, deal.ID, nil, deal.StageID, false, req.AssignedToID, ""); err != nil {
			return fmt.Errorf("failed to record initial stage: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionCreate, domain.KindDeal, deal.ID, nil, dealSnapshot(deal))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal created",
		zap.String("deal_id", deal.ID.String()),
		zap.String("pipeline_id", deal.PipelineID.String()),
		zap.String("stage_id", deal.StageID.String()))

	return s.dealRepo.GetByID(ctx, deal.ID)
}

// GetByID fetches a deal
func (s *DealService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	deal, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return deal, nil
}

// List returns deals matching the filters
func (s *DealService) List(ctx context.Context, page, pageSize int, filters *repository.DealFilters, sortBy repository.DealSortOption) ([]domain.Deal, int64, error) {
	return s.dealRepo.List(ctx, page, pageSize, filters, sortBy)
}

// GetStageHistory returns a deal's stage movements in chronological order
func (s *DealService) GetStageHistory(ctx context.Context, dealID uuid.UUID) ([]domain.DealStageHistory, error) {
	if _, err := s.GetByID(ctx, dealID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByDeal(ctx, dealID)
}

// Update patches an open deal's editable fields. Closed deals reject all
// updates; stage moves go through MoveStage.
func (s *DealService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateDealRequest) (*domain.Deal, error) {
	s.locks.Lock(domain.KindDeal, id)
	defer s.locks.Unlock(domain.KindDeal, id)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.dealRepo.WithTx(tx)
		validator := s.validator.WithTx(tx)

		deal, err := dealRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if deal.Status.IsTerminal() {
			return ErrDealClosed
		}

		before := dealSnapshot(deal)

		if req.Title != nil {
			deal.Title = *req.Title
		}
		if req.Value != nil {
			deal.Value = *req.Value
		}
		if req.ExpectedCloseDate != nil {
			deal.ExpectedCloseDate = req.ExpectedCloseDate
		}
		if req.ContactID != nil {
			deal.ContactID = *req.ContactID
		}
		if req.AssignedToID != nil {
			deal.AssignedToID = *req.AssignedToID
		}

		// Re-verify every reference, including unchanged ones: a contact
		// soft-deleted since the deal was written must now be rejected.
		if err := validator.CheckDealReferences(ctx, deal); err != nil {
			return err
		}

		if err := dealRepo.Update(ctx, deal); err != nil {
			return fmt.Errorf("failed to update deal: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionUpdate, domain.KindDeal, deal.ID, before, dealSnapshot(deal))
	})
	if err != nil {
		return nil, err
	}

	return s.dealRepo.GetByID(ctx, id)
}

// MoveStage moves an open deal to another stage of its current pipeline.
// Backward moves are allowed and flagged in the history.
func (s *DealService) MoveStage(ctx context.Context, id uuid.UUID, req *domain.MoveDealStageRequest) (*domain.Deal, error) {
	s.locks.Lock(domain.KindDeal, id)
	defer s.locks.Unlock(domain.KindDeal, id)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.dealRepo.WithTx(tx)
		stageRepo := s.stageRepo.WithTx(tx)
		validator := s.validator.WithTx(tx)

		deal, err := dealRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if deal.Status.IsTerminal() {
			return ErrDealClosed
		}

		// Moving to the current stage is a no-op
		if deal.StageID == req.StageID {
			return nil
		}

		if err := validator.CheckStageInPipeline(ctx, req.StageID, deal.PipelineID, "stage_id"); err != nil {
			return err
		}

		fromStage, err := stageRepo.GetByID(ctx, deal.StageID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		toStage, err := stageRepo.GetByID(ctx, req.StageID)
		if err != nil {
			return err
		}

		backward := fromStage != nil && toStage.Position < fromStage.Position

		before := dealSnapshot(deal)
		fromStageID := deal.StageID
		deal.StageID = req.StageID

		if err := dealRepo.Update(ctx, deal); err != nil {
			return fmt.Errorf("failed to move deal stage: %w", err)
		}

		changedBy := actorOrAssignee(ctx, deal)
		if err := s.historyRepo.WithTx(tx).RecordTransition(ctx, deal.ID, &fromStageID, req.StageID, backward, changedBy, req.Notes); err != nil {
			return fmt.Errorf("failed to record stage transition: %w", err)
		}

		if backward {
			s.logger.Warn("deal moved backward",
				zap.String("deal_id", deal.ID.String()),
				zap.String("from_stage_id", fromStageID.String()),
				zap.String("to_stage_id", req.StageID.String()))
		}

		return s.audit.Record(ctx, tx, domain.AuditActionStageChange, domain.KindDeal, deal.ID, before, dealSnapshot(deal))
	})
	if err != nil {
		return nil, err
	}

	return s.dealRepo.GetByID(ctx, id)
}

// MovePipeline moves an open deal to a different pipeline. Without an
// explicit target stage the deal enters the new pipeline's first stage.
func (s *DealService) MovePipeline(ctx context.Context, id uuid.UUID, req *domain.MoveDealPipelineRequest) (*domain.Deal, error) {
	s.locks.Lock(domain.KindDeal, id)
	defer s.locks.Unlock(domain.KindDeal, id)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.dealRepo.WithTx(tx)
		stageRepo := s.stageRepo.WithTx(tx)
		validator := s.validator.WithTx(tx)

		deal, err := dealRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if deal.Status.IsTerminal() {
			return ErrDealClosed
		}

		if err := validator.CheckPipeline(ctx, req.PipelineID, "pipeline_id"); err != nil {
			return err
		}

		var targetStageID uuid.UUID
		if req.StageID != nil {
			if err := validator.CheckStageInPipeline(ctx, *req.StageID, req.PipelineID, "stage_id"); err != nil {
				return err
			}
			targetStageID = *req.StageID
		} else {
			first, err := stageRepo.GetFirstStage(ctx, req.PipelineID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.NewIntegrityError("pipeline_id", "pipeline has no stages")
				}
				return err
			}
			targetStageID = first.ID
		}

		before := dealSnapshot(deal)
		fromStageID := deal.StageID
		deal.PipelineID = req.PipelineID
		deal.StageID = targetStageID

		if err := dealRepo.Update(ctx, deal); err != nil {
			return fmt.Errorf("failed to move deal pipeline: %w", err)
		}

		changedBy := actorOrAssignee(ctx, deal)
		if err := s.historyRepo.WithTx(tx).RecordTransition(ctx, deal.ID, &fromStageID, targetStageID, false, changedBy, "moved to another pipeline"); err != nil {
			return fmt.Errorf("failed to record stage transition: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionStageChange, domain.KindDeal, deal.ID, before, dealSnapshot(deal))
	})
	if err != nil {
		return nil, err
	}

	return s.dealRepo.GetByID(ctx, id)
}

// Close marks an open deal as won or lost. The stage freezes at its closing
// value and the assignee is notified.
func (s *DealService) Close(ctx context.Context, id uuid.UUID, req *domain.CloseDealRequest) (*domain.Deal, error) {
	status := domain.DealStatus(req.Status)
	if !status.IsValid() || status == domain.DealStatusOpen {
		return nil, ErrInvalidStatus
	}

	s.locks.Lock(domain.KindDeal, id)
	defer s.locks.Unlock(domain.KindDeal, id)

	var deal *domain.Deal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.dealRepo.WithTx(tx)

		var err error
		deal, err = dealRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if deal.Status.IsTerminal() {
			return ErrDealClosed
		}

		before := dealSnapshot(deal)
		now := time.Now().UTC()
		deal.Status = status
		deal.ClosedAt = &now

		if err := dealRepo.Update(ctx, deal); err != nil {
			return fmt.Errorf("failed to close deal: %w", err)
		}

		if err := s.audit.Record(ctx, tx, domain.AuditActionClose, domain.KindDeal, deal.ID, before, dealSnapshot(deal)); err != nil {
			return err
		}

		return s.notifications.NotifyDealClosed(ctx, tx, deal, req.Notes)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal closed",
		zap.String("deal_id", deal.ID.String()),
		zap.String("status", string(status)))

	return s.dealRepo.GetByID(ctx, id)
}

// Reopen returns a closed deal to open status in the stage it closed in
func (s *DealService) Reopen(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	s.locks.Lock(domain.KindDeal, id)
	defer s.locks.Unlock(domain.KindDeal, id)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.dealRepo.WithTx(tx)

		deal, err := dealRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !deal.Status.IsTerminal() {
			return ErrDealNotClosed
		}

		before := dealSnapshot(deal)

		// Save skips nil pointers, so clear closed_at explicitly
		if err := tx.WithContext(ctx).Model(&domain.Deal{}).
			Where("id = ?", deal.ID).
			Updates(map[string]interface{}{
				"status":    domain.DealStatusOpen,
				"closed_at": nil,
			}).Error; err != nil {
			return fmt.Errorf("failed to reopen deal: %w", err)
		}

		deal.Status = domain.DealStatusOpen
		deal.ClosedAt = nil

		return s.audit.Record(ctx, tx, domain.AuditActionReopen, domain.KindDeal, deal.ID, before, dealSnapshot(deal))
	})
	if err != nil {
		return nil, err
	}

	return s.dealRepo.GetByID(ctx, id)
}

// SoftDelete tombstones a deal. Its activities, notes, history, and audit
// trail remain readable.
func (s *DealService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.locks.Lock(domain.KindDeal, id)
	defer s.locks.Unlock(domain.KindDeal, id)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.dealRepo.WithTx(tx)

		deal, err := dealRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := dealRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete deal: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionSoftDelete, domain.KindDeal, id, dealSnapshot(deal), nil)
	})
}

// Board returns a pipeline's open deals grouped into stage columns
func (s *DealService) Board(ctx context.Context, pipelineID uuid.UUID) (*domain.Pipeline, []domain.Stage, map[uuid.UUID][]domain.Deal, error) {
	pipeline, err := s.pipelineRepo.GetByID(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, ErrNotFound
		}
		return nil, nil, nil, err
	}

	stages, err := s.stageRepo.ListByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, nil, nil, err
	}

	deals, err := s.dealRepo.ListOpenByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, nil, nil, err
	}

	byStage := make(map[uuid.UUID][]domain.Deal)
	for _, deal := range deals {
		byStage[deal.StageID] = append(byStage[deal.StageID], deal)
	}

	return pipeline, stages, byStage, nil
}

// actorOrAssignee resolves who performed a change: the authenticated actor
// when one exists, otherwise the deal's assignee
func actorOrAssignee(ctx context.Context, deal *domain.Deal) uuid.UUID {
	if actor, ok := auth.FromContext(ctx); ok && actor != nil && actor.ActorID != nil {
		return *actor.ActorID
	}
	return deal.AssignedToID
}
