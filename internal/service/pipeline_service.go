package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/integrity"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PipelineService manages pipelines and their stages. Setting a default
// pipeline is an atomic replacement: the previous default is cleared in the
// same transaction, so no committed state ever shows two defaults.
type PipelineService struct {
	db           *gorm.DB
	pipelineRepo *repository.PipelineRepository
	stageRepo    *repository.StageRepository
	dealRepo     *repository.DealRepository
	validator    *integrity.Validator
	audit        *AuditService
	locks        *repository.KeyLock
	logger       *zap.Logger
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(
	db *gorm.DB,
	pipelineRepo *repository.PipelineRepository,
	stageRepo *repository.StageRepository,
	dealRepo *repository.DealRepository,
	validator *integrity.Validator,
	audit *AuditService,
	locks *repository.KeyLock,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		db:           db,
		pipelineRepo: pipelineRepo,
		stageRepo:    stageRepo,
		dealRepo:     dealRepo,
		validator:    validator,
		audit:        audit,
		locks:        locks,
		logger:       logger,
	}
}

func pipelineSnapshot(p *domain.Pipeline) map[string]interface{} {
	return map[string]interface{}{
		"name":          p.Name,
		"is_default":    p.IsDefault,
		"created_by_id": p.CreatedByID.String(),
	}
}

func stageSnapshot(st *domain.Stage) map[string]interface{} {
	return map[string]interface{}{
		"pipeline_id":     st.PipelineID.String(),
		"name":            st.Name,
		"position":        st.Position,
		"win_probability": st.WinProbability,
	}
}

// The "at most one default pipeline" invariant spans rows, so per-pipeline
// keys cannot serialize two swaps racing on different pipelines. Every
// default-flag mutation takes this sentinel key instead; it is always
// acquired before any per-pipeline key.
var defaultPipelineKey = uuid.Nil

// Create creates a pipeline with its initial stages. Stage positions must be
// unique within the request.
func (s *PipelineService) Create(ctx context.Context, req *domain.CreatePipelineRequest) (*domain.Pipeline, error) {
	if req.IsDefault {
		s.locks.Lock(domain.KindPipeline, defaultPipelineKey)
		defer s.locks.Unlock(domain.KindPipeline, defaultPipelineKey)
	}

	positions := make(map[int]bool, len(req.Stages))
	for _, st := range req.Stages {
		if positions[st.Position] {
			return nil, ErrDuplicatePosition
		}
		positions[st.Position] = true
	}

	pipeline := &domain.Pipeline{
		Name:        req.Name,
		CreatedByID: req.CreatedByID,
		IsDefault:   req.IsDefault,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pipelineRepo := s.pipelineRepo.WithTx(tx)
		stageRepo := s.stageRepo.WithTx(tx)

		if err := s.validator.WithTx(tx).CheckUser(ctx, req.CreatedByID, "created_by_id"); err != nil {
			return err
		}

		if err := pipelineRepo.Create(ctx, pipeline); err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}

		if pipeline.IsDefault {
			if err := pipelineRepo.ClearDefault(ctx, pipeline.ID); err != nil {
				return fmt.Errorf("failed to clear previous default: %w", err)
			}
		}

		for _, input := range req.Stages {
			stage := &domain.Stage{
				PipelineID:     pipeline.ID,
				Name:           input.Name,
				Position:       input.Position,
				WinProbability: input.WinProbability,
			}
			if err := stageRepo.Create(ctx, stage); err != nil {
				return fmt.Errorf("failed to create stage: %w", err)
			}
		}

		return s.audit.Record(ctx, tx, domain.AuditActionCreate, domain.KindPipeline, pipeline.ID, nil, pipelineSnapshot(pipeline))
	})
	if err != nil {
		return nil, err
	}

	return s.pipelineRepo.GetByID(ctx, pipeline.ID)
}

// GetByID fetches a pipeline with its stages ordered by position
func (s *PipelineService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	pipeline, err := s.pipelineRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return pipeline, nil
}

// GetDefault fetches the default pipeline
func (s *PipelineService) GetDefault(ctx context.Context) (*domain.Pipeline, error) {
	pipeline, err := s.pipelineRepo.GetDefault(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return pipeline, nil
}

// List returns pipelines with their stages
func (s *PipelineService) List(ctx context.Context, page, pageSize int, search *string) ([]domain.Pipeline, int64, error) {
	return s.pipelineRepo.List(ctx, page, pageSize, search)
}

// Update renames a pipeline or changes its default flag
func (s *PipelineService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdatePipelineRequest) (*domain.Pipeline, error) {
	if req.IsDefault != nil && *req.IsDefault {
		s.locks.Lock(domain.KindPipeline, defaultPipelineKey)
		defer s.locks.Unlock(domain.KindPipeline, defaultPipelineKey)
	}
	s.locks.Lock(domain.KindPipeline, id)
	defer s.locks.Unlock(domain.KindPipeline, id)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pipelineRepo := s.pipelineRepo.WithTx(tx)

		pipeline, err := pipelineRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		before := pipelineSnapshot(pipeline)

		if req.Name != nil {
			pipeline.Name = *req.Name
		}
		if req.IsDefault != nil {
			pipeline.IsDefault = *req.IsDefault
		}

		if err := pipelineRepo.Update(ctx, pipeline); err != nil {
			return fmt.Errorf("failed to update pipeline: %w", err)
		}

		if pipeline.IsDefault {
			if err := pipelineRepo.ClearDefault(ctx, pipeline.ID); err != nil {
				return fmt.Errorf("failed to clear previous default: %w", err)
			}
		}

		return s.audit.Record(ctx, tx, domain.AuditActionUpdate, domain.KindPipeline, pipeline.ID, before, pipelineSnapshot(pipeline))
	})
	if err != nil {
		return nil, err
	}

	return s.pipelineRepo.GetByID(ctx, id)
}

// SoftDelete tombstones a pipeline. Blocked while open deals still sit in it.
func (s *PipelineService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.locks.Lock(domain.KindPipeline, id)
	defer s.locks.Unlock(domain.KindPipeline, id)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pipelineRepo := s.pipelineRepo.WithTx(tx)

		pipeline, err := pipelineRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		openDeals, err := s.dealRepo.WithTx(tx).CountOpenByPipeline(ctx, id)
		if err != nil {
			return err
		}
		if openDeals > 0 {
			return ErrPipelineHasDeals
		}

		if err := pipelineRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete pipeline: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionSoftDelete, domain.KindPipeline, id, pipelineSnapshot(pipeline), nil)
	})
}

// AddStage adds a stage to a pipeline at a free position
func (s *PipelineService) AddStage(ctx context.Context, pipelineID uuid.UUID, req *domain.CreateStageRequest) (*domain.Stage, error) {
	s.locks.Lock(domain.KindPipeline, pipelineID)
	defer s.locks.Unlock(domain.KindPipeline, pipelineID)

	stage := &domain.Stage{
		PipelineID:     pipelineID,
		Name:           req.Name,
		Position:       req.Position,
		WinProbability: req.WinProbability,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stageRepo := s.stageRepo.WithTx(tx)

		if err := s.validator.WithTx(tx).CheckPipeline(ctx, pipelineID, "pipeline_id"); err != nil {
			return err
		}

		occupied, err := stageRepo.ExistsAtPosition(ctx, pipelineID, req.Position, nil)
		if err != nil {
			return err
		}
		if occupied {
			return ErrDuplicatePosition
		}

		if err := stageRepo.Create(ctx, stage); err != nil {
			return fmt.Errorf("failed to create stage: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionCreate, domain.KindStage, stage.ID, nil, stageSnapshot(stage))
	})
	if err != nil {
		return nil, err
	}

	return stage, nil
}

// UpdateStage patches a stage. The owning pipeline never changes. Position
// uniqueness is checked against sibling stages, so the lock is taken on the
// owning pipeline rather than the stage itself — two sibling stages moving
// to the same position must serialize.
func (s *PipelineService) UpdateStage(ctx context.Context, stageID uuid.UUID, req *domain.UpdateStageRequest) (*domain.Stage, error) {
	pipelineID, err := s.owningPipeline(ctx, stageID)
	if err != nil {
		return nil, err
	}
	s.locks.Lock(domain.KindPipeline, pipelineID)
	defer s.locks.Unlock(domain.KindPipeline, pipelineID)

	var stage *domain.Stage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stageRepo := s.stageRepo.WithTx(tx)

		var err error
		stage, err = stageRepo.GetByID(ctx, stageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		before := stageSnapshot(stage)

		if req.Name != nil {
			stage.Name = *req.Name
		}
		if req.Position != nil && *req.Position != stage.Position {
			occupied, err := stageRepo.ExistsAtPosition(ctx, stage.PipelineID, *req.Position, &stage.ID)
			if err != nil {
				return err
			}
			if occupied {
				return ErrDuplicatePosition
			}
			stage.Position = *req.Position
		}
		if req.WinProbability != nil {
			stage.WinProbability = *req.WinProbability
		}

		if err := stageRepo.Update(ctx, stage); err != nil {
			return fmt.Errorf("failed to update stage: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionUpdate, domain.KindStage, stage.ID, before, stageSnapshot(stage))
	})
	if err != nil {
		return nil, err
	}

	return stage, nil
}

// DeleteStage tombstones a stage. Blocked while any deal sits in it, and a
// pipeline always keeps at least one stage. The last-stage check counts
// siblings, so like UpdateStage it locks the owning pipeline.
func (s *PipelineService) DeleteStage(ctx context.Context, stageID uuid.UUID) error {
	pipelineID, err := s.owningPipeline(ctx, stageID)
	if err != nil {
		return err
	}
	s.locks.Lock(domain.KindPipeline, pipelineID)
	defer s.locks.Unlock(domain.KindPipeline, pipelineID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stageRepo := s.stageRepo.WithTx(tx)

		stage, err := stageRepo.GetByID(ctx, stageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		dealCount, err := s.dealRepo.WithTx(tx).CountByStage(ctx, stageID)
		if err != nil {
			return err
		}
		if dealCount > 0 {
			return ErrStageHasDeals
		}

		stageCount, err := stageRepo.CountByPipeline(ctx, stage.PipelineID)
		if err != nil {
			return err
		}
		if stageCount <= 1 {
			return ErrLastStage
		}

		if err := stageRepo.Delete(ctx, stageID); err != nil {
			return fmt.Errorf("failed to delete stage: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionSoftDelete, domain.KindStage, stageID, stageSnapshot(stage), nil)
	})
}

// owningPipeline resolves the pipeline a stage belongs to, for lock
// acquisition before the mutating transaction re-reads the stage.
func (s *PipelineService) owningPipeline(ctx context.Context, stageID uuid.UUID) (uuid.UUID, error) {
	stage, err := s.stageRepo.GetByID(ctx, stageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return stage.PipelineID, nil
}
