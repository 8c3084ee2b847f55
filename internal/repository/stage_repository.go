package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *StageRepository) WithTx(tx *gorm.DB) *StageRepository {
	return &StageRepository{db: tx}
}

func (r *StageRepository) Create(ctx context.Context, stage *domain.Stage) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(stage).Error
}

func (r *StageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Stage, error) {
	var stage domain.Stage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *StageRepository) Update(ctx context.Context, stage *domain.Stage) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(stage).Error
}

func (r *StageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Stage{}, "id = ?", id).Error
}

// ListByPipeline returns the live stages of a pipeline ordered by position
func (r *StageRepository) ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.Stage, error) {
	var stages []domain.Stage
	err := r.db.WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("position ASC").
		Find(&stages).Error
	return stages, err
}

// GetFirstStage returns the lowest-position stage of a pipeline
func (r *StageRepository) GetFirstStage(ctx context.Context, pipelineID uuid.UUID) (*domain.Stage, error) {
	var stage domain.Stage
	err := r.db.WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("position ASC").
		First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// ExistsAtPosition reports whether a live stage occupies the position in a
// pipeline, optionally excluding one stage (for moves)
func (r *StageRepository) ExistsAtPosition(ctx context.Context, pipelineID uuid.UUID, position int, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Stage{}).
		Where("pipeline_id = ? AND position = ?", pipelineID, position)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// CountByPipeline counts the live stages of a pipeline
func (r *StageRepository) CountByPipeline(ctx context.Context, pipelineID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Stage{}).
		Where("pipeline_id = ?", pipelineID).
		Count(&count).Error
	return count, err
}
