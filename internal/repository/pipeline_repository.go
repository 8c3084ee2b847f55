package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PipelineRepository struct {
	db *gorm.DB
}

func NewPipelineRepository(db *gorm.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PipelineRepository) WithTx(tx *gorm.DB) *PipelineRepository {
	return &PipelineRepository{db: tx}
}

func (r *PipelineRepository) Create(ctx context.Context, pipeline *domain.Pipeline) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(pipeline).Error
}

func (r *PipelineRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	var pipeline domain.Pipeline
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&pipeline).Error
	if err != nil {
		return nil, err
	}
	return &pipeline, nil
}

// GetDefault returns the default pipeline, or gorm.ErrRecordNotFound when
// none is set
func (r *PipelineRepository) GetDefault(ctx context.Context) (*domain.Pipeline, error) {
	var pipeline domain.Pipeline
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("is_default = ?", true).
		First(&pipeline).Error
	if err != nil {
		return nil, err
	}
	return &pipeline, nil
}

func (r *PipelineRepository) Update(ctx context.Context, pipeline *domain.Pipeline) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(pipeline).Error
}

func (r *PipelineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Pipeline{}, "id = ?", id).Error
}

func (r *PipelineRepository) List(ctx context.Context, page, pageSize int, search *string) ([]domain.Pipeline, int64, error) {
	var pipelines []domain.Pipeline
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Pipeline{}).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})

	if search != nil && *search != "" {
		searchPattern := "%" + strings.ToLower(*search) + "%"
		query = query.Where("LOWER(name) LIKE ?", searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at ASC").Offset(offset).Limit(pageSize).Find(&pipelines).Error

	return pipelines, total, err
}

// ClearDefault unsets the default flag on every pipeline except the given
// one. Runs inside the same transaction as setting the new default so at
// most one default exists at any point observable after commit.
func (r *PipelineRepository) ClearDefault(ctx context.Context, exceptID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&domain.Pipeline{}).
		Where("is_default = ? AND id <> ?", true, exceptID).
		Update("is_default", false).Error
}
