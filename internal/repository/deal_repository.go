package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DealFilters contains all filter options for listing deals
type DealFilters struct {
	Status        *domain.DealStatus
	PipelineID    *uuid.UUID
	StageID       *uuid.UUID
	ContactID     *uuid.UUID
	AssignedToID  *uuid.UUID
	MinValue      *float64
	MaxValue      *float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	CloseAfter    *time.Time
	CloseBefore   *time.Time
	SearchQuery   *string
}

// DealSortOption represents available sort options
type DealSortOption string

const (
	DealSortByCreatedDesc   DealSortOption = "created_desc"
	DealSortByCreatedAsc    DealSortOption = "created_asc"
	DealSortByValueDesc     DealSortOption = "value_desc"
	DealSortByValueAsc      DealSortOption = "value_asc"
	DealSortByCloseDateDesc DealSortOption = "close_date_desc"
	DealSortByCloseDateAsc  DealSortOption = "close_date_asc"
)

type DealRepository struct {
	db *gorm.DB
}

func NewDealRepository(db *gorm.DB) *DealRepository {
	return &DealRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *DealRepository) WithTx(tx *gorm.DB) *DealRepository {
	return &DealRepository{db: tx}
}

func (r *DealRepository) Create(ctx context.Context, deal *domain.Deal) error {
	// Omit associations to avoid GORM trying to upsert related records
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(deal).Error
}

func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("Stage").
		Preload("AssignedTo").
		Where("id = ?", id).
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *DealRepository) Update(ctx context.Context, deal *domain.Deal) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(deal).Error
}

func (r *DealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Deal{}, "id = ?", id).Error
}

func (r *DealRepository) List(ctx context.Context, page, pageSize int, filters *DealFilters, sortBy DealSortOption) ([]domain.Deal, int64, error) {
	var deals []domain.Deal
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Preload("Contact").
		Preload("Stage").
		Preload("AssignedTo")

	query = r.applyFilters(query, filters)

	// Count total matching records
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applySorting(query, sortBy)

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&deals).Error

	return deals, total, err
}

// ListOpenByPipeline returns all open deals in a pipeline for the board view
func (r *DealRepository) ListOpenByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.Deal, error) {
	var deals []domain.Deal
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("Stage").
		Preload("AssignedTo").
		Where("pipeline_id = ? AND status = ?", pipelineID, domain.DealStatusOpen).
		Order("value DESC").
		Find(&deals).Error
	return deals, err
}

// ListByContact returns all deals for a specific contact
func (r *DealRepository) ListByContact(ctx context.Context, contactID uuid.UUID) ([]domain.Deal, error) {
	var deals []domain.Deal
	err := r.db.WithContext(ctx).
		Preload("Stage").
		Preload("AssignedTo").
		Where("contact_id = ?", contactID).
		Order("created_at DESC").
		Find(&deals).Error
	return deals, err
}

// ListByAssignee returns all deals assigned to a specific user
func (r *DealRepository) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]domain.Deal, error) {
	var deals []domain.Deal
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("Stage").
		Where("assigned_to_id = ?", userID).
		Order("created_at DESC").
		Find(&deals).Error
	return deals, err
}

// CountOpenByContact counts open deals referencing a contact, used before
// the contact may be soft-deleted
func (r *DealRepository) CountOpenByContact(ctx context.Context, contactID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Where("contact_id = ? AND status = ?", contactID, domain.DealStatusOpen).
		Count(&count).Error
	return count, err
}

// CountOpenByAssignee counts open deals assigned to a user
func (r *DealRepository) CountOpenByAssignee(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Where("assigned_to_id = ? AND status = ?", userID, domain.DealStatusOpen).
		Count(&count).Error
	return count, err
}

// CountOpenByPipeline counts open deals in a pipeline
func (r *DealRepository) CountOpenByPipeline(ctx context.Context, pipelineID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Where("pipeline_id = ? AND status = ?", pipelineID, domain.DealStatusOpen).
		Count(&count).Error
	return count, err
}

// CountByStage counts deals currently sitting in a stage, open or closed
func (r *DealRepository) CountByStage(ctx context.Context, stageID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Where("stage_id = ?", stageID).
		Count(&count).Error
	return count, err
}

// GetWonBetween returns deals won within a date range
func (r *DealRepository) GetWonBetween(ctx context.Context, from, to time.Time) ([]domain.Deal, error) {
	var deals []domain.Deal
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("AssignedTo").
		Where("status = ?", domain.DealStatusWon).
		Where("closed_at >= ? AND closed_at <= ?", from, to).
		Order("closed_at DESC").
		Find(&deals).Error
	return deals, err
}

// applyFilters applies all filter criteria to the query
func (r *DealRepository) applyFilters(query *gorm.DB, filters *DealFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if filters.PipelineID != nil {
		query = query.Where("pipeline_id = ?", *filters.PipelineID)
	}

	if filters.StageID != nil {
		query = query.Where("stage_id = ?", *filters.StageID)
	}

	if filters.ContactID != nil {
		query = query.Where("contact_id = ?", *filters.ContactID)
	}

	if filters.AssignedToID != nil {
		query = query.Where("assigned_to_id = ?", *filters.AssignedToID)
	}

	if filters.MinValue != nil {
		query = query.Where("value >= ?", *filters.MinValue)
	}

	if filters.MaxValue != nil {
		query = query.Where("value <= ?", *filters.MaxValue)
	}

	if filters.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filters.CreatedAfter)
	}

	if filters.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filters.CreatedBefore)
	}

	if filters.CloseAfter != nil {
		query = query.Where("expected_close_date >= ?", *filters.CloseAfter)
	}

	if filters.CloseBefore != nil {
		query = query.Where("expected_close_date <= ?", *filters.CloseBefore)
	}

	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where("LOWER(title) LIKE ?", searchPattern)
	}

	return query
}

// applySorting applies the sorting option to the query
func (r *DealRepository) applySorting(query *gorm.DB, sortBy DealSortOption) *gorm.DB {
	switch sortBy {
	case DealSortByCreatedAsc:
		return query.Order("created_at ASC")
	case DealSortByValueDesc:
		return query.Order("value DESC")
	case DealSortByValueAsc:
		return query.Order("value ASC")
	case DealSortByCloseDateDesc:
		return query.Order("expected_close_date DESC")
	case DealSortByCloseDateAsc:
		return query.Order("expected_close_date ASC")
	default: // DealSortByCreatedDesc
		return query.Order("created_at DESC")
	}
}
