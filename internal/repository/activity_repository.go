package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityFilters contains filter options for listing activities
type ActivityFilters struct {
	DealID          *uuid.UUID
	Type            *domain.ActivityType
	CreatedByID     *uuid.UUID
	Completed       *bool
	ScheduledAfter  *time.Time
	ScheduledBefore *time.Time
}

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ActivityRepository) WithTx(tx *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: tx}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(activity).Error
}

func (r *ActivityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	var activity domain.Activity
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("id = ?", id).
		First(&activity).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *ActivityRepository) Update(ctx context.Context, activity *domain.Activity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(activity).Error
}

func (r *ActivityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Activity{}, "id = ?", id).Error
}

func (r *ActivityRepository) List(ctx context.Context, page, pageSize int, filters *ActivityFilters) ([]domain.Activity, int64, error) {
	var activities []domain.Activity
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Activity{}).
		Preload("CreatedBy")

	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("scheduled_at DESC").Offset(offset).Limit(pageSize).Find(&activities).Error

	return activities, total, err
}

// ListByDeal returns a deal's activities ordered by schedule
func (r *ActivityRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.Activity, error) {
	var activities []domain.Activity
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("deal_id = ?", dealID).
		Order("scheduled_at ASC").
		Find(&activities).Error
	return activities, err
}

func (r *ActivityRepository) applyFilters(query *gorm.DB, filters *ActivityFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.DealID != nil {
		query = query.Where("deal_id = ?", *filters.DealID)
	}

	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}

	if filters.CreatedByID != nil {
		query = query.Where("created_by_id = ?", *filters.CreatedByID)
	}

	if filters.Completed != nil {
		if *filters.Completed {
			query = query.Where("completed_at IS NOT NULL")
		} else {
			query = query.Where("completed_at IS NULL")
		}
	}

	if filters.ScheduledAfter != nil {
		query = query.Where("scheduled_at >= ?", *filters.ScheduledAfter)
	}

	if filters.ScheduledBefore != nil {
		query = query.Where("scheduled_at <= ?", *filters.ScheduledBefore)
	}

	return query
}
