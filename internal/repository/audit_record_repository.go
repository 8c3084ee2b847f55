package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditRecordFilter contains filter options for querying the audit trail
type AuditRecordFilter struct {
	ActorID    *uuid.UUID
	Action     *domain.AuditAction
	EntityKind *domain.EntityKind
	EntityID   *uuid.UUID
	From       *time.Time
	To         *time.Time
}

type AuditRecordRepository struct {
	db *gorm.DB
}

func NewAuditRecordRepository(db *gorm.DB) *AuditRecordRepository {
	return &AuditRecordRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *AuditRecordRepository) WithTx(tx *gorm.DB) *AuditRecordRepository {
	return &AuditRecordRepository{db: tx}
}

// Create appends a record to the trail. There is deliberately no Update or
// per-record Delete on this repository.
func (r *AuditRecordRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error
}

// ListByEntity returns an entity's trail in chronological order. The query
// runs fresh on each call, so callers can replay it any number of times.
func (r *AuditRecordRepository) ListByEntity(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	err := r.db.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("recorded_at ASC, id ASC").
		Find(&records).Error
	return records, err
}

// List returns records matching the filter, newest first
func (r *AuditRecordRepository) List(ctx context.Context, page, pageSize int, filter *AuditRecordFilter) ([]domain.AuditRecord, int64, error) {
	var records []domain.AuditRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.AuditRecord{})

	if filter != nil {
		if filter.ActorID != nil {
			query = query.Where("actor_id = ?", *filter.ActorID)
		}
		if filter.Action != nil {
			query = query.Where("action = ?", *filter.Action)
		}
		if filter.EntityKind != nil {
			query = query.Where("entity_kind = ?", *filter.EntityKind)
		}
		if filter.EntityID != nil {
			query = query.Where("entity_id = ?", *filter.EntityID)
		}
		if filter.From != nil {
			query = query.Where("recorded_at >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where("recorded_at <= ?", *filter.To)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("recorded_at DESC").Offset(offset).Limit(pageSize).Find(&records).Error

	return records, total, err
}

// DeleteOlderThan hard-deletes records older than the cutoff. Used only by
// the retention job.
func (r *AuditRecordRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff).
		Delete(&domain.AuditRecord{})
	return result.RowsAffected, result.Error
}
