package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DealStageHistoryRepository struct {
	db *gorm.DB
}

func NewDealStageHistoryRepository(db *gorm.DB) *DealStageHistoryRepository {
	return &DealStageHistoryRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *DealStageHistoryRepository) WithTx(tx *gorm.DB) *DealStageHistoryRepository {
	return &DealStageHistoryRepository{db: tx}
}

func (r *DealStageHistoryRepository) Create(ctx context.Context, entry *domain.DealStageHistory) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(entry).Error
}

// RecordTransition is a convenience wrapper that builds and stores a history
// entry for a stage movement
func (r *DealStageHistoryRepository) RecordTransition(ctx context.Context, dealID uuid.UUID, fromStageID *uuid.UUID, toStageID uuid.UUID, backward bool, changedByID uuid.UUID, notes string) error {
	entry := &domain.DealStageHistory{
		DealID:      dealID,
		FromStageID: fromStageID,
		ToStageID:   toStageID,
		Backward:    backward,
		ChangedByID: changedByID,
		Notes:       notes,
		ChangedAt:   time.Now().UTC(),
	}
	return r.Create(ctx, entry)
}

// ListByDeal returns a deal's stage movements in chronological order
func (r *DealStageHistoryRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.DealStageHistory, error) {
	var entries []domain.DealStageHistory
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("changed_at ASC").
		Find(&entries).Error
	return entries, err
}
