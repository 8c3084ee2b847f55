package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *NoteRepository) WithTx(tx *gorm.DB) *NoteRepository {
	return &NoteRepository{db: tx}
}

func (r *NoteRepository) Create(ctx context.Context, note *domain.Note) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(note).Error
}

func (r *NoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	var note domain.Note
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("id = ?", id).
		First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *NoteRepository) Update(ctx context.Context, note *domain.Note) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(note).Error
}

func (r *NoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Note{}, "id = ?", id).Error
}

// ListByDeal returns a deal's notes, newest first
func (r *NoteRepository) ListByDeal(ctx context.Context, dealID uuid.UUID, page, pageSize int) ([]domain.Note, int64, error) {
	var notes []domain.Note
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Note{}).
		Preload("CreatedBy").
		Where("deal_id = ?", dealID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&notes).Error

	return notes, total, err
}
