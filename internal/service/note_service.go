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

// NoteService manages notes attached to deals
type NoteService struct {
	db        *gorm.DB
	noteRepo  *repository.NoteRepository
	validator *integrity.Validator
	audit     *AuditService
	locks     *repository.KeyLock
	logger    *zap.Logger
}

// NewNoteService creates a new note service
func NewNoteService(db *gorm.DB, noteRepo *repository.NoteRepository, validator *integrity.Validator, audit *AuditService, locks *repository.KeyLock, logger *zap.Logger) *NoteService {
	return &NoteService{
		db:        db,
		noteRepo:  noteRepo,
		validator: validator,
		audit:     audit,
		locks:     locks,
		logger:    logger,
	}
}

func noteSnapshot(n *domain.Note) map[string]interface{} {
	return map[string]interface{}{
		"deal_id":       n.DealID.String(),
		"content":       n.Content,
		"created_by_id": n.CreatedByID.String(),
	}
}

// Create creates a note on a live deal
func (s *NoteService) Create(ctx context.Context, req *domain.CreateNoteRequest) (*domain.Note, error) {
	note := &domain.Note{
		DealID:      req.DealID,
		Content:     req.Content,
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

		if err := s.noteRepo.WithTx(tx).Create(ctx, note); err != nil {
			return fmt.Errorf("failed to create note: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionCreate, domain.KindNote, note.ID, nil, noteSnapshot(note))
	})
	if err != nil {
		return nil, err
	}

	return note, nil
}

// GetByID fetches a note
func (s *NoteService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	note, err := s.noteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return note, nil
}

// ListByDeal returns a deal's notes, newest first
func (s *NoteService) ListByDeal(ctx context.Context, dealID uuid.UUID, page, pageSize int) ([]domain.Note, int64, error) {
	return s.noteRepo.ListByDeal(ctx, dealID, page, pageSize)
}

// Update replaces a note's content
func (s *NoteService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	s.locks.Lock(domain.KindNote, id)
	defer s.locks.Unlock(domain.KindNote, id)

	var note *domain.Note
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		noteRepo := s.noteRepo.WithTx(tx)

		var err error
		note, err = noteRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		before := noteSnapshot(note)
		note.Content = req.Content

		if err := noteRepo.Update(ctx, note); err != nil {
			return fmt.Errorf("failed to update note: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionUpdate, domain.KindNote, note.ID, before, noteSnapshot(note))
	})
	if err != nil {
		return nil, err
	}

	return note, nil
}

// SoftDelete tombstones a note
func (s *NoteService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.locks.Lock(domain.KindNote, id)
	defer s.locks.Unlock(domain.KindNote, id)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		noteRepo := s.noteRepo.WithTx(tx)

		note, err := noteRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := noteRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionSoftDelete, domain.KindNote, id, noteSnapshot(note), nil)
	})
}
