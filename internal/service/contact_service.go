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

// ContactService manages contacts
type ContactService struct {
	db          *gorm.DB
	contactRepo *repository.ContactRepository
	dealRepo    *repository.DealRepository
	validator   *integrity.Validator
	audit       *AuditService
	locks       *repository.KeyLock
	logger      *zap.Logger
}

// NewContactService creates a new contact service
func NewContactService(db *gorm.DB, contactRepo *repository.ContactRepository, dealRepo *repository.DealRepository, validator *integrity.Validator, audit *AuditService, locks *repository.KeyLock, logger *zap.Logger) *ContactService {
	return &ContactService{
		db:          db,
		contactRepo: contactRepo,
		dealRepo:    dealRepo,
		validator:   validator,
		audit:       audit,
		locks:       locks,
		logger:      logger,
	}
}

func contactSnapshot(c *domain.Contact) map[string]interface{} {
	snap := map[string]interface{}{
		"name":          c.Name,
		"email":         c.Email,
		"phone":         c.Phone,
		"created_by_id": c.CreatedByID.String(),
	}
	if c.OrganizationID != nil {
		snap["organization_id"] = c.OrganizationID.String()
	}
	return snap
}

// Create creates a contact after verifying its references are live
func (s *ContactService) Create(ctx context.Context, req *domain.CreateContactRequest) (*domain.Contact, error) {
	contact := &domain.Contact{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		OrganizationID: req.OrganizationID,
		CreatedByID:    req.CreatedByID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validator.WithTx(tx).CheckContactForContact(ctx, contact); err != nil {
			return err
		}

		if err := s.contactRepo.WithTx(tx).Create(ctx, contact); err != nil {
			return fmt.Errorf("failed to create contact: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionCreate, domain.KindContact, contact.ID, nil, contactSnapshot(contact))
	})
	if err != nil {
		return nil, err
	}

	return s.contactRepo.GetByID(ctx, contact.ID)
}

// GetByID fetches a contact
func (s *ContactService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	contact, err := s.contactRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return contact, nil
}

// List returns contacts matching the filters
func (s *ContactService) List(ctx context.Context, page, pageSize int, filters *repository.ContactFilters) ([]domain.Contact, int64, error) {
	return s.contactRepo.List(ctx, page, pageSize, filters)
}

// ListDeals returns a contact's deals
func (s *ContactService) ListDeals(ctx context.Context, id uuid.UUID) ([]domain.Deal, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.dealRepo.ListByContact(ctx, id)
}

// Update patches a contact. Organization references are re-verified, so a
// patch pointing at a soft-deleted organization is rejected.
func (s *ContactService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateContactRequest) (*domain.Contact, error) {
	s.locks.Lock(domain.KindContact, id)
	defer s.locks.Unlock(domain.KindContact, id)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contactRepo := s.contactRepo.WithTx(tx)
		validator := s.validator.WithTx(tx)

		contact, err := contactRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		before := contactSnapshot(contact)

		if req.Name != nil {
			contact.Name = *req.Name
		}
		if req.Email != nil {
			contact.Email = *req.Email
		}
		if req.Phone != nil {
			contact.Phone = *req.Phone
		}
		if req.ClearOrganization {
			contact.OrganizationID = nil
		} else if req.OrganizationID != nil {
			contact.OrganizationID = req.OrganizationID
		}
		// The association was preloaded by GetByID; left in place it would
		// write the old organization_id back over the change.
		contact.Organization = nil

		if err := validator.CheckContactForContact(ctx, contact); err != nil {
			return err
		}

		if err := contactRepo.Update(ctx, contact); err != nil {
			return fmt.Errorf("failed to update contact: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionUpdate, domain.KindContact, contact.ID, before, contactSnapshot(contact))
	})
	if err != nil {
		return nil, err
	}

	return s.contactRepo.GetByID(ctx, id)
}

// SoftDelete tombstones a contact. Deals referencing it are untouched, but
// any later update to those deals fails integrity checks until the deal
// points elsewhere.
func (s *ContactService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.locks.Lock(domain.KindContact, id)
	defer s.locks.Unlock(domain.KindContact, id)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contactRepo := s.contactRepo.WithTx(tx)

		contact, err := contactRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		openDeals, err := s.dealRepo.WithTx(tx).CountOpenByContact(ctx, id)
		if err != nil {
			return err
		}
		if openDeals > 0 {
			s.logger.Warn("soft-deleting contact referenced by open deals",
				zap.String("contact_id", id.String()),
				zap.Int64("open_deals", openDeals))
		}

		if err := contactRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete contact: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionSoftDelete, domain.KindContact, id, contactSnapshot(contact), nil)
	})
}
