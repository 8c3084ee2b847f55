package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrganizationService manages organizations
type OrganizationService struct {
	db          *gorm.DB
	orgRepo     *repository.OrganizationRepository
	contactRepo *repository.ContactRepository
	audit       *AuditService
	locks       *repository.KeyLock
	logger      *zap.Logger
}

// NewOrganizationService creates a new organization service
func NewOrganizationService(db *gorm.DB, orgRepo *repository.OrganizationRepository, contactRepo *repository.ContactRepository, audit *AuditService, locks *repository.KeyLock, logger *zap.Logger) *OrganizationService {
	return &OrganizationService{
		db:          db,
		orgRepo:     orgRepo,
		contactRepo: contactRepo,
		audit:       audit,
		locks:       locks,
		logger:      logger,
	}
}

func organizationSnapshot(o *domain.Organization) map[string]interface{} {
	return map[string]interface{}{
		"name":     o.Name,
		"industry": o.Industry,
		"website":  o.Website,
		"address":  o.Address,
	}
}

// Create creates an organization
func (s *OrganizationService) Create(ctx context.Context, req *domain.CreateOrganizationRequest) (*domain.Organization, error) {
	org := &domain.Organization{
		Name:     req.Name,
		Industry: req.Industry,
		Website:  req.Website,
		Address:  req.Address,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orgRepo.WithTx(tx).Create(ctx, org); err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}
		return s.audit.Record(ctx, tx, domain.AuditActionCreate, domain.KindOrganization, org.ID, nil, organizationSnapshot(org))
	})
	if err != nil {
		return nil, err
	}

	return org, nil
}

// GetByID fetches an organization
func (s *OrganizationService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	org, err := s.orgRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return org, nil
}

// List returns organizations matching the filters
func (s *OrganizationService) List(ctx context.Context, page, pageSize int, filters *repository.OrganizationFilters) ([]domain.Organization, int64, error) {
	return s.orgRepo.List(ctx, page, pageSize, filters)
}

// ContactCount counts live contacts attached to an organization
func (s *OrganizationService) ContactCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.contactRepo.CountByOrganization(ctx, id)
}

// Update patches an organization
func (s *OrganizationService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateOrganizationRequest) (*domain.Organization, error) {
	s.locks.Lock(domain.KindOrganization, id)
	defer s.locks.Unlock(domain.KindOrganization, id)

	var org *domain.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgRepo := s.orgRepo.WithTx(tx)

		var err error
		org, err = orgRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		before := organizationSnapshot(org)

		if req.Name != nil {
			org.Name = *req.Name
		}
		if req.Industry != nil {
			org.Industry = *req.Industry
		}
		if req.Website != nil {
			org.Website = *req.Website
		}
		if req.Address != nil {
			org.Address = *req.Address
		}

		if err := orgRepo.Update(ctx, org); err != nil {
			return fmt.Errorf("failed to update organization: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionUpdate, domain.KindOrganization, org.ID, before, organizationSnapshot(org))
	})
	if err != nil {
		return nil, err
	}

	return org, nil
}

// SoftDelete tombstones an organization. Contacts keep their reference; new
// writes pointing at the deleted organization fail integrity checks.
func (s *OrganizationService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.locks.Lock(domain.KindOrganization, id)
	defer s.locks.Unlock(domain.KindOrganization, id)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgRepo := s.orgRepo.WithTx(tx)

		org, err := orgRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := orgRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete organization: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionSoftDelete, domain.KindOrganization, id, organizationSnapshot(org), nil)
	})
}
