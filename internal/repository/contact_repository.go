package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactFilters contains filter options for listing contacts
type ContactFilters struct {
	OrganizationID *uuid.UUID
	CreatedByID    *uuid.UUID
	SearchQuery    *string
}

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ContactRepository) WithTx(tx *gorm.DB) *ContactRepository {
	return &ContactRepository{db: tx}
}

func (r *ContactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(contact).Error
}

func (r *ContactRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	var contact domain.Contact
	err := r.db.WithContext(ctx).
		Preload("Organization").
		Preload("CreatedBy").
		Where("id = ?", id).
		First(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *ContactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	// Save skips nil pointer columns, so detaching from an organization needs
	// an explicit column update
	return r.db.WithContext(ctx).Omit(clause.Associations).
		Model(contact).
		Select("*").
		Omit("created_at", "deleted_at").
		Updates(contact).Error
}

func (r *ContactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Contact{}, "id = ?", id).Error
}

func (r *ContactRepository) List(ctx context.Context, page, pageSize int, filters *ContactFilters) ([]domain.Contact, int64, error) {
	var contacts []domain.Contact
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Contact{}).
		Preload("Organization")

	if filters != nil {
		if filters.OrganizationID != nil {
			query = query.Where("organization_id = ?", *filters.OrganizationID)
		}
		if filters.CreatedByID != nil {
			query = query.Where("created_by_id = ?", *filters.CreatedByID)
		}
		if filters.SearchQuery != nil && *filters.SearchQuery != "" {
			searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
			query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", searchPattern, searchPattern)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("name ASC").Offset(offset).Limit(pageSize).Find(&contacts).Error

	return contacts, total, err
}

// CountByOrganization counts live contacts attached to an organization
func (r *ContactRepository) CountByOrganization(ctx context.Context, organizationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Contact{}).
		Where("organization_id = ?", organizationID).
		Count(&count).Error
	return count, err
}
