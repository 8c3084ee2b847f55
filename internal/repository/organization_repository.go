package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrganizationFilters contains filter options for listing organizations
type OrganizationFilters struct {
	Industry    *string
	SearchQuery *string
}

type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *OrganizationRepository) WithTx(tx *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: tx}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(org).Error
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *OrganizationRepository) Update(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(org).Error
}

func (r *OrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Organization{}, "id = ?", id).Error
}

func (r *OrganizationRepository) List(ctx context.Context, page, pageSize int, filters *OrganizationFilters) ([]domain.Organization, int64, error) {
	var orgs []domain.Organization
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Organization{})

	if filters != nil {
		if filters.Industry != nil {
			query = query.Where("industry = ?", *filters.Industry)
		}
		if filters.SearchQuery != nil && *filters.SearchQuery != "" {
			searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
			query = query.Where("LOWER(name) LIKE ?", searchPattern)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("name ASC").Offset(offset).Limit(pageSize).Find(&orgs).Error

	return orgs, total, err
}
