// Package integrity verifies cross-entity references before a mutation is
// committed. The validator runs inside the same transaction as the write, so
// a reference that passes here still points at a live record when the
// transaction commits.
package integrity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// Validator checks that foreign keys resolve to live records and that
// kind-specific invariants hold. All checks fail fast: the first violation
// found is returned as a *domain.IntegrityError.
type Validator struct {
	db *gorm.DB
}

// NewValidator creates a validator over the given database handle
func NewValidator(db *gorm.DB) *Validator {
	return &Validator{db: db}
}

// WithTx returns a validator bound to the given transaction
func (v *Validator) WithTx(tx *gorm.DB) *Validator {
	return &Validator{db: tx}
}

// exists reports whether a live (non-deleted) record of the model with the
// given id exists
func (v *Validator) exists(ctx context.Context, model interface{}, id uuid.UUID) (bool, error) {
	var count int64
	err := v.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("integrity check query failed: %w", err)
	}
	return count > 0, nil
}

func (v *Validator) requireLive(ctx context.Context, model interface{}, id uuid.UUID, field string) error {
	ok, err := v.exists(ctx, model, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewIntegrityError(field, "referenced record does not exist or is deleted")
	}
	return nil
}

// CheckUser verifies the user reference is live
func (v *Validator) CheckUser(ctx context.Context, id uuid.UUID, field string) error {
	return v.requireLive(ctx, &domain.User{}, id, field)
}

// CheckOrganization verifies the organization reference is live
func (v *Validator) CheckOrganization(ctx context.Context, id uuid.UUID, field string) error {
	return v.requireLive(ctx, &domain.Organization{}, id, field)
}

// CheckContact verifies the contact reference is live
func (v *Validator) CheckContact(ctx context.Context, id uuid.UUID, field string) error {
	return v.requireLive(ctx, &domain.Contact{}, id, field)
}

// CheckPipeline verifies the pipeline reference is live
func (v *Validator) CheckPipeline(ctx context.Context, id uuid.UUID, field string) error {
	return v.requireLive(ctx, &domain.Pipeline{}, id, field)
}

// CheckDeal verifies the deal reference is live
func (v *Validator) CheckDeal(ctx context.Context, id uuid.UUID, field string) error {
	return v.requireLive(ctx, &domain.Deal{}, id, field)
}

// CheckStageInPipeline verifies the stage is live and belongs to the given
// pipeline. A stage of another pipeline is a structural violation, not a
// missing reference.
func (v *Validator) CheckStageInPipeline(ctx context.Context, stageID, pipelineID uuid.UUID, field string) error {
	var stage domain.Stage
	err := v.db.WithContext(ctx).Where("id = ?", stageID).First(&stage).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.NewIntegrityError(field, "referenced stage does not exist or is deleted")
		}
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if stage.PipelineID != pipelineID {
		return domain.NewIntegrityError(field, "stage does not belong to the deal's pipeline")
	}
	return nil
}

// CheckContactForContact validates a contact's references
func (v *Validator) CheckContactForContact(ctx context.Context, contact *domain.Contact) error {
	if contact.OrganizationID != nil {
		if err := v.CheckOrganization(ctx, *contact.OrganizationID, "organization_id"); err != nil {
			return err
		}
	}
	return v.CheckUser(ctx, contact.CreatedByID, "created_by_id")
}

// CheckDealReferences validates every reference a deal carries
func (v *Validator) CheckDealReferences(ctx context.Context, deal *domain.Deal) error {
	if err := v.CheckContact(ctx, deal.ContactID, "contact_id"); err != nil {
		return err
	}
	if err := v.CheckUser(ctx, deal.AssignedToID, "assigned_to_id"); err != nil {
		return err
	}
	if err := v.CheckPipeline(ctx, deal.PipelineID, "pipeline_id"); err != nil {
		return err
	}
	return v.CheckStageInPipeline(ctx, deal.StageID, deal.PipelineID, "stage_id")
}
