package integrity_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/integrity"
	"github.com/nordcrm/pipeline-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_References(t *testing.T) {
	db := testutil.SetupTestDB(t)
	v := integrity.NewValidator(db)
	ctx := context.Background()

	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	org := testutil.CreateTestOrganization(t, db, "Acme")
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	pipeline := testutil.CreateTestPipeline(t, db, "Sales", user, true)

	t.Run("live references pass", func(t *testing.T) {
		assert.NoError(t, v.CheckUser(ctx, user.ID, "assigned_to_id"))
		assert.NoError(t, v.CheckOrganization(ctx, org.ID, "organization_id"))
		assert.NoError(t, v.CheckContact(ctx, contact.ID, "contact_id"))
		assert.NoError(t, v.CheckPipeline(ctx, pipeline.ID, "pipeline_id"))
	})

	t.Run("missing reference fails with the field name", func(t *testing.T) {
		err := v.CheckUser(ctx, uuid.New(), "assigned_to_id")
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "assigned_to_id", ie.Field)
	})

	t.Run("soft-deleted reference fails", func(t *testing.T) {
		require.NoError(t, db.Delete(&domain.Organization{}, "id = ?", org.ID).Error)

		err := v.CheckOrganization(ctx, org.ID, "organization_id")
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "organization_id", ie.Field)
	})
}

func TestValidator_CheckStageInPipeline(t *testing.T) {
	db := testutil.SetupTestDB(t)
	v := integrity.NewValidator(db)
	ctx := context.Background()

	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	pipeline := testutil.CreateTestPipeline(t, db, "Sales", user, true)
	other := testutil.CreateTestPipeline(t, db, "Other", user, false)

	t.Run("stage of the pipeline passes", func(t *testing.T) {
		assert.NoError(t, v.CheckStageInPipeline(ctx, pipeline.Stages[0].ID, pipeline.ID, "stage_id"))
	})

	t.Run("stage of another pipeline fails", func(t *testing.T) {
		err := v.CheckStageInPipeline(ctx, other.Stages[0].ID, pipeline.ID, "stage_id")
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "stage_id", ie.Field)
	})

	t.Run("unknown stage fails", func(t *testing.T) {
		err := v.CheckStageInPipeline(ctx, uuid.New(), pipeline.ID, "stage_id")
		var ie *domain.IntegrityError
		assert.ErrorAs(t, err, &ie)
	})
}

func TestValidator_WithTx(t *testing.T) {
	db := testutil.SetupTestDB(t)
	v := integrity.NewValidator(db)
	ctx := context.Background()

	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)

	// A record created inside an uncommitted transaction is visible to the
	// transaction-bound validator but not to the base one.
	tx := db.Begin()
	require.NoError(t, tx.Error)
	defer tx.Rollback()

	contact := &domain.Contact{Name: "Pending", CreatedByID: user.ID}
	require.NoError(t, tx.Create(contact).Error)

	assert.NoError(t, v.WithTx(tx).CheckContact(ctx, contact.ID, "contact_id"))
}
