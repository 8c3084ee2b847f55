package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"github.com/nordcrm/pipeline-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizationService_CRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	ctx := actorCtx(user)

	org, err := svcs.organizations.Create(ctx, &domain.CreateOrganizationRequest{
		Name:     "Acme",
		Industry: "Manufacturing",
		Website:  "https://acme.example.com",
	})
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		got, err := svcs.organizations.GetByID(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Name)
	})

	t.Run("update", func(t *testing.T) {
		updated, err := svcs.organizations.Update(ctx, org.ID, &domain.UpdateOrganizationRequest{
			Industry: ptr("Logistics"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Logistics", updated.Industry)
		assert.Equal(t, "Acme", updated.Name)
	})

	t.Run("contact count", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := svcs.contacts.Create(ctx, &domain.CreateContactRequest{
				Name:           "Employee",
				OrganizationID: &org.ID,
				CreatedByID:    user.ID,
			})
			require.NoError(t, err)
		}

		count, err := svcs.organizations.ContactCount(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("filter by industry", func(t *testing.T) {
		orgs, total, err := svcs.organizations.List(ctx, 1, 10, &repository.OrganizationFilters{
			Industry: ptr("Logistics"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, orgs, 1)
		assert.Equal(t, org.ID, orgs[0].ID)
	})

	t.Run("soft delete", func(t *testing.T) {
		require.NoError(t, svcs.organizations.SoftDelete(ctx, org.ID))
		_, err := svcs.organizations.GetByID(ctx, org.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("unknown organization", func(t *testing.T) {
		_, err := svcs.organizations.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}
