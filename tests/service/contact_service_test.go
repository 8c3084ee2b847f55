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

func TestContactService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	org := testutil.CreateTestOrganization(t, db, "Acme")
	ctx := actorCtx(user)

	t.Run("with organization", func(t *testing.T) {
		contact, err := svcs.contacts.Create(ctx, &domain.CreateContactRequest{
			Name:           "Jens Hansen",
			Email:          "jens@acme.example.com",
			OrganizationID: &org.ID,
			CreatedByID:    user.ID,
		})
		require.NoError(t, err)
		require.NotNil(t, contact.OrganizationID)
		assert.Equal(t, org.ID, *contact.OrganizationID)
	})

	t.Run("unaffiliated", func(t *testing.T) {
		contact, err := svcs.contacts.Create(ctx, &domain.CreateContactRequest{
			Name:        "Freelancer",
			CreatedByID: user.ID,
		})
		require.NoError(t, err)
		assert.Nil(t, contact.OrganizationID)
	})

	t.Run("rejects an unknown organization", func(t *testing.T) {
		missing := uuid.New()
		_, err := svcs.contacts.Create(ctx, &domain.CreateContactRequest{
			Name:           "Lost",
			OrganizationID: &missing,
			CreatedByID:    user.ID,
		})
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "organization_id", ie.Field)
	})

	t.Run("rejects an unknown creator", func(t *testing.T) {
		_, err := svcs.contacts.Create(ctx, &domain.CreateContactRequest{
			Name:        "Nobody's Contact",
			CreatedByID: uuid.New(),
		})
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "created_by_id", ie.Field)
	})
}

func TestContactService_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	org := testutil.CreateTestOrganization(t, db, "Acme")
	ctx := actorCtx(user)

	contact, err := svcs.contacts.Create(ctx, &domain.CreateContactRequest{
		Name:           "Jens Hansen",
		OrganizationID: &org.ID,
		CreatedByID:    user.ID,
	})
	require.NoError(t, err)

	t.Run("clear organization wins over a new organization id", func(t *testing.T) {
		other := testutil.CreateTestOrganization(t, db, "Other")
		updated, err := svcs.contacts.Update(ctx, contact.ID, &domain.UpdateContactRequest{
			OrganizationID:    &other.ID,
			ClearOrganization: true,
		})
		require.NoError(t, err)
		assert.Nil(t, updated.OrganizationID)
	})

	t.Run("moving to another organization persists", func(t *testing.T) {
		next := testutil.CreateTestOrganization(t, db, "Next")
		_, err := svcs.contacts.Update(ctx, contact.ID, &domain.UpdateContactRequest{
			OrganizationID: &next.ID,
		})
		require.NoError(t, err)

		fresh, err := svcs.contacts.GetByID(ctx, contact.ID)
		require.NoError(t, err)
		require.NotNil(t, fresh.OrganizationID)
		assert.Equal(t, next.ID, *fresh.OrganizationID)
	})

	t.Run("detaching persists across reads", func(t *testing.T) {
		_, err := svcs.contacts.Update(ctx, contact.ID, &domain.UpdateContactRequest{
			ClearOrganization: true,
		})
		require.NoError(t, err)

		fresh, err := svcs.contacts.GetByID(ctx, contact.ID)
		require.NoError(t, err)
		assert.Nil(t, fresh.OrganizationID)
		assert.Nil(t, fresh.Organization)
	})

	t.Run("rejects a soft-deleted organization", func(t *testing.T) {
		doomed := testutil.CreateTestOrganization(t, db, "Doomed")
		require.NoError(t, svcs.organizations.SoftDelete(ctx, doomed.ID))

		_, err := svcs.contacts.Update(ctx, contact.ID, &domain.UpdateContactRequest{
			OrganizationID: &doomed.ID,
		})
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "organization_id", ie.Field)
	})

	t.Run("unknown contact", func(t *testing.T) {
		_, err := svcs.contacts.Update(ctx, uuid.New(), &domain.UpdateContactRequest{Name: ptr("Ghost")})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestContactService_ListAndDeals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	org := testutil.CreateTestOrganization(t, db, "Acme")
	testutil.CreateTestPipeline(t, db, "Sales", user, true)
	ctx := actorCtx(user)

	affiliated, err := svcs.contacts.Create(ctx, &domain.CreateContactRequest{
		Name:           "Affiliated",
		OrganizationID: &org.ID,
		CreatedByID:    user.ID,
	})
	require.NoError(t, err)
	_, err = svcs.contacts.Create(ctx, &domain.CreateContactRequest{
		Name:        "Unaffiliated",
		CreatedByID: user.ID,
	})
	require.NoError(t, err)

	t.Run("filter by organization", func(t *testing.T) {
		contacts, total, err := svcs.contacts.List(ctx, 1, 10, &repository.ContactFilters{
			OrganizationID: &org.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, contacts, 1)
		assert.Equal(t, affiliated.ID, contacts[0].ID)
	})

	t.Run("deals of a contact", func(t *testing.T) {
		_, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
			Title:        "Their Deal",
			ContactID:    affiliated.ID,
			AssignedToID: user.ID,
		})
		require.NoError(t, err)

		deals, err := svcs.contacts.ListDeals(ctx, affiliated.ID)
		require.NoError(t, err)
		require.Len(t, deals, 1)
		assert.Equal(t, "Their Deal", deals[0].Title)
	})

	t.Run("deals of an unknown contact", func(t *testing.T) {
		_, err := svcs.contacts.ListDeals(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestContactService_SoftDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	testutil.CreateTestPipeline(t, db, "Sales", user, true)
	ctx := actorCtx(user)

	contact := testutil.CreateTestContact(t, db, "Departing", user)
	deal, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
		Title:        "Left Behind",
		ContactID:    contact.ID,
		AssignedToID: user.ID,
	})
	require.NoError(t, err)

	// Deleting a contact with open deals succeeds; the deals keep the
	// reference but become un-updatable.
	require.NoError(t, svcs.contacts.SoftDelete(ctx, contact.ID))

	_, err = svcs.contacts.GetByID(ctx, contact.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	reloaded, err := svcs.deals.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, contact.ID, reloaded.ContactID)
}
