package service_test

import (
	"testing"
	"time"

	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"github.com/nordcrm/pipeline-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	testutil.CreateTestPipeline(t, db, "Sales", user, true)
	ctx := actorCtx(user)

	deal, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
		Title:        "Active Deal",
		ContactID:    contact.ID,
		AssignedToID: user.ID,
	})
	require.NoError(t, err)

	t.Run("creates a scheduled call", func(t *testing.T) {
		activity, err := svcs.activities.Create(ctx, &domain.CreateActivityRequest{
			DealID:      deal.ID,
			Type:        "call",
			Subject:     "Intro call",
			ScheduledAt: time.Now().Add(24 * time.Hour),
			CreatedByID: user.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ActivityTypeCall, activity.Type)
		assert.Nil(t, activity.CompletedAt)
	})

	t.Run("rejects an unknown type", func(t *testing.T) {
		_, err := svcs.activities.Create(ctx, &domain.CreateActivityRequest{
			DealID:      deal.ID,
			Type:        "carrier-pigeon",
			Subject:     "Odd",
			ScheduledAt: time.Now(),
			CreatedByID: user.ID,
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("rejects a soft-deleted deal", func(t *testing.T) {
		doomed, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
			Title:        "Doomed",
			ContactID:    contact.ID,
			AssignedToID: user.ID,
		})
		require.NoError(t, err)
		require.NoError(t, svcs.deals.SoftDelete(ctx, doomed.ID))

		_, err = svcs.activities.Create(ctx, &domain.CreateActivityRequest{
			DealID:      doomed.ID,
			Type:        "task",
			Subject:     "Too late",
			ScheduledAt: time.Now(),
			CreatedByID: user.ID,
		})
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "deal_id", ie.Field)
	})
}

func TestActivityService_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	testutil.CreateTestPipeline(t, db, "Sales", user, true)
	ctx := actorCtx(user)

	deal, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
		Title:        "Active Deal",
		ContactID:    contact.ID,
		AssignedToID: user.ID,
	})
	require.NoError(t, err)

	scheduled := time.Now().Add(24 * time.Hour)
	activity, err := svcs.activities.Create(ctx, &domain.CreateActivityRequest{
		DealID:      deal.ID,
		Type:        "meeting",
		Subject:     "Site visit",
		ScheduledAt: scheduled,
		CreatedByID: user.ID,
	})
	require.NoError(t, err)

	t.Run("completion after the schedule", func(t *testing.T) {
		completed := scheduled.Add(time.Hour)
		updated, err := svcs.activities.Update(ctx, activity.ID, &domain.UpdateActivityRequest{
			CompletedAt: &completed,
		})
		require.NoError(t, err)
		require.NotNil(t, updated.CompletedAt)
	})

	t.Run("completion before the schedule is rejected", func(t *testing.T) {
		early := scheduled.Add(-time.Hour)
		_, err := svcs.activities.Update(ctx, activity.ID, &domain.UpdateActivityRequest{
			CompletedAt: &early,
		})
		assert.ErrorIs(t, err, service.ErrCompletedBeforeScheduled)
	})

	t.Run("rescheduling past the completion is rejected", func(t *testing.T) {
		late := scheduled.Add(48 * time.Hour)
		_, err := svcs.activities.Update(ctx, activity.ID, &domain.UpdateActivityRequest{
			ScheduledAt: &late,
		})
		assert.ErrorIs(t, err, service.ErrCompletedBeforeScheduled)
	})
}

func TestActivityService_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	testutil.CreateTestPipeline(t, db, "Sales", user, true)
	ctx := actorCtx(user)

	deal, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
		Title:        "Busy Deal",
		ContactID:    contact.ID,
		AssignedToID: user.ID,
	})
	require.NoError(t, err)

	types := []string{"call", "email", "task"}
	for i, at := range types {
		_, err := svcs.activities.Create(ctx, &domain.CreateActivityRequest{
			DealID:      deal.ID,
			Type:        at,
			Subject:     "Activity",
			ScheduledAt: time.Now().Add(time.Duration(i) * time.Hour),
			CreatedByID: user.ID,
		})
		require.NoError(t, err)
	}

	t.Run("filter by type", func(t *testing.T) {
		activityType := domain.ActivityTypeEmail
		activities, total, err := svcs.activities.List(ctx, 1, 10, &repository.ActivityFilters{
			Type: &activityType,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, activities, 1)
		assert.Equal(t, domain.ActivityTypeEmail, activities[0].Type)
	})

	t.Run("by deal in schedule order", func(t *testing.T) {
		activities, err := svcs.activities.ListByDeal(ctx, deal.ID)
		require.NoError(t, err)
		require.Len(t, activities, 3)
		for i := 1; i < len(activities); i++ {
			assert.False(t, activities[i].ScheduledAt.Before(activities[i-1].ScheduledAt))
		}
	})
}
