package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedDeals(t *testing.T, db *gorm.DB) (*domain.Pipeline, *domain.Contact, *domain.User) {
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	pipeline := testutil.CreateTestPipeline(t, db, "Sales", user, true)

	deals := []domain.Deal{
		{Title: "Small Fish", ContactID: contact.ID, Value: 10000, Status: domain.DealStatusOpen, PipelineID: pipeline.ID, StageID: pipeline.Stages[0].ID, AssignedToID: user.ID},
		{Title: "Medium Catch", ContactID: contact.ID, Value: 50000, Status: domain.DealStatusOpen, PipelineID: pipeline.ID, StageID: pipeline.Stages[1].ID, AssignedToID: user.ID},
		{Title: "Big Whale", ContactID: contact.ID, Value: 900000, Status: domain.DealStatusWon, PipelineID: pipeline.ID, StageID: pipeline.Stages[2].ID, AssignedToID: user.ID},
	}
	for i := range deals {
		require.NoError(t, db.Create(&deals[i]).Error)
	}
	return pipeline, contact, user
}

func TestDealRepository_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDealRepository(db)
	pipeline, _, _ := seedDeals(t, db)
	ctx := context.Background()

	t.Run("status filter", func(t *testing.T) {
		status := domain.DealStatusOpen
		deals, total, err := repo.List(ctx, 1, 10, &repository.DealFilters{Status: &status}, repository.DealSortByCreatedDesc)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, deals, 2)
	})

	t.Run("value range", func(t *testing.T) {
		deals, total, err := repo.List(ctx, 1, 10, &repository.DealFilters{
			MinValue: ptrFloat(20000),
			MaxValue: ptrFloat(100000),
		}, repository.DealSortByCreatedDesc)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, deals, 1)
		assert.Equal(t, "Medium Catch", deals[0].Title)
	})

	t.Run("stage filter", func(t *testing.T) {
		_, total, err := repo.List(ctx, 1, 10, &repository.DealFilters{
			StageID: &pipeline.Stages[0].ID,
		}, repository.DealSortByCreatedDesc)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("title search is case-insensitive", func(t *testing.T) {
		search := "WHALE"
		deals, total, err := repo.List(ctx, 1, 10, &repository.DealFilters{
			SearchQuery: &search,
		}, repository.DealSortByCreatedDesc)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, deals, 1)
		assert.Equal(t, "Big Whale", deals[0].Title)
	})

	t.Run("sort by value", func(t *testing.T) {
		deals, _, err := repo.List(ctx, 1, 10, nil, repository.DealSortByValueDesc)
		require.NoError(t, err)
		require.Len(t, deals, 3)
		assert.Equal(t, "Big Whale", deals[0].Title)
		assert.Equal(t, "Small Fish", deals[2].Title)
	})

	t.Run("pagination", func(t *testing.T) {
		deals, total, err := repo.List(ctx, 2, 2, nil, repository.DealSortByValueAsc)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, deals, 1)
		assert.Equal(t, "Big Whale", deals[0].Title)
	})

	t.Run("preloads stage and contact", func(t *testing.T) {
		deals, _, err := repo.List(ctx, 1, 1, nil, repository.DealSortByCreatedDesc)
		require.NoError(t, err)
		require.Len(t, deals, 1)
		assert.NotNil(t, deals[0].Stage)
		assert.NotNil(t, deals[0].Contact)
		assert.NotNil(t, deals[0].AssignedTo)
	})
}

func TestDealRepository_Counts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDealRepository(db)
	pipeline, contact, user := seedDeals(t, db)
	ctx := context.Background()

	open, err := repo.CountOpenByPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), open)

	byContact, err := repo.CountOpenByContact(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byContact)

	byAssignee, err := repo.CountOpenByAssignee(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byAssignee)

	// Closed deals still count toward stage occupancy
	byStage, err := repo.CountByStage(ctx, pipeline.Stages[2].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byStage)
}

func TestDealRepository_GetWonBetween(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDealRepository(db)
	pipeline, contact, user := seedDeals(t, db)
	ctx := context.Background()

	now := time.Now().UTC()
	closedAt := now.Add(-time.Hour)
	won := &domain.Deal{
		Title:        "Recently Won",
		ContactID:    contact.ID,
		Value:        70000,
		Status:       domain.DealStatusWon,
		PipelineID:   pipeline.ID,
		StageID:      pipeline.Stages[2].ID,
		AssignedToID: user.ID,
		ClosedAt:     &closedAt,
	}
	require.NoError(t, db.Create(won).Error)

	deals, err := repo.GetWonBetween(ctx, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "Recently Won", deals[0].Title)
}

func ptrFloat(v float64) *float64 {
	return &v
}
