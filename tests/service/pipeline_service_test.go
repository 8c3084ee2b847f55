package service_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/service"
	"github.com/nordcrm/pipeline-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Manager", domain.UserRoleManager)
	ctx := actorCtx(user)

	t.Run("creates pipeline with ordered stages", func(t *testing.T) {
		pipeline, err := svcs.pipelines.Create(ctx, &domain.CreatePipelineRequest{
			Name:        "Sales",
			CreatedByID: user.ID,
			Stages: []domain.StageInput{
				{Name: "Closing", Position: 2, WinProbability: 0.9},
				{Name: "Lead", Position: 0, WinProbability: 0.1},
				{Name: "Proposal", Position: 1, WinProbability: 0.5},
			},
		})
		require.NoError(t, err)
		require.Len(t, pipeline.Stages, 3)
		assert.Equal(t, "Lead", pipeline.Stages[0].Name)
		assert.Equal(t, "Proposal", pipeline.Stages[1].Name)
		assert.Equal(t, "Closing", pipeline.Stages[2].Name)
	})

	t.Run("rejects duplicate positions in the request", func(t *testing.T) {
		_, err := svcs.pipelines.Create(ctx, &domain.CreatePipelineRequest{
			Name:        "Broken",
			CreatedByID: user.ID,
			Stages: []domain.StageInput{
				{Name: "A", Position: 0},
				{Name: "B", Position: 0},
			},
		})
		assert.ErrorIs(t, err, service.ErrDuplicatePosition)
	})

	t.Run("rejects an unknown creator", func(t *testing.T) {
		_, err := svcs.pipelines.Create(ctx, &domain.CreatePipelineRequest{
			Name:        "Orphan",
			CreatedByID: uuid.New(),
			Stages:      []domain.StageInput{{Name: "A", Position: 0}},
		})
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "created_by_id", ie.Field)
	})
}

func TestPipelineService_DefaultSwap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Manager", domain.UserRoleManager)
	ctx := actorCtx(user)

	first := testutil.CreateTestPipeline(t, db, "First", user, true)

	t.Run("creating a new default clears the previous one", func(t *testing.T) {
		second, err := svcs.pipelines.Create(ctx, &domain.CreatePipelineRequest{
			Name:        "Second",
			CreatedByID: user.ID,
			IsDefault:   true,
			Stages:      []domain.StageInput{{Name: "Lead", Position: 0, WinProbability: 0.1}},
		})
		require.NoError(t, err)
		assert.True(t, second.IsDefault)

		def, err := svcs.pipelines.GetDefault(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, def.ID)

		reloaded, err := svcs.pipelines.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.IsDefault)

		var count int64
		require.NoError(t, db.Model(&domain.Pipeline{}).Where("is_default = ?", true).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("promoting via update clears the previous default", func(t *testing.T) {
		updated, err := svcs.pipelines.Update(ctx, first.ID, &domain.UpdatePipelineRequest{
			IsDefault: ptr(true),
		})
		require.NoError(t, err)
		assert.True(t, updated.IsDefault)

		var count int64
		require.NoError(t, db.Model(&domain.Pipeline{}).Where("is_default = ?", true).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("concurrent promotions leave exactly one default", func(t *testing.T) {
		candidates := make([]*domain.Pipeline, 4)
		for i := range candidates {
			candidates[i] = testutil.CreateTestPipeline(t, db, fmt.Sprintf("Racer %d", i), user, false)
		}

		var wg sync.WaitGroup
		for _, p := range candidates {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := svcs.pipelines.Update(ctx, id, &domain.UpdatePipelineRequest{
					IsDefault: ptr(true),
				})
				assert.NoError(t, err)
			}(p.ID)
		}
		wg.Wait()

		var count int64
		require.NoError(t, db.Model(&domain.Pipeline{}).Where("is_default = ?", true).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

func TestPipelineService_GetDefault_None(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Manager", domain.UserRoleManager)
	testutil.CreateTestPipeline(t, db, "Not Default", user, false)

	_, err := svcs.pipelines.GetDefault(actorCtx(user))
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestPipelineService_SoftDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Manager", domain.UserRoleManager)
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	ctx := actorCtx(user)

	t.Run("blocked while open deals remain", func(t *testing.T) {
		pipeline := testutil.CreateTestPipeline(t, db, "Busy", user, true)
		deal, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
			Title:        "Occupant",
			ContactID:    contact.ID,
			AssignedToID: user.ID,
		})
		require.NoError(t, err)

		err = svcs.pipelines.SoftDelete(ctx, pipeline.ID)
		assert.ErrorIs(t, err, service.ErrPipelineHasDeals)

		// Closing the deal unblocks the delete
		_, err = svcs.deals.Close(ctx, deal.ID, &domain.CloseDealRequest{Status: "lost"})
		require.NoError(t, err)
		require.NoError(t, svcs.pipelines.SoftDelete(ctx, pipeline.ID))

		_, err = svcs.pipelines.GetByID(ctx, pipeline.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("unknown pipeline", func(t *testing.T) {
		err := svcs.pipelines.SoftDelete(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestPipelineService_Stages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Manager", domain.UserRoleManager)
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	pipeline := testutil.CreateTestPipeline(t, db, "Sales", user, true)
	ctx := actorCtx(user)

	t.Run("add stage at a free position", func(t *testing.T) {
		stage, err := svcs.pipelines.AddStage(ctx, pipeline.ID, &domain.CreateStageRequest{
			Name:           "Contract",
			Position:       3,
			WinProbability: 0.95,
		})
		require.NoError(t, err)
		assert.Equal(t, pipeline.ID, stage.PipelineID)
		assert.Equal(t, 3, stage.Position)
	})

	t.Run("add stage at an occupied position", func(t *testing.T) {
		_, err := svcs.pipelines.AddStage(ctx, pipeline.ID, &domain.CreateStageRequest{
			Name:     "Conflict",
			Position: 0,
		})
		assert.ErrorIs(t, err, service.ErrDuplicatePosition)
	})

	t.Run("update stage probability", func(t *testing.T) {
		stage, err := svcs.pipelines.UpdateStage(ctx, pipeline.Stages[1].ID, &domain.UpdateStageRequest{
			WinProbability: ptr(0.6),
		})
		require.NoError(t, err)
		assert.Equal(t, 0.6, stage.WinProbability)
	})

	t.Run("update stage into an occupied position", func(t *testing.T) {
		_, err := svcs.pipelines.UpdateStage(ctx, pipeline.Stages[1].ID, &domain.UpdateStageRequest{
			Position: ptr(0),
		})
		assert.ErrorIs(t, err, service.ErrDuplicatePosition)
	})

	t.Run("delete stage occupied by a deal", func(t *testing.T) {
		_, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
			Title:        "Stage Occupant",
			ContactID:    contact.ID,
			StageID:      &pipeline.Stages[2].ID,
			AssignedToID: user.ID,
		})
		require.NoError(t, err)

		err = svcs.pipelines.DeleteStage(ctx, pipeline.Stages[2].ID)
		assert.ErrorIs(t, err, service.ErrStageHasDeals)
	})

	t.Run("delete empty stage", func(t *testing.T) {
		require.NoError(t, svcs.pipelines.DeleteStage(ctx, pipeline.Stages[1].ID))
	})

	t.Run("the last stage cannot be deleted", func(t *testing.T) {
		solo, err := svcs.pipelines.Create(ctx, &domain.CreatePipelineRequest{
			Name:        "Single Stage",
			CreatedByID: user.ID,
			Stages:      []domain.StageInput{{Name: "Only", Position: 0}},
		})
		require.NoError(t, err)

		err = svcs.pipelines.DeleteStage(ctx, solo.Stages[0].ID)
		assert.ErrorIs(t, err, service.ErrLastStage)
	})
}
