package service_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/service"
	"github.com/nordcrm/pipeline-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	testutil.CreateTestPipeline(t, db, "Sales", user, true)
	ctx := actorCtx(user)

	deal, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
		Title:        "Noted Deal",
		ContactID:    contact.ID,
		AssignedToID: user.ID,
	})
	require.NoError(t, err)

	t.Run("create and edit", func(t *testing.T) {
		note, err := svcs.notes.Create(ctx, &domain.CreateNoteRequest{
			DealID:      deal.ID,
			Content:     "First draft",
			CreatedByID: user.ID,
		})
		require.NoError(t, err)

		updated, err := svcs.notes.Update(ctx, note.ID, &domain.UpdateNoteRequest{
			Content: "Final version",
		})
		require.NoError(t, err)
		assert.Equal(t, "Final version", updated.Content)
	})

	t.Run("rejects a note on an unknown deal", func(t *testing.T) {
		_, err := svcs.notes.Create(ctx, &domain.CreateNoteRequest{
			DealID:      uuid.New(),
			Content:     "Floating note",
			CreatedByID: user.ID,
		})
		var ie *domain.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "deal_id", ie.Field)
	})

	t.Run("list by deal is paginated newest first", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := svcs.notes.Create(ctx, &domain.CreateNoteRequest{
				DealID:      deal.ID,
				Content:     fmt.Sprintf("Note %d", i),
				CreatedByID: user.ID,
			})
			require.NoError(t, err)
		}

		notes, total, err := svcs.notes.ListByDeal(ctx, deal.ID, 1, 3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, int64(5))
		assert.Len(t, notes, 3)
	})

	t.Run("soft delete", func(t *testing.T) {
		note, err := svcs.notes.Create(ctx, &domain.CreateNoteRequest{
			DealID:      deal.ID,
			Content:     "Disposable",
			CreatedByID: user.ID,
		})
		require.NoError(t, err)

		require.NoError(t, svcs.notes.SoftDelete(ctx, note.ID))
		_, err = svcs.notes.GetByID(ctx, note.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}
