package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_Record(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	ctx := actorCtx(user)

	entityID := uuid.New()

	t.Run("update records only the changed fields", func(t *testing.T) {
		before := map[string]interface{}{"title": "Old", "value": 100.0}
		after := map[string]interface{}{"title": "New", "value": 100.0}

		require.NoError(t, svcs.audit.Record(ctx, db, domain.AuditActionUpdate, domain.KindDeal, entityID, before, after))

		trail, err := svcs.audit.Trail(ctx, domain.KindDeal, entityID)
		require.NoError(t, err)
		require.Len(t, trail, 1)

		var changes map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(trail[0].Changes), &changes))
		require.Contains(t, changes, "title")
		assert.Equal(t, "Old", changes["title"]["old"])
		assert.Equal(t, "New", changes["title"]["new"])
		assert.NotContains(t, changes, "value")
	})

	t.Run("system actor is recorded without an actor id", func(t *testing.T) {
		systemID := uuid.New()
		require.NoError(t, svcs.audit.Record(context.Background(), db, domain.AuditActionCreate, domain.KindDeal, systemID, nil, map[string]interface{}{"title": "Job"}))

		trail, err := svcs.audit.Trail(ctx, domain.KindDeal, systemID)
		require.NoError(t, err)
		require.Len(t, trail, 1)
		assert.Nil(t, trail[0].ActorID)
	})
}

func TestAuditService_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)
	user := testutil.CreateTestUser(t, db, "Agent", domain.UserRoleAgent)
	contact := testutil.CreateTestContact(t, db, "Contact", user)
	testutil.CreateTestPipeline(t, db, "Sales", user, true)
	ctx := actorCtx(user)

	deal, err := svcs.deals.Create(ctx, &domain.CreateDealRequest{
		Title:        "Audited",
		ContactID:    contact.ID,
		AssignedToID: user.ID,
	})
	require.NoError(t, err)
	_, err = svcs.deals.Close(ctx, deal.ID, &domain.CloseDealRequest{Status: "won"})
	require.NoError(t, err)

	t.Run("filter by action", func(t *testing.T) {
		action := domain.AuditActionClose
		records, total, err := svcs.audit.List(ctx, 1, 10, &repository.AuditRecordFilter{Action: &action})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, records, 1)
		assert.Equal(t, deal.ID, records[0].EntityID)
	})

	t.Run("filter by actor", func(t *testing.T) {
		_, total, err := svcs.audit.List(ctx, 1, 10, &repository.AuditRecordFilter{ActorID: &user.ID})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, int64(2))
	})
}

func TestAuditService_CleanupOldRecords(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := newServices(db)

	old := &domain.AuditRecord{
		Action:     domain.AuditActionCreate,
		EntityKind: domain.KindDeal,
		EntityID:   uuid.New(),
		RecordedAt: time.Now().AddDate(-4, 0, 0),
	}
	recent := &domain.AuditRecord{
		Action:     domain.AuditActionCreate,
		EntityKind: domain.KindDeal,
		EntityID:   uuid.New(),
		RecordedAt: time.Now().AddDate(0, 0, -1),
	}
	require.NoError(t, db.Create(old).Error)
	require.NoError(t, db.Create(recent).Error)

	deleted, err := svcs.audit.CleanupOldRecords(context.Background(), 1095)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, db.Model(&domain.AuditRecord{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)

	t.Run("non-positive retention is a no-op", func(t *testing.T) {
		deleted, err := svcs.audit.CleanupOldRecords(context.Background(), 0)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}
