package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/auth"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/http/handler"
	"github.com/nordcrm/pipeline-api/internal/integrity"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"github.com/nordcrm/pipeline-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type dealFixture struct {
	router   http.Handler
	db       *gorm.DB
	user     *domain.User
	contact  *domain.Contact
	pipeline *domain.Pipeline
}

func setupDealRouter(t *testing.T) *dealFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	pipelineRepo := repository.NewPipelineRepository(db)
	stageRepo := repository.NewStageRepository(db)
	dealRepo := repository.NewDealRepository(db)
	historyRepo := repository.NewDealStageHistoryRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRecordRepository(db)

	locks := repository.NewKeyLock()
	validator := integrity.NewValidator(db)
	auditSvc := service.NewAuditService(auditRepo, logger)
	notificationSvc := service.NewNotificationService(notificationRepo, logger)
	dealSvc := service.NewDealService(db, dealRepo, stageRepo, pipelineRepo, historyRepo, validator, auditSvc, notificationSvc, locks, logger)
	noteSvc := service.NewNoteService(db, noteRepo, validator, auditSvc, locks, logger)

	h := handler.NewDealHandler(dealSvc, noteSvc, logger)

	user := testutil.CreateTestUser(t, db, "Handler Agent", domain.UserRoleAgent)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id := user.ID
			ctx := auth.WithActorContext(req.Context(), &auth.ActorContext{
				ActorID:     &id,
				DisplayName: user.Name,
				Email:       user.Email,
				Role:        user.Role,
			})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/v1/deals", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.GetByID)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/stage", h.MoveStage)
		r.Post("/{id}/close", h.Close)
		r.Post("/{id}/reopen", h.Reopen)
	})

	return &dealFixture{
		router:   r,
		db:       db,
		user:     user,
		contact:  testutil.CreateTestContact(t, db, "Handler Contact", user),
		pipeline: testutil.CreateTestPipeline(t, db, "Handler Pipeline", user, true),
	}
}

func (f *dealFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *dealFixture) createDeal(t *testing.T, title string) domain.DealResponse {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/deals", domain.CreateDealRequest{
		Title:        title,
		ContactID:    f.contact.ID,
		Value:        50000,
		AssignedToID: f.user.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp domain.DealResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestDealHandler_Create(t *testing.T) {
	f := setupDealRouter(t)

	t.Run("valid payload creates the deal", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/deals", domain.CreateDealRequest{
			Title:        "Fjord Expansion",
			ContactID:    f.contact.ID,
			Value:        120000,
			AssignedToID: f.user.ID,
		})

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Location"), "/api/v1/deals/")

		var resp domain.DealResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Fjord Expansion", resp.Title)
		assert.Equal(t, "open", resp.Status)
		assert.Equal(t, f.pipeline.Stages[0].ID, resp.StageID)
	})

	t.Run("missing title fails validation", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/deals", domain.CreateDealRequest{
			ContactID:    f.contact.ID,
			AssignedToID: f.user.ID,
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "title")
	})

	t.Run("malformed JSON is a 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/deals", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown contact is a 422", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/deals", domain.CreateDealRequest{
			Title:        "Ghost Deal",
			ContactID:    uuid.New(),
			AssignedToID: f.user.ID,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "contact_id")
	})
}

func TestDealHandler_GetByID(t *testing.T) {
	f := setupDealRouter(t)
	created := f.createDeal(t, "Readable Deal")

	t.Run("returns the deal with its stage history", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/deals/"+created.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp handler.DealWithHistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Readable Deal", resp.Deal.Title)
		require.Len(t, resp.StageHistory, 1)
		assert.Nil(t, resp.StageHistory[0].FromStageID)
	})

	t.Run("unknown ID is a 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/deals/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid ID is a 400", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/deals/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDealHandler_MoveStage(t *testing.T) {
	f := setupDealRouter(t)
	created := f.createDeal(t, "Moving Deal")

	t.Run("moves to the next stage", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/deals/%s/stage", created.ID), domain.MoveDealStageRequest{
			StageID: f.pipeline.Stages[1].ID,
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp domain.DealResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, f.pipeline.Stages[1].ID, resp.StageID)
	})

	t.Run("stage of another pipeline is a 422", func(t *testing.T) {
		other := testutil.CreateTestPipeline(t, f.db, "Other Pipeline", f.user, false)

		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/deals/%s/stage", created.ID), domain.MoveDealStageRequest{
			StageID: other.Stages[0].ID,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestDealHandler_CloseAndReopen(t *testing.T) {
	f := setupDealRouter(t)
	created := f.createDeal(t, "Closable Deal")

	t.Run("close as won", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/deals/%s/close", created.ID), domain.CloseDealRequest{Status: "won"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp domain.DealResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "won", resp.Status)
		assert.NotNil(t, resp.ClosedAt)
	})

	t.Run("closing twice is a 409", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/deals/%s/close", created.ID), domain.CloseDealRequest{Status: "lost"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("updating a closed deal is a 409", func(t *testing.T) {
		title := "New Title"
		rec := f.do(t, http.MethodPut, "/api/v1/deals/"+created.ID.String(), domain.UpdateDealRequest{Title: &title})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid closing status fails validation", func(t *testing.T) {
		fresh := f.createDeal(t, "Still Open")
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/deals/%s/close", fresh.ID), domain.CloseDealRequest{Status: "open"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reopen restores the deal", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/deals/%s/reopen", created.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp domain.DealResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "open", resp.Status)
		assert.Nil(t, resp.ClosedAt)
	})

	t.Run("reopening an open deal is a 409", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/deals/%s/reopen", created.ID), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestDealHandler_ListAndDelete(t *testing.T) {
	f := setupDealRouter(t)
	first := f.createDeal(t, "Alpha Deal")
	f.createDeal(t, "Beta Deal")

	t.Run("list returns both deals paginated", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/deals?page=1&pageSize=10", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp domain.PaginatedResponse[domain.DealResponse]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(2), resp.TotalCount)
		assert.Len(t, resp.Items, 2)
	})

	t.Run("search narrows by title", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/deals?q=beta", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp domain.PaginatedResponse[domain.DealResponse]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "Beta Deal", resp.Items[0].Title)
	})

	t.Run("invalid status filter is a 400", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/deals?status=frozen", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete removes the deal from reads", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/v1/deals/"+first.ID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/v1/deals/"+first.ID.String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
