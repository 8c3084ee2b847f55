package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/mapper"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type DealHandler struct {
	dealService *service.DealService
	noteService *service.NoteService
	logger      *zap.Logger
}

func NewDealHandler(dealService *service.DealService, noteService *service.NoteService, logger *zap.Logger) *DealHandler {
	return &DealHandler{
		dealService: dealService,
		noteService: noteService,
		logger:      logger,
	}
}

// @Summary List deals
// @Description List deals with optional filters
// @Tags Deals
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by status (open, won, lost)"
// @Param pipelineId query string false "Filter by pipeline ID"
// @Param stageId query string false "Filter by stage ID"
// @Param contactId query string false "Filter by contact ID"
// @Param assignedToId query string false "Filter by assignee ID"
// @Param minValue query number false "Minimum value"
// @Param maxValue query number false "Maximum value"
// @Param createdAfter query string false "Created after date (YYYY-MM-DD)"
// @Param createdBefore query string false "Created before date (YYYY-MM-DD)"
// @Param closeAfter query string false "Expected close after date (YYYY-MM-DD)"
// @Param closeBefore query string false "Expected close before date (YYYY-MM-DD)"
// @Param q query string false "Search in deal titles"
// @Param sort query string false "Sort by (created_desc, created_asc, value_desc, value_asc, close_date_desc, close_date_asc)"
// @Success 200 {object} domain.PaginatedResponse[domain.DealResponse]
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals [get]
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.DealFilters{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.DealStatus(s)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status: must be open, won or lost")
			return
		}
		filters.Status = &status
	}
	if p := r.URL.Query().Get("pipelineId"); p != "" {
		if id, err := uuid.Parse(p); err == nil {
			filters.PipelineID = &id
		}
	}
	if s := r.URL.Query().Get("stageId"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filters.StageID = &id
		}
	}
	if c := r.URL.Query().Get("contactId"); c != "" {
		if id, err := uuid.Parse(c); err == nil {
			filters.ContactID = &id
		}
	}
	if a := r.URL.Query().Get("assignedToId"); a != "" {
		if id, err := uuid.Parse(a); err == nil {
			filters.AssignedToID = &id
		}
	}
	if minVal := r.URL.Query().Get("minValue"); minVal != "" {
		if v, err := strconv.ParseFloat(minVal, 64); err == nil {
			filters.MinValue = &v
		}
	}
	if maxVal := r.URL.Query().Get("maxValue"); maxVal != "" {
		if v, err := strconv.ParseFloat(maxVal, 64); err == nil {
			filters.MaxValue = &v
		}
	}
	if ca := r.URL.Query().Get("createdAfter"); ca != "" {
		if t, err := time.Parse("2006-01-02", ca); err == nil {
			filters.CreatedAfter = &t
		}
	}
	if cb := r.URL.Query().Get("createdBefore"); cb != "" {
		if t, err := time.Parse("2006-01-02", cb); err == nil {
			filters.CreatedBefore = &t
		}
	}
	if cla := r.URL.Query().Get("closeAfter"); cla != "" {
		if t, err := time.Parse("2006-01-02", cla); err == nil {
			filters.CloseAfter = &t
		}
	}
	if clb := r.URL.Query().Get("closeBefore"); clb != "" {
		if t, err := time.Parse("2006-01-02", clb); err == nil {
			filters.CloseBefore = &t
		}
	}
	if q := r.URL.Query().Get("q"); q != "" {
		filters.SearchQuery = &q
	}

	sortBy := repository.DealSortByCreatedDesc
	if s := r.URL.Query().Get("sort"); s != "" {
		sortBy = repository.DealSortOption(s)
	}

	deals, total, err := h.dealService.List(r.Context(), page, pageSize, filters, sortBy)
	if err != nil {
		h.logger.Error("failed to list deals", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list deals")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToDealResponses(deals), total, page, pageSize))
}

// @Summary Create deal
// @Description Create a new deal. Without an explicit pipeline the deal enters the first stage of the default pipeline.
// @Tags Deals
// @Accept json
// @Produce json
// @Param request body domain.CreateDealRequest true "Deal data"
// @Success 201 {object} domain.DealResponse
// @Failure 422 {object} domain.APIError "A referenced entity is missing or deleted"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals [post]
func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.Create(r.Context(), &req)
	if err != nil {
		var ie *domain.IntegrityError
		if errors.As(err, &ie) {
			respondIntegrityError(w, ie)
			return
		}
		if errors.Is(err, service.ErrNoDefaultPipeline) {
			respondWithError(w, http.StatusConflict, "No default pipeline configured")
			return
		}
		h.logger.Error("failed to create deal", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create deal")
		return
	}

	w.Header().Set("Location", "/api/v1/deals/"+deal.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToDealResponse(deal))
}

// @Summary Get deal
// @Description Get a deal by ID with its stage movement history
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} DealWithHistoryResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id} [get]
func (h *DealHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	deal, err := h.dealService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Deal not found")
			return
		}
		h.logger.Error("failed to get deal", zap.Error(err), zap.String("deal_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get deal")
		return
	}

	history, _ := h.dealService.GetStageHistory(r.Context(), id)

	respondJSON(w, http.StatusOK, DealWithHistoryResponse{
		Deal:         mapper.ToDealResponse(deal),
		StageHistory: mapper.ToDealStageHistoryResponses(history),
	})
}

// DealWithHistoryResponse wraps a deal with its stage history
type DealWithHistoryResponse struct {
	Deal         *domain.DealResponse              `json:"deal"`
	StageHistory []domain.DealStageHistoryResponse `json:"stage_history"`
}

// @Summary Update deal
// @Description Update an open deal's editable fields
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.UpdateDealRequest true "Deal data"
// @Success 200 {object} domain.DealResponse
// @Failure 409 {object} domain.APIError "Deal is closed"
// @Failure 422 {object} domain.APIError "A referenced entity is missing or deleted"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id} [put]
func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	var req domain.UpdateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.Update(r.Context(), id, &req)
	if err != nil {
		var ie *domain.IntegrityError
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Deal not found")
		case errors.Is(err, service.ErrDealClosed):
			respondWithError(w, http.StatusConflict, "Deal is closed and can no longer be updated")
		case errors.As(err, &ie):
			respondIntegrityError(w, ie)
		default:
			h.logger.Error("failed to update deal", zap.Error(err), zap.String("deal_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to update deal")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDealResponse(deal))
}

// @Summary Delete deal
// @Description Soft-delete a deal
// @Tags Deals
// @Param id path string true "Deal ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id} [delete]
func (h *DealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	if err := h.dealService.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Deal not found")
			return
		}
		h.logger.Error("failed to delete deal", zap.Error(err), zap.String("deal_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete deal")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Move deal stage
// @Description Move a deal to another stage of its current pipeline. Backward moves are allowed and flagged in the history.
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.MoveDealStageRequest true "Target stage"
// @Success 200 {object} domain.DealResponse
// @Failure 409 {object} domain.APIError "Deal is closed"
// @Failure 422 {object} domain.APIError "Stage does not belong to the deal's pipeline"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/stage [post]
func (h *DealHandler) MoveStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	var req domain.MoveDealStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.MoveStage(r.Context(), id, &req)
	if err != nil {
		var ie *domain.IntegrityError
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Deal not found")
		case errors.Is(err, service.ErrDealClosed):
			respondWithError(w, http.StatusConflict, "Deal is closed and can no longer move stages")
		case errors.As(err, &ie):
			respondIntegrityError(w, ie)
		default:
			h.logger.Error("failed to move deal stage", zap.Error(err), zap.String("deal_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to move deal stage")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDealResponse(deal))
}

// @Summary Move deal to another pipeline
// @Description Move a deal into a different pipeline, entering the given stage or the pipeline's first stage
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.MoveDealPipelineRequest true "Target pipeline and optional stage"
// @Success 200 {object} domain.DealResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/pipeline [post]
func (h *DealHandler) MovePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	var req domain.MoveDealPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.MovePipeline(r.Context(), id, &req)
	if err != nil {
		var ie *domain.IntegrityError
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Deal not found")
		case errors.Is(err, service.ErrDealClosed):
			respondWithError(w, http.StatusConflict, "Deal is closed and can no longer move pipelines")
		case errors.As(err, &ie):
			respondIntegrityError(w, ie)
		default:
			h.logger.Error("failed to move deal pipeline", zap.Error(err), zap.String("deal_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to move deal pipeline")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDealResponse(deal))
}

// @Summary Close deal
// @Description Close a deal as won or lost. Closing freezes the deal's stage and fields.
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.CloseDealRequest true "Closing status and notes"
// @Success 200 {object} domain.DealResponse
// @Failure 409 {object} domain.APIError "Deal is already closed"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/close [post]
func (h *DealHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	var req domain.CloseDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.Close(r.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Deal not found")
		case errors.Is(err, service.ErrDealClosed):
			respondWithError(w, http.StatusConflict, "Deal is already closed")
		case errors.Is(err, service.ErrInvalidStatus):
			respondWithError(w, http.StatusBadRequest, "Closing status must be won or lost")
		default:
			h.logger.Error("failed to close deal", zap.Error(err), zap.String("deal_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to close deal")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDealResponse(deal))
}

// @Summary Reopen deal
// @Description Reopen a closed deal. It re-enters the stage it held when closed.
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} domain.DealResponse
// @Failure 409 {object} domain.APIError "Deal is not closed"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/reopen [post]
func (h *DealHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	deal, err := h.dealService.Reopen(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Deal not found")
		case errors.Is(err, service.ErrDealNotClosed):
			respondWithError(w, http.StatusConflict, "Deal is not closed")
		default:
			h.logger.Error("failed to reopen deal", zap.Error(err), zap.String("deal_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to reopen deal")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDealResponse(deal))
}

// @Summary Get deal stage history
// @Description Get the ordered stage movement history for a deal
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {array} domain.DealStageHistoryResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/history [get]
func (h *DealHandler) GetStageHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	history, err := h.dealService.GetStageHistory(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Deal not found")
			return
		}
		h.logger.Error("failed to get stage history", zap.Error(err), zap.String("deal_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get stage history")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDealStageHistoryResponses(history))
}

// @Summary Get deal notes
// @Description Get paginated notes for a deal, newest first
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} domain.PaginatedResponse[domain.NoteResponse]
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/notes [get]
func (h *DealHandler) GetNotes(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	page, pageSize := parsePagination(r)

	notes, total, err := h.noteService.ListByDeal(r.Context(), id, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Deal not found")
			return
		}
		h.logger.Error("failed to get deal notes", zap.Error(err), zap.String("deal_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get deal notes")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToNoteResponses(notes), total, page, pageSize))
}
