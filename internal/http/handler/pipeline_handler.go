package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/mapper"
	"github.com/nordcrm/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type PipelineHandler struct {
	pipelineService *service.PipelineService
	dealService     *service.DealService
	logger          *zap.Logger
}

func NewPipelineHandler(pipelineService *service.PipelineService, dealService *service.DealService, logger *zap.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipelineService: pipelineService,
		dealService:     dealService,
		logger:          logger,
	}
}

// @Summary List pipelines
// @Description List pipelines with their stages
// @Tags Pipelines
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param q query string false "Search in pipeline names"
// @Success 200 {object} domain.PaginatedResponse[domain.PipelineResponse]
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines [get]
func (h *PipelineHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	var search *string
	if q := r.URL.Query().Get("q"); q != "" {
		search = &q
	}

	pipelines, total, err := h.pipelineService.List(r.Context(), page, pageSize, search)
	if err != nil {
		h.logger.Error("failed to list pipelines", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list pipelines")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToPipelineResponses(pipelines), total, page, pageSize))
}

// @Summary Create pipeline
// @Description Create a pipeline with at least one stage. Marking it default atomically clears the previous default.
// @Tags Pipelines
// @Accept json
// @Produce json
// @Param request body domain.CreatePipelineRequest true "Pipeline data"
// @Success 201 {object} domain.PipelineResponse
// @Failure 409 {object} domain.APIError "Duplicate stage position"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines [post]
func (h *PipelineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	pipeline, err := h.pipelineService.Create(r.Context(), &req)
	if err != nil {
		var ie *domain.IntegrityError
		switch {
		case errors.Is(err, service.ErrDuplicatePosition):
			respondWithError(w, http.StatusConflict, "Stage positions must be unique within a pipeline")
		case errors.As(err, &ie):
			respondIntegrityError(w, ie)
		default:
			h.logger.Error("failed to create pipeline", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to create pipeline")
		}
		return
	}

	w.Header().Set("Location", "/api/v1/pipelines/"+pipeline.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToPipelineResponse(pipeline))
}

// @Summary Get pipeline
// @Description Get a pipeline by ID with stages ordered by position
// @Tags Pipelines
// @Produce json
// @Param id path string true "Pipeline ID"
// @Success 200 {object} domain.PipelineResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines/{id} [get]
func (h *PipelineHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid pipeline ID: must be a valid UUID")
		return
	}

	pipeline, err := h.pipelineService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Pipeline not found")
			return
		}
		h.logger.Error("failed to get pipeline", zap.Error(err), zap.String("pipeline_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get pipeline")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToPipelineResponse(pipeline))
}

// @Summary Get default pipeline
// @Description Get the pipeline new deals enter when no pipeline is given
// @Tags Pipelines
// @Produce json
// @Success 200 {object} domain.PipelineResponse
// @Failure 404 {object} domain.APIError "No default pipeline configured"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines/default [get]
func (h *PipelineHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	pipeline, err := h.pipelineService.GetDefault(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoDefaultPipeline) {
			respondWithError(w, http.StatusNotFound, "No default pipeline configured")
			return
		}
		h.logger.Error("failed to get default pipeline", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get default pipeline")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToPipelineResponse(pipeline))
}

// @Summary Update pipeline
// @Description Rename a pipeline or change its default flag
// @Tags Pipelines
// @Accept json
// @Produce json
// @Param id path string true "Pipeline ID"
// @Param request body domain.UpdatePipelineRequest true "Pipeline data"
// @Success 200 {object} domain.PipelineResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines/{id} [put]
func (h *PipelineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid pipeline ID: must be a valid UUID")
		return
	}

	var req domain.UpdatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	pipeline, err := h.pipelineService.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Pipeline not found")
			return
		}
		h.logger.Error("failed to update pipeline", zap.Error(err), zap.String("pipeline_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to update pipeline")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToPipelineResponse(pipeline))
}

// @Summary Delete pipeline
// @Description Soft-delete a pipeline. Blocked while the pipeline holds open deals.
// @Tags Pipelines
// @Param id path string true "Pipeline ID"
// @Success 204 "No Content"
// @Failure 409 {object} domain.APIError "Pipeline has open deals"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines/{id} [delete]
func (h *PipelineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid pipeline ID: must be a valid UUID")
		return
	}

	if err := h.pipelineService.SoftDelete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Pipeline not found")
		case errors.Is(err, service.ErrPipelineHasDeals):
			respondWithError(w, http.StatusConflict, "Pipeline still has open deals")
		default:
			h.logger.Error("failed to delete pipeline", zap.Error(err), zap.String("pipeline_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to delete pipeline")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Get pipeline board
// @Description Get the pipeline's open deals grouped into stage columns with value totals
// @Tags Pipelines
// @Produce json
// @Param id path string true "Pipeline ID"
// @Success 200 {object} domain.PipelineBoardResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines/{id}/board [get]
func (h *PipelineHandler) Board(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid pipeline ID: must be a valid UUID")
		return
	}

	pipeline, stages, dealsByStage, err := h.dealService.Board(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Pipeline not found")
			return
		}
		h.logger.Error("failed to build pipeline board", zap.Error(err), zap.String("pipeline_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to build pipeline board")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToPipelineBoard(pipeline, stages, dealsByStage))
}

// @Summary Add stage
// @Description Add a stage to a pipeline at a free position
// @Tags Pipelines
// @Accept json
// @Produce json
// @Param id path string true "Pipeline ID"
// @Param request body domain.CreateStageRequest true "Stage data"
// @Success 201 {object} domain.StageResponse
// @Failure 409 {object} domain.APIError "Position already occupied"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines/{id}/stages [post]
func (h *PipelineHandler) AddStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid pipeline ID: must be a valid UUID")
		return
	}

	var req domain.CreateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	stage, err := h.pipelineService.AddStage(r.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Pipeline not found")
		case errors.Is(err, service.ErrDuplicatePosition):
			respondWithError(w, http.StatusConflict, "A stage already occupies that position")
		default:
			h.logger.Error("failed to add stage", zap.Error(err), zap.String("pipeline_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to add stage")
		}
		return
	}

	respondJSON(w, http.StatusCreated, mapper.ToStageResponse(stage))
}

// @Summary Update stage
// @Description Update a stage's name, position or win probability. The owning pipeline never changes.
// @Tags Pipelines
// @Accept json
// @Produce json
// @Param id path string true "Pipeline ID"
// @Param stageId path string true "Stage ID"
// @Param request body domain.UpdateStageRequest true "Stage data"
// @Success 200 {object} domain.StageResponse
// @Failure 409 {object} domain.APIError "Position already occupied"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines/{id}/stages/{stageId} [put]
func (h *PipelineHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	stageID, err := parseIDParam(r, "stageId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid stage ID: must be a valid UUID")
		return
	}

	var req domain.UpdateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	stage, err := h.pipelineService.UpdateStage(r.Context(), stageID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Stage not found")
		case errors.Is(err, service.ErrDuplicatePosition):
			respondWithError(w, http.StatusConflict, "A stage already occupies that position")
		default:
			h.logger.Error("failed to update stage", zap.Error(err), zap.String("stage_id", stageID.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to update stage")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToStageResponse(stage))
}

// @Summary Delete stage
// @Description Soft-delete a stage. Blocked while deals reference it or it is the pipeline's last stage.
// @Tags Pipelines
// @Param id path string true "Pipeline ID"
// @Param stageId path string true "Stage ID"
// @Success 204 "No Content"
// @Failure 409 {object} domain.APIError "Stage is referenced by deals or is the last stage"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipelines/{id}/stages/{stageId} [delete]
func (h *PipelineHandler) DeleteStage(w http.ResponseWriter, r *http.Request) {
	stageID, err := parseIDParam(r, "stageId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid stage ID: must be a valid UUID")
		return
	}

	if err := h.pipelineService.DeleteStage(r.Context(), stageID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Stage not found")
		case errors.Is(err, service.ErrStageHasDeals):
			respondWithError(w, http.StatusConflict, "Stage is still referenced by deals")
		case errors.Is(err, service.ErrLastStage):
			respondWithError(w, http.StatusConflict, "A pipeline must keep at least one stage")
		default:
			h.logger.Error("failed to delete stage", zap.Error(err), zap.String("stage_id", stageID.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to delete stage")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
