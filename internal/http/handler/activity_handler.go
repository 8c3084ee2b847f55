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

type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// @Summary List activities
// @Description List activities with optional filters
// @Tags Activities
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param dealId query string false "Filter by deal ID"
// @Param type query string false "Filter by type (call, email, task, meeting)"
// @Param createdById query string false "Filter by creating user ID"
// @Param completed query bool false "Filter by completion state"
// @Param scheduledAfter query string false "Scheduled after date (YYYY-MM-DD)"
// @Param scheduledBefore query string false "Scheduled before date (YYYY-MM-DD)"
// @Success 200 {object} domain.PaginatedResponse[domain.ActivityResponse]
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities [get]
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.ActivityFilters{}
	if d := r.URL.Query().Get("dealId"); d != "" {
		if id, err := uuid.Parse(d); err == nil {
			filters.DealID = &id
		}
	}
	if t := r.URL.Query().Get("type"); t != "" {
		activityType := domain.ActivityType(t)
		if !activityType.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid type: must be call, email, task or meeting")
			return
		}
		filters.Type = &activityType
	}
	if c := r.URL.Query().Get("createdById"); c != "" {
		if id, err := uuid.Parse(c); err == nil {
			filters.CreatedByID = &id
		}
	}
	if comp := r.URL.Query().Get("completed"); comp != "" {
		if b, err := strconv.ParseBool(comp); err == nil {
			filters.Completed = &b
		}
	}
	if sa := r.URL.Query().Get("scheduledAfter"); sa != "" {
		if t, err := time.Parse("2006-01-02", sa); err == nil {
			filters.ScheduledAfter = &t
		}
	}
	if sb := r.URL.Query().Get("scheduledBefore"); sb != "" {
		if t, err := time.Parse("2006-01-02", sb); err == nil {
			filters.ScheduledBefore = &t
		}
	}

	activities, total, err := h.activityService.List(r.Context(), page, pageSize, filters)
	if err != nil {
		h.logger.Error("failed to list activities", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list activities")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToActivityResponses(activities), total, page, pageSize))
}

// @Summary Create activity
// @Description Create a scheduled activity on a deal
// @Tags Activities
// @Accept json
// @Produce json
// @Param request body domain.CreateActivityRequest true "Activity data"
// @Success 201 {object} domain.ActivityResponse
// @Failure 422 {object} domain.APIError "A referenced entity is missing or deleted"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities [post]
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	activity, err := h.activityService.Create(r.Context(), &req)
	if err != nil {
		var ie *domain.IntegrityError
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, "Invalid activity type")
		case errors.As(err, &ie):
			respondIntegrityError(w, ie)
		default:
			h.logger.Error("failed to create activity", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to create activity")
		}
		return
	}

	w.Header().Set("Location", "/api/v1/activities/"+activity.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToActivityResponse(activity))
}

// @Summary Get activity
// @Description Get an activity by ID
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} domain.ActivityResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities/{id} [get]
func (h *ActivityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid activity ID: must be a valid UUID")
		return
	}

	activity, err := h.activityService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Activity not found")
			return
		}
		h.logger.Error("failed to get activity", zap.Error(err), zap.String("activity_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get activity")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToActivityResponse(activity))
}

// @Summary Update activity
// @Description Update an activity. Completion time must not precede the scheduled time.
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param request body domain.UpdateActivityRequest true "Activity data"
// @Success 200 {object} domain.ActivityResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities/{id} [put]
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid activity ID: must be a valid UUID")
		return
	}

	var req domain.UpdateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	activity, err := h.activityService.Update(r.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Activity not found")
		case errors.Is(err, service.ErrCompletedBeforeScheduled):
			respondWithError(w, http.StatusBadRequest, "Completion time must not precede the scheduled time")
		case errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, "Invalid activity type")
		default:
			h.logger.Error("failed to update activity", zap.Error(err), zap.String("activity_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to update activity")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToActivityResponse(activity))
}

// @Summary Delete activity
// @Description Soft-delete an activity
// @Tags Activities
// @Param id path string true "Activity ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities/{id} [delete]
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid activity ID: must be a valid UUID")
		return
	}

	if err := h.activityService.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Activity not found")
			return
		}
		h.logger.Error("failed to delete activity", zap.Error(err), zap.String("activity_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete activity")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
