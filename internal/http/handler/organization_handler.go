package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/mapper"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type OrganizationHandler struct {
	organizationService *service.OrganizationService
	logger              *zap.Logger
}

func NewOrganizationHandler(organizationService *service.OrganizationService, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		organizationService: organizationService,
		logger:              logger,
	}
}

// @Summary List organizations
// @Description List organizations with optional filters
// @Tags Organizations
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param industry query string false "Filter by industry"
// @Param q query string false "Search in organization names"
// @Success 200 {object} domain.PaginatedResponse[domain.OrganizationResponse]
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /organizations [get]
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.OrganizationFilters{}
	if ind := r.URL.Query().Get("industry"); ind != "" {
		filters.Industry = &ind
	}
	if q := r.URL.Query().Get("q"); q != "" {
		filters.SearchQuery = &q
	}

	orgs, total, err := h.organizationService.List(r.Context(), page, pageSize, filters)
	if err != nil {
		h.logger.Error("failed to list organizations", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list organizations")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToOrganizationResponses(orgs), total, page, pageSize))
}

// @Summary Create organization
// @Description Create a new organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param request body domain.CreateOrganizationRequest true "Organization data"
// @Success 201 {object} domain.OrganizationResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /organizations [post]
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	org, err := h.organizationService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create organization", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create organization")
		return
	}

	w.Header().Set("Location", "/api/v1/organizations/"+org.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToOrganizationResponse(org))
}

// @Summary Get organization
// @Description Get an organization by ID with its contact count
// @Tags Organizations
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} OrganizationDetailResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /organizations/{id} [get]
func (h *OrganizationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid organization ID: must be a valid UUID")
		return
	}

	org, err := h.organizationService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Organization not found")
			return
		}
		h.logger.Error("failed to get organization", zap.Error(err), zap.String("organization_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get organization")
		return
	}

	contactCount, _ := h.organizationService.ContactCount(r.Context(), id)

	respondJSON(w, http.StatusOK, OrganizationDetailResponse{
		Organization: mapper.ToOrganizationResponse(org),
		ContactCount: contactCount,
	})
}

// OrganizationDetailResponse wraps an organization with its contact count
type OrganizationDetailResponse struct {
	Organization *domain.OrganizationResponse `json:"organization"`
	ContactCount int64                        `json:"contact_count"`
}

// @Summary Update organization
// @Description Update an organization's fields
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param request body domain.UpdateOrganizationRequest true "Organization data"
// @Success 200 {object} domain.OrganizationResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /organizations/{id} [put]
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid organization ID: must be a valid UUID")
		return
	}

	var req domain.UpdateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	org, err := h.organizationService.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Organization not found")
			return
		}
		h.logger.Error("failed to update organization", zap.Error(err), zap.String("organization_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to update organization")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrganizationResponse(org))
}

// @Summary Delete organization
// @Description Soft-delete an organization. Contacts keep their reference; new writes pointing at the deleted organization fail integrity checks.
// @Tags Organizations
// @Param id path string true "Organization ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /organizations/{id} [delete]
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid organization ID: must be a valid UUID")
		return
	}

	if err := h.organizationService.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Organization not found")
			return
		}
		h.logger.Error("failed to delete organization", zap.Error(err), zap.String("organization_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete organization")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
