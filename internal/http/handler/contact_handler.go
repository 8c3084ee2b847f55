package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/mapper"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type ContactHandler struct {
	contactService *service.ContactService
	logger         *zap.Logger
}

func NewContactHandler(contactService *service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
		logger:         logger,
	}
}

// @Summary List contacts
// @Description List contacts with optional filters
// @Tags Contacts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param organizationId query string false "Filter by organization ID"
// @Param createdById query string false "Filter by creating user ID"
// @Param q query string false "Search in contact names and emails"
// @Success 200 {object} domain.PaginatedResponse[domain.ContactResponse]
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contacts [get]
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.ContactFilters{}
	if o := r.URL.Query().Get("organizationId"); o != "" {
		if id, err := uuid.Parse(o); err == nil {
			filters.OrganizationID = &id
		}
	}
	if c := r.URL.Query().Get("createdById"); c != "" {
		if id, err := uuid.Parse(c); err == nil {
			filters.CreatedByID = &id
		}
	}
	if q := r.URL.Query().Get("q"); q != "" {
		filters.SearchQuery = &q
	}

	contacts, total, err := h.contactService.List(r.Context(), page, pageSize, filters)
	if err != nil {
		h.logger.Error("failed to list contacts", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list contacts")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToContactResponses(contacts), total, page, pageSize))
}

// @Summary Create contact
// @Description Create a new contact, optionally affiliated with an organization
// @Tags Contacts
// @Accept json
// @Produce json
// @Param request body domain.CreateContactRequest true "Contact data"
// @Success 201 {object} domain.ContactResponse
// @Failure 422 {object} domain.APIError "A referenced entity is missing or deleted"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contacts [post]
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	contact, err := h.contactService.Create(r.Context(), &req)
	if err != nil {
		var ie *domain.IntegrityError
		if errors.As(err, &ie) {
			respondIntegrityError(w, ie)
			return
		}
		h.logger.Error("failed to create contact", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create contact")
		return
	}

	w.Header().Set("Location", "/api/v1/contacts/"+contact.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToContactResponse(contact))
}

// @Summary Get contact
// @Description Get a contact by ID
// @Tags Contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} domain.ContactResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contacts/{id} [get]
func (h *ContactHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid contact ID: must be a valid UUID")
		return
	}

	contact, err := h.contactService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Contact not found")
			return
		}
		h.logger.Error("failed to get contact", zap.Error(err), zap.String("contact_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get contact")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToContactResponse(contact))
}

// @Summary Get contact deals
// @Description Get all deals for a contact
// @Tags Contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {array} domain.DealResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contacts/{id}/deals [get]
func (h *ContactHandler) GetDeals(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid contact ID: must be a valid UUID")
		return
	}

	deals, err := h.contactService.ListDeals(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Contact not found")
			return
		}
		h.logger.Error("failed to get contact deals", zap.Error(err), zap.String("contact_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get contact deals")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDealResponses(deals))
}

// @Summary Update contact
// @Description Update a contact. Setting clear_organization detaches it from its organization.
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param request body domain.UpdateContactRequest true "Contact data"
// @Success 200 {object} domain.ContactResponse
// @Failure 422 {object} domain.APIError "A referenced entity is missing or deleted"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contacts/{id} [put]
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid contact ID: must be a valid UUID")
		return
	}

	var req domain.UpdateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	contact, err := h.contactService.Update(r.Context(), id, &req)
	if err != nil {
		var ie *domain.IntegrityError
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Contact not found")
		case errors.As(err, &ie):
			respondIntegrityError(w, ie)
		default:
			h.logger.Error("failed to update contact", zap.Error(err), zap.String("contact_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to update contact")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToContactResponse(contact))
}

// @Summary Delete contact
// @Description Soft-delete a contact. Open deals keep their reference but further updates against them fail integrity checks.
// @Tags Contacts
// @Param id path string true "Contact ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contacts/{id} [delete]
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid contact ID: must be a valid UUID")
		return
	}

	if err := h.contactService.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Contact not found")
			return
		}
		h.logger.Error("failed to delete contact", zap.Error(err), zap.String("contact_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete contact")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
