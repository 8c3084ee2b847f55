package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/mapper"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/nordcrm/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type AuditHandler struct {
	auditService *service.AuditService
	logger       *zap.Logger
}

func NewAuditHandler(auditService *service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// @Summary List audit records
// @Description List audit records with optional filters, newest first
// @Tags Audit
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param actorId query string false "Filter by actor ID"
// @Param action query string false "Filter by action (create, update, soft_delete, stage_change, close, reopen)"
// @Param entityKind query string false "Filter by entity kind"
// @Param entityId query string false "Filter by entity ID"
// @Param from query string false "Recorded after (RFC 3339)"
// @Param to query string false "Recorded before (RFC 3339)"
// @Success 200 {object} domain.PaginatedResponse[domain.AuditRecordResponse]
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filter := &repository.AuditRecordFilter{}
	if a := r.URL.Query().Get("actorId"); a != "" {
		if id, err := uuid.Parse(a); err == nil {
			filter.ActorID = &id
		}
	}
	if act := r.URL.Query().Get("action"); act != "" {
		action := domain.AuditAction(act)
		filter.Action = &action
	}
	if k := r.URL.Query().Get("entityKind"); k != "" {
		kind := domain.EntityKind(k)
		if !kind.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid entity kind")
			return
		}
		filter.EntityKind = &kind
	}
	if e := r.URL.Query().Get("entityId"); e != "" {
		if id, err := uuid.Parse(e); err == nil {
			filter.EntityID = &id
		}
	}
	if f := r.URL.Query().Get("from"); f != "" {
		if t, err := time.Parse(time.RFC3339, f); err == nil {
			filter.From = &t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}

	records, total, err := h.auditService.List(r.Context(), page, pageSize, filter)
	if err != nil {
		h.logger.Error("failed to list audit records", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list audit records")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToAuditRecordResponses(records), total, page, pageSize))
}

// @Summary Get entity audit trail
// @Description Get the complete ordered mutation history for one entity
// @Tags Audit
// @Produce json
// @Param kind path string true "Entity kind (user, organization, contact, pipeline, stage, deal, activity, note)"
// @Param id path string true "Entity ID"
// @Success 200 {array} domain.AuditRecordResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit/{kind}/{id} [get]
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	kind := domain.EntityKind(chi.URLParam(r, "kind"))

	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid entity ID: must be a valid UUID")
		return
	}

	records, err := h.auditService.Trail(r.Context(), kind, id)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, "Invalid entity kind")
			return
		}
		h.logger.Error("failed to get audit trail", zap.Error(err),
			zap.String("entity_kind", string(kind)), zap.String("entity_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get audit trail")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToAuditRecordResponses(records))
}
