package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nordcrm/pipeline-api/internal/auth"
	"github.com/nordcrm/pipeline-api/internal/mapper"
	"github.com/nordcrm/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

func NewNotificationHandler(notificationService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// @Summary List notifications
// @Description List the authenticated user's notifications, newest first
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param unreadOnly query bool false "Only unread notifications"
// @Success 200 {object} domain.PaginatedResponse[domain.NotificationResponse]
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok || actor.ActorID == nil {
		respondWithError(w, http.StatusUnauthorized, "Notifications require a user identity")
		return
	}

	page, pageSize := parsePagination(r)

	unreadOnly := false
	if u := r.URL.Query().Get("unreadOnly"); u != "" {
		unreadOnly, _ = strconv.ParseBool(u)
	}

	notifications, total, err := h.notificationService.ListByUser(r.Context(), *actor.ActorID, unreadOnly, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToNotificationResponses(notifications), total, page, pageSize))
}

// @Summary Get unread count
// @Description Count the authenticated user's unread notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} UnreadCountResponse
// @Security BearerAuth
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok || actor.ActorID == nil {
		respondWithError(w, http.StatusUnauthorized, "Notifications require a user identity")
		return
	}

	count, err := h.notificationService.CountUnread(r.Context(), *actor.ActorID)
	if err != nil {
		h.logger.Error("failed to count unread notifications", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to count unread notifications")
		return
	}

	respondJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

// UnreadCountResponse carries an unread notification count
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// @Summary Mark notification read
// @Description Mark one notification as read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid notification ID: must be a valid UUID")
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Notification not found")
			return
		}
		h.logger.Error("failed to mark notification read", zap.Error(err), zap.String("notification_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to mark notification read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Mark all notifications read
// @Description Mark all of the authenticated user's notifications as read
// @Tags Notifications
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok || actor.ActorID == nil {
		respondWithError(w, http.StatusUnauthorized, "Notifications require a user identity")
		return
	}

	if err := h.notificationService.MarkAllRead(r.Context(), *actor.ActorID); err != nil {
		h.logger.Error("failed to mark notifications read", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to mark notifications read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
