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

type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// @Summary List users
// @Description List users with optional filters
// @Tags Users
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param role query string false "Filter by role (admin, agent, manager)"
// @Param q query string false "Search in names and emails"
// @Success 200 {object} domain.PaginatedResponse[domain.UserResponse]
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.UserFilters{}
	if rl := r.URL.Query().Get("role"); rl != "" {
		role := domain.UserRole(rl)
		if !role.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid role: must be admin, agent or manager")
			return
		}
		filters.Role = &role
	}
	if q := r.URL.Query().Get("q"); q != "" {
		filters.SearchQuery = &q
	}

	users, total, err := h.userService.List(r.Context(), page, pageSize, filters)
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	respondJSON(w, http.StatusOK, paginated(mapper.ToUserResponses(users), total, page, pageSize))
}

// @Summary Create user
// @Description Create a new user with a unique email
// @Tags Users
// @Accept json
// @Produce json
// @Param request body domain.CreateUserRequest true "User data"
// @Success 201 {object} domain.UserResponse
// @Failure 409 {object} domain.APIError "Email already in use"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users [post]
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	user, err := h.userService.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			respondWithError(w, http.StatusConflict, "A user with that email already exists")
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	w.Header().Set("Location", "/api/v1/users/"+user.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToUserResponse(user))
}

// @Summary Get user
// @Description Get a user by ID
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} domain.UserResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id} [get]
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID: must be a valid UUID")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to get user", zap.Error(err), zap.String("user_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToUserResponse(user))
}

// @Summary Get user deals
// @Description Get all deals assigned to a user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {array} domain.DealResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id}/deals [get]
func (h *UserHandler) GetDeals(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID: must be a valid UUID")
		return
	}

	deals, err := h.userService.ListDeals(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to get user deals", zap.Error(err), zap.String("user_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get user deals")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDealResponses(deals))
}

// @Summary Update user
// @Description Update a user's name, email or role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body domain.UpdateUserRequest true "User data"
// @Success 200 {object} domain.UserResponse
// @Failure 409 {object} domain.APIError "Email already in use"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id} [put]
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID: must be a valid UUID")
		return
	}

	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	user, err := h.userService.Update(r.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrDuplicateEmail):
			respondWithError(w, http.StatusConflict, "A user with that email already exists")
		default:
			h.logger.Error("failed to update user", zap.Error(err), zap.String("user_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to update user")
		}
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToUserResponse(user))
}

// @Summary Delete user
// @Description Soft-delete a user. Deals keep their assignee reference; later writes against them fail integrity checks until reassigned.
// @Tags Users
// @Param id path string true "User ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID: must be a valid UUID")
		return
	}

	if err := h.userService.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to delete user", zap.Error(err), zap.String("user_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
