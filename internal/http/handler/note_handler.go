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

type NoteHandler struct {
	noteService *service.NoteService
	logger      *zap.Logger
}

func NewNoteHandler(noteService *service.NoteService, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{
		noteService: noteService,
		logger:      logger,
	}
}

// @Summary Create note
// @Description Create a note on a deal
// @Tags Notes
// @Accept json
// @Produce json
// @Param request body domain.CreateNoteRequest true "Note data"
// @Success 201 {object} domain.NoteResponse
// @Failure 422 {object} domain.APIError "A referenced entity is missing or deleted"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /notes [post]
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	note, err := h.noteService.Create(r.Context(), &req)
	if err != nil {
		var ie *domain.IntegrityError
		if errors.As(err, &ie) {
			respondIntegrityError(w, ie)
			return
		}
		h.logger.Error("failed to create note", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create note")
		return
	}

	w.Header().Set("Location", "/api/v1/notes/"+note.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToNoteResponse(note))
}

// @Summary Get note
// @Description Get a note by ID
// @Tags Notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} domain.NoteResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /notes/{id} [get]
func (h *NoteHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid note ID: must be a valid UUID")
		return
	}

	note, err := h.noteService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Note not found")
			return
		}
		h.logger.Error("failed to get note", zap.Error(err), zap.String("note_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get note")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToNoteResponse(note))
}

// @Summary Update note
// @Description Replace a note's content
// @Tags Notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param request body domain.UpdateNoteRequest true "Note data"
// @Success 200 {object} domain.NoteResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /notes/{id} [put]
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid note ID: must be a valid UUID")
		return
	}

	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	note, err := h.noteService.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Note not found")
			return
		}
		h.logger.Error("failed to update note", zap.Error(err), zap.String("note_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to update note")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToNoteResponse(note))
}

// @Summary Delete note
// @Description Soft-delete a note
// @Tags Notes
// @Param id path string true "Note ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /notes/{id} [delete]
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid note ID: must be a valid UUID")
		return
	}

	if err := h.noteService.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Note not found")
			return
		}
		h.logger.Error("failed to delete note", zap.Error(err), zap.String("note_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete note")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
