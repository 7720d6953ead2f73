package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"testdesk/internal/domain"
	"testdesk/internal/middleware"
	"testdesk/internal/service"
	"testdesk/pkg/errors"
)

// PollHandler serves the authenticated poll owner endpoints
type PollHandler struct {
	pollService *service.PollService
}

// NewPollHandler creates a new poll handler
func NewPollHandler(pollService *service.PollService) *PollHandler {
	return &PollHandler{
		pollService: pollService,
	}
}

// Create handles POST /api/user_polls
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req domain.CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}

	poll, err := h.pollService.Create(r.Context(), user.ID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, poll)
}

// List handles GET /api/user_polls
func (h *PollHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	sortBy := r.URL.Query().Get("sort_by")
	query := r.URL.Query().Get("query")

	result, err := h.pollService.List(r.Context(), user.ID, sortBy, query, page, pageSize)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Get handles GET /api/user_polls/{pollID}
func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	pollID, err := pollIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	poll, err := h.pollService.Get(r.Context(), pollID, user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, poll)
}

// Update handles PUT /api/user_polls/{pollID}
func (h *PollHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	pollID, err := pollIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req domain.UpdatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}

	poll, err := h.pollService.Update(r.Context(), pollID, user.ID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, poll)
}

// Delete handles DELETE /api/user_polls/{pollID}
func (h *PollHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	pollID, err := pollIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.pollService.Delete(r.Context(), pollID, user.ID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clone handles POST /api/user_polls/{pollID}/clone
func (h *PollHandler) Clone(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	pollID, err := pollIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	poll, err := h.pollService.Clone(r.Context(), pollID, user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, poll)
}

// ChangeStatus handles PATCH /api/user_polls/{pollID}/status
func (h *PollHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	pollID, err := pollIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req domain.PollStatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}

	poll, err := h.pollService.ChangeStatus(r.Context(), pollID, user.ID, req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, poll)
}

// Responses handles GET /api/user_polls/{pollID}/responses
func (h *PollHandler) Responses(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	pollID, err := pollIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	responses, err := h.pollService.Responses(r.Context(), pollID, user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, responses)
}

// Report handles GET /api/user_polls/{pollID}/report
func (h *PollHandler) Report(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	pollID, err := pollIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	report, err := h.pollService.Report(r.Context(), pollID, user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// pollIDParam parses the {pollID} route parameter
func pollIDParam(r *http.Request) (int, error) {
	pollID, err := strconv.Atoi(chi.URLParam(r, "pollID"))
	if err != nil || pollID < 1 {
		return 0, errors.NewValidationError("Invalid poll id", nil)
	}
	return pollID, nil
}
