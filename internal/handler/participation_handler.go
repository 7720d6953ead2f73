package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"testdesk/internal/domain"
	"testdesk/internal/service"
	"testdesk/pkg/errors"
)

// FingerprintHeader carries the respondent's browser fingerprint on every
// participation request.
const FingerprintHeader = "X-Fingerprint"

// ParticipationHandler serves the anonymous respondent endpoints
type ParticipationHandler struct {
	participationService *service.ParticipationService
}

// NewParticipationHandler creates a new participation handler
func NewParticipationHandler(participationService *service.ParticipationService) *ParticipationHandler {
	return &ParticipationHandler{
		participationService: participationService,
	}
}

// StartSession handles POST /api/polls/{pollUUID}/start
func (h *ParticipationHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	pollUUID, err := pollUUIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req domain.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}
	if req.Fingerprint == "" {
		req.Fingerprint = r.Header.Get(FingerprintHeader)
	}

	result, err := h.participationService.StartSession(r.Context(), pollUUID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// GetPoll handles GET /api/polls/{pollUUID}. Without a session bound to this
// poll the respondent is told to start one instead of receiving the poll.
func (h *ParticipationHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollUUID, err := pollUUIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	session, err := h.participationService.ResolveSession(r.Context(), participationToken(r), r.Header.Get(FingerprintHeader), pollUUID)
	if err != nil {
		respondError(w, err)
		return
	}
	if session == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "new_session_required"})
		return
	}

	poll, err := h.participationService.GetPoll(r.Context(), pollUUID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, poll)
}

// SubmitResponses handles POST /api/polls/{pollUUID}/responses
func (h *ParticipationHandler) SubmitResponses(w http.ResponseWriter, r *http.Request) {
	pollUUID, err := pollUUIDParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	token := participationToken(r)
	if token == "" {
		respondError(w, errors.NewAuthenticationError("Authorization header is required"))
		return
	}

	session, err := h.participationService.ResolveSession(r.Context(), token, r.Header.Get(FingerprintHeader), pollUUID)
	if err != nil {
		respondError(w, err)
		return
	}
	if session == nil {
		respondError(w, errors.NewAuthenticationError("Could not validate credentials"))
		return
	}

	var req domain.SubmitResponsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}

	responses, err := h.participationService.SubmitResponses(r.Context(), pollUUID, session, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, responses)
}

// pollUUIDParam parses the {pollUUID} route parameter
func pollUUIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "pollUUID")
	pollUUID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.NewValidationError("Invalid poll identifier", nil)
	}
	return pollUUID, nil
}

// participationToken extracts the optional bearer token of a respondent
func participationToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
