package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"testdesk/internal/domain"
	"testdesk/internal/middleware"
	"testdesk/internal/service"
	"testdesk/pkg/errors"
)

// UserHandler serves registration and user listing
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Register handles POST /api/users/register. The invitation token is the
// only credential, so the endpoint is public.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}
	if req.InvitationToken == "" {
		respondError(w, errors.NewValidationError("Invitation token is required", nil))
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// List handles GET /api/users. Admins see their own company; superusers may
// pick any company or list everyone.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	companyID := user.CompanyID
	if user.IsSuperuser {
		companyID = nil
		if raw := r.URL.Query().Get("company_id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				respondError(w, errors.NewValidationError("Invalid company id", nil))
				return
			}
			companyID = &id
		}
	}

	users, err := h.userService.List(r.Context(), companyID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}
