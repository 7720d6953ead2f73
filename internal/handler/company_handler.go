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

// CompanyHandler serves the tenant administration endpoints
type CompanyHandler struct {
	companyService *service.CompanyService
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(companyService *service.CompanyService) *CompanyHandler {
	return &CompanyHandler{
		companyService: companyService,
	}
}

// Create handles POST /api/companies
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}

	company, err := h.companyService.Create(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, company)
}

// List handles GET /api/companies
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companyService.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, companies)
}

// Get handles GET /api/companies/{companyID}. Admins see their own
// company only.
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := h.companyID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.requireCompanyAccess(r, companyID); err != nil {
		respondError(w, err)
		return
	}

	company, err := h.companyService.Get(r.Context(), companyID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// Update handles PUT /api/companies/{companyID}
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, err := h.companyID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.requireCompanyAccess(r, companyID); err != nil {
		respondError(w, err)
		return
	}

	var company domain.Company
	if err := json.NewDecoder(r.Body).Decode(&company); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}
	company.ID = companyID

	updated, err := h.companyService.Update(r.Context(), &company)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/companies/{companyID}
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, err := h.companyID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.companyService.Delete(r.Context(), companyID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invite handles POST /api/companies/{companyID}/invitations. Admins invite
// into their own company only.
func (h *CompanyHandler) Invite(w http.ResponseWriter, r *http.Request) {
	companyID, err := h.companyID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.requireCompanyAccess(r, companyID); err != nil {
		respondError(w, err)
		return
	}

	var req domain.CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}

	invitation, err := h.companyService.Invite(r.Context(), companyID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, invitation)
}

// Invitations handles GET /api/companies/{companyID}/invitations
func (h *CompanyHandler) Invitations(w http.ResponseWriter, r *http.Request) {
	companyID, err := h.companyID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.requireCompanyAccess(r, companyID); err != nil {
		respondError(w, err)
		return
	}

	invitations, err := h.companyService.Invitations(r.Context(), companyID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invitations)
}

// Revoke handles DELETE /api/companies/{companyID}/invitations/{invitationID}
func (h *CompanyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	companyID, err := h.companyID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.requireCompanyAccess(r, companyID); err != nil {
		respondError(w, err)
		return
	}

	invitationID, err := strconv.Atoi(chi.URLParam(r, "invitationID"))
	if err != nil || invitationID < 1 {
		respondError(w, errors.NewValidationError("Invalid invitation id", nil))
		return
	}

	if err := h.companyService.Revoke(r.Context(), companyID, invitationID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CompanyHandler) companyID(r *http.Request) (int, error) {
	companyID, err := strconv.Atoi(chi.URLParam(r, "companyID"))
	if err != nil || companyID < 1 {
		return 0, errors.NewValidationError("Invalid company id", nil)
	}
	return companyID, nil
}

// requireCompanyAccess limits non-superusers to their own company
func (h *CompanyHandler) requireCompanyAccess(r *http.Request, companyID int) error {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		return errors.NewAuthenticationError("Authentication required")
	}
	if user.IsSuperuser {
		return nil
	}
	if user.CompanyID == nil || *user.CompanyID != companyID {
		return errors.NewAuthorizationError("Insufficient permissions")
	}
	return nil
}
