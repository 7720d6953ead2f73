package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"testdesk/internal/domain"
	"testdesk/internal/repository"
	apperrors "testdesk/pkg/errors"
	"testdesk/pkg/logger"
	"testdesk/pkg/mailer"
)

// CompanyService manages tenants and the invitations that bring users into
// them.
type CompanyService struct {
	companyRepo    repository.CompanyRepository
	invitationRepo repository.InvitationRepository
	userRepo       repository.UserRepository
	mailer         *mailer.Mailer
	invitationTTL  time.Duration
	publicBaseURL  string
	logger         *logger.Logger
	now            func() time.Time
}

// NewCompanyService creates a new company service
func NewCompanyService(
	companyRepo repository.CompanyRepository,
	invitationRepo repository.InvitationRepository,
	userRepo repository.UserRepository,
	m *mailer.Mailer,
	invitationTTL time.Duration,
	publicBaseURL string,
	log *logger.Logger,
) *CompanyService {
	return &CompanyService{
		companyRepo:    companyRepo,
		invitationRepo: invitationRepo,
		userRepo:       userRepo,
		mailer:         m,
		invitationTTL:  invitationTTL,
		publicBaseURL:  publicBaseURL,
		logger:         log,
		now:            time.Now,
	}
}

// Create registers a tenant and invites its administrator
func (s *CompanyService) Create(ctx context.Context, req *domain.CreateCompanyRequest) (*domain.Company, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.NewValidationError("Company name is required", nil)
	}
	adminEmail := strings.ToLower(strings.TrimSpace(req.AdminEmail))
	if adminEmail == "" {
		return nil, apperrors.NewValidationError("Admin email is required", nil)
	}
	if req.Licenses < 1 {
		return nil, apperrors.NewValidationError("Company needs at least one license", nil)
	}

	company := &domain.Company{
		Name:          req.Name,
		FullName:      req.FullName,
		INN:           req.INN,
		LegalAddress:  req.LegalAddress,
		ActualAddress: req.ActualAddress,
		Phone:         req.Phone,
		DirectorName:  req.DirectorName,
		AdminEmail:    adminEmail,
		Licenses:      req.Licenses,
	}
	if err := s.companyRepo.Create(ctx, company); err != nil {
		s.logger.WithError(err).Error("Failed to create company")
		return nil, apperrors.NewInternalError("Failed to create company", err)
	}

	if _, err := s.Invite(ctx, company.ID, &domain.CreateInvitationRequest{
		Email: adminEmail,
		Roles: domain.RoleAdmin,
	}); err != nil {
		s.logger.WithError(err).Error("Failed to invite company administrator")
		return nil, err
	}

	s.logger.WithField("company_id", company.ID).Info("Company created")
	return company, nil
}

// Get returns one company
func (s *CompanyService) Get(ctx context.Context, id int) (*domain.Company, error) {
	company, err := s.companyRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load company")
		return nil, apperrors.NewInternalError("Failed to load company", err)
	}
	if company == nil {
		return nil, apperrors.NewNotFoundError("Company not found")
	}
	return company, nil
}

// List returns all companies
func (s *CompanyService) List(ctx context.Context) ([]domain.Company, error) {
	companies, err := s.companyRepo.List(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list companies")
		return nil, apperrors.NewInternalError("Failed to list companies", err)
	}
	return companies, nil
}

// Update stores changed company fields
func (s *CompanyService) Update(ctx context.Context, company *domain.Company) (*domain.Company, error) {
	if _, err := s.Get(ctx, company.ID); err != nil {
		return nil, err
	}
	if err := s.companyRepo.Update(ctx, company); err != nil {
		s.logger.WithError(err).Error("Failed to update company")
		return nil, apperrors.NewInternalError("Failed to update company", err)
	}
	return s.Get(ctx, company.ID)
}

// Delete removes a company
func (s *CompanyService) Delete(ctx context.Context, id int) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.companyRepo.Delete(ctx, id); err != nil {
		s.logger.WithError(err).Error("Failed to delete company")
		return apperrors.NewInternalError("Failed to delete company", err)
	}
	return nil
}

// Invite creates an invitation into the company and mails the join link.
// Every occupied license blocks a further seat.
func (s *CompanyService) Invite(ctx context.Context, companyID int, req *domain.CreateInvitationRequest) (*domain.Invitation, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, apperrors.NewValidationError("Email is required", nil)
	}
	roles := req.Roles
	if roles == "" {
		roles = domain.RoleUser
	}

	company, err := s.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up invited email")
		return nil, apperrors.NewInternalError("Failed to create invitation", err)
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("A user with this email already exists")
	}

	users, err := s.userRepo.List(ctx, &companyID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to count company users")
		return nil, apperrors.NewInternalError("Failed to create invitation", err)
	}
	if len(users) >= company.Licenses {
		return nil, apperrors.NewConflictError("Company has no licenses left")
	}

	now := s.now()
	invitation := &domain.Invitation{
		Email:     email,
		CompanyID: companyID,
		Roles:     roles,
		Token:     uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.invitationTTL),
	}
	if err := s.invitationRepo.Create(ctx, invitation); err != nil {
		s.logger.WithError(err).Error("Failed to create invitation")
		return nil, apperrors.NewInternalError("Failed to create invitation", err)
	}

	link := fmt.Sprintf("%s/register?invitation_token=%s", strings.TrimRight(s.publicBaseURL, "/"), invitation.Token)
	body := fmt.Sprintf("You have been invited to join %s. Complete your registration here: %s", company.Name, link)
	if err := s.mailer.Send(email, "Your invitation", body); err != nil {
		s.logger.WithError(err).Warn("Failed to send invitation email")
	}

	s.logger.WithFields(map[string]interface{}{
		"company_id": companyID,
		"email":      email,
	}).Info("Invitation created")
	return invitation, nil
}

// Invitations lists the pending invitations of a company
func (s *CompanyService) Invitations(ctx context.Context, companyID int) ([]domain.Invitation, error) {
	if _, err := s.Get(ctx, companyID); err != nil {
		return nil, err
	}
	invitations, err := s.invitationRepo.ListByCompany(ctx, companyID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list invitations")
		return nil, apperrors.NewInternalError("Failed to list invitations", err)
	}
	return invitations, nil
}

// Revoke deletes a pending invitation. The invitation must belong to the
// given company.
func (s *CompanyService) Revoke(ctx context.Context, companyID, invitationID int) error {
	invitation, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load invitation")
		return apperrors.NewInternalError("Failed to revoke invitation", err)
	}
	if invitation == nil || invitation.CompanyID != companyID {
		return apperrors.NewNotFoundError("Invitation not found")
	}

	if err := s.invitationRepo.Delete(ctx, invitationID); err != nil {
		s.logger.WithError(err).Error("Failed to revoke invitation")
		return apperrors.NewInternalError("Failed to revoke invitation", err)
	}
	return nil
}
