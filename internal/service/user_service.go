package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"testdesk/internal/domain"
	"testdesk/internal/repository"
	apperrors "testdesk/pkg/errors"
	"testdesk/pkg/logger"
	"testdesk/pkg/mailer"
)

// UserService completes invitations into user accounts
type UserService struct {
	userRepo       repository.UserRepository
	invitationRepo repository.InvitationRepository
	mailer         *mailer.Mailer
	logger         *logger.Logger
	now            func() time.Time
}

// NewUserService creates a new user service
func NewUserService(
	userRepo repository.UserRepository,
	invitationRepo repository.InvitationRepository,
	m *mailer.Mailer,
	log *logger.Logger,
) *UserService {
	return &UserService{
		userRepo:       userRepo,
		invitationRepo: invitationRepo,
		mailer:         m,
		logger:         log,
		now:            time.Now,
	}
}

// Register consumes an invitation and creates the invited user
func (s *UserService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	if strings.TrimSpace(req.FullName) == "" {
		return nil, apperrors.NewValidationError("Full name is required", nil)
	}
	if len(req.Password) < 8 {
		return nil, apperrors.NewValidationError("Password must be at least 8 characters", nil)
	}

	invitation, err := s.invitationRepo.GetByToken(ctx, req.InvitationToken)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up invitation")
		return nil, apperrors.NewInternalError("Failed to register", err)
	}
	if invitation == nil {
		return nil, apperrors.NewNotFoundError("Invitation not found")
	}
	if !s.now().Before(invitation.ExpiresAt) {
		return nil, apperrors.NewConflictError("Invitation has expired")
	}

	existing, err := s.userRepo.GetByEmail(ctx, invitation.Email)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up user")
		return nil, apperrors.NewInternalError("Failed to register", err)
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("A user with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to register", err)
	}

	user := &domain.User{
		FullName:       req.FullName,
		Email:          invitation.Email,
		HashedPassword: string(hash),
		IsActive:       true,
		Roles:          invitation.Roles,
		CompanyID:      &invitation.CompanyID,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.WithError(err).Error("Failed to create user")
		return nil, apperrors.NewInternalError("Failed to register", err)
	}

	if err := s.invitationRepo.Delete(ctx, invitation.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to delete consumed invitation")
	}

	if err := s.mailer.Send(user.Email, "Welcome", "Your account is ready. You can now sign in."); err != nil {
		s.logger.WithError(err).Warn("Failed to send welcome email")
	}

	s.logger.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// List returns users, optionally scoped to one company
func (s *UserService) List(ctx context.Context, companyID *int) ([]domain.User, error) {
	users, err := s.userRepo.List(ctx, companyID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list users")
		return nil, apperrors.NewInternalError("Failed to list users", err)
	}
	return users, nil
}
