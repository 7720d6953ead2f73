package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"testdesk/internal/domain"
	"testdesk/internal/repository"
	"testdesk/pkg/errors"
	"testdesk/pkg/logger"
	"testdesk/pkg/token"
)

// Service handles credential verification and token issuance
type Service struct {
	userRepo repository.UserRepository
	codec    *token.Codec
	logger   *logger.Logger
}

// NewService creates a new authentication service
func NewService(userRepo repository.UserRepository, codec *token.Codec, log *logger.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		codec:    codec,
		logger:   log,
	}
}

// Login verifies the email/password pair and returns a fresh token pair
func (s *Service) Login(ctx context.Context, req *domain.LoginRequest) (*domain.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, errors.NewValidationError("Email and password are required", nil)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up user by email")
		return nil, errors.NewInternalError("Failed to authenticate", err)
	}
	if user == nil {
		return nil, errors.NewAuthenticationError("Incorrect email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return nil, errors.NewAuthenticationError("Incorrect email or password")
	}

	if !user.IsActive {
		return nil, errors.NewAuthorizationError("User account is disabled")
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new access/refresh pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.codec.ValidateUserToken(refreshToken, token.SubjectRefresh)
	if err != nil {
		return nil, errors.NewAuthenticationError("Could not validate credentials")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up user for refresh")
		return nil, errors.NewInternalError("Failed to refresh token", err)
	}
	if user == nil || !user.IsActive {
		return nil, errors.NewAuthenticationError("Could not validate credentials")
	}

	return s.issuePair(user)
}

// ValidateAccessToken resolves the active user behind an access token
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.codec.ValidateUserToken(accessToken, token.SubjectAccess)
	if err != nil {
		return nil, errors.NewAuthenticationError("Could not validate credentials")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up user for access token")
		return nil, errors.NewInternalError("Failed to validate token", err)
	}
	if user == nil {
		return nil, errors.NewAuthenticationError("User not found")
	}
	if !user.IsActive {
		return nil, errors.NewAuthorizationError("User account is disabled")
	}

	return user, nil
}

func (s *Service) issuePair(user *domain.User) (*domain.TokenPair, error) {
	access, err := s.codec.GenerateAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, errors.NewInternalError("Failed to issue access token", err)
	}
	refresh, err := s.codec.GenerateRefreshToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, errors.NewInternalError("Failed to issue refresh token", err)
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}
