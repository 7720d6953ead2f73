package service

import (
	"context"

	"testdesk/internal/domain"
)

// AuthService defines the interface for authentication operations
type AuthService interface {
	// Login verifies credentials and issues an access/refresh token pair
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.TokenPair, error)

	// Refresh exchanges a valid refresh token for a new pair
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)

	// ValidateAccessToken resolves the active user behind an access token
	ValidateAccessToken(ctx context.Context, token string) (*domain.User, error)
}

// Sweeper defines the lifecycle of the background expiry job
type Sweeper interface {
	// Start begins the periodic sweeps
	Start(ctx context.Context) error

	// Stop gracefully shuts the sweeps down
	Stop(ctx context.Context) error
}
