package domain

import "time"

// Invitation is a pending, expiring offer to join a company. Expired rows
// are deleted outright by the sweeper.
type Invitation struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	CompanyID int       `json:"company_id"`
	Roles     string    `json:"roles"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateInvitationRequest invites one email address into a company
type CreateInvitationRequest struct {
	Email string `json:"email"`
	Roles string `json:"roles"`
}
