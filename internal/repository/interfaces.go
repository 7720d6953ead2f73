package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"testdesk/internal/domain"
)

// PollRepository defines the interface for poll data operations
type PollRepository interface {
	// Create inserts a poll with its nested questions and choices
	Create(ctx context.Context, poll *domain.Poll) error

	// GetByID retrieves an owner's poll with questions and choices
	GetByID(ctx context.Context, pollID, userID int) (*domain.Poll, error)

	// GetByUUID retrieves a poll by its public identifier, with questions
	// and choices, regardless of owner
	GetByUUID(ctx context.Context, pollUUID uuid.UUID) (*domain.Poll, error)

	// ListByUser returns one page of a user's polls plus the total count
	ListByUser(ctx context.Context, userID int, sortBy, query string, page, pageSize int) ([]domain.Poll, int, error)

	// ListByStatus returns all polls in the given status (sweeper scan)
	ListByStatus(ctx context.Context, status domain.PollStatus) ([]domain.Poll, error)

	// Update applies metadata changes to an owner's poll
	Update(ctx context.Context, poll *domain.Poll) error

	// UpdateStatus sets the poll status
	UpdateStatus(ctx context.Context, pollID int, status domain.PollStatus) error

	// ReplaceQuestions swaps the full question/choice tree of a draft poll
	ReplaceQuestions(ctx context.Context, pollID int, questions []domain.CreateQuestionRequest) error

	// Delete removes an owner's poll and everything under it
	Delete(ctx context.Context, pollID, userID int) error
}

// ResponseRepository defines the interface for response data operations
type ResponseRepository interface {
	// CreateBatch persists all answers of one submission atomically
	CreateBatch(ctx context.Context, responses []domain.Response) ([]domain.Response, error)

	// ListByPoll returns every response recorded for a poll
	ListByPoll(ctx context.Context, pollID int) ([]domain.Response, error)

	// DeleteByPoll purges all responses of a poll (revert to draft)
	DeleteByPoll(ctx context.Context, pollID int) error
}

// SessionStore is the document store holding ephemeral participation
// sessions, keyed by bearer token.
type SessionStore interface {
	// Insert stores a new session document
	Insert(ctx context.Context, session *domain.Session) error

	// FindByToken returns the session for a token, or nil when absent
	FindByToken(ctx context.Context, token string) (*domain.Session, error)

	// MarkExpired sets expired=true; idempotent
	MarkExpired(ctx context.Context, token string) error

	// MarkAnswered flips answered false->true as one conditional store-side
	// write and returns the poll's new answered count. A session that is
	// already answered yields ErrAlreadyAnswered; one the sweeper flagged
	// yields ErrSessionExpired.
	MarkAnswered(ctx context.Context, token, pollUUID string) (int, error)

	// UnmarkAnswered reverts MarkAnswered when persisting the submission
	// failed after the flag was taken, so the respondent can retry
	UnmarkAnswered(ctx context.Context, token, pollUUID string) error

	// CountByPoll returns how many sessions were ever issued for the poll
	CountByPoll(ctx context.Context, pollUUID string) (int, error)

	// ListByPoll returns all session documents of a poll (sweeper scan)
	ListByPoll(ctx context.Context, pollUUID string) ([]domain.Session, error)

	// PurgeByPoll deletes every session of a poll (admin end / revert)
	PurgeByPoll(ctx context.Context, pollUUID string) error

	// ReserveActive takes the poll+fingerprint reservation; false when an
	// earlier live session already holds it
	ReserveActive(ctx context.Context, pollUUID, fingerprint string, ttl time.Duration) (bool, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	GetByID(ctx context.Context, id int) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	List(ctx context.Context, companyID *int) ([]domain.User, error)
}

// CompanyRepository defines the interface for company data operations
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	GetByID(ctx context.Context, id int) (*domain.Company, error)
	List(ctx context.Context) ([]domain.Company, error)
	Update(ctx context.Context, company *domain.Company) error
	Delete(ctx context.Context, id int) error
}

// InvitationRepository defines the interface for invitation data operations
type InvitationRepository interface {
	Create(ctx context.Context, invitation *domain.Invitation) error
	GetByID(ctx context.Context, id int) (*domain.Invitation, error)
	GetByToken(ctx context.Context, token string) (*domain.Invitation, error)
	ListByCompany(ctx context.Context, companyID int) ([]domain.Invitation, error)
	Delete(ctx context.Context, id int) error

	// DeleteExpired removes all invitations past their expiry, returning the
	// number of rows deleted (sweeper duty)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
