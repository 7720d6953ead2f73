package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"testdesk/internal/domain"
	"testdesk/pkg/database"
)

// PgInvitationRepository persists company invitations in PostgreSQL
type PgInvitationRepository struct {
	db *database.PostgresDB
}

// NewInvitationRepository creates a PostgreSQL-backed invitation repository
func NewInvitationRepository(db *database.PostgresDB) *PgInvitationRepository {
	return &PgInvitationRepository{db: db}
}

// Create creates a new invitation
func (r *PgInvitationRepository) Create(ctx context.Context, invitation *domain.Invitation) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO invitations (email, company_id, roles, token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`,
		invitation.Email,
		invitation.CompanyID,
		invitation.Roles,
		invitation.Token,
		invitation.ExpiresAt,
	).Scan(&invitation.ID, &invitation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetByID retrieves an invitation by its id
func (r *PgInvitationRepository) GetByID(ctx context.Context, id int) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, email, company_id, roles, token, created_at, expires_at
		FROM invitations
		WHERE id = $1
	`, id).Scan(
		&invitation.ID,
		&invitation.Email,
		&invitation.CompanyID,
		&invitation.Roles,
		&invitation.Token,
		&invitation.CreatedAt,
		&invitation.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &invitation, nil
}

// GetByToken retrieves an invitation by its token
func (r *PgInvitationRepository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, email, company_id, roles, token, created_at, expires_at
		FROM invitations
		WHERE token = $1
	`, token).Scan(
		&invitation.ID,
		&invitation.Email,
		&invitation.CompanyID,
		&invitation.Roles,
		&invitation.Token,
		&invitation.CreatedAt,
		&invitation.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &invitation, nil
}

// ListByCompany returns all pending invitations for a company
func (r *PgInvitationRepository) ListByCompany(ctx context.Context, companyID int) ([]domain.Invitation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, email, company_id, roles, token, created_at, expires_at
		FROM invitations
		WHERE company_id = $1
		ORDER BY created_at DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []domain.Invitation
	for rows.Next() {
		var invitation domain.Invitation
		err := rows.Scan(
			&invitation.ID,
			&invitation.Email,
			&invitation.CompanyID,
			&invitation.Roles,
			&invitation.Token,
			&invitation.CreatedAt,
			&invitation.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, invitation)
	}
	return invitations, rows.Err()
}

// Delete removes an invitation
func (r *PgInvitationRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteExpired removes all invitations past their expiry
func (r *PgInvitationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM invitations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}
