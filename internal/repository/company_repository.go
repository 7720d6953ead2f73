package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"testdesk/internal/domain"
	"testdesk/pkg/database"
)

// PgCompanyRepository persists companies in PostgreSQL
type PgCompanyRepository struct {
	db *database.PostgresDB
}

// NewCompanyRepository creates a PostgreSQL-backed company repository
func NewCompanyRepository(db *database.PostgresDB) *PgCompanyRepository {
	return &PgCompanyRepository{db: db}
}

const companySelect = `
	SELECT id, name, full_name, inn, legal_address, actual_address, phone, director_name,
	       admin_email, licenses, subscription_start, subscription_end, subscription_active
	FROM companies
`

// Create creates a new company
func (r *PgCompanyRepository) Create(ctx context.Context, company *domain.Company) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO companies (name, full_name, inn, legal_address, actual_address, phone, director_name,
		                       admin_email, licenses, subscription_start, subscription_end, subscription_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`,
		company.Name,
		company.FullName,
		company.INN,
		company.LegalAddress,
		company.ActualAddress,
		company.Phone,
		company.DirectorName,
		company.AdminEmail,
		company.Licenses,
		company.SubscriptionStart,
		company.SubscriptionEnd,
		company.SubscriptionActive,
	).Scan(&company.ID)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetByID retrieves a company by ID
func (r *PgCompanyRepository) GetByID(ctx context.Context, id int) (*domain.Company, error) {
	var company domain.Company
	err := r.db.Pool.QueryRow(ctx, companySelect+` WHERE id = $1`, id).Scan(
		&company.ID,
		&company.Name,
		&company.FullName,
		&company.INN,
		&company.LegalAddress,
		&company.ActualAddress,
		&company.Phone,
		&company.DirectorName,
		&company.AdminEmail,
		&company.Licenses,
		&company.SubscriptionStart,
		&company.SubscriptionEnd,
		&company.SubscriptionActive,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

// List returns all companies
func (r *PgCompanyRepository) List(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.db.Pool.Query(ctx, companySelect+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []domain.Company
	for rows.Next() {
		var company domain.Company
		err := rows.Scan(
			&company.ID,
			&company.Name,
			&company.FullName,
			&company.INN,
			&company.LegalAddress,
			&company.ActualAddress,
			&company.Phone,
			&company.DirectorName,
			&company.AdminEmail,
			&company.Licenses,
			&company.SubscriptionStart,
			&company.SubscriptionEnd,
			&company.SubscriptionActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

// Update updates an existing company
func (r *PgCompanyRepository) Update(ctx context.Context, company *domain.Company) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE companies
		SET name = $1, full_name = $2, inn = $3, legal_address = $4, actual_address = $5, phone = $6,
		    director_name = $7, admin_email = $8, licenses = $9, subscription_start = $10,
		    subscription_end = $11, subscription_active = $12
		WHERE id = $13
	`,
		company.Name,
		company.FullName,
		company.INN,
		company.LegalAddress,
		company.ActualAddress,
		company.Phone,
		company.DirectorName,
		company.AdminEmail,
		company.Licenses,
		company.SubscriptionStart,
		company.SubscriptionEnd,
		company.SubscriptionActive,
		company.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a company
func (r *PgCompanyRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
