package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"testdesk/internal/domain"
	"testdesk/pkg/database"
)

// PgUserRepository persists users in PostgreSQL
type PgUserRepository struct {
	db *database.PostgresDB
}

// NewUserRepository creates a PostgreSQL-backed user repository
func NewUserRepository(db *database.PostgresDB) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userSelect = `
	SELECT id, full_name, email, hashed_password, is_active, is_superuser, roles, company_id
	FROM users
`

// GetByID retrieves a user by ID
func (r *PgUserRepository) GetByID(ctx context.Context, id int) (*domain.User, error) {
	return r.scanUser(r.db.Pool.QueryRow(ctx, userSelect+` WHERE id = $1`, id))
}

// GetByEmail retrieves a user by email
func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(r.db.Pool.QueryRow(ctx, userSelect+` WHERE email = $1`, email))
}

func (r *PgUserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.HashedPassword,
		&user.IsActive,
		&user.IsSuperuser,
		&user.Roles,
		&user.CompanyID,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Create creates a new user
func (r *PgUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO users (full_name, email, hashed_password, is_active, is_superuser, roles, company_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, user.FullName, user.Email, user.HashedPassword, user.IsActive, user.IsSuperuser, user.Roles, user.CompanyID).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// List returns users, optionally restricted to one company
func (r *PgUserRepository) List(ctx context.Context, companyID *int) ([]domain.User, error) {
	query := userSelect + ` ORDER BY id`
	args := []interface{}{}
	if companyID != nil {
		query = userSelect + ` WHERE company_id = $1 ORDER BY id`
		args = append(args, *companyID)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		err := rows.Scan(
			&user.ID,
			&user.FullName,
			&user.Email,
			&user.HashedPassword,
			&user.IsActive,
			&user.IsSuperuser,
			&user.Roles,
			&user.CompanyID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
