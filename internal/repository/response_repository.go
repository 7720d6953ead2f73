package repository

import (
	"context"
	"fmt"

	"testdesk/internal/domain"
	"testdesk/pkg/database"
)

// PgResponseRepository persists anonymous poll responses in PostgreSQL
type PgResponseRepository struct {
	db *database.PostgresDB
}

// NewResponseRepository creates a PostgreSQL-backed response repository
func NewResponseRepository(db *database.PostgresDB) *PgResponseRepository {
	return &PgResponseRepository{db: db}
}

// CreateBatch persists all answers of one submission in a single
// transaction: either every row lands or none does.
func (r *PgResponseRepository) CreateBatch(ctx context.Context, responses []domain.Response) ([]domain.Response, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO responses (poll_id, question_id, answer_choice, answer_text, session_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	for i := range responses {
		resp := &responses[i]
		err := tx.QueryRow(ctx, query,
			resp.PollID,
			resp.QuestionID,
			resp.AnswerChoice,
			resp.AnswerText,
			resp.SessionToken,
		).Scan(&resp.ID, &resp.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create response: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit responses: %w", err)
	}
	return responses, nil
}

// ListByPoll returns every response recorded for a poll
func (r *PgResponseRepository) ListByPoll(ctx context.Context, pollID int) ([]domain.Response, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, created_at, poll_id, question_id, answer_choice, answer_text, session_token
		FROM responses
		WHERE poll_id = $1
		ORDER BY created_at, id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var responses []domain.Response
	for rows.Next() {
		var resp domain.Response
		err := rows.Scan(
			&resp.ID,
			&resp.CreatedAt,
			&resp.PollID,
			&resp.QuestionID,
			&resp.AnswerChoice,
			&resp.AnswerText,
			&resp.SessionToken,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// DeleteByPoll purges all responses of a poll
func (r *PgResponseRepository) DeleteByPoll(ctx context.Context, pollID int) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM responses WHERE poll_id = $1`, pollID); err != nil {
		return fmt.Errorf("failed to delete responses: %w", err)
	}
	return nil
}
