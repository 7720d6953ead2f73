package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"testdesk/internal/domain"
	"testdesk/pkg/database"
)

// PgPollRepository persists polls, questions and choices in PostgreSQL
type PgPollRepository struct {
	db *database.PostgresDB
}

// NewPollRepository creates a PostgreSQL-backed poll repository
func NewPollRepository(db *database.PostgresDB) *PgPollRepository {
	return &PgPollRepository{db: db}
}

// Create inserts a poll with its nested questions and choices in one
// transaction.
func (r *PgPollRepository) Create(ctx context.Context, poll *domain.Poll) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO polls (uuid, title, description, poll_cover, status, poll_url, max_participants, active_duration, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query,
		poll.UUID,
		poll.Title,
		poll.Description,
		poll.PollCover,
		poll.Status,
		poll.PollURL,
		poll.MaxParticipants,
		poll.ActiveDuration,
		poll.UserID,
	).Scan(&poll.ID, &poll.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create poll: %w", err)
	}

	for qi := range poll.Questions {
		question := &poll.Questions[qi]
		question.PollID = poll.ID
		if err := insertQuestion(ctx, tx, question); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit poll: %w", err)
	}
	return nil
}

func insertQuestion(ctx context.Context, tx pgx.Tx, question *domain.Question) error {
	query := `
		INSERT INTO questions (poll_id, type, text, question_cover, option_pass, option_other_answer, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := tx.QueryRow(ctx, query,
		question.PollID,
		question.Type,
		question.Text,
		question.QuestionCover,
		question.OptionPass,
		question.OptionOtherAnswer,
		question.SortOrder,
	).Scan(&question.ID)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	for ci := range question.Choices {
		choice := &question.Choices[ci]
		choice.QuestionID = question.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO choices (question_id, text, choice_cover, text_fields_count) VALUES ($1, $2, $3, $4) RETURNING id`,
			choice.QuestionID, choice.Text, choice.ChoiceCover, choice.TextFieldsCount,
		).Scan(&choice.ID)
		if err != nil {
			return fmt.Errorf("failed to create choice: %w", err)
		}
	}
	return nil
}

// GetByID retrieves an owner's poll with questions and choices
func (r *PgPollRepository) GetByID(ctx context.Context, pollID, userID int) (*domain.Poll, error) {
	query := pollSelect + ` WHERE id = $1 AND user_id = $2`
	poll, err := r.scanPoll(r.db.Pool.QueryRow(ctx, query, pollID, userID))
	if err != nil || poll == nil {
		return poll, err
	}
	if err := r.loadQuestions(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

// GetByUUID retrieves a poll by its public identifier
func (r *PgPollRepository) GetByUUID(ctx context.Context, pollUUID uuid.UUID) (*domain.Poll, error) {
	query := pollSelect + ` WHERE uuid = $1`
	poll, err := r.scanPoll(r.db.Pool.QueryRow(ctx, query, pollUUID))
	if err != nil || poll == nil {
		return poll, err
	}
	if err := r.loadQuestions(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

const pollSelect = `
	SELECT id, uuid, created_at, title, description, poll_cover, status, poll_url, max_participants, active_duration, user_id
	FROM polls
`

func (r *PgPollRepository) scanPoll(row pgx.Row) (*domain.Poll, error) {
	var poll domain.Poll
	err := row.Scan(
		&poll.ID,
		&poll.UUID,
		&poll.CreatedAt,
		&poll.Title,
		&poll.Description,
		&poll.PollCover,
		&poll.Status,
		&poll.PollURL,
		&poll.MaxParticipants,
		&poll.ActiveDuration,
		&poll.UserID,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return &poll, nil
}

func (r *PgPollRepository) loadQuestions(ctx context.Context, poll *domain.Poll) error {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, poll_id, type, text, question_cover, option_pass, option_other_answer, sort_order
		FROM questions
		WHERE poll_id = $1
		ORDER BY sort_order, id
	`, poll.ID)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[int]int)
	for rows.Next() {
		var q domain.Question
		err := rows.Scan(&q.ID, &q.PollID, &q.Type, &q.Text, &q.QuestionCover, &q.OptionPass, &q.OptionOtherAnswer, &q.SortOrder)
		if err != nil {
			return fmt.Errorf("failed to scan question: %w", err)
		}
		byID[q.ID] = len(poll.Questions)
		poll.Questions = append(poll.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate questions: %w", err)
	}

	if len(poll.Questions) == 0 {
		return nil
	}

	choiceRows, err := r.db.Pool.Query(ctx, `
		SELECT c.id, c.question_id, c.text, c.choice_cover, c.text_fields_count
		FROM choices c
		JOIN questions q ON q.id = c.question_id
		WHERE q.poll_id = $1
		ORDER BY c.id
	`, poll.ID)
	if err != nil {
		return fmt.Errorf("failed to load choices: %w", err)
	}
	defer choiceRows.Close()

	for choiceRows.Next() {
		var c domain.Choice
		err := choiceRows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.ChoiceCover, &c.TextFieldsCount)
		if err != nil {
			return fmt.Errorf("failed to scan choice: %w", err)
		}
		if qi, ok := byID[c.QuestionID]; ok {
			poll.Questions[qi].Choices = append(poll.Questions[qi].Choices, c)
		}
	}
	return choiceRows.Err()
}

// ListByUser returns one page of a user's polls plus the total count
func (r *PgPollRepository) ListByUser(ctx context.Context, userID int, sortBy, query string, page, pageSize int) ([]domain.Poll, int, error) {
	orderBy := "created_at DESC"
	switch sortBy {
	case "created_at_asc":
		orderBy = "created_at ASC"
	case "created_at_desc":
		orderBy = "created_at DESC"
	case "title":
		orderBy = "title ASC"
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	args := []interface{}{userID}
	where := "WHERE user_id = $1"
	if query != "" {
		where += " AND title ILIKE '%' || $2 || '%'"
		args = append(args, query)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM polls " + where
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count polls: %w", err)
	}

	listQuery := fmt.Sprintf("%s %s ORDER BY %s OFFSET %d LIMIT %d",
		pollSelect, where, orderBy, (page-1)*pageSize, pageSize)
	rows, err := r.db.Pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	polls, err := collectPolls(rows)
	if err != nil {
		return nil, 0, err
	}
	return polls, total, nil
}

// ListByStatus returns all polls in the given status
func (r *PgPollRepository) ListByStatus(ctx context.Context, status domain.PollStatus) ([]domain.Poll, error) {
	rows, err := r.db.Pool.Query(ctx, pollSelect+` WHERE status = $1`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls by status: %w", err)
	}
	defer rows.Close()
	return collectPolls(rows)
}

func collectPolls(rows pgx.Rows) ([]domain.Poll, error) {
	var polls []domain.Poll
	for rows.Next() {
		var poll domain.Poll
		err := rows.Scan(
			&poll.ID,
			&poll.UUID,
			&poll.CreatedAt,
			&poll.Title,
			&poll.Description,
			&poll.PollCover,
			&poll.Status,
			&poll.PollURL,
			&poll.MaxParticipants,
			&poll.ActiveDuration,
			&poll.UserID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, poll)
	}
	return polls, rows.Err()
}

// Update applies metadata changes to an owner's poll
func (r *PgPollRepository) Update(ctx context.Context, poll *domain.Poll) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE polls
		SET title = $1, description = $2, poll_cover = $3, poll_url = $4, max_participants = $5, active_duration = $6
		WHERE id = $7 AND user_id = $8
	`, poll.Title, poll.Description, poll.PollCover, poll.PollURL, poll.MaxParticipants, poll.ActiveDuration, poll.ID, poll.UserID)
	if err != nil {
		return fmt.Errorf("failed to update poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus sets the poll status
func (r *PgPollRepository) UpdateStatus(ctx context.Context, pollID int, status domain.PollStatus) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE polls SET status = $1 WHERE id = $2`, status, pollID)
	if err != nil {
		return fmt.Errorf("failed to update poll status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ReplaceQuestions swaps the full question/choice tree of a poll. Draft-only
// enforcement happens in the service.
func (r *PgPollRepository) ReplaceQuestions(ctx context.Context, pollID int, questions []domain.CreateQuestionRequest) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE poll_id = $1`, pollID); err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}

	for _, req := range questions {
		question := domain.Question{
			PollID:            pollID,
			Type:              req.Type,
			Text:              req.Text,
			QuestionCover:     req.QuestionCover,
			OptionPass:        req.OptionPass,
			OptionOtherAnswer: req.OptionOtherAnswer,
			SortOrder:         req.SortOrder,
		}
		for _, c := range req.Choices {
			question.Choices = append(question.Choices, domain.Choice{
				Text:            c.Text,
				ChoiceCover:     c.ChoiceCover,
				TextFieldsCount: c.TextFieldsCount,
			})
		}
		if err := insertQuestion(ctx, tx, &question); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit questions: %w", err)
	}
	return nil
}

// Delete removes an owner's poll; questions, choices and responses go with
// it via ON DELETE CASCADE.
func (r *PgPollRepository) Delete(ctx context.Context, pollID, userID int) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM polls WHERE id = $1 AND user_id = $2`, pollID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
