package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [up|drop|seed]")
		os.Exit(1)
	}
	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Usage: go run main.go [up|drop|seed]")
		os.Exit(1)
	}
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			full_name VARCHAR(512) NOT NULL DEFAULT '',
			inn VARCHAR(32) NOT NULL DEFAULT '',
			legal_address TEXT NOT NULL DEFAULT '',
			actual_address TEXT NOT NULL DEFAULT '',
			phone VARCHAR(64) NOT NULL DEFAULT '',
			director_name VARCHAR(255) NOT NULL DEFAULT '',
			admin_email VARCHAR(255) NOT NULL,
			licenses INTEGER NOT NULL DEFAULT 1,
			subscription_start TIMESTAMPTZ,
			subscription_end TIMESTAMPTZ,
			subscription_active BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			full_name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			hashed_password VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			roles VARCHAR(255) NOT NULL DEFAULT 'user',
			company_id INTEGER REFERENCES companies(id) ON DELETE SET NULL
		)`,

		`CREATE TABLE IF NOT EXISTS invitations (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			roles VARCHAR(255) NOT NULL DEFAULT 'user',
			token VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS polls (
			id SERIAL PRIMARY KEY,
			uuid UUID NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			title VARCHAR(512) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			poll_cover TEXT,
			status VARCHAR(16) NOT NULL DEFAULT 'DRAFT',
			poll_url TEXT,
			max_participants INTEGER,
			active_duration INTEGER,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_polls_user_id ON polls(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_polls_status ON polls(status)`,

		`CREATE TABLE IF NOT EXISTS questions (
			id SERIAL PRIMARY KEY,
			poll_id INTEGER NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			type VARCHAR(32) NOT NULL,
			text TEXT NOT NULL,
			question_cover TEXT,
			option_pass BOOLEAN NOT NULL DEFAULT FALSE,
			option_other_answer BOOLEAN NOT NULL DEFAULT FALSE,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_poll_id ON questions(poll_id)`,

		`CREATE TABLE IF NOT EXISTS choices (
			id SERIAL PRIMARY KEY,
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			choice_cover TEXT,
			text_fields_count INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_choices_question_id ON choices(question_id)`,

		`CREATE TABLE IF NOT EXISTS responses (
			id SERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			poll_id INTEGER NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			answer_choice INTEGER[],
			answer_text TEXT[],
			session_token TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_poll_id ON responses(poll_id)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_session_token ON responses(session_token)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS responses CASCADE`,
		`DROP TABLE IF EXISTS choices CASCADE`,
		`DROP TABLE IF EXISTS questions CASCADE`,
		`DROP TABLE IF EXISTS polls CASCADE`,
		`DROP TABLE IF EXISTS invitations CASCADE`,
		`DROP TABLE IF EXISTS users CASCADE`,
		`DROP TABLE IF EXISTS companies CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}
	return nil
}

// seedData creates the initial superuser. Email and password come from
// FIRST_SUPERUSER / FIRST_SUPERUSER_PASSWORD.
func seedData(ctx context.Context, conn *pgx.Conn) error {
	email := os.Getenv("FIRST_SUPERUSER")
	password := os.Getenv("FIRST_SUPERUSER_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("FIRST_SUPERUSER and FIRST_SUPERUSER_PASSWORD must be set")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash superuser password: %w", err)
	}

	_, err = conn.Exec(ctx, `
		INSERT INTO users (full_name, email, hashed_password, is_active, is_superuser, roles)
		VALUES ('Superuser', $1, $2, TRUE, TRUE, 'superadmin')
		ON CONFLICT (email) DO NOTHING
	`, email, string(hash))
	if err != nil {
		return fmt.Errorf("failed to seed superuser: %w", err)
	}
	return nil
}
