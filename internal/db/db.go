// Package db provides PostgreSQL storage for captured form submissions.
package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id          UUID PRIMARY KEY,
	form_name   TEXT NOT NULL DEFAULT '',
	remote_addr TEXT NOT NULL DEFAULT '',
	fields      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS submissions_created_at_idx ON submissions (created_at DESC);
`

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the submissions table if it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Save stores a submission, assigning its ID when unset
func (db *DB) Save(ctx context.Context, s *Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO submissions (id, form_name, remote_addr, fields)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		s.ID, s.FormName, s.RemoteAddr, fields,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// Get retrieves a submission by ID, or nil when it does not exist
func (db *DB) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var s Submission
	var fields []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, form_name, remote_addr, fields, created_at
		 FROM submissions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.FormName, &s.RemoteAddr, &fields, &s.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if err := json.Unmarshal(fields, &s.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	return &s, nil
}

// List retrieves the most recent submissions, newest first
func (db *DB) List(ctx context.Context, limit int) ([]Submission, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, form_name, remote_addr, fields, created_at
		 FROM submissions ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		var s Submission
		var fields []byte
		if err := rows.Scan(&s.ID, &s.FormName, &s.RemoteAddr, &fields, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		if err := json.Unmarshal(fields, &s.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}
