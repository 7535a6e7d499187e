package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS manuscripts (
	id TEXT PRIMARY KEY,
	system_id TEXT UNIQUE,
	submission_id TEXT,
	custom_id TEXT,
	title TEXT NOT NULL,
	abstract TEXT NOT NULL DEFAULT '',
	authors JSONB NOT NULL DEFAULT '[]'::jsonb,
	journal TEXT NOT NULL DEFAULT '',
	article_type TEXT NOT NULL DEFAULT '',
	submission_date TIMESTAMPTZ,
	status TEXT NOT NULL,
	keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_manuscripts_custom_id ON manuscripts(custom_id);
CREATE INDEX IF NOT EXISTS idx_manuscripts_submission_id ON manuscripts(submission_id);

CREATE TABLE IF NOT EXISTS potential_reviewers (
	id TEXT PRIMARY KEY,
	external_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	affiliation TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	orcid_id TEXT NOT NULL DEFAULT '',
	expertise_areas JSONB NOT NULL DEFAULT '[]'::jsonb,
	current_review_load INTEGER NOT NULL DEFAULT 0,
	max_review_capacity INTEGER NOT NULL DEFAULT 0,
	availability_status TEXT NOT NULL DEFAULT 'available',
	response_rate INTEGER NOT NULL DEFAULT 0,
	quality_score INTEGER NOT NULL DEFAULT 0,
	h_index INTEGER,
	total_invitations INTEGER NOT NULL DEFAULT 0,
	total_acceptances INTEGER NOT NULL DEFAULT 0,
	last_review_completed TIMESTAMPTZ,
	conflicts_of_interest JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reviewer_manuscript_matches (
	id TEXT PRIMARY KEY,
	manuscript_id TEXT NOT NULL REFERENCES manuscripts(id),
	reviewer_id TEXT NOT NULL REFERENCES potential_reviewers(id),
	match_score INTEGER NOT NULL,
	is_initial_suggestion BOOLEAN NOT NULL DEFAULT FALSE,
	conflicts_of_interest JSONB NOT NULL DEFAULT '[]'::jsonb,
	calculated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (manuscript_id, reviewer_id)
);

CREATE TABLE IF NOT EXISTS reviewer_publications (
	id TEXT PRIMARY KEY,
	reviewer_id TEXT NOT NULL REFERENCES potential_reviewers(id),
	dedupe_key TEXT NOT NULL,
	title TEXT NOT NULL,
	doi TEXT,
	journal_name TEXT NOT NULL DEFAULT '',
	authors JSONB NOT NULL DEFAULT '[]'::jsonb,
	publication_date TIMESTAMPTZ,
	is_related BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (reviewer_id, dedupe_key)
);

CREATE TABLE IF NOT EXISTS reviewer_retractions (
	id TEXT PRIMARY KEY,
	reviewer_id TEXT NOT NULL UNIQUE REFERENCES potential_reviewers(id),
	retraction_reasons JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS review_invitations (
	id TEXT PRIMARY KEY,
	manuscript_id TEXT NOT NULL REFERENCES manuscripts(id),
	reviewer_id TEXT NOT NULL REFERENCES potential_reviewers(id),
	invited_date TIMESTAMPTZ NOT NULL,
	due_date TIMESTAMPTZ,
	invitation_expiration_date TIMESTAMPTZ,
	status TEXT NOT NULL,
	response_date TIMESTAMPTZ,
	queue_position INTEGER,
	invitation_round INTEGER NOT NULL DEFAULT 1 CHECK (invitation_round >= 1),
	reminder_count INTEGER NOT NULL DEFAULT 0 CHECK (reminder_count >= 0),
	notes TEXT NOT NULL DEFAULT '',
	report_invalidated_date TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_review_invitations_active
	ON review_invitations(manuscript_id, reviewer_id)
	WHERE status IN ('pending', 'accepted', 'overdue');
CREATE INDEX IF NOT EXISTS idx_review_invitations_manuscript ON review_invitations(manuscript_id);
CREATE INDEX IF NOT EXISTS idx_review_invitations_status ON review_invitations(status);

CREATE TABLE IF NOT EXISTS invitation_queue (
	id TEXT PRIMARY KEY,
	manuscript_id TEXT NOT NULL REFERENCES manuscripts(id),
	reviewer_id TEXT NOT NULL REFERENCES potential_reviewers(id),
	queue_position INTEGER NOT NULL CHECK (queue_position >= 1),
	created_date TIMESTAMPTZ NOT NULL,
	scheduled_send_date TIMESTAMPTZ NOT NULL,
	priority TEXT NOT NULL DEFAULT 'normal',
	notes TEXT NOT NULL DEFAULT '',
	UNIQUE (manuscript_id, reviewer_id),
	CONSTRAINT uq_invitation_queue_position UNIQUE (manuscript_id, queue_position) DEFERRABLE INITIALLY DEFERRED
);

CREATE INDEX IF NOT EXISTS idx_invitation_queue_scheduled ON invitation_queue(scheduled_send_date);

CREATE TABLE IF NOT EXISTS user_manuscripts (
	user_id TEXT NOT NULL,
	manuscript_id TEXT NOT NULL REFERENCES manuscripts(id),
	role TEXT NOT NULL DEFAULT 'editor',
	PRIMARY KEY (user_id, manuscript_id)
);
`

// EnsureSchema creates the tables and indexes this service relies on. It is
// safe to call from every process at startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2024060101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// mapWriteError turns constraint violations into domain error kinds.
func mapWriteError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.WrapError(domain.ErrConflict, operation, err)
		case pgForeignKeyViolation:
			return domain.WrapError(domain.ErrInvalidInput, operation, err)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func notFound(operation, format string, args ...any) error {
	return domain.NewError(domain.ErrNotFound, operation, format, args...)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func marshalStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return raw, nil
}

func unmarshalStrings(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return out, nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapWriteError("commit tx", err)
	}
	return nil
}
