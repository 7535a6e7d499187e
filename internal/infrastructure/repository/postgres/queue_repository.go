package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

const queueColumns = `id, manuscript_id, reviewer_id, queue_position, created_date, scheduled_send_date, priority, notes`

type QueueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func (r *QueueRepository) Create(ctx context.Context, entry *domain.InvitationQueueEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitation_queue (
			id, manuscript_id, reviewer_id, queue_position, created_date, scheduled_send_date, priority, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		entry.ID,
		entry.ManuscriptID,
		entry.ReviewerID,
		entry.QueuePosition,
		entry.CreatedDate.UTC(),
		entry.ScheduledSendDate.UTC(),
		string(entry.Priority),
		entry.Notes,
	)
	return mapWriteError("insert queue entry", err)
}

func (r *QueueRepository) GetByID(ctx context.Context, id string) (*domain.InvitationQueueEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM invitation_queue WHERE id = $1`, id)
	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get queue entry", "queue entry %s", id)
		}
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return entry, nil
}

func (r *QueueRepository) FindByPair(ctx context.Context, manuscriptID, reviewerID string) (*domain.InvitationQueueEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+queueColumns+`
		FROM invitation_queue
		WHERE manuscript_id = $1 AND reviewer_id = $2
	`, manuscriptID, reviewerID)
	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("find queue entry", "reviewer %s is not queued for manuscript %s", reviewerID, manuscriptID)
		}
		return nil, fmt.Errorf("find queue entry: %w", err)
	}
	return entry, nil
}

func (r *QueueRepository) ListByManuscript(ctx context.Context, manuscriptID string) ([]domain.InvitationQueueEntry, error) {
	return r.list(ctx, r.db, "list queue", `
		SELECT `+queueColumns+`
		FROM invitation_queue
		WHERE manuscript_id = $1
		ORDER BY queue_position, created_date
	`, manuscriptID)
}

func (r *QueueRepository) ListDue(ctx context.Context, now time.Time) ([]domain.InvitationQueueEntry, error) {
	return r.list(ctx, r.db, "list due queue entries", `
		SELECT `+queueColumns+`
		FROM invitation_queue
		WHERE scheduled_send_date <= $1
		ORDER BY scheduled_send_date, manuscript_id, queue_position
	`, now.UTC())
}

// UpdatePositions applies all updates in one transaction. The position
// uniqueness constraint is deferred so swaps do not collide mid-way.
func (r *QueueRepository) UpdatePositions(ctx context.Context, manuscriptID string, updates []domain.QueuePositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return applyPositions(ctx, tx, manuscriptID, updates)
	})
}

// Remove deletes the entry and shifts every later entry of the manuscript up
// by one.
func (r *QueueRepository) Remove(ctx context.Context, entry *domain.InvitationQueueEntry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return deleteQueueEntry(ctx, tx, entry)
	})
}

func (r *QueueRepository) Promote(ctx context.Context, entry *domain.InvitationQueueEntry, inv *domain.ReviewInvitation) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := deleteQueueEntry(ctx, tx, entry); err != nil {
			return err
		}
		return insertInvitation(ctx, tx, inv)
	})
}

// deleteQueueEntry compacts using the stored position returned by the delete,
// not the caller's copy: an earlier removal in the same batch may have moved it.
func deleteQueueEntry(ctx context.Context, tx *sql.Tx, entry *domain.InvitationQueueEntry) error {
	var (
		manuscriptID string
		position     int
	)
	err := tx.QueryRowContext(ctx, `
		DELETE FROM invitation_queue
		WHERE id = $1
		RETURNING manuscript_id, queue_position
	`, entry.ID).Scan(&manuscriptID, &position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("delete queue entry", "queue entry %s", entry.ID)
		}
		return fmt.Errorf("delete queue entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE invitation_queue
		SET queue_position = queue_position - 1
		WHERE manuscript_id = $1 AND queue_position > $2
	`, manuscriptID, position); err != nil {
		return mapWriteError("compact queue", err)
	}
	return nil
}

func applyPositions(ctx context.Context, tx *sql.Tx, manuscriptID string, updates []domain.QueuePositionUpdate) error {
	for _, u := range updates {
		res, err := tx.ExecContext(ctx, `
			UPDATE invitation_queue
			SET queue_position = $3
			WHERE id = $1 AND manuscript_id = $2
		`, u.ID, manuscriptID, u.QueuePosition)
		if err != nil {
			return mapWriteError("update queue position", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return notFound("update queue position", "queue entry %s", u.ID)
		}
	}
	return nil
}

func (r *QueueRepository) list(ctx context.Context, q execer, operation, query string, args ...any) ([]domain.InvitationQueueEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	out := make([]domain.InvitationQueueEntry, 0)
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return out, nil
}

func scanQueueEntry(s rowScanner) (*domain.InvitationQueueEntry, error) {
	var (
		entry    domain.InvitationQueueEntry
		priority string
	)
	if err := s.Scan(
		&entry.ID,
		&entry.ManuscriptID,
		&entry.ReviewerID,
		&entry.QueuePosition,
		&entry.CreatedDate,
		&entry.ScheduledSendDate,
		&priority,
		&entry.Notes,
	); err != nil {
		return nil, err
	}
	entry.Priority = domain.QueuePriority(priority)
	entry.CreatedDate = entry.CreatedDate.UTC()
	entry.ScheduledSendDate = entry.ScheduledSendDate.UTC()
	return &entry, nil
}
