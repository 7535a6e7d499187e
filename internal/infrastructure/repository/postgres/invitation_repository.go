package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

const invitationColumns = `id, manuscript_id, reviewer_id, invited_date, due_date, invitation_expiration_date,
	status, response_date, queue_position, invitation_round, reminder_count, notes, report_invalidated_date, updated_at`

type InvitationRepository struct {
	db *sql.DB
}

func NewInvitationRepository(db *sql.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.ReviewInvitation) error {
	return insertInvitation(ctx, r.db, inv)
}

func insertInvitation(ctx context.Context, q execer, inv *domain.ReviewInvitation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO review_invitations (
			id, manuscript_id, reviewer_id, invited_date, due_date, invitation_expiration_date,
			status, response_date, queue_position, invitation_round, reminder_count, notes,
			report_invalidated_date, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		inv.ID,
		inv.ManuscriptID,
		inv.ReviewerID,
		inv.InvitedDate.UTC(),
		nullableTime(inv.DueDate),
		nullableTime(inv.InvitationExpirationDate),
		string(inv.Status),
		nullableTime(inv.ResponseDate),
		nullableInt(inv.QueuePosition),
		inv.InvitationRound,
		inv.ReminderCount,
		inv.Notes,
		nullableTime(inv.ReportInvalidatedDate),
		inv.UpdatedAt.UTC(),
	)
	return mapWriteError("insert invitation", err)
}

func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*domain.ReviewInvitation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM review_invitations WHERE id = $1`, id)
	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get invitation", "invitation %s", id)
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

func (r *InvitationRepository) Update(ctx context.Context, inv *domain.ReviewInvitation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE review_invitations
		SET due_date = $2,
			invitation_expiration_date = $3,
			status = $4,
			response_date = $5,
			queue_position = $6,
			reminder_count = $7,
			notes = $8,
			report_invalidated_date = $9,
			updated_at = $10
		WHERE id = $1
	`,
		inv.ID,
		nullableTime(inv.DueDate),
		nullableTime(inv.InvitationExpirationDate),
		string(inv.Status),
		nullableTime(inv.ResponseDate),
		nullableInt(inv.QueuePosition),
		inv.ReminderCount,
		inv.Notes,
		nullableTime(inv.ReportInvalidatedDate),
		inv.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapWriteError("update invitation", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound("update invitation", "invitation %s", inv.ID)
	}
	return nil
}

func (r *InvitationRepository) ListByManuscript(ctx context.Context, manuscriptID string) ([]domain.ReviewInvitation, error) {
	return r.list(ctx, "list invitations", `
		SELECT `+invitationColumns+`
		FROM review_invitations
		WHERE manuscript_id = $1
		ORDER BY invited_date DESC, id
	`, manuscriptID)
}

func (r *InvitationRepository) ListByPair(ctx context.Context, manuscriptID, reviewerID string) ([]domain.ReviewInvitation, error) {
	return r.list(ctx, "list pair invitations", `
		SELECT `+invitationColumns+`
		FROM review_invitations
		WHERE manuscript_id = $1 AND reviewer_id = $2
		ORDER BY invitation_round, invited_date
	`, manuscriptID, reviewerID)
}

func (r *InvitationRepository) ListStale(ctx context.Context, now time.Time) ([]domain.ReviewInvitation, error) {
	return r.list(ctx, "list stale invitations", `
		SELECT `+invitationColumns+`
		FROM review_invitations
		WHERE (status = 'pending' AND invitation_expiration_date < $1)
		   OR (status = 'accepted' AND due_date < $1)
		ORDER BY invited_date, id
	`, now.UTC())
}

func (r *InvitationRepository) list(ctx context.Context, operation, query string, args ...any) ([]domain.ReviewInvitation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	out := make([]domain.ReviewInvitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return out, nil
}

func scanInvitation(s rowScanner) (*domain.ReviewInvitation, error) {
	var (
		inv           domain.ReviewInvitation
		status        string
		due           sql.NullTime
		expiration    sql.NullTime
		responded     sql.NullTime
		invalidated   sql.NullTime
		queuePosition sql.NullInt64
	)
	if err := s.Scan(
		&inv.ID,
		&inv.ManuscriptID,
		&inv.ReviewerID,
		&inv.InvitedDate,
		&due,
		&expiration,
		&status,
		&responded,
		&queuePosition,
		&inv.InvitationRound,
		&inv.ReminderCount,
		&inv.Notes,
		&invalidated,
		&inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	inv.Status = domain.InvitationStatus(status)
	inv.InvitedDate = inv.InvitedDate.UTC()
	inv.DueDate = nullTimePtr(due)
	inv.InvitationExpirationDate = nullTimePtr(expiration)
	inv.ResponseDate = nullTimePtr(responded)
	inv.ReportInvalidatedDate = nullTimePtr(invalidated)
	if queuePosition.Valid {
		v := int(queuePosition.Int64)
		inv.QueuePosition = &v
	}
	return &inv, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
