package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

// CleanupRepository removes a manuscript together with its matched reviewers.
// Reviewer-owned rows go across all manuscripts, since the reviewers
// themselves are deleted.
type CleanupRepository struct {
	db *sql.DB
}

func NewCleanupRepository(db *sql.DB) *CleanupRepository {
	return &CleanupRepository{db: db}
}

const linkedFilter = `manuscript_id = $1 OR reviewer_id = ANY($2)`

func (r *CleanupRepository) CountLinked(ctx context.Context, manuscriptID string, reviewerIDs []string) (domain.CleanupStats, error) {
	if reviewerIDs == nil {
		reviewerIDs = []string{}
	}
	var stats domain.CleanupStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM reviewer_manuscript_matches WHERE `+linkedFilter+`),
			(SELECT COUNT(*) FROM reviewer_publications WHERE reviewer_id = ANY($2)),
			(SELECT COUNT(*) FROM reviewer_retractions WHERE reviewer_id = ANY($2)),
			(SELECT COUNT(*) FROM review_invitations WHERE `+linkedFilter+`),
			(SELECT COUNT(*) FROM invitation_queue WHERE `+linkedFilter+`),
			(SELECT COUNT(*) FROM user_manuscripts WHERE manuscript_id = $1)
	`, manuscriptID, reviewerIDs).Scan(
		&stats.Matches,
		&stats.Publications,
		&stats.Retractions,
		&stats.Invitations,
		&stats.QueueEntries,
		&stats.UserManuscripts,
	)
	if err != nil {
		return domain.CleanupStats{}, fmt.Errorf("count linked records: %w", err)
	}
	stats.Reviewers = len(reviewerIDs)
	return stats, nil
}

// renumberQueuesQuery closes the gaps left in other manuscripts' queues when a
// cleaned-up reviewer was queued there too. Only rows off their dense rank are
// touched; the deferred position constraint tolerates the interim duplicates.
const renumberQueuesQuery = `
	UPDATE invitation_queue q
	SET queue_position = r.rn
	FROM (
		SELECT id, ROW_NUMBER() OVER (PARTITION BY manuscript_id ORDER BY queue_position, created_date) AS rn
		FROM invitation_queue
	) r
	WHERE q.id = r.id AND q.queue_position <> r.rn
`

// DeleteCascade deletes children first so no foreign key is violated
// mid-transaction.
func (r *CleanupRepository) DeleteCascade(ctx context.Context, manuscriptID string, reviewerIDs []string) error {
	if reviewerIDs == nil {
		reviewerIDs = []string{}
	}
	both := []any{manuscriptID, reviewerIDs}
	steps := []struct {
		name  string
		query string
		args  []any
	}{
		{"delete publications", `DELETE FROM reviewer_publications WHERE reviewer_id = ANY($1)`, []any{reviewerIDs}},
		{"delete retractions", `DELETE FROM reviewer_retractions WHERE reviewer_id = ANY($1)`, []any{reviewerIDs}},
		{"delete queue entries", `DELETE FROM invitation_queue WHERE ` + linkedFilter, both},
		{"renumber queues", renumberQueuesQuery, nil},
		{"delete invitations", `DELETE FROM review_invitations WHERE ` + linkedFilter, both},
		{"delete matches", `DELETE FROM reviewer_manuscript_matches WHERE ` + linkedFilter, both},
		{"delete user manuscripts", `DELETE FROM user_manuscripts WHERE manuscript_id = $1`, []any{manuscriptID}},
		{"delete reviewers", `DELETE FROM potential_reviewers WHERE id = ANY($1)`, []any{reviewerIDs}},
		{"delete manuscript", `DELETE FROM manuscripts WHERE id = $1`, []any{manuscriptID}},
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, step.args...); err != nil {
				return mapWriteError(step.name, err)
			}
		}
		return nil
	})
}
