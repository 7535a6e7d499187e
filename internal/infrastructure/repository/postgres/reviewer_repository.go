package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

const reviewerColumns = `id, external_id, name, email, affiliation, department, orcid_id, expertise_areas,
	current_review_load, max_review_capacity, availability_status, response_rate, quality_score, h_index,
	total_invitations, total_acceptances, last_review_completed, conflicts_of_interest, created_at, updated_at`

type ReviewerRepository struct {
	db *sql.DB
}

func NewReviewerRepository(db *sql.DB) *ReviewerRepository {
	return &ReviewerRepository{db: db}
}

func (r *ReviewerRepository) GetByID(ctx context.Context, id string) (*domain.PotentialReviewer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reviewerColumns+` FROM potential_reviewers WHERE id = $1`, id)
	reviewer, err := scanReviewer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get reviewer", "reviewer %s", id)
		}
		return nil, fmt.Errorf("get reviewer: %w", err)
	}
	return reviewer, nil
}

func (r *ReviewerRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.PotentialReviewer, error) {
	if len(ids) == 0 {
		return []domain.PotentialReviewer{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reviewerColumns+`
		FROM potential_reviewers
		WHERE id = ANY($1)
		ORDER BY name, id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PotentialReviewer, 0, len(ids))
	for rows.Next() {
		reviewer, err := scanReviewer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reviewer: %w", err)
		}
		out = append(out, *reviewer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviewers: %w", err)
	}
	return out, nil
}

func (r *ReviewerRepository) ListMatches(ctx context.Context, manuscriptID string) ([]domain.ReviewerMatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, manuscript_id, reviewer_id, match_score, is_initial_suggestion, conflicts_of_interest
		FROM reviewer_manuscript_matches
		WHERE manuscript_id = $1
		ORDER BY match_score DESC, reviewer_id
	`, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReviewerMatch, 0)
	for rows.Next() {
		var (
			m            domain.ReviewerMatch
			conflictsRaw []byte
		)
		if err := rows.Scan(&m.ID, &m.ManuscriptID, &m.ReviewerID, &m.MatchScore, &m.IsInitialSuggestion, &conflictsRaw); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if m.ConflictsOfInterest, err = unmarshalStrings(conflictsRaw); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

func (r *ReviewerRepository) ListPublications(ctx context.Context, reviewerIDs []string) ([]domain.ReviewerPublication, error) {
	if len(reviewerIDs) == 0 {
		return []domain.ReviewerPublication{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, reviewer_id, title, COALESCE(doi, ''), journal_name, authors, publication_date, is_related
		FROM reviewer_publications
		WHERE reviewer_id = ANY($1)
		ORDER BY reviewer_id, publication_date DESC NULLS LAST, title
	`, reviewerIDs)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReviewerPublication, 0)
	for rows.Next() {
		var (
			p          domain.ReviewerPublication
			authorsRaw []byte
			published  sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.ReviewerID, &p.Title, &p.DOI, &p.JournalName, &authorsRaw, &published, &p.IsRelated); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		if p.Authors, err = unmarshalStrings(authorsRaw); err != nil {
			return nil, err
		}
		p.PublicationDate = nullTimePtr(published)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publications: %w", err)
	}
	return out, nil
}

func scanReviewer(s rowScanner) (*domain.PotentialReviewer, error) {
	var (
		r            domain.PotentialReviewer
		expertiseRaw []byte
		conflictsRaw []byte
		availability string
		hIndex       sql.NullInt64
		lastReview   sql.NullTime
	)
	if err := s.Scan(
		&r.ID,
		&r.ExternalID,
		&r.Name,
		&r.Email,
		&r.Affiliation,
		&r.Department,
		&r.OrcidID,
		&expertiseRaw,
		&r.CurrentReviewLoad,
		&r.MaxReviewCapacity,
		&availability,
		&r.ResponseRate,
		&r.QualityScore,
		&hIndex,
		&r.TotalInvitations,
		&r.TotalAcceptances,
		&lastReview,
		&conflictsRaw,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.AvailabilityStatus = domain.Availability(availability)
	r.LastReviewCompleted = nullTimePtr(lastReview)
	if hIndex.Valid {
		v := int(hIndex.Int64)
		r.HIndex = &v
	}

	var err error
	if r.ExpertiseAreas, err = unmarshalStrings(expertiseRaw); err != nil {
		return nil, err
	}
	if r.ConflictsOfInterest, err = unmarshalStrings(conflictsRaw); err != nil {
		return nil, err
	}
	return &r, nil
}
