package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

// IngestionRepository writes reviewer-suggestion payloads with ON CONFLICT
// upserts so that replaying a payload is a no-op.
type IngestionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewIngestionRepository(db *sql.DB) *IngestionRepository {
	return &IngestionRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// UpsertManuscript keys manuscripts by system_id. Status and created_at of an
// existing row are left alone. created reports whether the row was inserted.
func (r *IngestionRepository) UpsertManuscript(ctx context.Context, ms *domain.Manuscript) (string, bool, error) {
	authors, err := marshalStrings(ms.Authors)
	if err != nil {
		return "", false, err
	}
	keywords, err := marshalStrings(ms.Keywords)
	if err != nil {
		return "", false, err
	}
	id := ms.ID
	if id == "" {
		id = uuid.NewString()
	}

	var (
		storedID string
		created  bool
	)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO manuscripts (
			id, system_id, submission_id, custom_id, title, abstract, authors, journal,
			article_type, submission_date, status, keywords, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (system_id) DO UPDATE SET
			submission_id = EXCLUDED.submission_id,
			custom_id = EXCLUDED.custom_id,
			title = EXCLUDED.title,
			abstract = EXCLUDED.abstract,
			authors = EXCLUDED.authors,
			journal = EXCLUDED.journal,
			article_type = EXCLUDED.article_type,
			submission_date = EXCLUDED.submission_date,
			keywords = EXCLUDED.keywords,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)
	`,
		id,
		nullableString(ms.SystemID),
		nullableString(ms.SubmissionID),
		nullableString(ms.CustomID),
		ms.Title,
		ms.Abstract,
		authors,
		ms.Journal,
		ms.ArticleType,
		nullableTime(ms.SubmissionDate),
		string(ms.Status),
		keywords,
		r.now(),
	).Scan(&storedID, &created)
	if err != nil {
		return "", false, mapWriteError("upsert manuscript", err)
	}
	return storedID, created, nil
}

// UpsertReviewer keys reviewers by lower-cased email. Workflow counters
// (load, acceptances, scores) are owned by this service and not overwritten.
func (r *IngestionRepository) UpsertReviewer(ctx context.Context, rv *domain.PotentialReviewer) (string, bool, error) {
	expertise, err := marshalStrings(rv.ExpertiseAreas)
	if err != nil {
		return "", false, err
	}
	conflicts, err := marshalStrings(rv.ConflictsOfInterest)
	if err != nil {
		return "", false, err
	}
	id := rv.ID
	if id == "" {
		id = uuid.NewString()
	}
	availability := rv.AvailabilityStatus
	if availability == "" {
		availability = domain.AvailabilityAvailable
	}

	var (
		storedID string
		created  bool
	)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO potential_reviewers (
			id, external_id, name, email, affiliation, department, orcid_id, expertise_areas,
			current_review_load, max_review_capacity, availability_status, h_index,
			conflicts_of_interest, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (email) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			name = EXCLUDED.name,
			affiliation = EXCLUDED.affiliation,
			orcid_id = EXCLUDED.orcid_id,
			expertise_areas = EXCLUDED.expertise_areas,
			current_review_load = EXCLUDED.current_review_load,
			h_index = COALESCE(EXCLUDED.h_index, potential_reviewers.h_index),
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)
	`,
		id,
		rv.ExternalID,
		rv.Name,
		strings.ToLower(strings.TrimSpace(rv.Email)),
		rv.Affiliation,
		rv.Department,
		rv.OrcidID,
		expertise,
		rv.CurrentReviewLoad,
		rv.MaxReviewCapacity,
		string(availability),
		nullableInt(rv.HIndex),
		conflicts,
		r.now(),
	).Scan(&storedID, &created)
	if err != nil {
		return "", false, mapWriteError("upsert reviewer", err)
	}
	return storedID, created, nil
}

func (r *IngestionRepository) UpsertMatch(ctx context.Context, match domain.ReviewerMatch) error {
	conflicts, err := marshalStrings(match.ConflictsOfInterest)
	if err != nil {
		return err
	}
	id := match.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reviewer_manuscript_matches (
			id, manuscript_id, reviewer_id, match_score, is_initial_suggestion, conflicts_of_interest, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (manuscript_id, reviewer_id) DO UPDATE SET
			match_score = EXCLUDED.match_score,
			is_initial_suggestion = EXCLUDED.is_initial_suggestion,
			conflicts_of_interest = EXCLUDED.conflicts_of_interest,
			calculated_at = EXCLUDED.calculated_at
	`, id, match.ManuscriptID, match.ReviewerID, match.MatchScore, match.IsInitialSuggestion, conflicts, r.now())
	return mapWriteError("upsert match", err)
}

// UpsertPublications writes pubs in one transaction, deduplicating on DOI or,
// for publications without one, on the normalized title.
func (r *IngestionRepository) UpsertPublications(ctx context.Context, reviewerID string, pubs []domain.ReviewerPublication) (int, error) {
	written := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, p := range pubs {
			authors, err := marshalStrings(p.Authors)
			if err != nil {
				return err
			}
			id := p.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO reviewer_publications (
					id, reviewer_id, dedupe_key, title, doi, journal_name, authors, publication_date, is_related
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (reviewer_id, dedupe_key) DO UPDATE SET
					title = EXCLUDED.title,
					journal_name = EXCLUDED.journal_name,
					authors = EXCLUDED.authors,
					publication_date = EXCLUDED.publication_date,
					is_related = reviewer_publications.is_related OR EXCLUDED.is_related
			`,
				id,
				reviewerID,
				publicationDedupeKey(p),
				p.Title,
				nullableString(p.DOI),
				p.JournalName,
				authors,
				nullableTime(p.PublicationDate),
				p.IsRelated,
			); err != nil {
				return mapWriteError("upsert publication", err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func publicationDedupeKey(p domain.ReviewerPublication) string {
	if doi := strings.ToLower(strings.TrimSpace(p.DOI)); doi != "" {
		return doi
	}
	return "title:" + strings.ToLower(strings.TrimSpace(p.Title))
}

// InsertRetraction stores the reasons once per reviewer; a second insert
// fails with domain.ErrConflict.
func (r *IngestionRepository) InsertRetraction(ctx context.Context, reviewerID string, reasons []string) error {
	raw, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("marshal retraction reasons: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reviewer_retractions (id, reviewer_id, retraction_reasons, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), reviewerID, raw, r.now())
	return mapWriteError("insert retraction", err)
}
