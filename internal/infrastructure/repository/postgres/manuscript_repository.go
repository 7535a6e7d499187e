package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

const manuscriptColumns = `id, COALESCE(system_id, ''), COALESCE(submission_id, ''), COALESCE(custom_id, ''),
	title, abstract, authors, journal, article_type, submission_date, status, keywords, created_at, updated_at`

type ManuscriptRepository struct {
	db *sql.DB
}

func NewManuscriptRepository(db *sql.DB) *ManuscriptRepository {
	return &ManuscriptRepository{db: db}
}

func (r *ManuscriptRepository) GetByID(ctx context.Context, id string) (*domain.Manuscript, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+manuscriptColumns+` FROM manuscripts WHERE id = $1`, id)
	ms, err := scanManuscript(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get manuscript", "manuscript %s", id)
		}
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	return ms, nil
}

// Resolve tries custom_id first, then the internal id. system_id and
// submission_id are stored as UUIDs upstream and only consulted when the
// identifier parses as one.
func (r *ManuscriptRepository) Resolve(ctx context.Context, identifier string) (*domain.Manuscript, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "resolve manuscript", "identifier is required")
	}

	lookups := []string{"custom_id", "id"}
	if _, err := uuid.Parse(identifier); err == nil {
		lookups = append(lookups, "system_id", "submission_id")
	}
	for _, column := range lookups {
		query := `SELECT ` + manuscriptColumns + ` FROM manuscripts WHERE ` + column + ` = $1 ORDER BY created_at LIMIT 1`
		ms, err := scanManuscript(r.db.QueryRowContext(ctx, query, identifier))
		if err == nil {
			return ms, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resolve manuscript by %s: %w", column, err)
		}
	}
	return nil, notFound("resolve manuscript", "manuscript %s", identifier)
}

func (r *ManuscriptRepository) UpdateStatus(ctx context.Context, id string, status domain.ManuscriptStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE manuscripts
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, string(status), at.UTC())
	if err != nil {
		return mapWriteError("update manuscript status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound("update manuscript status", "manuscript %s", id)
	}
	return nil
}

func scanManuscript(s rowScanner) (*domain.Manuscript, error) {
	var (
		ms             domain.Manuscript
		authorsRaw     []byte
		keywordsRaw    []byte
		status         string
		submissionDate sql.NullTime
	)
	if err := s.Scan(
		&ms.ID,
		&ms.SystemID,
		&ms.SubmissionID,
		&ms.CustomID,
		&ms.Title,
		&ms.Abstract,
		&authorsRaw,
		&ms.Journal,
		&ms.ArticleType,
		&submissionDate,
		&status,
		&keywordsRaw,
		&ms.CreatedAt,
		&ms.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ms.Status = domain.ManuscriptStatus(status)
	ms.SubmissionDate = nullTimePtr(submissionDate)

	var err error
	if ms.Authors, err = unmarshalStrings(authorsRaw); err != nil {
		return nil, err
	}
	if ms.Keywords, err = unmarshalStrings(keywordsRaw); err != nil {
		return nil, err
	}
	return &ms, nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
