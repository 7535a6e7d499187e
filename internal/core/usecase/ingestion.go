package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

type IngestSuggestionsUseCase struct {
	repo    ports.IngestionRepository
	decoder ports.PayloadDecoder
	storage ports.ObjectStorage
	logger  *slog.Logger
	now     func() time.Time
}

func NewIngestSuggestionsUseCase(
	repo ports.IngestionRepository,
	decoder ports.PayloadDecoder,
	storage ports.ObjectStorage,
	logger *slog.Logger,
) *IngestSuggestionsUseCase {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &IngestSuggestionsUseCase{
		repo:    repo,
		decoder: decoder,
		storage: storage,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// IngestFile upserts one reviewer-suggestion payload. Running it twice on the
// same input leaves the store unchanged: manuscripts are keyed by system id,
// reviewers by email, matches by pair and publications by (reviewer, doi).
// A failing reviewer is recorded in the report and the run continues.
func (uc *IngestSuggestionsUseCase) IngestFile(ctx context.Context, filename string, body io.Reader) (*domain.IngestReport, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	payload, err := uc.decode(filename, raw)
	if err != nil {
		return nil, err
	}

	archiveKey := ""
	if uc.storage != nil {
		archiveKey = fmt.Sprintf("ingest/%s_%s", uc.now().Format("20060102T150405Z"), sanitizeFilename(filename))
		if err := uc.storage.Save(ctx, archiveKey, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("archive payload: %w", err)
		}
	}
	return uc.ingest(ctx, payload, archiveKey)
}

// ReplayArchived ingests a payload archived by an earlier IngestFile run.
// The archive is read as-is and not copied again.
func (uc *IngestSuggestionsUseCase) ReplayArchived(ctx context.Context, key string) (*domain.IngestReport, error) {
	if uc.storage == nil {
		return nil, domain.NewError(domain.ErrInvalidInput, "replay archived payload", "payload archive is not configured")
	}
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open archived payload: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read archived payload: %w", err)
	}
	payload, err := uc.decode(key, raw)
	if err != nil {
		return nil, err
	}
	return uc.ingest(ctx, payload, key)
}

func (uc *IngestSuggestionsUseCase) decode(filename string, raw []byte) (domain.SuggestionPayload, error) {
	payload, err := uc.decoder.Decode(filename, bytes.NewReader(raw))
	if err != nil {
		return domain.SuggestionPayload{}, err
	}
	if err := payload.Validate(); err != nil {
		return domain.SuggestionPayload{}, err
	}
	return payload, nil
}

func (uc *IngestSuggestionsUseCase) ingest(ctx context.Context, payload domain.SuggestionPayload, archiveKey string) (*domain.IngestReport, error) {
	report := &domain.IngestReport{ArchiveKey: archiveKey, Errors: []domain.IngestError{}}

	ms := manuscriptFromPayload(payload.Manuscript, uc.now())
	manuscriptID, created, err := uc.repo.UpsertManuscript(ctx, ms)
	if err != nil {
		return nil, fmt.Errorf("upsert manuscript %s: %w", payload.Manuscript.SystemID, err)
	}
	report.ManuscriptID = manuscriptID
	report.ManuscriptCreated = created
	report.ManuscriptsProcessed = 1
	uc.logger.Info("manuscript_upserted", "manuscript_id", manuscriptID, "system_id", ms.SystemID, "created", created)

	for i, rp := range payload.Reviewers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		uc.logger.Info("reviewer_processing", "index", i+1, "total", len(payload.Reviewers), "email", rp.Email)
		if err := uc.ingestReviewer(ctx, manuscriptID, rp, report); err != nil {
			name := rp.Name()
			if name == "" {
				name = rp.Email
			}
			uc.logger.Error("reviewer_ingest_failed", "reviewer", name, "error", err.Error())
			report.Errors = append(report.Errors, domain.IngestError{Reviewer: name, Error: err.Error()})
		}
	}
	return report, nil
}

func (uc *IngestSuggestionsUseCase) ingestReviewer(ctx context.Context, manuscriptID string, rp domain.ReviewerPayload, report *domain.IngestReport) error {
	if strings.TrimSpace(rp.Email) == "" {
		return domain.NewError(domain.ErrInvalidInput, "ingest reviewer", "email is required")
	}

	reviewer := reviewerFromPayload(rp, uc.now())
	reviewerID, created, err := uc.repo.UpsertReviewer(ctx, reviewer)
	if err != nil {
		return fmt.Errorf("upsert reviewer: %w", err)
	}
	report.ReviewersProcessed++
	if created {
		report.ReviewersCreated++
	}

	if err := uc.repo.UpsertMatch(ctx, domain.ReviewerMatch{
		ManuscriptID:        manuscriptID,
		ReviewerID:          reviewerID,
		MatchScore:          rp.Score,
		IsInitialSuggestion: rp.InitialSuggestion,
		ConflictsOfInterest: rp.ConflictsOfInterest,
	}); err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}
	report.MatchesUpserted++

	pubs := publicationsFromPayload(reviewerID, rp)
	if len(pubs) > 0 {
		n, err := uc.repo.UpsertPublications(ctx, reviewerID, pubs)
		if err != nil {
			return fmt.Errorf("upsert publications: %w", err)
		}
		report.PublicationsUpserted += n
	}

	if rp.Retractions != nil && len(rp.Retractions.RetractionReasons) > 0 {
		if err := uc.repo.InsertRetraction(ctx, reviewerID, rp.Retractions.RetractionReasons); err != nil {
			// An existing retraction row is expected on re-runs.
			uc.logger.Warn("retraction_insert_skipped", "reviewer_id", reviewerID, "error", err.Error())
		} else {
			report.RetractionsInserted++
		}
	}
	return nil
}

func manuscriptFromPayload(p domain.ManuscriptPayload, now time.Time) *domain.Manuscript {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if name := a.Full(); name != "" {
			authors = append(authors, name)
		}
	}
	keywords := p.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return &domain.Manuscript{
		SystemID:       p.SystemID,
		SubmissionID:   p.SubmissionID,
		CustomID:       p.CustomID,
		Title:          p.Title,
		Abstract:       p.Abstract,
		Authors:        authors,
		Journal:        p.JournalName,
		ArticleType:    p.ArticleType,
		SubmissionDate: domain.ParsePayloadDate(p.SubmittedDate),
		Status:         domain.ManuscriptSubmitted,
		Keywords:       keywords,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func reviewerFromPayload(p domain.ReviewerPayload, now time.Time) *domain.PotentialReviewer {
	r := &domain.PotentialReviewer{
		ExternalID:         p.ExternalID,
		Name:               p.Name(),
		Email:              strings.ToLower(strings.TrimSpace(p.Email)),
		Affiliation:        p.Affiliation,
		OrcidID:            p.OrcidID,
		ExpertiseAreas:     p.Keywords,
		CurrentReviewLoad:  p.CurrentlyReviewing,
		AvailabilityStatus: domain.AvailabilityAvailable,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if r.ExpertiseAreas == nil {
		r.ExpertiseAreas = []string{}
	}
	if p.PublicationStats != nil {
		r.HIndex = p.PublicationStats.HIndex
	}
	return r
}

func publicationsFromPayload(reviewerID string, p domain.ReviewerPayload) []domain.ReviewerPublication {
	out := make([]domain.ReviewerPublication, 0, len(p.RelatedPublications)+len(p.OtherPublications))
	add := func(src []domain.PublicationPayload, related bool) {
		for _, pub := range src {
			authors := pub.Authors
			if authors == nil {
				authors = []string{}
			}
			out = append(out, domain.ReviewerPublication{
				ReviewerID:      reviewerID,
				Title:           pub.Title,
				DOI:             strings.TrimSpace(pub.DOI),
				JournalName:     pub.JournalName,
				Authors:         authors,
				PublicationDate: domain.ParsePayloadDate(pub.PublicationDate),
				IsRelated:       related,
			})
		}
	}
	add(p.RelatedPublications, true)
	add(p.OtherPublications, false)
	return out
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "payload.json"
	}
	return base
}
