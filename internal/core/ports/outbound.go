package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

// ManuscriptRepository reads manuscripts and stores editorial status changes.
// Lookups of a missing manuscript return an error wrapping domain.ErrNotFound.
type ManuscriptRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Manuscript, error)
	// Resolve accepts the internal id, custom_id, system_id or submission_id.
	Resolve(ctx context.Context, identifier string) (*domain.Manuscript, error)
	UpdateStatus(ctx context.Context, id string, status domain.ManuscriptStatus, at time.Time) error
}

// ReviewerRepository reads reviewer profiles and their publications.
type ReviewerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.PotentialReviewer, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.PotentialReviewer, error)
	ListMatches(ctx context.Context, manuscriptID string) ([]domain.ReviewerMatch, error)
	ListPublications(ctx context.Context, reviewerIDs []string) ([]domain.ReviewerPublication, error)
}

// InvitationRepository persists review invitations. Inserting a second
// active invitation for a pair fails with domain.ErrConflict.
type InvitationRepository interface {
	Create(ctx context.Context, inv *domain.ReviewInvitation) error
	GetByID(ctx context.Context, id string) (*domain.ReviewInvitation, error)
	Update(ctx context.Context, inv *domain.ReviewInvitation) error
	ListByManuscript(ctx context.Context, manuscriptID string) ([]domain.ReviewInvitation, error)
	ListByPair(ctx context.Context, manuscriptID, reviewerID string) ([]domain.ReviewInvitation, error)
	// ListStale returns pending invitations past expiration and accepted
	// invitations past due at now.
	ListStale(ctx context.Context, now time.Time) ([]domain.ReviewInvitation, error)
}

// QueueRepository persists invitation queue entries. Positions are dense per
// manuscript; Remove and Promote close the gap they leave.
type QueueRepository interface {
	Create(ctx context.Context, entry *domain.InvitationQueueEntry) error
	GetByID(ctx context.Context, id string) (*domain.InvitationQueueEntry, error)
	FindByPair(ctx context.Context, manuscriptID, reviewerID string) (*domain.InvitationQueueEntry, error)
	ListByManuscript(ctx context.Context, manuscriptID string) ([]domain.InvitationQueueEntry, error)
	ListDue(ctx context.Context, now time.Time) ([]domain.InvitationQueueEntry, error)
	UpdatePositions(ctx context.Context, manuscriptID string, updates []domain.QueuePositionUpdate) error
	Remove(ctx context.Context, entry *domain.InvitationQueueEntry) error
	// Promote removes the entry and inserts inv in one transaction.
	Promote(ctx context.Context, entry *domain.InvitationQueueEntry, inv *domain.ReviewInvitation) error
}

// IngestionRepository upserts the records of a reviewer-suggestion payload.
type IngestionRepository interface {
	UpsertManuscript(ctx context.Context, ms *domain.Manuscript) (id string, created bool, err error)
	UpsertReviewer(ctx context.Context, r *domain.PotentialReviewer) (id string, created bool, err error)
	UpsertMatch(ctx context.Context, match domain.ReviewerMatch) error
	UpsertPublications(ctx context.Context, reviewerID string, pubs []domain.ReviewerPublication) (int, error)
	InsertRetraction(ctx context.Context, reviewerID string, reasons []string) error
}

// CleanupRepository counts and deletes everything linked to a manuscript.
type CleanupRepository interface {
	CountLinked(ctx context.Context, manuscriptID string, reviewerIDs []string) (domain.CleanupStats, error)
	// DeleteCascade deletes in foreign-key order inside one transaction.
	DeleteCascade(ctx context.Context, manuscriptID string, reviewerIDs []string) error
}

// EventPublisher announces invitation lifecycle events.
type EventPublisher interface {
	PublishInvitationEvent(ctx context.Context, event domain.InvitationEvent) error
}

// EventSubscriber consumes invitation lifecycle events.
type EventSubscriber interface {
	SubscribeInvitationEvents(ctx context.Context, handler func(context.Context, domain.InvitationEvent) error) error
}

// InvitationNotifier tells a reviewer about an invitation.
type InvitationNotifier interface {
	NotifyInvitation(ctx context.Context, ms domain.Manuscript, reviewer domain.PotentialReviewer, inv domain.ReviewInvitation) error
	NotifyReminder(ctx context.Context, ms domain.Manuscript, reviewer domain.PotentialReviewer, inv domain.ReviewInvitation) error
}

// ObjectStorage archives raw payloads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ReportWriter renders invitation listings into a document format.
type ReportWriter interface {
	WriteInvitationReport(w io.Writer, ms domain.Manuscript, rows []domain.InvitationView, metrics domain.InvitationMetrics) error
}

// PayloadDecoder turns a raw ingestion file into a payload.
type PayloadDecoder interface {
	Decode(filename string, r io.Reader) (domain.SuggestionPayload, error)
}
