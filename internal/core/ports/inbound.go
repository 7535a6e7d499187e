package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

type EnqueueRequest struct {
	ManuscriptID  string
	ReviewerID    string
	Priority      domain.QueuePriority
	ScheduledSend *time.Time
	Notes         string
}

// InvitationWorkflow is the inbound contract for queue and invitation
// lifecycle mutations.
type InvitationWorkflow interface {
	EnqueueReviewer(ctx context.Context, req EnqueueRequest) (*domain.InvitationQueueEntry, error)
	SendInvitation(ctx context.Context, manuscriptID, reviewerID string) (*domain.ReviewInvitation, error)
	DispatchQueueEntry(ctx context.Context, entryID string) (*domain.ReviewInvitation, error)
	RemoveQueueEntry(ctx context.Context, entryID string) error
	MoveQueueEntry(ctx context.Context, entryID string, direction domain.MoveDirection) error
	ReorderQueue(ctx context.Context, manuscriptID string, entryIDs []string) error
	RespondToInvitation(ctx context.Context, invitationID string, accept bool) (*domain.ReviewInvitation, error)
	SubmitReport(ctx context.Context, invitationID string) (*domain.ReviewInvitation, error)
	CompleteReview(ctx context.Context, invitationID string) (*domain.ReviewInvitation, error)
	RevokeInvitation(ctx context.Context, invitationID, reason string, requeue bool) (*domain.ReviewInvitation, error)
	InvalidateReport(ctx context.Context, invitationID, reason string) (*domain.ReviewInvitation, error)
	SendReminder(ctx context.Context, invitationID string) (*domain.ReviewInvitation, error)
	SetExpiration(ctx context.Context, invitationID string, at *time.Time) (*domain.ReviewInvitation, error)
	UpdateManuscriptStatus(ctx context.Context, manuscriptID string, status domain.ManuscriptStatus) (*domain.Manuscript, error)
}

type DispatchResult struct {
	Dispatched int
	Failed     int
}

type SweepResult struct {
	Expired int
	Overdue int
	Failed  int
}

// WorkflowScheduler runs the time-driven parts of the workflow.
type WorkflowScheduler interface {
	DispatchDue(ctx context.Context, now time.Time) (DispatchResult, error)
	SweepExpired(ctx context.Context, now time.Time) (SweepResult, error)
}

// ManuscriptQueryService is the inbound read model for one manuscript.
type ManuscriptQueryService interface {
	GetManuscript(ctx context.Context, identifier string) (*domain.Manuscript, error)
	ListReviewers(ctx context.Context, q domain.ReviewerQuery) ([]domain.ReviewerWithStatus, error)
	ListInvitations(ctx context.Context, manuscriptID string) ([]domain.InvitationView, error)
	ListQueue(ctx context.Context, manuscriptID string) ([]domain.QueueEntryView, error)
	InvitationStats(ctx context.Context, manuscriptID string) (domain.InvitationMetrics, error)
	ExportInvitations(ctx context.Context, manuscriptID string, w io.Writer) error
}

// SuggestionIngestor loads reviewer-suggestion payloads.
type SuggestionIngestor interface {
	IngestFile(ctx context.Context, filename string, body io.Reader) (*domain.IngestReport, error)
	ReplayArchived(ctx context.Context, key string) (*domain.IngestReport, error)
}

// ManuscriptCleaner removes a manuscript and everything linked to it.
type ManuscriptCleaner interface {
	Plan(ctx context.Context, identifier string) (*domain.CleanupPlan, error)
	Cleanup(ctx context.Context, identifier string, opts CleanupOptions) (*domain.CleanupResult, error)
}

type CleanupOptions struct {
	DryRun bool
	Force  bool
	// Confirm is asked before deleting when Force is false. A nil Confirm
	// refuses the deletion.
	Confirm func(plan domain.CleanupPlan) (bool, error)
}
