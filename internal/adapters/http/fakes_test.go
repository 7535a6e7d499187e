package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/config"
	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

type queriesFake struct {
	err        error
	missing    string
	lastQuery  domain.ReviewerQuery
	stats      domain.InvitationMetrics
	reportBody string
}

func (f *queriesFake) GetManuscript(_ context.Context, identifier string) (*domain.Manuscript, error) {
	if f.err != nil {
		return nil, f.err
	}
	if identifier == f.missing {
		return nil, domain.NewError(domain.ErrNotFound, "resolve manuscript", "identifier=%s", identifier)
	}
	return &domain.Manuscript{ID: "ms-1", CustomID: identifier, Title: "Paper"}, nil
}

func (f *queriesFake) ListReviewers(_ context.Context, q domain.ReviewerQuery) ([]domain.ReviewerWithStatus, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return []domain.ReviewerWithStatus{}, nil
}

func (f *queriesFake) ListInvitations(context.Context, string) ([]domain.InvitationView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.InvitationView{}, nil
}

func (f *queriesFake) ListQueue(context.Context, string) ([]domain.QueueEntryView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.QueueEntryView{}, nil
}

func (f *queriesFake) InvitationStats(context.Context, string) (domain.InvitationMetrics, error) {
	return f.stats, f.err
}

func (f *queriesFake) ExportInvitations(_ context.Context, _ string, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, f.reportBody)
	return err
}

type workflowFake struct {
	err error

	enqueued    ports.EnqueueRequest
	sentTo      [2]string
	accepted    *bool
	revokeArgs  reasonRequest
	reordered   []string
	moved       domain.MoveDirection
	expiration  *time.Time
	status      domain.ManuscriptStatus
	calledOp    string
	calledForID string
}

func (f *workflowFake) record(op, id string) {
	f.calledOp = op
	f.calledForID = id
}

func (f *workflowFake) invitation(id string) (*domain.ReviewInvitation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ReviewInvitation{ID: id, Status: domain.InvitationPending, InvitationRound: 1}, nil
}

func (f *workflowFake) EnqueueReviewer(_ context.Context, req ports.EnqueueRequest) (*domain.InvitationQueueEntry, error) {
	f.enqueued = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.InvitationQueueEntry{ID: "q-1", ManuscriptID: req.ManuscriptID, ReviewerID: req.ReviewerID, QueuePosition: 1}, nil
}

func (f *workflowFake) SendInvitation(_ context.Context, manuscriptID, reviewerID string) (*domain.ReviewInvitation, error) {
	f.sentTo = [2]string{manuscriptID, reviewerID}
	return f.invitation("inv-new")
}

func (f *workflowFake) DispatchQueueEntry(_ context.Context, entryID string) (*domain.ReviewInvitation, error) {
	f.record("dispatch", entryID)
	return f.invitation("inv-dispatched")
}

func (f *workflowFake) RemoveQueueEntry(_ context.Context, entryID string) error {
	f.record("remove", entryID)
	return f.err
}

func (f *workflowFake) MoveQueueEntry(_ context.Context, entryID string, direction domain.MoveDirection) error {
	f.record("move", entryID)
	f.moved = direction
	return f.err
}

func (f *workflowFake) ReorderQueue(_ context.Context, manuscriptID string, entryIDs []string) error {
	f.record("reorder", manuscriptID)
	f.reordered = entryIDs
	return f.err
}

func (f *workflowFake) RespondToInvitation(_ context.Context, id string, accept bool) (*domain.ReviewInvitation, error) {
	f.record("respond", id)
	f.accepted = &accept
	return f.invitation(id)
}

func (f *workflowFake) SubmitReport(_ context.Context, id string) (*domain.ReviewInvitation, error) {
	f.record("submit", id)
	return f.invitation(id)
}

func (f *workflowFake) CompleteReview(_ context.Context, id string) (*domain.ReviewInvitation, error) {
	f.record("complete", id)
	return f.invitation(id)
}

func (f *workflowFake) RevokeInvitation(_ context.Context, id, reason string, requeue bool) (*domain.ReviewInvitation, error) {
	f.record("revoke", id)
	f.revokeArgs = reasonRequest{Reason: reason, Requeue: requeue}
	return f.invitation(id)
}

func (f *workflowFake) InvalidateReport(_ context.Context, id, reason string) (*domain.ReviewInvitation, error) {
	f.record("invalidate", id)
	f.revokeArgs = reasonRequest{Reason: reason}
	return f.invitation(id)
}

func (f *workflowFake) SendReminder(_ context.Context, id string) (*domain.ReviewInvitation, error) {
	f.record("remind", id)
	return f.invitation(id)
}

func (f *workflowFake) SetExpiration(_ context.Context, id string, at *time.Time) (*domain.ReviewInvitation, error) {
	f.record("expiration", id)
	f.expiration = at
	return f.invitation(id)
}

func (f *workflowFake) UpdateManuscriptStatus(_ context.Context, manuscriptID string, status domain.ManuscriptStatus) (*domain.Manuscript, error) {
	f.record("status", manuscriptID)
	f.status = status
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Manuscript{ID: manuscriptID, Status: status}, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &queriesFake{}, &workflowFake{}, nil).Handler()
}
