package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

const (
	DefaultResponseWindow = 14 * 24 * time.Hour
	DefaultQueueInterval  = 7 * 24 * time.Hour
)

type WorkflowOptions struct {
	ResponseWindow time.Duration
	QueueInterval  time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

type InvitationWorkflowUseCase struct {
	manuscripts ports.ManuscriptRepository
	reviewers   ports.ReviewerRepository
	invitations ports.InvitationRepository
	queue       ports.QueueRepository
	events      ports.EventPublisher
	notifier    ports.InvitationNotifier

	responseWindow time.Duration
	queueInterval  time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

func NewInvitationWorkflowUseCase(
	manuscripts ports.ManuscriptRepository,
	reviewers ports.ReviewerRepository,
	invitations ports.InvitationRepository,
	queue ports.QueueRepository,
	events ports.EventPublisher,
	notifier ports.InvitationNotifier,
	opts WorkflowOptions,
) *InvitationWorkflowUseCase {
	if opts.ResponseWindow <= 0 {
		opts.ResponseWindow = DefaultResponseWindow
	}
	if opts.QueueInterval <= 0 {
		opts.QueueInterval = DefaultQueueInterval
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &InvitationWorkflowUseCase{
		manuscripts:    manuscripts,
		reviewers:      reviewers,
		invitations:    invitations,
		queue:          queue,
		events:         events,
		notifier:       notifier,
		responseWindow: opts.ResponseWindow,
		queueInterval:  opts.QueueInterval,
		now:            opts.Now,
		logger:         opts.Logger,
	}
}

func (uc *InvitationWorkflowUseCase) EnqueueReviewer(ctx context.Context, req ports.EnqueueRequest) (*domain.InvitationQueueEntry, error) {
	if req.ManuscriptID == "" || req.ReviewerID == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "enqueue reviewer", "manuscript and reviewer are required")
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.Valid() {
		return nil, domain.NewError(domain.ErrInvalidInput, "enqueue reviewer", "unsupported priority %q", priority)
	}
	if err := uc.ensurePairExists(ctx, req.ManuscriptID, req.ReviewerID); err != nil {
		return nil, err
	}
	if err := uc.ensureNoActiveRelationship(ctx, req.ManuscriptID, req.ReviewerID); err != nil {
		return nil, err
	}

	entries, err := uc.queue.ListByManuscript(ctx, req.ManuscriptID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}

	now := uc.now()
	position := domain.NextQueuePosition(entries)
	scheduled := domain.DefaultScheduledSendDate(now, position, uc.queueInterval)
	if req.ScheduledSend != nil {
		scheduled = req.ScheduledSend.UTC()
	}

	entry := &domain.InvitationQueueEntry{
		ID:                uuid.NewString(),
		ManuscriptID:      req.ManuscriptID,
		ReviewerID:        req.ReviewerID,
		QueuePosition:     position,
		CreatedDate:       now,
		ScheduledSendDate: scheduled,
		Priority:          priority,
		Notes:             req.Notes,
	}
	if err := uc.queue.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create queue entry: %w", err)
	}

	uc.publish(ctx, domain.InvitationEvent{
		Type:         domain.EventReviewerQueued,
		QueueEntryID: entry.ID,
		ManuscriptID: entry.ManuscriptID,
		ReviewerID:   entry.ReviewerID,
		To:           domain.WorkflowStatusQueued,
		At:           now,
	})
	return entry, nil
}

func (uc *InvitationWorkflowUseCase) SendInvitation(ctx context.Context, manuscriptID, reviewerID string) (*domain.ReviewInvitation, error) {
	if manuscriptID == "" || reviewerID == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "send invitation", "manuscript and reviewer are required")
	}
	if err := uc.ensurePairExists(ctx, manuscriptID, reviewerID); err != nil {
		return nil, err
	}
	if err := uc.ensureNoActiveRelationship(ctx, manuscriptID, reviewerID); err != nil {
		return nil, err
	}

	inv, err := uc.newInvitation(ctx, manuscriptID, reviewerID)
	if err != nil {
		return nil, err
	}
	if err := uc.invitations.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	uc.afterInvite(ctx, inv, "")
	return inv, nil
}

func (uc *InvitationWorkflowUseCase) DispatchQueueEntry(ctx context.Context, entryID string) (*domain.ReviewInvitation, error) {
	entry, err := uc.queue.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return uc.dispatch(ctx, entry)
}

func (uc *InvitationWorkflowUseCase) dispatch(ctx context.Context, entry *domain.InvitationQueueEntry) (*domain.ReviewInvitation, error) {
	existing, err := uc.invitations.ListByPair(ctx, entry.ManuscriptID, entry.ReviewerID)
	if err != nil {
		return nil, fmt.Errorf("list pair invitations: %w", err)
	}
	if err := uc.expireLapsed(ctx, existing); err != nil {
		return nil, err
	}
	if domain.HasActiveInvitation(existing) {
		return nil, domain.NewError(domain.ErrConflict, "dispatch queue entry",
			"reviewer %s already has an active invitation for manuscript %s", entry.ReviewerID, entry.ManuscriptID)
	}

	inv := uc.buildInvitation(entry.ManuscriptID, entry.ReviewerID, domain.NextRound(existing))
	if err := uc.queue.Promote(ctx, entry, inv); err != nil {
		return nil, fmt.Errorf("promote queue entry: %w", err)
	}

	uc.afterInvite(ctx, inv, entry.ID)
	return inv, nil
}

// DispatchDue sends every queue entry scheduled at or before now. A failed
// entry is logged and counted; the rest still go out.
func (uc *InvitationWorkflowUseCase) DispatchDue(ctx context.Context, now time.Time) (ports.DispatchResult, error) {
	entries, err := uc.queue.ListDue(ctx, now)
	if err != nil {
		return ports.DispatchResult{}, fmt.Errorf("list due queue entries: %w", err)
	}

	var result ports.DispatchResult
	for _, entry := range domain.DueQueueEntries(entries, now) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entry := entry
		if _, err := uc.dispatch(ctx, &entry); err != nil {
			result.Failed++
			uc.logger.Warn("queue_dispatch_failed",
				"queue_entry_id", entry.ID,
				"manuscript_id", entry.ManuscriptID,
				"reviewer_id", entry.ReviewerID,
				"error", err.Error(),
			)
			continue
		}
		result.Dispatched++
	}
	return result, nil
}

func (uc *InvitationWorkflowUseCase) RemoveQueueEntry(ctx context.Context, entryID string) error {
	entry, err := uc.queue.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get queue entry: %w", err)
	}
	if err := uc.queue.Remove(ctx, entry); err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	uc.publish(ctx, domain.InvitationEvent{
		Type:         domain.EventQueueEntryRemoved,
		QueueEntryID: entry.ID,
		ManuscriptID: entry.ManuscriptID,
		ReviewerID:   entry.ReviewerID,
		From:         domain.WorkflowStatusQueued,
		At:           uc.now(),
	})
	return nil
}

func (uc *InvitationWorkflowUseCase) MoveQueueEntry(ctx context.Context, entryID string, direction domain.MoveDirection) error {
	entry, err := uc.queue.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get queue entry: %w", err)
	}
	entries, err := uc.queue.ListByManuscript(ctx, entry.ManuscriptID)
	if err != nil {
		return fmt.Errorf("list queue: %w", err)
	}
	updates, err := domain.MoveQueueEntry(entries, entryID, direction)
	if err != nil {
		return err
	}
	if err := uc.queue.UpdatePositions(ctx, entry.ManuscriptID, updates); err != nil {
		return fmt.Errorf("update queue positions: %w", err)
	}
	return nil
}

func (uc *InvitationWorkflowUseCase) ReorderQueue(ctx context.Context, manuscriptID string, entryIDs []string) error {
	entries, err := uc.queue.ListByManuscript(ctx, manuscriptID)
	if err != nil {
		return fmt.Errorf("list queue: %w", err)
	}
	updates, err := domain.ReorderQueue(entries, entryIDs)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	if err := uc.queue.UpdatePositions(ctx, manuscriptID, updates); err != nil {
		return fmt.Errorf("update queue positions: %w", err)
	}
	return nil
}

func (uc *InvitationWorkflowUseCase) RespondToInvitation(ctx context.Context, invitationID string, accept bool) (*domain.ReviewInvitation, error) {
	action := domain.ActionDecline
	if accept {
		action = domain.ActionAccept
	}
	return uc.transition(ctx, invitationID, action, "", domain.EventInvitationResponded)
}

func (uc *InvitationWorkflowUseCase) SubmitReport(ctx context.Context, invitationID string) (*domain.ReviewInvitation, error) {
	return uc.transition(ctx, invitationID, domain.ActionSubmitReport, "", domain.EventReportSubmitted)
}

func (uc *InvitationWorkflowUseCase) CompleteReview(ctx context.Context, invitationID string) (*domain.ReviewInvitation, error) {
	return uc.transition(ctx, invitationID, domain.ActionComplete, "", domain.EventReviewCompleted)
}

// RevokeInvitation withdraws an active invitation. With requeue the reviewer
// goes back to the tail of the manuscript's queue. The revocation stands even
// when the requeue fails; that failure is only logged.
func (uc *InvitationWorkflowUseCase) RevokeInvitation(ctx context.Context, invitationID, reason string, requeue bool) (*domain.ReviewInvitation, error) {
	inv, err := uc.transition(ctx, invitationID, domain.ActionRevoke, reason, domain.EventInvitationRevoked)
	if err != nil {
		return nil, err
	}
	if !requeue {
		return inv, nil
	}
	if _, err := uc.EnqueueReviewer(ctx, ports.EnqueueRequest{
		ManuscriptID: inv.ManuscriptID,
		ReviewerID:   inv.ReviewerID,
		Priority:     domain.PriorityNormal,
		Notes:        "Re-queued after revocation",
	}); err != nil {
		uc.logger.Warn("invitation_requeue_failed",
			"invitation_id", inv.ID,
			"manuscript_id", inv.ManuscriptID,
			"reviewer_id", inv.ReviewerID,
			"error", err.Error(),
		)
	}
	return inv, nil
}

func (uc *InvitationWorkflowUseCase) InvalidateReport(ctx context.Context, invitationID, reason string) (*domain.ReviewInvitation, error) {
	return uc.transition(ctx, invitationID, domain.ActionInvalidate, reason, domain.EventReportInvalidated)
}

func (uc *InvitationWorkflowUseCase) SendReminder(ctx context.Context, invitationID string) (*domain.ReviewInvitation, error) {
	inv, err := uc.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if !inv.Status.Active() {
		return nil, domain.NewError(domain.ErrInvalidTransition, "send reminder",
			"cannot remind an invitation in status %q", inv.Status)
	}

	now := uc.now()
	inv.ReminderCount++
	inv.UpdatedAt = now
	if err := uc.invitations.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}

	uc.notify(ctx, inv, true)
	uc.publish(ctx, domain.InvitationEvent{
		Type:         domain.EventReminderSent,
		InvitationID: inv.ID,
		ManuscriptID: inv.ManuscriptID,
		ReviewerID:   inv.ReviewerID,
		From:         string(inv.Status),
		To:           string(inv.Status),
		At:           now,
	})
	return inv, nil
}

// SetExpiration moves the response deadline of a pending invitation. A nil
// deadline resets it to one response window from now.
func (uc *InvitationWorkflowUseCase) SetExpiration(ctx context.Context, invitationID string, at *time.Time) (*domain.ReviewInvitation, error) {
	inv, err := uc.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv.Status != domain.InvitationPending {
		return nil, domain.NewError(domain.ErrInvalidTransition, "set expiration",
			"only pending invitations expire, got %q", inv.Status)
	}

	now := uc.now()
	expiration := now.Add(uc.responseWindow)
	if at != nil {
		expiration = at.UTC()
	}
	inv.InvitationExpirationDate = &expiration
	inv.UpdatedAt = now
	if err := uc.invitations.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}
	return inv, nil
}

// UpdateManuscriptStatus records an editorial decision on the manuscript.
// Setting the current status again is a no-op.
func (uc *InvitationWorkflowUseCase) UpdateManuscriptStatus(ctx context.Context, manuscriptID string, status domain.ManuscriptStatus) (*domain.Manuscript, error) {
	if !status.Valid() {
		return nil, domain.NewError(domain.ErrInvalidInput, "update manuscript status", "unknown status %q", status)
	}
	ms, err := uc.manuscripts.GetByID(ctx, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	if ms.Status == status {
		return ms, nil
	}

	now := uc.now()
	if err := uc.manuscripts.UpdateStatus(ctx, ms.ID, status, now); err != nil {
		return nil, fmt.Errorf("update manuscript status: %w", err)
	}
	previous := ms.Status
	ms.Status = status
	ms.UpdatedAt = now

	uc.publish(ctx, domain.InvitationEvent{
		Type:         domain.EventManuscriptStatus,
		ManuscriptID: ms.ID,
		From:         string(previous),
		To:           string(status),
		At:           now,
	})
	return ms, nil
}

// SweepExpired persists the badge-derived statuses: pending invitations past
// expiration become expired, accepted ones past due become overdue.
func (uc *InvitationWorkflowUseCase) SweepExpired(ctx context.Context, now time.Time) (ports.SweepResult, error) {
	stale, err := uc.invitations.ListStale(ctx, now)
	if err != nil {
		return ports.SweepResult{}, fmt.Errorf("list stale invitations: %w", err)
	}

	var result ports.SweepResult
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		inv := &stale[i]
		badge, ok := domain.DeriveBadge(*inv, now)
		if !ok {
			continue
		}
		action := domain.ActionExpire
		if badge.Status == domain.BadgeOverdue {
			action = domain.ActionMarkOverdue
		}

		previous, err := domain.ApplyAction(inv, action, now, "")
		if err == nil {
			err = uc.invitations.Update(ctx, inv)
		}
		if err != nil {
			result.Failed++
			uc.logger.Warn("invitation_sweep_failed", "invitation_id", inv.ID, "error", err.Error())
			continue
		}

		if action == domain.ActionExpire {
			result.Expired++
		} else {
			result.Overdue++
		}
		uc.publish(ctx, domain.InvitationEvent{
			Type:         domain.EventInvitationSwept,
			InvitationID: inv.ID,
			ManuscriptID: inv.ManuscriptID,
			ReviewerID:   inv.ReviewerID,
			From:         string(previous),
			To:           string(inv.Status),
			At:           now,
		})
	}
	return result, nil
}

func (uc *InvitationWorkflowUseCase) transition(
	ctx context.Context,
	invitationID string,
	action domain.InvitationAction,
	reason string,
	eventType domain.InvitationEventType,
) (*domain.ReviewInvitation, error) {
	inv, err := uc.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}

	now := uc.now()
	previous, err := domain.ApplyAction(inv, action, now, reason)
	if err != nil {
		return nil, err
	}
	if err := uc.invitations.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}

	uc.publish(ctx, domain.InvitationEvent{
		Type:         eventType,
		InvitationID: inv.ID,
		ManuscriptID: inv.ManuscriptID,
		ReviewerID:   inv.ReviewerID,
		From:         string(previous),
		To:           string(inv.Status),
		At:           now,
	})
	return inv, nil
}

func (uc *InvitationWorkflowUseCase) ensurePairExists(ctx context.Context, manuscriptID, reviewerID string) error {
	if _, err := uc.manuscripts.GetByID(ctx, manuscriptID); err != nil {
		return fmt.Errorf("get manuscript: %w", err)
	}
	if _, err := uc.reviewers.GetByID(ctx, reviewerID); err != nil {
		return fmt.Errorf("get reviewer: %w", err)
	}
	return nil
}

// ensureNoActiveRelationship is the application-side guard; the store's
// unique indexes catch concurrent writers that pass it.
func (uc *InvitationWorkflowUseCase) ensureNoActiveRelationship(ctx context.Context, manuscriptID, reviewerID string) error {
	entry, err := uc.queue.FindByPair(ctx, manuscriptID, reviewerID)
	if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return fmt.Errorf("find queue entry: %w", err)
	}
	if entry != nil {
		return domain.NewError(domain.ErrConflict, "check active relationship",
			"reviewer %s is already queued for manuscript %s", reviewerID, manuscriptID)
	}

	existing, err := uc.invitations.ListByPair(ctx, manuscriptID, reviewerID)
	if err != nil {
		return fmt.Errorf("list pair invitations: %w", err)
	}
	if err := uc.expireLapsed(ctx, existing); err != nil {
		return err
	}
	if domain.HasActiveInvitation(existing) {
		return domain.NewError(domain.ErrConflict, "check active relationship",
			"reviewer %s already has an active invitation for manuscript %s", reviewerID, manuscriptID)
	}
	return nil
}

// expireLapsed persists the expiry of pending invitations whose response
// window has closed, so the pair can be invited again without waiting for the
// sweep. invs is updated in place.
func (uc *InvitationWorkflowUseCase) expireLapsed(ctx context.Context, invs []domain.ReviewInvitation) error {
	now := uc.now()
	for i := range invs {
		inv := &invs[i]
		badge, ok := domain.DeriveBadge(*inv, now)
		if !ok || badge.Status != domain.BadgeExpired {
			continue
		}
		previous, err := domain.ApplyAction(inv, domain.ActionExpire, now, "")
		if err != nil {
			return err
		}
		if err := uc.invitations.Update(ctx, inv); err != nil {
			return fmt.Errorf("expire invitation: %w", err)
		}
		uc.publish(ctx, domain.InvitationEvent{
			Type:         domain.EventInvitationSwept,
			InvitationID: inv.ID,
			ManuscriptID: inv.ManuscriptID,
			ReviewerID:   inv.ReviewerID,
			From:         string(previous),
			To:           string(inv.Status),
			At:           now,
		})
	}
	return nil
}

func (uc *InvitationWorkflowUseCase) newInvitation(ctx context.Context, manuscriptID, reviewerID string) (*domain.ReviewInvitation, error) {
	previous, err := uc.invitations.ListByPair(ctx, manuscriptID, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("list pair invitations: %w", err)
	}
	return uc.buildInvitation(manuscriptID, reviewerID, domain.NextRound(previous)), nil
}

func (uc *InvitationWorkflowUseCase) buildInvitation(manuscriptID, reviewerID string, round int) *domain.ReviewInvitation {
	now := uc.now()
	due := now.Add(uc.responseWindow)
	expiration := now.Add(uc.responseWindow)
	return &domain.ReviewInvitation{
		ID:                       uuid.NewString(),
		ManuscriptID:             manuscriptID,
		ReviewerID:               reviewerID,
		InvitedDate:              now,
		DueDate:                  &due,
		InvitationExpirationDate: &expiration,
		Status:                   domain.InvitationPending,
		InvitationRound:          round,
		UpdatedAt:                now,
	}
}

func (uc *InvitationWorkflowUseCase) afterInvite(ctx context.Context, inv *domain.ReviewInvitation, queueEntryID string) {
	from := ""
	if queueEntryID != "" {
		from = domain.WorkflowStatusQueued
	}
	uc.publish(ctx, domain.InvitationEvent{
		Type:         domain.EventInvitationSent,
		InvitationID: inv.ID,
		QueueEntryID: queueEntryID,
		ManuscriptID: inv.ManuscriptID,
		ReviewerID:   inv.ReviewerID,
		From:         from,
		To:           string(inv.Status),
		At:           inv.InvitedDate,
	})
	uc.notify(ctx, inv, false)
}

// notify is best effort: the invitation is already stored.
func (uc *InvitationWorkflowUseCase) notify(ctx context.Context, inv *domain.ReviewInvitation, reminder bool) {
	if uc.notifier == nil {
		return
	}
	ms, err := uc.manuscripts.GetByID(ctx, inv.ManuscriptID)
	if err != nil {
		uc.logger.Warn("invitation_notify_failed", "invitation_id", inv.ID, "error", err.Error())
		return
	}
	reviewer, err := uc.reviewers.GetByID(ctx, inv.ReviewerID)
	if err != nil {
		uc.logger.Warn("invitation_notify_failed", "invitation_id", inv.ID, "error", err.Error())
		return
	}
	if reminder {
		err = uc.notifier.NotifyReminder(ctx, *ms, *reviewer, *inv)
	} else {
		err = uc.notifier.NotifyInvitation(ctx, *ms, *reviewer, *inv)
	}
	if err != nil {
		uc.logger.Warn("invitation_notify_failed", "invitation_id", inv.ID, "reminder", reminder, "error", err.Error())
	}
}

func (uc *InvitationWorkflowUseCase) publish(ctx context.Context, event domain.InvitationEvent) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishInvitationEvent(ctx, event); err != nil {
		uc.logger.Warn("invitation_event_publish_failed",
			"type", string(event.Type),
			"invitation_id", event.InvitationID,
			"manuscript_id", event.ManuscriptID,
			"error", err.Error(),
		)
	}
}
