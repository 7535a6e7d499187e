package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

func TestEnqueueReviewerAssignsTailPositionAndSchedule(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()

	first, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-1"})
	if err != nil {
		t.Fatalf("EnqueueReviewer() error = %v", err)
	}
	second, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-2", Priority: domain.PriorityHigh})
	if err != nil {
		t.Fatalf("EnqueueReviewer() error = %v", err)
	}

	if first.QueuePosition != 1 || second.QueuePosition != 2 {
		t.Fatalf("unexpected positions %d, %d", first.QueuePosition, second.QueuePosition)
	}
	if first.Priority != domain.PriorityNormal {
		t.Fatalf("default priority = %q", first.Priority)
	}
	if !second.ScheduledSendDate.Equal(fixedNow.AddDate(0, 0, 14)) {
		t.Fatalf("unexpected schedule %v", second.ScheduledSendDate)
	}
	if diff := cmp.Diff([]domain.InvitationEventType{domain.EventReviewerQueued, domain.EventReviewerQueued}, fx.events.types()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEnqueueReviewerRejectsDoubleInvite(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()

	if _, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-1"}); err != nil {
		t.Fatalf("EnqueueReviewer() error = %v", err)
	}
	_, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-1"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := fx.uc.SendInvitation(ctx, "ms-1", "rv-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for queued reviewer, got %v", err)
	}
	if len(fx.queue.items) != 1 {
		t.Fatalf("queue must not be overwritten, got %d entries", len(fx.queue.items))
	}
}

func TestEnqueueReviewerValidatesInput(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()

	if _, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-1", Priority: "urgent"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "nobody"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSendInvitationSetsDefaultsAndNotifies(t *testing.T) {
	fx := newWorkflowFixture()

	inv, err := fx.uc.SendInvitation(context.Background(), "ms-1", "rv-1")
	if err != nil {
		t.Fatalf("SendInvitation() error = %v", err)
	}
	if inv.Status != domain.InvitationPending || inv.InvitationRound != 1 {
		t.Fatalf("unexpected invitation %+v", inv)
	}
	wantDeadline := fixedNow.Add(DefaultResponseWindow)
	if !inv.DueDate.Equal(wantDeadline) || !inv.InvitationExpirationDate.Equal(wantDeadline) {
		t.Fatalf("unexpected deadlines due=%v exp=%v", inv.DueDate, inv.InvitationExpirationDate)
	}
	if diff := cmp.Diff([]string{"ada@uni.edu"}, fx.notifier.invited); diff != "" {
		t.Fatalf("notified mismatch (-want +got):\n%s", diff)
	}
}

func TestSendInvitationIncrementsRoundAfterDecline(t *testing.T) {
	fx := newWorkflowFixture()
	fx.invitations.items["old"] = domain.ReviewInvitation{
		ID: "old", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationDeclined, InvitationRound: 1,
	}

	inv, err := fx.uc.SendInvitation(context.Background(), "ms-1", "rv-1")
	if err != nil {
		t.Fatalf("SendInvitation() error = %v", err)
	}
	if inv.InvitationRound != 2 {
		t.Fatalf("round = %d, want 2", inv.InvitationRound)
	}
}

func TestSendInvitationExpiresLapsedPendingInvitation(t *testing.T) {
	fx := newWorkflowFixture()
	lapsed := fixedNow.AddDate(0, 0, -30)
	fx.invitations.items["old"] = domain.ReviewInvitation{
		ID: "old", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationPending,
		InvitationRound: 1, InvitationExpirationDate: &lapsed,
	}

	inv, err := fx.uc.SendInvitation(context.Background(), "ms-1", "rv-1")
	if err != nil {
		t.Fatalf("SendInvitation() error = %v", err)
	}
	if inv.InvitationRound != 2 {
		t.Fatalf("round = %d, want 2", inv.InvitationRound)
	}
	if got := fx.invitations.items["old"].Status; got != domain.InvitationExpired {
		t.Fatalf("lapsed invitation status = %q, want expired", got)
	}
	if diff := cmp.Diff([]domain.InvitationEventType{domain.EventInvitationSwept, domain.EventInvitationSent}, fx.events.types()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEnqueueReviewerExpiresLapsedPendingInvitation(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	lapsed := fixedNow.Add(-time.Minute)
	open := fixedNow.Add(time.Hour)
	fx.invitations.items["old"] = domain.ReviewInvitation{
		ID: "old", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationPending,
		InvitationRound: 1, InvitationExpirationDate: &lapsed,
	}
	fx.invitations.items["live"] = domain.ReviewInvitation{
		ID: "live", ManuscriptID: "ms-1", ReviewerID: "rv-2", Status: domain.InvitationPending,
		InvitationRound: 1, InvitationExpirationDate: &open,
	}

	entry, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-1"})
	if err != nil {
		t.Fatalf("EnqueueReviewer() error = %v", err)
	}
	if fx.invitations.items["old"].Status != domain.InvitationExpired {
		t.Fatalf("lapsed invitation not expired")
	}
	if _, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-2"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("open invitation must still block, got %v", err)
	}

	inv, err := fx.uc.DispatchQueueEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("DispatchQueueEntry() error = %v", err)
	}
	if inv.InvitationRound != 2 {
		t.Fatalf("round = %d, want 2", inv.InvitationRound)
	}
}

func TestDispatchQueueEntryExpiresLapsedPendingInvitation(t *testing.T) {
	fx := newWorkflowFixture()
	lapsed := fixedNow.AddDate(0, 0, -1)
	fx.invitations.items["old"] = domain.ReviewInvitation{
		ID: "old", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationPending,
		InvitationRound: 1, InvitationExpirationDate: &lapsed,
	}
	fx.queue.items["q-1"] = domain.InvitationQueueEntry{ID: "q-1", ManuscriptID: "ms-1", ReviewerID: "rv-1", QueuePosition: 1}

	inv, err := fx.uc.DispatchQueueEntry(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("DispatchQueueEntry() error = %v", err)
	}
	if inv.InvitationRound != 2 || fx.invitations.items["old"].Status != domain.InvitationExpired {
		t.Fatalf("unexpected state: new=%+v old=%+v", inv, fx.invitations.items["old"])
	}
}

func TestSendInvitationRejectsActiveInvitation(t *testing.T) {
	fx := newWorkflowFixture()
	fx.invitations.items["cur"] = domain.ReviewInvitation{
		ID: "cur", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationAccepted, InvitationRound: 1,
	}
	if _, err := fx.uc.SendInvitation(context.Background(), "ms-1", "rv-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSendInvitationSucceedsWhenPublishFails(t *testing.T) {
	fx := newWorkflowFixture()
	fx.events.err = errors.New("nats down")
	if _, err := fx.uc.SendInvitation(context.Background(), "ms-1", "rv-1"); err != nil {
		t.Fatalf("publish failure must not fail the mutation: %v", err)
	}
	if len(fx.invitations.items) != 1 {
		t.Fatalf("invitation not stored")
	}
}

func TestDispatchQueueEntryPromotesAndRenumbers(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	a, _ := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-1"})
	b, _ := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-2"})

	inv, err := fx.uc.DispatchQueueEntry(ctx, a.ID)
	if err != nil {
		t.Fatalf("DispatchQueueEntry() error = %v", err)
	}
	if inv.Status != domain.InvitationPending || inv.InvitationRound != 1 {
		t.Fatalf("unexpected invitation %+v", inv)
	}
	if _, ok := fx.queue.items[a.ID]; ok {
		t.Fatalf("queue entry not removed")
	}
	if got := fx.queue.items[b.ID].QueuePosition; got != 1 {
		t.Fatalf("remaining entry position = %d, want 1", got)
	}
	last := fx.events.events[len(fx.events.events)-1]
	if last.Type != domain.EventInvitationSent || last.From != domain.WorkflowStatusQueued || last.QueueEntryID != a.ID {
		t.Fatalf("unexpected event %+v", last)
	}
}

func TestDispatchDueOrdersByPriorityAndContinuesOnFailure(t *testing.T) {
	fx := newWorkflowFixture()
	past := fixedNow.Add(-time.Hour)
	fx.queue.items = map[string]domain.InvitationQueueEntry{
		"q-low":   {ID: "q-low", ManuscriptID: "ms-1", ReviewerID: "rv-1", QueuePosition: 1, Priority: domain.PriorityLow, ScheduledSendDate: past},
		"q-high":  {ID: "q-high", ManuscriptID: "ms-1", ReviewerID: "rv-2", QueuePosition: 2, Priority: domain.PriorityHigh, ScheduledSendDate: past},
		"q-later": {ID: "q-later", ManuscriptID: "ms-1", ReviewerID: "rv-3", QueuePosition: 3, Priority: domain.PriorityHigh, ScheduledSendDate: fixedNow.Add(time.Hour)},
	}
	fx.queue.promoteErr = map[string]error{"q-low": errors.New("db gone")}

	result, err := fx.uc.DispatchDue(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("DispatchDue() error = %v", err)
	}
	if result.Dispatched != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := fx.queue.items["q-later"]; !ok {
		t.Fatalf("future entry must stay queued")
	}
	if _, ok := fx.queue.items["q-high"]; ok {
		t.Fatalf("high priority entry not dispatched")
	}
}

func TestDispatchDueKeepsRemainingQueueDense(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	past := fixedNow.Add(-time.Hour)
	fx.queue.items = map[string]domain.InvitationQueueEntry{
		"q-a": {ID: "q-a", ManuscriptID: "ms-1", ReviewerID: "rv-1", QueuePosition: 1, Priority: domain.PriorityNormal, ScheduledSendDate: past},
		"q-b": {ID: "q-b", ManuscriptID: "ms-1", ReviewerID: "rv-2", QueuePosition: 2, Priority: domain.PriorityNormal, ScheduledSendDate: past},
		"q-c": {ID: "q-c", ManuscriptID: "ms-1", ReviewerID: "rv-3", QueuePosition: 3, Priority: domain.PriorityNormal, ScheduledSendDate: fixedNow.Add(time.Hour)},
	}

	result, err := fx.uc.DispatchDue(ctx, fixedNow)
	if err != nil {
		t.Fatalf("DispatchDue() error = %v", err)
	}
	if result.Dispatched != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(fx.queue.items) != 1 {
		t.Fatalf("expected one queued entry, got %+v", fx.queue.items)
	}
	if got := fx.queue.items["q-c"].QueuePosition; got != 1 {
		t.Fatalf("remaining entry position = %d, want 1", got)
	}

	fx.reviewers.items["rv-4"] = domain.PotentialReviewer{ID: "rv-4", Name: "Dee", Email: "dee@uni.edu"}
	d, err := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-4"})
	if err != nil {
		t.Fatalf("EnqueueReviewer() error = %v", err)
	}
	if d.QueuePosition != 2 {
		t.Fatalf("new tail position = %d, want 2", d.QueuePosition)
	}
	if err := fx.uc.MoveQueueEntry(ctx, d.ID, domain.MoveUp); err != nil {
		t.Fatalf("MoveQueueEntry() error = %v", err)
	}
	if fx.queue.items[d.ID].QueuePosition != 1 || fx.queue.items["q-c"].QueuePosition != 2 {
		t.Fatalf("move did not swap: %+v", fx.queue.items)
	}
}

func TestRemoveQueueEntryKeepsPositionsDense(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	a, _ := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-1"})
	b, _ := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-2"})
	c, _ := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-3"})

	if err := fx.uc.RemoveQueueEntry(ctx, b.ID); err != nil {
		t.Fatalf("RemoveQueueEntry() error = %v", err)
	}
	if fx.queue.items[a.ID].QueuePosition != 1 || fx.queue.items[c.ID].QueuePosition != 2 {
		t.Fatalf("positions not dense: %+v", fx.queue.items)
	}
}

func TestMoveAndReorderQueue(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	a, _ := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-1"})
	b, _ := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-2"})
	c, _ := fx.uc.EnqueueReviewer(ctx, ports.EnqueueRequest{ManuscriptID: "ms-1", ReviewerID: "rv-3"})

	if err := fx.uc.MoveQueueEntry(ctx, c.ID, domain.MoveUp); err != nil {
		t.Fatalf("MoveQueueEntry() error = %v", err)
	}
	if fx.queue.items[c.ID].QueuePosition != 2 || fx.queue.items[b.ID].QueuePosition != 3 {
		t.Fatalf("move did not swap: %+v", fx.queue.items)
	}
	if err := fx.uc.MoveQueueEntry(ctx, a.ID, domain.MoveUp); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input moving head up, got %v", err)
	}

	if err := fx.uc.ReorderQueue(ctx, "ms-1", []string{b.ID, a.ID, c.ID}); err != nil {
		t.Fatalf("ReorderQueue() error = %v", err)
	}
	got := []int{fx.queue.items[b.ID].QueuePosition, fx.queue.items[a.ID].QueuePosition, fx.queue.items[c.ID].QueuePosition}
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Fatalf("positions mismatch (-want +got):\n%s", diff)
	}
	if err := fx.uc.ReorderQueue(ctx, "ms-1", []string{a.ID, b.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for partial order, got %v", err)
	}
}

func TestInvitationLifecycleHappyPath(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	inv, err := fx.uc.SendInvitation(ctx, "ms-1", "rv-1")
	if err != nil {
		t.Fatalf("SendInvitation() error = %v", err)
	}

	steps := []struct {
		name string
		run  func() (*domain.ReviewInvitation, error)
		want domain.InvitationStatus
	}{
		{"accept", func() (*domain.ReviewInvitation, error) { return fx.uc.RespondToInvitation(ctx, inv.ID, true) }, domain.InvitationAccepted},
		{"submit", func() (*domain.ReviewInvitation, error) { return fx.uc.SubmitReport(ctx, inv.ID) }, domain.InvitationReportSubmitted},
		{"complete", func() (*domain.ReviewInvitation, error) { return fx.uc.CompleteReview(ctx, inv.ID) }, domain.InvitationCompleted},
	}
	for _, step := range steps {
		got, err := step.run()
		if err != nil {
			t.Fatalf("%s: error = %v", step.name, err)
		}
		if got.Status != step.want || fx.invitations.items[inv.ID].Status != step.want {
			t.Fatalf("%s: status = %q, want %q", step.name, got.Status, step.want)
		}
	}
	if fx.invitations.items[inv.ID].ResponseDate == nil {
		t.Fatalf("response date not stored")
	}
}

func TestRespondToInvitationRejectsInvalidTransition(t *testing.T) {
	fx := newWorkflowFixture()
	fx.invitations.items["inv-1"] = domain.ReviewInvitation{ID: "inv-1", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationDeclined}
	if _, err := fx.uc.RespondToInvitation(context.Background(), "inv-1", true); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(fx.events.events) != 0 {
		t.Fatalf("no event expected on rejected transition")
	}
}

func TestRevokeInvitationWithRequeue(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	inv, _ := fx.uc.SendInvitation(ctx, "ms-1", "rv-1")

	revoked, err := fx.uc.RevokeInvitation(ctx, inv.ID, "editor changed mind", true)
	if err != nil {
		t.Fatalf("RevokeInvitation() error = %v", err)
	}
	if revoked.Status != domain.InvitationRevoked {
		t.Fatalf("status = %q", revoked.Status)
	}
	if _, err := fx.queue.FindByPair(ctx, "ms-1", "rv-1"); err != nil {
		t.Fatalf("reviewer not requeued: %v", err)
	}
	if _, err := fx.uc.RevokeInvitation(ctx, inv.ID, "", false); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("revoked must be final, got %v", err)
	}
}

func TestRevokeInvitationStandsWhenRequeueFails(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	inv, _ := fx.uc.SendInvitation(ctx, "ms-1", "rv-1")
	fx.queue.createErr = errors.New("db gone")

	revoked, err := fx.uc.RevokeInvitation(ctx, inv.ID, "", true)
	if err != nil {
		t.Fatalf("RevokeInvitation() error = %v", err)
	}
	if revoked.Status != domain.InvitationRevoked || fx.invitations.items[inv.ID].Status != domain.InvitationRevoked {
		t.Fatalf("revocation not stored: %+v", fx.invitations.items[inv.ID])
	}
	if len(fx.queue.items) != 0 {
		t.Fatalf("unexpected queue entries %+v", fx.queue.items)
	}
}

func TestInvalidateReportFromCompleted(t *testing.T) {
	fx := newWorkflowFixture()
	fx.invitations.items["inv-1"] = domain.ReviewInvitation{ID: "inv-1", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationCompleted}

	inv, err := fx.uc.InvalidateReport(context.Background(), "inv-1", "duplicate text")
	if err != nil {
		t.Fatalf("InvalidateReport() error = %v", err)
	}
	if inv.Status != domain.InvitationInvalidated || inv.ReportInvalidatedDate == nil {
		t.Fatalf("unexpected invitation %+v", inv)
	}
	last := fx.events.events[len(fx.events.events)-1]
	if last.From != string(domain.InvitationCompleted) || last.To != string(domain.InvitationInvalidated) {
		t.Fatalf("unexpected event %+v", last)
	}
}

func TestSendReminderIncrementsCount(t *testing.T) {
	fx := newWorkflowFixture()
	fx.invitations.items["inv-1"] = domain.ReviewInvitation{ID: "inv-1", ManuscriptID: "ms-1", ReviewerID: "rv-2", Status: domain.InvitationAccepted, ReminderCount: 1}

	inv, err := fx.uc.SendReminder(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("SendReminder() error = %v", err)
	}
	if inv.ReminderCount != 2 {
		t.Fatalf("reminder count = %d", inv.ReminderCount)
	}
	if diff := cmp.Diff([]string{"bob@uni.edu"}, fx.notifier.reminded); diff != "" {
		t.Fatalf("reminded mismatch (-want +got):\n%s", diff)
	}

	fx.invitations.items["inv-2"] = domain.ReviewInvitation{ID: "inv-2", ManuscriptID: "ms-1", ReviewerID: "rv-3", Status: domain.InvitationDeclined}
	if _, err := fx.uc.SendReminder(context.Background(), "inv-2"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestSetExpiration(t *testing.T) {
	fx := newWorkflowFixture()
	fx.invitations.items["inv-1"] = domain.ReviewInvitation{ID: "inv-1", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationPending}

	inv, err := fx.uc.SetExpiration(context.Background(), "inv-1", nil)
	if err != nil {
		t.Fatalf("SetExpiration() error = %v", err)
	}
	if !inv.InvitationExpirationDate.Equal(fixedNow.Add(DefaultResponseWindow)) {
		t.Fatalf("unexpected expiration %v", inv.InvitationExpirationDate)
	}

	at := fixedNow.AddDate(0, 1, 0)
	inv, err = fx.uc.SetExpiration(context.Background(), "inv-1", &at)
	if err != nil {
		t.Fatalf("SetExpiration() error = %v", err)
	}
	if !inv.InvitationExpirationDate.Equal(at) {
		t.Fatalf("unexpected expiration %v", inv.InvitationExpirationDate)
	}
}

func TestSweepExpiredPersistsDerivedStatuses(t *testing.T) {
	fx := newWorkflowFixture()
	past := fixedNow.AddDate(0, 0, -1)
	future := fixedNow.AddDate(0, 0, 1)
	fx.invitations.items = map[string]domain.ReviewInvitation{
		"a": {ID: "a", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationPending, InvitationExpirationDate: &past},
		"b": {ID: "b", ManuscriptID: "ms-1", ReviewerID: "rv-2", Status: domain.InvitationAccepted, DueDate: &past},
		"c": {ID: "c", ManuscriptID: "ms-1", ReviewerID: "rv-3", Status: domain.InvitationAccepted, DueDate: &future},
	}

	result, err := fx.uc.SweepExpired(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if diff := cmp.Diff(ports.SweepResult{Expired: 1, Overdue: 1}, result); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if fx.invitations.items["a"].Status != domain.InvitationExpired ||
		fx.invitations.items["b"].Status != domain.InvitationOverdue ||
		fx.invitations.items["c"].Status != domain.InvitationAccepted {
		t.Fatalf("unexpected statuses %+v", fx.invitations.items)
	}
}

func TestSweepExpiredCountsFailures(t *testing.T) {
	fx := newWorkflowFixture()
	past := fixedNow.AddDate(0, 0, -1)
	fx.invitations.items["a"] = domain.ReviewInvitation{ID: "a", ManuscriptID: "ms-1", ReviewerID: "rv-1", Status: domain.InvitationPending, InvitationExpirationDate: &past}
	fx.invitations.updateErr = errors.New("write failed")

	result, err := fx.uc.SweepExpired(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if result.Failed != 1 || result.Expired != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestUpdateManuscriptStatus(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()
	fx.manuscripts.items["ms-1"] = domain.Manuscript{ID: "ms-1", Status: domain.ManuscriptSubmitted}

	ms, err := fx.uc.UpdateManuscriptStatus(ctx, "ms-1", domain.ManuscriptUnderReview)
	if err != nil {
		t.Fatalf("UpdateManuscriptStatus() error = %v", err)
	}
	if ms.Status != domain.ManuscriptUnderReview || fx.manuscripts.items["ms-1"].Status != domain.ManuscriptUnderReview {
		t.Fatalf("status not stored: %+v", fx.manuscripts.items["ms-1"])
	}
	if !fx.manuscripts.items["ms-1"].UpdatedAt.Equal(fixedNow) {
		t.Fatalf("updated_at = %v", fx.manuscripts.items["ms-1"].UpdatedAt)
	}
	last := fx.events.events[len(fx.events.events)-1]
	if last.Type != domain.EventManuscriptStatus || last.From != "submitted" || last.To != "under_review" {
		t.Fatalf("unexpected event %+v", last)
	}

	if _, err := fx.uc.UpdateManuscriptStatus(ctx, "ms-1", domain.ManuscriptUnderReview); err != nil {
		t.Fatalf("repeat status: %v", err)
	}
	if len(fx.events.events) != 1 {
		t.Fatalf("unchanged status must not publish, got %d events", len(fx.events.events))
	}
}

func TestUpdateManuscriptStatusRejectsUnknownStatus(t *testing.T) {
	fx := newWorkflowFixture()
	ctx := context.Background()

	if _, err := fx.uc.UpdateManuscriptStatus(ctx, "ms-1", "in_limbo"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := fx.uc.UpdateManuscriptStatus(ctx, "missing", domain.ManuscriptAccepted); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if fx.manuscripts.items["ms-1"].Status != "" {
		t.Fatalf("status must be unchanged, got %q", fx.manuscripts.items["ms-1"].Status)
	}
}
