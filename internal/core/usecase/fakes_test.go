package usecase

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type manuscriptRepoFake struct {
	items map[string]domain.Manuscript
}

func newManuscriptRepoFake(items ...domain.Manuscript) *manuscriptRepoFake {
	f := &manuscriptRepoFake{items: map[string]domain.Manuscript{}}
	for _, ms := range items {
		f.items[ms.ID] = ms
	}
	return f
}

func (f *manuscriptRepoFake) GetByID(_ context.Context, id string) (*domain.Manuscript, error) {
	ms, ok := f.items[id]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "get manuscript", "manuscript %s", id)
	}
	return &ms, nil
}

func (f *manuscriptRepoFake) UpdateStatus(_ context.Context, id string, status domain.ManuscriptStatus, at time.Time) error {
	ms, ok := f.items[id]
	if !ok {
		return domain.NewError(domain.ErrNotFound, "update manuscript status", "manuscript %s", id)
	}
	ms.Status = status
	ms.UpdatedAt = at
	f.items[id] = ms
	return nil
}

func (f *manuscriptRepoFake) Resolve(ctx context.Context, identifier string) (*domain.Manuscript, error) {
	for _, ms := range f.items {
		if ms.CustomID == identifier || ms.SystemID == identifier || ms.SubmissionID == identifier {
			copyMs := ms
			return &copyMs, nil
		}
	}
	return f.GetByID(ctx, identifier)
}

type reviewerRepoFake struct {
	items   map[string]domain.PotentialReviewer
	matches []domain.ReviewerMatch
	pubs    []domain.ReviewerPublication
}

func newReviewerRepoFake(items ...domain.PotentialReviewer) *reviewerRepoFake {
	f := &reviewerRepoFake{items: map[string]domain.PotentialReviewer{}}
	for _, r := range items {
		f.items[r.ID] = r
	}
	return f
}

func (f *reviewerRepoFake) GetByID(_ context.Context, id string) (*domain.PotentialReviewer, error) {
	r, ok := f.items[id]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "get reviewer", "reviewer %s", id)
	}
	return &r, nil
}

func (f *reviewerRepoFake) ListByIDs(_ context.Context, ids []string) ([]domain.PotentialReviewer, error) {
	out := make([]domain.PotentialReviewer, 0, len(ids))
	for _, id := range ids {
		if r, ok := f.items[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *reviewerRepoFake) ListMatches(_ context.Context, manuscriptID string) ([]domain.ReviewerMatch, error) {
	out := make([]domain.ReviewerMatch, 0)
	for _, m := range f.matches {
		if m.ManuscriptID == manuscriptID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *reviewerRepoFake) ListPublications(_ context.Context, ids []string) ([]domain.ReviewerPublication, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]domain.ReviewerPublication, 0)
	for _, p := range f.pubs {
		if want[p.ReviewerID] {
			out = append(out, p)
		}
	}
	return out, nil
}

type invitationRepoFake struct {
	items     map[string]domain.ReviewInvitation
	updateErr error
}

func newInvitationRepoFake(items ...domain.ReviewInvitation) *invitationRepoFake {
	f := &invitationRepoFake{items: map[string]domain.ReviewInvitation{}}
	for _, inv := range items {
		f.items[inv.ID] = inv
	}
	return f
}

// insert mirrors the partial unique index on active invitations.
func (f *invitationRepoFake) insert(inv *domain.ReviewInvitation) error {
	if inv.Status.Active() {
		for _, other := range f.items {
			if other.ManuscriptID == inv.ManuscriptID && other.ReviewerID == inv.ReviewerID && other.Status.Active() {
				return domain.NewError(domain.ErrConflict, "insert invitation", "duplicate active invitation")
			}
		}
	}
	f.items[inv.ID] = *inv
	return nil
}

func (f *invitationRepoFake) Create(_ context.Context, inv *domain.ReviewInvitation) error {
	return f.insert(inv)
}

func (f *invitationRepoFake) GetByID(_ context.Context, id string) (*domain.ReviewInvitation, error) {
	inv, ok := f.items[id]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "get invitation", "invitation %s", id)
	}
	return &inv, nil
}

func (f *invitationRepoFake) Update(_ context.Context, inv *domain.ReviewInvitation) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.items[inv.ID]; !ok {
		return domain.NewError(domain.ErrNotFound, "update invitation", "invitation %s", inv.ID)
	}
	f.items[inv.ID] = *inv
	return nil
}

func (f *invitationRepoFake) list(keep func(domain.ReviewInvitation) bool) []domain.ReviewInvitation {
	out := make([]domain.ReviewInvitation, 0)
	for _, inv := range f.items {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *invitationRepoFake) ListByManuscript(_ context.Context, manuscriptID string) ([]domain.ReviewInvitation, error) {
	return f.list(func(inv domain.ReviewInvitation) bool { return inv.ManuscriptID == manuscriptID }), nil
}

func (f *invitationRepoFake) ListByPair(_ context.Context, manuscriptID, reviewerID string) ([]domain.ReviewInvitation, error) {
	return f.list(func(inv domain.ReviewInvitation) bool {
		return inv.ManuscriptID == manuscriptID && inv.ReviewerID == reviewerID
	}), nil
}

func (f *invitationRepoFake) ListStale(_ context.Context, now time.Time) ([]domain.ReviewInvitation, error) {
	return f.list(func(inv domain.ReviewInvitation) bool {
		_, ok := domain.DeriveBadge(inv, now)
		return ok
	}), nil
}

type queueRepoFake struct {
	items       map[string]domain.InvitationQueueEntry
	invitations *invitationRepoFake
	promoteErr  map[string]error
	createErr   error
}

func newQueueRepoFake(invitations *invitationRepoFake, items ...domain.InvitationQueueEntry) *queueRepoFake {
	f := &queueRepoFake{items: map[string]domain.InvitationQueueEntry{}, invitations: invitations}
	for _, e := range items {
		f.items[e.ID] = e
	}
	return f
}

func (f *queueRepoFake) Create(_ context.Context, entry *domain.InvitationQueueEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, other := range f.items {
		if other.ManuscriptID == entry.ManuscriptID && other.ReviewerID == entry.ReviewerID {
			return domain.NewError(domain.ErrConflict, "create queue entry", "duplicate")
		}
	}
	f.items[entry.ID] = *entry
	return nil
}

func (f *queueRepoFake) GetByID(_ context.Context, id string) (*domain.InvitationQueueEntry, error) {
	e, ok := f.items[id]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "get queue entry", "queue entry %s", id)
	}
	return &e, nil
}

func (f *queueRepoFake) FindByPair(_ context.Context, manuscriptID, reviewerID string) (*domain.InvitationQueueEntry, error) {
	for _, e := range f.items {
		if e.ManuscriptID == manuscriptID && e.ReviewerID == reviewerID {
			copyEntry := e
			return &copyEntry, nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, "find queue entry", "no entry")
}

func (f *queueRepoFake) ListByManuscript(_ context.Context, manuscriptID string) ([]domain.InvitationQueueEntry, error) {
	out := make([]domain.InvitationQueueEntry, 0)
	for _, e := range f.items {
		if e.ManuscriptID == manuscriptID {
			out = append(out, e)
		}
	}
	domain.SortQueue(out)
	return out, nil
}

func (f *queueRepoFake) ListDue(_ context.Context, now time.Time) ([]domain.InvitationQueueEntry, error) {
	out := make([]domain.InvitationQueueEntry, 0)
	for _, e := range f.items {
		if !e.ScheduledSendDate.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *queueRepoFake) UpdatePositions(_ context.Context, _ string, updates []domain.QueuePositionUpdate) error {
	for _, u := range updates {
		e := f.items[u.ID]
		e.QueuePosition = u.QueuePosition
		f.items[u.ID] = e
	}
	return nil
}

func (f *queueRepoFake) Remove(_ context.Context, entry *domain.InvitationQueueEntry) error {
	stored, ok := f.items[entry.ID]
	if !ok {
		return domain.NewError(domain.ErrNotFound, "remove queue entry", "queue entry %s", entry.ID)
	}
	delete(f.items, entry.ID)
	for id, e := range f.items {
		if e.ManuscriptID == stored.ManuscriptID && e.QueuePosition > stored.QueuePosition {
			e.QueuePosition--
			f.items[id] = e
		}
	}
	return nil
}

func (f *queueRepoFake) Promote(ctx context.Context, entry *domain.InvitationQueueEntry, inv *domain.ReviewInvitation) error {
	if err := f.promoteErr[entry.ID]; err != nil {
		return err
	}
	if err := f.invitations.insert(inv); err != nil {
		return err
	}
	return f.Remove(ctx, entry)
}

type eventsFake struct {
	events []domain.InvitationEvent
	err    error
}

func (f *eventsFake) PublishInvitationEvent(_ context.Context, event domain.InvitationEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *eventsFake) types() []domain.InvitationEventType {
	out := make([]domain.InvitationEventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type notifierFake struct {
	invited  []string
	reminded []string
	err      error
}

func (f *notifierFake) NotifyInvitation(_ context.Context, _ domain.Manuscript, r domain.PotentialReviewer, _ domain.ReviewInvitation) error {
	if f.err != nil {
		return f.err
	}
	f.invited = append(f.invited, r.Email)
	return nil
}

func (f *notifierFake) NotifyReminder(_ context.Context, _ domain.Manuscript, r domain.PotentialReviewer, _ domain.ReviewInvitation) error {
	if f.err != nil {
		return f.err
	}
	f.reminded = append(f.reminded, r.Email)
	return nil
}

type storageFake struct {
	saved map[string]string
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "open archived payload", "key %s", key)
	}
	return io.NopCloser(strings.NewReader(raw)), nil
}

type workflowFixture struct {
	manuscripts *manuscriptRepoFake
	reviewers   *reviewerRepoFake
	invitations *invitationRepoFake
	queue       *queueRepoFake
	events      *eventsFake
	notifier    *notifierFake
	uc          *InvitationWorkflowUseCase
}

func newWorkflowFixture() *workflowFixture {
	fx := &workflowFixture{
		manuscripts: newManuscriptRepoFake(domain.Manuscript{ID: "ms-1", CustomID: "7832738", Title: "Graphs"}),
		reviewers: newReviewerRepoFake(
			domain.PotentialReviewer{ID: "rv-1", Name: "Ada", Email: "ada@uni.edu"},
			domain.PotentialReviewer{ID: "rv-2", Name: "Bob", Email: "bob@uni.edu"},
			domain.PotentialReviewer{ID: "rv-3", Name: "Cy", Email: "cy@uni.edu"},
		),
		invitations: newInvitationRepoFake(),
		events:      &eventsFake{},
		notifier:    &notifierFake{},
	}
	fx.queue = newQueueRepoFake(fx.invitations)
	fx.uc = NewInvitationWorkflowUseCase(
		fx.manuscripts, fx.reviewers, fx.invitations, fx.queue, fx.events, fx.notifier,
		WorkflowOptions{Now: fixedClock},
	)
	return fx
}
