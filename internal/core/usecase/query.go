package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

type ManuscriptQueryUseCase struct {
	manuscripts ports.ManuscriptRepository
	reviewers   ports.ReviewerRepository
	invitations ports.InvitationRepository
	queue       ports.QueueRepository
	report      ports.ReportWriter
	now         func() time.Time
}

func NewManuscriptQueryUseCase(
	manuscripts ports.ManuscriptRepository,
	reviewers ports.ReviewerRepository,
	invitations ports.InvitationRepository,
	queue ports.QueueRepository,
	report ports.ReportWriter,
	now func() time.Time,
) *ManuscriptQueryUseCase {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ManuscriptQueryUseCase{
		manuscripts: manuscripts,
		reviewers:   reviewers,
		invitations: invitations,
		queue:       queue,
		report:      report,
		now:         now,
	}
}

func (uc *ManuscriptQueryUseCase) GetManuscript(ctx context.Context, identifier string) (*domain.Manuscript, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "get manuscript", "identifier is required")
	}
	ms, err := uc.manuscripts.Resolve(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("resolve manuscript: %w", err)
	}
	return ms, nil
}

// ListReviewers merges matched reviewers with reviewers that only appear in
// the queue or in invitations, tags each with its workflow status, and
// applies the query's filters and ordering.
func (uc *ManuscriptQueryUseCase) ListReviewers(ctx context.Context, q domain.ReviewerQuery) ([]domain.ReviewerWithStatus, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ms, err := uc.GetManuscript(ctx, q.ManuscriptID)
	if err != nil {
		return nil, err
	}

	matches, err := uc.reviewers.ListMatches(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	entries, err := uc.queue.ListByManuscript(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	invs, err := uc.invitations.ListByManuscript(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}

	scores := make(map[string]int, len(matches))
	ids := make([]string, 0, len(matches)+len(entries)+len(invs))
	addID := func(id string) {
		if _, seen := scores[id]; seen {
			return
		}
		scores[id] = 0
		ids = append(ids, id)
	}
	for _, m := range matches {
		addID(m.ReviewerID)
		scores[m.ReviewerID] = m.MatchScore
	}
	queueByReviewer := make(map[string]domain.InvitationQueueEntry, len(entries))
	for _, e := range entries {
		addID(e.ReviewerID)
		queueByReviewer[e.ReviewerID] = e
	}
	latestInvitation := make(map[string]domain.ReviewInvitation, len(invs))
	for _, inv := range invs {
		addID(inv.ReviewerID)
		if cur, ok := latestInvitation[inv.ReviewerID]; !ok || newerInvitation(inv, cur) {
			latestInvitation[inv.ReviewerID] = inv
		}
	}
	if len(ids) == 0 {
		return []domain.ReviewerWithStatus{}, nil
	}

	profiles, err := uc.reviewers.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}
	pubs, err := uc.reviewers.ListPublications(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	pubsByReviewer := make(map[string][]domain.ReviewerPublication, len(ids))
	for _, p := range pubs {
		pubsByReviewer[p.ReviewerID] = append(pubsByReviewer[p.ReviewerID], p)
	}

	now := uc.now()
	out := make([]domain.ReviewerWithStatus, 0, len(profiles))
	for _, profile := range profiles {
		item := domain.ReviewerWithStatus{
			PotentialReviewer: profile,
			MatchScore:        scores[profile.ID],
			Profile:           domain.BuildProfileStats(profile, pubsByReviewer[profile.ID], ms.Journal, now),
		}
		if entry, ok := queueByReviewer[profile.ID]; ok {
			position := entry.QueuePosition
			scheduled := entry.ScheduledSendDate
			item.InvitationStatus = domain.WorkflowStatusQueued
			item.QueueEntryID = entry.ID
			item.QueuePosition = &position
			item.Priority = entry.Priority
			item.ScheduledSend = &scheduled
		} else if inv, ok := latestInvitation[profile.ID]; ok {
			invited := inv.InvitedDate
			item.InvitationStatus = string(inv.Status)
			item.InvitationID = inv.ID
			item.InvitedDate = &invited
			item.ResponseDate = inv.ResponseDate
			item.DueDate = inv.DueDate
		}
		out = append(out, item)
	}
	return domain.ApplyReviewerQuery(out, q), nil
}

func newerInvitation(a, b domain.ReviewInvitation) bool {
	if a.InvitationRound != b.InvitationRound {
		return a.InvitationRound > b.InvitationRound
	}
	return a.InvitedDate.After(b.InvitedDate)
}

func (uc *ManuscriptQueryUseCase) ListInvitations(ctx context.Context, manuscriptID string) ([]domain.InvitationView, error) {
	ms, err := uc.GetManuscript(ctx, manuscriptID)
	if err != nil {
		return nil, err
	}
	invs, err := uc.invitations.ListByManuscript(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	names, err := uc.reviewerIndex(ctx, invitationReviewerIDs(invs))
	if err != nil {
		return nil, err
	}

	now := uc.now()
	out := make([]domain.InvitationView, 0, len(invs))
	for _, inv := range invs {
		reviewer := names[inv.ReviewerID]
		out = append(out, domain.InvitationView{
			ReviewInvitation:    inv,
			ReviewerName:        reviewer.Name,
			ReviewerAffiliation: reviewer.Affiliation,
			Display:             domain.DisplayFor(inv, now),
		})
	}
	return out, nil
}

func (uc *ManuscriptQueryUseCase) ListQueue(ctx context.Context, manuscriptID string) ([]domain.QueueEntryView, error) {
	ms, err := uc.GetManuscript(ctx, manuscriptID)
	if err != nil {
		return nil, err
	}
	entries, err := uc.queue.ListByManuscript(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	domain.SortQueue(entries)

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ReviewerID)
	}
	names, err := uc.reviewerIndex(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.QueueEntryView, 0, len(entries))
	for _, e := range entries {
		reviewer := names[e.ReviewerID]
		out = append(out, domain.QueueEntryView{
			InvitationQueueEntry: e,
			ReviewerName:         reviewer.Name,
			ReviewerAffiliation:  reviewer.Affiliation,
		})
	}
	return out, nil
}

func (uc *ManuscriptQueryUseCase) InvitationStats(ctx context.Context, manuscriptID string) (domain.InvitationMetrics, error) {
	ms, err := uc.GetManuscript(ctx, manuscriptID)
	if err != nil {
		return domain.InvitationMetrics{}, err
	}
	invs, err := uc.invitations.ListByManuscript(ctx, ms.ID)
	if err != nil {
		return domain.InvitationMetrics{}, fmt.Errorf("list invitations: %w", err)
	}
	return domain.AggregateInvitationsAt(invs, uc.now()), nil
}

func (uc *ManuscriptQueryUseCase) ExportInvitations(ctx context.Context, manuscriptID string, w io.Writer) error {
	if uc.report == nil {
		return domain.NewError(domain.ErrTemporary, "export invitations", "report writer is not configured")
	}
	ms, err := uc.GetManuscript(ctx, manuscriptID)
	if err != nil {
		return err
	}
	rows, err := uc.ListInvitations(ctx, ms.ID)
	if err != nil {
		return err
	}
	invs := make([]domain.ReviewInvitation, 0, len(rows))
	for _, row := range rows {
		invs = append(invs, row.ReviewInvitation)
	}
	if err := uc.report.WriteInvitationReport(w, *ms, rows, domain.AggregateInvitationsAt(invs, uc.now())); err != nil {
		return fmt.Errorf("write invitation report: %w", err)
	}
	return nil
}

func (uc *ManuscriptQueryUseCase) reviewerIndex(ctx context.Context, ids []string) (map[string]domain.PotentialReviewer, error) {
	index := make(map[string]domain.PotentialReviewer, len(ids))
	if len(ids) == 0 {
		return index, nil
	}
	reviewers, err := uc.reviewers.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}
	for _, r := range reviewers {
		index[r.ID] = r
	}
	return index, nil
}

func invitationReviewerIDs(invs []domain.ReviewInvitation) []string {
	seen := make(map[string]struct{}, len(invs))
	ids := make([]string, 0, len(invs))
	for _, inv := range invs {
		if _, ok := seen[inv.ReviewerID]; ok {
			continue
		}
		seen[inv.ReviewerID] = struct{}{}
		ids = append(ids, inv.ReviewerID)
	}
	return ids
}
