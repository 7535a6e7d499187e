package domain

import (
	"fmt"
	"time"
)

// InvitationAction is an event that moves an invitation between statuses.
type InvitationAction string

const (
	ActionAccept       InvitationAction = "accept"
	ActionDecline      InvitationAction = "decline"
	ActionExpire       InvitationAction = "expire"
	ActionMarkOverdue  InvitationAction = "mark_overdue"
	ActionSubmitReport InvitationAction = "submit_report"
	ActionComplete     InvitationAction = "complete"
	ActionRevoke       InvitationAction = "revoke"
	ActionInvalidate   InvitationAction = "invalidate"
)

var transitions = map[InvitationAction]struct {
	from []InvitationStatus
	to   InvitationStatus
}{
	ActionAccept:       {from: []InvitationStatus{InvitationPending}, to: InvitationAccepted},
	ActionDecline:      {from: []InvitationStatus{InvitationPending}, to: InvitationDeclined},
	ActionExpire:       {from: []InvitationStatus{InvitationPending}, to: InvitationExpired},
	ActionMarkOverdue:  {from: []InvitationStatus{InvitationAccepted}, to: InvitationOverdue},
	ActionSubmitReport: {from: []InvitationStatus{InvitationAccepted, InvitationOverdue}, to: InvitationReportSubmitted},
	ActionComplete:     {from: []InvitationStatus{InvitationReportSubmitted}, to: InvitationCompleted},
	ActionRevoke:       {from: ActiveInvitationStatuses, to: InvitationRevoked},
	ActionInvalidate: {
		from: []InvitationStatus{
			InvitationPending, InvitationAccepted, InvitationOverdue,
			InvitationReportSubmitted, InvitationCompleted,
		},
		to: InvitationInvalidated,
	},
}

// NextStatus resolves the status reached by applying action to current.
func NextStatus(current InvitationStatus, action InvitationAction) (InvitationStatus, error) {
	rule, ok := transitions[action]
	if !ok {
		return "", NewError(ErrInvalidInput, "next status", "unknown action %q", action)
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, nil
		}
	}
	return "", NewError(ErrInvalidTransition, "next status", "cannot %s an invitation in status %q", action, current)
}

// CanApply reports whether action is allowed from current.
func CanApply(current InvitationStatus, action InvitationAction) bool {
	_, err := NextStatus(current, action)
	return err == nil
}

// ApplyAction mutates inv according to action and returns the previous status.
// A pending invitation whose expiration date has passed can no longer be
// accepted or declined.
func ApplyAction(inv *ReviewInvitation, action InvitationAction, now time.Time, reason string) (InvitationStatus, error) {
	if inv == nil {
		return "", NewError(ErrInvalidInput, "apply action", "invitation is nil")
	}
	next, err := NextStatus(inv.Status, action)
	if err != nil {
		return "", err
	}
	if action == ActionAccept || action == ActionDecline {
		if badge, ok := DeriveBadge(*inv, now); ok && badge.Status == BadgeExpired {
			return "", NewError(ErrInvalidTransition, "apply action", "invitation %s expired at %s", inv.ID, inv.InvitationExpirationDate.Format(time.RFC3339))
		}
	}

	previous := inv.Status
	inv.Status = next
	inv.UpdatedAt = now

	switch action {
	case ActionAccept, ActionDecline:
		inv.ResponseDate = timePtr(now)
	case ActionSubmitReport:
		if inv.ResponseDate == nil {
			inv.ResponseDate = timePtr(now)
		}
	case ActionRevoke:
		inv.Notes = appendNote(inv.Notes, noteOrDefault(reason, "Revoked by editor"))
	case ActionInvalidate:
		inv.ReportInvalidatedDate = timePtr(now)
		if reason != "" {
			inv.Notes = appendNote(inv.Notes, "Invalidated: "+reason)
		} else {
			inv.Notes = appendNote(inv.Notes, "Invalidated by editor")
		}
	}
	return previous, nil
}

// NextRound returns the round number for a new invitation of the pair given
// its earlier invitations.
func NextRound(previous []ReviewInvitation) int {
	maxRound := 0
	for _, inv := range previous {
		if inv.InvitationRound > maxRound {
			maxRound = inv.InvitationRound
		}
	}
	return maxRound + 1
}

// HasActiveInvitation reports whether any invitation of the pair still holds
// the manuscript/reviewer slot.
func HasActiveInvitation(invitations []ReviewInvitation) bool {
	for _, inv := range invitations {
		if inv.Status.Active() {
			return true
		}
	}
	return false
}

func appendNote(notes, note string) string {
	entry := fmt.Sprintf("[%s]", note)
	if notes == "" {
		return entry
	}
	return notes + " " + entry
}

func noteOrDefault(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return fallback + ": " + reason
}

func timePtr(t time.Time) *time.Time {
	return &t
}
