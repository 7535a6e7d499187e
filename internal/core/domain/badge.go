package domain

import "time"

// BadgeStatus is a secondary state derived from dates, layered on top of the
// stored invitation status.
type BadgeStatus string

const (
	BadgeOverdue BadgeStatus = "overdue"
	BadgeExpired BadgeStatus = "expired"
)

type Badge struct {
	Status BadgeStatus `json:"status"`
	Label  string      `json:"label"`
	Color  Color       `json:"color"`
}

// DeriveBadge computes the date-driven badge for an invitation. Only accepted
// invitations can be overdue and only pending invitations can expire; the
// comparison is strict, so a deadline equal to now has not passed yet.
func DeriveBadge(inv ReviewInvitation, now time.Time) (Badge, bool) {
	switch inv.Status {
	case InvitationAccepted:
		if inv.DueDate != nil && inv.DueDate.Before(now) {
			return Badge{Status: BadgeOverdue, Label: "Overdue", Color: ColorWarning}, true
		}
	case InvitationPending:
		if inv.InvitationExpirationDate != nil && inv.InvitationExpirationDate.Before(now) {
			return Badge{Status: BadgeExpired, Label: "Expired", Color: ColorError}, true
		}
	}
	return Badge{}, false
}

type StatusDisplay struct {
	PrimaryStatus InvitationStatus `json:"primary_status"`
	PrimaryLabel  string           `json:"primary_label"`
	PrimaryColor  Color            `json:"primary_color"`
	Badge         *Badge           `json:"badge,omitempty"`
}

// InvitationStatusLabel returns the display label of a stored invitation status.
func InvitationStatusLabel(status InvitationStatus) string {
	switch status {
	case InvitationPending:
		return "Pending"
	case InvitationAccepted:
		return "Accepted"
	case InvitationDeclined:
		return "Declined"
	case InvitationExpired:
		return "Expired"
	case InvitationCompleted:
		return "Completed"
	case InvitationOverdue:
		return "Overdue"
	case InvitationReportSubmitted:
		return "Submitted"
	case InvitationRevoked:
		return "Revoked"
	case InvitationInvalidated:
		return "Invalidated"
	default:
		return Humanize(string(status))
	}
}

func InvitationStatusColor(status InvitationStatus) Color {
	switch status {
	case InvitationAccepted:
		return ColorPrimary
	case InvitationReportSubmitted, InvitationCompleted:
		return ColorSuccess
	case InvitationOverdue:
		return ColorWarning
	case InvitationExpired, InvitationInvalidated:
		return ColorError
	default:
		return ColorDefault
	}
}

func DisplayFor(inv ReviewInvitation, now time.Time) StatusDisplay {
	display := StatusDisplay{
		PrimaryStatus: inv.Status,
		PrimaryLabel:  InvitationStatusLabel(inv.Status),
		PrimaryColor:  InvitationStatusColor(inv.Status),
	}
	if badge, ok := DeriveBadge(inv, now); ok {
		display.Badge = &badge
	}
	return display
}

// EffectiveStatus promotes a derived badge to a status: an accepted
// invitation past its due date reads as overdue, a pending one past its
// expiration reads as expired.
func EffectiveStatus(inv ReviewInvitation, now time.Time) InvitationStatus {
	badge, ok := DeriveBadge(inv, now)
	if !ok {
		return inv.Status
	}
	switch badge.Status {
	case BadgeOverdue:
		return InvitationOverdue
	case BadgeExpired:
		return InvitationExpired
	default:
		return inv.Status
	}
}
