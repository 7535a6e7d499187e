package domain

import "time"

type InvitationStatus string

const (
	InvitationPending         InvitationStatus = "pending"
	InvitationAccepted        InvitationStatus = "accepted"
	InvitationDeclined        InvitationStatus = "declined"
	InvitationExpired         InvitationStatus = "expired"
	InvitationCompleted       InvitationStatus = "completed"
	InvitationOverdue         InvitationStatus = "overdue"
	InvitationReportSubmitted InvitationStatus = "report_submitted"
	// Administrative overrides. Both are final.
	InvitationRevoked     InvitationStatus = "revoked"
	InvitationInvalidated InvitationStatus = "invalidated"
)

var AllInvitationStatuses = []InvitationStatus{
	InvitationPending,
	InvitationAccepted,
	InvitationDeclined,
	InvitationExpired,
	InvitationCompleted,
	InvitationOverdue,
	InvitationReportSubmitted,
	InvitationRevoked,
	InvitationInvalidated,
}

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined, InvitationExpired,
		InvitationCompleted, InvitationOverdue, InvitationReportSubmitted,
		InvitationRevoked, InvitationInvalidated:
		return true
	default:
		return false
	}
}

// Active reports whether an invitation in this status still occupies the
// manuscript/reviewer slot.
func (s InvitationStatus) Active() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationOverdue:
		return true
	default:
		return false
	}
}

// Terminal reports whether no reviewer-driven transition can leave the status.
func (s InvitationStatus) Terminal() bool {
	return !s.Active()
}

// ActiveInvitationStatuses is the status set guarded by the store's partial
// unique index on (manuscript_id, reviewer_id).
var ActiveInvitationStatuses = []InvitationStatus{
	InvitationPending,
	InvitationAccepted,
	InvitationOverdue,
}

type ReviewInvitation struct {
	ID                       string           `json:"id"`
	ManuscriptID             string           `json:"manuscript_id"`
	ReviewerID               string           `json:"reviewer_id"`
	InvitedDate              time.Time        `json:"invited_date"`
	DueDate                  *time.Time       `json:"due_date,omitempty"`
	InvitationExpirationDate *time.Time       `json:"invitation_expiration_date,omitempty"`
	Status                   InvitationStatus `json:"status"`
	ResponseDate             *time.Time       `json:"response_date,omitempty"`
	QueuePosition            *int             `json:"queue_position,omitempty"`
	InvitationRound          int              `json:"invitation_round"`
	ReminderCount            int              `json:"reminder_count"`
	Notes                    string           `json:"notes,omitempty"`
	ReportInvalidatedDate    *time.Time       `json:"report_invalidated_date,omitempty"`
	UpdatedAt                time.Time        `json:"updated_at"`
}

// InvitationView is an invitation enriched for listing endpoints.
type InvitationView struct {
	ReviewInvitation
	ReviewerName        string        `json:"reviewer_name"`
	ReviewerAffiliation string        `json:"reviewer_affiliation,omitempty"`
	Display             StatusDisplay `json:"display"`
}

type QueuePriority string

const (
	PriorityHigh   QueuePriority = "high"
	PriorityNormal QueuePriority = "normal"
	PriorityLow    QueuePriority = "low"
)

func (p QueuePriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank orders priorities for dispatch; lower dispatches first.
func (p QueuePriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

type InvitationQueueEntry struct {
	ID                string        `json:"id"`
	ManuscriptID      string        `json:"manuscript_id"`
	ReviewerID        string        `json:"reviewer_id"`
	QueuePosition     int           `json:"queue_position"`
	CreatedDate       time.Time     `json:"created_date"`
	ScheduledSendDate time.Time     `json:"scheduled_send_date"`
	Priority          QueuePriority `json:"priority"`
	Notes             string        `json:"notes,omitempty"`
}

type QueueEntryView struct {
	InvitationQueueEntry
	ReviewerName        string `json:"reviewer_name"`
	ReviewerAffiliation string `json:"reviewer_affiliation,omitempty"`
}

// InvitationEventType names a lifecycle event published to the event bus.
type InvitationEventType string

const (
	EventReviewerQueued      InvitationEventType = "reviewer.queued"
	EventQueueEntryRemoved   InvitationEventType = "queue.removed"
	EventInvitationSent      InvitationEventType = "invitation.sent"
	EventInvitationResponded InvitationEventType = "invitation.responded"
	EventReportSubmitted     InvitationEventType = "invitation.report_submitted"
	EventReviewCompleted     InvitationEventType = "invitation.completed"
	EventInvitationRevoked   InvitationEventType = "invitation.revoked"
	EventReportInvalidated   InvitationEventType = "invitation.invalidated"
	EventReminderSent        InvitationEventType = "invitation.reminder"
	EventInvitationSwept     InvitationEventType = "invitation.swept"
	EventManuscriptStatus    InvitationEventType = "manuscript.status_changed"
)

type InvitationEvent struct {
	Type         InvitationEventType `json:"type"`
	InvitationID string              `json:"invitation_id,omitempty"`
	QueueEntryID string              `json:"queue_entry_id,omitempty"`
	ManuscriptID string              `json:"manuscript_id"`
	ReviewerID   string              `json:"reviewer_id"`
	From         string              `json:"from,omitempty"`
	To           string              `json:"to,omitempty"`
	At           time.Time           `json:"at"`
}
