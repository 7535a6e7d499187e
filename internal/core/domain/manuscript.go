package domain

import "time"

type ManuscriptStatus string

const (
	ManuscriptSubmitted               ManuscriptStatus = "submitted"
	ManuscriptPendingEditorAssignment ManuscriptStatus = "pending_editor_assignment"
	ManuscriptAwaitingReviewers       ManuscriptStatus = "awaiting_reviewers"
	ManuscriptUnderReview             ManuscriptStatus = "under_review"
	ManuscriptReviewsInProgress       ManuscriptStatus = "reviews_in_progress"
	ManuscriptReviewsComplete         ManuscriptStatus = "reviews_complete"
	ManuscriptRevisionRequired        ManuscriptStatus = "revision_required"
	ManuscriptMinorRevision           ManuscriptStatus = "minor_revision"
	ManuscriptMajorRevision           ManuscriptStatus = "major_revision"
	ManuscriptConditionallyAccepted   ManuscriptStatus = "conditionally_accepted"
	ManuscriptAccepted                ManuscriptStatus = "accepted"
	ManuscriptRejected                ManuscriptStatus = "rejected"
	ManuscriptDeskRejected            ManuscriptStatus = "desk_rejected"
	ManuscriptWithdrawn               ManuscriptStatus = "withdrawn"
)

// AllManuscriptStatuses lists every manuscript status in workflow order.
var AllManuscriptStatuses = []ManuscriptStatus{
	ManuscriptSubmitted,
	ManuscriptPendingEditorAssignment,
	ManuscriptAwaitingReviewers,
	ManuscriptUnderReview,
	ManuscriptReviewsInProgress,
	ManuscriptReviewsComplete,
	ManuscriptRevisionRequired,
	ManuscriptMinorRevision,
	ManuscriptMajorRevision,
	ManuscriptConditionallyAccepted,
	ManuscriptAccepted,
	ManuscriptRejected,
	ManuscriptDeskRejected,
	ManuscriptWithdrawn,
}

func (s ManuscriptStatus) Valid() bool {
	_, ok := manuscriptStatusConfig[s]
	return ok
}

type Manuscript struct {
	ID             string           `json:"id"`
	SystemID       string           `json:"system_id,omitempty"`
	SubmissionID   string           `json:"submission_id,omitempty"`
	CustomID       string           `json:"custom_id,omitempty"`
	Title          string           `json:"title"`
	Abstract       string           `json:"abstract,omitempty"`
	Authors        []string         `json:"authors"`
	Journal        string           `json:"journal"`
	ArticleType    string           `json:"article_type,omitempty"`
	SubmissionDate *time.Time       `json:"submission_date,omitempty"`
	Status         ManuscriptStatus `json:"status"`
	Keywords       []string         `json:"keywords,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
