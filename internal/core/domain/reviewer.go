package domain

import (
	"sort"
	"strings"
	"time"
)

type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityBusy        Availability = "busy"
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilitySabbatical  Availability = "sabbatical"
)

func (a Availability) Valid() bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityUnavailable, AvailabilitySabbatical:
		return true
	default:
		return false
	}
}

// rank orders availability from most to least able to take a review.
func (a Availability) rank() int {
	switch a {
	case AvailabilityAvailable:
		return 0
	case AvailabilityBusy:
		return 1
	case AvailabilityUnavailable:
		return 2
	case AvailabilitySabbatical:
		return 3
	default:
		return 4
	}
}

type PotentialReviewer struct {
	ID                  string       `json:"id"`
	ExternalID          string       `json:"external_id,omitempty"`
	Name                string       `json:"name"`
	Email               string       `json:"email"`
	Affiliation         string       `json:"affiliation,omitempty"`
	Department          string       `json:"department,omitempty"`
	OrcidID             string       `json:"orcid_id,omitempty"`
	ExpertiseAreas      []string     `json:"expertise_areas"`
	CurrentReviewLoad   int          `json:"current_review_load"`
	MaxReviewCapacity   int          `json:"max_review_capacity"`
	AvailabilityStatus  Availability `json:"availability_status"`
	ResponseRate        int          `json:"response_rate"`
	QualityScore        int          `json:"quality_score"`
	HIndex              *int         `json:"h_index,omitempty"`
	TotalInvitations    int          `json:"total_invitations"`
	TotalAcceptances    int          `json:"total_acceptances"`
	LastReviewCompleted *time.Time   `json:"last_review_completed,omitempty"`
	ConflictsOfInterest []string     `json:"conflicts_of_interest,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// ReviewerMatch links a reviewer to a manuscript with an upstream score.
type ReviewerMatch struct {
	ID                  string   `json:"id"`
	ManuscriptID        string   `json:"manuscript_id"`
	ReviewerID          string   `json:"reviewer_id"`
	MatchScore          int      `json:"match_score"`
	IsInitialSuggestion bool     `json:"is_initial_suggestion"`
	ConflictsOfInterest []string `json:"conflicts_of_interest,omitempty"`
}

type ReviewerPublication struct {
	ID              string     `json:"id"`
	ReviewerID      string     `json:"reviewer_id"`
	Title           string     `json:"title"`
	DOI             string     `json:"doi,omitempty"`
	JournalName     string     `json:"journal_name,omitempty"`
	Authors         []string   `json:"authors"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	IsRelated       bool       `json:"is_related"`
}

// WorkflowStatusQueued marks a reviewer waiting in the invitation queue.
const WorkflowStatusQueued = "queued"

// ReviewerWithStatus is a matched (or workflow-only) reviewer enriched with
// the reviewer's position in this manuscript's invitation workflow.
type ReviewerWithStatus struct {
	PotentialReviewer
	MatchScore       int                  `json:"match_score"`
	InvitationStatus string               `json:"invitation_status,omitempty"`
	QueueEntryID     string               `json:"queue_id,omitempty"`
	QueuePosition    *int                 `json:"queue_position,omitempty"`
	Priority         QueuePriority        `json:"priority,omitempty"`
	ScheduledSend    *time.Time           `json:"scheduled_send_date,omitempty"`
	InvitationID     string               `json:"invitation_id,omitempty"`
	InvitedDate      *time.Time           `json:"invited_date,omitempty"`
	ResponseDate     *time.Time           `json:"response_date,omitempty"`
	DueDate          *time.Time           `json:"due_date,omitempty"`
	Profile          ReviewerProfileStats `json:"profile"`
}

type ReviewerSortKey string

const (
	SortByMatchScore   ReviewerSortKey = "match_score"
	SortByAvailability ReviewerSortKey = "availability"
	SortByResponseRate ReviewerSortKey = "response_rate"
	SortByQualityScore ReviewerSortKey = "quality_score"
)

func (k ReviewerSortKey) Valid() bool {
	switch k {
	case SortByMatchScore, SortByAvailability, SortByResponseRate, SortByQualityScore:
		return true
	default:
		return false
	}
}

// ReviewerQuery filters and orders the reviewer list of one manuscript.
type ReviewerQuery struct {
	ManuscriptID   string
	SortBy         ReviewerSortKey
	MinMatchScore  *int
	Availability   []Availability
	MaxCurrentLoad *int
	Search         string
}

func (q ReviewerQuery) Validate() error {
	if strings.TrimSpace(q.ManuscriptID) == "" {
		return NewError(ErrInvalidInput, "reviewer query", "manuscript id is required")
	}
	if q.SortBy != "" && !q.SortBy.Valid() {
		return NewError(ErrInvalidInput, "reviewer query", "unsupported sortBy %q", q.SortBy)
	}
	if q.MinMatchScore != nil && (*q.MinMatchScore < 0 || *q.MinMatchScore > 100) {
		return NewError(ErrInvalidInput, "reviewer query", "minMatchScore must be within 0..100")
	}
	if q.MaxCurrentLoad != nil && *q.MaxCurrentLoad < 0 {
		return NewError(ErrInvalidInput, "reviewer query", "maxCurrentLoad must not be negative")
	}
	for _, a := range q.Availability {
		if !a.Valid() {
			return NewError(ErrInvalidInput, "reviewer query", "unsupported availability %q", a)
		}
	}
	return nil
}

// ApplyReviewerQuery filters and sorts reviewers. The input slice is left
// untouched.
func ApplyReviewerQuery(reviewers []ReviewerWithStatus, q ReviewerQuery) []ReviewerWithStatus {
	allowed := make(map[Availability]struct{}, len(q.Availability))
	for _, a := range q.Availability {
		allowed[a] = struct{}{}
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]ReviewerWithStatus, 0, len(reviewers))
	for _, r := range reviewers {
		if q.MinMatchScore != nil && r.MatchScore < *q.MinMatchScore {
			continue
		}
		if q.MaxCurrentLoad != nil && r.CurrentReviewLoad > *q.MaxCurrentLoad {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[r.AvailabilityStatus]; !ok {
				continue
			}
		}
		if search != "" && !reviewerMatchesSearch(r.PotentialReviewer, search) {
			continue
		}
		out = append(out, r)
	}

	sortKey := q.SortBy
	if sortKey == "" {
		sortKey = SortByMatchScore
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch sortKey {
		case SortByAvailability:
			if a.AvailabilityStatus.rank() != b.AvailabilityStatus.rank() {
				return a.AvailabilityStatus.rank() < b.AvailabilityStatus.rank()
			}
		case SortByResponseRate:
			if a.ResponseRate != b.ResponseRate {
				return a.ResponseRate > b.ResponseRate
			}
		case SortByQualityScore:
			if a.QualityScore != b.QualityScore {
				return a.QualityScore > b.QualityScore
			}
		}
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		return a.Name < b.Name
	})
	return out
}

func reviewerMatchesSearch(r PotentialReviewer, needle string) bool {
	if strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.Email), needle) ||
		strings.Contains(strings.ToLower(r.Affiliation), needle) {
		return true
	}
	for _, area := range r.ExpertiseAreas {
		if strings.Contains(strings.ToLower(area), needle) {
			return true
		}
	}
	return false
}
