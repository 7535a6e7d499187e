package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Color is a chip color understood by the admin front end.
type Color string

const (
	ColorDefault   Color = "default"
	ColorPrimary   Color = "primary"
	ColorSecondary Color = "secondary"
	ColorError     Color = "error"
	ColorWarning   Color = "warning"
	ColorInfo      Color = "info"
	ColorSuccess   Color = "success"
)

// Category partitions manuscript statuses. Every known status belongs to
// exactly one category.
type Category string

const (
	CategoryInProgress     Category = "in-progress"
	CategoryActionRequired Category = "action-required"
	CategoryCompleted      Category = "completed"
	CategoryRejected       Category = "rejected"
)

var AllCategories = []Category{
	CategoryInProgress,
	CategoryActionRequired,
	CategoryCompleted,
	CategoryRejected,
}

type StatusConfig struct {
	Label       string   `json:"label"`
	Color       Color    `json:"color"`
	Description string   `json:"description"`
	Category    Category `json:"category,omitempty"`
}

var manuscriptStatusConfig = map[ManuscriptStatus]StatusConfig{
	ManuscriptSubmitted: {
		Label:       "Submitted",
		Color:       ColorInfo,
		Description: "Manuscript submitted, awaiting processing",
		Category:    CategoryInProgress,
	},
	ManuscriptPendingEditorAssignment: {
		Label:       "Pending Editor",
		Color:       ColorWarning,
		Description: "Awaiting editor assignment",
		Category:    CategoryActionRequired,
	},
	ManuscriptAwaitingReviewers: {
		Label:       "Awaiting Reviewers",
		Color:       ColorWarning,
		Description: "Editor assigned, searching for reviewers",
		Category:    CategoryActionRequired,
	},
	ManuscriptUnderReview: {
		Label:       "Peer Review",
		Color:       ColorWarning,
		Description: "In peer review process",
		Category:    CategoryInProgress,
	},
	ManuscriptReviewsInProgress: {
		Label:       "Reviews In Progress",
		Color:       ColorPrimary,
		Description: "Reviewers working on reviews",
		Category:    CategoryInProgress,
	},
	ManuscriptReviewsComplete: {
		Label:       "Reviews Complete",
		Color:       ColorInfo,
		Description: "All reviews submitted, awaiting editor decision",
		Category:    CategoryActionRequired,
	},
	ManuscriptRevisionRequired: {
		Label:       "Revision Required",
		Color:       ColorWarning,
		Description: "Authors must revise and resubmit",
		Category:    CategoryActionRequired,
	},
	ManuscriptMinorRevision: {
		Label:       "Minor Revision",
		Color:       ColorWarning,
		Description: "Requires small changes",
		Category:    CategoryActionRequired,
	},
	ManuscriptMajorRevision: {
		Label:       "Major Revision",
		Color:       ColorWarning,
		Description: "Requires substantial changes",
		Category:    CategoryActionRequired,
	},
	ManuscriptConditionallyAccepted: {
		Label:       "Conditionally Accepted",
		Color:       ColorSuccess,
		Description: "Accepted pending minor required changes",
		Category:    CategoryActionRequired,
	},
	ManuscriptAccepted: {
		Label:       "Accepted",
		Color:       ColorSuccess,
		Description: "Manuscript accepted for publication",
		Category:    CategoryCompleted,
	},
	ManuscriptRejected: {
		Label:       "Rejected",
		Color:       ColorError,
		Description: "Manuscript rejected after review",
		Category:    CategoryRejected,
	},
	ManuscriptDeskRejected: {
		Label:       "Desk Rejected",
		Color:       ColorError,
		Description: "Rejected before peer review",
		Category:    CategoryRejected,
	},
	ManuscriptWithdrawn: {
		Label:       "Withdrawn",
		Color:       ColorDefault,
		Description: "Author withdrew the manuscript",
		Category:    CategoryRejected,
	},
}

// ManuscriptStatusConfig returns the display configuration for a raw status
// string. Unknown statuses get a humanized label, the default color and no
// category.
func ManuscriptStatusConfig(status string) StatusConfig {
	if cfg, ok := manuscriptStatusConfig[ManuscriptStatus(status)]; ok {
		return cfg
	}
	return StatusConfig{
		Label: Humanize(status),
		Color: ColorDefault,
	}
}

func StatusLabel(status string) string {
	return ManuscriptStatusConfig(status).Label
}

func StatusColor(status string) Color {
	return ManuscriptStatusConfig(status).Color
}

func StatusDescription(status string) string {
	return ManuscriptStatusConfig(status).Description
}

// StatusCategory reports the category of a known status.
func StatusCategory(status string) (Category, bool) {
	cfg, ok := manuscriptStatusConfig[ManuscriptStatus(status)]
	if !ok {
		return "", false
	}
	return cfg.Category, true
}

// StatusesByCategory groups all known statuses by category, keeping
// workflow order inside each group.
func StatusesByCategory() map[Category][]ManuscriptStatus {
	grouped := make(map[Category][]ManuscriptStatus, len(AllCategories))
	for _, category := range AllCategories {
		grouped[category] = []ManuscriptStatus{}
	}
	for _, status := range AllManuscriptStatuses {
		category := manuscriptStatusConfig[status].Category
		grouped[category] = append(grouped[category], status)
	}
	return grouped
}

type StatusOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func StatusOptions() []StatusOption {
	out := make([]StatusOption, 0, len(AllManuscriptStatuses))
	for _, status := range AllManuscriptStatuses {
		out = append(out, StatusOption{
			Value: string(status),
			Label: manuscriptStatusConfig[status].Label,
		})
	}
	return out
}

// Humanize turns a snake_case status into a display label:
// "awaiting_second_opinion" -> "Awaiting second opinion".
func Humanize(raw string) string {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "_", " "))
	if text == "" {
		return "Unknown"
	}
	first, size := utf8.DecodeRuneInString(text)
	return string(unicode.ToUpper(first)) + text[size:]
}
