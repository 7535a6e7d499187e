package domain

import (
	"strings"
	"time"
)

var publicEmailDomains = map[string]struct{}{
	"gmail.com":      {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"aol.com":        {},
	"icloud.com":     {},
	"mail.com":       {},
	"protonmail.com": {},
	"zoho.com":       {},
	"yandex.com":     {},
	"gmx.com":        {},
}

// ReviewerProfileStats are per-reviewer figures shown next to a candidate.
type ReviewerProfileStats struct {
	EmailIsInstitutional     bool `json:"email_is_institutional"`
	AcceptanceRate           int  `json:"acceptance_rate"`
	DaysSinceLastReview      *int `json:"days_since_last_review,omitempty"`
	PublicationsLast5Years   int  `json:"publications_last_5_years"`
	SoloAuthoredCount        int  `json:"solo_authored_count"`
	RelatedPublicationsCount int  `json:"related_publications_count"`
	PublishedInJournal       bool `json:"published_in_journal"`
}

// IsInstitutionalEmail reports whether the address is not on a public
// mail provider.
func IsInstitutionalEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	_, public := publicEmailDomains[domain]
	return !public
}

// AcceptanceRate is acceptances over invitations as a rounded percentage.
func AcceptanceRate(acceptances, invitations int) int {
	if invitations <= 0 {
		return 0
	}
	return int(float64(acceptances)/float64(invitations)*100 + 0.5)
}

// DaysSince returns whole days between t and now, or nil without a date.
func DaysSince(t *time.Time, now time.Time) *int {
	if t == nil {
		return nil
	}
	diff := now.Sub(*t)
	if diff < 0 {
		diff = -diff
	}
	days := int(diff / (24 * time.Hour))
	return &days
}

func CountSoloAuthored(pubs []ReviewerPublication) int {
	count := 0
	for _, p := range pubs {
		if len(p.Authors) == 1 {
			count++
		}
	}
	return count
}

// CountRecentPublications counts publications dated within the last years.
func CountRecentPublications(pubs []ReviewerPublication, years int, now time.Time) int {
	cutoff := now.AddDate(-years, 0, 0)
	count := 0
	for _, p := range pubs {
		if p.PublicationDate != nil && !p.PublicationDate.Before(cutoff) {
			count++
		}
	}
	return count
}

func CountRelatedPublications(pubs []ReviewerPublication) int {
	count := 0
	for _, p := range pubs {
		if p.IsRelated {
			count++
		}
	}
	return count
}

// PublishedInJournal reports whether any publication appeared in journal,
// compared case-insensitively.
func PublishedInJournal(pubs []ReviewerPublication, journal string) bool {
	journal = strings.TrimSpace(journal)
	if journal == "" {
		return false
	}
	for _, p := range pubs {
		if strings.EqualFold(strings.TrimSpace(p.JournalName), journal) {
			return true
		}
	}
	return false
}

func BuildProfileStats(r PotentialReviewer, pubs []ReviewerPublication, journal string, now time.Time) ReviewerProfileStats {
	return ReviewerProfileStats{
		EmailIsInstitutional:     IsInstitutionalEmail(r.Email),
		AcceptanceRate:           AcceptanceRate(r.TotalAcceptances, r.TotalInvitations),
		DaysSinceLastReview:      DaysSince(r.LastReviewCompleted, now),
		PublicationsLast5Years:   CountRecentPublications(pubs, 5, now),
		SoloAuthoredCount:        CountSoloAuthored(pubs),
		RelatedPublicationsCount: CountRelatedPublications(pubs),
		PublishedInJournal:       PublishedInJournal(pubs, journal),
	}
}
