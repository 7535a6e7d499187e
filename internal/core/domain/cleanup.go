package domain

// CleanupStats counts the rows a manuscript cleanup touches. Reviewer-linked
// counts span every manuscript the reviewers are matched to.
type CleanupStats struct {
	Reviewers       int `json:"reviewers"`
	Matches         int `json:"matches"`
	Publications    int `json:"publications"`
	Retractions     int `json:"retractions"`
	Invitations     int `json:"invitations"`
	QueueEntries    int `json:"queue_entries"`
	UserManuscripts int `json:"user_manuscripts"`
}

func (s CleanupStats) Total() int {
	return s.Reviewers + s.Matches + s.Publications + s.Retractions +
		s.Invitations + s.QueueEntries + s.UserManuscripts + 1
}

type CleanupPlan struct {
	Manuscript Manuscript          `json:"manuscript"`
	Reviewers  []PotentialReviewer `json:"reviewers"`
	Stats      CleanupStats        `json:"stats"`
}

func (p CleanupPlan) ReviewerIDs() []string {
	ids := make([]string, 0, len(p.Reviewers))
	for _, r := range p.Reviewers {
		ids = append(ids, r.ID)
	}
	return ids
}

type CleanupResult struct {
	Plan    CleanupPlan `json:"plan"`
	DryRun  bool        `json:"dry_run"`
	Deleted bool        `json:"deleted"`
}
