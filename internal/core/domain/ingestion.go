package domain

import (
	"strings"
	"time"
)

// SuggestionPayload is one reviewer-suggestion export for a manuscript, as
// produced by the upstream matching service.
type SuggestionPayload struct {
	Manuscript ManuscriptPayload `json:"manuscriptData" yaml:"manuscriptData"`
	Reviewers  []ReviewerPayload `json:"reviewers" yaml:"reviewers"`
}

type PersonName struct {
	GivenNames string `json:"givenNames" yaml:"givenNames"`
	Surname    string `json:"surname" yaml:"surname"`
}

func (n PersonName) Full() string {
	return strings.TrimSpace(n.GivenNames + " " + n.Surname)
}

type ManuscriptPayload struct {
	SystemID      string       `json:"systemId" yaml:"systemId"`
	SubmissionID  string       `json:"submissionId" yaml:"submissionId"`
	CustomID      string       `json:"customId" yaml:"customId"`
	Title         string       `json:"title" yaml:"title"`
	Abstract      string       `json:"abstract" yaml:"abstract"`
	JournalName   string       `json:"journalName" yaml:"journalName"`
	ArticleType   string       `json:"articleType" yaml:"articleType"`
	SubmittedDate string       `json:"submittedDate" yaml:"submittedDate"`
	Authors       []PersonName `json:"authors" yaml:"authors"`
	Keywords      []string     `json:"keywords" yaml:"keywords"`
}

type PublicationStatsPayload struct {
	HIndex            *int `json:"hIndex" yaml:"hIndex"`
	TotalPublications *int `json:"totalPublications" yaml:"totalPublications"`
}

type PublicationPayload struct {
	Title           string   `json:"title" yaml:"title"`
	DOI             string   `json:"doi" yaml:"doi"`
	JournalName     string   `json:"journalName" yaml:"journalName"`
	Authors         []string `json:"authors" yaml:"authors"`
	PublicationDate string   `json:"publicationDate" yaml:"publicationDate"`
}

type RetractionsPayload struct {
	RetractionReasons []string `json:"retractionReasons" yaml:"retractionReasons"`
}

type ReviewerPayload struct {
	ExternalID          string                   `json:"id" yaml:"id"`
	Email               string                   `json:"email" yaml:"email"`
	GivenNames          string                   `json:"givenNames" yaml:"givenNames"`
	Surname             string                   `json:"surname" yaml:"surname"`
	Affiliation         string                   `json:"aff" yaml:"aff"`
	OrcidID             string                   `json:"orcidId" yaml:"orcidId"`
	Keywords            []string                 `json:"keywords" yaml:"keywords"`
	CurrentlyReviewing  int                      `json:"currentlyReviewing" yaml:"currentlyReviewing"`
	PublicationStats    *PublicationStatsPayload `json:"publicationStats" yaml:"publicationStats"`
	Score               int                      `json:"score" yaml:"score"`
	InitialSuggestion   bool                     `json:"initialSuggestion" yaml:"initialSuggestion"`
	ConflictsOfInterest []string                 `json:"conflictsOfInterest" yaml:"conflictsOfInterest"`
	RelatedPublications []PublicationPayload     `json:"relatedPublications" yaml:"relatedPublications"`
	OtherPublications   []PublicationPayload     `json:"otherPublications" yaml:"otherPublications"`
	Retractions         *RetractionsPayload      `json:"retractions" yaml:"retractions"`
}

func (r ReviewerPayload) Name() string {
	return PersonName{GivenNames: r.GivenNames, Surname: r.Surname}.Full()
}

// Validate checks the fields ingestion relies on for deduplication.
func (p SuggestionPayload) Validate() error {
	if strings.TrimSpace(p.Manuscript.SystemID) == "" {
		return NewError(ErrInvalidInput, "validate payload", "manuscriptData.systemId is required")
	}
	if strings.TrimSpace(p.Manuscript.Title) == "" {
		return NewError(ErrInvalidInput, "validate payload", "manuscriptData.title is required")
	}
	return nil
}

// ParsePayloadDate accepts RFC 3339 timestamps or plain dates and truncates to
// the day. Unparseable or empty input yields nil.
func ParsePayloadDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}

type IngestError struct {
	Reviewer string `json:"reviewer"`
	Error    string `json:"error"`
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	ManuscriptID         string        `json:"manuscript_id"`
	ManuscriptCreated    bool          `json:"manuscript_created"`
	ManuscriptsProcessed int           `json:"manuscripts_processed"`
	ReviewersProcessed   int           `json:"reviewers_processed"`
	ReviewersCreated     int           `json:"reviewers_created"`
	MatchesUpserted      int           `json:"matches_upserted"`
	PublicationsUpserted int           `json:"publications_upserted"`
	RetractionsInserted  int           `json:"retractions_inserted"`
	ArchiveKey           string        `json:"archive_key,omitempty"`
	Errors               []IngestError `json:"errors"`
}
