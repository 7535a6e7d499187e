package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

func (c *cli) ingestCmd() *cobra.Command {
	var archived string

	cmd := &cobra.Command{
		Use:   "ingest <file> | --archived <key>",
		Short: "Load a reviewer-suggestion payload",
		Long: `Upsert the manuscript, reviewers, matches, publications and retractions
of one payload. Running it twice on the same file changes nothing.
Failures of single reviewers are reported and do not stop the run.

With --archived the payload is read back from the archive under the key
printed by an earlier run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (archived == "") == (len(args) == 0) {
				return errors.New("pass either a payload file or --archived <key>")
			}

			var report *domain.IngestReport
			if archived != "" {
				svc, err := c.open(cmd, true)
				if err != nil {
					return err
				}
				defer svc.close()

				if report, err = svc.ingestor.ReplayArchived(cmd.Context(), archived); err != nil {
					return err
				}
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open payload: %w", err)
				}
				defer f.Close()

				svc, err := c.open(cmd, true)
				if err != nil {
					return err
				}
				defer svc.close()

				if report, err = svc.ingestor.IngestFile(cmd.Context(), args[0], f); err != nil {
					return err
				}
			}

			c.printReport(report)
			return nil
		},
	}
	cmd.Flags().StringVar(&archived, "archived", "", "Replay an archived payload by key")
	return cmd
}

func (c *cli) printReport(report *domain.IngestReport) {
	created := "updated"
	if report.ManuscriptCreated {
		created = "created"
	}
	c.printf("Manuscript %s (%s)\n", report.ManuscriptID, created)
	c.printf("Reviewers:    %d processed, %d new\n", report.ReviewersProcessed, report.ReviewersCreated)
	c.printf("Matches:      %d\n", report.MatchesUpserted)
	c.printf("Publications: %d\n", report.PublicationsUpserted)
	c.printf("Retractions:  %d\n", report.RetractionsInserted)
	if report.ArchiveKey != "" {
		c.printf("Archived as:  %s\n", report.ArchiveKey)
	}
	if len(report.Errors) > 0 {
		c.printf("\n%d reviewer(s) failed:\n", len(report.Errors))
		for _, e := range report.Errors {
			c.printf("  - %s: %s\n", e.Reviewer, e.Error)
		}
	}
}
