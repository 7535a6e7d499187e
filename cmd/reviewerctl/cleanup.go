package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

func (c *cli) cleanupCmd() *cobra.Command {
	var (
		manuscript string
		dryRun     bool
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete a manuscript and everything linked to it",
		Long: `Delete a manuscript, its matched reviewers and every row that references
them: matches, publications, retractions, invitations and queue entries
across all manuscripts, and user assignments.

The manuscript may be given by id, custom id, system id or submission id.
Without --force the plan is printed and must be confirmed with "yes".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.open(cmd, false)
			if err != nil {
				return err
			}
			defer svc.close()

			reader := bufio.NewReader(c.in)
			result, err := svc.cleaner.Cleanup(cmd.Context(), manuscript, ports.CleanupOptions{
				DryRun: dryRun,
				Force:  force,
				Confirm: func(plan domain.CleanupPlan) (bool, error) {
					c.printPlan(plan, "will")
					c.printf("\nDelete these records? Type 'yes' to continue: ")
					answer, err := reader.ReadString('\n')
					if err != nil && answer == "" {
						return false, fmt.Errorf("read confirmation: %w", err)
					}
					return confirmed(answer), nil
				},
			})
			if err != nil {
				return err
			}

			switch {
			case result.DryRun:
				c.printPlan(result.Plan, "would")
				c.printf("\nDry run: nothing was deleted.\n")
			case result.Deleted:
				c.printf("Deleted manuscript %s and %d linked record(s).\n", result.Plan.Manuscript.ID, result.Plan.Stats.Total()-1)
			default:
				c.printf("Cleanup cancelled.\n")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&manuscript, "manuscript", "m", "", "Manuscript identifier")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be deleted without deleting")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("manuscript")
	return cmd
}

func (c *cli) printPlan(plan domain.CleanupPlan, verb string) {
	ms := plan.Manuscript
	c.printf("Manuscript: %s\n", ms.Title)
	c.printf("  id=%s system_id=%s custom_id=%s\n", ms.ID, ms.SystemID, ms.CustomID)
	c.printf("\nMatched reviewers (%d):\n", len(plan.Reviewers))
	for _, r := range plan.Reviewers {
		c.printf("  - %s <%s>\n", r.Name, r.Email)
	}
	s := plan.Stats
	c.printf("\nThis %s delete:\n", verb)
	c.printf("  manuscripts:       1\n")
	c.printf("  reviewers:         %d\n", s.Reviewers)
	c.printf("  matches:           %d\n", s.Matches)
	c.printf("  publications:      %d\n", s.Publications)
	c.printf("  retractions:       %d\n", s.Retractions)
	c.printf("  invitations:       %d\n", s.Invitations)
	c.printf("  queue entries:     %d\n", s.QueueEntries)
	c.printf("  user assignments:  %d\n", s.UserManuscripts)
	c.printf("  total:             %d\n", s.Total())
}

func confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y":
		return true
	default:
		return false
	}
}
