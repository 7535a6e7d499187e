package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

type CleanupManuscriptUseCase struct {
	manuscripts ports.ManuscriptRepository
	reviewers   ports.ReviewerRepository
	repo        ports.CleanupRepository
	logger      *slog.Logger
}

func NewCleanupManuscriptUseCase(
	manuscripts ports.ManuscriptRepository,
	reviewers ports.ReviewerRepository,
	repo ports.CleanupRepository,
	logger *slog.Logger,
) *CleanupManuscriptUseCase {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CleanupManuscriptUseCase{
		manuscripts: manuscripts,
		reviewers:   reviewers,
		repo:        repo,
		logger:      logger,
	}
}

// Plan lists what a cleanup of the manuscript would delete. Reviewers matched
// to the manuscript are included even when other manuscripts share them.
func (uc *CleanupManuscriptUseCase) Plan(ctx context.Context, identifier string) (*domain.CleanupPlan, error) {
	ms, err := uc.manuscripts.Resolve(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("resolve manuscript: %w", err)
	}
	matches, err := uc.reviewers.ListMatches(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ReviewerID)
	}
	reviewers := []domain.PotentialReviewer{}
	if len(ids) > 0 {
		reviewers, err = uc.reviewers.ListByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("list reviewers: %w", err)
		}
	}

	plan := &domain.CleanupPlan{Manuscript: *ms, Reviewers: reviewers}
	stats, err := uc.repo.CountLinked(ctx, ms.ID, plan.ReviewerIDs())
	if err != nil {
		return nil, fmt.Errorf("count linked records: %w", err)
	}
	plan.Stats = stats
	return plan, nil
}

// Cleanup deletes the manuscript and everything linked to it. A dry run
// returns the plan without touching the store; without Force the Confirm
// callback must approve the plan first.
func (uc *CleanupManuscriptUseCase) Cleanup(ctx context.Context, identifier string, opts ports.CleanupOptions) (*domain.CleanupResult, error) {
	plan, err := uc.Plan(ctx, identifier)
	if err != nil {
		return nil, err
	}
	result := &domain.CleanupResult{Plan: *plan, DryRun: opts.DryRun}
	if opts.DryRun {
		uc.logger.Info("cleanup_dry_run", "manuscript_id", plan.Manuscript.ID, "reviewers", len(plan.Reviewers))
		return result, nil
	}

	if !opts.Force {
		if opts.Confirm == nil {
			return result, domain.NewError(domain.ErrForbidden, "cleanup manuscript", "confirmation required")
		}
		ok, err := opts.Confirm(*plan)
		if err != nil {
			return result, fmt.Errorf("confirm cleanup: %w", err)
		}
		if !ok {
			uc.logger.Info("cleanup_cancelled", "manuscript_id", plan.Manuscript.ID)
			return result, nil
		}
	}

	if err := uc.repo.DeleteCascade(ctx, plan.Manuscript.ID, plan.ReviewerIDs()); err != nil {
		return result, fmt.Errorf("delete manuscript %s: %w", plan.Manuscript.ID, err)
	}
	result.Deleted = true
	uc.logger.Info("cleanup_completed",
		"manuscript_id", plan.Manuscript.ID,
		"reviewers", plan.Stats.Reviewers,
		"invitations", plan.Stats.Invitations,
		"queue_entries", plan.Stats.QueueEntries,
	)
	return result, nil
}
