package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

// DispatchRecorder is told how many queued invitations a run sent.
type DispatchRecorder interface {
	RecordDispatch(result ports.DispatchResult)
}

// SweepRecorder is told how many invitations a sweep moved.
type SweepRecorder interface {
	RecordSweep(result ports.SweepResult)
}

func DispatchJob(spec string, wf ports.WorkflowScheduler, now func() time.Time, rec DispatchRecorder, logger *slog.Logger) Job {
	return Job{
		Name:    "dispatch_queue",
		Spec:    spec,
		Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			result, err := wf.DispatchDue(ctx, now())
			if rec != nil {
				rec.RecordDispatch(result)
			}
			if result.Dispatched > 0 || result.Failed > 0 {
				logger.Info("queue_dispatched", "dispatched", result.Dispatched, "failed", result.Failed)
			}
			return err
		},
	}
}

func SweepJob(spec string, wf ports.WorkflowScheduler, now func() time.Time, rec SweepRecorder, logger *slog.Logger) Job {
	return Job{
		Name:    "sweep_invitations",
		Spec:    spec,
		Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			result, err := wf.SweepExpired(ctx, now())
			if rec != nil {
				rec.RecordSweep(result)
			}
			if result.Expired > 0 || result.Overdue > 0 || result.Failed > 0 {
				logger.Info("invitations_swept", "expired", result.Expired, "overdue", result.Overdue, "failed", result.Failed)
			}
			return err
		},
	}
}
