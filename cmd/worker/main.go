package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/reviewer-invitations/internal/bootstrap"
	"github.com/kirillkom/reviewer-invitations/internal/config"
	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/scheduler"
	"github.com/kirillkom/reviewer-invitations/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker", logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	now := func() time.Time { return time.Now().UTC() }
	sched := scheduler.New(logger, app.WorkflowMetrics)
	if err := sched.Add(scheduler.DispatchJob(cfg.WorkerDispatchSchedule, app.Workflow, now, app.WorkflowMetrics, logger)); err != nil {
		logger.Error("scheduler_setup_failed", "error", err.Error())
		os.Exit(1)
	}
	if cfg.WorkerSweepEnabled {
		if err := sched.Add(scheduler.SweepJob(cfg.WorkerSweepSchedule, app.Workflow, now, app.WorkflowMetrics, logger)); err != nil {
			logger.Error("scheduler_setup_failed", "error", err.Error())
			os.Exit(1)
		}
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           app.HTTPMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSSubject+".>")
		return app.Events.SubscribeInvitationEvents(gctx, func(_ context.Context, event domain.InvitationEvent) error {
			logger.Info("invitation_event",
				"type", string(event.Type),
				"invitation_id", event.InvitationID,
				"manuscript_id", event.ManuscriptID,
				"reviewer_id", event.ReviewerID,
				"from", string(event.From),
				"to", string(event.To),
			)
			return nil
		})
	})
	g.Go(func() error {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_stopped", "error", err.Error())
		os.Exit(1)
	}
}
