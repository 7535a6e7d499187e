package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/reviewer-invitations/internal/config"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
	"github.com/kirillkom/reviewer-invitations/internal/core/usecase"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/ingest"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/notify/smtp"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/queue/nats"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/resilience"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/reviewer-invitations/internal/observability/metrics"
)

// Store is the database-backed part of the application. The admin CLI needs
// nothing more.
type Store struct {
	Config config.Config
	Logger *slog.Logger

	Queries  *usecase.ManuscriptQueryUseCase
	Ingestor ports.SuggestionIngestor
	Cleaner  ports.ManuscriptCleaner

	db          *sql.DB
	manuscripts *postgres.ManuscriptRepository
	reviewers   *postgres.ReviewerRepository
	invitations *postgres.InvitationRepository
	queue       *postgres.QueueRepository
}

type StoreOptions struct {
	// EnsureSchema runs the DDL bootstrap on open. Commands that only read or
	// delete leave it off so they never write schema objects.
	EnsureSchema bool
}

func NewStore(ctx context.Context, cfg config.Config, logger *slog.Logger, opts StoreOptions) (*Store, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.EnsureSchema {
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	storage := localfs.New(cfg.StoragePath)

	manuscripts := postgres.NewManuscriptRepository(db)
	reviewers := postgres.NewReviewerRepository(db)
	invitations := postgres.NewInvitationRepository(db)
	queue := postgres.NewQueueRepository(db)

	return &Store{
		Config: cfg,
		Logger: logger,

		Queries:  usecase.NewManuscriptQueryUseCase(manuscripts, reviewers, invitations, queue, xlsx.NewWriter(), nil),
		Ingestor: usecase.NewIngestSuggestionsUseCase(postgres.NewIngestionRepository(db), ingest.NewDecoder(), storage, logger),
		Cleaner:  usecase.NewCleanupManuscriptUseCase(manuscripts, reviewers, postgres.NewCleanupRepository(db), logger),

		db:          db,
		manuscripts: manuscripts,
		reviewers:   reviewers,
		invitations: invitations,
		queue:       queue,
	}, nil
}

func (s *Store) Close() {
	_ = s.db.Close()
}

// App is a long-running service: the store plus the event bus, e-mail
// delivery and the invitation workflow.
type App struct {
	*Store

	Events          *nats.EventBus
	Workflow        *usecase.InvitationWorkflowUseCase
	HTTPMetrics     *metrics.HTTPServerMetrics
	WorkflowMetrics *metrics.WorkflowMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	store, err := NewStore(ctx, cfg, logger, StoreOptions{EnsureSchema: true})
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy(), logger)
	events, err := nats.Connect(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Executor: executor,
		Logger:   logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	var notifier ports.InvitationNotifier
	if cfg.SMTPEnabled() {
		mailer, err := smtp.New(smtp.Config{
			Host:          cfg.SMTPHost,
			Port:          cfg.SMTPPort,
			User:          cfg.SMTPUser,
			Password:      cfg.SMTPPass,
			From:          cfg.SMTPFrom,
			SkipTLSVerify: cfg.SMTPSkipTLSVerify,
		}, executor)
		if err != nil {
			events.Close()
			store.Close()
			return nil, fmt.Errorf("init smtp notifier: %w", err)
		}
		notifier = mailer
	} else {
		logger.Warn("smtp_disabled", "reason", "SMTP_HOST or SMTP_FROM is empty")
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	workflowMetrics := metrics.NewWorkflowMetrics(service, httpMetrics.Registry())

	workflow := usecase.NewInvitationWorkflowUseCase(
		store.manuscripts,
		store.reviewers,
		store.invitations,
		store.queue,
		metrics.NewCountingPublisher(events, workflowMetrics),
		notifier,
		usecase.WorkflowOptions{
			ResponseWindow: cfg.InvitationResponseWindow,
			QueueInterval:  cfg.QueueInterval,
			Logger:         logger,
		},
	)

	return &App{
		Store:           store,
		Events:          events,
		Workflow:        workflow,
		HTTPMetrics:     httpMetrics,
		WorkflowMetrics: workflowMetrics,

		closeFn: func() {
			events.Close()
			store.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
