package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/reviewer-invitations/internal/bootstrap"
	"github.com/kirillkom/reviewer-invitations/internal/config"
	"github.com/kirillkom/reviewer-invitations/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(storeFactory, os.Stdin, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func storeFactory(ctx context.Context, opts openOptions) (*services, error) {
	cfg := config.Load()
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	store, err := bootstrap.NewStore(ctx, cfg, logging.NewCLILogger(cfg.LogLevel), bootstrap.StoreOptions{
		EnsureSchema: opts.EnsureSchema,
	})
	if err != nil {
		return nil, err
	}
	return &services{
		ingestor: store.Ingestor,
		cleaner:  store.Cleaner,
		queries:  store.Queries,
		close:    store.Close,
	}, nil
}
