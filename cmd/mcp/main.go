package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/reviewer-invitations/internal/adapters/mcp"
	"github.com/kirillkom/reviewer-invitations/internal/bootstrap"
	"github.com/kirillkom/reviewer-invitations/internal/config"
	"github.com/kirillkom/reviewer-invitations/internal/observability/logging"
)

var version = "dev"

// The MCP server speaks JSON-RPC on stdout, so logs go to stderr.
func main() {
	cfg := config.Load()
	logger := logging.NewCLILogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.NewStore(ctx, cfg, logger, bootstrap.StoreOptions{EnsureSchema: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	s := mcpadapter.NewServer(store.Queries, version)
	stdio := server.NewStdioServer(s)
	logger.Info("mcp_serving", "transport", "stdio", "version", version)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("mcp_server_failed", "error", err.Error())
		os.Exit(1)
	}
}
