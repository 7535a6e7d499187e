package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

type services struct {
	ingestor ports.SuggestionIngestor
	cleaner  ports.ManuscriptCleaner
	queries  ports.ManuscriptQueryService
	close    func()
}

// openOptions says what a command needs from the store. Only ingest writes
// rows, so only ingest bootstraps the schema.
type openOptions struct {
	LogLevel     string
	EnsureSchema bool
}

// serviceFactory opens the store lazily so --help works without a database.
type serviceFactory func(ctx context.Context, opts openOptions) (*services, error)

type cli struct {
	factory  serviceFactory
	in       io.Reader
	out      io.Writer
	logLevel string
}

func newRootCmd(factory serviceFactory, in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{factory: factory, in: in, out: out}

	root := &cobra.Command{
		Use:   "reviewerctl",
		Short: "Administer reviewer suggestions and invitations",
		Long: `Administrative tasks for the reviewer invitation store.

Available subcommands:
  ingest  - Load a reviewer-suggestion payload (JSON or YAML)
  cleanup - Delete a manuscript and everything linked to it
  export  - Write the invitation report of a manuscript to an .xlsx file`,
		SilenceUsage: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (default: LOG_LEVEL)")

	root.AddCommand(c.ingestCmd(), c.cleanupCmd(), c.exportCmd())
	return root
}

func (c *cli) open(cmd *cobra.Command, ensureSchema bool) (*services, error) {
	svc, err := c.factory(cmd.Context(), openOptions{LogLevel: c.logLevel, EnsureSchema: ensureSchema})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return svc, nil
}

func (c *cli) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
