// Package refresh implements the one-shot refresh command.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/feeds/cmd/common"
	"github.com/jonesrussell/north-cloud/feeds/internal/refresh"
)

// Options are the refresh command flags.
type Options struct {
	Sources []string
	JSON    bool
}

// Command returns the refresh command.
func Command() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run a single refresh tick and print the report",
		Long: `Runs one refresh tick against the configured cache and exits.

Example:
  # Refresh every due source
  feeds refresh

  # Refresh two sources now, ignoring their TTL
  feeds refresh --sources hn,lobsters --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}
			defer func() { _ = deps.Logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pipeline, err := common.NewPipeline(deps)
			if err != nil {
				return err
			}
			defer func() { _ = pipeline.Close() }()

			return Run(ctx, pipeline.Refresher, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Sources, "sources", "s", nil,
		"Sources to refresh regardless of TTL (default: every due source)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the tick report as JSON")

	return cmd
}

// Ticker runs ticks.
type Ticker interface {
	Tick(ctx context.Context) (*refresh.TickReport, error)
	ForceRefresh(ctx context.Context, names []string) (*refresh.TickReport, error)
}

// Run executes one tick and writes the report to w.
func Run(ctx context.Context, t Ticker, opts Options, w io.Writer) error {
	var (
		report *refresh.TickReport
		err    error
	)
	if len(opts.Sources) > 0 {
		report, err = t.ForceRefresh(ctx, opts.Sources)
	} else {
		report, err = t.Tick(ctx)
	}
	if err != nil {
		return fmt.Errorf("refresh tick: %w", err)
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	renderReport(w, report)
	return nil
}

func renderReport(w io.Writer, report *refresh.TickReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Tick " + report.ID)
	t.AppendHeader(table.Row{"Source", "Outcome", "Items", "Dropped", "Error"})
	for _, res := range report.Results {
		t.AppendRow(table.Row{res.Source, res.Outcome, res.Items, res.Dropped, res.Error})
	}
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d updated", len(report.Updated)),
		"",
		"",
		fmt.Sprintf("%d failed", len(report.Failed)),
	})
	t.Render()
	fmt.Fprintf(w, "Completed in %s\n", report.Duration())
}
