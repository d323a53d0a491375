package sources

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/feeds/cmd/common"
	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
)

// ProgramIndex reports which sources have patch programs.
type ProgramIndex interface {
	Has(source string) bool
}

// TableRenderer displays sources in a table.
type TableRenderer struct {
	out        io.Writer
	defaultTTL time.Duration
}

// NewTableRenderer creates a TableRenderer writing to out. Sources without
// their own TTL show defaultTTL.
func NewTableRenderer(out io.Writer, defaultTTL time.Duration) *TableRenderer {
	return &TableRenderer{out: out, defaultTTL: defaultTTL}
}

// RenderTable writes one row per source.
func (r *TableRenderer) RenderTable(sources []feed.Source, programs ProgramIndex) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Name", "URL", "Refresh Type", "TTL", "Program"})
	for _, src := range sources {
		ttl := "-"
		program := "-"
		if src.IsPull() {
			ttl = src.TTLOr(r.defaultTTL).String()
			program = "no"
			if programs.Has(src.Name) {
				program = "yes"
			}
		}
		t.AppendRow(table.Row{src.Name, src.URL, src.RefreshType, ttl, program})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(sources)})

	t.Render()
}

// NewListCommand creates the list subcommand.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sources",
		Long:  `List every source in the table with its refresh type, TTL and whether it has a patch program.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			tbl, err := common.LoadTable(deps.Config)
			if err != nil {
				return err
			}
			catalog, err := common.LoadCatalog(deps.Config)
			if err != nil {
				return err
			}

			if tbl.Len() == 0 {
				deps.Logger.Info("No sources configured")
				return nil
			}

			NewTableRenderer(cmd.OutOrStdout(), deps.Config.Feeds.DefaultTTL).RenderTable(tbl.All(), catalog)
			return nil
		},
	}
}
