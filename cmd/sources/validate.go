package sources

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/feeds/cmd/common"
	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
)

// ErrMissingPrograms is returned by a strict validation when a pull source
// has no patch program.
var ErrMissingPrograms = errors.New("pull sources without a patch program")

// Validation summarises a source table checked against a catalog.
type Validation struct {
	Sources  int
	Pull     int
	Programs int
	// Missing lists pull sources the tick loop will skip.
	Missing []string
	// Orphaned lists programs that no pull source uses.
	Orphaned []string
}

// CatalogIndex is the catalog surface validation needs.
type CatalogIndex interface {
	Sources() []string
	Missing(names []string) []string
}

// Validate checks tbl against catalog.
func Validate(tbl *feed.Table, catalog CatalogIndex) Validation {
	pull := tbl.Pull()
	names := make([]string, len(pull))
	used := make(map[string]bool, len(pull))
	for i, src := range pull {
		names[i] = src.Name
		used[src.Name] = true
	}

	programs := catalog.Sources()
	v := Validation{
		Sources:  tbl.Len(),
		Pull:     len(pull),
		Programs: len(programs),
		Missing:  catalog.Missing(names),
	}
	for _, name := range programs {
		if !used[name] {
			v.Orphaned = append(v.Orphaned, name)
		}
	}
	return v
}

// Print writes a human-readable summary.
func (v Validation) Print(w io.Writer) {
	fmt.Fprintf(w, "Sources: %d (%d pull)\n", v.Sources, v.Pull)
	fmt.Fprintf(w, "Patch programs: %d\n", v.Programs)
	for _, name := range v.Missing {
		fmt.Fprintf(w, "  missing program: %s (skipped on every tick)\n", name)
	}
	for _, name := range v.Orphaned {
		fmt.Fprintf(w, "  unused program: %s\n", name)
	}
	if len(v.Missing) == 0 && len(v.Orphaned) == 0 {
		fmt.Fprintln(w, "OK")
	}
}

// NewValidateCommand creates the validate subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the source table and patch catalog",
		Long: `Loads the source table and compiles every patch program, then reports
pull sources without a program and programs without a source.

Example:
  # Fail when any pull source lacks a program
  feeds sources validate --strict`,
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

			v := Validate(tbl, catalog)
			v.Print(cmd.OutOrStdout())

			if strict && len(v.Missing) > 0 {
				return fmt.Errorf("%w: %v", ErrMissingPrograms, v.Missing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a pull source has no patch program")

	return cmd
}
