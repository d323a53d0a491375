// Package sources implements the sources command group.
package sources

import (
	"github.com/spf13/cobra"
)

// Command returns the sources command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect configured feed sources",
		Long:  `Inspect and validate the source table and the patch catalog.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		NewListCommand(),
		NewValidateCommand(),
	)

	return cmd
}
