package app

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the region-session CLI's command tree.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "region-session",
		Short:         "Per-region UDP session layer driver",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Bool("dev-log", false, "use a human-readable console log encoder instead of JSON")

	root.AddCommand(newConnectCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newStatusCommand())
	return root
}
