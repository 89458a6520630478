package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command of the opcrdt CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "opcrdt",
		Short:         "Operation-based CRDT engine",
		Long:          "Replicated data types that converge without coordination, simulated over an in-memory network.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config")

	cmd.AddCommand(NewTypesCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))

	return cmd
}
