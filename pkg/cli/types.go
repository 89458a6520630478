package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"opcrdt/pkg/crdt"

	"github.com/spf13/cobra"
)

// NewTypesCommand lists the registered CRDT types and their mutators.
func NewTypesCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the built-in CRDT types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeTypes(cmd.OutOrStdout(), crdt.DefaultStore())
		},
	}
}

func writeTypes(w io.Writer, store crdt.Store) error {
	for _, name := range store.Names() {
		typ, err := store.Lookup(name)
		if err != nil {
			return err
		}
		mutators := make([]string, 0)
		for m := range typ.Mutators() {
			mutators = append(mutators, m)
		}
		sort.Strings(mutators)
		if _, err := fmt.Fprintf(w, "%-14s %s\n", name, strings.Join(mutators, ", ")); err != nil {
			return err
		}
	}
	return nil
}
