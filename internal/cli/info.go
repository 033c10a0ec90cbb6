package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-genomics/cladecall/internal/store"
	"github.com/mesh-genomics/cladecall/internal/topology"
)

// newInfoCmd creates the "info" command: a summary of an artifact and a
// tally of known sample lineages.
func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <arg.db>",
		Short: "Summarize a tree-sequence artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := store.Load(args[0])
			if err != nil {
				return fmt.Errorf("load artifact: %w", err)
			}
			idx, err := topology.New(tables)
			if err != nil {
				return err
			}

			samples := 0
			tally := map[string]int{}
			for _, n := range tables.Nodes {
				if !n.IsSample {
					continue
				}
				samples++
				if n.Lineage != "" {
					tally[n.Lineage]++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sequence_length\t%g\n", tables.SequenceLength)
			fmt.Fprintf(out, "nodes\t%d\n", len(tables.Nodes))
			fmt.Fprintf(out, "samples\t%d\n", samples)
			fmt.Fprintf(out, "edges\t%d\n", len(tables.Edges))
			fmt.Fprintf(out, "sites\t%d\n", len(tables.Sites))
			fmt.Fprintf(out, "mutations\t%d\n", len(tables.Mutations))
			fmt.Fprintf(out, "trees\t%d\n", idx.NumTrees())

			names := make([]string, 0, len(tally))
			for name := range tally {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "lineage\t%s\t%d\n", name, tally[name])
			}
			return nil
		},
	}
}
