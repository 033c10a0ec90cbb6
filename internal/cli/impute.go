package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-genomics/cladecall/internal/catalog"
	"github.com/mesh-genomics/cladecall/internal/editor"
	"github.com/mesh-genomics/cladecall/internal/impute"
	"github.com/mesh-genomics/cladecall/internal/store"
	"github.com/mesh-genomics/cladecall/internal/topology"
	"github.com/mesh-genomics/cladecall/pkg/types"
)

// newImputeCmd creates the "impute" command: the full pipeline from input
// artifact and catalog to annotated output artifact.
func newImputeCmd() *cobra.Command {
	var (
		internalOnly bool
		force        bool
		penalty      float64
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "impute <arg.db> <lineages.jsonl> <out.db>",
		Short: "Assign a lineage label to every node of the genealogy",
		Long: "Impute reads a tree-sequence artifact and a lineage catalog, computes\n" +
			"a lineage vote for every node in every local tree, reconciles the votes\n" +
			"by genomic coverage, and writes a copy of the artifact with the\n" +
			"assignment embedded in node metadata.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, catalogPath, outputPath := args[0], args[1], args[2]

			cfg, err := loadConfig(resolveConfigDir())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("internal-only") {
				cfg.InternalOnly = internalOnly
			}
			if cmd.Flags().Changed("penalty") {
				cfg.Penalty = penalty
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			cfg.Verbose = flags.verbose
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runImpute(inputPath, catalogPath, outputPath, cfg, force)
		},
	}

	cmd.Flags().BoolVar(&internalOnly, "internal-only", false, "restrict imputation to non-sample nodes")
	cmd.Flags().BoolVar(&force, "force", false, "override an incompatible lineage metadata schema in the input")
	cmd.Flags().Float64Var(&penalty, "penalty", types.DefaultPenalty, "conflict penalty applied to observed contradictions")
	cmd.Flags().IntVar(&workers, "workers", types.DefaultWorkers, "genomic windows processed in parallel")

	return cmd
}

func runImpute(inputPath, catalogPath, outputPath string, cfg types.Config, force bool) error {
	tables, err := store.Load(inputPath)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	progress("loaded artifact: %d nodes, %d edges, %d sites, %d mutations",
		len(tables.Nodes), len(tables.Edges), len(tables.Sites), len(tables.Mutations))

	idx, err := topology.New(tables)
	if err != nil {
		return err
	}
	progress("indexed topology: %d local trees", idx.NumTrees())

	cat, warnings, err := catalog.Load(catalogPath, idx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	progress("loaded catalog: %d lineages", cat.Len())

	engine, err := impute.New(idx, cat, cfg)
	if err != nil {
		return err
	}
	st, err := engine.Run()
	if err != nil {
		return err
	}

	assignments, err := st.Assignments()
	if err != nil {
		return err
	}
	byConfidence := map[string]int{}
	for _, a := range assignments {
		byConfidence[a.Confidence]++
	}
	progress("assigned %d nodes: %d unanimous, %d majority, %d none",
		len(assignments),
		byConfidence[types.ConfidenceUnanimous],
		byConfidence[types.ConfidenceMajority],
		byConfidence[types.ConfidenceNone])

	opts := editor.Options{Override: force, Config: cfg, CatalogPath: catalogPath}
	if err := editor.Write(inputPath, outputPath, tables, st, opts); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	progress("wrote %s", outputPath)
	return nil
}
