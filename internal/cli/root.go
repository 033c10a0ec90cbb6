// Package cli implements the cladecall command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	verbose   bool
}

var flags rootFlags

// NewRootCmd creates the top-level "cladecall" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cladecall",
		Short: "Lineage imputation for ancestral recombination graphs",
		Long: "Cladecall assigns a lineage label to every node of a tree-sequence\n" +
			"encoded genealogy, inferring labels for internal nodes from the\n" +
			"mutations accumulated along genealogical paths.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: .cladecall)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "emit progress diagnostics on stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newImputeCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUserError)
	}
}

// resolveConfigDir returns the config directory from flag, env, or default.
func resolveConfigDir() string {
	if flags.configDir != "" {
		return flags.configDir
	}
	if v := os.Getenv("CLADECALL_CONFIG_DIR"); v != "" {
		return v
	}
	return ".cladecall"
}

// progress prints a diagnostic line to stderr when verbose mode is on.
func progress(format string, args ...any) {
	if flags.verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
