// Version command for the cladecall CLI.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-genomics/cladecall/pkg/cladecall"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cladecall version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "cladecall", cladecall.Version)
		},
	}
}
