package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/bimcollab/internal/bcf"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bcf %s (BCF %s)\n", Version, bcf.Version)
			return err
		},
	}
}
