package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ando01/BirdView/internal/buildinfo"
)

// Command prints build information.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Current()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "birdview %s (built %s, %s)\n",
				info.GetVersion(), info.GetBuildDate(), info.GoVersion)
			return err
		},
	}
}
