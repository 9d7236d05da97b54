package probe

import (
	"github.com/spf13/cobra"

	"github.com/ando01/BirdView/internal/analysis"
	"github.com/ando01/BirdView/internal/conf"
)

// Command creates the command that reports the inference hardware.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report accelerator and CPU capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Probe(settings, cmd.OutOrStdout())
		},
	}
}
