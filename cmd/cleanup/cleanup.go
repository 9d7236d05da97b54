package cleanup

import (
	"github.com/spf13/cobra"

	"github.com/ando01/BirdView/internal/analysis"
	"github.com/ando01/BirdView/internal/conf"
)

// Command creates the command that applies the retention policy once.
func Command(settings *conf.Settings) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete media and detections past the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Cleanup(cmd.Context(), settings, days, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days, overrides storage.retentiondays")
	return cmd
}
