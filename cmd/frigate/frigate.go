package frigate

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ando01/BirdView/internal/analysis"
	"github.com/ando01/BirdView/internal/conf"
)

// Command creates the command that classifies Frigate bird events.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frigate",
		Short: "Classify bird events from a Frigate NVR",
		Long:  "Subscribe to Frigate events over MQTT, fetch each bird snapshot and classify the species.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.FrigateAnalysis(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Frigate.URL, "url", viper.GetString("frigate.url"), "Frigate base URL")
	cmd.Flags().StringVar(&settings.MQTT.Broker, "broker", viper.GetString("mqtt.broker"), "MQTT broker carrying Frigate events")
	cmd.Flags().StringSliceVar(&settings.Frigate.Cameras, "cameras", viper.GetStringSlice("frigate.cameras"), "Frigate cameras to accept, empty for all")
	cmd.Flags().IntVar(&settings.Frigate.MaxWorkers, "workers", viper.GetInt("frigate.maxworkers"), "Events classified concurrently")
	cmd.Flags().BoolVar(&settings.Frigate.DownloadClips, "clips", viper.GetBool("frigate.downloadclips"), "Download the Frigate clip for each event")
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "web", viper.GetBool("webserver.enabled"), "Serve the status API")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
