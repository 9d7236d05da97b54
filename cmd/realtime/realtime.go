package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ando01/BirdView/internal/analysis"
	"github.com/ando01/BirdView/internal/conf"
)

// Command creates the command for camera analysis.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Analyze a camera stream in realtime",
		Long:  "Read frames from the configured camera, detect birds, classify species and record each visit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Camera.URL, "camera", viper.GetString("camera.url"), "Camera stream URL or device")
	cmd.Flags().Float64Var(&settings.Camera.DetectionFPS, "fps", viper.GetFloat64("camera.detectionfps"), "Frames analyzed per second")
	cmd.Flags().Float64Var(&settings.Detection.Confidence, "confidence", viper.GetFloat64("detection.confidence"), "Bird detection confidence between 0.0 and 1.0")
	cmd.Flags().BoolVar(&settings.Motion.Enabled, "motion", viper.GetBool("motion.enabled"), "Skip detection on frames without motion")
	cmd.Flags().BoolVar(&settings.Daylight.Enabled, "daylight", viper.GetBool("daylight.enabled"), "Analyze only between civil dawn and dusk")
	cmd.Flags().BoolVar(&settings.Clips.Enabled, "clips", viper.GetBool("clips.enabled"), "Save a video clip for each visit")
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "web", viper.GetBool("webserver.enabled"), "Serve the status API")
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Listen address of the status API")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
