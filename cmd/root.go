package cmd

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ando01/BirdView/cmd/cleanup"
	"github.com/ando01/BirdView/cmd/frigate"
	"github.com/ando01/BirdView/cmd/probe"
	"github.com/ando01/BirdView/cmd/realtime"
	"github.com/ando01/BirdView/cmd/version"
	"github.com/ando01/BirdView/internal/buildinfo"
	"github.com/ando01/BirdView/internal/conf"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

const sentryFlushTimeout = 2 * time.Second

var (
	centralLogger atomic.Pointer[logger.CentralLogger]
	sentryEnabled atomic.Bool
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "birdview",
		Short:         "BirdView bird feeder camera analyzer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(settings)
		},
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		realtime.Command(settings),
		frigate.Command(settings),
		cleanup.Command(settings),
		probe.Command(settings),
		version.Command(),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Storage.Path, "storage", viper.GetString("storage.path"), "Directory for snapshots, thumbnails and clips")
	rootCmd.PersistentFlags().Float64Var(&settings.Classification.Threshold, "threshold", viper.GetFloat64("classification.threshold"), "Species confidence threshold between 0.0 and 1.0")
	rootCmd.PersistentFlags().BoolVar(&settings.Accelerator.Enabled, "accelerator", viper.GetBool("accelerator.enabled"), "Use an Edge TPU when one is present")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// initialize sets up logging and error telemetry once flags are parsed.
func initialize(settings *conf.Settings) error {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}
	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(cl)
	centralLogger.Store(cl)

	if settings.Telemetry.Enabled {
		if _, err := errors.InitSentry(settings.Telemetry.DSN, buildinfo.Current().GetVersion()); err != nil {
			logger.Global().Module("main").Warn("error telemetry disabled", logger.Error(err))
		} else {
			sentryEnabled.Store(true)
		}
	}
	return nil
}

// RotateLogs reopens the log file, for use on SIGHUP.
func RotateLogs() {
	cl := centralLogger.Load()
	if cl == nil {
		return
	}
	if err := cl.Rotate(); err != nil {
		logger.Global().Module("main").Warn("log rotation failed", logger.Error(err))
	}
}

// Shutdown flushes pending telemetry and closes log outputs.
func Shutdown() {
	if sentryEnabled.Load() {
		errors.FlushSentry(sentryFlushTimeout)
	}
	if cl := centralLogger.Swap(nil); cl != nil {
		_ = cl.Close()
	}
}
