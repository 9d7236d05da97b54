package analysis

import (
	"context"
	"sync"

	"github.com/ando01/BirdView/internal/camera"
	"github.com/ando01/BirdView/internal/clip"
	"github.com/ando01/BirdView/internal/conf"
	"github.com/ando01/BirdView/internal/daylight"
	"github.com/ando01/BirdView/internal/detector"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/httpserver"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/motion"
	"github.com/ando01/BirdView/internal/pipeline"
	"github.com/ando01/BirdView/internal/tracker"
)

// RealtimeAnalysis runs the camera pipeline until ctx is cancelled.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings) error {
	log := GetLogger()
	if settings.Camera.URL == "" {
		return errors.Newf("camera url is not configured").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}

	svc, err := openServices(ctx, settings, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	dispatcher := newDispatcher(settings)
	probe := dispatcher.Probe()
	defaults := defaultParams(settings)

	detModel, detAccel, err := dispatcher.Load(settings.Detection.ModelPath, settings.Detection.AcceleratorModelPath)
	if err != nil {
		return err
	}
	defer detModel.Close()
	det := detector.New(detModel, detAccel, detector.Options{
		InputSize:   settings.Detection.InputSize,
		TargetClass: settings.Detection.TargetClass,
		Defaults:    defaults.Detector,
	})

	cls, closeCls, err := newClassifier(settings, dispatcher, defaults.Classifier)
	if err != nil {
		return err
	}
	defer closeCls()

	source := camera.New(camera.Options{
		URL:               settings.Camera.URL,
		BufferSeconds:     settings.Camera.BufferSeconds,
		BufferCapacity:    settings.Camera.BufferCapacity,
		ReconnectDelay:    settings.Camera.ReconnectDelay,
		MaxReconnectDelay: settings.Camera.MaxReconnectDelay,
		Metrics:           svc.metrics.Camera,
	})
	defer source.Close()

	deps := pipeline.Deps{
		Source:     source,
		Detector:   det,
		Classifier: cls,
		Params:     svc.params,
		Tracker: tracker.New(tracker.Options{
			MaxMissingFrames: settings.Tracker.MaxMissingFrames,
			IoUThreshold:     settings.Tracker.IoUThreshold,
		}),
		Media:    svc.media,
		Store:    svc.store,
		Notifier: svc.notifier,
		Stats:    svc.stats,
		Metrics:  svc.metrics.Pipeline,
	}
	if settings.Motion.Enabled {
		gate := motion.New(motion.Options{
			MinArea:      settings.Motion.MinArea,
			History:      settings.Motion.History,
			VarThreshold: settings.Motion.VarThreshold,
		})
		defer gate.Close()
		deps.Motion = gate
	}
	if settings.Daylight.Enabled {
		schedule, err := daylight.New(settings.Daylight.Latitude, settings.Daylight.Longitude, nil)
		if err != nil {
			return err
		}
		deps.Schedule = schedule
	}
	if settings.Clips.Enabled {
		deps.Encoder = clip.New(clip.Options{
			FPS:        settings.Clips.FPS,
			Transcode:  settings.Clips.Transcode,
			FFmpegPath: settings.Clips.FFmpegPath,
			Timeout:    settings.Clips.Timeout,
			Metrics:    svc.metrics.Clip,
		})
	}

	orch := pipeline.New(deps, pipeline.Options{
		Period:          pipeline.PeriodFromFPS(settings.Camera.DetectionFPS),
		PreCapture:      settings.Clips.PreCapture,
		PostCapture:     settings.Clips.PostCapture,
		MaxClipDuration: settings.Clips.MaxDuration,
	})

	svc.startHTTP(ModeRealtime, httpserver.Deps{
		Camera:      source,
		Visits:      orch,
		Accelerator: &probe,
	})
	svc.runRetention(ctx)

	log.Info("realtime pipeline starting",
		logger.String("camera", logger.RedactURL(settings.Camera.URL)),
		logger.Float64("detection_fps", settings.Camera.DetectionFPS),
		logger.Bool("detector_accelerated", detAccel),
		logger.Bool("motion_gate", settings.Motion.Enabled),
		logger.Bool("daylight_only", settings.Daylight.Enabled),
		logger.Bool("clips", settings.Clips.Enabled))

	var wg sync.WaitGroup
	wg.Go(func() {
		source.Run(ctx)
	})

	orch.Run(ctx)
	wg.Wait()

	log.Info("realtime pipeline stopped",
		logger.Int("detections_today", svc.stats.Today()))
	return nil
}
