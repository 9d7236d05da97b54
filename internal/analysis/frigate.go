package analysis

import (
	"context"

	"github.com/ando01/BirdView/internal/conf"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/frigate"
	"github.com/ando01/BirdView/internal/httpserver"
	"github.com/ando01/BirdView/internal/logger"
)

// FrigateAnalysis classifies bird events published by a Frigate NVR until
// ctx is cancelled. Only the classifier model is loaded in this mode.
func FrigateAnalysis(ctx context.Context, settings *conf.Settings) error {
	log := GetLogger()
	if settings.Frigate.URL == "" || settings.MQTT.Broker == "" {
		return errors.Newf("frigate mode requires frigate.url and mqtt.broker").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("frigate_url_set", settings.Frigate.URL != "").
			Context("mqtt_broker_set", settings.MQTT.Broker != "").
			Build()
	}

	svc, err := openServices(ctx, settings, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	dispatcher := newDispatcher(settings)
	probe := dispatcher.Probe()
	cls, closeCls, err := newClassifier(settings, dispatcher, defaultParams(settings).Classifier)
	if err != nil {
		return err
	}
	defer closeCls()

	client := frigate.NewClient(frigate.ClientOptions{
		BaseURL: settings.Frigate.URL,
		Timeout: settings.Frigate.RequestTimeout,
		Metrics: svc.metrics.Frigate,
	})
	defer client.Close()

	proc := frigate.NewProcessor(frigate.Deps{
		Media:      client,
		Classifier: cls,
		Params:     svc.params,
		Storage:    svc.media,
		Store:      svc.store,
		Notifier:   svc.notifier,
		Stats:      svc.stats,
		Metrics:    svc.metrics.Frigate,
	}, frigate.Options{
		Topic: settings.Frigate.Topic,
		Filter: frigate.Filter{
			Cameras:           settings.Frigate.Cameras,
			ProcessOnSnapshot: settings.Frigate.ProcessOnSnapshot,
		},
		MaxWorkers:    settings.Frigate.MaxWorkers,
		DownloadClips: settings.Frigate.DownloadClips,
		ClipDelay:     settings.Frigate.ClipDelay,
	})

	svc.startHTTP(ModeFrigate, httpserver.Deps{Accelerator: &probe})
	svc.runRetention(ctx)

	log.Info("frigate pipeline starting",
		logger.String("frigate", logger.RedactURL(settings.Frigate.URL)),
		logger.String("topic", settings.Frigate.Topic),
		logger.Int("max_workers", settings.Frigate.MaxWorkers))

	if err := proc.Run(ctx, svc.mqtt); err != nil {
		return err
	}

	log.Info("frigate pipeline stopped",
		logger.Int("detections_today", svc.stats.Today()))
	return nil
}
