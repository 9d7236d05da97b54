// Package analysis assembles the pipelines from configuration and runs them
// until the context is cancelled.
package analysis

import (
	"context"
	"time"

	"github.com/ando01/BirdView/internal/accelerator"
	"github.com/ando01/BirdView/internal/buildinfo"
	"github.com/ando01/BirdView/internal/classifier"
	"github.com/ando01/BirdView/internal/conf"
	"github.com/ando01/BirdView/internal/datastore"
	"github.com/ando01/BirdView/internal/detector"
	"github.com/ando01/BirdView/internal/httpserver"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/mqtt"
	"github.com/ando01/BirdView/internal/notification"
	"github.com/ando01/BirdView/internal/observability"
	"github.com/ando01/BirdView/internal/pipeline"
	"github.com/ando01/BirdView/internal/settings"
	"github.com/ando01/BirdView/internal/storage"
)

// Run modes reported on the status surface.
const (
	ModeRealtime = "realtime"
	ModeFrigate  = "frigate"
)

const (
	pushTimeout     = 10 * time.Second
	mqttConnectWait = 30 * time.Second
	notifyQueueSize = 32
)

// services are the collaborators shared by both pipelines.
type services struct {
	settings  *conf.Settings
	metrics   *observability.Metrics
	store     datastore.Interface
	media     *storage.Store
	params    *settings.Provider
	stats     *pipeline.Stats
	fanout    notification.Multi
	notifier  notification.Notifier
	mqtt      *mqtt.PahoClient
	discovery *mqtt.DiscoveryPublisher
	http      *httpserver.Server

	closers []func()
}

// openServices opens the datastore and media tree and connects the outputs.
// needMQTT forces an MQTT client even when publishing is disabled.
func openServices(ctx context.Context, s *conf.Settings, needMQTT bool) (*services, error) {
	svc := &services{settings: s}
	ok := false
	defer func() {
		if !ok {
			svc.Close()
		}
	}()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	svc.metrics = m

	svc.store = datastore.New(s, m.Datastore)
	if err := svc.store.Open(); err != nil {
		return nil, err
	}
	svc.addCloser(func() {
		if err := svc.store.Close(); err != nil {
			GetLogger().Warn("failed to close datastore", logger.Error(err))
		}
	})

	if svc.media, err = storage.New(storage.Options{Root: s.Storage.Path, Quality: s.Storage.SnapshotQuality}); err != nil {
		return nil, err
	}

	svc.params = settings.NewProvider(svc.store, defaultParams(s), settings.DefaultTTL)
	svc.stats = pipeline.NewStats(nil)
	svc.seedToday(ctx)

	if s.Notification.Enabled && len(s.Notification.URLs) > 0 {
		push, err := notification.NewPush(notification.PushOptions{
			URLs:    s.Notification.URLs,
			Every:   s.Notification.RateLimit,
			Burst:   s.Notification.Burst,
			Timeout: pushTimeout,
			Metrics: m.Notification,
		})
		if err != nil {
			return nil, err
		}
		svc.fanout = append(svc.fanout, push)
	}
	if s.Notification.Enabled && s.Notification.Script.Command != "" {
		script, err := notification.NewScript(notification.ScriptOptions{
			Command:     s.Notification.Script.Command,
			Args:        s.Notification.Script.Args,
			InputFormat: s.Notification.Script.InputFormat,
			Timeout:     s.Notification.Script.Timeout,
			Metrics:     m.Notification,
		})
		if err != nil {
			return nil, err
		}
		svc.fanout = append(svc.fanout, script)
	}

	if s.MQTT.Enabled || needMQTT {
		svc.connectMQTT(ctx)
	}

	if len(svc.fanout) > 0 {
		async := notification.NewAsync(svc.fanout, notifyQueueSize)
		svc.notifier = async
		svc.addCloser(async.Close)
	}

	ok = true
	return svc, nil
}

func defaultParams(s *conf.Settings) settings.Snapshot {
	return settings.Snapshot{
		Detector: detector.Params{
			Confidence: s.Detection.Confidence,
			Zone:       detector.ZoneFromPairs(s.Detection.Zone),
		},
		Classifier: classifier.Params{Threshold: s.Classification.Threshold},
	}
}

// seedToday restores the daily counter so a restart does not reset it.
func (svc *services) seedToday(ctx context.Context) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n, err := svc.store.CountSince(ctx, midnight)
	if err != nil {
		GetLogger().Warn("failed to count today's detections", logger.Error(err))
		return
	}
	svc.stats.Seed(int(n))
	svc.metrics.Pipeline.SetDetectionsToday(int(n))
}

// connectMQTT starts the client. A broker that is down is not fatal; the
// client keeps retrying in the background.
func (svc *services) connectMQTT(ctx context.Context) {
	s := svc.settings
	cfg := mqtt.DefaultConfig()
	cfg.Broker = s.MQTT.Broker
	cfg.Username = s.MQTT.Username
	cfg.Password = s.MQTT.Password
	cfg.StatusTopic = mqtt.StatusTopic(s.MQTT.TopicPrefix)

	client := mqtt.NewClient(cfg, svc.metrics.MQTT)
	svc.mqtt = client

	if s.MQTT.Enabled {
		svc.fanout = append(svc.fanout, mqtt.NewPublisher(client, s.MQTT.TopicPrefix, s.MQTT.Retain, s.WebServer.BaseURL))
		if s.MQTT.HomeAssistant.Enabled {
			svc.discovery = mqtt.NewDiscoveryPublisher(client, mqtt.DiscoveryConfig{
				DiscoveryPrefix: s.MQTT.HomeAssistant.DiscoveryPrefix,
				BaseTopic:       s.MQTT.TopicPrefix,
				Version:         buildinfo.Current().GetVersion(),
			})
			client.OnConnect(func() {
				if err := svc.discovery.PublishDiscovery(context.WithoutCancel(ctx)); err != nil {
					GetLogger().Warn("failed to publish Home Assistant discovery", logger.Error(err))
				}
			})
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, mqttConnectWait)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		GetLogger().Warn("MQTT broker not reachable, retrying in background",
			logger.String("broker", logger.RedactURL(s.MQTT.Broker)),
			logger.Error(err))
	}
	svc.addCloser(client.Disconnect)
}

// startHTTP serves the status surface when enabled.
func (svc *services) startHTTP(mode string, deps httpserver.Deps) {
	if !svc.settings.WebServer.Enabled {
		return
	}
	deps.Stats = svc.stats
	deps.Detections = svc.store
	deps.Settings = svc.store
	deps.Params = svc.params
	deps.Metrics = svc.metrics.Handler()

	opts := httpserver.Options{
		Listen:    svc.settings.WebServer.Listen,
		Mode:      mode,
		MediaRoot: svc.media.Root(),
	}
	if auth := svc.settings.WebServer.Auth; auth.Enabled {
		opts.Auth = &httpserver.BasicAuth{Username: auth.Username, PasswordHash: auth.PasswordHash}
	}
	svc.http = httpserver.New(deps, opts)
	svc.http.Start()
	svc.addCloser(func() {
		if err := svc.http.Shutdown(context.Background()); err != nil {
			GetLogger().Warn("HTTP server shutdown failed", logger.Error(err))
		}
	})
}

// runRetention starts the periodic media and row sweep.
func (svc *services) runRetention(ctx context.Context) {
	go svc.media.RunRetention(ctx, svc.settings.Storage.CleanupInterval, svc.settings.Storage.RetentionDays, svc.store)
}

func (svc *services) addCloser(fn func()) {
	svc.closers = append(svc.closers, fn)
}

// Close releases everything in reverse order of opening.
func (svc *services) Close() {
	for i := len(svc.closers) - 1; i >= 0; i-- {
		svc.closers[i]()
	}
	svc.closers = nil
}

// newDispatcher probes for an accelerator unless it is disabled.
func newDispatcher(s *conf.Settings) *accelerator.Dispatcher {
	probe := accelerator.Probe{Reason: "disabled in configuration"}
	if s.Accelerator.Enabled {
		probe = accelerator.ProbeSystem(s.Accelerator.DevicePaths)
	}
	return accelerator.NewDispatcher(probe, nil, s.Accelerator.Threads)
}

// newClassifier loads the species model, its labels and the optional names
// database. The returned func releases all of them.
func newClassifier(s *conf.Settings, d *accelerator.Dispatcher, defaults classifier.Params) (*classifier.Classifier, func(), error) {
	labels, err := classifier.LoadLabels(s.Classification.LabelsPath)
	if err != nil {
		return nil, nil, err
	}

	model, accelerated, err := d.Load(s.Classification.ModelPath, s.Classification.AcceleratorModelPath)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){model.Close}

	var lookup classifier.NameLookup
	if s.Classification.NamesDB != "" {
		db, err := classifier.OpenBirdNames(s.Classification.NamesDB)
		if err != nil {
			GetLogger().Warn("common names database unavailable, using label names",
				logger.String("path", s.Classification.NamesDB),
				logger.Error(err))
		} else {
			lookup = db
			closers = append(closers, func() { _ = db.Close() })
		}
	}

	c := classifier.New(model, accelerated, labels, lookup, classifier.Options{
		InputSize:       s.Classification.InputSize,
		BackgroundIndex: s.Classification.BackgroundIndex,
		Defaults:        defaults,
	})
	return c, func() {
		for _, fn := range closers {
			fn()
		}
	}, nil
}
