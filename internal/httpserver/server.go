// Package httpserver serves the read-only status surface, the recent
// detections list, runtime setting overrides, Prometheus metrics and the
// stored media files.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ando01/BirdView/internal/accelerator"
	"github.com/ando01/BirdView/internal/buildinfo"
	"github.com/ando01/BirdView/internal/camera"
	"github.com/ando01/BirdView/internal/datastore"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/pipeline"
)

const (
	defaultListen   = ":8080"
	shutdownTimeout = 10 * time.Second
	bodyLimit       = "64K"
)

// CameraStatus reports the frame source state.
type CameraStatus interface {
	Status() camera.Status
}

// VisitCounter reports how many visits are being tracked.
type VisitCounter interface {
	ActiveVisits() int
}

// DetectionReader lists persisted detections.
type DetectionReader interface {
	RecentDetections(ctx context.Context, limit int) ([]datastore.Detection, error)
	DailySummary(ctx context.Context, day time.Time) ([]datastore.SpeciesSummary, error)
}

// SettingsStore reads and writes runtime overrides.
type SettingsStore interface {
	GetAllSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Invalidator drops cached settings so the next read sees a change.
type Invalidator interface {
	Invalidate()
}

// Deps are the collaborators the handlers read from. Camera and Visits are
// nil in Frigate mode; Settings, Params and Metrics may be nil.
type Deps struct {
	Camera      CameraStatus
	Visits      VisitCounter
	Stats       *pipeline.Stats
	Detections  DetectionReader
	Settings    SettingsStore
	Params      Invalidator
	Accelerator *accelerator.Probe
	Metrics     http.Handler
}

// Options configures a Server.
type Options struct {
	Listen    string
	Mode      string // realtime or frigate
	MediaRoot string     // served under /media; empty disables it
	Auth      *BasicAuth // guards write endpoints when set
	HostStats HostStatsFunc
}

// Server is the status HTTP server.
type Server struct {
	echo      *echo.Echo
	deps      Deps
	opts      Options
	build     buildinfo.Context
	startTime time.Time
}

// New builds the server and registers its routes. It does not listen.
func New(deps Deps, opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = defaultListen
	}
	if opts.HostStats == nil {
		opts.HostStats = SampleHost
	}
	if deps.Stats == nil {
		deps.Stats = pipeline.NewStats(nil)
	}

	s := &Server{
		echo:      echo.New(),
		deps:      deps,
		opts:      opts,
		build:     buildinfo.Current(),
		startTime: time.Now(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.errorHandler

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(requestLogger())
	s.echo.Use(echomw.BodyLimit(bodyLimit))
	s.echo.Use(echomw.GzipWithConfig(echomw.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/media/*"
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.status)
	api.GET("/detections", s.recentDetections)
	api.GET("/summary", s.dailySummary)
	api.GET("/settings", s.listSettings)
	var guard []echo.MiddlewareFunc
	if s.opts.Auth != nil {
		guard = append(guard, s.opts.Auth.middleware())
	}
	api.PUT("/settings/:key", s.updateSetting, guard...)

	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}
	if s.opts.MediaRoot != "" {
		s.echo.Static("/media", s.opts.MediaRoot)
	}
}

// requestLogger logs each request at debug level through the module logger.
func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			GetLogger().Debug("request", fields...)
			return nil
		},
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves in a background goroutine and returns immediately.
func (s *Server) Start() {
	go func() {
		GetLogger().Info("HTTP server starting", logger.String("address", s.opts.Listen))
		if err := s.echo.Start(s.opts.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			GetLogger().Error("HTTP server failed", logger.Error(err))
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return errors.New(err).
			Component("httpserver").
			Category(errors.CategoryNetwork).
			Context("operation", "shutdown").
			Build()
	}
	return nil
}
