package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ando01/BirdView/internal/accelerator"
	"github.com/ando01/BirdView/internal/camera"
	"github.com/ando01/BirdView/internal/datastore"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/pipeline"
	"github.com/ando01/BirdView/internal/settings"
)

const (
	defaultDetectionLimit = 10
	maxDetectionLimit     = 100
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Mode          string                  `json:"mode"`
	Version       string                  `json:"version"`
	BuildDate     string                  `json:"build_date"`
	UptimeSeconds float64                 `json:"uptime_seconds"`
	Camera        *camera.Status          `json:"camera,omitempty"`
	ActiveVisits  int                     `json:"active_visits"`
	Today         int                     `json:"today"`
	LastDetection *pipeline.LastDetection `json:"last_detection"`
	Accelerator   *accelerator.Probe      `json:"accelerator,omitempty"`
	Host          HostStats               `json:"host"`
	Timestamp     time.Time               `json:"timestamp"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": s.build.GetVersion(),
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) status(c echo.Context) error {
	resp := StatusResponse{
		Mode:          s.opts.Mode,
		Version:       s.build.GetVersion(),
		BuildDate:     s.build.GetBuildDate(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Today:         s.deps.Stats.Today(),
		Accelerator:   s.deps.Accelerator,
		Host:          s.opts.HostStats(c.Request().Context(), s.opts.MediaRoot),
		Timestamp:     time.Now(),
	}
	if s.deps.Camera != nil {
		st := s.deps.Camera.Status()
		resp.Camera = &st
	}
	if s.deps.Visits != nil {
		resp.ActiveVisits = s.deps.Visits.ActiveVisits()
	}
	if last, ok := s.deps.Stats.Last(); ok {
		resp.LastDetection = &last
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) recentDetections(c echo.Context) error {
	limit := defaultDetectionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxDetectionLimit)
	}

	detections, err := s.deps.Detections.RecentDetections(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if detections == nil {
		detections = []datastore.Detection{}
	}
	return c.JSON(http.StatusOK, detections)
}

func (s *Server) dailySummary(c echo.Context) error {
	day := time.Now()
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		day = parsed
	}

	summary, err := s.deps.Detections.DailySummary(c.Request().Context(), day)
	if err != nil {
		return err
	}
	if summary == nil {
		summary = []datastore.SpeciesSummary{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"date":    day.Format(time.DateOnly),
		"species": summary,
	})
}

func (s *Server) listSettings(c echo.Context) error {
	if s.deps.Settings == nil {
		return echo.NewHTTPError(http.StatusNotFound, "runtime settings are not available")
	}
	all, err := s.deps.Settings.GetAllSettings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, all)
}

type settingRequest struct {
	Value json.RawMessage `json:"value"`
}

// updateSetting stores one override. The value is kept as the JSON text it
// was sent as, so numbers and zone polygons round-trip unchanged.
func (s *Server) updateSetting(c echo.Context) error {
	if s.deps.Settings == nil {
		return echo.NewHTTPError(http.StatusNotFound, "runtime settings are not available")
	}
	key := c.Param("key")

	var req settingRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || len(req.Value) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, `body must be {"value": ...}`)
	}

	if err := settings.Set(c.Request().Context(), s.deps.Settings, key, string(req.Value)); err != nil {
		return err
	}
	if s.deps.Params != nil {
		s.deps.Params.Invalidate()
	}
	GetLogger().Info("runtime setting updated",
		logger.String("key", key),
		logger.String("value", string(req.Value)))
	return c.JSON(http.StatusOK, map[string]string{"key": key, "value": string(req.Value)})
}

// errorHandler maps categorized errors to status codes and renders every
// failure as an ErrorResponse.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := err.Error()
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	case errors.IsCategory(err, errors.CategoryValidation):
		code = http.StatusBadRequest
	case errors.IsNotFound(err):
		code = http.StatusNotFound
	}

	if code >= http.StatusInternalServerError {
		GetLogger().Error("request failed",
			logger.String("path", c.Path()),
			logger.Error(err))
		message = "internal error"
	}

	_ = c.JSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
