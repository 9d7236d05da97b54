package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ando01/BirdView/internal/accelerator"
	"github.com/ando01/BirdView/internal/camera"
	"github.com/ando01/BirdView/internal/datastore"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/observability"
	"github.com/ando01/BirdView/internal/pipeline"
	"github.com/ando01/BirdView/internal/settings"
	"github.com/ando01/BirdView/internal/vision"
)

type cameraStub struct{ status camera.Status }

func (c cameraStub) Status() camera.Status { return c.status }

type visitsStub int

func (v visitsStub) ActiveVisits() int { return int(v) }

type detectionsStub struct {
	recent    []datastore.Detection
	lastLimit int
	summary   []datastore.SpeciesSummary
	day       time.Time
	err       error
}

func (d *detectionsStub) RecentDetections(_ context.Context, limit int) ([]datastore.Detection, error) {
	d.lastLimit = limit
	if d.err != nil {
		return nil, d.err
	}
	if limit < len(d.recent) {
		return d.recent[:limit], nil
	}
	return d.recent, nil
}

func (d *detectionsStub) DailySummary(_ context.Context, day time.Time) ([]datastore.SpeciesSummary, error) {
	d.day = day
	return d.summary, d.err
}

type settingsStub struct {
	values      map[string]string
	invalidated int
}

func (s *settingsStub) GetAllSettings(context.Context) (map[string]string, error) {
	return s.values, nil
}

func (s *settingsStub) SetSetting(_ context.Context, key, value string) error {
	s.values[key] = value
	return nil
}

func (s *settingsStub) Invalidate() { s.invalidated++ }

type testServer struct {
	srv        *Server
	detections *detectionsStub
	settings   *settingsStub
	stats      *pipeline.Stats
	media      string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	ts := &testServer{
		detections: &detectionsStub{},
		settings:   &settingsStub{values: map[string]string{}},
		stats:      pipeline.NewStats(nil),
		media:      t.TempDir(),
	}
	ts.srv = New(Deps{
		Camera:      cameraStub{camera.Status{Connected: true, FPS: 15, BufferFrames: 300, BufferCapacity: 450}},
		Visits:      visitsStub(2),
		Stats:       ts.stats,
		Detections:  ts.detections,
		Settings:    ts.settings,
		Params:      ts.settings,
		Accelerator: &accelerator.Probe{Available: true, DevicePath: "/dev/apex_0", Devices: 1},
		Metrics:     m.Handler(),
	}, Options{
		Mode:      "realtime",
		MediaRoot: ts.media,
		HostStats: func(context.Context, string) HostStats {
			return HostStats{CPUPercent: 12.5, MemoryPercent: 40, DiskPercent: 61}
		},
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	seen := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	ts.stats.Record(vision.Classification{CommonName: "Blue Jay", ScientificName: "Cyanocitta cristata", Score: 0.93}, seen)

	rec := ts.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "realtime", resp.Mode)
	require.NotNil(t, resp.Camera)
	assert.True(t, resp.Camera.Connected)
	assert.InDelta(t, 15.0, resp.Camera.FPS, 1e-9)
	assert.Equal(t, 2, resp.ActiveVisits)
	assert.Equal(t, 1, resp.Today)
	require.NotNil(t, resp.LastDetection)
	assert.Equal(t, "Blue Jay", resp.LastDetection.CommonName)
	require.NotNil(t, resp.Accelerator)
	assert.True(t, resp.Accelerator.Available)
	assert.InDelta(t, 12.5, resp.Host.CPUPercent, 1e-9)

	assert.Contains(t, rec.Body.String(), `"species":"Blue Jay"`)
}

func TestStatusWithoutCamera(t *testing.T) {
	t.Parallel()
	srv := New(Deps{Detections: &detectionsStub{}}, Options{
		Mode:      "frigate",
		HostStats: func(context.Context, string) HostStats { return HostStats{} },
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"camera"`)
	assert.Contains(t, rec.Body.String(), `"last_detection":null`)
}

func TestRecentDetections(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	for i := range 5 {
		ts.detections.recent = append(ts.detections.recent, datastore.Detection{
			EventID:    "evt-" + string(rune('a'+i)),
			CommonName: "American Robin",
		})
	}

	testCases := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
		wantLen   int
	}{
		{"default limit", "", http.StatusOK, defaultDetectionLimit, 5},
		{"explicit limit", "?limit=3", http.StatusOK, 3, 3},
		{"capped limit", "?limit=1000", http.StatusOK, maxDetectionLimit, 5},
		{"bad limit", "?limit=abc", http.StatusBadRequest, 0, 0},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts.detections.lastLimit = 0
			rec := ts.do(t, http.MethodGet, "/api/v1/detections"+tc.query, "")
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantCode != http.StatusOK {
				return
			}
			assert.Equal(t, tc.wantLimit, ts.detections.lastLimit)
			var got []datastore.Detection
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Len(t, got, tc.wantLen)
		})
	}
}

func TestRecentDetectionsEmptyAndFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/detections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	ts.detections.err = errors.New(errors.NewStd("database is locked")).
		Category(errors.CategoryDatabase).
		Build()
	rec = ts.do(t, http.MethodGet, "/api/v1/detections", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked", "internal errors are not leaked")
}

func TestDailySummary(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.detections.summary = []datastore.SpeciesSummary{{CommonName: "Blue Jay", Total: 4}}

	rec := ts.do(t, http.MethodGet, "/api/v1/summary?date=2026-05-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"date":"2026-05-01"`)
	assert.Contains(t, rec.Body.String(), `"total":4`)
	assert.Equal(t, 1, ts.detections.day.Day())

	rec = ts.do(t, http.MethodGet, "/api/v1/summary?date=May-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSetting(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/v1/settings/"+settings.KeyClassificationThreshold, `{"value": 0.6}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0.6", ts.settings.values[settings.KeyClassificationThreshold])
	assert.Equal(t, 1, ts.settings.invalidated)

	rec = ts.do(t, http.MethodPut, "/api/v1/settings/"+settings.KeyDetectionZone, `{"value": [[0,0],[1,0],[1,1]]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "[[0,0],[1,0],[1,1]]", ts.settings.values[settings.KeyDetectionZone])

	rec = ts.do(t, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), settings.KeyDetectionZone)
}

func TestUpdateSettingRejectsInvalid(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	testCases := []struct {
		name string
		key  string
		body string
	}{
		{"out of range", settings.KeyDetectionConfidence, `{"value": 1.5}`},
		{"unknown key", "camera.url", `{"value": "rtsp://x"}`},
		{"malformed zone", settings.KeyDetectionZone, `{"value": "square"}`},
		{"missing value", settings.KeyDetectionConfidence, `{}`},
		{"not json", settings.KeyDetectionConfidence, `0.5`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPut, "/api/v1/settings/"+tc.key, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, ts.settings.values)
	assert.Zero(t, ts.settings.invalidated)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMediaServing(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	dir := filepath.Join(ts.media, "snapshots", "2026-05-01")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v1.jpg"), []byte("jpeg"), 0o644))

	rec := ts.do(t, http.MethodGet, "/media/snapshots/2026-05-01/v1.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/media/snapshots/2026-05-01/missing.jpg", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
