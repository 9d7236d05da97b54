package observability

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const workers = 20
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Camera)
			assert.NotNil(t, m.Pipeline)
			assert.NotNil(t, m.Frigate)
		})
	}
	wg.Wait()
}

func TestHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Pipeline.AddDetections(2)
	m.Camera.SetConnected(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "birdview_pipeline_detections_total 2")
	assert.Contains(t, body, "birdview_camera_connected 1")
	assert.Contains(t, body, "go_goroutines")
}
