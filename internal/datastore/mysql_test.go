package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

func TestMySQLStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	container, err := mysql.Run(ctx, "mysql:8.0.36",
		mysql.WithDatabase("birdview"),
		mysql.WithUsername("birdview"),
		mysql.WithPassword("birdview"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True", "loc=UTC")
	require.NoError(t, err)

	store := &MySQLStore{DSN: dsn, Database: "birdview"}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertDetection(ctx, detectionAt("evt-1", "Cyanocitta cristata", at)))
	require.NoError(t, store.InsertDetection(ctx, detectionAt("evt-1", "Cyanocitta cristata", at)))
	require.NoError(t, store.UpdateClipPath(ctx, "evt-1", "clips/2026-05-01/evt-1.mp4"))

	rows, err := store.RecentDetections(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ClipPath)

	require.NoError(t, store.SetSetting(ctx, "classification.threshold", "0.75"))
	require.NoError(t, store.SetSetting(ctx, "classification.threshold", "0.8"))
	v, err := store.GetSetting(ctx, "classification.threshold", "0.7")
	require.NoError(t, err)
	assert.Equal(t, "0.8", v)
}
