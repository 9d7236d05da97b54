package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
		"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ando01/BirdView/internal/conf"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/observability/metrics"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := &SQLiteStore{Path: filepath.Join(t.TempDir(), "db", "birdview.db")}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func detectionAt(eventID, scientific string, at time.Time) *Detection {
	return &Detection{
		EventID:             eventID,
		DetectionTime:       at,
		DurationSeconds:     4.5,
		Score:               0.91,
		ScientificName:      scientific,
		CommonName:          scientific + " common",
		DetectionConfidence: 0.8,
		SnapshotPath:        StringPtr("snapshots/2026-05-01/" + eventID + ".jpg"),
		Source:              "realtime",
	}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Output.SQLite.Path = "data/x.db"
	store := New(settings, nil)
	require.IsType(t, &SQLiteStore{}, store)
	assert.Equal(t, "data/x.db", store.(*SQLiteStore).Path)

	settings.Output.MySQL = conf.MySQLSettings{Enabled: true, Host: "db", Port: "3306", Username: "u", Password: "p", Database: "birds"}
	store = New(settings, nil)
	require.IsType(t, &MySQLStore{}, store)
	assert.Equal(t, "u:p@tcp(db:3306)/birds?charset=utf8mb4&parseTime=True&loc=UTC", store.(*MySQLStore).dsn())
}

func TestOperationsBeforeOpen(t *testing.T) {
	t.Parallel()

	store := &SQLiteStore{}
	err := store.InsertDetection(t.Context(), detectionAt("a", "x", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.NoError(t, store.Close())
}

func TestInsertDetectionIgnoresDuplicateEvent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := t.Context()
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, store.InsertDetection(ctx, detectionAt("evt-1", "Cardinalis cardinalis", at)))
	dup := detectionAt("evt-1", "Aramus guarauna", at.Add(time.Minute))
	require.NoError(t, store.InsertDetection(ctx, dup))

	rows, err := store.RecentDetections(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cardinalis cardinalis", rows[0].ScientificName)
	require.NotNil(t, rows[0].SnapshotPath)
	assert.Nil(t, rows[0].ClipPath)
	assert.True(t, at.Equal(rows[0].DetectionTime))
}

func TestRecentDetectionsNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := t.Context()
	base := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.InsertDetection(ctx, detectionAt(id, "Turdus migratorius", base.Add(time.Duration(i)*time.Hour))))
	}

	rows, err := store.RecentDetections(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].EventID)
	assert.Equal(t, "b", rows[1].EventID)
}

func TestUpdateClipPath(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := t.Context()
	require.NoError(t, store.InsertDetection(ctx, detectionAt("evt-9", "Sitta carolinensis", time.Now())))

	require.NoError(t, store.UpdateClipPath(ctx, "evt-9", "clips/2026-05-01/evt-9.mp4"))
	rows, err := store.RecentDetections(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rows[0].ClipPath)
	assert.Equal(t, "clips/2026-05-01/evt-9.mp4", *rows[0].ClipPath)

	err = store.UpdateClipPath(ctx, "missing", "clips/x.mp4")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDailySummaryGroupsByHour(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := t.Context()
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	inserts := []struct {
		id      string
		species string
		at      time.Time
	}{
		{"1", "Cardinalis cardinalis", day.Add(7 * time.Hour)},
		{"2", "Poecile atricapillus", day.Add(7*time.Hour + 10*time.Minute)},
		{"3", "Poecile atricapillus", day.Add(7*time.Hour + 20*time.Minute)},
		{"4", "Poecile atricapillus", day.Add(15 * time.Hour)},
		{"5", "Cardinalis cardinalis", day.Add(-time.Minute)},
		{"6", "Cardinalis cardinalis", day.Add(24 * time.Hour)},
	}
	for _, in := range inserts {
		require.NoError(t, store.InsertDetection(ctx, detectionAt(in.id, in.species, in.at)))
	}

	summary, err := store.DailySummary(ctx, day.Add(12*time.Hour))
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, "Poecile atricapillus", summary[0].ScientificName)
	assert.Equal(t, 3, summary[0].Total)
	assert.Equal(t, 2, summary[0].Hourly[7])
	assert.Equal(t, 1, summary[0].Hourly[15])

	assert.Equal(t, "Cardinalis cardinalis", summary[1].ScientificName)
	assert.Equal(t, 1, summary[1].Total)
	assert.Equal(t, 1, summary[1].Hourly[7])
}

func TestCountSinceAndDeleteOlder(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewDatastoreMetrics(registry)
	require.NoError(t, err)

	store := &SQLiteStore{DataStore: DataStore{Metrics: m}, Path: filepath.Join(t.TempDir(), "birdview.db")}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	ctx := t.Context()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertDetection(ctx, detectionAt("old", "Corvus corax", now.AddDate(0, 0, -40))))
	require.NoError(t, store.InsertDetection(ctx, detectionAt("new", "Corvus corax", now.Add(-time.Hour))))

	n, err := store.CountSince(ctx, now.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := store.DeleteOlder(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.InDelta(t, 1.0, gatheredValue(t, registry, "birdview_db_rows_deleted_total"), 0)

	rows, err := store.DetectionsBetween(ctx, now.AddDate(-1, 0, 0), now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].EventID)
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := t.Context()

	v, err := store.GetSetting(ctx, "detection.confidence", "0.5")
	require.NoError(t, err)
	assert.Equal(t, "0.5", v)

	require.NoError(t, store.SetSetting(ctx, "detection.confidence", "0.65"))
	require.NoError(t, store.SetSetting(ctx, "detection.confidence", "0.7"))
	require.NoError(t, store.SetSetting(ctx, "detection.zone", "[[0,0],[1,0],[1,1]]"))

	v, err = store.GetSetting(ctx, "detection.confidence", "0.5")
	require.NoError(t, err)
	assert.Equal(t, "0.7", v)

	all, err := store.GetAllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"detection.confidence": "0.7",
		"detection.zone":       "[[0,0],[1,0],[1,1]]",
	}, all)
}

func gatheredValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range f.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		return sum
	}
	return 0
}
