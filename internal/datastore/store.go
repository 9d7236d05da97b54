package datastore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/observability/metrics"
)

// DataStore implements Interface on an open gorm handle. SQLiteStore and
// MySQLStore embed it and provide Open.
type DataStore struct {
	DB      *gorm.DB
	Metrics *metrics.DatastoreMetrics
}

func (ds *DataStore) ready(op string) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", op).
			Build()
	}
	return nil
}

func (ds *DataStore) record(op string, start time.Time, err error) error {
	ds.Metrics.RecordOperation(op, err, time.Since(start))
	if err == nil {
		return nil
	}
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Timing(op, time.Since(start)).
		Build()
}

// InsertDetection stores d; a duplicate EventID is ignored.
func (ds *DataStore) InsertDetection(ctx context.Context, d *Detection) error {
	if err := ds.ready(metrics.OpInsert); err != nil {
		return err
	}
	start := time.Now()
	d.DetectionTime = d.DetectionTime.UTC()

	result := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(d)
	if result.Error == nil && result.RowsAffected == 0 {
		GetLogger().Debug("detection already stored", logger.String("event_id", d.EventID))
	}
	return ds.record(metrics.OpInsert, start, result.Error)
}

// UpdateClipPath sets the clip of an existing detection.
func (ds *DataStore) UpdateClipPath(ctx context.Context, eventID, clipPath string) error {
	if err := ds.ready(metrics.OpUpdateClip); err != nil {
		return err
	}
	start := time.Now()

	result := ds.DB.WithContext(ctx).
		Model(&Detection{}).
		Where("event_id = ?", eventID).
		Update("clip_path", clipPath)
	if err := ds.record(metrics.OpUpdateClip, start, result.Error); err != nil {
		return err
	}
	if result.RowsAffected == 0 {
		return errors.Newf("no detection with event id %s", eventID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

// RecentDetections returns the newest detections first.
func (ds *DataStore) RecentDetections(ctx context.Context, limit int) ([]Detection, error) {
	if err := ds.ready(metrics.OpList); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	start := time.Now()

	var rows []Detection
	err := ds.DB.WithContext(ctx).
		Order("detection_time DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, ds.record(metrics.OpList, start, err)
}

// DetectionsBetween returns detections with start <= time < end, oldest first.
func (ds *DataStore) DetectionsBetween(ctx context.Context, from, to time.Time) ([]Detection, error) {
	if err := ds.ready(metrics.OpList); err != nil {
		return nil, err
	}
	start := time.Now()

	var rows []Detection
	err := ds.DB.WithContext(ctx).
		Where("detection_time >= ? AND detection_time < ?", from.UTC(), to.UTC()).
		Order("detection_time").
		Find(&rows).Error
	return rows, ds.record(metrics.OpList, start, err)
}

// DailySummary groups the detections of day (in day's location) by species
// and hour, most detected first.
func (ds *DataStore) DailySummary(ctx context.Context, day time.Time) ([]SpeciesSummary, error) {
	loc := day.Location()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	rows, err := ds.DetectionsBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var summary []SpeciesSummary
	for i := range rows {
		r := &rows[i]
		idx, ok := index[r.ScientificName]
		if !ok {
			idx = len(summary)
			index[r.ScientificName] = idx
			summary = append(summary, SpeciesSummary{ScientificName: r.ScientificName, CommonName: r.CommonName})
		}
		summary[idx].Total++
		summary[idx].Hourly[r.DetectionTime.In(loc).Hour()]++
	}

	slices.SortStableFunc(summary, func(a, b SpeciesSummary) int {
		return cmp.Compare(b.Total, a.Total)
	})
	return summary, nil
}

// CountSince counts detections at or after since.
func (ds *DataStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	if err := ds.ready(metrics.OpList); err != nil {
		return 0, err
	}
	start := time.Now()

	var n int64
	err := ds.DB.WithContext(ctx).
		Model(&Detection{}).
		Where("detection_time >= ?", since.UTC()).
		Count(&n).Error
	return n, ds.record(metrics.OpList, start, err)
}

// DeleteOlder removes detections before the cutoff.
func (ds *DataStore) DeleteOlder(ctx context.Context, before time.Time) (int64, error) {
	if err := ds.ready(metrics.OpDeleteOlder); err != nil {
		return 0, err
	}
	start := time.Now()

	result := ds.DB.WithContext(ctx).
		Where("detection_time < ?", before.UTC()).
		Delete(&Detection{})
	if err := ds.record(metrics.OpDeleteOlder, start, result.Error); err != nil {
		return 0, err
	}
	ds.Metrics.AddRowsDeleted(result.RowsAffected)
	return result.RowsAffected, nil
}

// GetSetting returns the stored value for key, or defaultValue when unset.
func (ds *DataStore) GetSetting(ctx context.Context, key, defaultValue string) (string, error) {
	if err := ds.ready(metrics.OpGetSetting); err != nil {
		return defaultValue, err
	}
	start := time.Now()

	var s Setting
	err := ds.DB.WithContext(ctx).Where(&Setting{Key: key}).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = ds.record(metrics.OpGetSetting, start, nil)
		return defaultValue, nil
	}
	if err := ds.record(metrics.OpGetSetting, start, err); err != nil {
		return defaultValue, err
	}
	return s.Value, nil
}

// GetAllSettings returns every stored override.
func (ds *DataStore) GetAllSettings(ctx context.Context) (map[string]string, error) {
	if err := ds.ready(metrics.OpGetSetting); err != nil {
		return nil, err
	}
	start := time.Now()

	var rows []Setting
	if err := ds.record(metrics.OpGetSetting, start, ds.DB.WithContext(ctx).Find(&rows).Error); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Key] = s.Value
	}
	return out, nil
}

// SetSetting inserts or replaces the value for key.
func (ds *DataStore) SetSetting(ctx context.Context, key, value string) error {
	if err := ds.ready(metrics.OpSetSetting); err != nil {
		return err
	}
	start := time.Now()

	err := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}).Error
	return ds.record(metrics.OpSetSetting, start, err)
}

// Close closes the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
