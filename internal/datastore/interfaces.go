// Package datastore persists detections and runtime settings with gorm on
// SQLite or MySQL.
package datastore

import (
	"context"
	"time"
)

// Interface is the persistence surface used by the pipelines and the status API.
type Interface interface {
	Open() error
	Close() error

	// InsertDetection stores d unless a row with the same EventID exists.
	InsertDetection(ctx context.Context, d *Detection) error
	UpdateClipPath(ctx context.Context, eventID, clipPath string) error
	RecentDetections(ctx context.Context, limit int) ([]Detection, error)
	DetectionsBetween(ctx context.Context, start, end time.Time) ([]Detection, error)
	DailySummary(ctx context.Context, day time.Time) ([]SpeciesSummary, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	DeleteOlder(ctx context.Context, before time.Time) (int64, error)

	// GetSetting returns the stored value for key, or defaultValue when unset.
	GetSetting(ctx context.Context, key, defaultValue string) (string, error)
	GetAllSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}
