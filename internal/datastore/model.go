package datastore

import "time"

// Detection is one persisted bird visit. EventID is unique; inserting a
// duplicate is a no-op.
type Detection struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	EventID             string    `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	DetectionTime       time.Time `gorm:"index;not null" json:"detection_time"`
	DurationSeconds     float64   `gorm:"default:0" json:"duration_seconds"`
	Score               float64   `gorm:"not null" json:"score"`
	ScientificName      string    `gorm:"size:128;index;not null" json:"scientific_name"`
	CommonName          string    `gorm:"size:128;not null" json:"common_name"`
	DetectionConfidence float64   `gorm:"not null" json:"detection_confidence"`
	SnapshotPath        *string   `gorm:"size:255" json:"snapshot_path,omitempty"`
	ThumbnailPath       *string   `gorm:"size:255" json:"thumbnail_path,omitempty"`
	ClipPath            *string   `gorm:"size:255" json:"clip_path,omitempty"`
	Source              string    `gorm:"size:16;default:realtime" json:"source"`
	CreatedAt           time.Time `json:"created_at"`
}

// Setting is a runtime override stored as a JSON-encoded value.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// SpeciesSummary is one species' detections on a day, bucketed by hour.
type SpeciesSummary struct {
	ScientificName string  `json:"scientific_name"`
	CommonName     string  `json:"common_name"`
	Total          int     `json:"total"`
	Hourly         [24]int `json:"hourly"`
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
