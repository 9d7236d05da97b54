package mqtt

import (
	"math"
	"time"

	"github.com/ando01/BirdView/internal/notification"
)

// DetectionMessage is published on <prefix>/detection once per visit.
type DetectionMessage struct {
	EventID             string  `json:"event_id"`
	Source              string  `json:"source"`
	CommonName          string  `json:"common_name"`
	ScientificName      string  `json:"scientific_name"`
	Score               float64 `json:"score"`
	DetectionConfidence float64 `json:"detection_confidence"`
	DetectionTime       string  `json:"detection_time"` // RFC 3339
	DurationSeconds     float64 `json:"duration_seconds"`
	SnapshotURL         string  `json:"snapshot_url,omitempty"`
	ThumbnailURL        string  `json:"thumbnail_url,omitempty"`
	TodayCount          int     `json:"today_count"`
}

// LastBirdMessage is the retained state behind the Home Assistant sensors.
type LastBirdMessage struct {
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	Score          float64 `json:"score"`
	Time           string  `json:"time"` // HH:MM:SS
	TodayCount     int     `json:"today_count"`
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func newDetectionMessage(e notification.Event, mediaBaseURL string) DetectionMessage {
	msg := DetectionMessage{
		EventID:             e.EventID,
		Source:              e.Source,
		CommonName:          e.Species.CommonName,
		ScientificName:      e.Species.ScientificName,
		Score:               round(e.Species.Score, 3),
		DetectionConfidence: round(e.DetectionConfidence, 3),
		DetectionTime:       e.Time.Format(time.RFC3339),
		DurationSeconds:     round(e.Duration.Seconds(), 1),
		TodayCount:          e.TodayCount,
	}
	if e.SnapshotPath != "" {
		msg.SnapshotURL = mediaURL(mediaBaseURL, e.SnapshotPath)
	}
	if e.ThumbnailPath != "" {
		msg.ThumbnailURL = mediaURL(mediaBaseURL, e.ThumbnailPath)
	}
	return msg
}

func newLastBirdMessage(e notification.Event) LastBirdMessage {
	return LastBirdMessage{
		CommonName:     e.Species.CommonName,
		ScientificName: e.Species.ScientificName,
		Score:          round(e.Species.Score, 3),
		Time:           e.Time.Format("15:04:05"),
		TodayCount:     e.TodayCount,
	}
}

// mediaURL joins base and a storage-relative path; without a base the path is
// returned as is.
func mediaURL(base, rel string) string {
	if base == "" {
		return rel
	}
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/media/" + rel
}
