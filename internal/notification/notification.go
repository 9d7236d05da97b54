// Package notification fans completed visits out to push services and other
// subscribers. Delivery is best effort: failures are logged and counted, never
// propagated into the pipeline.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/vision"
)

// Source values for Event.Source.
const (
	SourceRealtime = "realtime"
	SourceFrigate  = "frigate"
)

// Event describes one persisted bird visit.
type Event struct {
	EventID             string
	Source              string
	Time                time.Time
	Duration            time.Duration
	Species             vision.Classification
	DetectionConfidence float64
	SnapshotPath        string
	ThumbnailPath       string
	TodayCount          int
}

// Title is the short headline used by push services.
func (e Event) Title() string {
	return fmt.Sprintf("%s detected", e.Species.CommonName)
}

// Message is the one-line body used by push services.
func (e Event) Message() string {
	msg := fmt.Sprintf("%s (%s) %.0f%% at %s",
		e.Species.CommonName, e.Species.ScientificName, e.Species.Score*100, e.Time.Format("15:04:05"))
	if e.TodayCount > 0 {
		msg += fmt.Sprintf(", %d today", e.TodayCount)
	}
	return msg
}

// Notifier receives completed visits.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Multi delivers to every notifier in order.
type Multi []Notifier

// Notify calls each notifier and joins their errors.
func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch delivers e and logs any failure.
func Dispatch(ctx context.Context, n Notifier, e Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e); err != nil {
		GetLogger().Warn("notification delivery failed",
			logger.String("event_id", e.EventID),
			logger.String("species", e.Species.ScientificName),
			logger.Error(err))
	}
}
