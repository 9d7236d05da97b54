// Package frigate ingests bird events from a Frigate NVR: it consumes the
// MQTT event stream, fetches the event media over HTTP and classifies each
// event on a bounded worker pool.
package frigate

import (
	"math"
	"slices"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/vision"
)

// Event types published on frigate/events.
const (
	TypeNew    = "new"
	TypeUpdate = "update"
	TypeEnd    = "end"
)

const birdLabel = "bird"

// Event is the normalized "after" state of a Frigate event message.
type Event struct {
	Type        string
	ID          string
	Camera      string
	Label       string
	Score       float64
	Box         []float64 // x1, y1, x2, y2 in pixels
	StartTime   float64   // unix seconds
	EndTime     float64   // unix seconds, 0 while the event is open
	HasSnapshot bool
	HasClip     bool
}

// ParseEvent decodes one frigate/events payload.
func ParseEvent(payload []byte) (Event, error) {
	obj, err := jason.NewObjectFromBytes(payload)
	if err != nil {
		return Event{}, parseError(err)
	}
	after, err := obj.GetObject("after")
	if err != nil {
		return Event{}, parseError(err)
	}

	ev := Event{}
	ev.Type, _ = obj.GetString("type")
	ev.ID, _ = after.GetString("id")
	ev.Camera, _ = after.GetString("camera")
	ev.Label, _ = after.GetString("label")
	ev.HasSnapshot, _ = after.GetBoolean("has_snapshot")
	ev.HasClip, _ = after.GetBoolean("has_clip")
	ev.StartTime, _ = after.GetFloat64("start_time")
	ev.EndTime, _ = after.GetFloat64("end_time")

	if ev.Score, err = after.GetFloat64("score"); err != nil {
		ev.Score, _ = after.GetFloat64("top_score")
	}
	if box, err := after.GetFloat64Array("box"); err == nil {
		ev.Box = box
	}

	if ev.ID == "" {
		return Event{}, errors.Newf("event without id").
			Component("frigate").
			Category(errors.CategoryValidation).
			Build()
	}
	return ev, nil
}

func parseError(err error) error {
	return errors.New(err).
		Component("frigate").
		Category(errors.CategoryValidation).
		Context("operation", "parse_event").
		Build()
}

// DetectionTime is the event start, or fallback when Frigate sent none.
func (e Event) DetectionTime(fallback time.Time) time.Time {
	if e.StartTime <= 0 {
		return fallback
	}
	sec, frac := math.Modf(e.StartTime)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Duration is end minus start, zero while the event is open.
func (e Event) Duration() time.Duration {
	if e.StartTime <= 0 || e.EndTime <= e.StartTime {
		return 0
	}
	return time.Duration((e.EndTime - e.StartTime) * float64(time.Second))
}

// BoundingBox returns the event box clamped to a width x height image. ok is
// false when the box is missing or degenerate after clamping.
func (e Event) BoundingBox(width, height int) (box vision.BoundingBox, ok bool) {
	if len(e.Box) != 4 {
		return vision.BoundingBox{}, false
	}
	box = vision.BoundingBox{
		X1: int(e.Box[0]), Y1: int(e.Box[1]),
		X2: int(e.Box[2]), Y2: int(e.Box[3]),
	}.Clamp(width, height)
	return box, box.Valid()
}

// Filter decides which events are processed.
type Filter struct {
	Cameras           []string // empty accepts every camera
	ProcessOnSnapshot bool     // also process new/update events once a snapshot exists
}

// Accept reports whether ev should be classified.
func (f Filter) Accept(ev Event) bool {
	if ev.Label != birdLabel {
		return false
	}
	if len(f.Cameras) > 0 && !slices.Contains(f.Cameras, ev.Camera) {
		return false
	}
	switch ev.Type {
	case TypeEnd:
		return true
	case TypeNew, TypeUpdate:
		return f.ProcessOnSnapshot && ev.HasSnapshot
	default:
		return false
	}
}
