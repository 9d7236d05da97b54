// Package tracker groups per-frame detections into bird visits by box overlap.
package tracker

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/vision"
)

// Options configures a Tracker.
type Options struct {
	// MaxMissingFrames is how many consecutive unmatched ticks a visit survives.
	MaxMissingFrames int
	IoUThreshold     float64
	// NewID generates visit ids; defaults to random UUIDs.
	NewID func() string
}

// Tracker owns the active visits. Update, Flush and TakeDropped must be
// called from a single goroutine; ActiveCount is safe from any goroutine.
type Tracker struct {
	maxMissing int
	threshold  float64
	newID      func() string

	// slots is an arena of visits; a nil entry is a free slot.
	slots []*Visit
	// order lists occupied slots in creation order.
	order []int
	free  []int

	active  atomic.Int64
	dropped int
}

// New creates a Tracker.
func New(opts Options) *Tracker {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Tracker{
		maxMissing: opts.MaxMissingFrames,
		threshold:  opts.IoUThreshold,
		newID:      newID,
	}
}

// ActiveCount returns the number of visits being tracked.
func (t *Tracker) ActiveCount() int {
	return int(t.active.Load())
}

// Update advances the tracker by one tick. classifications is index-aligned
// with detections and may hold nil entries. Returned visits have expired with
// a classification; the caller owns them and must Close each one. Visits that
// expire without a classification are discarded.
func (t *Tracker) Update(detections []vision.Detection, classifications []*vision.Classification, frame vision.Frame, ts time.Time) ([]*Visit, error) {
	if len(detections) != len(classifications) {
		return nil, errors.Newf("got %d detections and %d classifications", len(detections), len(classifications)).
			Component("tracker").
			Category(errors.CategoryTracking).
			Build()
	}

	matched := make(map[int]struct{}, len(detections))
	for i, det := range detections {
		cls := classifications[i]

		slot := t.bestMatch(det.BBox, matched)
		if slot < 0 {
			slot = t.start(det, cls, frame, ts)
			matched[slot] = struct{}{}
			continue
		}

		v := t.slots[slot]
		v.BBox = det.BBox
		v.LastSeen = ts
		v.FramesMissing = 0
		if v.improve(det, cls, frame) {
			GetLogger().Debug("visit classification improved",
				logger.String("visit_id", v.ID),
				logger.String("species", v.BestClassification.CommonName),
				logger.Float64("score", v.BestClassification.Score))
		}
		matched[slot] = struct{}{}
	}

	return t.expire(matched), nil
}

// TakeDropped returns how many visits were discarded without a
// classification since the previous call, and resets the count.
func (t *Tracker) TakeDropped() int {
	n := t.dropped
	t.dropped = 0
	return n
}

// Flush ends every active visit, returning those with a classification.
// Used on shutdown so confirmed visits are not lost.
func (t *Tracker) Flush() []*Visit {
	var completed []*Visit
	for _, slot := range t.order {
		v := t.slots[slot]
		t.slots[slot] = nil
		if v.BestClassification != nil {
			completed = append(completed, v)
		} else {
			t.dropped++
			v.Close()
		}
	}
	t.slots, t.order, t.free = nil, nil, nil
	t.active.Store(0)
	return completed
}

// bestMatch returns the unmatched visit with the highest IoU at or above the
// threshold, or -1. The earliest visit wins ties.
func (t *Tracker) bestMatch(box vision.BoundingBox, matched map[int]struct{}) int {
	best, bestIoU := -1, 0.0
	for _, slot := range t.order {
		if _, taken := matched[slot]; taken {
			continue
		}
		iou := vision.IoU(box, t.slots[slot].BBox)
		if iou >= t.threshold && iou > bestIoU {
			best, bestIoU = slot, iou
		}
	}
	return best
}

func (t *Tracker) start(det vision.Detection, cls *vision.Classification, frame vision.Frame, ts time.Time) int {
	v := &Visit{
		ID:                      t.newID(),
		BBox:                    det.BBox,
		FirstSeen:               ts,
		LastSeen:                ts,
		BestDetectionConfidence: det.Confidence,
	}
	v.improve(det, cls, frame)

	var slot int
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[slot] = v
	} else {
		slot = len(t.slots)
		t.slots = append(t.slots, v)
	}
	t.order = append(t.order, slot)
	t.active.Add(1)

	GetLogger().Debug("visit started",
		logger.String("visit_id", v.ID),
		logger.String("bbox", det.BBox.String()),
		logger.Bool("classified", cls != nil))
	return slot
}

// expire ages unmatched visits and removes those past the ceiling.
func (t *Tracker) expire(matched map[int]struct{}) []*Visit {
	var completed []*Visit
	kept := t.order[:0]
	for _, slot := range t.order {
		v := t.slots[slot]
		if _, ok := matched[slot]; !ok {
			v.FramesMissing++
		}
		if v.FramesMissing <= t.maxMissing {
			kept = append(kept, slot)
			continue
		}

		t.slots[slot] = nil
		t.free = append(t.free, slot)
		t.active.Add(-1)

		if v.BestClassification == nil {
			GetLogger().Debug("visit discarded without classification",
				logger.String("visit_id", v.ID),
				logger.Duration("duration", v.Duration()))
			t.dropped++
			v.Close()
			continue
		}
		GetLogger().Info("visit completed",
			logger.String("visit_id", v.ID),
			logger.String("species", v.BestClassification.CommonName),
			logger.Float64("score", v.BestClassification.Score),
			logger.Duration("duration", v.Duration()))
		completed = append(completed, v)
	}
	t.order = kept
	return completed
}
