package tracker

import (
	"time"

	"github.com/ando01/BirdView/internal/vision"
)

// Visit is one tracked bird from first detection to expiry.
type Visit struct {
	ID                      string
	BBox                    vision.BoundingBox
	FirstSeen               time.Time
	LastSeen                time.Time
	BestDetectionConfidence float64
	BestClassification      *vision.Classification
	// BestSnapshot is the full frame that produced BestClassification. The
	// visit owns it; call Close once the snapshot has been saved.
	BestSnapshot  vision.Frame
	FramesMissing int
}

// Duration is the time between first and last sighting.
func (v *Visit) Duration() time.Duration {
	return v.LastSeen.Sub(v.FirstSeen)
}

// Close releases the snapshot.
func (v *Visit) Close() {
	if v == nil {
		return
	}
	v.BestSnapshot.Close()
}

// improve replaces the best classification when cls scores strictly higher.
func (v *Visit) improve(det vision.Detection, cls *vision.Classification, frame vision.Frame) bool {
	if cls == nil {
		return false
	}
	if v.BestClassification != nil && cls.Score <= v.BestClassification.Score {
		return false
	}
	best := *cls
	v.BestClassification = &best
	v.BestDetectionConfidence = det.Confidence
	v.BestSnapshot.Close()
	v.BestSnapshot = frame.Clone()
	return true
}
