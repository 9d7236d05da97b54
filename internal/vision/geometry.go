// Package vision holds the image and geometry types shared by the pipeline stages.
package vision

import (
	"fmt"
	"image"
)

// BoundingBox is an axis-aligned box in integer pixel coordinates.
// A valid box has X1 < X2 and Y1 < Y2.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns X2-X1, or 0 for an inverted box.
func (b BoundingBox) Width() int {
	return max(b.X2-b.X1, 0)
}

// Height returns Y2-Y1, or 0 for an inverted box.
func (b BoundingBox) Height() int {
	return max(b.Y2-b.Y1, 0)
}

// Area returns the box area in pixels.
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// Valid reports whether the box has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Center returns the box center in pixels.
func (b BoundingBox) Center() (x, y float64) {
	return float64(b.X1+b.X2) / 2, float64(b.Y1+b.Y2) / 2
}

// Clamp limits the box to a width x height image.
func (b BoundingBox) Clamp(width, height int) BoundingBox {
	return BoundingBox{
		X1: clampInt(b.X1, 0, width),
		Y1: clampInt(b.Y1, 0, height),
		X2: clampInt(b.X2, 0, width),
		Y2: clampInt(b.Y2, 0, height),
	}
}

// Pad grows the box by margin pixels on every side, clamped to the image.
func (b BoundingBox) Pad(margin, width, height int) BoundingBox {
	return BoundingBox{
		X1: b.X1 - margin,
		Y1: b.Y1 - margin,
		X2: b.X2 + margin,
		Y2: b.Y2 + margin,
	}.Clamp(width, height)
}

// Rect converts the box to an image.Rectangle for gocv region calls.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// IoU returns intersection over union of a and b, 0 when the union is empty.
func IoU(a, b BoundingBox) float64 {
	inter := BoundingBox{
		X1: max(a.X1, b.X1),
		Y1: max(a.Y1, b.Y1),
		X2: min(a.X2, b.X2),
		Y2: min(a.Y2, b.Y2),
	}.Area()

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Detection is one object found by the detector.
type Detection struct {
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// Classification is the species assigned to a crop.
type Classification struct {
	ScientificName string  `json:"scientific_name"`
	CommonName     string  `json:"common_name"`
	Score          float64 `json:"score"`
	LabelIndex     int     `json:"label_index"`
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
