package vision

import (
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/errors"
)

// Frame is a timestamped BGR image. The Mat is owned by whoever holds the
// Frame; hand-offs between goroutines always go through Clone.
type Frame struct {
	Time time.Time
	Mat  gocv.Mat
}

// NewFrame wraps mat, taking ownership of it.
func NewFrame(t time.Time, mat gocv.Mat) Frame {
	return Frame{Time: t, Mat: mat}
}

// Clone returns a deep copy with its own pixel buffer.
func (f Frame) Clone() Frame {
	if f.Mat.Ptr() == nil || f.Mat.Empty() {
		return Frame{Time: f.Time, Mat: gocv.NewMat()}
	}
	return Frame{Time: f.Time, Mat: f.Mat.Clone()}
}

// Close releases the pixel buffer. Safe to call on a zero Frame.
func (f *Frame) Close() {
	if f == nil || f.Mat.Ptr() == nil {
		return
	}
	_ = f.Mat.Close()
}

// Empty reports whether the frame has no pixels.
func (f Frame) Empty() bool {
	return f.Mat.Ptr() == nil || f.Mat.Empty()
}

// Size returns the frame width and height.
func (f Frame) Size() (width, height int) {
	if f.Empty() {
		return 0, 0
	}
	return f.Mat.Cols(), f.Mat.Rows()
}

// Bounds returns the full-frame box.
func (f Frame) Bounds() BoundingBox {
	w, h := f.Size()
	return BoundingBox{X2: w, Y2: h}
}

// Crop copies the region inside box, clamped to the frame. The caller closes the result.
func (f Frame) Crop(box BoundingBox) (gocv.Mat, error) {
	w, h := f.Size()
	box = box.Clamp(w, h)
	if !box.Valid() {
		return gocv.NewMat(), errors.Newf("crop box %s is empty in %dx%d frame", box, w, h).
			Component("vision").
			Category(errors.CategoryValidation).
			Build()
	}
	region := f.Mat.Region(box.Rect())
	defer region.Close()
	return region.Clone(), nil
}

// ResizeToWidth scales src to fit inside maxWidth, keeping aspect ratio. It returns a
// clone when src is already narrow enough.
func ResizeToWidth(src gocv.Mat, maxWidth int) gocv.Mat {
	if src.Cols() <= maxWidth || maxWidth <= 0 {
		return src.Clone()
	}
	scale := float64(maxWidth) / float64(src.Cols())
	height := max(int(float64(src.Rows())*scale), 1)

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(maxWidth, height), 0, 0, gocv.InterpolationArea)
	return dst
}
