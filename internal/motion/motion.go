// Package motion implements the background-subtraction gate that decides
// whether a frame is worth running the detector on.
package motion

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/logger"
)

// kernelSize is the elliptical structuring element used for open/close.
const kernelSize = 5

// Options configures a Gate.
type Options struct {
	MinArea      float64 // contour area in pixels that counts as motion
	History      int
	VarThreshold float64
}

// Gate keeps a running background model. It is owned by a single goroutine;
// the mutex only guards against accidental sharing.
type Gate struct {
	mu      sync.Mutex
	mog2    gocv.BackgroundSubtractorMOG2
	kernel  gocv.Mat
	mask    gocv.Mat
	minArea float64
	closed  bool
}

// New creates a gate with a fresh background model.
func New(opts Options) *Gate {
	if opts.History <= 0 {
		opts.History = 50
	}
	if opts.VarThreshold <= 0 {
		opts.VarThreshold = 16
	}

	GetLogger().Info("motion gate ready",
		logger.Float64("min_area", opts.MinArea),
		logger.Int("history", opts.History))

	return &Gate{
		mog2:    gocv.NewBackgroundSubtractorMOG2WithParams(opts.History, opts.VarThreshold, false),
		kernel:  gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelSize, kernelSize)),
		mask:    gocv.NewMat(),
		minArea: opts.MinArea,
	}
}

// HasMotion updates the background model with frame and reports whether any
// foreground contour is larger than the minimum area.
func (g *Gate) HasMotion(frame gocv.Mat) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || frame.Empty() {
		return false
	}

	g.mog2.Apply(frame, &g.mask)
	gocv.MorphologyEx(g.mask, &g.mask, gocv.MorphOpen, g.kernel)
	gocv.MorphologyEx(g.mask, &g.mask, gocv.MorphClose, g.kernel)

	contours := gocv.FindContours(g.mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	maxArea := 0.0
	for i := range contours.Size() {
		area := gocv.ContourArea(contours.At(i))
		if area > g.minArea {
			GetLogger().Debug("motion detected",
				logger.Float64("area", area),
				logger.Float64("min_area", g.minArea))
			return true
		}
		maxArea = max(maxArea, area)
	}

	if contours.Size() > 0 {
		GetLogger().Trace("motion rejected",
			logger.Float64("max_area", maxArea),
			logger.Int("contours", contours.Size()))
	}
	return false
}

// Close releases the background model.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	_ = g.mog2.Close()
	_ = g.kernel.Close()
	_ = g.mask.Close()
}
