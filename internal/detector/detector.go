// Package detector finds birds in frames with an EfficientDet-Lite model.
package detector

import (
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/accelerator"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/vision"
)

const (
	// BirdClassID is the COCO class id for "bird".
	BirdClassID = 16
	// minBoxSide drops boxes smaller than this many pixels on either side.
	minBoxSide = 10
)

// Params are the per-call filters. The orchestrator refreshes them from the
// dynamic settings on every tick.
type Params struct {
	Confidence float64
	Zone       Zone
}

// Options configures a Detector.
type Options struct {
	InputSize   int // used when the model does not report its own
	TargetClass int
	Defaults    Params
}

// Detector wraps a loaded detection model.
type Detector struct {
	model       accelerator.Inferencer
	accelerated bool
	width       int
	height      int
	targetClass int
	defaults    Params
}

// New wraps model. accelerated is reported on the status surface only.
func New(model accelerator.Inferencer, accelerated bool, opts Options) *Detector {
	w, h := model.InputSize()
	if w <= 0 || h <= 0 {
		w, h = opts.InputSize, opts.InputSize
	}

	GetLogger().Info("detector ready",
		logger.Bool("accelerated", accelerated),
		logger.Int("input_width", w),
		logger.Int("input_height", h),
		logger.Int("target_class", opts.TargetClass))

	return &Detector{
		model:       model,
		accelerated: accelerated,
		width:       w,
		height:      h,
		targetClass: opts.TargetClass,
		defaults:    opts.Defaults,
	}
}

// Accelerated reports whether the model runs on the accelerator.
func (d *Detector) Accelerated() bool {
	return d.accelerated
}

// Defaults returns the configured filters.
func (d *Detector) Defaults() Params {
	return d.defaults
}

// Detect runs the model with the configured filters.
func (d *Detector) Detect(frame gocv.Mat) ([]vision.Detection, error) {
	return d.DetectWith(frame, d.defaults)
}

// DetectWith runs the model and filters results with p. Output order follows
// the model output.
func (d *Detector) DetectWith(frame gocv.Mat, p Params) ([]vision.Detection, error) {
	if frame.Empty() {
		return nil, errors.Newf("empty frame").
			Component("detector").
			Category(errors.CategoryDetection).
			Build()
	}

	start := time.Now()
	input, err := d.preprocess(frame)
	if err != nil {
		return nil, err
	}

	outputs, err := d.model.Run(input)
	if err != nil {
		return nil, errors.New(err).
			Component("detector").
			Category(errors.CategoryInference).
			Context("backend", string(d.model.Backend())).
			Timing("detect", time.Since(start)).
			Build()
	}

	detections, err := decode(outputs, frame.Cols(), frame.Rows(), d.targetClass, p)
	if err != nil {
		return nil, err
	}

	for _, det := range detections {
		GetLogger().Debug("bird detected",
			logger.Float64("confidence", det.Confidence),
			logger.String("bbox", det.BBox.String()))
	}
	return detections, nil
}

// preprocess resizes frame to the model input and converts BGR to RGB.
func (d *Detector) preprocess(frame gocv.Mat) ([]uint8, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, image.Pt(d.width, d.height), 0, 0, gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	data := rgb.ToBytes()
	if want := d.width * d.height * 3; len(data) != want {
		return nil, errors.Newf("preprocessed frame has %d bytes, want %d", len(data), want).
			Component("detector").
			Category(errors.CategoryDetection).
			Build()
	}
	return data, nil
}

// decode turns the four EfficientDet-Lite outputs into detections:
// boxes [1,N,4] as ymin,xmin,ymax,xmax; classes [1,N]; scores [1,N]; count [1].
func decode(outputs []accelerator.Tensor, width, height, targetClass int, p Params) ([]vision.Detection, error) {
	if len(outputs) < 4 {
		return nil, errors.Newf("detector model returned %d outputs, want 4", len(outputs)).
			Component("detector").
			Category(errors.CategoryDetection).
			Build()
	}
	boxes, classes, scores, count := outputs[0], outputs[1], outputs[2], outputs[3]
	if count.Len() == 0 {
		return nil, nil
	}

	n := min(int(count.At(0)), classes.Len(), scores.Len(), boxes.Len()/4)
	var detections []vision.Detection
	for i := range n {
		if int(classes.At(i)) != targetClass {
			continue
		}
		// compare in the model's precision so a score equal to the threshold is kept
		if scores.At(i) < float32(p.Confidence) {
			continue
		}
		score := float64(scores.At(i))

		ymin, xmin := float64(boxes.At(i*4)), float64(boxes.At(i*4+1))
		ymax, xmax := float64(boxes.At(i*4+2)), float64(boxes.At(i*4+3))
		box := vision.BoundingBox{
			X1: max(0, int(xmin*float64(width))),
			Y1: max(0, int(ymin*float64(height))),
			X2: min(width, int(xmax*float64(width))),
			Y2: min(height, int(ymax*float64(height))),
		}
		if box.X2-box.X1 < minBoxSide || box.Y2-box.Y1 < minBoxSide {
			continue
		}

		cx, cy := box.Center()
		if !p.Zone.Contains(cx/float64(width), cy/float64(height)) {
			GetLogger().Trace("detection outside zone", logger.String("bbox", box.String()))
			continue
		}

		detections = append(detections, vision.Detection{BBox: box, Confidence: score})
	}
	return detections, nil
}
