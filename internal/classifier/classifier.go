// Package classifier identifies the species in a bird crop.
package classifier

import (
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/accelerator"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/vision"
)

// BackgroundIndex is the "background" label of the iNat bird model.
const BackgroundIndex = 964

// Params are the per-call filters.
type Params struct {
	Threshold float64
}

// Options configures a Classifier.
type Options struct {
	InputSize       int // used when the model does not report its own
	BackgroundIndex int // negative disables the background check
	Defaults        Params
	NameCacheTTL    time.Duration
}

// Classifier wraps a loaded classification model and its label table.
type Classifier struct {
	model       accelerator.Inferencer
	accelerated bool
	size        int
	background  int
	defaults    Params
	labels      *Labels
	names       *nameResolver
}

// New wraps model. lookup may be nil, in which case species without a common
// name in the label file are reported by their scientific name.
func New(model accelerator.Inferencer, accelerated bool, labels *Labels, lookup NameLookup, opts Options) *Classifier {
	size, _ := model.InputSize()
	if size <= 0 {
		size = opts.InputSize
	}

	GetLogger().Info("classifier ready",
		logger.Bool("accelerated", accelerated),
		logger.Int("input_size", size),
		logger.Int("labels", labels.Len()),
		logger.Bool("name_lookup", lookup != nil))

	return &Classifier{
		model:       model,
		accelerated: accelerated,
		size:        size,
		background:  opts.BackgroundIndex,
		defaults:    opts.Defaults,
		labels:      labels,
		names:       newNameResolver(labels, lookup, opts.NameCacheTTL),
	}
}

// Accelerated reports whether the model runs on the accelerator.
func (c *Classifier) Accelerated() bool {
	return c.accelerated
}

// Defaults returns the configured filters.
func (c *Classifier) Defaults() Params {
	return c.defaults
}

// Classify runs the model with the configured threshold.
func (c *Classifier) Classify(crop gocv.Mat) (*vision.Classification, error) {
	return c.ClassifyWith(crop, c.defaults)
}

// ClassifyWith classifies crop. It returns nil without error when the top
// label is background or scores below p.Threshold.
func (c *Classifier) ClassifyWith(crop gocv.Mat, p Params) (*vision.Classification, error) {
	start := time.Now()

	input := letterbox(crop, c.size)
	defer input.Close()

	outputs, err := c.model.Run(input.ToBytes())
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryInference).
			Context("backend", string(c.model.Backend())).
			Timing("classify", time.Since(start)).
			Build()
	}
	if len(outputs) == 0 || outputs[0].Len() == 0 {
		return nil, errors.Newf("classifier model returned no scores").
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}

	idx, score, ok := selectTop(dequantize(outputs[0]), c.background, p.Threshold)
	if !ok {
		GetLogger().Trace("no classification",
			logger.Int("top_index", idx),
			logger.Float64("top_score", score))
		return nil, nil
	}

	scientific := c.labels.Scientific(idx)
	result := &vision.Classification{
		ScientificName: scientific,
		CommonName:     c.names.resolve(scientific),
		Score:          score,
		LabelIndex:     idx,
	}
	GetLogger().Debug("species classified",
		logger.String("species", result.CommonName),
		logger.Float64("score", result.Score),
		logger.Duration("elapsed", time.Since(start)))
	return result, nil
}

// dequantize returns scores in [0,1]; byte outputs are scaled by 1/255.
func dequantize(t accelerator.Tensor) []float32 {
	if t.Type != accelerator.TypeUInt8 {
		return t.Float32
	}
	scores := make([]float32, len(t.UInt8))
	for i, v := range t.UInt8 {
		scores[i] = float32(v) / 255
	}
	return scores
}

// selectTop picks the argmax of scores, first index winning ties. ok is false
// when the winner is the background label or scores below threshold. The
// comparison runs in float32 so a threshold of 0.7 accepts a score of 0.7.
func selectTop(scores []float32, background int, threshold float64) (idx int, score float64, ok bool) {
	if len(scores) == 0 {
		return -1, 0, false
	}
	for i, s := range scores {
		if s > scores[idx] {
			idx = i
		}
	}
	top := scores[idx]
	score = float64(top)
	if background >= 0 && idx == background {
		return idx, score, false
	}
	if top < float32(threshold) {
		return idx, score, false
	}
	return idx, score, true
}

// letterbox scales src to fit a size x size canvas preserving the aspect
// ratio, centres it on black and converts BGR to RGB. An empty src yields a
// black canvas.
func letterbox(src gocv.Mat, size int) gocv.Mat {
	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size, size, gocv.MatTypeCV8UC3)
	if src.Empty() || src.Cols() == 0 || src.Rows() == 0 {
		return canvas
	}

	w, h := src.Cols(), src.Rows()
	scale := min(float64(size)/float64(w), float64(size)/float64(h))
	nw := max(1, min(size, int(float64(w)*scale)))
	nh := max(1, min(size, int(float64(h)*scale)))

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(nw, nh), 0, 0, gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	xOff, yOff := (size-nw)/2, (size-nh)/2
	roi := canvas.Region(image.Rect(xOff, yOff, xOff+nw, yOff+nh))
	rgb.CopyTo(&roi)
	roi.Close()
	return canvas
}
