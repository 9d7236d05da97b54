package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/accelerator"
	"github.com/ando01/BirdView/internal/errors"
)

func TestSelectTop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		scores     []float32
		background int
		threshold  float64
		wantIdx    int
		wantOK     bool
	}{
		{"just below threshold", []float32{0.1, 0.69, 0.2}, BackgroundIndex, 0.7, 1, false},
		{"exactly at threshold", []float32{0.1, 0.70, 0.2}, BackgroundIndex, 0.7, 1, true},
		{"first maximum wins", []float32{0.8, 0.8, 0.1}, BackgroundIndex, 0.5, 0, true},
		{"background wins", []float32{0.01, 0.99}, 1, 0.5, 1, false},
		{"background disabled", []float32{0.01, 0.99}, -1, 0.5, 1, true},
		{"empty scores", nil, BackgroundIndex, 0, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idx, _, ok := selectTop(tt.scores, tt.background, tt.threshold)
			assert.Equal(t, tt.wantIdx, idx)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestSelectTopBackgroundAtIndex964(t *testing.T) {
	t.Parallel()

	scores := make([]float32, 965)
	scores[964] = 0.99
	idx, score, ok := selectTop(scores, BackgroundIndex, 0.1)
	assert.Equal(t, 964, idx)
	assert.InDelta(t, 0.99, score, 1e-6)
	assert.False(t, ok)
}

func TestDequantize(t *testing.T) {
	t.Parallel()

	got := dequantize(accelerator.Tensor{Type: accelerator.TypeUInt8, UInt8: []uint8{0, 51, 255}})
	assert.InDeltaSlice(t, []float32{0, 0.2, 1}, got, 1e-6)

	floats := []float32{0.25, 0.75}
	assert.Equal(t, floats, dequantize(accelerator.Tensor{Type: accelerator.TypeFloat32, Float32: floats}))
}

func TestLetterbox(t *testing.T) {
	t.Parallel()

	// 100x50 pure blue in BGR
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 50, 100, gocv.MatTypeCV8UC3)
	defer src.Close()

	out := letterbox(src, 224)
	defer out.Close()

	require.Equal(t, 224, out.Cols())
	require.Equal(t, 224, out.Rows())

	// scaled to 224x112, so rows 56..167 hold the image
	top := out.GetVecbAt(10, 112)
	assert.Equal(t, []uint8{0, 0, 0}, []uint8(top), "padding is black")

	centre := out.GetVecbAt(112, 112)
	assert.Equal(t, []uint8{0, 0, 255}, []uint8(centre), "channels swapped to RGB")
}

func TestLetterboxEmpty(t *testing.T) {
	t.Parallel()

	empty := gocv.NewMat()
	defer empty.Close()

	out := letterbox(empty, 32)
	defer out.Close()
	assert.Equal(t, 32, out.Cols())
	assert.Len(t, out.ToBytes(), 32*32*3)
}

type fakeModel struct {
	output accelerator.Tensor
	err    error
	input  []uint8
}

func (m *fakeModel) Run(input []uint8) ([]accelerator.Tensor, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return []accelerator.Tensor{m.output}, nil
}
func (m *fakeModel) InputSize() (int, int)        { return 16, 16 }
func (m *fakeModel) Backend() accelerator.Backend { return accelerator.BackendCPU }
func (m *fakeModel) Close()                       {}

func newTestClassifier(t *testing.T, model *fakeModel) *Classifier {
	t.Helper()
	labels, err := ParseINat(strings.NewReader("Cardinalis cardinalis (Northern Cardinal)\nAramus guarauna\nbackground\n"))
	require.NoError(t, err)
	lookup := &countingLookup{names: map[string]string{"Aramus guarauna": "Limpkin"}}
	return New(model, false, labels, lookup, Options{BackgroundIndex: 2, Defaults: Params{Threshold: 0.7}})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	model := &fakeModel{output: accelerator.Tensor{Type: accelerator.TypeUInt8, UInt8: []uint8{10, 230, 15}}}
	c := newTestClassifier(t, model)

	crop := gocv.NewMatWithSize(40, 30, gocv.MatTypeCV8UC3)
	defer crop.Close()

	got, err := c.Classify(crop)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Aramus guarauna", got.ScientificName)
	assert.Equal(t, "Limpkin", got.CommonName)
	assert.Equal(t, 1, got.LabelIndex)
	assert.InDelta(t, 230.0/255.0, got.Score, 1e-6)
	assert.Len(t, model.input, 16*16*3)

	got, err = c.ClassifyWith(crop, Params{Threshold: 0.95})
	require.NoError(t, err)
	assert.Nil(t, got, "per-call threshold overrides the default")
}

func TestClassifyBackground(t *testing.T) {
	t.Parallel()

	model := &fakeModel{output: accelerator.Tensor{Type: accelerator.TypeFloat32, Float32: []float32{0.005, 0.005, 0.99}}}
	c := newTestClassifier(t, model)

	crop := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer crop.Close()

	got, err := c.Classify(crop)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClassifyModelError(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, &fakeModel{err: errors.NewStd("invoke failed")})
	crop := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer crop.Close()

	_, err := c.Classify(crop)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInference))
}
