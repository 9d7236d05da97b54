package vision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestFrameCloneIsIndependent(t *testing.T) {
	t.Parallel()

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 48, 64, gocv.MatTypeCV8UC3)
	f := NewFrame(time.Unix(100, 0), mat)
	defer f.Close()

	c := f.Clone()
	defer c.Close()

	f.Mat.SetUCharAt(0, 0, 255)
	assert.Equal(t, uint8(10), c.Mat.GetUCharAt(0, 0), "clone does not see later writes")
	assert.Equal(t, f.Time, c.Time)

	w, h := c.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

func TestFrameCrop(t *testing.T) {
	t.Parallel()

	f := NewFrame(time.Now(), gocv.NewMatWithSize(100, 200, gocv.MatTypeCV8UC3))
	defer f.Close()

	crop, err := f.Crop(BoundingBox{150, 80, 260, 140})
	require.NoError(t, err)
	defer crop.Close()
	assert.Equal(t, 50, crop.Cols())
	assert.Equal(t, 20, crop.Rows())

	empty, err := f.Crop(BoundingBox{250, 0, 300, 10})
	require.Error(t, err)
	empty.Close()
}

func TestZeroFrame(t *testing.T) {
	t.Parallel()

	var f Frame
	assert.True(t, f.Empty())
	w, h := f.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
	f.Close()
}

func TestResizeToWidth(t *testing.T) {
	t.Parallel()

	src := gocv.NewMatWithSize(300, 400, gocv.MatTypeCV8UC3)
	defer src.Close()

	small := ResizeToWidth(src, 200)
	defer small.Close()
	assert.Equal(t, 200, small.Cols())
	assert.Equal(t, 150, small.Rows())

	same := ResizeToWidth(src, 800)
	defer same.Close()
	assert.Equal(t, 400, same.Cols())
}
