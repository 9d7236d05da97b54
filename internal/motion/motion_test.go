package motion

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func solidFrame(v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), 240, 320, gocv.MatTypeCV8UC3)
}

// trainBackground feeds n identical frames so the model settles.
func trainBackground(g *Gate, n int) {
	bg := solidFrame(40)
	defer bg.Close()
	for range n {
		g.HasMotion(bg)
	}
}

func TestStaticSceneHasNoMotion(t *testing.T) {
	t.Parallel()

	g := New(Options{MinArea: 500, History: 50, VarThreshold: 16})
	defer g.Close()

	trainBackground(g, 30)

	bg := solidFrame(40)
	defer bg.Close()
	assert.False(t, g.HasMotion(bg))
}

func TestLargeObjectIsMotion(t *testing.T) {
	t.Parallel()

	g := New(Options{MinArea: 500, History: 50, VarThreshold: 16})
	defer g.Close()

	trainBackground(g, 30)

	frame := solidFrame(40)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(100, 80, 180, 160), color.RGBA{R: 250, G: 250, B: 250}, -1)

	assert.True(t, g.HasMotion(frame), "an 80x80 block exceeds 500 px")
}

func TestSmallSpeckIsNotMotion(t *testing.T) {
	t.Parallel()

	g := New(Options{MinArea: 500, History: 50, VarThreshold: 16})
	defer g.Close()

	trainBackground(g, 30)

	frame := solidFrame(40)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(10, 10, 13, 13), color.RGBA{R: 250, G: 250, B: 250}, -1)

	assert.False(t, g.HasMotion(frame), "3x3 speck is removed by the open")
}

func TestClosedGate(t *testing.T) {
	t.Parallel()

	g := New(Options{MinArea: 1})
	g.Close()
	g.Close()

	frame := solidFrame(200)
	defer frame.Close()
	assert.False(t, g.HasMotion(frame))

	empty := gocv.NewMat()
	defer empty.Close()
	assert.False(t, g.HasMotion(empty))
}
