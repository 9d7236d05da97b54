package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/vision"
)

var day = time.Date(2026, 5, 1, 8, 15, 0, 0, time.UTC)

func newMemStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := New(Options{Root: "/media", Quality: 90, Fs: fs})
	require.NoError(t, err)
	return s, fs
}

func readImage(t *testing.T, fs afero.Fs, p string) gocv.Mat {
	t.Helper()
	data, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "JPEG magic")
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	require.NoError(t, err)
	return img
}

func TestNewCreatesTree(t *testing.T) {
	t.Parallel()

	_, fs := newMemStore(t)
	for _, dir := range []string{SnapshotsDir, ThumbnailsDir, ClipsDir} {
		ok, err := afero.DirExists(fs, filepath.Join("/media", dir))
		require.NoError(t, err)
		assert.True(t, ok, dir)
	}
}

func TestRelPath(t *testing.T) {
	t.Parallel()

	got, err := relPath(SnapshotsDir, "abc-123", ".jpg", day)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/2026-05-01/abc-123.jpg", got)

	for _, id := range []string{"", "../etc/passwd", `a\b`, "a/b"} {
		_, err := relPath(SnapshotsDir, id, ".jpg", day)
		require.Error(t, err, id)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}
}

func TestSaveSnapshot(t *testing.T) {
	t.Parallel()

	s, fs := newMemStore(t)
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 120, 200, 0), 120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	rel, err := s.SaveSnapshot("visit-1", frame, day)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/2026-05-01/visit-1.jpg", rel)

	img := readImage(t, fs, s.AbsPath(rel))
	defer img.Close()
	assert.Equal(t, 160, img.Cols())
	assert.Equal(t, 120, img.Rows())

	leftovers, err := afero.Glob(fs, "/media/snapshots/2026-05-01/*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSaveThumbnail(t *testing.T) {
	t.Parallel()

	s, fs := newMemStore(t)
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	tests := []struct {
		name  string
		box   vision.BoundingBox
		wantW int
		wantH int
	}{
		{"wide box is scaled to 200px", vision.BoundingBox{X1: 100, Y1: 100, X2: 400, Y2: 300}, 200, 141},
		{"small box keeps its size", vision.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 40}, 70, 60},
		{"full-frame box", vision.BoundingBox{X2: 640, Y2: 480}, 200, 150},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "thumb-" + string(rune('a'+i))
			rel, err := s.SaveThumbnail(id, frame, tt.box, day)
			require.NoError(t, err)
			assert.Equal(t, "thumbnails/2026-05-01/"+id+".jpg", rel)

			img := readImage(t, fs, s.AbsPath(rel))
			defer img.Close()
			assert.Equal(t, tt.wantW, img.Cols())
			assert.Equal(t, tt.wantH, img.Rows())
		})
	}
}

func TestSaveSnapshotBytes(t *testing.T) {
	t.Parallel()

	s, fs := newMemStore(t)
	rel, err := s.SaveSnapshotBytes("1718000000.1-abc", []byte{0xFF, 0xD8, 0xFF}, day)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, s.AbsPath(rel))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data)
}

func TestSaveClipMovesFile(t *testing.T) {
	t.Parallel()

	s, fs := newMemStore(t)
	require.NoError(t, afero.WriteFile(fs, "/tmp/clip-visit-1-123.mp4", []byte("mp4"), 0o600))

	rel, err := s.SaveClip("visit-1", "/tmp/clip-visit-1-123.mp4", day)
	require.NoError(t, err)
	assert.Equal(t, "clips/2026-05-01/visit-1.mp4", rel)

	data, err := afero.ReadFile(fs, s.AbsPath(rel))
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(data))

	exists, err := afero.Exists(fs, "/tmp/clip-visit-1-123.mp4")
	require.NoError(t, err)
	assert.False(t, exists, "source consumed")
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s, fs := newMemStore(t)
	rel, err := s.SaveSnapshotBytes("visit-9", []byte("jpeg"), day)
	require.NoError(t, err)

	require.NoError(t, s.Remove(rel))
	exists, err := afero.Exists(fs, s.AbsPath(rel))
	require.NoError(t, err)
	assert.False(t, exists)

	err = s.Remove(rel)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestSaveClipMissingSource(t *testing.T) {
	t.Parallel()

	s, _ := newMemStore(t)
	_, err := s.SaveClip("visit-1", "/tmp/nope.mp4", day)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

type fakePruner struct {
	before time.Time
	rows   int64
}

func (p *fakePruner) DeleteOlder(_ context.Context, before time.Time) (int64, error) {
	p.before = before
	return p.rows, nil
}

func TestSweep(t *testing.T) {
	t.Parallel()

	s, fs := newMemStore(t)
	for _, d := range []string{"2026-03-01", "2026-03-31", "2026-04-02", "2026-05-01", "lost+found"} {
		require.NoError(t, fs.MkdirAll(filepath.Join("/media", SnapshotsDir, d), 0o755))
	}
	require.NoError(t, fs.MkdirAll(filepath.Join("/media", ClipsDir, "2026-03-01"), 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/media", ClipsDir, "2026-03-01", "a.mp4"), []byte("x"), 0o600))

	pruner := &fakePruner{rows: 7}
	res, err := s.Sweep(t.Context(), 30, pruner, day)
	require.NoError(t, err)

	assert.Equal(t, day.AddDate(0, 0, -30), pruner.before)
	assert.EqualValues(t, 7, res.RowsDeleted)
	assert.ElementsMatch(t, []string{
		"snapshots/2026-03-01",
		"snapshots/2026-03-31",
		"clips/2026-03-01",
	}, res.RemovedDirs)

	for _, keep := range []string{"2026-04-02", "2026-05-01", "lost+found"} {
		ok, err := afero.DirExists(fs, filepath.Join("/media", SnapshotsDir, keep))
		require.NoError(t, err)
		assert.True(t, ok, keep)
	}
}

func TestSweepDisabled(t *testing.T) {
	t.Parallel()

	s, _ := newMemStore(t)
	pruner := &fakePruner{}
	res, err := s.Sweep(t.Context(), 0, pruner, day)
	require.NoError(t, err)
	assert.Empty(t, res.RemovedDirs)
	assert.True(t, pruner.before.IsZero())
}
