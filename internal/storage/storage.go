// Package storage keeps snapshots, thumbnails and clips in date-partitioned
// directories under a media root. Returned paths are relative to the root
// and use forward slashes.
package storage

import (
	"image"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/vision"
)

const (
	SnapshotsDir  = "snapshots"
	ThumbnailsDir = "thumbnails"
	ClipsDir      = "clips"

	dateLayout       = "2006-01-02"
	thumbnailPadding = 20
	thumbnailWidth   = 200
	thumbnailQuality = 85
	defaultQuality   = 95
)

// Options configures a Store.
type Options struct {
	Root    string
	Quality int      // snapshot JPEG quality, 1..100
	Fs      afero.Fs // defaults to the OS filesystem
}

// Store writes media files.
type Store struct {
	fs      afero.Fs
	root    string
	quality int
}

// New creates the media directories under opts.Root.
func New(opts Options) (*Store, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = defaultQuality
	}

	s := &Store{fs: opts.Fs, root: opts.Root, quality: opts.Quality}
	for _, dir := range []string{SnapshotsDir, ThumbnailsDir, ClipsDir} {
		if err := s.fs.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
			return nil, errors.New(err).
				Component("storage").
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
	}
	return s, nil
}

// Root returns the media root.
func (s *Store) Root() string {
	return s.root
}

// AbsPath resolves a path returned by the Save methods.
func (s *Store) AbsPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// SaveSnapshot encodes the full frame as JPEG.
func (s *Store) SaveSnapshot(id string, frame gocv.Mat, t time.Time) (string, error) {
	data, err := encodeJPEG(frame, s.quality)
	if err != nil {
		return "", err
	}
	return s.write(SnapshotsDir, id, ".jpg", t, data)
}

// SaveSnapshotBytes stores an already encoded JPEG.
func (s *Store) SaveSnapshotBytes(id string, data []byte, t time.Time) (string, error) {
	return s.write(SnapshotsDir, id, ".jpg", t, data)
}

// SaveThumbnail stores the region around box, padded and no wider than 200 px.
func (s *Store) SaveThumbnail(id string, frame gocv.Mat, box vision.BoundingBox, t time.Time) (string, error) {
	thumb := thumbnail(frame, box)
	defer thumb.Close()

	data, err := encodeJPEG(thumb, thumbnailQuality)
	if err != nil {
		return "", err
	}
	return s.write(ThumbnailsDir, id, ".jpg", t, data)
}

// SaveClip moves an encoded clip into the clip tree. The source file is
// consumed.
func (s *Store) SaveClip(id, srcPath string, t time.Time) (string, error) {
	rel, err := relPath(ClipsDir, id, filepath.Ext(srcPath), t)
	if err != nil {
		return "", err
	}
	if filepath.Ext(rel) == "" {
		rel += ".mp4"
	}
	dst := s.AbsPath(rel)
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fileErr(err, dst)
	}

	if err := s.fs.Rename(srcPath, dst); err != nil {
		// rename fails across devices; fall back to copy
		if cerr := s.copyFile(srcPath, dst); cerr != nil {
			return "", fileErr(cerr, dst)
		}
		_ = s.fs.Remove(srcPath)
	}

	GetLogger().Debug("clip stored", logger.String("path", rel))
	return rel, nil
}

// Remove deletes a file returned by one of the Save methods.
func (s *Store) Remove(rel string) error {
	if err := s.fs.Remove(s.AbsPath(rel)); err != nil {
		return fileErr(err, rel)
	}
	return nil
}

func (s *Store) write(kind, id, ext string, t time.Time, data []byte) (string, error) {
	rel, err := relPath(kind, id, ext, t)
	if err != nil {
		return "", err
	}
	dst := s.AbsPath(rel)
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fileErr(err, dst)
	}

	tmp := dst + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fileErr(err, dst)
	}
	if err := s.fs.Rename(tmp, dst); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fileErr(err, dst)
	}
	return rel, nil
}

func (s *Store) copyFile(src, dst string) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = s.fs.Remove(dst)
		return err
	}
	return out.Close()
}

// relPath builds kind/YYYY-MM-DD/id+ext.
func relPath(kind, id, ext string, t time.Time) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", errors.Newf("invalid media id %q", id).
			Component("storage").
			Category(errors.CategoryValidation).
			Build()
	}
	return path.Join(kind, t.Format(dateLayout), id+ext), nil
}

// thumbnail pads box, clamps it to the frame and scales it down to the
// thumbnail width. An empty region falls back to the whole frame.
func thumbnail(frame gocv.Mat, box vision.BoundingBox) gocv.Mat {
	w, h := frame.Cols(), frame.Rows()
	region := box.Pad(thumbnailPadding, w, h)

	var crop gocv.Mat
	if region.Valid() {
		roi := frame.Region(region.Rect())
		crop = roi.Clone()
		roi.Close()
	} else {
		crop = frame.Clone()
	}

	if crop.Cols() <= thumbnailWidth {
		return crop
	}
	defer crop.Close()

	height := max(1, crop.Rows()*thumbnailWidth/crop.Cols())
	small := gocv.NewMat()
	gocv.Resize(crop, &small, image.Pt(thumbnailWidth, height), 0, 0, gocv.InterpolationArea)
	return small
}

func encodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, errors.Newf("cannot encode empty image").
			Component("storage").
			Category(errors.CategoryFileIO).
			Build()
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func fileErr(err error, p string) error {
	return errors.New(err).
		Component("storage").
		Category(errors.CategoryFileIO).
		Context("path", p).
		Build()
}
