// Package clip writes buffered frames to MP4 files.
package clip

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/observability/metrics"
	"github.com/ando01/BirdView/internal/vision"
)

const (
	defaultFPS     = 15
	defaultTimeout = 60 * time.Second
	fourcc         = "mp4v"
)

// Options configures an Encoder.
type Options struct {
	FPS        float64
	Transcode  bool   // re-encode to H.264 with ffmpeg after writing
	FFmpegPath string // defaults to "ffmpeg"
	Timeout    time.Duration
	TempDir    string // defaults to os.TempDir()
	Metrics    *metrics.ClipMetrics
}

// Result reports the outcome of an asynchronous encode. On success the
// receiver owns the file at Path.
type Result struct {
	ID       string
	Path     string
	Frames   int
	Duration time.Duration
	Err      error
}

type frameWriter interface {
	Write(img gocv.Mat) error
	Close() error
}

type writerOpener func(path string, fps float64, width, height int) (frameWriter, error)

func openGoCVWriter(path string, fps float64, width, height int) (frameWriter, error) {
	vw, err := gocv.VideoWriterFile(path, fourcc, fps, width, height, true)
	if err != nil {
		return nil, err
	}
	if !vw.IsOpened() {
		_ = vw.Close()
		return nil, errors.Newf("video writer did not open %s", path).
			Component("clip").
			Category(errors.CategoryClipEncode).
			Build()
	}
	return vw, nil
}

// Encoder writes clips. Encodes are best-effort and never retried.
type Encoder struct {
	fps        float64
	tempDir    string
	transcoder transcoder
	open       writerOpener
	metrics    *metrics.ClipMetrics
	wg         sync.WaitGroup
}

// New creates an Encoder.
func New(opts Options) *Encoder {
	if opts.FPS <= 0 {
		opts.FPS = defaultFPS
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}

	e := &Encoder{
		fps:     opts.FPS,
		tempDir: opts.TempDir,
		open:    openGoCVWriter,
		metrics: opts.Metrics,
	}
	if opts.Transcode {
		e.transcoder = ffmpegTranscoder{path: opts.FFmpegPath, timeout: opts.Timeout}
	}
	return e
}

// Encode writes frames to dest. It fails without creating dest when frames
// is empty or the writer cannot be opened. A failed transcode keeps the mp4v
// encoding at dest.
func (e *Encoder) Encode(ctx context.Context, frames []vision.Frame, dest string) (err error) {
	start := time.Now()
	written := 0
	defer func() {
		e.metrics.ObserveEncode(err == nil, written, time.Since(start))
	}()

	first := firstNonEmpty(frames)
	if first < 0 {
		return errors.Newf("no frames to encode").
			Component("clip").
			Category(errors.CategoryClipEncode).
			Context("frames", len(frames)).
			Build()
	}
	width, height := frames[first].Size()

	raw := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".raw.mp4"
	w, err := e.open(raw, e.fps, width, height)
	if err != nil {
		_ = os.Remove(raw)
		return errors.New(err).
			Component("clip").
			Category(errors.CategoryClipEncode).
			Context("path", raw).
			Build()
	}

	written, err = writeFrames(ctx, w, frames[first:], width, height)
	if closeErr := w.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err == nil && written == 0 {
		err = errors.NewStd("no frame matched the clip size")
	}
	if err != nil {
		_ = os.Remove(raw)
		return errors.New(err).
			Component("clip").
			Category(errors.CategoryClipEncode).
			Context("path", dest).
			Context("frames_written", written).
			Build()
	}

	if e.transcoder != nil {
		terr := e.transcoder.Transcode(ctx, raw, dest)
		if terr == nil {
			e.metrics.IncTranscode(metrics.ResultSuccess)
			_ = os.Remove(raw)
			return nil
		}
		e.metrics.IncTranscode(metrics.ResultFailure)
		GetLogger().Warn("transcode failed, keeping mp4v clip",
			logger.String("path", dest),
			logger.Error(terr))
		_ = os.Remove(dest)
	}

	if err := os.Rename(raw, dest); err != nil {
		_ = os.Remove(raw)
		return errors.New(err).
			Component("clip").
			Category(errors.CategoryFileIO).
			Context("path", dest).
			Build()
	}
	return nil
}

// EncodeAsync encodes frames into a new temporary file on its own goroutine
// and sends the outcome on done. It takes ownership of frames. The temporary
// file is removed when the encode fails.
func (e *Encoder) EncodeAsync(frames []vision.Frame, id string, done chan<- Result) {
	e.wg.Go(func() {
		defer func() {
			for i := range frames {
				frames[i].Close()
			}
		}()

		res := e.encodeTemp(frames, id)
		if res.Err != nil {
			GetLogger().Warn("clip encode failed",
				logger.String("visit_id", id),
				logger.Int("frames", len(frames)),
				logger.Error(res.Err))
		} else {
			GetLogger().Debug("clip encoded",
				logger.String("visit_id", id),
				logger.String("path", res.Path),
				logger.Int("frames", res.Frames),
				logger.Duration("elapsed", res.Duration))
		}

		if done == nil {
			if res.Err == nil {
				_ = os.Remove(res.Path)
			}
			return
		}
		done <- res
	})
}

// Wait blocks until every asynchronous encode has reported.
func (e *Encoder) Wait() {
	e.wg.Wait()
}

func (e *Encoder) encodeTemp(frames []vision.Frame, id string) Result {
	start := time.Now()
	res := Result{ID: id, Frames: len(frames)}

	f, err := os.CreateTemp(e.tempDir, "clip-"+id+"-*.mp4")
	if err != nil {
		res.Err = errors.New(err).
			Component("clip").
			Category(errors.CategoryFileIO).
			Context("dir", e.tempDir).
			Build()
		return res
	}
	path := f.Name()
	_ = f.Close()

	if err := e.Encode(context.Background(), frames, path); err != nil {
		_ = os.Remove(path)
		res.Err = err
		return res
	}
	res.Path = path
	res.Duration = time.Since(start)
	return res
}

func firstNonEmpty(frames []vision.Frame) int {
	for i := range frames {
		if !frames[i].Empty() {
			return i
		}
	}
	return -1
}

// writeFrames writes every frame of the clip size and returns how many were written.
func writeFrames(ctx context.Context, w frameWriter, frames []vision.Frame, width, height int) (int, error) {
	written := 0
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		fw, fh := frames[i].Size()
		if fw != width || fh != height {
			continue
		}
		if err := w.Write(frames[i].Mat); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
