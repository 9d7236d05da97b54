// Package camera owns the video stream connection, the latest-frame cache and
// the rolling frame buffer used for clip extraction.
package camera

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/observability/metrics"
	"github.com/ando01/BirdView/internal/vision"
)

const (
	// maxConsecutiveFailures is the read failure streak that forces a reconnect
	maxConsecutiveFailures = 30
	readRetryDelay         = 50 * time.Millisecond
)

// Capture is an open video stream.
type Capture interface {
	// Read decodes the next frame into m and reports success.
	Read(m *gocv.Mat) bool
	// FPS returns the stream frame rate, 0 when unknown.
	FPS() float64
	Close() error
}

// Opener connects to url.
type Opener func(url string) (Capture, error)

type gocvCapture struct {
	vc *gocv.VideoCapture
}

func (c *gocvCapture) Read(m *gocv.Mat) bool { return c.vc.Read(m) }
func (c *gocvCapture) FPS() float64 { return c.vc.Get(gocv.VideoCaptureFPS) }
func (c *gocvCapture) Close() error { return c.vc.Close() }

// OpenGoCV opens url with OpenCV. Network streams use the FFmpeg backend.
func OpenGoCV(url string) (Capture, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if strings.HasPrefix(url, "/dev/") {
		vc, err = gocv.OpenVideoCapture(url)
	} else {
		vc, err = gocv.OpenVideoCaptureWithAPI(url, gocv.VideoCaptureFFmpeg)
	}
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, errors.Newf("stream did not open").
			Component("camera").
			Category(errors.CategoryCapture).
			Build()
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	return &gocvCapture{vc: vc}, nil
}

// Options configures a Source.
type Options struct {
	URL               string
	BufferSeconds     int
	BufferCapacity    int // used until the stream reports its frame rate
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	Opener  Opener
	Metrics *metrics.CameraMetrics

	// Clock and Sleep are replaced in tests.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Status is a point-in-time view for the status surface.
type Status struct {
	Connected      bool      `json:"connected"`
	FPS            float64   `json:"fps"`
	BufferFrames   int       `json:"buffer_frames"`
	BufferCapacity int       `json:"buffer_capacity"`
	BufferOldest   time.Time `json:"buffer_oldest"`
}

// Source captures frames from one stream. Run owns the connection; every
// other method is safe to call concurrently with it.
type Source struct {
	opts Options

	latestMu  sync.RWMutex
	latest    vision.Frame
	hasLatest bool

	buffer *RollingBuffer

	connected atomic.Bool
	fps       atomic.Uint64 // math.Float64bits
}

// New returns a Source that has not connected yet.
func New(opts Options) *Source {
	if opts.Opener == nil {
		opts.Opener = OpenGoCV
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.MaxReconnectDelay < opts.ReconnectDelay {
		opts.MaxReconnectDelay = opts.ReconnectDelay
	}
	if opts.BufferCapacity <= 0 {
		opts.BufferCapacity = 900
	}
	return &Source{
		opts:   opts,
		buffer: NewRollingBuffer(opts.BufferCapacity),
	}
}

// Run connects and reads frames until ctx is cancelled, reconnecting with
// exponential backoff. A stop is observed between reads, never mid-read.
func (s *Source) Run(ctx context.Context) {
	log := GetLogger().With(logger.String("url", logger.RedactSensitiveData(s.opts.URL)))
	delay := s.opts.ReconnectDelay

	backoff := func() bool {
		ok := s.opts.Sleep(ctx, delay)
		delay = min(delay*2, s.opts.MaxReconnectDelay)
		return ok
	}

	for attempt := 0; ctx.Err() == nil; attempt++ {
		if attempt > 0 {
			s.opts.Metrics.IncReconnects()
		}
		capture, err := s.opts.Opener(s.opts.URL)
		if err != nil {
			s.setConnected(false)
			log.Warn("cannot open stream, retrying",
				logger.Error(err),
				logger.Duration("retry_in", delay))
			if !backoff() {
				return
			}
			continue
		}

		if fps := capture.FPS(); fps > 0 && !math.IsInf(fps, 0) {
			s.fps.Store(math.Float64bits(fps))
			s.opts.Metrics.SetFPS(fps)
			capacity := capacityFor(fps, s.opts.BufferSeconds)
			s.buffer.Resize(capacity)
			log.Info("stream frame rate detected",
				logger.Float64("fps", fps),
				logger.Int("buffer_frames", capacity),
				logger.Int("buffer_seconds", s.opts.BufferSeconds))
		}

		delay = s.opts.ReconnectDelay
		s.setConnected(true)
		log.Info("connected to stream")

		s.readLoop(ctx, capture, log)

		if err := capture.Close(); err != nil {
			log.Debug("error closing stream", logger.Error(err))
		}
		s.setConnected(false)

		if ctx.Err() == nil && !backoff() {
			return
		}
	}
}

// readLoop reads frames until ctx is done or the failure streak is exceeded.
func (s *Source) readLoop(ctx context.Context, capture Capture, log logger.Logger) {
	failures := 0
	mat := gocv.NewMat()
	defer func() { _ = mat.Close() }()

	for ctx.Err() == nil {
		if !capture.Read(&mat) || mat.Empty() {
			failures++
			s.opts.Metrics.IncReadFailures()
			if failures > maxConsecutiveFailures {
				log.Warn("lost stream, reconnecting", logger.Int("failed_reads", failures))
				return
			}
			if !s.opts.Sleep(ctx, readRetryDelay) {
				return
			}
			continue
		}
		failures = 0

		frame := vision.NewFrame(s.opts.Clock(), mat.Clone())
		s.setLatest(frame.Clone())
		s.buffer.Append(frame)
		s.opts.Metrics.RecordFrame(s.buffer.Len())
	}
}

func (s *Source) setLatest(f vision.Frame) {
	s.latestMu.Lock()
	old := s.latest
	s.latest = f
	s.hasLatest = true
	s.latestMu.Unlock()
	old.Close()
}

func (s *Source) setConnected(connected bool) {
	s.connected.Store(connected)
	s.opts.Metrics.SetConnected(connected)
}

// LatestFrame returns a copy of the most recent frame. The caller closes it.
func (s *Source) LatestFrame() (vision.Frame, bool) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	if !s.hasLatest {
		return vision.Frame{}, false
	}
	return s.latest.Clone(), true
}

// Slice returns copies of buffered frames with start <= time <= end.
func (s *Source) Slice(start, end time.Time) []vision.Frame {
	return s.buffer.Slice(start, end)
}

// Connected reports whether the stream is currently open.
func (s *Source) Connected() bool {
	return s.connected.Load()
}

// FPS returns the frame rate reported on the last successful connect.
func (s *Source) FPS() float64 {
	return math.Float64frombits(s.fps.Load())
}

// Status returns connection and buffer state.
func (s *Source) Status() Status {
	return Status{
		Connected:      s.Connected(),
		FPS:            s.FPS(),
		BufferFrames:   s.buffer.Len(),
		BufferCapacity: s.buffer.Capacity(),
		BufferOldest:   s.buffer.Oldest(),
	}
}

// Close releases buffered frames. Call after Run has returned.
func (s *Source) Close() {
	s.latestMu.Lock()
	s.latest.Close()
	s.latest = vision.Frame{}
	s.hasLatest = false
	s.latestMu.Unlock()
	s.buffer.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
