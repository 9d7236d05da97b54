package frigate

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/classifier"
	"github.com/ando01/BirdView/internal/datastore"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/mqtt"
	"github.com/ando01/BirdView/internal/notification"
	"github.com/ando01/BirdView/internal/observability/metrics"
	"github.com/ando01/BirdView/internal/pipeline"
	"github.com/ando01/BirdView/internal/settings"
	"github.com/ando01/BirdView/internal/vision"
)

const (
	DefaultMaxWorkers = 4
	defaultDedupeTTL  = time.Hour
)

// MediaSource fetches event media.
type MediaSource interface {
	Snapshot(ctx context.Context, eventID string) ([]byte, error)
	DownloadClip(ctx context.Context, eventID string, w io.Writer) (int64, error)
}

// Classifier identifies the species in a crop.
type Classifier interface {
	Classify(crop gocv.Mat) (*vision.Classification, error)
	ClassifyWith(crop gocv.Mat, p classifier.Params) (*vision.Classification, error)
}

// ParamSource supplies the current runtime overrides.
type ParamSource interface {
	Snapshot(ctx context.Context) settings.Snapshot
}

// MediaStore persists event media.
type MediaStore interface {
	SaveSnapshotBytes(id string, data []byte, t time.Time) (string, error)
	SaveThumbnail(id string, frame gocv.Mat, box vision.BoundingBox, t time.Time) (string, error)
	SaveClip(id, srcPath string, t time.Time) (string, error)
	Remove(rel string) error
}

// Store persists detection records.
type Store interface {
	InsertDetection(ctx context.Context, d *datastore.Detection) error
	UpdateClipPath(ctx context.Context, eventID, clipPath string) error
}

// Subscriber delivers MQTT messages.
type Subscriber interface {
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// Deps are the collaborators of a Processor. Params and Notifier may be nil.
type Deps struct {
	Media      MediaSource
	Classifier Classifier
	Params     ParamSource
	Storage    MediaStore
	Store      Store
	Notifier   notification.Notifier
	Stats      *pipeline.Stats
	Metrics    *metrics.FrigateMetrics
}

// Options configures a Processor.
type Options struct {
	Topic         string
	Filter        Filter
	MaxWorkers    int
	DownloadClips bool
	ClipDelay     time.Duration
	TempDir       string
	DedupeTTL     time.Duration
}

// Processor classifies Frigate events. Each accepted event gets its own
// goroutine; a weighted semaphore bounds how many classify at once.
type Processor struct {
	deps Deps
	opts Options
	sem  *semaphore.Weighted
	seen *cache.Cache
	wg   sync.WaitGroup
}

// NewProcessor returns a Processor.
func NewProcessor(deps Deps, opts Options) *Processor {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = defaultDedupeTTL
	}
	if opts.Topic == "" {
		opts.Topic = "frigate/events"
	}
	if deps.Stats == nil {
		deps.Stats = pipeline.NewStats(nil)
	}
	return &Processor{
		deps: deps,
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.MaxWorkers)),
		seen: cache.New(opts.DedupeTTL, 2*opts.DedupeTTL),
	}
}

// Run subscribes to the event topic and blocks until ctx is done, then waits
// for in-flight events and clip downloads.
func (p *Processor) Run(ctx context.Context, sub Subscriber) error {
	if err := sub.Subscribe(p.opts.Topic, p.Handler(ctx)); err != nil {
		return err
	}
	GetLogger().Info("listening for Frigate events", logger.String("topic", p.opts.Topic))
	<-ctx.Done()
	p.Wait()
	return nil
}

// Handler returns the MQTT handler feeding Submit. Events are processed under ctx.
func (p *Processor) Handler(ctx context.Context) mqtt.MessageHandler {
	return func(_ string, payload []byte) {
		ev, err := ParseEvent(payload)
		if err != nil {
			GetLogger().Debug("ignoring malformed Frigate message", logger.Error(err))
			return
		}
		p.Submit(ctx, ev)
	}
}

// Submit dispatches ev if the filter accepts it and it was not seen before.
// It reports whether a worker was started.
func (p *Processor) Submit(ctx context.Context, ev Event) bool {
	if !p.opts.Filter.Accept(ev) {
		return false
	}
	p.deps.Metrics.IncReceived()
	if err := p.seen.Add(ev.ID, struct{}{}, cache.DefaultExpiration); err != nil {
		p.deps.Metrics.IncProcessed(metrics.ResultSkipped)
		return false
	}

	p.wg.Go(func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		p.deps.Metrics.AddInFlight(1)
		defer func() {
			p.deps.Metrics.AddInFlight(-1)
			p.sem.Release(1)
		}()

		result, err := p.processSafely(ctx, ev)
		if err != nil {
			GetLogger().Warn("failed to process Frigate event",
				logger.String("event_id", ev.ID),
				logger.String("camera", ev.Camera),
				logger.Error(err))
			result = metrics.ResultFailure
		}
		p.deps.Metrics.IncProcessed(result)
	})
	return true
}

// Wait blocks until every dispatched event and clip download finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Stats returns the shared counters.
func (p *Processor) Stats() *pipeline.Stats {
	return p.deps.Stats
}

// processSafely runs process and turns a panic into an error so other
// in-flight events are unaffected.
func (p *Processor) processSafely(ctx context.Context, ev Event) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("frigate event processing panicked: %v", r).
				Component("frigate").
				Category(errors.CategoryProcessing).
				Context("event_id", ev.ID).
				Context("panic_value", fmt.Sprintf("%v", r)).
				Build()
		}
	}()
	return p.process(ctx, ev)
}

func (p *Processor) process(ctx context.Context, ev Event) (string, error) {
	log := GetLogger().With(logger.String("event_id", ev.ID))
	detectionTime := ev.DetectionTime(time.Now())

	jpeg, err := p.deps.Media.Snapshot(ctx, ev.ID)
	if err != nil {
		log.Warn("no snapshot for event, skipping", logger.Error(err))
		return metrics.ResultSkipped, nil
	}

	frame, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil || frame.Empty() {
		if err == nil {
			frame.Close()
			err = errors.Newf("snapshot is not a decodable image").Build()
		}
		return "", errors.New(err).
			Component("frigate").
			Category(errors.CategoryImageFetch).
			Context("event_id", ev.ID).
			Build()
	}
	defer frame.Close()

	img := vision.NewFrame(detectionTime, frame)
	box, ok := ev.BoundingBox(img.Size())
	if !ok {
		box = img.Bounds()
	}

	cls, err := p.classify(ctx, img, box)
	if err != nil {
		return "", err
	}
	if cls == nil {
		log.Debug("event below classification threshold")
		return metrics.ResultNone, nil
	}

	snapshotPath, err := p.deps.Storage.SaveSnapshotBytes(ev.ID, jpeg, detectionTime)
	if err != nil {
		return "", err
	}
	thumbnailPath, err := p.deps.Storage.SaveThumbnail(ev.ID, frame, box, detectionTime)
	if err != nil {
		log.Warn("failed to save thumbnail", logger.Error(err))
	}

	record := &datastore.Detection{
		EventID:             ev.ID,
		DetectionTime:       detectionTime,
		DurationSeconds:     ev.Duration().Seconds(),
		Score:               cls.Score,
		ScientificName:      cls.ScientificName,
		CommonName:          cls.CommonName,
		DetectionConfidence: ev.Score,
		SnapshotPath:        datastore.StringPtr(snapshotPath),
		ThumbnailPath:       datastore.StringPtr(thumbnailPath),
		Source:              notification.SourceFrigate,
	}
	if err := p.deps.Store.InsertDetection(ctx, record); err != nil {
		return "", err
	}

	today := p.deps.Stats.Record(*cls, detectionTime)
	log.Info("bird event classified",
		logger.String("species", cls.CommonName),
		logger.Float64("score", cls.Score),
		logger.Float64("duration_s", ev.Duration().Seconds()),
		logger.String("camera", ev.Camera))

	if p.opts.DownloadClips && ev.HasClip {
		p.wg.Go(func() {
			p.downloadClip(ctx, ev.ID, detectionTime)
		})
	}

	notification.Dispatch(ctx, p.deps.Notifier, notification.Event{
		EventID:             ev.ID,
		Source:              notification.SourceFrigate,
		Time:                detectionTime,
		Duration:            ev.Duration(),
		Species:             *cls,
		DetectionConfidence: ev.Score,
		SnapshotPath:        snapshotPath,
		ThumbnailPath:       thumbnailPath,
		TodayCount:          today,
	})
	return metrics.ResultSuccess, nil
}

func (p *Processor) classify(ctx context.Context, img vision.Frame, box vision.BoundingBox) (*vision.Classification, error) {
	crop, err := img.Crop(box)
	if err != nil {
		return nil, err
	}
	defer crop.Close()

	if p.deps.Params != nil {
		return p.deps.Classifier.ClassifyWith(crop, p.deps.Params.Snapshot(ctx).Classifier)
	}
	return p.deps.Classifier.Classify(crop)
}

// downloadClip waits for Frigate to finalize the recording, then stores it.
func (p *Processor) downloadClip(ctx context.Context, eventID string, detectionTime time.Time) {
	log := GetLogger().With(logger.String("event_id", eventID))
	defer func() {
		if r := recover(); r != nil {
			p.deps.Metrics.IncClipDownload(metrics.ResultFailure)
			log.Error("clip download panicked", logger.String("panic", fmt.Sprint(r)))
		}
	}()

	timer := time.NewTimer(p.opts.ClipDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	tmp, err := os.CreateTemp(p.opts.TempDir, "frigate-"+eventID+"-*.mp4")
	if err != nil {
		log.Warn("failed to create clip temp file", logger.Error(err))
		p.deps.Metrics.IncClipDownload(metrics.ResultFailure)
		return
	}
	tmpPath := tmp.Name()

	_, err = p.deps.Media.DownloadClip(ctx, eventID, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		log.Warn("failed to download clip", logger.Error(err))
		p.deps.Metrics.IncClipDownload(metrics.ResultFailure)
		return
	}

	rel, err := p.deps.Storage.SaveClip(eventID, tmpPath, detectionTime)
	if err != nil {
		_ = os.Remove(tmpPath)
		log.Warn("failed to store clip", logger.Error(err))
		p.deps.Metrics.IncClipDownload(metrics.ResultFailure)
		return
	}
	if err := p.deps.Store.UpdateClipPath(ctx, eventID, rel); err != nil {
		log.Warn("failed to record clip path", logger.Error(err))
		if rerr := p.deps.Storage.Remove(rel); rerr != nil {
			log.Warn("failed to remove unreferenced clip", logger.String("path", rel), logger.Error(rerr))
		}
		p.deps.Metrics.IncClipDownload(metrics.ResultFailure)
		return
	}
	p.deps.Metrics.IncClipDownload(metrics.ResultSuccess)
	log.Info("clip saved", logger.String("path", rel))
}
