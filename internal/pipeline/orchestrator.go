// Package pipeline runs the real-time detection loop: it paces ticks over the
// latest camera frame, drives the detector, classifier and tracker, and
// finalizes completed visits into storage, clips and notifications.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ando01/BirdView/internal/classifier"
	"github.com/ando01/BirdView/internal/clip"
	"github.com/ando01/BirdView/internal/datastore"
	"github.com/ando01/BirdView/internal/detector"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/notification"
	"github.com/ando01/BirdView/internal/observability/metrics"
	"github.com/ando01/BirdView/internal/settings"
	"github.com/ando01/BirdView/internal/tracker"
	"github.com/ando01/BirdView/internal/vision"
)

const (
	defaultPeriod     = 200 * time.Millisecond
	clipResultBacklog = 8
)

// FrameSource supplies frames. Both methods return copies the caller closes.
type FrameSource interface {
	LatestFrame() (vision.Frame, bool)
	Slice(start, end time.Time) []vision.Frame
}

// MotionGate rejects frames without movement.
type MotionGate interface {
	HasMotion(frame gocv.Mat) bool
}

// Detector finds birds in a frame.
type Detector interface {
	DetectWith(frame gocv.Mat, p detector.Params) ([]vision.Detection, error)
}

// Classifier identifies the species in a crop. A nil result means no species
// passed the threshold.
type Classifier interface {
	ClassifyWith(crop gocv.Mat, p classifier.Params) (*vision.Classification, error)
}

// ParamSource supplies the runtime thresholds for one tick.
type ParamSource interface {
	Snapshot(ctx context.Context) settings.Snapshot
}

// VisitTracker groups detections into visits.
type VisitTracker interface {
	Update(detections []vision.Detection, classifications []*vision.Classification, frame vision.Frame, ts time.Time) ([]*tracker.Visit, error)
	Flush() []*tracker.Visit
	ActiveCount() int
	// TakeDropped returns the visits discarded unclassified since the last call.
	TakeDropped() int
}

// MediaStore persists visit media.
type MediaStore interface {
	SaveSnapshot(id string, frame gocv.Mat, t time.Time) (string, error)
	SaveThumbnail(id string, frame gocv.Mat, box vision.BoundingBox, t time.Time) (string, error)
	SaveClip(id, srcPath string, t time.Time) (string, error)
	Remove(rel string) error
}

// Store persists detection records.
type Store interface {
	InsertDetection(ctx context.Context, d *datastore.Detection) error
	UpdateClipPath(ctx context.Context, eventID, clipPath string) error
}

// Schedule limits analysis to certain hours.
type Schedule interface {
	Active(t time.Time) bool
}

// ClipEncoder encodes clips off the loop goroutine.
type ClipEncoder interface {
	EncodeAsync(frames []vision.Frame, id string, done chan<- clip.Result)
	Wait()
}

// Deps are the collaborators of an Orchestrator. Motion, Schedule, Encoder,
// Notifier and Metrics may be nil.
type Deps struct {
	Source     FrameSource
	Motion     MotionGate
	Schedule   Schedule
	Detector   Detector
	Classifier Classifier
	Params     ParamSource
	Tracker    VisitTracker
	Media      MediaStore
	Store      Store
	Encoder    ClipEncoder
	Notifier   notification.Notifier
	Stats      *Stats
	Metrics    *metrics.PipelineMetrics
}

// Options configures an Orchestrator.
type Options struct {
	// Period is the tick interval, 1/detection fps.
	Period      time.Duration
	PreCapture  time.Duration
	PostCapture time.Duration
	// MaxClipDuration caps the clip window; 0 means uncapped.
	MaxClipDuration time.Duration

	// Clock and Sleep are replaced in tests.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Orchestrator owns the tracker and the motion gate; both are only touched
// from the goroutine running Run.
type Orchestrator struct {
	deps Deps
	opts Options

	clipDone chan clip.Result
	idle     bool // outside the schedule on the previous tick

	pendingMu sync.Mutex
	pending   map[string]time.Time // visit id -> first seen, for clips in flight
}

// New returns an Orchestrator. Deps.Stats defaults to a fresh counter.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.Period <= 0 {
		opts.Period = defaultPeriod
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if deps.Stats == nil {
		deps.Stats = NewStats(nil)
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		clipDone: make(chan clip.Result, clipResultBacklog),
		pending:  make(map[string]time.Time),
	}
}

// PeriodFromFPS converts a detection rate into a tick period.
func PeriodFromFPS(fps float64) time.Duration {
	if fps <= 0 {
		return defaultPeriod
	}
	return time.Duration(float64(time.Second) / fps)
}

// Stats returns the shared counters.
func (o *Orchestrator) Stats() *Stats {
	return o.deps.Stats
}

// ActiveVisits returns the number of visits being tracked.
func (o *Orchestrator) ActiveVisits() int {
	return o.deps.Tracker.ActiveCount()
}

// Run ticks until ctx is cancelled. A stop is observed at the top of each
// tick. On return every active visit with a classification has been
// finalized and every clip encode has been stored.
func (o *Orchestrator) Run(ctx context.Context) {
	log := GetLogger()
	log.Info("pipeline started", logger.Duration("period", o.opts.Period))

	var clipsDone sync.WaitGroup
	clipsDone.Go(func() {
		o.consumeClips(context.WithoutCancel(ctx))
	})

	for ctx.Err() == nil {
		start := o.opts.Clock()
		if err := o.runTick(ctx); err != nil {
			log.Error("pipeline tick failed", logger.Error(err))
		}
		elapsed := o.opts.Clock().Sub(start)
		o.deps.Metrics.ObserveTick(elapsed, o.opts.Period)

		// an overrun tick starts the next one immediately; missed ticks are not replayed
		if wait := o.opts.Period - elapsed; wait > 0 {
			if !o.opts.Sleep(ctx, wait) {
				break
			}
		}
	}

	o.shutdown(context.WithoutCancel(ctx))
	if o.deps.Encoder != nil {
		o.deps.Encoder.Wait()
	}
	close(o.clipDone)
	clipsDone.Wait()
	log.Info("pipeline stopped")
}

// Tick runs one pass over the latest frame. It does nothing when no frame
// has been captured yet; otherwise the tracker is updated exactly once.
func (o *Orchestrator) Tick(ctx context.Context) error {
	frame, ok := o.deps.Source.LatestFrame()
	if !ok || frame.Empty() {
		frame.Close()
		return nil
	}
	defer frame.Close()

	var detections []vision.Detection
	var classifications []*vision.Classification
	if o.scheduled(frame.Time) {
		params := o.deps.Params.Snapshot(ctx)
		detections, classifications = o.analyze(frame, params)
	}

	start := time.Now()
	completed, err := o.deps.Tracker.Update(detections, classifications, frame, frame.Time)
	o.deps.Metrics.ObserveStage(metrics.StageTrack, time.Since(start))
	if err != nil {
		o.deps.Metrics.IncStageError(metrics.StageTrack)
		return err
	}
	o.deps.Metrics.RecordVisits(len(completed), o.deps.Tracker.TakeDropped(), o.deps.Tracker.ActiveCount())

	for _, v := range completed {
		o.finalize(ctx, v)
	}
	return nil
}

// runTick calls Tick and turns a panic into an error so the loop keeps going.
func (o *Orchestrator) runTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.deps.Metrics.IncStageError(metrics.StageTick)
			err = errors.Newf("pipeline tick panicked: %v", r).
				Component("pipeline").
				Category(errors.CategoryProcessing).
				Context("panic_value", fmt.Sprintf("%v", r)).
				Build()
		}
	}()
	return o.Tick(ctx)
}

// scheduled reports whether frames at t are analyzed. Ticks outside the
// schedule still age the tracker so open visits complete.
func (o *Orchestrator) scheduled(t time.Time) bool {
	if o.deps.Schedule == nil {
		return true
	}
	active := o.deps.Schedule.Active(t)
	if active == o.idle {
		if active {
			GetLogger().Info("analysis resumed", logger.Time("at", t))
		} else {
			GetLogger().Info("analysis paused outside schedule", logger.Time("at", t))
		}
		o.idle = !active
	}
	return active
}

// analyze runs the gate, detector and classifier. It returns empty inputs
// when the frame is rejected or nothing was found.
func (o *Orchestrator) analyze(frame vision.Frame, params settings.Snapshot) ([]vision.Detection, []*vision.Classification) {
	if o.deps.Motion != nil {
		start := time.Now()
		moving := o.deps.Motion.HasMotion(frame.Mat)
		o.deps.Metrics.ObserveStage(metrics.StageMotion, time.Since(start))
		if !moving {
			o.deps.Metrics.IncMotionRejected()
			return nil, nil
		}
	}

	start := time.Now()
	detections, err := o.deps.Detector.DetectWith(frame.Mat, params.Detector)
	o.deps.Metrics.ObserveStage(metrics.StageDetect, time.Since(start))
	if err != nil {
		o.deps.Metrics.IncStageError(metrics.StageDetect)
		GetLogger().Warn("detection failed", logger.Error(err))
		return nil, nil
	}
	if len(detections) == 0 {
		return nil, nil
	}
	o.deps.Metrics.AddDetections(len(detections))

	start = time.Now()
	classifications := make([]*vision.Classification, len(detections))
	for i, det := range detections {
		classifications[i] = o.classify(frame, det, params.Classifier)
	}
	o.deps.Metrics.ObserveStage(metrics.StageClassify, time.Since(start))
	return detections, classifications
}

// classify returns nil when the crop fails or no species passes.
func (o *Orchestrator) classify(frame vision.Frame, det vision.Detection, p classifier.Params) *vision.Classification {
	crop, err := frame.Crop(det.BBox)
	if err != nil {
		o.deps.Metrics.IncClassification(metrics.ResultFailure)
		GetLogger().Debug("skipping detection crop", logger.String("box", det.BBox.String()), logger.Error(err))
		return nil
	}
	defer crop.Close()

	cls, err := o.deps.Classifier.ClassifyWith(crop, p)
	switch {
	case err != nil:
		o.deps.Metrics.IncClassification(metrics.ResultFailure)
		o.deps.Metrics.IncStageError(metrics.StageClassify)
		GetLogger().Warn("classification failed", logger.Error(err))
		return nil
	case cls == nil:
		o.deps.Metrics.IncClassification(metrics.ResultNone)
	default:
		o.deps.Metrics.IncClassification(metrics.ResultSuccess)
	}
	return cls
}

// finalize persists a completed visit, schedules its clip and notifies.
// It takes ownership of v.
func (o *Orchestrator) finalize(ctx context.Context, v *tracker.Visit) {
	defer v.Close()
	defer func() {
		if r := recover(); r != nil {
			o.deps.Metrics.IncStageError(metrics.StageFinalize)
			GetLogger().Error("visit finalization panicked",
				logger.String("visit_id", v.ID),
				logger.String("panic", fmt.Sprint(r)))
		}
	}()
	if v.BestClassification == nil {
		return
	}
	start := time.Now()
	defer func() { o.deps.Metrics.ObserveStage(metrics.StageFinalize, time.Since(start)) }()

	cls := *v.BestClassification
	log := GetLogger().With(logger.String("visit_id", v.ID))

	snapshotPath, err := o.deps.Media.SaveSnapshot(v.ID, v.BestSnapshot.Mat, v.FirstSeen)
	if err != nil {
		o.deps.Metrics.IncStageError(metrics.StageFinalize)
		log.Warn("failed to save snapshot", logger.Error(err))
	}
	thumbnailPath, err := o.deps.Media.SaveThumbnail(v.ID, v.BestSnapshot.Mat, v.BBox, v.FirstSeen)
	if err != nil {
		log.Warn("failed to save thumbnail", logger.Error(err))
	}

	record := &datastore.Detection{
		EventID:             v.ID,
		DetectionTime:       v.FirstSeen,
		DurationSeconds:     v.Duration().Seconds(),
		Score:               cls.Score,
		ScientificName:      cls.ScientificName,
		CommonName:          cls.CommonName,
		DetectionConfidence: v.BestDetectionConfidence,
		SnapshotPath:        datastore.StringPtr(snapshotPath),
		ThumbnailPath:       datastore.StringPtr(thumbnailPath),
		Source:              notification.SourceRealtime,
	}
	if err := o.deps.Store.InsertDetection(ctx, record); err != nil {
		o.deps.Metrics.IncStageError(metrics.StageFinalize)
		log.Error("failed to persist visit", logger.Error(err))
		return
	}

	today := o.deps.Stats.Record(cls, v.FirstSeen)
	o.deps.Metrics.SetDetectionsToday(today)
	log.Info("visit persisted",
		logger.String("species", cls.CommonName),
		logger.Float64("score", cls.Score),
		logger.Duration("duration", v.Duration()),
		logger.Int("today", today))

	o.extractClip(v)

	notification.Dispatch(ctx, o.deps.Notifier, notification.Event{
		EventID:             v.ID,
		Source:              notification.SourceRealtime,
		Time:                v.FirstSeen,
		Duration:            v.Duration(),
		Species:             cls,
		DetectionConfidence: v.BestDetectionConfidence,
		SnapshotPath:        snapshotPath,
		ThumbnailPath:       thumbnailPath,
		TodayCount:          today,
	})
}

// ClipWindow returns [firstSeen-pre, lastSeen+post], with the end pulled in
// so the window never exceeds maxDuration.
func ClipWindow(firstSeen, lastSeen time.Time, pre, post, maxDuration time.Duration) (start, end time.Time) {
	start = firstSeen.Add(-pre)
	end = lastSeen.Add(post)
	if maxDuration > 0 && end.Sub(start) > maxDuration {
		end = start.Add(maxDuration)
	}
	return start, end
}

func (o *Orchestrator) extractClip(v *tracker.Visit) {
	if o.deps.Encoder == nil {
		return
	}
	start, end := ClipWindow(v.FirstSeen, v.LastSeen, o.opts.PreCapture, o.opts.PostCapture, o.opts.MaxClipDuration)
	frames := o.deps.Source.Slice(start, end)
	if len(frames) == 0 {
		GetLogger().Debug("no buffered frames for clip", logger.String("visit_id", v.ID))
		return
	}

	o.pendingMu.Lock()
	o.pending[v.ID] = v.FirstSeen
	o.pendingMu.Unlock()

	o.deps.Encoder.EncodeAsync(frames, v.ID, o.clipDone)
}

// consumeClips stores finished encodes until the result channel is closed.
func (o *Orchestrator) consumeClips(ctx context.Context) {
	for res := range o.clipDone {
		o.storeClip(ctx, res)
	}
}

func (o *Orchestrator) storeClip(ctx context.Context, res clip.Result) {
	o.pendingMu.Lock()
	firstSeen, ok := o.pending[res.ID]
	delete(o.pending, res.ID)
	o.pendingMu.Unlock()

	if res.Err != nil {
		return
	}
	if !ok {
		firstSeen = time.Now()
	}

	log := GetLogger().With(logger.String("visit_id", res.ID))
	rel, err := o.deps.Media.SaveClip(res.ID, res.Path, firstSeen)
	if err != nil {
		_ = os.Remove(res.Path)
		log.Warn("failed to store clip", logger.Error(err))
		return
	}
	if err := o.deps.Store.UpdateClipPath(ctx, res.ID, rel); err != nil {
		if errors.IsNotFound(err) {
			log.Debug("clip finished for a visit that was never persisted")
		} else {
			log.Warn("failed to record clip path", logger.Error(err))
		}
		if rerr := o.deps.Media.Remove(rel); rerr != nil {
			log.Warn("failed to remove unreferenced clip", logger.String("path", rel), logger.Error(rerr))
		}
		return
	}
	log.Info("clip saved", logger.String("path", rel), logger.Int("frames", res.Frames))
}

// shutdown finalizes the visits still active when the loop stops.
func (o *Orchestrator) shutdown(ctx context.Context) {
	visits := o.deps.Tracker.Flush()
	if len(visits) > 0 {
		GetLogger().Info("finalizing active visits", logger.Int("count", len(visits)))
	}
	for _, v := range visits {
		o.finalize(ctx, v)
	}
	o.deps.Metrics.RecordVisits(len(visits), o.deps.Tracker.TakeDropped(), 0)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
