// Package settings turns the runtime overrides stored in the datastore into
// immutable per-tick snapshots of detector and classifier parameters.
package settings

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ando01/BirdView/internal/classifier"
	"github.com/ando01/BirdView/internal/detector"
	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

// Override keys.
const (
	KeyDetectionConfidence     = "detection.confidence"
	KeyClassificationThreshold = "classification.threshold"
	KeyDetectionZone           = "detection.zone"
)

const (
	DefaultTTL  = 5 * time.Second
	snapshotKey = "snapshot"
	loadTimeout = 2 * time.Second
)

// Store reads the stored overrides.
type Store interface {
	GetAllSettings(ctx context.Context) (map[string]string, error)
}

// Writer persists one override.
type Writer interface {
	SetSetting(ctx context.Context, key, value string) error
}

// Snapshot is one consistent view of the tunable parameters.
type Snapshot struct {
	Detector   detector.Params
	Classifier classifier.Params
}

// Provider caches snapshots for a short TTL so a tick never waits on the
// database more than once per interval. Writes become visible when the
// cached snapshot expires.
type Provider struct {
	store    Store
	defaults Snapshot
	cache    *cache.Cache
}

// NewProvider returns a Provider. store may be nil, in which case Snapshot
// always returns defaults.
func NewProvider(store Store, defaults Snapshot, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		store:    store,
		defaults: defaults,
		cache:    cache.New(ttl, 2*ttl),
	}
}

// Defaults returns the configured parameters without overrides.
func (p *Provider) Defaults() Snapshot {
	return p.defaults
}

// Snapshot returns the current parameters. A failed read falls back to the
// configured defaults and is retried after the TTL.
func (p *Provider) Snapshot(ctx context.Context) Snapshot {
	if v, ok := p.cache.Get(snapshotKey); ok {
		return v.(Snapshot)
	}
	if p.store == nil {
		return p.defaults
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	snap := p.defaults
	raw, err := p.store.GetAllSettings(ctx)
	if err != nil {
		GetLogger().Warn("failed to read setting overrides, using defaults", logger.Error(err))
	} else {
		var problems []error
		snap, problems = Decode(raw, p.defaults)
		for _, perr := range problems {
			GetLogger().Warn("ignoring invalid setting override", logger.Error(perr))
		}
	}

	p.cache.SetDefault(snapshotKey, snap)
	return snap
}

// Invalidate drops the cached snapshot so the next call re-reads the store.
func (p *Provider) Invalidate() {
	p.cache.Delete(snapshotKey)
}

// Decode applies raw overrides on top of defaults. Invalid entries are
// skipped and reported.
func Decode(raw map[string]string, defaults Snapshot) (Snapshot, []error) {
	snap := defaults
	var problems []error

	if v, ok := raw[KeyDetectionConfidence]; ok {
		if f, err := decodeUnit(KeyDetectionConfidence, v); err != nil {
			problems = append(problems, err)
		} else {
			snap.Detector.Confidence = f
		}
	}
	if v, ok := raw[KeyClassificationThreshold]; ok {
		if f, err := decodeUnit(KeyClassificationThreshold, v); err != nil {
			problems = append(problems, err)
		} else {
			snap.Classifier.Threshold = f
		}
	}
	if v, ok := raw[KeyDetectionZone]; ok {
		if z, err := decodeZone(v); err != nil {
			problems = append(problems, err)
		} else {
			snap.Detector.Zone = z
		}
	}
	return snap, problems
}

// Validate checks that value is acceptable for key.
func Validate(key, value string) error {
	switch key {
	case KeyDetectionConfidence, KeyClassificationThreshold:
		_, err := decodeUnit(key, value)
		return err
	case KeyDetectionZone:
		_, err := decodeZone(value)
		return err
	default:
		return errors.Newf("unknown setting %q", key).
			Component("settings").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Set validates and stores a raw JSON value.
func Set(ctx context.Context, w Writer, key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	return w.SetSetting(ctx, key, value)
}

// decodeUnit accepts a JSON number or a quoted number in [0,1].
func decodeUnit(key, value string) (float64, error) {
	var f float64
	if err := json.Unmarshal([]byte(value), &f); err != nil {
		var s string
		if jerr := json.Unmarshal([]byte(value), &s); jerr != nil {
			s = value
		}
		f, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, invalid(key, value, err)
		}
	}
	if f < 0 || f > 1 {
		return 0, invalid(key, value, nil)
	}
	return f, nil
}

func decodeZone(value string) (detector.Zone, error) {
	var pairs [][]float64
	if err := json.Unmarshal([]byte(value), &pairs); err != nil {
		return nil, invalid(KeyDetectionZone, value, err)
	}
	return detector.ZoneFromPairs(pairs), nil
}

func invalid(key, value string, cause error) error {
	var b *errors.ErrorBuilder
	if cause != nil {
		b = errors.New(cause)
	} else {
		b = errors.Newf("value out of range")
	}
	return b.Component("settings").
		Category(errors.CategoryValidation).
		Context("key", key).
		Context("value", value).
		Build()
}
