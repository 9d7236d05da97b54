// Package daylight decides whether the camera pipeline should analyze frames
// at a given time, based on civil twilight at the feeder's location.
package daylight

import (
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

// Window is the analysis window for one day.
type Window struct {
	Dawn time.Time // civil dawn
	Dusk time.Time // civil dusk
}

// Contains reports whether t falls between dawn and dusk.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Dawn) && t.Before(w.Dusk)
}

// Schedule caches the window per calendar day.
type Schedule struct {
	observer astral.Observer
	loc      *time.Location

	mu    sync.Mutex
	cache map[string]dayEntry
}

type dayEntry struct {
	window Window
	err    error
}

// New returns a Schedule for the given coordinates. Calendar days are taken
// in loc, time.Local when nil.
func New(latitude, longitude float64, loc *time.Location) (*Schedule, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return nil, errors.Newf("invalid coordinates %.4f,%.4f", latitude, longitude).
			Component("daylight").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Schedule{
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		loc:      loc,
		cache:    make(map[string]dayEntry),
	}, nil
}

// WindowFor returns the window of the day containing t. It fails where the
// sun does not cross the civil twilight depression that day.
func (s *Schedule) WindowFor(t time.Time) (Window, error) {
	day := t.In(s.loc)
	key := day.Format(time.DateOnly)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.cache[key]; ok {
		return e.window, e.err
	}

	var e dayEntry
	dawn, err := astral.Dawn(s.observer, day, astral.DepressionCivil)
	if err == nil {
		var dusk time.Time
		dusk, err = astral.Dusk(s.observer, day, astral.DepressionCivil)
		e.window = Window{Dawn: dawn.In(s.loc), Dusk: dusk.In(s.loc)}
	}
	if err == nil && (e.window.Dawn.IsZero() || !e.window.Dawn.Before(e.window.Dusk)) {
		err = errors.NewStd("sun does not cross civil twilight")
	}
	if err != nil {
		e.err = errors.New(err).
			Component("daylight").
			Category(errors.CategoryConfiguration).
			Context("date", key).
			Build()
	}

	// only today and tomorrow are ever asked for
	if len(s.cache) > 4 {
		clear(s.cache)
	}
	s.cache[key] = e
	return e.window, e.err
}

// Active reports whether frames captured at t should be analyzed. Days
// without a computable window are treated as active.
func (s *Schedule) Active(t time.Time) bool {
	w, err := s.WindowFor(t)
	if err != nil {
		GetLogger().Debug("no twilight window, analyzing all day", logger.Error(err))
		return true
	}
	return w.Contains(t)
}
