package pipeline

import (
	"sync"
	"time"

	"github.com/ando01/BirdView/internal/vision"
)

// LastDetection summarizes the most recent persisted visit.
type LastDetection struct {
	CommonName     string    `json:"species"`
	ScientificName string    `json:"scientific_name"`
	Score          float64   `json:"score"`
	Time           time.Time `json:"time"`
}

// Stats holds the "today" counter and the last detection. It is written by the
// pipelines and read by the status surface.
type Stats struct {
	mu    sync.Mutex
	now   func() time.Time
	day   string
	today int
	last  *LastDetection
}

// NewStats returns empty counters. now defaults to time.Now; its location
// decides where the day boundary falls.
func NewStats(now func() time.Time) *Stats {
	if now == nil {
		now = time.Now
	}
	return &Stats{now: now, day: dayKey(now())}
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// rollover resets the counter when the date changed. Callers hold mu.
func (s *Stats) rollover() {
	if d := dayKey(s.now()); d != s.day {
		s.day = d
		s.today = 0
	}
}

// Seed sets today's count, typically from the datastore at startup.
func (s *Stats) Seed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	s.today = n
}

// Record counts one visit and returns today's count including it.
func (s *Stats) Record(c vision.Classification, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	s.today++
	s.last = &LastDetection{
		CommonName:     c.CommonName,
		ScientificName: c.ScientificName,
		Score:          c.Score,
		Time:           at,
	}
	return s.today
}

// Today returns the number of visits recorded since midnight.
func (s *Stats) Today() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	return s.today
}

// Last returns the most recent detection, if any.
func (s *Stats) Last() (LastDetection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return LastDetection{}, false
	}
	return *s.last, true
}
