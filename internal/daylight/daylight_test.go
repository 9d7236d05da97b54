package daylight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadCoordinates(t *testing.T) {
	t.Parallel()

	_, err := New(91, 0, time.UTC)
	require.Error(t, err)
	_, err = New(0, -181, time.UTC)
	require.Error(t, err)
}

func TestScheduleActive(t *testing.T) {
	t.Parallel()

	// Greenwich in early May: civil dawn near 04:00 UTC, civil dusk near 20:00 UTC.
	s, err := New(51.4769, 0.0, time.UTC)
	require.NoError(t, err)

	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	w, err := s.WindowFor(day)
	require.NoError(t, err)
	assert.True(t, w.Dawn.Before(w.Dusk))
	assert.Equal(t, 1, w.Dawn.Day())

	assert.False(t, s.Active(day.Add(2*time.Hour)), "02:00 is night")
	assert.True(t, s.Active(day.Add(12*time.Hour)), "noon is day")
	assert.False(t, s.Active(day.Add(23*time.Hour+30*time.Minute)), "23:30 is night")
}

func TestScheduleFailsOpen(t *testing.T) {
	t.Parallel()

	s, err := New(78.22, 15.65, time.UTC)
	require.NoError(t, err)

	midnight := time.Date(2026, 6, 21, 0, 30, 0, 0, time.UTC)
	s.cache[midnight.Format(time.DateOnly)] = dayEntry{err: assert.AnError}

	assert.True(t, s.Active(midnight))
}

func TestWindowContains(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	w := Window{Dawn: base.Add(5 * time.Hour), Dusk: base.Add(21 * time.Hour)}

	assert.True(t, w.Contains(w.Dawn))
	assert.False(t, w.Contains(w.Dusk))
	assert.False(t, w.Contains(base.Add(4*time.Hour)))
}
