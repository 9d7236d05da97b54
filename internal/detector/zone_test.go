package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoneContains(t *testing.T) {
	t.Parallel()

	square := Zone{{0.25, 0.25}, {0.75, 0.25}, {0.75, 0.75}, {0.25, 0.75}}
	triangle := ZoneFromPairs([][]float64{{0, 0}, {1, 0}, {0, 1}})

	tests := []struct {
		name string
		zone Zone
		x, y float64
		want bool
	}{
		{"center of square", square, 0.5, 0.5, true},
		{"left of square", square, 0.1, 0.5, false},
		{"below square", square, 0.5, 0.9, false},
		{"inside triangle", triangle, 0.2, 0.2, true},
		{"across hypotenuse", triangle, 0.8, 0.8, false},
		{"nil zone", nil, 0.99, 0.99, true},
		{"two-point zone", Zone{{0, 0}, {0.1, 0.1}}, 0.9, 0.9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.zone.Contains(tt.x, tt.y))
		})
	}
}

func TestDegenerateZoneAcceptsEveryPoint(t *testing.T) {
	t.Parallel()

	zone := ZoneFromPairs([][]float64{{0.4, 0.4}, {0.6, 0.6}})
	assert.False(t, zone.Active())
	for x := 0.0; x <= 1.0; x += 0.1 {
		for y := 0.0; y <= 1.0; y += 0.1 {
			assert.True(t, zone.Contains(x, y))
		}
	}
}

func TestZoneFromPairsSkipsMalformed(t *testing.T) {
	t.Parallel()

	z := ZoneFromPairs([][]float64{{0.1, 0.2}, {0.3}, {0.4, 0.5, 0.6}, {0.7, 0.8}})
	assert.Equal(t, Zone{{0.1, 0.2}, {0.7, 0.8}}, z)
}
