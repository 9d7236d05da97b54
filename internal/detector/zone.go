package detector

// Point is a normalized image coordinate in [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zone is a polygon in normalized coordinates. A zone with fewer than three
// points places no restriction.
type Zone []Point

// ZoneFromPairs converts [[x,y],...] as found in configuration. Pairs that do
// not have exactly two values are skipped.
func ZoneFromPairs(pairs [][]float64) Zone {
	z := make(Zone, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			continue
		}
		z = append(z, Point{X: p[0], Y: p[1]})
	}
	return z
}

// Active reports whether the zone restricts anything.
func (z Zone) Active() bool {
	return len(z) >= 3
}

// Contains reports whether (x, y) lies inside the polygon using ray casting.
func (z Zone) Contains(x, y float64) bool {
	if !z.Active() {
		return true
	}

	inside := false
	j := len(z) - 1
	for i := range z {
		xi, yi := z[i].X, z[i].Y
		xj, yj := z[j].X, z[j].Y
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
