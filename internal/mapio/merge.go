package mapio

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog/log"
)

// MergeFootprints drops polygon footprints that are fully contained within
// another polygon footprint of at least the same vertical extent. Line and
// point footprints are kept as they are.
func MergeFootprints(footprints []Footprint) []Footprint {
	if len(footprints) <= 1 {
		return footprints
	}

	contained := make([]bool, len(footprints))
	for i := range footprints {
		if contained[i] || len(footprints[i].Polygon) == 0 {
			continue
		}
		for j := range footprints {
			if i == j || contained[j] || len(footprints[j].Polygon) == 0 {
				continue
			}
			// Check if footprint i is contained in footprint j
			if footprintContainedIn(footprints[i], footprints[j]) {
				contained[i] = true
				break
			}
			if footprintContainedIn(footprints[j], footprints[i]) {
				contained[j] = true
			}
		}
	}

	result := make([]Footprint, 0, len(footprints))
	for i, fp := range footprints {
		if !contained[i] {
			result = append(result, fp)
		}
	}
	if removed := len(footprints) - len(result); removed > 0 {
		log.Debug().Int("removed", removed).Int("kept", len(result)).Msg("contained footprints merged")
	}
	return result
}

// footprintContainedIn checks if footprint a lies fully inside b
func footprintContainedIn(a, b Footprint) bool {
	if len(a.Polygon) == 0 || len(b.Polygon) == 0 || len(a.Polygon[0]) == 0 {
		return false
	}
	if !spanContains(b, a) {
		return false
	}

	// Quick bounding box check first
	if !boundContains(b.Polygon.Bound(), a.Polygon.Bound()) {
		return false
	}

	for _, v := range a.Polygon[0] {
		if !planar.PolygonContains(b.Polygon, v) {
			return false
		}
	}
	return true
}

func boundContains(outer, inner orb.Bound) bool {
	return outer.Contains(inner.Min) && outer.Contains(inner.Max)
}

// spanContains reports whether the vertical extent of outer covers inner.
// NaN bounds stand for the volume limits.
func spanContains(outer, inner Footprint) bool {
	lower := func(v float64) float64 {
		if math.IsNaN(v) {
			return math.Inf(-1)
		}
		return v
	}
	upper := func(v float64) float64 {
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}
	return lower(outer.Floor) <= lower(inner.Floor) && upper(outer.Ceiling) >= upper(inner.Ceiling)
}
