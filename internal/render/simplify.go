package render

import (
	"gonum.org/v1/gonum/spatial/r3"

	"voxel-planner/internal/grid"
)

// Simplify reduces a 3D polyline with the Douglas-Peucker algorithm. The
// first and last points are always kept. A non-positive epsilon returns a
// copy of path.
func Simplify(path []grid.Point, epsilon float64) []grid.Point {
	if epsilon <= 0 || len(path) <= 2 {
		out := make([]grid.Point, len(path))
		copy(out, path)
		return out
	}
	return douglasPeucker(path, epsilon)
}

func douglasPeucker(points []grid.Point, epsilon float64) []grid.Point {
	if len(points) <= 2 {
		return append([]grid.Point(nil), points...)
	}

	// Find the point with maximum distance from the chord
	dmax := 0.0
	index := 0
	end := len(points) - 1
	for i := 1; i < end; i++ {
		d := segmentDistance(points[i], points[0], points[end])
		if d > dmax {
			index = i
			dmax = d
		}
	}

	if dmax > epsilon {
		left := douglasPeucker(points[:index+1], epsilon)
		right := douglasPeucker(points[index:], epsilon)

		// Combine results, dropping the shared point at index
		result := make([]grid.Point, 0, len(left)+len(right)-1)
		result = append(result, left[:len(left)-1]...)
		return append(result, right...)
	}

	return []grid.Point{points[0], points[end]}
}

// segmentDistance returns the distance from p to the segment [a, b].
func segmentDistance(p, a, b grid.Point) float64 {
	ab := r3.Sub(b, a)
	ap := r3.Sub(p, a)
	den := r3.Dot(ab, ab)
	if den == 0 {
		return r3.Norm(ap)
	}
	t := r3.Dot(ap, ab) / den
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	return r3.Norm(r3.Sub(ap, r3.Scale(t, ab)))
}
