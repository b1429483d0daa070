package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a position in world coordinates.
type Point = r3.Vec

// Index addresses a voxel by its integer coordinates.
type Index struct {
	X, Y, Z int
}

// Add returns the index offset by d.
func (i Index) Add(d Index) Index {
	return Index{X: i.X + d.X, Y: i.Y + d.Y, Z: i.Z + d.Z}
}

// Sub returns the offset from o to i.
func (i Index) Sub(o Index) Index {
	return Index{X: i.X - o.X, Y: i.Y - o.Y, Z: i.Z - o.Z}
}

// Norm1 counts the non-zero components of a unit offset (1 straight, 2 planar
// diagonal, 3 cube diagonal).
func (i Index) Norm1() int {
	return abs(i.X) + abs(i.Y) + abs(i.Z)
}

// Length is the Euclidean length of the offset in voxel units.
func (i Index) Length() float64 {
	return math.Sqrt(float64(i.X*i.X + i.Y*i.Y + i.Z*i.Z))
}

// IsStep reports whether i is one of the 26 neighbour offsets.
func (i Index) IsStep() bool {
	return i != (Index{}) && abs(i.X) <= 1 && abs(i.Y) <= 1 && abs(i.Z) <= 1
}

// Neighbors26 lists the unit offsets of the 26-connected neighbourhood in a
// fixed order: z, then y, then x, each from -1 to +1.
var Neighbors26 = func() []Index {
	out := make([]Index, 0, 26)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, Index{X: dx, Y: dy, Z: dz})
			}
		}
	}
	return out
}()

// Distance calculates Euclidean distance between two points
func Distance(a, b Point) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// PathLength sums the segment lengths of a polyline.
func PathLength(path []Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}

// LineIterator walks the voxels crossed by a 3D Bresenham line between two
// indices, start and end inclusive.
type LineIterator struct {
	cur, target Index
	delta, step Index
	errA, errB  int
	dominant    int // 0=X, 1=Y, 2=Z
	started     bool
}

// NewLineIterator creates a 3D Bresenham line iterator.
func NewLineIterator(from, to Index) *LineIterator {
	it := &LineIterator{cur: from, target: to}
	it.delta = Index{X: abs(to.X - from.X), Y: abs(to.Y - from.Y), Z: abs(to.Z - from.Z)}
	it.step = Index{X: sign(to.X - from.X), Y: sign(to.Y - from.Y), Z: sign(to.Z - from.Z)}

	d := it.delta
	switch {
	case d.X >= d.Y && d.X >= d.Z:
		it.dominant = 0
		it.errA, it.errB = d.X/2, d.X/2
	case d.Y >= d.X && d.Y >= d.Z:
		it.dominant = 1
		it.errA, it.errB = d.Y/2, d.Y/2
	default:
		it.dominant = 2
		it.errA, it.errB = d.Z/2, d.Z/2
	}
	return it
}

// Next advances the iterator. The first call yields the start voxel; it
// returns false once the end voxel has been yielded.
func (it *LineIterator) Next() bool {
	if !it.started {
		it.started = true
		return true
	}
	if it.cur == it.target {
		return false
	}

	d := it.delta
	switch it.dominant {
	case 0:
		it.cur.X += it.step.X
		it.errA += d.Y
		if it.errA >= d.X {
			it.cur.Y += it.step.Y
			it.errA -= d.X
		}
		it.errB += d.Z
		if it.errB >= d.X {
			it.cur.Z += it.step.Z
			it.errB -= d.X
		}
	case 1:
		it.cur.Y += it.step.Y
		it.errA += d.X
		if it.errA >= d.Y {
			it.cur.X += it.step.X
			it.errA -= d.Y
		}
		it.errB += d.Z
		if it.errB >= d.Y {
			it.cur.Z += it.step.Z
			it.errB -= d.Y
		}
	default:
		it.cur.Z += it.step.Z
		it.errA += d.X
		if it.errA >= d.Z {
			it.cur.X += it.step.X
			it.errA -= d.Z
		}
		it.errB += d.Y
		if it.errB >= d.Z {
			it.cur.Y += it.step.Y
			it.errB -= d.Z
		}
	}
	return true
}

// Index returns the current voxel.
func (it *LineIterator) Index() Index { return it.cur }

// TraverseSegment visits, in order, every voxel entered by the straight
// segment between from and to, given in voxel units where voxel i spans
// [i, i+1) on each axis. Where the segment passes exactly through an edge or
// a corner, every voxel sharing it is visited. Traversal stops as soon as
// visit returns false, and the result reports whether it ran to the end.
func TraverseSegment(from, to Point, visit func(Index) bool) bool {
	start := [3]float64{from.X, from.Y, from.Z}
	dir := [3]float64{to.X - from.X, to.Y - from.Y, to.Z - from.Z}

	var cur, step [3]int
	var tMax, tDelta [3]float64
	for a := 0; a < 3; a++ {
		cell := math.Floor(start[a])
		cur[a] = int(cell)
		switch {
		case dir[a] > 0:
			step[a] = 1
			tMax[a] = (cell + 1 - start[a]) / dir[a]
			tDelta[a] = 1 / dir[a]
		case dir[a] < 0:
			step[a] = -1
			tMax[a] = (start[a] - cell) / -dir[a]
			tDelta[a] = -1 / dir[a]
		default:
			tMax[a] = math.Inf(1)
			tDelta[a] = math.Inf(1)
		}
	}

	toIndex := func(c [3]int) Index { return Index{X: c[0], Y: c[1], Z: c[2]} }
	if !visit(toIndex(cur)) {
		return false
	}
	for {
		t := min(tMax[0], tMax[1], tMax[2])
		if t > 1 {
			return true
		}
		var axes []int
		for a := 0; a < 3; a++ {
			if tMax[a] <= t+traverseEpsilon {
				axes = append(axes, a)
			}
		}
		// Every combination of the crossed faces, the full step last.
		for mask := 1; mask < 1<<len(axes); mask++ {
			next := cur
			for bit, a := range axes {
				if mask&(1<<bit) != 0 {
					next[a] += step[a]
				}
			}
			if !visit(toIndex(next)) {
				return false
			}
		}
		for _, a := range axes {
			cur[a] += step[a]
			tMax[a] += tDelta[a]
		}
	}
}

const traverseEpsilon = 1e-9

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
