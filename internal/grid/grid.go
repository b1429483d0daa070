// Package grid holds the dense voxel occupancy map shared by every planner.
//
// An OccupancyGrid is created empty, built once from an obstacle point set
// and read-only afterwards. Later Build calls are ignored so the first map
// delivered to a session is the one every planner sees.
package grid

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/spatial/r3"
)

// State is the occupancy of a voxel.
type State uint8

const (
	Free State = iota
	Blocked
	OutOfBounds
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Blocked:
		return "blocked"
	default:
		return "out-of-bounds"
	}
}

// OccupancyGrid is a dense 3D voxel map with obstacle inflation.
type OccupancyGrid struct {
	param   MapParam
	cells   []bool
	built   bool
	gen     uint64
	blocked int
}

// New creates an empty grid for the given volume. Every voxel is free until
// Build is called.
func New(param MapParam) *OccupancyGrid {
	return &OccupancyGrid{
		param: param,
		cells: make([]bool, param.VoxelCount()),
	}
}

// Param returns the volume description.
func (g *OccupancyGrid) Param() MapParam { return g.param }

// Built reports whether a map has been ingested.
func (g *OccupancyGrid) Built() bool { return g.built }

// Generation identifies the ingested map; zero means no map yet.
func (g *OccupancyGrid) Generation() uint64 { return g.gen }

// BlockedCount is the number of blocked voxels after inflation.
func (g *OccupancyGrid) BlockedCount() int { return g.blocked }

// Build marks every voxel within the inflation margin of an obstacle point
// as blocked. Points outside the volume are ignored. Only the first call has
// an effect; it returns false when the grid was already built.
func (g *OccupancyGrid) Build(points []Point) bool {
	if g.built {
		log.Debug().Int("points", len(points)).Msg("map already ingested, ignoring")
		return false
	}

	r := g.param.MarginVoxels()
	ignored := 0
	for _, p := range points {
		c := g.WorldToIndex(p)
		if !g.Contains(c) {
			ignored++
			continue
		}
		for dz := -r; dz <= r; dz++ {
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					g.block(Index{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz})
				}
			}
		}
	}

	g.built = true
	g.gen++
	log.Info().
		Int("points", len(points)).
		Int("ignored", ignored).
		Int("blocked", g.blocked).
		Int("margin_voxels", r).
		Msg("occupancy grid built")
	return true
}

func (g *OccupancyGrid) block(idx Index) {
	if !g.Contains(idx) {
		return
	}
	off := g.Offset(idx)
	if !g.cells[off] {
		g.cells[off] = true
		g.blocked++
	}
}

// Contains reports whether idx lies inside the volume.
func (g *OccupancyGrid) Contains(idx Index) bool {
	return idx.X >= 0 && idx.X < g.param.MaxX &&
		idx.Y >= 0 && idx.Y < g.param.MaxY &&
		idx.Z >= 0 && idx.Z < g.param.MaxZ
}

// Query returns the state of a voxel.
func (g *OccupancyGrid) Query(idx Index) State {
	if !g.Contains(idx) {
		return OutOfBounds
	}
	if g.cells[g.Offset(idx)] {
		return Blocked
	}
	return Free
}

// IsFree reports whether idx is inside the volume and not blocked.
func (g *OccupancyGrid) IsFree(idx Index) bool {
	return g.Contains(idx) && !g.cells[g.Offset(idx)]
}

// PointFree reports whether the voxel holding p is traversable.
func (g *OccupancyGrid) PointFree(p Point) bool {
	return g.IsFree(g.WorldToIndex(p))
}

// WorldToIndex maps a world position to the voxel containing it.
func (g *OccupancyGrid) WorldToIndex(p Point) Index {
	return Index{
		X: int(math.Floor((p.X - g.param.Lower.X) * g.param.InvResolution)),
		Y: int(math.Floor((p.Y - g.param.Lower.Y) * g.param.InvResolution)),
		Z: int(math.Floor((p.Z - g.param.Lower.Z) * g.param.InvResolution)),
	}
}

// IndexToWorld returns the centre of a voxel.
func (g *OccupancyGrid) IndexToWorld(idx Index) Point {
	res := g.param.Resolution
	return Point{
		X: (float64(idx.X)+0.5)*res + g.param.Lower.X,
		Y: (float64(idx.Y)+0.5)*res + g.param.Lower.Y,
		Z: (float64(idx.Z)+0.5)*res + g.param.Lower.Z,
	}
}

// Offset flattens an in-bounds index.
func (g *OccupancyGrid) Offset(idx Index) int {
	return (idx.Z*g.param.MaxY+idx.Y)*g.param.MaxX + idx.X
}

// SegmentFree checks if the straight line between two points crosses only
// free voxels. Every voxel the segment touches is checked, including the ones
// it only clips at an edge or corner.
func (g *OccupancyGrid) SegmentFree(a, b Point) bool {
	return TraverseSegment(g.voxelSpace(a), g.voxelSpace(b), g.IsFree)
}

// voxelSpace expresses p in voxel units relative to the lower corner.
func (g *OccupancyGrid) voxelSpace(p Point) Point {
	return r3.Scale(g.param.InvResolution, r3.Sub(p, g.param.Lower))
}
