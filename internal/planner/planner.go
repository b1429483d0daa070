// Package planner implements the path planning strategies that run against an
// occupancy grid: an A*/jump-point grid search, a wavefront potential planner
// and an RRT* sampling tree.
//
// Every strategy follows the same lifecycle. SetMap is called once with the
// built grid, SetTarget whenever a new goal arrives, and FindPath on every
// control tick. FindPath only does work when something changed since the last
// completed search, so calling it repeatedly is cheap.
package planner

import (
	"fmt"

	"voxel-planner/internal/grid"
)

// Status describes the outcome of the last FindPath call.
type Status int

const (
	// StatusIdle means no result has been computed yet.
	StatusIdle Status = iota
	// StatusSearching means work has started but no path exists yet.
	StatusSearching
	StatusFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSearching:
		return "searching"
	case StatusFound:
		return "found"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Planner is the capability set shared by every strategy.
type Planner interface {
	Name() string
	SetMap(g *grid.OccupancyGrid)
	SetTarget(target grid.Point)
	FindPath()
	// Path returns a copy of the current best path, empty if there is none.
	Path() []grid.Point
	Status() Status
}

// Stats reports search effort for comparing strategies.
type Stats struct {
	Expanded   int     `json:"expanded"`
	Iterations int     `json:"iterations,omitempty"`
	Vertices   int     `json:"vertices,omitempty"`
	Cost       float64 `json:"cost"`
}

// StatsReporter is implemented by planners that track Stats.
type StatsReporter interface {
	Stats() Stats
}

// lifecycle holds the state every planner shares: the map, the goal and the
// cached result of the last completed search.
type lifecycle struct {
	start     grid.Point
	grid      *grid.OccupancyGrid
	target    grid.Point
	hasTarget bool

	path   []grid.Point
	status Status

	done       bool
	doneTarget grid.Point
	doneGen    uint64
}

func (l *lifecycle) SetMap(g *grid.OccupancyGrid) {
	l.grid = g
	l.invalidate()
}

func (l *lifecycle) SetTarget(target grid.Point) {
	l.target = target
	l.hasTarget = true
	l.invalidate()
}

func (l *lifecycle) Status() Status { return l.status }

func (l *lifecycle) Path() []grid.Point {
	if len(l.path) == 0 {
		return nil
	}
	out := make([]grid.Point, len(l.path))
	copy(out, l.path)
	return out
}

func (l *lifecycle) invalidate() {
	l.path = nil
	l.status = StatusIdle
	l.done = false
}

// ready reports whether both a built map and a target are available.
func (l *lifecycle) ready() bool {
	return l.grid != nil && l.grid.Built() && l.hasTarget
}

// upToDate reports whether the cached result matches the current target and
// map generation.
func (l *lifecycle) upToDate() bool {
	return l.done && l.doneTarget == l.target && l.doneGen == l.grid.Generation()
}

func (l *lifecycle) finish(path []grid.Point, status Status) {
	l.path = path
	l.status = status
	l.done = true
	l.doneTarget = l.target
	l.doneGen = l.grid.Generation()
}

// endpoints resolves the start and goal voxels; ok is false when either is
// outside the volume or blocked.
func (l *lifecycle) endpoints() (start, goal grid.Index, ok bool) {
	start = l.grid.WorldToIndex(l.start)
	goal = l.grid.WorldToIndex(l.target)
	return start, goal, l.grid.IsFree(start) && l.grid.IsFree(goal)
}

func (l *lifecycle) toWorld(cells []grid.Index) []grid.Point {
	out := make([]grid.Point, len(cells))
	for i, c := range cells {
		out[i] = l.grid.IndexToWorld(c)
	}
	return out
}
