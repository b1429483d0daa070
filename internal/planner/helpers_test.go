package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/testutil/testlog"
)

var (
	origin      = grid.Point{}
	nearTarget  = grid.Point{X: 1, Y: 1, Z: 0.5}
	otherTarget = grid.Point{X: -1.5, Y: 2, Z: 1.2}
)

// newGrid builds a 10x10x2 m grid at 0.2 m resolution with the given
// obstacle voxels.
func newGrid(t *testing.T, blocked ...grid.Index) *grid.OccupancyGrid {
	t.Helper()
	testlog.Start(t)

	param, err := grid.NewMapParam(0.2, 0, r3.Vec{X: 10, Y: 10, Z: 2})
	require.NoError(t, err)
	g := grid.New(param)

	points := make([]grid.Point, 0, len(blocked))
	for _, idx := range blocked {
		points = append(points, g.IndexToWorld(idx))
	}
	require.True(t, g.Build(points))
	return g
}

// wall returns the voxels of the plane x = xIdx for y in [yFrom, yTo],
// covering the full height.
func wall(xIdx, yFrom, yTo int) []grid.Index {
	var cells []grid.Index
	for y := yFrom; y <= yTo; y++ {
		for z := 0; z < 10; z++ {
			cells = append(cells, grid.Index{X: xIdx, Y: y, Z: z})
		}
	}
	return cells
}

// requireValidGridPath checks that consecutive waypoints are 26-connected
// voxel steps through free voxels.
func requireValidGridPath(t *testing.T, g *grid.OccupancyGrid, path []grid.Point) {
	t.Helper()
	require.NotEmpty(t, path)
	for i, p := range path {
		idx := g.WorldToIndex(p)
		require.True(t, g.IsFree(idx), "waypoint %d %v is not free", i, idx)
		if i > 0 {
			step := idx.Sub(g.WorldToIndex(path[i-1]))
			require.True(t, step.IsStep(), "waypoint %d step %v", i, step)
		}
	}
}

func runUntilDone(p Planner, calls int) {
	for i := 0; i < calls; i++ {
		p.FindPath()
		if s := p.Status(); s == StatusFound || s == StatusFailed {
			return
		}
	}
}
