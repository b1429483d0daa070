package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/planner"
	"voxel-planner/internal/session"
)

func testSnapshot(t *testing.T) session.Snapshot {
	t.Helper()
	param, err := grid.NewMapParam(0.2, 0, r3.Vec{X: 10, Y: 10, Z: 2})
	require.NoError(t, err)
	return session.Snapshot{
		Tick:      7,
		Param:     param,
		MapReady:  true,
		Target:    grid.Point{X: 1, Y: 1, Z: 0.5},
		HasTarget: true,
		Results: []session.Result{
			{
				Planner: "jps",
				Status:  planner.StatusFound,
				Path:    []grid.Point{{X: 0.1, Y: 0.1, Z: 0.1}, {X: 0.3, Y: 0.3, Z: 0.3}, {X: 0.5, Y: 0.5, Z: 0.5}},
				Cost:    0.69,
			},
			{Planner: "wavefront", Status: planner.StatusFailed},
		},
		Tree: [][2]grid.Point{
			{{}, {X: 0.5}},
			{{X: 0.5}, {X: 0.5, Y: 0.5}},
		},
	}
}

func TestSimplify(t *testing.T) {
	line := []grid.Point{{}, {X: 1, Y: 1, Z: 1}, {X: 2, Y: 2, Z: 2}, {X: 3, Y: 3, Z: 3}}
	assert.Equal(t, []grid.Point{{}, {X: 3, Y: 3, Z: 3}}, Simplify(line, 0.01))

	bent := []grid.Point{{}, {X: 1}, {X: 2}, {X: 2, Z: 1}, {X: 2, Z: 2}}
	assert.Equal(t, []grid.Point{{}, {X: 2}, {X: 2, Z: 2}}, Simplify(bent, 0.1))

	copied := Simplify(line, 0)
	assert.Equal(t, line, copied)
	copied[0] = grid.Point{X: 9}
	assert.Equal(t, grid.Point{}, line[0])

	assert.Empty(t, Simplify(nil, 1))
}

func TestSegmentDistance(t *testing.T) {
	a, b := grid.Point{}, grid.Point{X: 2}
	assert.InDelta(t, 1.0, segmentDistance(grid.Point{X: 1, Z: 1}, a, b), 1e-12)
	assert.InDelta(t, 1.0, segmentDistance(grid.Point{X: 3}, a, b), 1e-12, "clamped past the end")
	assert.InDelta(t, 5.0, segmentDistance(grid.Point{Y: 3, Z: 4}, a, a), 1e-12)
}

func TestStyleFor(t *testing.T) {
	assert.Equal(t, MarkerCubes, StyleFor("jps").Marker)
	assert.Equal(t, "#ff0000", Hex(StyleFor("astar").LineColor))

	wpa := StyleFor("wavefront")
	assert.Equal(t, MarkerLine, wpa.Marker)
	assert.Equal(t, "#0000ff", Hex(wpa.LineColor))
	assert.Equal(t, "#00ff00", Hex(wpa.PointColor))
	assert.Equal(t, wpa, StyleFor("rrt_star"))
}

func TestFeatureCollection(t *testing.T) {
	snap := testSnapshot(t)
	fc := FeatureCollection(snap, 0.05)

	require.Len(t, fc.Features, 5)
	kinds := make([]string, len(fc.Features))
	for i, f := range fc.Features {
		kinds[i] = f.Properties.MustString("kind")
	}
	assert.Equal(t, []string{KindStart, KindTarget, KindPath, KindPath, KindTree}, kinds)

	jps := fc.Features[2]
	assert.Equal(t, "jps", jps.Properties["planner"])
	assert.Equal(t, "found", jps.Properties["status"])
	assert.Equal(t, "#ff0000", jps.Properties["stroke"])
	assert.Equal(t, orb.LineString{{0.1, 0.1}, {0.5, 0.5}}, jps.Geometry, "collinear waypoint simplified away")
	assert.Equal(t, []float64{0.1, 0.5}, jps.Properties["z"])

	tree, ok := fc.Features[4].Geometry.(orb.MultiLineString)
	require.True(t, ok)
	assert.Len(t, tree, 2)

	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"FeatureCollection"`)
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, testSnapshot(t), 3*72))
	require.Greater(t, buf.Len(), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), buf.Bytes()[:8])

	empty := session.Snapshot{Param: testSnapshot(t).Param}
	buf.Reset()
	require.NoError(t, WritePNG(&buf, empty, DefaultPlotSize))
	assert.NotZero(t, buf.Len())
}
