package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/planner"
	"voxel-planner/internal/session"
	"voxel-planner/internal/testutil/testlog"
)

func openRecorder(t *testing.T, path string) *Recorder {
	t.Helper()
	testlog.Start(t)
	r, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecorder_RecordsChangesOnly(t *testing.T) {
	ctx := context.Background()
	r := openRecorder(t, ":memory:")
	require.NotEmpty(t, r.RunID())

	idle := []session.Result{
		{Planner: "jps", Status: planner.StatusIdle},
		{Planner: "wavefront", Status: planner.StatusIdle},
	}
	require.NoError(t, r.Publish(ctx, 1, idle))
	require.NoError(t, r.Publish(ctx, 2, idle))

	found := []session.Result{
		{
			Planner: "jps",
			Status:  planner.StatusFound,
			Path:    []grid.Point{{X: 0.1, Y: 0.1, Z: 0.1}, {X: 0.3, Y: 0.3, Z: 0.3}},
			Cost:    0.35,
			Stats:   planner.Stats{Expanded: 12, Cost: 0.35},
		},
		{Planner: "wavefront", Status: planner.StatusIdle},
	}
	require.NoError(t, r.Publish(ctx, 3, found))
	require.NoError(t, r.Publish(ctx, 4, found))

	outcomes, err := r.Outcomes(ctx, r.RunID())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, int64(1), outcomes[0].Tick)
	assert.Equal(t, "jps", outcomes[0].Planner)
	assert.Equal(t, "idle", outcomes[0].Status)
	assert.Nil(t, outcomes[0].PathJSON)
	assert.Equal(t, "wavefront", outcomes[1].Planner)

	last := outcomes[2]
	assert.Equal(t, int64(3), last.Tick)
	assert.Equal(t, "found", last.Status)
	assert.Equal(t, 2, last.Waypoints)
	assert.Equal(t, 12, last.Expanded)
	assert.InDelta(t, 0.35, last.Cost, 1e-12)
	assert.Equal(t, r.RunID(), last.RunID)

	var path [][3]float64
	require.NoError(t, json.Unmarshal(last.PathJSON, &path))
	assert.Equal(t, [][3]float64{{0.1, 0.1, 0.1}, {0.3, 0.3, 0.3}}, path)
}

func TestRecorder_RunsAreSeparated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outcomes.db")

	first := openRecorder(t, path)
	require.NoError(t, first.Publish(ctx, 1, []session.Result{{Planner: "jps", Status: planner.StatusFailed}}))
	require.NoError(t, first.Close())

	second := openRecorder(t, path)
	assert.NotEqual(t, first.RunID(), second.RunID())
	require.NoError(t, second.Publish(ctx, 1, []session.Result{{Planner: "astar", Status: planner.StatusIdle}}))

	outcomes, err := second.Outcomes(ctx, first.RunID())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "failed", outcomes[0].Status)

	outcomes, err = second.Outcomes(ctx, second.RunID())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "astar", outcomes[0].Planner)
}

func TestRecorder_AsSessionPublisher(t *testing.T) {
	ctx := context.Background()
	r := openRecorder(t, ":memory:")

	param, err := grid.NewMapParam(0.2, 0, r3.Vec{X: 10, Y: 10, Z: 2})
	require.NoError(t, err)
	s := session.New(param, session.DefaultOptions(), r)

	s.Tick(ctx)
	require.True(t, s.IngestMap(nil))
	require.NoError(t, s.UpdateTarget(grid.Point{X: 1, Y: 1, Z: 0.5}))
	s.Tick(ctx)
	s.Tick(ctx)

	outcomes, err := r.Outcomes(ctx, r.RunID())
	require.NoError(t, err)

	// Idle on the first tick, found once the target arrives, nothing after.
	require.Len(t, outcomes, 4)
	assert.Equal(t, "idle", outcomes[0].Status)
	assert.Equal(t, "idle", outcomes[1].Status)
	assert.Equal(t, int64(2), outcomes[2].Tick)
	assert.Equal(t, "found", outcomes[2].Status)
	assert.Equal(t, "found", outcomes[3].Status)
}
