package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/planner"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	param, err := cfg.MapParam()
	require.NoError(t, err)
	assert.Equal(t, 50, param.MaxX)
	assert.Equal(t, 50, param.MaxY)
	assert.Equal(t, 10, param.MaxZ)

	opts, err := cfg.SessionOptions()
	require.NoError(t, err)
	assert.True(t, opts.GridSearch)
	assert.True(t, opts.Wavefront)
	assert.False(t, opts.RRTStar)
	assert.Equal(t, planner.ModeJPS, opts.GridSearchMode)
	assert.Equal(t, planner.PropagationBFS, opts.WavefrontPropagation)
	assert.Equal(t, planner.DefaultRRTStarOptions(), opts.RRTStarOptions)
	assert.Equal(t, grid.Point{}, opts.Start)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "planner.yaml", `
map:
  resolution: 0.1
  cloud_margin: 0.3
start: [1, -1, 0.5]
planners:
  grid_search:
    mode: astar
  rrt_star:
    enabled: true
    seed: 42
    max_vertices: 3000
server:
  addr: 127.0.0.1:9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Map.Resolution)
	assert.Equal(t, 0.3, cfg.Map.CloudMargin)
	assert.Equal(t, 10.0, cfg.Map.XSize, "unset keys keep defaults")
	assert.Equal(t, [3]float64{1, -1, 0.5}, cfg.Start)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	opts, err := cfg.SessionOptions()
	require.NoError(t, err)
	assert.Equal(t, planner.ModeAStar, opts.GridSearchMode)
	assert.True(t, opts.GridSearch)
	assert.True(t, opts.RRTStar)
	assert.Equal(t, int64(42), opts.RRTStarOptions.Seed)
	assert.Equal(t, 200, opts.RRTStarOptions.IterationsPerCall)
	assert.Equal(t, 3000, opts.RRTStarOptions.MaxVertices)
	assert.Equal(t, grid.Point{X: 1, Y: -1, Z: 0.5}, opts.Start)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "planner.toml", `
tick_hz = 50.0

[map]
x_size = 20.0
z_size = 4.0

[planners.wavefront]
enabled = false
propagation = "distance"

[store]
path = "outcomes.db"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.TickHz)
	assert.Equal(t, 20.0, cfg.Map.XSize)
	assert.Equal(t, 4.0, cfg.Map.ZSize)
	assert.False(t, cfg.Planners.Wavefront.Enabled)
	assert.Equal(t, "outcomes.db", cfg.Store.Path)

	param, err := cfg.MapParam()
	require.NoError(t, err)
	assert.Equal(t, 100, param.MaxX)
	assert.Equal(t, 20, param.MaxZ)

	opts, err := cfg.SessionOptions()
	require.NoError(t, err)
	assert.Equal(t, planner.PropagationDistance, opts.WavefrontPropagation)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "planner.json", `{"map": {"resolution": 0.5}, "planners": {"rrt_star": {"goal_bias": 0.2}}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Map.Resolution)
	assert.Equal(t, 0.2, cfg.Planners.RRTStar.GoalBias)
	assert.Equal(t, 0.5, cfg.Planners.RRTStar.StepLength)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "planner.ini", "resolution=0.2"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = Load(writeFile(t, "broken.yaml", "map: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "map:\n  resolution: -1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, grid.ErrInvalidResolution)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"tick":        func(c *Config) { c.TickHz = 0 },
		"mode":        func(c *Config) { c.Planners.GridSearch.Mode = "dfs" },
		"propagation": func(c *Config) { c.Planners.Wavefront.Propagation = "flood" },
		"iterations":  func(c *Config) { c.Planners.RRTStar.IterationsPerCall = 0 },
		"budget":      func(c *Config) { c.Planners.RRTStar.MaxIterations = 10 },
		"vertices":    func(c *Config) { c.Planners.RRTStar.MaxVertices = 1 },
		"step":        func(c *Config) { c.Planners.RRTStar.StepLength = 0 },
		"radius":      func(c *Config) { c.Planners.RRTStar.NearRadius = 0.1 },
		"tolerance":   func(c *Config) { c.Planners.RRTStar.GoalTolerance = 0 },
		"bias":        func(c *Config) { c.Planners.RRTStar.GoalBias = 1.5 },
		"addr":        func(c *Config) { c.Server.Addr = " " },
		"margin":      func(c *Config) { c.Map.CloudMargin = -0.1 },
		"size":        func(c *Config) { c.Map.ZSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
