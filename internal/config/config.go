// Package config loads the planner service configuration from YAML, TOML or
// JSON files layered over built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/planner"
	"voxel-planner/internal/session"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalidConfig     = errors.New("invalid config")
)

// Config is the root of the service configuration.
type Config struct {
	Map      MapConfig      `yaml:"map" toml:"map" json:"map"`
	Start    [3]float64     `yaml:"start" toml:"start" json:"start"`
	TickHz   float64        `yaml:"tick_hz" toml:"tick_hz" json:"tick_hz"`
	Planners PlannersConfig `yaml:"planners" toml:"planners" json:"planners"`
	Server   ServerConfig   `yaml:"server" toml:"server" json:"server"`
	Store    StoreConfig    `yaml:"store" toml:"store" json:"store"`
}

// MapConfig describes the planning volume. Sizes are in metres.
type MapConfig struct {
	Resolution  float64 `yaml:"resolution" toml:"resolution" json:"resolution"`
	CloudMargin float64 `yaml:"cloud_margin" toml:"cloud_margin" json:"cloud_margin"`
	XSize       float64 `yaml:"x_size" toml:"x_size" json:"x_size"`
	YSize       float64 `yaml:"y_size" toml:"y_size" json:"y_size"`
	ZSize       float64 `yaml:"z_size" toml:"z_size" json:"z_size"`
}

type PlannersConfig struct {
	GridSearch GridSearchConfig `yaml:"grid_search" toml:"grid_search" json:"grid_search"`
	Wavefront  WavefrontConfig  `yaml:"wavefront" toml:"wavefront" json:"wavefront"`
	RRTStar    RRTStarConfig    `yaml:"rrt_star" toml:"rrt_star" json:"rrt_star"`
}

type GridSearchConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Mode    string `yaml:"mode" toml:"mode" json:"mode"` // jps or astar
}

type WavefrontConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Propagation string `yaml:"propagation" toml:"propagation" json:"propagation"` // bfs or distance
}

type RRTStarConfig struct {
	Enabled           bool    `yaml:"enabled" toml:"enabled" json:"enabled"`
	IterationsPerCall int     `yaml:"iterations_per_call" toml:"iterations_per_call" json:"iterations_per_call"`
	MaxIterations     int     `yaml:"max_iterations" toml:"max_iterations" json:"max_iterations"`
	MaxVertices       int     `yaml:"max_vertices" toml:"max_vertices" json:"max_vertices"`
	StallIterations   int     `yaml:"stall_iterations" toml:"stall_iterations" json:"stall_iterations"`
	StepLength        float64 `yaml:"step_length" toml:"step_length" json:"step_length"`
	NearRadius        float64 `yaml:"near_radius" toml:"near_radius" json:"near_radius"`
	GoalTolerance     float64 `yaml:"goal_tolerance" toml:"goal_tolerance" json:"goal_tolerance"`
	GoalBias          float64 `yaml:"goal_bias" toml:"goal_bias" json:"goal_bias"`
	Seed              int64   `yaml:"seed" toml:"seed" json:"seed"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr" json:"addr"`
}

// StoreConfig locates the sqlite outcome log. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path" toml:"path" json:"path"`
}

// Default returns the configuration of the reference deployment.
func Default() Config {
	rrt := planner.DefaultRRTStarOptions()
	return Config{
		Map: MapConfig{
			Resolution:  0.2,
			CloudMargin: 0.0,
			XSize:       10,
			YSize:       10,
			ZSize:       2,
		},
		TickHz: 100,
		Planners: PlannersConfig{
			GridSearch: GridSearchConfig{Enabled: true, Mode: "jps"},
			Wavefront:  WavefrontConfig{Enabled: true, Propagation: "bfs"},
			RRTStar: RRTStarConfig{
				Enabled:           false,
				IterationsPerCall: rrt.IterationsPerCall,
				MaxIterations:     rrt.MaxIterations,
				MaxVertices:       rrt.MaxVertices,
				StallIterations:   rrt.StallIterations,
				StepLength:        rrt.StepLength,
				NearRadius:        rrt.NearRadius,
				GoalTolerance:     rrt.GoalTolerance,
				GoalBias:          rrt.GoalBias,
				Seed:              rrt.Seed,
			},
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults and validates the result. The decoder is
// chosen by file extension.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	case ".toml":
		_, err = toml.Decode(string(raw), &cfg)
	case ".json":
		err = json.Unmarshal(raw, &cfg)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if _, err := c.MapParam(); err != nil {
		return fmt.Errorf("%w: map: %w", ErrInvalidConfig, err)
	}
	if c.TickHz <= 0 {
		return fmt.Errorf("%w: tick_hz must be positive, got %v", ErrInvalidConfig, c.TickHz)
	}
	if _, err := planner.ParseMode(c.Planners.GridSearch.Mode); err != nil {
		return fmt.Errorf("%w: planners.grid_search.mode: %w", ErrInvalidConfig, err)
	}
	if _, err := planner.ParsePropagation(c.Planners.Wavefront.Propagation); err != nil {
		return fmt.Errorf("%w: planners.wavefront.propagation: %w", ErrInvalidConfig, err)
	}

	r := c.Planners.RRTStar
	switch {
	case r.IterationsPerCall <= 0:
		return fmt.Errorf("%w: planners.rrt_star.iterations_per_call must be positive", ErrInvalidConfig)
	case r.MaxIterations < r.IterationsPerCall:
		return fmt.Errorf("%w: planners.rrt_star.max_iterations below iterations_per_call", ErrInvalidConfig)
	case r.MaxVertices < 2:
		return fmt.Errorf("%w: planners.rrt_star.max_vertices must be at least 2", ErrInvalidConfig)
	case r.StallIterations < 0:
		return fmt.Errorf("%w: planners.rrt_star.stall_iterations must not be negative", ErrInvalidConfig)
	case r.StepLength <= 0:
		return fmt.Errorf("%w: planners.rrt_star.step_length must be positive", ErrInvalidConfig)
	case r.NearRadius < r.StepLength:
		return fmt.Errorf("%w: planners.rrt_star.near_radius below step_length", ErrInvalidConfig)
	case r.GoalTolerance <= 0:
		return fmt.Errorf("%w: planners.rrt_star.goal_tolerance must be positive", ErrInvalidConfig)
	case r.GoalBias < 0 || r.GoalBias > 1:
		return fmt.Errorf("%w: planners.rrt_star.goal_bias must be within [0, 1]", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}
	return nil
}

// MapParam derives the grid parameters.
func (c Config) MapParam() (grid.MapParam, error) {
	size := grid.Point{X: c.Map.XSize, Y: c.Map.YSize, Z: c.Map.ZSize}
	return grid.NewMapParam(c.Map.Resolution, c.Map.CloudMargin, size)
}

// SessionOptions translates the planner section into session options.
func (c Config) SessionOptions() (session.Options, error) {
	mode, err := planner.ParseMode(c.Planners.GridSearch.Mode)
	if err != nil {
		return session.Options{}, err
	}
	prop, err := planner.ParsePropagation(c.Planners.Wavefront.Propagation)
	if err != nil {
		return session.Options{}, err
	}

	r := c.Planners.RRTStar
	return session.Options{
		Start:                grid.Point{X: c.Start[0], Y: c.Start[1], Z: c.Start[2]},
		TickHz:               c.TickHz,
		GridSearch:           c.Planners.GridSearch.Enabled,
		GridSearchMode:       mode,
		Wavefront:            c.Planners.Wavefront.Enabled,
		WavefrontPropagation: prop,
		RRTStar:              r.Enabled,
		RRTStarOptions: planner.RRTStarOptions{
			IterationsPerCall: r.IterationsPerCall,
			MaxIterations:     r.MaxIterations,
			MaxVertices:       r.MaxVertices,
			StallIterations:   r.StallIterations,
			StepLength:        r.StepLength,
			NearRadius:        r.NearRadius,
			GoalTolerance:     r.GoalTolerance,
			GoalBias:          r.GoalBias,
			Seed:              r.Seed,
		},
	}, nil
}
