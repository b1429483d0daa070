// Package mapio decodes obstacle maps into world points for the occupancy
// grid. Two encodings are accepted: a plain point cloud
// {"points": [[x, y, z], ...]} and a GeoJSON FeatureCollection whose
// footprints are extruded into vertical obstacle columns.
package mapio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"voxel-planner/internal/grid"
)

var (
	ErrEmptyMap       = errors.New("map payload is empty")
	ErrMalformedPoint = errors.New("point must have three coordinates")
)

// PointCloud is the JSON form of an unordered obstacle point set.
type PointCloud struct {
	Points [][]float64 `json:"points"`
}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses a map payload in either encoding. GeoJSON footprints are
// rasterized against param.
func Decode(data []byte, param grid.MapParam) ([]grid.Point, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMap
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	if env.Type == "FeatureCollection" {
		footprints, err := ParseFootprints(data)
		if err != nil {
			return nil, err
		}
		return Extrude(MergeFootprints(footprints), param), nil
	}
	return DecodePoints(data)
}

// DecodePoints parses the point cloud encoding.
func DecodePoints(data []byte) ([]grid.Point, error) {
	var pc PointCloud
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("decode point cloud: %w", err)
	}
	points := make([]grid.Point, 0, len(pc.Points))
	for i, p := range pc.Points {
		if len(p) != 3 {
			return nil, fmt.Errorf("%w: points[%d] has %d", ErrMalformedPoint, i, len(p))
		}
		points = append(points, grid.Point{X: p[0], Y: p[1], Z: p[2]})
	}
	return points, nil
}

// LoadFiles reads every file matched by pattern and concatenates the decoded
// points. Files that fail to parse are skipped with a warning.
func LoadFiles(pattern string, param grid.MapParam) ([]grid.Point, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(files)

	log.Info().Int("files", len(files)).Str("pattern", pattern).Msg("loading obstacle maps")

	var all []grid.Point
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("failed to read map file")
			continue
		}
		points, err := Decode(data, param)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("failed to parse map file")
			continue
		}
		log.Debug().Int("points", len(points)).Str("file", filepath.Base(file)).Msg("map file loaded")
		all = append(all, points...)
	}
	return all, nil
}
