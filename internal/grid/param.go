package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrInvalidResolution = errors.New("resolution must be positive")
	ErrInvalidSize       = errors.New("map size must be positive on every axis")
	ErrInvalidMargin     = errors.New("cloud margin must not be negative")
)

// MapParam describes the bounded volume covered by an OccupancyGrid. It is
// fixed for the lifetime of a planning session.
type MapParam struct {
	Resolution    float64
	InvResolution float64
	Margin        float64

	Size  r3.Vec
	Lower r3.Vec
	Upper r3.Vec

	MaxX int
	MaxY int
	MaxZ int
}

// NewMapParam derives bounds and voxel counts from the world size. The
// horizontal axes are centred on the origin and the vertical axis starts at
// the floor (z = 0).
func NewMapParam(resolution, margin float64, size r3.Vec) (MapParam, error) {
	if resolution <= 0 || math.IsNaN(resolution) {
		return MapParam{}, fmt.Errorf("%w: %v", ErrInvalidResolution, resolution)
	}
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return MapParam{}, fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}
	if margin < 0 {
		return MapParam{}, fmt.Errorf("%w: %v", ErrInvalidMargin, margin)
	}

	inv := 1.0 / resolution
	return MapParam{
		Resolution:    resolution,
		InvResolution: inv,
		Margin:        margin,
		Size:          size,
		Lower:         r3.Vec{X: -size.X / 2, Y: -size.Y / 2, Z: 0},
		Upper:         r3.Vec{X: size.X / 2, Y: size.Y / 2, Z: size.Z},
		MaxX:          int(math.Floor(size.X * inv)),
		MaxY:          int(math.Floor(size.Y * inv)),
		MaxZ:          int(math.Floor(size.Z * inv)),
	}, nil
}

// MarginVoxels is the inflation radius in voxel units.
func (p MapParam) MarginVoxels() int {
	if p.Margin <= 0 {
		return 0
	}
	return int(math.Ceil(p.Margin*p.InvResolution - 1e-9))
}

// VoxelCount is the total number of voxels in the volume.
func (p MapParam) VoxelCount() int {
	return p.MaxX * p.MaxY * p.MaxZ
}
