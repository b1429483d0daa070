package planner

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"voxel-planner/internal/grid"
)

const pointTolerance = 1e-6

// vertexEntry wraps a tree vertex for R-tree storage
type vertexEntry struct {
	id   int
	pos  grid.Point
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *vertexEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// SpatialIndex answers nearest-vertex and radius queries over tree vertices.
type SpatialIndex struct {
	tree *rtreego.Rtree
}

// NewSpatialIndex creates an empty 3D index.
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{tree: rtreego.NewTree(3, 25, 50)} // 3D, min 25, max 50 entries per node
}

// Len returns the number of indexed vertices.
func (si *SpatialIndex) Len() int { return si.tree.Size() }

// Insert adds a vertex position.
func (si *SpatialIndex) Insert(id int, pos grid.Point) {
	p := rtreego.Point{pos.X, pos.Y, pos.Z}
	si.tree.Insert(&vertexEntry{id: id, pos: pos, bbox: p.ToRect(pointTolerance)})
}

// Nearest returns the id of the vertex closest to pos, or -1 if the index is
// empty.
func (si *SpatialIndex) Nearest(pos grid.Point) int {
	item := si.tree.NearestNeighbor(rtreego.Point{pos.X, pos.Y, pos.Z})
	if item == nil {
		return -1
	}
	return item.(*vertexEntry).id
}

// Within returns the ids of vertices at most radius away from pos, sorted by
// id.
func (si *SpatialIndex) Within(pos grid.Point, radius float64) []int {
	side := 2 * radius
	bbox, err := rtreego.NewRect(
		rtreego.Point{pos.X - radius, pos.Y - radius, pos.Z - radius},
		[]float64{side, side, side},
	)
	if err != nil {
		return nil
	}

	results := si.tree.SearchIntersect(bbox)
	ids := make([]int, 0, len(results))
	for _, item := range results {
		entry := item.(*vertexEntry)
		if grid.Distance(entry.pos, pos) <= radius {
			ids = append(ids, entry.id)
		}
	}
	sort.Ints(ids)
	return ids
}
