package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/session"
)

// Feature kinds set in the "kind" property.
const (
	KindPath   = "path"
	KindTree   = "tree"
	KindStart  = "start"
	KindTarget = "target"
)

// FeatureCollection exports a snapshot as GeoJSON in the planning frame.
// Geometries carry x and y; heights are stored in the "z" property. Paths
// are simplified with epsilon when it is positive.
func FeatureCollection(snap session.Snapshot, epsilon float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	start := geojson.NewFeature(orb.Point{snap.Start.X, snap.Start.Y})
	start.Properties["kind"] = KindStart
	start.Properties["z"] = snap.Start.Z
	fc.Append(start)

	if snap.HasTarget {
		target := geojson.NewFeature(orb.Point{snap.Target.X, snap.Target.Y})
		target.Properties["kind"] = KindTarget
		target.Properties["z"] = snap.Target.Z
		fc.Append(target)
	}

	for _, res := range snap.Results {
		path := Simplify(res.Path, epsilon)
		style := StyleFor(res.Planner)

		f := geojson.NewFeature(lineString(path))
		f.Properties["kind"] = KindPath
		f.Properties["planner"] = res.Planner
		f.Properties["status"] = res.Status.String()
		f.Properties["cost"] = res.Cost
		f.Properties["z"] = heights(path)
		f.Properties["marker"] = string(style.Marker)
		f.Properties["stroke"] = Hex(style.LineColor)
		f.Properties["marker-color"] = Hex(style.PointColor)
		fc.Append(f)
	}

	if len(snap.Tree) > 0 {
		mls := make(orb.MultiLineString, 0, len(snap.Tree))
		for _, e := range snap.Tree {
			mls = append(mls, orb.LineString{{e[0].X, e[0].Y}, {e[1].X, e[1].Y}})
		}
		f := geojson.NewFeature(mls)
		f.Properties["kind"] = KindTree
		f.Properties["edges"] = len(snap.Tree)
		f.Properties["stroke"] = Hex(grey)
		fc.Append(f)
	}
	return fc
}

func lineString(path []grid.Point) orb.LineString {
	ls := make(orb.LineString, len(path))
	for i, p := range path {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

func heights(path []grid.Point) []float64 {
	z := make([]float64, len(path))
	for i, p := range path {
		z[i] = p.Z
	}
	return z
}
