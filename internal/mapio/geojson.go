package mapio

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog/log"

	"voxel-planner/internal/grid"
)

// Feature properties that bound the extruded column vertically. Missing
// values span the whole volume height.
const (
	PropFloor   = "floor"
	PropCeiling = "ceiling"
)

// Footprint is a horizontal obstacle outline with its vertical extent.
// Floor or Ceiling set to NaN means the volume bound.
type Footprint struct {
	Polygon orb.Polygon
	Line    orb.LineString
	Point   *orb.Point
	Floor   float64
	Ceiling float64
}

// ParseFootprints reads polygon, line and point geometries from a GeoJSON
// FeatureCollection. Unsupported geometry types are skipped.
func ParseFootprints(data []byte) ([]Footprint, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	var out []Footprint
	skipped := 0
	for _, f := range fc.Features {
		floor := f.Properties.MustFloat64(PropFloor, math.NaN())
		ceiling := f.Properties.MustFloat64(PropCeiling, math.NaN())
		base := Footprint{Floor: floor, Ceiling: ceiling}

		switch g := f.Geometry.(type) {
		case orb.Polygon:
			fp := base
			fp.Polygon = g
			out = append(out, fp)
		case orb.MultiPolygon:
			for _, poly := range g {
				fp := base
				fp.Polygon = poly
				out = append(out, fp)
			}
		case orb.LineString:
			fp := base
			fp.Line = g
			out = append(out, fp)
		case orb.MultiLineString:
			for _, ls := range g {
				fp := base
				fp.Line = ls
				out = append(out, fp)
			}
		case orb.Point:
			fp := base
			pt := g
			fp.Point = &pt
			out = append(out, fp)
		case orb.MultiPoint:
			for _, p := range g {
				fp := base
				pt := p
				fp.Point = &pt
				out = append(out, fp)
			}
		default:
			skipped++
		}
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("unsupported footprint geometries ignored")
	}
	return out, nil
}

// Extrude rasterizes footprints into voxel-centre obstacle points between
// their floor and ceiling.
func Extrude(footprints []Footprint, param grid.MapParam) []grid.Point {
	g := grid.New(param)
	var points []grid.Point
	for _, fp := range footprints {
		zFrom, zTo := verticalRange(fp, param)
		if zFrom > zTo {
			continue
		}
		column := func(x, y int) {
			for z := zFrom; z <= zTo; z++ {
				points = append(points, g.IndexToWorld(grid.Index{X: x, Y: y, Z: z}))
			}
		}

		switch {
		case fp.Point != nil:
			idx := g.WorldToIndex(grid.Point{X: fp.Point.X(), Y: fp.Point.Y()})
			if g.Contains(grid.Index{X: idx.X, Y: idx.Y}) {
				column(idx.X, idx.Y)
			}
		case len(fp.Line) > 0:
			for _, c := range rasterLine(fp.Line, g) {
				column(c[0], c[1])
			}
		case len(fp.Polygon) > 0:
			for _, c := range rasterPolygon(fp.Polygon, g) {
				column(c[0], c[1])
			}
		}
	}
	return points
}

func verticalRange(fp Footprint, param grid.MapParam) (int, int) {
	floor, ceiling := fp.Floor, fp.Ceiling
	if math.IsNaN(floor) || floor < param.Lower.Z {
		floor = param.Lower.Z
	}
	if math.IsNaN(ceiling) || ceiling > param.Upper.Z {
		ceiling = param.Upper.Z
	}
	zFrom := int(math.Floor((floor - param.Lower.Z) * param.InvResolution))
	zTo := int(math.Ceil((ceiling-param.Lower.Z)*param.InvResolution)) - 1
	if zTo >= param.MaxZ {
		zTo = param.MaxZ - 1
	}
	return zFrom, zTo
}

// rasterPolygon returns the in-bounds voxel columns whose centre lies inside
// the polygon, plus the columns under every ring vertex so that outlines
// thinner than a voxel still block.
func rasterPolygon(poly orb.Polygon, g *grid.OccupancyGrid) [][2]int {
	param := g.Param()
	b := poly.Bound()
	lo := g.WorldToIndex(grid.Point{X: b.Min.X(), Y: b.Min.Y()})
	hi := g.WorldToIndex(grid.Point{X: b.Max.X(), Y: b.Max.Y()})
	lo.X, lo.Y = max(lo.X, 0), max(lo.Y, 0)
	hi.X, hi.Y = min(hi.X, param.MaxX-1), min(hi.Y, param.MaxY-1)

	seen := make(map[[2]int]bool)
	var cells [][2]int
	add := func(x, y int) {
		c := [2]int{x, y}
		if seen[c] || !g.Contains(grid.Index{X: x, Y: y}) {
			return
		}
		seen[c] = true
		cells = append(cells, c)
	}

	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			centre := g.IndexToWorld(grid.Index{X: x, Y: y})
			if planar.PolygonContains(poly, orb.Point{centre.X, centre.Y}) {
				add(x, y)
			}
		}
	}
	for _, v := range poly[0] {
		idx := g.WorldToIndex(grid.Point{X: v.X(), Y: v.Y()})
		add(idx.X, idx.Y)
	}
	return cells
}

// rasterLine walks every segment of ls with a Bresenham iterator on the
// ground plane.
func rasterLine(ls orb.LineString, g *grid.OccupancyGrid) [][2]int {
	seen := make(map[[2]int]bool)
	var cells [][2]int
	for i := range ls {
		from := ls[max(i-1, 0)]
		a := g.WorldToIndex(grid.Point{X: from.X(), Y: from.Y()})
		b := g.WorldToIndex(grid.Point{X: ls[i].X(), Y: ls[i].Y()})
		a.Z, b.Z = 0, 0
		it := grid.NewLineIterator(a, b)
		for it.Next() {
			idx := it.Index()
			c := [2]int{idx.X, idx.Y}
			if seen[c] || !g.Contains(idx) {
				continue
			}
			seen[c] = true
			cells = append(cells, c)
		}
	}
	return cells
}
