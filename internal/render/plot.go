package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/session"
)

// DefaultPlotSize is the edge length of the square PNG written by WritePNG.
const DefaultPlotSize = 8 * vg.Inch

// TopDown builds a plot of the snapshot projected onto the ground plane.
func TopDown(snap session.Snapshot) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Planned paths (tick %d)", snap.Tick)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.X.Min, p.X.Max = snap.Param.Lower.X, snap.Param.Upper.X
	p.Y.Min, p.Y.Max = snap.Param.Lower.Y, snap.Param.Upper.Y
	p.Add(plotter.NewGrid())

	for _, e := range snap.Tree {
		edge, err := plotter.NewLine(xys(e[:]))
		if err != nil {
			return nil, fmt.Errorf("tree edge: %w", err)
		}
		edge.Color = grey
		edge.Width = vg.Points(0.5)
		p.Add(edge)
	}

	for _, res := range snap.Results {
		if len(res.Path) == 0 {
			continue
		}
		style := StyleFor(res.Planner)
		pts := xys(res.Path)

		if style.Marker == MarkerLine {
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, fmt.Errorf("%s path: %w", res.Planner, err)
			}
			line.Color = style.LineColor
			line.Width = vg.Points(1)
			p.Add(line)
		}

		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("%s waypoints: %w", res.Planner, err)
		}
		scatter.GlyphStyle.Color = style.PointColor
		scatter.GlyphStyle.Radius = vg.Points(2)
		if style.Marker == MarkerCubes {
			scatter.GlyphStyle.Shape = draw.BoxGlyph{}
		} else {
			scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		}
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("%s (%s)", res.Planner, res.Status), scatter)
	}

	markers := []struct {
		name  string
		pos   grid.Point
		shown bool
	}{
		{"start", snap.Start, true},
		{"target", snap.Target, snap.HasTarget},
	}
	for _, m := range markers {
		if !m.shown {
			continue
		}
		s, err := plotter.NewScatter(xys([]grid.Point{m.pos}))
		if err != nil {
			return nil, fmt.Errorf("%s marker: %w", m.name, err)
		}
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add(m.name, s)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePNG renders the top-down plot of snap as a PNG image.
func WritePNG(w io.Writer, snap session.Snapshot, size vg.Length) error {
	p, err := TopDown(snap)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func xys(points []grid.Point) plotter.XYs {
	out := make(plotter.XYs, len(points))
	for i, p := range points {
		out[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return out
}
