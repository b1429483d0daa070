// Package render turns session snapshots into visualization formats: GeoJSON
// feature collections and top-down PNG plots.
package render

import (
	"fmt"
	"image/color"
)

// Marker is the way a planner's path is drawn.
type Marker string

const (
	// MarkerCubes draws one cube per waypoint.
	MarkerCubes Marker = "cubes"
	// MarkerLine draws a line strip with a dot per waypoint.
	MarkerLine Marker = "line"
)

// Style is the appearance of one planner's path.
type Style struct {
	Marker     Marker
	LineColor  color.RGBA
	PointColor color.RGBA
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	grey  = color.RGBA{R: 160, G: 160, B: 160, A: 255}
)

// StyleFor returns the style used for a planner. Grid search paths are red
// cubes; every other planner is a blue line with green waypoints.
func StyleFor(plannerName string) Style {
	switch plannerName {
	case "jps", "astar":
		return Style{Marker: MarkerCubes, LineColor: red, PointColor: red}
	default:
		return Style{Marker: MarkerLine, LineColor: blue, PointColor: green}
	}
}

// Hex renders c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
