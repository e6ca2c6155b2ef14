// Package geo converts pitch coordinates to simplefeatures geometries.
//
// The pitch is a local Cartesian frame in metres with the origin at a corner
// flag. Geometry is stored without an SRID and encoded as WKB by the GORM
// models, so it reads back the same from postgres and sqlite.
package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/tacticsboard/choreo/internal/kinematics"
	"github.com/tacticsboard/choreo/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// curveSamples is the resolution used to measure curved runs.
const curveSamples = 32

// PointFromString parses "x,y" into a pitch point.
func PointFromString(coords string) (core.Vec2, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	return core.Vec2{X: x, Y: y}, nil
}

// Point builds an XY point.
func Point(v core.Vec2) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Y},
		Type: geom.DimXY,
	})
}

// Vec returns the pitch point of p, or the origin for an empty point.
func Vec(p geom.Point) core.Vec2 {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vec2{}
	}
	return core.Vec2{X: c.X, Y: c.Y}
}

// LineString builds a LineString through pts. Fewer than two points give an
// empty LineString.
func LineString(pts []core.Vec2) geom.LineString {
	if len(pts) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// Vertices returns the points of ls.
func Vertices(ls geom.LineString) []core.Vec2 {
	seq := ls.Coordinates()
	n := seq.Length()
	if n == 0 {
		return nil
	}
	out := make([]core.Vec2, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		out[i] = core.Vec2{X: xy.X, Y: xy.Y}
	}
	return out
}

// Path returns the drawn path of an annotation. Curved runs are sampled
// along their bezier.
func Path(a core.Annotation) geom.LineString {
	l := a.Geometry()
	if c, ok := a.(core.CurvedRun); ok {
		ctrl := kinematics.CurveControl(l.Start, l.End, c.Side)
		return LineString(kinematics.Sample(l.Start, l.End, &ctrl, curveSamples))
	}
	return LineString([]core.Vec2{l.Start, l.End})
}

// PathLength is the length of the drawn path in metres.
func PathLength(a core.Annotation) float64 {
	return Path(a).Length()
}

// TrailLength is the distance the ball has covered along a trail.
func TrailLength(trail []core.Vec2) float64 {
	return LineString(trail).Length()
}
