// Package kinematics holds the pure motion math: bezier and linear paths,
// easing curves, angle blending and the stylised ball trajectories.
package kinematics

import (
	"math"

	"github.com/tacticsboard/choreo/pkg/core"
)

// CurveBulge is the control point offset of a curved run, as a fraction of its length.
const CurveBulge = 0.5

// PointAt evaluates a path at t. With a control point the path is a quadratic
// bezier and tangent is its analytic derivative; otherwise it is a straight
// line with tangent end-start.
func PointAt(start, end core.Vec2, control *core.Vec2, t float64) (pos, tangent core.Vec2) {
	if control == nil {
		u := 1 - t
		pos = core.Vec2{X: u*start.X + t*end.X, Y: u*start.Y + t*end.Y}
		return pos, end.Sub(start)
	}
	c := *control
	u := 1 - t
	pos = core.Vec2{
		X: u*u*start.X + 2*u*t*c.X + t*t*end.X,
		Y: u*u*start.Y + 2*u*t*c.Y + t*t*end.Y,
	}
	tangent = core.Vec2{
		X: 2*u*(c.X-start.X) + 2*t*(end.X-c.X),
		Y: 2*u*(c.Y-start.Y) + 2*t*(end.Y-c.Y),
	}
	return pos, tangent
}

// Facing converts a tangent to a heading. A zero tangent yields 0.
func Facing(tangent core.Vec2) float64 {
	if tangent.IsZero() {
		return 0
	}
	return math.Atan2(tangent.Y, tangent.X)
}

// CurveControl builds the control point of a curved run: the midpoint pushed
// perpendicular to the path by CurveBulge times its length. Left bulges toward
// the counter-clockwise normal.
func CurveControl(start, end core.Vec2, side core.CurveSide) core.Vec2 {
	mid := start.Add(end).Scale(0.5)
	d := end.Sub(start)
	offset := d.Unit().Perp().Scale(CurveBulge * d.Len())
	if side == core.CurveRight {
		offset = offset.Scale(-1)
	}
	return mid.Add(offset)
}

// Lerp blends a toward b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LerpVec blends two points component-wise.
func LerpVec(a, b core.Vec2, t float64) core.Vec2 {
	return core.Vec2{X: Lerp(a.X, b.X, t), Y: Lerp(a.Y, b.Y, t)}
}

// NormalizeAngle wraps an angle into [-pi, pi].
func NormalizeAngle(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}

// LerpAngle blends two headings the short way round.
func LerpAngle(a, b, t float64) float64 {
	d := NormalizeAngle(b - a)
	return NormalizeAngle(a + d*t)
}

// Clamp01 bounds t to [0,1].
func Clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// EaseInOutCubic accelerates then decelerates.
func EaseInOutCubic(t float64) float64 {
	t = Clamp01(t)
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := -2*t + 2
	return 1 - f*f*f/2
}

// EaseOutCubic starts at full speed and decelerates. Used for one-touch passes.
func EaseOutCubic(t float64) float64 {
	t = Clamp01(t)
	f := 1 - t
	return 1 - f*f*f
}

// Sample returns n+1 evenly spaced points along a path, both ends included.
func Sample(start, end core.Vec2, control *core.Vec2, n int) []core.Vec2 {
	if n < 1 {
		n = 1
	}
	pts := make([]core.Vec2, 0, n+1)
	for i := 0; i <= n; i++ {
		p, _ := PointAt(start, end, control, float64(i)/float64(n))
		pts = append(pts, p)
	}
	return pts
}
