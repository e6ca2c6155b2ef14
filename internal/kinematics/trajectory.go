package kinematics

import (
	"math"

	"github.com/tacticsboard/choreo/pkg/core"
)

const (
	// BounceDistance is the lofted pass length from which the ball bounces twice.
	BounceDistance = 32.0

	// AirborneThreshold is the elevation above which ball spin is frozen.
	AirborneThreshold = 0.01

	// DribbleAmplitude is the peak lateral ball offset of a dribble.
	DribbleAmplitude = 0.15

	maxLoftHeight = 5.0
)

type arcPhase struct {
	from, to float64
	scale    float64
}

var bouncePhases = []arcPhase{
	{from: 0, to: 0.55, scale: 1},
	{from: 0.55, to: 0.75, scale: 0.45},
	{from: 0.75, to: 0.88, scale: 0.18},
}

// LoftHeight is the peak elevation of a lofted pass over distance.
func LoftHeight(distance float64) float64 {
	return math.Min(distance*0.1, maxLoftHeight)
}

// Elevation returns the ball height of a lofted pass of the given length at raw
// (non-eased) progress t. Long passes land and bounce twice, short ones follow
// a single arc. Zero-length passes stay on the ground.
func Elevation(distance, t float64) float64 {
	if distance <= 0 || t <= 0 || t >= 1 {
		return 0
	}
	h := LoftHeight(distance)
	if distance < BounceDistance {
		return h * math.Sin(math.Pi*t)
	}
	for _, p := range bouncePhases {
		if t >= p.from && t < p.to {
			local := (t - p.from) / (p.to - p.from)
			return h * p.scale * math.Sin(math.Pi*local)
		}
	}
	return 0
}

// DribbleFrequency is the lateral oscillation rate in Hz for a dribble lasting
// durationMs. Shorter dribbles oscillate faster.
func DribbleFrequency(durationMs float64) float64 {
	if durationMs <= 0 {
		return 0
	}
	f := 3000 / durationMs
	return math.Max(1.5, math.Min(f, 6))
}

// DribbleOffset returns the ball's lateral displacement perpendicular to
// tangent at raw progress t. The envelope is zero at both ends.
func DribbleOffset(t, durationMs float64, tangent core.Vec2) core.Vec2 {
	n := tangent.Unit().Perp()
	if n.IsZero() {
		return core.Vec2{}
	}
	t = Clamp01(t)
	cycles := DribbleFrequency(durationMs) * durationMs / 1000
	amp := DribbleAmplitude * math.Sin(math.Pi*t) * math.Sin(2*math.Pi*cycles*t)
	return n.Scale(amp)
}
