// Package keyframe cross-fades two full scene snapshots.
package keyframe

import (
	"github.com/tacticsboard/choreo/internal/kinematics"
	"github.com/tacticsboard/choreo/pkg/core"
)

const (
	// GrowThreshold is the progress after which new annotations start drawing.
	GrowThreshold = 0.05
	// BindThreshold is the progress from which a growing annotation binds to
	// its end player.
	BindThreshold = 0.95
	// FadeThreshold is the progress at which annotations missing from the
	// destination disappear.
	FadeThreshold = 0.5
)

// Players interpolates the player list at eased progress t. Players are
// matched by id and drawn in destination order. Players only in the
// destination snap in; players only in the source are gone from t = 0.
func Players(from, to []core.PlayerPose, t float64) []core.PlayerPose {
	out := make([]core.PlayerPose, 0, len(to))
	for _, dst := range to {
		p := dst
		if i := core.FindPlayer(from, dst.ID); i >= 0 {
			src := from[i]
			p.Pos = kinematics.LerpVec(src.Pos, dst.Pos, t)
			p.Facing = kinematics.LerpAngle(src.Facing, dst.Facing, t)
		}
		out = append(out, p)
	}
	return out
}

// Ball interpolates the ball at eased progress t. Rotation follows the eased
// displacement so the spin matches what is drawn.
func Ball(from, to core.BallPose, t float64) core.BallPose {
	b := from
	if to.Radius > 0 {
		b.Radius = to.Radius
	}
	if b.Radius <= 0 {
		b.Radius = core.DefaultBallRadius
	}
	b.Pos = kinematics.LerpVec(from.Pos, to.Pos, t)
	b.Roll(b.Pos.Sub(from.Pos))
	return b
}

// VisibleAnnotations returns what to draw at eased progress t of a
// transition from one annotation set to another.
func VisibleAnnotations(from, to []core.Annotation, t float64) []core.VisibleAnnotation {
	inFrom := make(map[string]bool, len(from))
	for _, a := range from {
		inFrom[a.Geometry().ID] = true
	}
	inTo := make(map[string]bool, len(to))

	var out []core.VisibleAnnotation
	for _, a := range to {
		id := a.Geometry().ID
		inTo[id] = true
		if inFrom[id] {
			out = append(out, core.VisibleAnnotation{Annotation: a, EndBound: true})
			continue
		}
		if t <= GrowThreshold {
			continue
		}
		out = append(out, core.VisibleAnnotation{
			Annotation: grow(a, t),
			EndBound:   t >= BindThreshold,
		})
	}

	if t < FadeThreshold {
		for _, a := range from {
			if !inTo[a.Geometry().ID] {
				out = append(out, core.VisibleAnnotation{Annotation: a, EndBound: true})
			}
		}
	}
	return out
}

// grow clips the end of a to progress t along its straight line.
func grow(a core.Annotation, t float64) core.Annotation {
	l := a.Geometry()
	l.End = kinematics.LerpVec(l.Start, l.End, kinematics.Clamp01(t))
	if t < BindThreshold {
		l.EndPlayer = ""
	}
	return a.WithGeometry(l)
}

// Scene interpolates a whole keyframe pair into a frame at eased progress t.
func Scene(from, to core.Keyframe, t float64) core.Frame {
	return core.Frame{
		Players:     Players(from.Players, to.Players, t),
		Ball:        Ball(from.Ball, to.Ball, t),
		Annotations: VisibleAnnotations(from.Annotations, to.Annotations, t),
	}
}

// Still returns the frame showing a keyframe at rest.
func Still(k core.Keyframe) core.Frame {
	players := make([]core.PlayerPose, len(k.Players))
	copy(players, k.Players)
	anns := make([]core.VisibleAnnotation, 0, len(k.Annotations))
	for _, a := range k.Annotations {
		anns = append(anns, core.VisibleAnnotation{Annotation: a, EndBound: true})
	}
	ball := k.Ball
	if ball.Radius <= 0 {
		ball.Radius = core.DefaultBallRadius
	}
	return core.Frame{Players: players, Ball: ball, Annotations: anns}
}
