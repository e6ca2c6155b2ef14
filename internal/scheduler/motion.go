package scheduler

import (
	"github.com/tacticsboard/choreo/internal/kinematics"
	"github.com/tacticsboard/choreo/pkg/core"
)

// poseAt returns where a's player stands at now. A passer stays put and
// faces along the pass.
func poseAt(a core.RunAnimation, now, facing float64) (core.Vec2, float64) {
	if a.Kind == core.MotionPass {
		return a.Start, faceAlong(a.End.Sub(a.Start), facing)
	}
	t := ease(a, a.RawProgress(now))
	pos, tangent := kinematics.PointAt(a.Start, a.End, a.Control, t)
	return pos, faceAlong(tangent, facing)
}

// endPose is the pose committed when a finishes.
func endPose(a core.RunAnimation, facing float64) (core.Vec2, float64) {
	if a.Kind == core.MotionPass {
		return a.Start, faceAlong(a.End.Sub(a.Start), facing)
	}
	pos, tangent := kinematics.PointAt(a.Start, a.End, a.Control, 1)
	return pos, faceAlong(tangent, facing)
}

// faceAlong keeps the previous facing when the direction is degenerate.
func faceAlong(dir core.Vec2, facing float64) float64 {
	if dir.IsZero() {
		return facing
	}
	return kinematics.Facing(dir)
}

// ballCarrier returns the first in-flight pass or dribble.
func (s *Scheduler) ballCarrier() (core.RunAnimation, bool) {
	for _, f := range s.active {
		if f.anim.Kind == core.MotionPass || f.anim.Kind == core.MotionDribble {
			return f.anim, true
		}
	}
	return core.RunAnimation{}, false
}

// moveBall places the ball for the current clock. The ball only rolls while
// it is on the ground.
func (s *Scheduler) moveBall() {
	a, ok := s.ballCarrier()
	if !ok {
		return
	}
	raw := a.RawProgress(s.now)
	t := ease(a, raw)

	var pos core.Vec2
	s.elevation = 0
	switch a.Kind {
	case core.MotionPass:
		pos = kinematics.LerpVec(a.Start, a.End, t)
		if a.Lofted {
			s.elevation = kinematics.Elevation(a.Start.Dist(a.End), raw)
		}
		s.trail = append(s.trail, pos)
	case core.MotionDribble:
		p, tangent := kinematics.PointAt(a.Start, a.End, a.Control, t)
		pos = p.Add(kinematics.DribbleOffset(raw, a.Duration, tangent))
	}

	if !s.ballTouched {
		s.ball = s.deps.Poses.Ball()
		s.ballTouched = true
	}
	if s.elevation <= kinematics.AirborneThreshold {
		s.ball.Roll(pos.Sub(s.ball.Pos))
	}
	s.ball.Pos = pos
}
