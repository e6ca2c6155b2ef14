package scheduler

import (
	"github.com/tacticsboard/choreo/internal/kinematics"
	"github.com/tacticsboard/choreo/pkg/core"
)

// Timing holds the authored movement lengths in milliseconds.
type Timing struct {
	RunMs          float64
	CurvedRunMs    float64
	PassMs         float64
	OneTouchPassMs float64
	DribbleMs      float64
	GhostMs        float64
}

// DefaultTiming returns the stock movement lengths.
func DefaultTiming() Timing {
	return Timing{
		RunMs:          1200,
		CurvedRunMs:    1400,
		PassMs:         900,
		OneTouchPassMs: 450,
		DribbleMs:      1500,
		GhostMs:        1000,
	}
}

// Queued converts an annotation into a queued movement.
func (t Timing) Queued(a core.Annotation, oneTouch bool) core.QueuedAnimation {
	g := a.Geometry()
	q := core.QueuedAnimation{
		PlayerID:     g.StartPlayer,
		AnnotationID: g.ID,
		Start:        g.Start,
		End:          g.End,
		Step:         g.StepOrDefault(),
	}
	switch v := a.(type) {
	case core.Pass:
		q.Kind = core.MotionPass
		q.TargetID = g.EndPlayer
		q.Lofted = v.Lofted
		q.OneTouch = oneTouch
		q.Duration = t.PassMs
		if oneTouch {
			q.Duration = t.OneTouchPassMs
		}
	case core.Run:
		q.Kind = core.MotionRun
		q.Duration = t.RunMs
	case core.CurvedRun:
		side := v.Side
		q.Kind = core.MotionRun
		q.Curve = &side
		q.Duration = t.CurvedRunMs
	case core.Dribble:
		q.Kind = core.MotionDribble
		q.Duration = t.DribbleMs
	default:
		panic("scheduler: unhandled annotation type")
	}
	return q
}

// ease picks the timing curve of an animation.
func ease(r core.RunAnimation, raw float64) float64 {
	if r.OneTouch {
		return kinematics.EaseOutCubic(raw)
	}
	return kinematics.EaseInOutCubic(raw)
}
