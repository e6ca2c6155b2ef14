// Package resolver decides where a queued movement actually starts and ends.
//
// The committed pose store can lag behind a batch that has just finished, so
// resolution consults, in order: movements finished in the previous batch,
// siblings of the current batch, preview ghosts, and only then live poses.
package resolver

import (
	"fmt"

	"github.com/tacticsboard/choreo/pkg/core"
)

// PreviewEpsilon is how close an annotation start must be to a preview ghost
// to chain off it.
const PreviewEpsilon = 0.75

// LiveReader reads committed poses.
type LiveReader interface {
	Player(id string) (core.PlayerPose, bool)
}

// Source tells which input a position came from.
type Source int

const (
	FromLiteral Source = iota
	FromFinished
	FromBatch
	FromPreview
	FromLive
)

func (s Source) String() string {
	switch s {
	case FromFinished:
		return "finished"
	case FromBatch:
		return "batch"
	case FromPreview:
		return "preview"
	case FromLive:
		return "live"
	default:
		return "literal"
	}
}

// Inputs is the state visible to the resolver when a batch starts.
type Inputs struct {
	Live     LiveReader
	Finished []core.RunAnimation
	Batch    []core.QueuedAnimation
	Previews []core.PreviewGhost
	Epsilon  float64
}

func (in Inputs) epsilon() float64 {
	if in.Epsilon > 0 {
		return in.Epsilon
	}
	return PreviewEpsilon
}

// finished returns the most recent finished record for a player.
func (in Inputs) finished(playerID string) (core.RunAnimation, bool) {
	for i := len(in.Finished) - 1; i >= 0; i-- {
		if in.Finished[i].PlayerID == playerID {
			return in.Finished[i], true
		}
	}
	return core.RunAnimation{}, false
}

// Start resolves where q's player begins. A pass without a player moves only
// the ball and starts at its literal point; any other kind needs a player.
func (in Inputs) Start(q core.QueuedAnimation) (core.Vec2, Source, error) {
	if q.PlayerID == "" {
		if q.Kind == core.MotionPass {
			return q.Start, FromLiteral, nil
		}
		return core.Vec2{}, FromLiteral, fmt.Errorf("%w: %s %s has no start player", core.ErrUnresolvableReference, q.Kind, q.AnnotationID)
	}
	if r, ok := in.finished(q.PlayerID); ok {
		return r.ResultPos(), FromFinished, nil
	}
	eps := in.epsilon()
	for _, g := range in.Previews {
		if g.PlayerID == q.PlayerID && g.SourceAnnotationID != q.AnnotationID && g.Pos.Near(q.Start, eps) {
			return g.Pos, FromPreview, nil
		}
	}
	if in.Live != nil {
		if p, ok := in.Live.Player(q.PlayerID); ok {
			return p.Pos, FromLive, nil
		}
	}
	return core.Vec2{}, FromLive, fmt.Errorf("%w: start player %q of %s", core.ErrUnresolvableReference, q.PlayerID, q.AnnotationID)
}

// End resolves where q arrives. Untargeted movements end at their literal point.
func (in Inputs) End(q core.QueuedAnimation) (core.Vec2, Source, error) {
	if q.TargetID == "" {
		return q.End, FromLiteral, nil
	}
	for _, s := range in.Batch {
		if s.AnnotationID == q.AnnotationID || s.PlayerID != q.TargetID {
			continue
		}
		if s.Kind == core.MotionRun || s.Kind == core.MotionDribble {
			return s.End, FromBatch, nil
		}
	}
	if r, ok := in.finished(q.TargetID); ok {
		return r.ResultPos(), FromFinished, nil
	}
	if in.Live != nil {
		if p, ok := in.Live.Player(q.TargetID); ok {
			return p.Pos, FromLive, nil
		}
	}
	return core.Vec2{}, FromLive, fmt.Errorf("%w: target player %q of %s", core.ErrUnresolvableReference, q.TargetID, q.AnnotationID)
}

// Resolve returns both endpoints of q.
func (in Inputs) Resolve(q core.QueuedAnimation) (start, end core.Vec2, err error) {
	start, _, err = in.Start(q)
	if err != nil {
		return start, end, err
	}
	end, _, err = in.End(q)
	return start, end, err
}
