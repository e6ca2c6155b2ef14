// pkg/core/animation.go
package core

// MotionKind is the runtime flavour of a movement once it is scheduled.
type MotionKind int

const (
	MotionRun MotionKind = iota
	MotionPass
	MotionDribble
)

func (m MotionKind) String() string {
	switch m {
	case MotionPass:
		return "pass"
	case MotionDribble:
		return "dribble"
	default:
		return "run"
	}
}

// QueuedAnimation is a movement waiting for its step to become current.
// Curve is set for curved runs; the control point is built once positions are resolved.
type QueuedAnimation struct {
	PlayerID     string
	AnnotationID string
	Start        Vec2
	End          Vec2
	Curve        *CurveSide
	Duration     float64 // ms
	Kind         MotionKind
	TargetID     string
	OneTouch     bool
	Lofted       bool
	Step         int
}

// RunAnimation is an in-flight movement. All members of one batch share StartTime.
type RunAnimation struct {
	PlayerID     string
	AnnotationID string
	Start        Vec2
	End          Vec2
	Control      *Vec2
	StartTime    float64 // ms on the driving clock
	Duration     float64 // ms
	Kind         MotionKind
	TargetID     string
	OneTouch     bool
	Lofted       bool
}

// RawProgress returns the un-eased progress in [0,1] at clock time now.
func (r RunAnimation) RawProgress(now float64) float64 {
	if r.Duration <= 0 {
		return 1
	}
	t := (now - r.StartTime) / r.Duration
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// finishEpsilon absorbs rounding when a fixed frame interval is summed up to
// an authored duration.
const finishEpsilon = 1e-6

// Finished reports whether the animation has reached its end at clock time now.
func (r RunAnimation) Finished(now float64) bool {
	return now-r.StartTime >= r.Duration-finishEpsilon
}

// ResultPos is where the animation leaves its player: passes keep the passer at Start.
func (r RunAnimation) ResultPos() Vec2 {
	if r.Kind == MotionPass {
		return r.Start
	}
	return r.End
}

// Ghost marks a player's pre-movement pose after a batch commits.
type Ghost struct {
	PlayerID  string  `json:"playerId"`
	Team      Team    `json:"team"`
	Number    int     `json:"number"`
	Pos       Vec2    `json:"pos"`
	Facing    float64 `json:"facing"`
	ExpiresAt float64 `json:"expiresAt"` // ms on the driving clock
}

// PreviewGhost marks the anticipated end position of a drawn run or dribble.
// It never outlives the annotation named by SourceAnnotationID.
type PreviewGhost struct {
	PlayerID           string `json:"playerId"`
	Pos                Vec2   `json:"pos"`
	SourceAnnotationID string `json:"sourceAnnotationId"`
}
