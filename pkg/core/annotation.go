// pkg/core/annotation.go
package core

import "fmt"

// Kind enumerates the movement annotation variants.
type Kind int

const (
	KindPass Kind = iota
	KindRun
	KindCurvedRun
	KindDribble
)

func (k Kind) String() string {
	switch k {
	case KindPass:
		return "pass"
	case KindRun:
		return "run"
	case KindCurvedRun:
		return "curved_run"
	case KindDribble:
		return "dribble"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "pass":
		return KindPass, nil
	case "run":
		return KindRun, nil
	case "curved_run", "curvedRun", "curved":
		return KindCurvedRun, nil
	case "dribble":
		return KindDribble, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// CurveSide selects the bulge direction of a curved run, seen from start toward end.
type CurveSide int

const (
	CurveLeft CurveSide = iota
	CurveRight
)

func (s CurveSide) String() string {
	if s == CurveRight {
		return "right"
	}
	return "left"
}

// Line holds the fields shared by every annotation variant.
// StartPlayer and EndPlayer are empty when the endpoint is not bound to a player.
type Line struct {
	ID          string `json:"id"`
	Start       Vec2   `json:"start"`
	End         Vec2   `json:"end"`
	StartPlayer string `json:"startPlayer,omitempty"`
	EndPlayer   string `json:"endPlayer,omitempty"`
	Step        int    `json:"step"`
	Color       string `json:"color,omitempty"`
}

// StepOrDefault returns the 1-based step, treating unset values as 1.
func (l Line) StepOrDefault() int {
	if l.Step < 1 {
		return 1
	}
	return l.Step
}

// Annotation is a closed sum type over Pass, Run, CurvedRun and Dribble.
// Only types in this package can implement it.
type Annotation interface {
	Kind() Kind
	Geometry() Line
	WithGeometry(Line) Annotation
	annotation()
}

// Pass moves the ball from a player (or a point) to a player (or a point).
type Pass struct {
	Line
	Lofted bool `json:"lofted,omitempty"`
}

// Run moves a player along a straight line.
type Run struct {
	Line
}

// CurvedRun moves a player along a quadratic bezier bulging to Side.
type CurvedRun struct {
	Line
	Side CurveSide `json:"side"`
}

// Dribble moves a player together with the ball.
type Dribble struct {
	Line
}

func (Pass) Kind() Kind      { return KindPass }
func (Run) Kind() Kind       { return KindRun }
func (CurvedRun) Kind() Kind { return KindCurvedRun }
func (Dribble) Kind() Kind   { return KindDribble }

func (a Pass) Geometry() Line      { return a.Line }
func (a Run) Geometry() Line       { return a.Line }
func (a CurvedRun) Geometry() Line { return a.Line }
func (a Dribble) Geometry() Line   { return a.Line }

func (a Pass) WithGeometry(l Line) Annotation      { a.Line = l; return a }
func (a Run) WithGeometry(l Line) Annotation       { a.Line = l; return a }
func (a CurvedRun) WithGeometry(l Line) Annotation { a.Line = l; return a }
func (a Dribble) WithGeometry(l Line) Annotation   { a.Line = l; return a }

func (Pass) annotation()      {}
func (Run) annotation()       {}
func (CurvedRun) annotation() {}
func (Dribble) annotation()   {}

// WithStep returns a copy of a with its step replaced.
func WithStep(a Annotation, step int) Annotation {
	l := a.Geometry()
	l.Step = step
	return a.WithGeometry(l)
}

// IsRunLike reports whether a moves a player without the ball.
func IsRunLike(a Annotation) bool {
	switch a.(type) {
	case Run, CurvedRun:
		return true
	case Pass, Dribble:
		return false
	default:
		panic(fmt.Sprintf("core: unhandled annotation %T", a))
	}
}

// MovesPlayer reports whether the annotation relocates its start player.
func MovesPlayer(a Annotation) bool {
	switch a.(type) {
	case Run, CurvedRun, Dribble:
		return true
	case Pass:
		return false
	default:
		panic(fmt.Sprintf("core: unhandled annotation %T", a))
	}
}
