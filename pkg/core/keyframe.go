// pkg/core/keyframe.go
package core

const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Keyframe is a full scene snapshot. Duration is the length in ms of the
// transition that arrives at this keyframe; it is ignored for the first one.
type Keyframe struct {
	ID          string
	Players     []PlayerPose
	Ball        BallPose
	Annotations []Annotation
	Duration    float64
}

// AnimationSequence is an ordered list of keyframes played at Speed.
type AnimationSequence struct {
	Keyframes []Keyframe
	Speed     float64
}

// ClampSpeed bounds a playback speed multiplier to [MinSpeed, MaxSpeed].
// Non-positive values fall back to 1.
func ClampSpeed(s float64) float64 {
	switch {
	case s <= 0:
		return 1
	case s < MinSpeed:
		return MinSpeed
	case s > MaxSpeed:
		return MaxSpeed
	default:
		return s
	}
}

// TotalDuration returns the sum of all transition durations at the clamped speed.
func (s AnimationSequence) TotalDuration() float64 {
	var total float64
	for i := 1; i < len(s.Keyframes); i++ {
		total += s.Keyframes[i].Duration
	}
	return total / ClampSpeed(s.Speed)
}
