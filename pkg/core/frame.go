// pkg/core/frame.go
package core

// VisibleAnnotation is an annotation as it should be drawn on one frame.
// EndBound is false while the end-player binding is suppressed.
type VisibleAnnotation struct {
	Annotation Annotation
	EndBound   bool
}

// Overlay carries transient decoration for the painter.
type Overlay struct {
	Ghosts    []Ghost
	Previews  []PreviewGhost
	Trail     []Vec2
	Elevation float64
	Progress  float64
}

// Frame is everything the painter needs for one instant.
type Frame struct {
	Time        float64
	Players     []PlayerPose
	Ball        BallPose
	Annotations []VisibleAnnotation
	Overlay     Overlay
}
