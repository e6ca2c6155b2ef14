// pkg/core/export.go
package core

import "time"

// RunStatus is the final state of an export run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// ExportRun describes one export for frame recorders.
type ExportRun struct {
	ID              uint
	Name            string
	Source          string // "sequence" or "annotations"
	FPS             int
	Width           int
	Height          int
	EstimatedFrames int
	StartTime       time.Time
}

// FrameRecord is the computed scene of one emitted frame.
type FrameRecord struct {
	RunID     uint
	Index     int
	Time      float64
	Players   []PlayerPose
	Ball      BallPose
	Elevation float64
	Trail     []Vec2
}

// NewFrameRecord copies the recordable part of f.
func NewFrameRecord(runID uint, index int, f Frame) FrameRecord {
	players := make([]PlayerPose, len(f.Players))
	copy(players, f.Players)
	var trail []Vec2
	if len(f.Overlay.Trail) > 0 {
		trail = make([]Vec2, len(f.Overlay.Trail))
		copy(trail, f.Overlay.Trail)
	}
	return FrameRecord{
		RunID:     runID,
		Index:     index,
		Time:      f.Time,
		Players:   players,
		Ball:      f.Ball,
		Elevation: f.Overlay.Elevation,
		Trail:     trail,
	}
}
