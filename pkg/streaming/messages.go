package streaming

import (
	"encoding/json"
	"time"

	"github.com/tacticsboard/choreo/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun = "start_run"
	TypeFrame    = "frame"
	TypeEndRun   = "end_run"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload announces an export run.
type StartRunPayload struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Source          string    `json:"source"`
	FPS             int       `json:"fps"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	EstimatedFrames int       `json:"estimatedFrames"`
	StartTime       time.Time `json:"startTime"`
}

// FramePayload is one emitted frame.
type FramePayload struct {
	Index     int               `json:"index"`
	Time      float64           `json:"time"`
	Players   []core.PlayerPose `json:"players"`
	Ball      core.BallPose     `json:"ball"`
	Elevation float64           `json:"elevation,omitempty"`
	Trail     []core.Vec2       `json:"trail,omitempty"`
}

// EndRunPayload closes an export run.
type EndRunPayload struct {
	Status core.RunStatus `json:"status"`
	Frames int            `json:"frames"`
}

// NewStartRunPayload copies the run header.
func NewStartRunPayload(r *core.ExportRun) StartRunPayload {
	return StartRunPayload{
		ID:              r.ID,
		Name:            r.Name,
		Source:          r.Source,
		FPS:             r.FPS,
		Width:           r.Width,
		Height:          r.Height,
		EstimatedFrames: r.EstimatedFrames,
		StartTime:       r.StartTime,
	}
}

// NewFramePayload copies a frame record.
func NewFramePayload(f *core.FrameRecord) FramePayload {
	return FramePayload{
		Index:     f.Index,
		Time:      f.Time,
		Players:   f.Players,
		Ball:      f.Ball,
		Elevation: f.Elevation,
		Trail:     f.Trail,
	}
}
