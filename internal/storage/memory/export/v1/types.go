// Package v1 contains the v1 frame log format written by the memory recorder.
// Tracks are columnar: one row per recorded frame, indexed like Frames.
package v1

// Version is written into every log.
const Version = "1"

// FrameLog is the root JSON structure for v1 format
type FrameLog struct {
	Version         string    `json:"version"`
	Name            string    `json:"name"`
	Source          string    `json:"source"`
	FPS             int       `json:"fps"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	StartTime       string    `json:"startTime"`
	Status          string    `json:"status"`
	EstimatedFrames int       `json:"estimatedFrames"`
	FrameCount      int       `json:"frameCount"`
	Times           []float64 `json:"times"`
	Players         []Track   `json:"players"`
	Ball            BallTrack `json:"ball"`
}

// Track is one player's pose per frame.
// Positions rows are [x, y, facing]; a nil row means absent in that frame.
type Track struct {
	ID         string      `json:"id"`
	Team       string      `json:"team"`
	Number     int         `json:"number,omitempty"`
	Name       string      `json:"name,omitempty"`
	Goalkeeper bool        `json:"goalkeeper,omitempty"`
	Positions  [][]float64 `json:"positions"`
}

// BallTrack is the ball per frame: rows are [x, y, rotX, rotY, elevation].
// Trails holds the pass trail per frame where one was drawn.
type BallTrack struct {
	Radius    float64             `json:"radius"`
	Positions [][]float64         `json:"positions"`
	Trails    map[int][][]float64 `json:"trails,omitempty"`
}
