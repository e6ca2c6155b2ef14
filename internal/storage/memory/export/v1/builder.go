package v1

import (
	"time"

	"github.com/tacticsboard/choreo/pkg/core"
)

// RunData contains all the data needed to build a frame log
type RunData struct {
	Run    core.ExportRun
	Status core.RunStatus
	Frames []core.FrameRecord
}

// Build creates a FrameLog from the recorded frames. Players keep the order
// in which they first appear.
func Build(data *RunData) FrameLog {
	log := FrameLog{
		Version:         Version,
		Name:            data.Run.Name,
		Source:          data.Run.Source,
		FPS:             data.Run.FPS,
		Width:           data.Run.Width,
		Height:          data.Run.Height,
		StartTime:       data.Run.StartTime.UTC().Format(time.RFC3339),
		Status:          string(data.Status),
		EstimatedFrames: data.Run.EstimatedFrames,
		FrameCount:      len(data.Frames),
		Times:           make([]float64, 0, len(data.Frames)),
		Players:         make([]Track, 0),
	}

	index := make(map[string]int)
	for i, f := range data.Frames {
		log.Times = append(log.Times, f.Time)

		for _, p := range f.Players {
			k, ok := index[p.ID]
			if !ok {
				k = len(log.Players)
				index[p.ID] = k
				log.Players = append(log.Players, Track{
					ID:         p.ID,
					Team:       string(p.Team),
					Number:     p.Number,
					Name:       p.Name,
					Goalkeeper: p.Goalkeeper,
					// rows before the first appearance stay nil
					Positions: make([][]float64, i, len(data.Frames)),
				})
			}
			log.Players[k].Positions = append(log.Players[k].Positions, []float64{p.Pos.X, p.Pos.Y, p.Facing})
		}
		// pad players missing from this frame
		for k := range log.Players {
			if len(log.Players[k].Positions) < i+1 {
				log.Players[k].Positions = append(log.Players[k].Positions, nil)
			}
		}

		if log.Ball.Radius == 0 {
			log.Ball.Radius = f.Ball.Radius
		}
		log.Ball.Positions = append(log.Ball.Positions, []float64{
			f.Ball.Pos.X, f.Ball.Pos.Y, f.Ball.RotX, f.Ball.RotY, f.Elevation,
		})
		if len(f.Trail) > 0 {
			if log.Ball.Trails == nil {
				log.Ball.Trails = make(map[int][][]float64)
			}
			trail := make([][]float64, 0, len(f.Trail))
			for _, v := range f.Trail {
				trail = append(trail, []float64{v.X, v.Y})
			}
			log.Ball.Trails[f.Index] = trail
		}
	}
	if log.Ball.Positions == nil {
		log.Ball.Positions = make([][]float64, 0)
	}
	return log
}
