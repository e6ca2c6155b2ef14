package convert

import (
	"encoding/json"

	"github.com/tacticsboard/choreo/internal/geo"
	"github.com/tacticsboard/choreo/internal/model"
	"github.com/tacticsboard/choreo/pkg/core"
)

// ExportRunToCore converts a GORM ExportRun to a core.ExportRun.
func ExportRunToCore(m model.ExportRun) core.ExportRun {
	return core.ExportRun{
		ID:              m.ID,
		Name:            m.Name,
		Source:          m.Source,
		FPS:             int(m.FPS),
		Width:           int(m.Width),
		Height:          int(m.Height),
		EstimatedFrames: int(m.EstimatedFrames),
		StartTime:       m.StartTime,
	}
}

// Roster decodes the roster column. Positions are left at the origin.
func Roster(m model.ExportRun) []core.PlayerPose {
	var entries []rosterEntry
	if len(m.Roster) > 0 {
		_ = json.Unmarshal(m.Roster, &entries)
	}
	players := make([]core.PlayerPose, 0, len(entries))
	for _, e := range entries {
		players = append(players, core.PlayerPose{ID: e.ID, Team: e.Team, Number: e.Number, Name: e.Name, Goalkeeper: e.Goalkeeper})
	}
	return players
}

// PlayerStateToCore converts a GORM PlayerState to a core.PlayerPose.
func PlayerStateToCore(s model.PlayerState) core.PlayerPose {
	return core.PlayerPose{
		ID:         s.PlayerID,
		Team:       core.Team(s.Team),
		Number:     int(s.Number),
		Pos:        geo.Vec(s.Position),
		Facing:     float64(s.Facing),
		Goalkeeper: s.Goalkeeper,
	}
}

// FrameToCore rebuilds a frame record from the rows of one frame.
func FrameToCore(players []model.PlayerState, ball model.BallState) core.FrameRecord {
	f := core.FrameRecord{
		RunID: ball.ExportRunID,
		Index: int(ball.FrameIndex),
		Time:  ball.Time,
		Ball: core.BallPose{
			Pos:    geo.Vec(ball.Position),
			Radius: float64(ball.Radius),
			RotX:   ball.RotX,
			RotY:   ball.RotY,
		},
		Elevation: float64(ball.Elevation),
		Trail:     geo.Vertices(ball.Trail),
	}
	f.Players = make([]core.PlayerPose, 0, len(players))
	for _, p := range players {
		f.Players = append(f.Players, PlayerStateToCore(p))
	}
	return f
}
