// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/tacticsboard/choreo/internal/geo"
	"github.com/tacticsboard/choreo/internal/model"
	"github.com/tacticsboard/choreo/pkg/core"
)

// rosterEntry is the identity part of a player, stored once per run.
type rosterEntry struct {
	ID         string    `json:"id"`
	Team       core.Team `json:"team"`
	Number     int       `json:"number"`
	Name       string    `json:"name,omitempty"`
	Goalkeeper bool      `json:"goalkeeper,omitempty"`
}

// CoreToExportRun converts a core.ExportRun to a GORM model.ExportRun.
// core.ExportRun.ID maps to the GORM primary key.
func CoreToExportRun(r core.ExportRun) model.ExportRun {
	m := model.ExportRun{
		Name:            r.Name,
		Source:          r.Source,
		FPS:             uint16(r.FPS),
		Width:           uint16(r.Width),
		Height:          uint16(r.Height),
		EstimatedFrames: uint(r.EstimatedFrames),
		Status:          "running",
		StartTime:       r.StartTime,
		Roster:          datatypes.JSON("[]"),
	}
	m.ID = r.ID
	return m
}

// RosterJSON converts the players of a frame to the roster column.
func RosterJSON(players []core.PlayerPose) datatypes.JSON {
	if len(players) == 0 {
		return datatypes.JSON("[]")
	}
	entries := make([]rosterEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, rosterEntry{ID: p.ID, Team: p.Team, Number: p.Number, Name: p.Name, Goalkeeper: p.Goalkeeper})
	}
	data, _ := json.Marshal(entries)
	return datatypes.JSON(data)
}

// CoreToPlayerStates converts the players of a frame record to GORM rows.
func CoreToPlayerStates(f core.FrameRecord) []model.PlayerState {
	states := make([]model.PlayerState, 0, len(f.Players))
	for _, p := range f.Players {
		states = append(states, model.PlayerState{
			ExportRunID: f.RunID,
			FrameIndex:  uint(f.Index),
			Time:        f.Time,
			PlayerID:    p.ID,
			Team:        string(p.Team),
			Number:      uint8(p.Number),
			Position:    geo.Point(p.Pos),
			Facing:      float32(p.Facing),
			Goalkeeper:  p.Goalkeeper,
		})
	}
	return states
}

// CoreToBallState converts the ball of a frame record to a GORM row.
func CoreToBallState(f core.FrameRecord) model.BallState {
	return model.BallState{
		ExportRunID: f.RunID,
		FrameIndex:  uint(f.Index),
		Time:        f.Time,
		Position:    geo.Point(f.Ball.Pos),
		Radius:      float32(f.Ball.Radius),
		RotX:        f.Ball.RotX,
		RotY:        f.Ball.RotY,
		Elevation:   float32(f.Elevation),
		Trail:       geo.LineString(f.Trail),
	}
}
