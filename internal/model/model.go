package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&ExportRun{},
	&PlayerState{},
	&BallState{},
}

// DatabaseModelsSQLite is the same list for the sqlite backend.
var DatabaseModelsSQLite = []interface{}{
	&ExportRun{},
	&PlayerState{},
	&BallState{},
}

////////////////////////
// EXPORT MODELS
////////////////////////

// ExportRun is one export of a sequence or an annotation run
type ExportRun struct {
	gorm.Model
	Name            string         `json:"name" gorm:"size:200"`
	Source          string         `json:"source" gorm:"size:32"` // sequence or annotations
	FPS             uint16         `json:"fps"`
	Width           uint16         `json:"width"`
	Height          uint16         `json:"height"`
	EstimatedFrames uint           `json:"estimatedFrames"`
	FrameCount      uint           `json:"frameCount"`
	Status          string         `json:"status" gorm:"size:16;default:running"`
	StartTime       time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_export_run_start"`
	EndTime         *time.Time     `json:"endTime" gorm:"type:timestamptz"`
	Roster          datatypes.JSON `json:"roster" gorm:"type:jsonb;default:'[]'"` // players seen in the first frame
	PlayerStates    []PlayerState
	BallStates      []BallState
}

func (*ExportRun) TableName() string {
	return "export_runs"
}

// PlayerState is the pose of one player on one emitted frame
type PlayerState struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	ExportRunID uint      `json:"exportRunId" gorm:"index:idx_playerstate_export_run_id"`
	ExportRun   ExportRun `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:ExportRunID;"`
	FrameIndex  uint      `json:"frameIndex" gorm:"index:idx_playerstate_frame_index"`
	Time        float64   `json:"time"` // ms on the export clock

	PlayerID   string     `json:"playerId" gorm:"size:64;index:idx_playerstate_player_id"`
	Team       string     `json:"team" gorm:"size:16"`
	Number     uint8      `json:"number"`
	Position   geom.Point `json:"position"`
	Facing     float32    `json:"facing"` // radians, 0 toward +X
	Goalkeeper bool       `json:"goalkeeper" gorm:"default:false"`
}

func (*PlayerState) TableName() string {
	return "player_states"
}

// BallState is the ball on one emitted frame
type BallState struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	ExportRunID uint      `json:"exportRunId" gorm:"index:idx_ballstate_export_run_id"`
	ExportRun   ExportRun `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:ExportRunID;"`
	FrameIndex  uint      `json:"frameIndex" gorm:"index:idx_ballstate_frame_index"`
	Time        float64   `json:"time"`

	Position  geom.Point      `json:"position"`
	Radius    float32         `json:"radius"`
	RotX      float64         `json:"rotX"`
	RotY      float64         `json:"rotY"`
	Elevation float32         `json:"elevation"`
	Trail     geom.LineString `json:"trail"` // pass path so far, empty when no pass is in flight
}

func (*BallState) TableName() string {
	return "ball_states"
}
