// pkg/core/pose.go
package core

// Team identifies which side a player belongs to.
type Team string

const (
	TeamHome Team = "home"
	TeamAway Team = "away"
)

// PlayerPose is the authoritative position and orientation of one player marker.
// Facing is in radians, 0 points toward +X.
type PlayerPose struct {
	ID         string  `json:"id"`
	Team       Team    `json:"team"`
	Number     int     `json:"number"`
	Name       string  `json:"name,omitempty"`
	Pos        Vec2    `json:"pos"`
	Facing     float64 `json:"facing"`
	Goalkeeper bool    `json:"goalkeeper,omitempty"`
}

// BallPose is the ball position plus two rolling-spin accumulators.
type BallPose struct {
	Pos    Vec2    `json:"pos"`
	Radius float64 `json:"radius"`
	RotX   float64 `json:"rotX"`
	RotY   float64 `json:"rotY"`
}

// DefaultBallRadius is used when a scene does not specify one.
const DefaultBallRadius = 0.35

// Roll advances the rotation accumulators by a displacement divided by the radius.
func (b *BallPose) Roll(d Vec2) {
	if b.Radius <= 0 {
		return
	}
	b.RotX += d.X / b.Radius
	b.RotY += d.Y / b.Radius
}

// FindPlayer returns the index of the player with the given id, or -1.
func FindPlayer(players []PlayerPose, id string) int {
	for i := range players {
		if players[i].ID == id {
			return i
		}
	}
	return -1
}
