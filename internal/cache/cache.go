package cache

import (
	"sync"

	"github.com/tacticsboard/choreo/pkg/core"
)

// PoseStore holds the live player and ball poses of the document.
// Readers get copies; only the Commit methods write.
type PoseStore struct {
	m       sync.RWMutex
	order   []string
	players map[string]core.PlayerPose
	ball    core.BallPose
}

func NewPoseStore(players []core.PlayerPose, ball core.BallPose) *PoseStore {
	s := &PoseStore{}
	s.Reset(players, ball)
	return s
}

// Reset replaces the whole snapshot.
func (s *PoseStore) Reset(players []core.PlayerPose, ball core.BallPose) {
	s.m.Lock()
	defer s.m.Unlock()
	s.order = make([]string, 0, len(players))
	s.players = make(map[string]core.PlayerPose, len(players))
	for _, p := range players {
		if _, dup := s.players[p.ID]; !dup {
			s.order = append(s.order, p.ID)
		}
		s.players[p.ID] = p
	}
	if ball.Radius <= 0 {
		ball.Radius = core.DefaultBallRadius
	}
	s.ball = ball
}

func (s *PoseStore) Player(id string) (core.PlayerPose, bool) {
	s.m.RLock()
	defer s.m.RUnlock()
	p, ok := s.players[id]
	return p, ok
}

// Players returns all players in insertion order.
func (s *PoseStore) Players() []core.PlayerPose {
	s.m.RLock()
	defer s.m.RUnlock()
	out := make([]core.PlayerPose, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.players[id])
	}
	return out
}

func (s *PoseStore) Ball() core.BallPose {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.ball
}

// CommitPlayer stores a movement result for an existing player.
// Unknown players are ignored and reported with false.
func (s *PoseStore) CommitPlayer(p core.PlayerPose) bool {
	s.m.Lock()
	defer s.m.Unlock()
	if _, ok := s.players[p.ID]; !ok {
		return false
	}
	s.players[p.ID] = p
	return true
}

func (s *PoseStore) CommitBall(b core.BallPose) {
	s.m.Lock()
	defer s.m.Unlock()
	s.ball = b
}

// Len returns the number of players.
func (s *PoseStore) Len() int {
	s.m.RLock()
	defer s.m.RUnlock()
	return len(s.order)
}
