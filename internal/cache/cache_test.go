package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/pkg/core"
)

func testPlayers() []core.PlayerPose {
	return []core.PlayerPose{
		{ID: "p9", Team: core.TeamHome, Number: 9, Pos: core.Vec2{X: 60, Y: 34}},
		{ID: "p1", Team: core.TeamHome, Number: 1, Pos: core.Vec2{X: 5, Y: 34}, Goalkeeper: true},
		{ID: "a4", Team: core.TeamAway, Number: 4, Pos: core.Vec2{X: 70, Y: 30}},
	}
}

func TestPoseStore_New(t *testing.T) {
	s := NewPoseStore(testPlayers(), core.BallPose{Pos: core.Vec2{X: 52.5, Y: 34}})

	require.NotNil(t, s)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, core.DefaultBallRadius, s.Ball().Radius)

	ids := []string{}
	for _, p := range s.Players() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p9", "p1", "a4"}, ids)
}

func TestPoseStore_Player(t *testing.T) {
	s := NewPoseStore(testPlayers(), core.BallPose{Radius: 0.5})

	got, ok := s.Player("p1")
	require.True(t, ok)
	assert.True(t, got.Goalkeeper)

	_, ok = s.Player("missing")
	assert.False(t, ok)
}

func TestPoseStore_CommitPlayer(t *testing.T) {
	s := NewPoseStore(testPlayers(), core.BallPose{Radius: 0.5})

	p, _ := s.Player("p9")
	p.Pos = core.Vec2{X: 80, Y: 20}
	p.Facing = 1.2
	assert.True(t, s.CommitPlayer(p))

	got, _ := s.Player("p9")
	assert.Equal(t, core.Vec2{X: 80, Y: 20}, got.Pos)
	assert.Equal(t, 1.2, got.Facing)

	assert.False(t, s.CommitPlayer(core.PlayerPose{ID: "ghost"}))
	assert.Equal(t, 3, s.Len())
}

func TestPoseStore_CommitBall(t *testing.T) {
	s := NewPoseStore(nil, core.BallPose{Radius: 0.5})
	s.CommitBall(core.BallPose{Pos: core.Vec2{X: 1, Y: 2}, Radius: 0.5, RotX: 3})
	assert.Equal(t, 3.0, s.Ball().RotX)
}

func TestPoseStore_Reset(t *testing.T) {
	s := NewPoseStore(testPlayers(), core.BallPose{Radius: 0.5})
	s.Reset([]core.PlayerPose{{ID: "x"}}, core.BallPose{Radius: 1})

	assert.Equal(t, 1, s.Len())
	_, ok := s.Player("p9")
	assert.False(t, ok)
	assert.Equal(t, 1.0, s.Ball().Radius)
}

func TestPoseStore_Concurrent(t *testing.T) {
	s := NewPoseStore(testPlayers(), core.BallPose{Radius: 0.5})
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.CommitPlayer(core.PlayerPose{ID: "p9", Pos: core.Vec2{X: float64(i)}})
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Players()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, s.Len())
}
