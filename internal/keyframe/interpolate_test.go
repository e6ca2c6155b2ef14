package keyframe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/pkg/core"
)

func pose(id string, x, y, facing float64) core.PlayerPose {
	return core.PlayerPose{ID: id, Pos: core.Vec2{X: x, Y: y}, Facing: facing}
}

func TestPlayers(t *testing.T) {
	from := []core.PlayerPose{pose("a", 0, 0, 0), pose("gone", 5, 5, 0)}
	to := []core.PlayerPose{pose("a", 10, 0, math.Pi/2), pose("new", 3, 3, 1)}

	got := Players(from, to, 0.5)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ID)
	assert.InDelta(t, 5, got[0].Pos.X, 1e-9)
	assert.InDelta(t, math.Pi/4, got[0].Facing, 1e-9)

	assert.Equal(t, "new", got[1].ID)
	assert.Equal(t, core.Vec2{X: 3, Y: 3}, got[1].Pos, "destination-only players snap in")
	assert.Equal(t, -1, core.FindPlayer(got, "gone"))
}

func TestPlayers_FacingTakesShortWay(t *testing.T) {
	deg := math.Pi / 180
	from := []core.PlayerPose{pose("a", 0, 0, 170*deg)}
	to := []core.PlayerPose{pose("a", 0, 0, -170*deg)}

	got := Players(from, to, 0.5)
	assert.InDelta(t, math.Pi, math.Abs(got[0].Facing), 1e-9)
}

func TestBall_RotationFollowsEasedDisplacement(t *testing.T) {
	from := core.BallPose{Pos: core.Vec2{}, Radius: 0.5}
	to := core.BallPose{Pos: core.Vec2{X: 10, Y: -4}, Radius: 0.5}

	got := Ball(from, to, 0.25)
	assert.InDelta(t, 2.5, got.Pos.X, 1e-9)
	assert.InDelta(t, 5, got.RotX, 1e-9)
	assert.InDelta(t, -2, got.RotY, 1e-9)
}

func TestVisibleAnnotations(t *testing.T) {
	kept := core.Run{Line: core.Line{ID: "kept", End: core.Vec2{X: 4}}}
	keptMoved := core.Run{Line: core.Line{ID: "kept", End: core.Vec2{X: 8}}}
	old := core.Pass{Line: core.Line{ID: "old", End: core.Vec2{Y: 4}}}
	added := core.Pass{Line: core.Line{ID: "added", End: core.Vec2{X: 10}, EndPlayer: "p2"}}

	from := []core.Annotation{kept, old}
	to := []core.Annotation{keptMoved, added}

	find := func(vs []core.VisibleAnnotation, id string) (core.VisibleAnnotation, bool) {
		for _, v := range vs {
			if v.Annotation.Geometry().ID == id {
				return v, true
			}
		}
		return core.VisibleAnnotation{}, false
	}

	tests := []struct {
		name       string
		t          float64
		wantAdded  bool
		addedEndX  float64
		addedBound bool
		wantOld    bool
	}{
		{name: "start", t: 0.02, wantAdded: false, wantOld: true},
		{name: "growing", t: 0.3, wantAdded: true, addedEndX: 3, addedBound: false, wantOld: true},
		{name: "past half", t: 0.6, wantAdded: true, addedEndX: 6, addedBound: false, wantOld: false},
		{name: "bound", t: 0.96, wantAdded: true, addedEndX: 9.6, addedBound: true, wantOld: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VisibleAnnotations(from, to, tt.t)

			k, ok := find(got, "kept")
			require.True(t, ok)
			assert.Equal(t, core.Vec2{X: 8}, k.Annotation.Geometry().End)

			a, ok := find(got, "added")
			assert.Equal(t, tt.wantAdded, ok)
			if ok {
				assert.InDelta(t, tt.addedEndX, a.Annotation.Geometry().End.X, 1e-9)
				assert.Equal(t, tt.addedBound, a.EndBound)
				assert.Equal(t, core.KindPass, a.Annotation.Kind())
			}

			_, ok = find(got, "old")
			assert.Equal(t, tt.wantOld, ok)
		})
	}
}

func TestScene(t *testing.T) {
	from := core.Keyframe{Players: []core.PlayerPose{pose("a", 0, 0, 0)}, Ball: core.BallPose{Radius: 1}}
	to := core.Keyframe{Players: []core.PlayerPose{pose("a", 2, 0, 0)}, Ball: core.BallPose{Pos: core.Vec2{X: 2}, Radius: 1}}

	f := Scene(from, to, 1)
	assert.Equal(t, core.Vec2{X: 2}, f.Players[0].Pos)
	assert.Equal(t, core.Vec2{X: 2}, f.Ball.Pos)
	assert.InDelta(t, 2, f.Ball.RotX, 1e-9)
}
