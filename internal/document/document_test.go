package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/internal/ordering"
	"github.com/tacticsboard/choreo/pkg/core"
)

func testScene() Scene {
	return Scene{
		Name: "overlap",
		Players: []core.PlayerPose{
			{ID: "p1", Team: core.TeamHome, Number: 4, Pos: core.Vec2{X: 10, Y: 10}},
			{ID: "p2", Team: core.TeamHome, Number: 8, Pos: core.Vec2{X: 30, Y: 10}},
			{ID: "p3", Team: core.TeamHome, Number: 9, Pos: core.Vec2{X: 50, Y: 20}},
		},
		Ball: core.BallPose{Pos: core.Vec2{X: 10, Y: 10}},
	}
}

func newDoc(t *testing.T) *Document {
	t.Helper()
	d, err := New(testScene(), nil)
	require.NoError(t, err)
	return d
}

func TestNew_DefaultsBallRadius(t *testing.T) {
	d := newDoc(t)
	assert.Equal(t, core.DefaultBallRadius, d.Poses().Ball().Radius)
	assert.Equal(t, 3, d.Poses().Len())
	assert.Equal(t, "overlap", d.Name())
}

func TestAdd_SpawnsPreviewForPlayerMoves(t *testing.T) {
	d := newDoc(t)

	require.NoError(t, d.Add(core.Pass{Line: core.Line{ID: "a", StartPlayer: "p1", EndPlayer: "p2", Step: 1}}))
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "b", StartPlayer: "p2", End: core.Vec2{X: 40, Y: 30}, Step: 1}}))
	require.NoError(t, d.Add(core.Dribble{Line: core.Line{ID: "c", StartPlayer: "p3", End: core.Vec2{X: 60, Y: 20}, Step: 1}}))
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "d", End: core.Vec2{X: 1, Y: 1}, Step: 1}}))

	assert.Equal(t, []core.PreviewGhost{
		{PlayerID: "p2", Pos: core.Vec2{X: 40, Y: 30}, SourceAnnotationID: "b"},
		{PlayerID: "p3", Pos: core.Vec2{X: 60, Y: 20}, SourceAnnotationID: "c"},
	}, d.Previews())
	assert.Len(t, d.Annotations(), 4)
}

func TestAdd_Errors(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "a"}}))

	assert.ErrorIs(t, d.Add(core.Run{Line: core.Line{ID: "a"}}), ErrDuplicateAnnotation)
	assert.Error(t, d.Add(core.Run{}))
}

func TestRemove_DeletesPreview(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "r", StartPlayer: "p1", End: core.Vec2{X: 20, Y: 20}}}))
	require.Len(t, d.Previews(), 1)

	require.NoError(t, d.Remove("r"))
	assert.Empty(t, d.Previews())
	assert.Empty(t, d.Annotations())
	assert.ErrorIs(t, d.Remove("r"), ErrAnnotationNotFound)
}

func TestUpdate_ReplacesPreview(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "r", StartPlayer: "p1", End: core.Vec2{X: 20, Y: 20}}}))

	require.NoError(t, d.Update(core.Run{Line: core.Line{ID: "r", StartPlayer: "p1", End: core.Vec2{X: 25, Y: 5}}}))
	assert.Equal(t, []core.PreviewGhost{{PlayerID: "p1", Pos: core.Vec2{X: 25, Y: 5}, SourceAnnotationID: "r"}}, d.Previews())

	// turned into a pass: nothing left to preview
	require.NoError(t, d.Update(core.Pass{Line: core.Line{ID: "r", StartPlayer: "p1", EndPlayer: "p2"}}))
	assert.Empty(t, d.Previews())

	assert.ErrorIs(t, d.Update(core.Run{Line: core.Line{ID: "missing"}}), ErrAnnotationNotFound)
}

func TestConsumePreviews(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "r1", StartPlayer: "p1", End: core.Vec2{X: 20}}}))
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "r2", StartPlayer: "p2", End: core.Vec2{X: 40}}}))

	assert.Equal(t, 0, d.ConsumePreviews(nil))
	assert.Equal(t, 1, d.ConsumePreviews([]string{"r1", "unknown"}))

	previews := d.Previews()
	require.Len(t, previews, 1)
	assert.Equal(t, "r2", previews[0].SourceAnnotationID)
	assert.Len(t, d.Annotations(), 2, "annotations stay after execution")

	d.ResetPoses()
	assert.Len(t, d.Previews(), 2)
}

func TestRemovePlayer(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "r", StartPlayer: "p1", End: core.Vec2{X: 20}}}))

	assert.True(t, d.RemovePlayer("p1"))
	assert.False(t, d.RemovePlayer("p1"))
	_, ok := d.Poses().Player("p1")
	assert.False(t, ok)
	assert.Empty(t, d.Previews())
	assert.Len(t, d.Annotations(), 1)
}

func TestAutoOrder_AppliesProposal(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.Add(core.Pass{Line: core.Line{ID: "pass", StartPlayer: "p1", EndPlayer: "p2"}}))
	require.NoError(t, d.Add(core.Dribble{Line: core.Line{ID: "drib", StartPlayer: "p2", EndPlayer: "p3"}}))
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "run", StartPlayer: "p3", End: core.Vec2{X: 70}}}))

	res, changed := d.AutoOrder()
	require.True(t, changed)
	assert.Equal(t, ordering.Unambiguous, res.Ambiguity)

	steps := map[string]int{}
	for _, a := range d.Annotations() {
		steps[a.Geometry().ID] = a.Geometry().Step
	}
	assert.Equal(t, map[string]int{"pass": 1, "drib": 2, "run": 1}, steps)

	// steps now differ, so the plan counts as hand-authored
	res, changed = d.AutoOrder()
	assert.False(t, changed)
	assert.Equal(t, ordering.ManualSteps, res.Ambiguity)
}

func TestAutoOrder_ManualOverrideWins(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.Add(core.Run{Line: core.Line{ID: "a", StartPlayer: "p1", Step: 1}}))
	require.NoError(t, d.Add(core.Pass{Line: core.Line{ID: "b", StartPlayer: "p1", EndPlayer: "p2", Step: 1}}))
	require.NoError(t, d.SetStep("b", 3))

	res, changed := d.AutoOrder()
	assert.False(t, changed)
	assert.Nil(t, res.Steps)

	a, ok := d.Annotation("b")
	require.True(t, ok)
	assert.Equal(t, 3, a.Geometry().Step)
	assert.ErrorIs(t, d.SetStep("zz", 1), ErrAnnotationNotFound)
}

func TestCaptureKeyframe(t *testing.T) {
	d := newDoc(t)

	k0, err := d.CaptureKeyframe("k0", 500)
	require.NoError(t, err)
	assert.Zero(t, k0.Duration, "first keyframe has no transition")

	_, err = d.CaptureKeyframe("k1", 0)
	assert.ErrorIs(t, err, core.ErrInvalidDuration)

	d.Poses().CommitPlayer(core.PlayerPose{ID: "p1", Team: core.TeamHome, Number: 4, Pos: core.Vec2{X: 90, Y: 10}})
	k1, err := d.CaptureKeyframe("k1", 800)
	require.NoError(t, err)
	assert.Equal(t, core.Vec2{X: 90, Y: 10}, k1.Players[0].Pos)

	seq := d.Sequence()
	require.Len(t, seq.Keyframes, 2)
	assert.Equal(t, 800.0, seq.TotalDuration())
}
