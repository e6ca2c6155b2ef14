package scheduler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/internal/cache"
	"github.com/tacticsboard/choreo/pkg/core"
)

func newStore(players ...core.PlayerPose) *cache.PoseStore {
	return cache.NewPoseStore(players, core.BallPose{Radius: core.DefaultBallRadius})
}

func player(id string, x, y float64) core.PlayerPose {
	return core.PlayerPose{ID: id, Team: core.TeamHome, Pos: core.Vec2{X: x, Y: y}}
}

func newScheduler(t *testing.T, store *cache.PoseStore, onBatch func(BatchResult)) *Scheduler {
	t.Helper()
	s, err := New(Dependencies{Poses: store, OnBatchComplete: onBatch})
	require.NoError(t, err)
	return s
}

func run(id, playerID string, from, to core.Vec2, step int, ms float64) core.QueuedAnimation {
	return core.QueuedAnimation{
		PlayerID: playerID, AnnotationID: id, Start: from, End: to,
		Step: step, Duration: ms, Kind: core.MotionRun,
	}
}

func framePlayer(t *testing.T, f core.Frame, id string) core.PlayerPose {
	t.Helper()
	i := core.FindPlayer(f.Players, id)
	require.GreaterOrEqual(t, i, 0, "player %s missing from frame", id)
	return f.Players[i]
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestEnqueue_InvalidDuration(t *testing.T) {
	s := newScheduler(t, newStore(player("p1", 0, 0)), nil)

	for _, d := range []float64{0, -5, math.NaN()} {
		err := s.Enqueue(run("r", "p1", core.Vec2{}, core.Vec2{X: 1}, 1, d))
		assert.ErrorIs(t, err, core.ErrInvalidDuration, "duration %v", d)
	}
	assert.True(t, s.Done())
}

func TestAdvance_BatchesWaitForSlowestMovement(t *testing.T) {
	store := newStore(player("p1", 0, 0), player("p2", 0, 5))
	s := newScheduler(t, store, nil)

	require.NoError(t, s.Enqueue(run("a", "p1", core.Vec2{}, core.Vec2{X: 10}, 1, 500)))
	require.NoError(t, s.Enqueue(run("b", "p2", core.Vec2{Y: 5}, core.Vec2{X: 10, Y: 5}, 1, 1000)))
	require.NoError(t, s.Enqueue(run("c", "p1", core.Vec2{X: 10}, core.Vec2{X: 10, Y: 10}, 2, 400)))

	s.Advance(0)
	inflight := s.InFlight()
	require.Len(t, inflight, 2)
	assert.Equal(t, inflight[0].StartTime, inflight[1].StartTime)
	assert.Equal(t, 1, s.Step())

	s.Advance(600)
	assert.Equal(t, 1, s.Step(), "step 2 must wait for b")
	assert.Len(t, s.InFlight(), 1)
	assert.Len(t, s.Queued(), 1)

	s.Advance(500)
	assert.Equal(t, 2, s.Step())
	inflight = s.InFlight()
	require.Len(t, inflight, 1)
	assert.Equal(t, "c", inflight[0].AnnotationID)
	assert.Equal(t, 1100.0, inflight[0].StartTime)
	assert.Equal(t, core.Vec2{X: 10}, inflight[0].Start)

	p, _ := store.Player("p2")
	assert.Equal(t, core.Vec2{X: 10, Y: 5}, p.Pos)
}

func TestAdvance_CommitsAndSpawnsGhost(t *testing.T) {
	store := newStore(player("p1", 0, 0))
	var results []BatchResult
	s := newScheduler(t, store, func(r BatchResult) { results = append(results, r) })

	require.NoError(t, s.Enqueue(run("r1", "p1", core.Vec2{}, core.Vec2{X: 10}, 1, 1000)))
	s.Advance(0)
	s.Advance(1000)

	p, _ := store.Player("p1")
	assert.Equal(t, core.Vec2{X: 10}, p.Pos)
	assert.InDelta(t, 0, p.Facing, 1e-9)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"r1"}, results[0].ConsumedPreviews)
	assert.True(t, s.Done())

	ghosts := s.Ghosts()
	require.Len(t, ghosts, 1)
	assert.Equal(t, core.Vec2{}, ghosts[0].Pos)
	assert.Equal(t, 2000.0, ghosts[0].ExpiresAt)

	s.Advance(999)
	assert.Len(t, s.Ghosts(), 1)
	s.Advance(1)
	assert.Empty(t, s.Ghosts())
}

func TestAdvance_LoftedPassDoesNotRollInTheAir(t *testing.T) {
	store := newStore(player("p1", 0, 0), player("p2", 40, 0))
	s := newScheduler(t, store, nil)

	require.NoError(t, s.Enqueue(core.QueuedAnimation{
		PlayerID: "p1", AnnotationID: "pa", Start: core.Vec2{}, End: core.Vec2{X: 40},
		Step: 1, Duration: 900, Kind: core.MotionPass, TargetID: "p2", Lofted: true,
	}))
	s.Advance(0)
	f := s.Advance(450)

	assert.Greater(t, f.Overlay.Elevation, 0.01)
	assert.InDelta(t, 20, f.Ball.Pos.X, 1e-9)
	assert.Equal(t, 0.0, f.Ball.RotX)
	assert.NotEmpty(t, f.Overlay.Trail)
}

func TestAdvance_GroundPassRolls(t *testing.T) {
	store := newStore(player("p1", 0, 0), player("p2", 10, 0))
	s := newScheduler(t, store, nil)

	require.NoError(t, s.Enqueue(core.QueuedAnimation{
		PlayerID: "p1", AnnotationID: "pa", Start: core.Vec2{}, End: core.Vec2{X: 10},
		Step: 1, Duration: 900, Kind: core.MotionPass, TargetID: "p2",
	}))
	s.Advance(0)
	for !s.Done() {
		s.Advance(100)
	}

	b := store.Ball()
	assert.InDelta(t, 10, b.Pos.X, 1e-9)
	assert.InDelta(t, 10/core.DefaultBallRadius, b.RotX, 1e-9)

	p, _ := store.Player("p1")
	assert.Equal(t, core.Vec2{}, p.Pos, "passer stays where it was")
	assert.Empty(t, s.Ghosts())
}

func TestAdvance_PassTargetsReceiverRunInSameBatch(t *testing.T) {
	store := newStore(player("p1", 0, 0), player("p2", 20, 0))
	s := newScheduler(t, store, nil)

	require.NoError(t, s.Enqueue(core.QueuedAnimation{
		PlayerID: "p1", AnnotationID: "pa", Start: core.Vec2{}, End: core.Vec2{X: 20},
		Step: 1, Duration: 900, Kind: core.MotionPass, TargetID: "p2",
	}))
	require.NoError(t, s.Enqueue(run("r2", "p2", core.Vec2{X: 20}, core.Vec2{X: 20, Y: 10}, 1, 1200)))
	s.Advance(0)

	var pass core.RunAnimation
	for _, a := range s.InFlight() {
		if a.AnnotationID == "pa" {
			pass = a
		}
	}
	assert.Equal(t, core.Vec2{X: 20, Y: 10}, pass.End)
}

func TestEnqueueAnnotations_EndToEnd(t *testing.T) {
	store := newStore(player("p1", 0, 0), player("p2", 20, 0))
	var results []BatchResult
	s := newScheduler(t, store, func(r BatchResult) { results = append(results, r) })

	anns := []core.Annotation{
		core.Run{Line: core.Line{ID: "r1", Start: core.Vec2{X: 20}, End: core.Vec2{X: 20, Y: 10}, StartPlayer: "p2", Step: 1}},
		core.Pass{Line: core.Line{ID: "pa", Start: core.Vec2{}, End: core.Vec2{X: 20, Y: 10}, StartPlayer: "p1", EndPlayer: "p2", Step: 2}},
	}
	require.NoError(t, s.EnqueueAnnotations(anns))
	assert.Len(t, s.Frame().Annotations, 2)

	s.Advance(0)
	for i := 0; i < 100 && !s.Done(); i++ {
		s.Advance(100)
		if len(results) == 1 {
			assert.Len(t, s.Frame().Annotations, 1)
		}
	}
	require.True(t, s.Done())
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Step)
	assert.Equal(t, []string{"r1"}, results[0].ConsumedPreviews)
	assert.Equal(t, 2, results[1].Step)
	require.NotNil(t, results[1].Ball)
	assert.InDelta(t, 20, results[1].Ball.Pos.X, 1e-9)
	assert.InDelta(t, 10, results[1].Ball.Pos.Y, 1e-9)
	assert.Empty(t, s.Frame().Annotations)
}

func TestAdvance_SkipsUnresolvableMovement(t *testing.T) {
	store := newStore(player("p1", 0, 0))
	var results []BatchResult
	s := newScheduler(t, store, func(r BatchResult) { results = append(results, r) })

	require.NoError(t, s.Enqueue(run("bad", "nobody", core.Vec2{}, core.Vec2{X: 1}, 1, 500)))
	require.NoError(t, s.Enqueue(run("ok", "p1", core.Vec2{}, core.Vec2{X: 1}, 2, 500)))

	s.Advance(0)
	require.Len(t, results, 1)
	require.Len(t, results[0].Skipped, 1)
	assert.ErrorIs(t, results[0].Skipped[0].Err, core.ErrUnresolvableReference)
	assert.Equal(t, 2, s.Step())
	assert.Len(t, s.InFlight(), 1)
}

func TestAdvance_SkipsUnboundRunAndDribble(t *testing.T) {
	store := newStore(player("p1", 0, 0))
	var results []BatchResult
	s := newScheduler(t, store, func(r BatchResult) { results = append(results, r) })

	dribble := core.QueuedAnimation{
		AnnotationID: "d", Start: core.Vec2{X: 20}, End: core.Vec2{X: 30},
		Step: 1, Duration: 500, Kind: core.MotionDribble,
	}
	require.NoError(t, s.Enqueue(dribble))
	require.NoError(t, s.Enqueue(run("r", "", core.Vec2{X: 5}, core.Vec2{X: 8}, 1, 500)))

	s.Advance(0)
	s.Advance(5000)

	require.Len(t, results, 1)
	require.Len(t, results[0].Skipped, 2)
	for _, sk := range results[0].Skipped {
		assert.ErrorIs(t, sk.Err, core.ErrUnresolvableReference)
	}
	assert.Nil(t, results[0].Ball)
	ball := store.Ball()
	assert.Equal(t, core.Vec2{}, ball.Pos)
	assert.True(t, s.Done())
}

func TestAdvance_CurvedRunBulgesToSide(t *testing.T) {
	left := core.CurveLeft
	store := newStore(player("p1", 0, 0))
	s := newScheduler(t, store, nil)

	q := run("c", "p1", core.Vec2{}, core.Vec2{X: 10}, 1, 1000)
	q.Curve = &left
	require.NoError(t, s.Enqueue(q))
	s.Advance(0)
	f := s.Advance(500)

	p := framePlayer(t, f, "p1")
	assert.InDelta(t, 5, p.Pos.X, 1e-9)
	assert.InDelta(t, 2.5, p.Pos.Y, 1e-9)
}

func TestAdvance_DribbleWeavesBall(t *testing.T) {
	store := newStore(player("p1", 0, 0))
	s := newScheduler(t, store, nil)

	require.NoError(t, s.Enqueue(core.QueuedAnimation{
		PlayerID: "p1", AnnotationID: "d", Start: core.Vec2{}, End: core.Vec2{X: 10},
		Step: 1, Duration: 1000, Kind: core.MotionDribble,
	}))
	s.Advance(0)
	f := s.Advance(250)

	p := framePlayer(t, f, "p1")
	assert.InDelta(t, p.Pos.X, f.Ball.Pos.X, 1e-9)
	assert.Greater(t, math.Abs(f.Ball.Pos.Y), 0.05)
	assert.Equal(t, 0.0, f.Overlay.Elevation)
}

func TestEstimatedDuration(t *testing.T) {
	s := newScheduler(t, newStore(player("p1", 0, 0), player("p2", 1, 1)), nil)

	require.NoError(t, s.Enqueue(run("a", "p1", core.Vec2{}, core.Vec2{X: 1}, 1, 500)))
	require.NoError(t, s.Enqueue(run("b", "p2", core.Vec2{X: 1, Y: 1}, core.Vec2{X: 2}, 1, 800)))
	require.NoError(t, s.Enqueue(run("c", "p1", core.Vec2{X: 1}, core.Vec2{X: 2}, 2, 300)))
	assert.Equal(t, 1100.0, s.EstimatedDuration())

	s.Advance(0)
	s.Advance(200)
	assert.Equal(t, 900.0, s.EstimatedDuration())
}
