package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/internal/database"
	"github.com/tacticsboard/choreo/internal/model"
	"github.com/tacticsboard/choreo/internal/model/convert"
	"github.com/tacticsboard/choreo/internal/storage"
	"github.com/tacticsboard/choreo/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSqlite("")
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { require.NoError(t, b.Close()) })
	return b
}

func frame(i int, x float64) *core.FrameRecord {
	return &core.FrameRecord{
		Index: i,
		Time:  float64(i) * 100,
		Players: []core.PlayerPose{
			{ID: "p1", Team: core.TeamHome, Number: 9, Pos: core.Vec2{X: x, Y: 10}},
			{ID: "p2", Team: core.TeamAway, Number: 5, Pos: core.Vec2{X: 50, Y: 20}},
		},
		Ball:  core.BallPose{Pos: core.Vec2{X: x}, Radius: 0.5},
		Trail: []core.Vec2{{X: 0}, {X: x}},
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.Equal(t, defaultFlushInterval, b.deps.FlushInterval)
	assert.NotNil(t, b.deps.Logger)
}

func TestRecordFrame_WithoutRun(t *testing.T) {
	b := newTestBackend(t)
	assert.ErrorIs(t, b.RecordFrame(frame(0, 1)), errNoRun)
	assert.ErrorIs(t, b.EndRun(core.RunCompleted, 0), errNoRun)
}

func TestStartRun_AssignsID(t *testing.T) {
	b := newTestBackend(t)

	run := &core.ExportRun{Name: "first", FPS: 30, StartTime: time.Now()}
	require.NoError(t, b.StartRun(run))
	assert.NotZero(t, run.ID)

	var stored model.ExportRun
	require.NoError(t, b.DB().First(&stored, run.ID).Error)
	assert.Equal(t, "first", stored.Name)
	assert.Equal(t, "running", stored.Status)
}

func TestRecordFrame_QueuesUntilEndRun(t *testing.T) {
	b := newTestBackend(t)
	run := &core.ExportRun{Name: "queued", FPS: 10}
	require.NoError(t, b.StartRun(run))

	for i := 0; i < 3; i++ {
		require.NoError(t, b.RecordFrame(frame(i, float64(i))))
	}
	assert.Equal(t, 9, b.Pending())

	var count int64
	require.NoError(t, b.DB().Model(&model.BallState{}).Count(&count).Error)
	assert.Zero(t, count, "nothing is written before a flush")

	require.NoError(t, b.EndRun(core.RunCompleted, 3))
	assert.Zero(t, b.Pending())

	var stored model.ExportRun
	require.NoError(t, b.DB().First(&stored, run.ID).Error)
	assert.Equal(t, "completed", stored.Status)
	assert.Equal(t, uint(3), stored.FrameCount)
	require.NotNil(t, stored.EndTime)
	assert.Len(t, convert.Roster(stored), 2)

	var players []model.PlayerState
	require.NoError(t, b.DB().Where("export_run_id = ? AND frame_index = ?", run.ID, 2).Order("id").Find(&players).Error)
	var ball model.BallState
	require.NoError(t, b.DB().Where("export_run_id = ? AND frame_index = ?", run.ID, 2).First(&ball).Error)

	got := convert.FrameToCore(players, ball)
	want := *frame(2, 2)
	want.RunID = run.ID
	assert.Equal(t, want, got)
}

func TestEndRun_Cancelled(t *testing.T) {
	b := newTestBackend(t)
	run := &core.ExportRun{Name: "stopped"}
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.RecordFrame(frame(0, 0)))
	require.NoError(t, b.EndRun(core.RunCancelled, 1))

	var stored model.ExportRun
	require.NoError(t, b.DB().First(&stored, run.ID).Error)
	assert.Equal(t, "cancelled", stored.Status)

	// the run is closed; later frames are rejected
	assert.ErrorIs(t, b.RecordFrame(frame(1, 1)), errNoRun)
}
