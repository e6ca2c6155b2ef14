package export

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/internal/cache"
	"github.com/tacticsboard/choreo/internal/playback"
	"github.com/tacticsboard/choreo/internal/render"
	"github.com/tacticsboard/choreo/internal/scheduler"
	"github.com/tacticsboard/choreo/pkg/core"
)

type fakeEncoder struct {
	frames   int
	failAt   int
	closed   bool
	aborted  bool
	closeErr error
}

func (e *fakeEncoder) Append(image.Image) error {
	if e.failAt > 0 && e.frames+1 == e.failAt {
		return errors.New("disk full")
	}
	e.frames++
	return nil
}

func (e *fakeEncoder) Close() error {
	e.closed = true
	return e.closeErr
}

func (e *fakeEncoder) Abort() error {
	e.aborted = true
	return nil
}

func (e *fakeEncoder) Path() string { return "/out/clip.gif" }

type fakeRecorder struct {
	mu      sync.Mutex
	runs    []core.ExportRun
	frames  []core.FrameRecord
	status  core.RunStatus
	failRec bool
}

func (r *fakeRecorder) Init() error  { return nil }
func (r *fakeRecorder) Close() error { return nil }

func (r *fakeRecorder) StartRun(run *core.ExportRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.ID = uint(len(r.runs) + 1)
	r.runs = append(r.runs, *run)
	r.frames = nil
	return nil
}

func (r *fakeRecorder) RecordFrame(f *core.FrameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRec {
		return errors.New("recorder down")
	}
	r.frames = append(r.frames, *f)
	return nil
}

func (r *fakeRecorder) EndRun(status core.RunStatus, frames int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	return nil
}

func twoKeyframes() core.AnimationSequence {
	return core.AnimationSequence{
		Speed: 1,
		Keyframes: []core.Keyframe{
			{ID: "k0", Players: []core.PlayerPose{{ID: "p1", Pos: core.Vec2{X: 10, Y: 10}}}, Ball: core.BallPose{Radius: 0.35}},
			{ID: "k1", Players: []core.PlayerPose{{ID: "p1", Pos: core.Vec2{X: 60, Y: 40}}}, Ball: core.BallPose{Pos: core.Vec2{X: 20}, Radius: 0.35}, Duration: 1000},
		},
	}
}

func newDriver(t *testing.T, rec *fakeRecorder, onFinish func(Result)) *Driver {
	t.Helper()
	d, err := New(Dependencies{
		Canvas:   SurfaceFactory(render.DefaultPitch),
		Recorder: rec,
		OnFinish: onFinish,
	})
	require.NoError(t, err)
	return d
}

func TestEstimateFrames(t *testing.T) {
	assert.Equal(t, 31, EstimateFrames(1000, 30))
	assert.Equal(t, 61, EstimateFrames(1000, 60))
	assert.Equal(t, 16, EstimateFrames(500, 30))
	assert.Equal(t, 1, EstimateFrames(0, 30))
}

func TestSession_SequenceIsDeterministic(t *testing.T) {
	var previous []core.FrameRecord
	for run := 0; run < 3; run++ {
		rec := &fakeRecorder{}
		d := newDriver(t, rec, nil)

		m := playback.New(twoKeyframes(), nil)
		m.Play()
		enc := &fakeEncoder{}
		s, err := d.Start(Config{Name: "clip", Source: "sequence", FPS: 30, Width: 96, Height: 64}, m, enc)
		require.NoError(t, err)
		assert.Equal(t, 31, s.EstimatedFrames())

		res, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 31, res.Frames)
		assert.Equal(t, 31, enc.frames)
		assert.True(t, enc.closed)
		assert.False(t, enc.aborted)
		assert.Equal(t, core.RunCompleted, res.Status)
		assert.Equal(t, "/out/clip.gif", res.Path)
		assert.Equal(t, 1.0, s.Progress())
		assert.Equal(t, core.RunCompleted, rec.status)

		require.Len(t, rec.frames, 31)
		if previous != nil {
			assert.Equal(t, previous, rec.frames)
		}
		previous = rec.frames
	}
	assert.Equal(t, core.Vec2{X: 60, Y: 40}, previous[30].Players[0].Pos)
}

func TestSession_SchedulerSource(t *testing.T) {
	store := cache.NewPoseStore([]core.PlayerPose{{ID: "p1", Pos: core.Vec2{X: 10, Y: 10}}}, core.BallPose{})
	sched, err := scheduler.New(scheduler.Dependencies{Poses: store})
	require.NoError(t, err)
	require.NoError(t, sched.Enqueue(core.QueuedAnimation{
		PlayerID: "p1", AnnotationID: "r1", Start: core.Vec2{X: 10, Y: 10}, End: core.Vec2{X: 30, Y: 10},
		Step: 1, Duration: 500, Kind: core.MotionRun,
	}))

	rec := &fakeRecorder{}
	d := newDriver(t, rec, nil)
	enc := &fakeEncoder{}
	s, err := d.Start(Config{Name: "run", Source: "annotations", FPS: 30, Width: 96, Height: 64}, sched, enc)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, res.Frames)

	p, _ := store.Player("p1")
	assert.Equal(t, core.Vec2{X: 30, Y: 10}, p.Pos)
}

func TestStart_CaptureUnsupported(t *testing.T) {
	var results []Result
	d := newDriver(t, &fakeRecorder{}, func(r Result) { results = append(results, r) })
	m := playback.New(twoKeyframes(), nil)
	m.Play()
	enc := &fakeEncoder{}

	_, err := d.Start(Config{FPS: 30, Width: 0, Height: 64}, m, enc)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCaptureUnsupported)

	var exportErr *core.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, 0, exportErr.Frame)
	assert.True(t, enc.aborted)
	assert.Equal(t, 0, enc.frames)
	assert.Equal(t, 0.0, m.Progress(), "no frame work happened")
	assert.Empty(t, results)
}

func TestSession_Cancel(t *testing.T) {
	rec := &fakeRecorder{}
	d := newDriver(t, rec, nil)
	m := playback.New(twoKeyframes(), nil)
	m.Play()
	enc := &fakeEncoder{}

	s, err := d.Start(Config{FPS: 30, Width: 96, Height: 64}, m, enc)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		done, err := s.Step()
		require.NoError(t, err)
		require.False(t, done)
	}
	assert.InDelta(t, 5.0/31, s.Progress(), 1e-9)

	s.Cancel()
	done, err := s.Step()
	assert.True(t, done)
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.NotErrorIs(t, err, core.ErrEncoderFailure)
	assert.True(t, enc.aborted)
	assert.False(t, enc.closed)
	assert.Equal(t, 5, s.Frames())
	assert.Equal(t, core.RunCancelled, rec.status)
	assert.Empty(t, s.Result().Path)

	done, err = s.Step()
	assert.True(t, done)
	assert.ErrorIs(t, err, core.ErrCancelled)
}

func TestSession_ContextCancel(t *testing.T) {
	d := newDriver(t, &fakeRecorder{}, nil)
	m := playback.New(twoKeyframes(), nil)
	m.Play()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := d.Start(Config{FPS: 30, Width: 96, Height: 64}, m, &fakeEncoder{})
	require.NoError(t, err)

	res, err := s.Run(ctx)
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.Equal(t, 0, res.Frames)
}

func TestSession_EncoderFailure(t *testing.T) {
	var results []Result
	d := newDriver(t, &fakeRecorder{}, func(r Result) { results = append(results, r) })
	m := playback.New(twoKeyframes(), nil)
	m.Play()
	enc := &fakeEncoder{failAt: 3}

	s, err := d.Start(Config{FPS: 30, Width: 96, Height: 64}, m, enc)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrEncoderFailure)
	assert.NotErrorIs(t, err, core.ErrCancelled)
	assert.Equal(t, core.RunFailed, res.Status)
	assert.Equal(t, 2, res.Frames)
	assert.True(t, enc.aborted)
	require.Len(t, results, 1)
	assert.Equal(t, core.RunFailed, results[0].Status)
}

type flakyCanvas struct {
	painted int
	failAt  int
	img     *image.RGBA
}

func (c *flakyCanvas) Paint(core.Frame) error {
	if c.painted+1 == c.failAt {
		return errors.New("surface lost")
	}
	c.painted++
	return nil
}

func (c *flakyCanvas) Image() *image.RGBA { return c.img }
func (c *flakyCanvas) Release()           {}

func TestSession_PaintFailureMidExportIsHostFailure(t *testing.T) {
	canvas := &flakyCanvas{failAt: 4, img: image.NewRGBA(image.Rect(0, 0, 8, 8))}
	d, err := New(Dependencies{
		Canvas:   func(int, int) (Canvas, error) { return canvas, nil },
		Recorder: &fakeRecorder{},
	})
	require.NoError(t, err)
	m := playback.New(twoKeyframes(), nil)
	m.Play()
	enc := &fakeEncoder{}

	s, err := d.Start(Config{FPS: 30, Width: 8, Height: 8}, m, enc)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrEncoderFailure)
	assert.NotErrorIs(t, err, core.ErrCaptureUnsupported)

	var exportErr *core.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, 3, exportErr.Frame)
	assert.Equal(t, core.RunFailed, res.Status)
	assert.Equal(t, 3, enc.frames)
	assert.True(t, enc.aborted)
}

func TestSession_RecorderFailureIsNotFatal(t *testing.T) {
	rec := &fakeRecorder{failRec: true}
	d := newDriver(t, rec, nil)
	m := playback.New(twoKeyframes(), nil)
	m.Play()

	s, err := d.Start(Config{FPS: 10, Width: 96, Height: 64}, m, &fakeEncoder{})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, res.Frames)
	assert.False(t, res.Recorded)
}
