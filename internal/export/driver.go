// Package export replays a playback sequence or a scheduler run on virtual
// time and feeds every frame to an encoder.
//
// A Session emits exactly one frame per Step, so the caller keeps control
// between frames and may cancel at any frame boundary.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tacticsboard/choreo/internal/encoder"
	"github.com/tacticsboard/choreo/internal/storage"
	"github.com/tacticsboard/choreo/pkg/core"
)

// Source is an engine driven by elapsed milliseconds. Both the playback
// machine and the batch scheduler satisfy it.
type Source interface {
	Advance(deltaMs float64) core.Frame
	Frame() core.Frame
	Done() bool
	EstimatedDuration() float64
}

// Canvas is an off-screen surface.
type Canvas interface {
	Paint(f core.Frame) error
	Image() *image.RGBA
	Release()
}

// CanvasFactory allocates a canvas or fails with core.ErrCaptureUnsupported.
type CanvasFactory func(width, height int) (Canvas, error)

// Config describes one export.
type Config struct {
	Name   string
	Source string // label recorded with the run: "sequence" or "annotations"
	FPS    int
	Width  int
	Height int
}

// Interval is the virtual time between frames in ms.
func (c Config) Interval() float64 {
	return 1000 / float64(c.FPS)
}

// Result summarises a finished export.
type Result struct {
	RunID    uint
	Name     string
	Path     string
	Frames   int
	FPS      int
	Status   core.RunStatus
	Elapsed  time.Duration
	Err      error
	Recorded bool
}

// Dependencies holds what the driver needs
type Dependencies struct {
	Canvas   CanvasFactory
	Recorder storage.Backend
	Logger   *slog.Logger
	// OnFinish is called once per session with its result. Optional.
	OnFinish func(Result)
}

// Driver starts export sessions.
type Driver struct {
	deps    Dependencies
	emitted metric.Int64Counter
	runs    metric.Int64Counter
	// recorder calls are serialized across sessions
	recMu sync.Mutex
}

// New creates a Driver. Uses the global OTel meter for metrics.
func New(deps Dependencies) (*Driver, error) {
	if deps.Canvas == nil {
		return nil, errors.New("export: canvas factory is required")
	}
	if deps.Recorder == nil {
		deps.Recorder = storage.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	d := &Driver{deps: deps}
	m := meter()
	var err error
	d.emitted, err = m.Int64Counter(
		"export.frames.emitted",
		metric.WithDescription("Frames painted and appended to an encoder"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	d.runs, err = m.Int64Counter(
		"export.runs",
		metric.WithDescription("Export sessions by final status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}
	return d, nil
}

// EstimateFrames returns the number of frames a source of durationMs yields at fps.
func EstimateFrames(durationMs float64, fps int) int {
	if fps <= 0 || durationMs <= 0 {
		return 1
	}
	interval := 1000 / float64(fps)
	return int(math.Ceil(durationMs/interval-1e-9)) + 1
}

// Start prepares a session. The canvas is allocated before any frame work,
// so an unusable surface fails here with core.ErrCaptureUnsupported and the
// encoder is aborted.
func (d *Driver) Start(cfg Config, src Source, enc encoder.Encoder) (*Session, error) {
	if cfg.FPS <= 0 {
		enc.Abort()
		return nil, &core.ExportError{Kind: core.ErrCaptureUnsupported, Err: fmt.Errorf("fps must be positive, got %d", cfg.FPS)}
	}
	canvas, err := d.deps.Canvas(cfg.Width, cfg.Height)
	if err != nil {
		enc.Abort()
		return nil, &core.ExportError{Kind: core.ErrCaptureUnsupported, Err: err}
	}

	s := &Session{
		d:         d,
		cfg:       cfg,
		src:       src,
		enc:       enc,
		canvas:    canvas,
		estimated: EstimateFrames(src.EstimatedDuration(), cfg.FPS),
		started:   time.Now(),
		logger:    d.deps.Logger.With("export", cfg.Name),
	}

	s.run = core.ExportRun{
		Name:            cfg.Name,
		Source:          cfg.Source,
		FPS:             cfg.FPS,
		Width:           cfg.Width,
		Height:          cfg.Height,
		EstimatedFrames: s.estimated,
		StartTime:       s.started,
	}
	d.recMu.Lock()
	err = d.deps.Recorder.StartRun(&s.run)
	d.recMu.Unlock()
	if err != nil {
		s.logger.Warn("Frame recorder unavailable, continuing without it", "error", err)
	} else {
		s.recording = true
	}

	s.logger.Info("Export started", "fps", cfg.FPS, "width", cfg.Width, "height", cfg.Height, "estimatedFrames", s.estimated)
	return s, nil
}

// Session is one export in progress.
type Session struct {
	d      *Driver
	cfg    Config
	src    Source
	enc    encoder.Encoder
	canvas Canvas
	logger *slog.Logger

	run       core.ExportRun
	recording bool
	estimated int
	started   time.Time

	mu        sync.Mutex
	emitted   int
	finished  bool
	result    Result
	cancelled atomic.Bool
}

// Cancel requests cancellation. It takes effect at the next frame boundary.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Progress returns frames emitted over the estimate, in [0,1].
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished && s.result.Status == core.RunCompleted {
		return 1
	}
	return math.Min(1, float64(s.emitted)/float64(s.estimated))
}

// Frames returns the number of frames emitted so far.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// EstimatedFrames is the frame count expected when the session started.
func (s *Session) EstimatedFrames() int { return s.estimated }

// Step emits one frame. It returns true once the session has finished, along
// with the terminal error if it did not complete.
func (s *Session) Step() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return true, s.result.Err
	}
	if s.cancelled.Load() {
		return true, s.finish(core.RunCancelled, &core.ExportError{Kind: core.ErrCancelled, Frame: s.emitted})
	}

	var f core.Frame
	if s.emitted == 0 {
		f = s.src.Frame()
	} else {
		f = s.src.Advance(s.cfg.Interval())
	}

	if err := s.canvas.Paint(f); err != nil {
		return true, s.finish(core.RunFailed, &core.ExportError{Kind: core.ErrEncoderFailure, Frame: s.emitted, Err: err})
	}
	if err := s.enc.Append(s.canvas.Image()); err != nil {
		return true, s.finish(core.RunFailed, &core.ExportError{Kind: core.ErrEncoderFailure, Frame: s.emitted, Err: err})
	}
	s.record(f)
	s.emitted++
	s.d.emitted.Add(context.Background(), 1)

	if !s.src.Done() {
		return false, nil
	}
	if err := s.enc.Close(); err != nil {
		return true, s.finish(core.RunFailed, &core.ExportError{Kind: core.ErrEncoderFailure, Frame: s.emitted, Err: err})
	}
	return true, s.finish(core.RunCompleted, nil)
}

// Run steps until the session finishes or ctx is done. A done context
// cancels the session at the next frame boundary.
func (s *Session) Run(ctx context.Context) (Result, error) {
	for {
		if ctx.Err() != nil {
			s.Cancel()
		}
		done, err := s.Step()
		if done {
			return s.Result(), err
		}
	}
}

// Result returns the outcome. It is only meaningful once Step reported done.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) record(f core.Frame) {
	if !s.recording {
		return
	}
	rec := core.NewFrameRecord(s.run.ID, s.emitted, f)
	s.d.recMu.Lock()
	err := s.d.deps.Recorder.RecordFrame(&rec)
	s.d.recMu.Unlock()
	if err != nil {
		s.logger.Warn("Failed to record frame, recording disabled for this export", "frame", s.emitted, "error", err)
		s.recording = false
	}
}

func (s *Session) finish(status core.RunStatus, err error) error {
	if status != core.RunCompleted {
		if aerr := s.enc.Abort(); aerr != nil {
			s.logger.Warn("Failed to discard partial output", "error", aerr)
		}
	}
	s.canvas.Release()
	s.finished = true

	recorded := false
	if s.recording {
		s.d.recMu.Lock()
		rerr := s.d.deps.Recorder.EndRun(status, s.emitted)
		s.d.recMu.Unlock()
		if rerr != nil {
			s.logger.Warn("Failed to finalize frame recording", "error", rerr)
		} else {
			recorded = true
		}
	}

	s.result = Result{
		RunID:    s.run.ID,
		Name:     s.cfg.Name,
		Frames:   s.emitted,
		FPS:      s.cfg.FPS,
		Status:   status,
		Elapsed:  time.Since(s.started),
		Err:      err,
		Recorded: recorded,
	}
	if status == core.RunCompleted {
		s.result.Path = s.enc.Path()
	}

	s.d.runs.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", string(status))))
	if err != nil {
		s.logger.Warn("Export stopped", "status", status, "frames", s.emitted, "error", err)
	} else {
		s.logger.Info("Export complete", "frames", s.emitted, "path", s.result.Path, "elapsed", s.result.Elapsed)
	}
	if s.d.deps.OnFinish != nil {
		s.d.deps.OnFinish(s.result)
	}
	return err
}
