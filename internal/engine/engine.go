// Package engine owns one editor document and drives it: annotation batches
// through the scheduler, keyframe playback through the playback machine and
// video output through the export driver.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tacticsboard/choreo/internal/cache"
	"github.com/tacticsboard/choreo/internal/config"
	"github.com/tacticsboard/choreo/internal/document"
	"github.com/tacticsboard/choreo/internal/encoder"
	"github.com/tacticsboard/choreo/internal/export"
	"github.com/tacticsboard/choreo/internal/geo"
	"github.com/tacticsboard/choreo/internal/ordering"
	"github.com/tacticsboard/choreo/internal/parser"
	"github.com/tacticsboard/choreo/internal/playback"
	"github.com/tacticsboard/choreo/internal/render"
	"github.com/tacticsboard/choreo/internal/scheduler"
	"github.com/tacticsboard/choreo/internal/storage"
	"github.com/tacticsboard/choreo/pkg/core"
)

var (
	// ErrBusy is returned when a batch run or an export is already in progress.
	ErrBusy = errors.New("already running")
	// ErrNoExport is returned by CancelExport and WaitExport when nothing was started.
	ErrNoExport = errors.New("no export in progress")
)

// Mode is what the live view is currently driven by.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAnnotations
	ModeSequence
)

func (m Mode) String() string {
	switch m {
	case ModeAnnotations:
		return "annotations"
	case ModeSequence:
		return "sequence"
	default:
		return "idle"
	}
}

// Export sources.
const (
	SourceSequence    = "sequence"
	SourceAnnotations = "annotations"
)

// Dependencies holds everything the service needs
type Dependencies struct {
	Logger   *slog.Logger
	Timing   scheduler.Timing
	Export   config.ExportConfig
	Pitch    render.Pitch
	Recorder storage.Backend
	// Canvas defaults to raster surfaces of Pitch.
	Canvas export.CanvasFactory
	// OnExport is called once per finished export. Optional.
	OnExport func(export.Result)
}

// Service is the engine. It is safe for concurrent use.
type Service struct {
	deps   Dependencies
	driver *export.Driver
	doc    *document.Document
	sched  *scheduler.Scheduler
	play   *playback.Machine

	mu    sync.Mutex
	mode  Mode
	frame core.Frame

	expMu sync.Mutex
	exp   *exportRun
}

// exportRun is the latest export; it stays after finishing so its result
// can be reported.
type exportRun struct {
	name   string
	sess   *export.Session
	done   chan struct{}
	cancel context.CancelFunc
}

func (r *exportRun) running() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// NewService creates a service holding an empty document.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Pitch == (render.Pitch{}) {
		deps.Pitch = render.DefaultPitch
	}
	if deps.Timing == (scheduler.Timing{}) {
		deps.Timing = scheduler.DefaultTiming()
	}
	if deps.Export.FPS <= 0 {
		deps.Export.FPS = 30
	}
	if deps.Export.Width <= 0 || deps.Export.Height <= 0 {
		deps.Export.Width, deps.Export.Height = 1280, 832
	}
	if deps.Export.Format == "" {
		deps.Export.Format = string(encoder.FormatGIF)
	}
	if deps.Canvas == nil {
		deps.Canvas = export.SurfaceFactory(deps.Pitch)
	}

	s := &Service{deps: deps}

	var err error
	s.doc, err = document.New(document.Scene{Name: "untitled", Ball: core.BallPose{Radius: core.DefaultBallRadius}}, deps.Logger)
	if err != nil {
		return nil, err
	}
	s.driver, err = export.New(export.Dependencies{
		Canvas:   deps.Canvas,
		Recorder: deps.Recorder,
		Logger:   deps.Logger,
		OnFinish: s.exportFinished,
	})
	if err != nil {
		return nil, err
	}
	doc := s.doc
	s.sched, err = scheduler.New(scheduler.Dependencies{
		Poses:    doc.Poses(),
		Previews: doc.Previews,
		Logger:   deps.Logger,
		Timing:   deps.Timing,
		OnBatchComplete: func(r scheduler.BatchResult) {
			if n := doc.ConsumePreviews(r.ConsumedPreviews); n > 0 {
				deps.Logger.Debug("Preview ghosts consumed", "step", r.Step, "count", n)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	s.play = playback.New(doc.Sequence(), deps.Logger)
	s.frame = s.sched.Frame()
	return s, nil
}

// Document returns the edited document.
func (s *Service) Document() *document.Document {
	return s.doc
}

// Load replaces the document content and stops everything live.
func (s *Service) Load(scene document.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Reset()
	if err := s.doc.Load(scene); err != nil {
		return err
	}
	s.play.Load(s.doc.Sequence())
	s.mode = ModeIdle
	s.frame = s.sched.Frame()
	s.deps.Logger.Info("Scene loaded", "scene", scene.Name,
		"players", len(scene.Players), "annotations", len(scene.Annotations), "keyframes", len(scene.Keyframes))
	return nil
}

// LoadFile reads a YAML scene file and loads it.
func (s *Service) LoadFile(path string) error {
	scene, err := parser.LoadScene(path)
	if err != nil {
		return err
	}
	return s.Load(scene)
}

// SaveFile writes the document, with the live poses, to a YAML scene file.
func (s *Service) SaveFile(path string) error {
	return parser.SaveScene(path, s.doc.Scene())
}

// Order proposes a step order; with apply the steps are written to the
// document when the resolver produced some.
func (s *Service) Order(apply bool) (ordering.Result, bool) {
	var (
		res     ordering.Result
		changed bool
	)
	if apply {
		res, changed = s.doc.AutoOrder()
	} else {
		res = s.doc.ProposeOrder()
	}
	if res.Ambiguity != ordering.Unambiguous {
		s.deps.Logger.Debug("Auto-order skipped", "reason", res.Ambiguity.String())
	}
	return res, changed
}

// RunAnnotations queues every annotation on the scheduler and switches the
// live view to it. Playback is stopped.
func (s *Service) RunAnnotations() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sched.Done() {
		return fmt.Errorf("batch run: %w", ErrBusy)
	}
	anns := s.doc.Annotations()
	if len(anns) == 0 {
		return errors.New("no annotations to run")
	}
	s.play.Stop()
	err := s.sched.EnqueueAnnotations(anns)
	if !s.sched.Done() {
		s.mode = ModeAnnotations
	}
	return err
}

// Play starts or resumes keyframe playback.
func (s *Service) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.play.Len() < 2 {
		return fmt.Errorf("%w: need two keyframes to play, have %d", core.ErrKeyframeOutOfRange, s.play.Len())
	}
	if s.mode == ModeAnnotations {
		s.sched.Reset()
	}
	s.play.Play()
	s.mode = ModeSequence
	s.frame = s.play.Frame()
	return nil
}

// Pause freezes playback.
func (s *Service) Pause() {
	s.play.Pause()
}

// Stop stops playback and drops any queued or running movement. Committed
// poses stay where they are.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.play.Stop()
	s.sched.Reset()
	s.mode = ModeIdle
	s.frame = s.sched.Frame()
}

// Seek jumps playback to keyframe i.
func (s *Service) Seek(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.play.Seek(i); err != nil {
		return err
	}
	s.mode = ModeSequence
	s.frame = s.play.Frame()
	return nil
}

// SetSpeed sets the playback speed multiplier and returns the clamped value.
func (s *Service) SetSpeed(v float64) float64 {
	s.play.SetSpeed(v)
	return s.play.Speed()
}

// ResetPoses puts the scene back to its loaded poses.
func (s *Service) ResetPoses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Reset()
	s.doc.ResetPoses()
	s.mode = ModeIdle
	s.frame = s.sched.Frame()
}

// CaptureKeyframe appends the live poses as a keyframe and reloads playback.
func (s *Service) CaptureKeyframe(id string, durationMs float64) (core.Keyframe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.doc.CaptureKeyframe(id, durationMs)
	if err != nil {
		return k, err
	}
	s.play.Load(s.doc.Sequence())
	if s.mode == ModeSequence {
		s.mode = ModeIdle
	}
	return k, nil
}

// Advance moves whatever drives the live view by deltaMs.
func (s *Service) Advance(deltaMs float64) core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModeAnnotations:
		s.frame = s.sched.Advance(deltaMs)
		if s.sched.Done() && len(s.frame.Overlay.Ghosts) == 0 {
			s.mode = ModeIdle
		}
	case ModeSequence:
		s.frame = s.play.Advance(deltaMs)
		if s.play.State() == playback.Idle {
			s.mode = ModeIdle
		}
	default:
		s.frame = s.sched.Frame()
	}
	return s.frame
}

// Done reports whether the live view has nothing left to animate.
func (s *Service) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode == ModeIdle
}

// Frame returns the last live frame.
func (s *Service) Frame() core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Mode returns what currently drives the live view.
func (s *Service) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// LogContext describes the live state for every log record.
func (s *Service) LogContext() []slog.Attr {
	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()
	switch mode {
	case ModeSequence:
		return []slog.Attr{
			slog.String("mode", mode.String()),
			slog.String("playback", s.play.State().String()),
			slog.Int("keyframe", s.play.Index()),
		}
	case ModeAnnotations:
		return []slog.Attr{
			slog.String("mode", mode.String()),
			slog.Int("step", s.sched.Step()),
		}
	default:
		return nil
	}
}

// Status is a snapshot for the bridge and the viewer.
type Status struct {
	Scene       string        `json:"scene"`
	Mode        string        `json:"mode"`
	Playback    string        `json:"playback"`
	Keyframe    int           `json:"keyframe"`
	Keyframes   int           `json:"keyframes"`
	Speed       float64       `json:"speed"`
	Step        int           `json:"step"`
	Queued      int           `json:"queued"`
	Annotations int           `json:"annotations"`
	Previews    int           `json:"previews"`
	PathLength  float64       `json:"pathLength"`
	Export      *ExportStatus `json:"export,omitempty"`
}

// ExportStatus describes the running or last finished export.
type ExportStatus struct {
	Name      string  `json:"name"`
	Running   bool    `json:"running"`
	Frames    int     `json:"frames"`
	Estimated int     `json:"estimated"`
	Progress  float64 `json:"progress"`
	Status    string  `json:"status,omitempty"`
	Path      string  `json:"path,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Status returns a snapshot of the engine.
func (s *Service) Status() Status {
	anns := s.doc.Annotations()
	var length float64
	for _, a := range anns {
		length += geo.PathLength(a)
	}
	st := Status{
		Scene:       s.doc.Name(),
		Mode:        s.Mode().String(),
		Playback:    s.play.State().String(),
		Keyframe:    s.play.Index(),
		Keyframes:   s.play.Len(),
		Speed:       s.play.Speed(),
		Step:        s.sched.Step(),
		Queued:      len(s.sched.Queued()),
		Annotations: len(anns),
		Previews:    len(s.doc.Previews()),
		PathLength:  length,
	}
	st.Export = s.exportStatus()
	return st
}

// ExportRequest names what to export.
type ExportRequest struct {
	Name   string
	Source string // SourceSequence or SourceAnnotations
}

// StartExport begins an export in the background. Only one export runs at a
// time. The document is never modified by an export: an annotation export
// runs on a copy of the live poses.
func (s *Service) StartExport(req ExportRequest) error {
	s.expMu.Lock()
	defer s.expMu.Unlock()
	if s.exp != nil && s.exp.running() {
		return fmt.Errorf("export: %w", ErrBusy)
	}

	if req.Source == "" {
		req.Source = SourceSequence
	}
	if req.Name == "" {
		req.Name = exportName(s.doc.Name(), req.Source)
	}
	src, err := s.exportSource(req.Source)
	if err != nil {
		return err
	}

	format, err := encoder.ParseFormat(s.deps.Export.Format)
	if err != nil {
		return err
	}
	dir := s.deps.Export.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	enc, err := encoder.New(format, filepath.Join(dir, req.Name+format.Ext()), s.deps.Export.FPS)
	if err != nil {
		return err
	}

	sess, err := s.driver.Start(export.Config{
		Name:   req.Name,
		Source: req.Source,
		FPS:    s.deps.Export.FPS,
		Width:  s.deps.Export.Width,
		Height: s.deps.Export.Height,
	}, src, enc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &exportRun{name: req.Name, sess: sess, done: make(chan struct{}), cancel: cancel}
	s.exp = run
	go func() {
		defer close(run.done)
		defer cancel()
		_, _ = sess.Run(ctx)
	}()
	return nil
}

// WaitExport blocks until the latest export finishes and returns its result.
// A done ctx cancels the export.
func (s *Service) WaitExport(ctx context.Context) (export.Result, error) {
	s.expMu.Lock()
	run := s.exp
	s.expMu.Unlock()
	if run == nil {
		return export.Result{}, ErrNoExport
	}
	select {
	case <-run.done:
	case <-ctx.Done():
		run.cancel()
		<-run.done
	}
	res := run.sess.Result()
	return res, res.Err
}

// Export runs one export to completion.
func (s *Service) Export(ctx context.Context, req ExportRequest) (export.Result, error) {
	if err := s.StartExport(req); err != nil {
		return export.Result{}, err
	}
	return s.WaitExport(ctx)
}

// CancelExport cancels the running export at its next frame boundary.
func (s *Service) CancelExport() error {
	s.expMu.Lock()
	defer s.expMu.Unlock()
	if s.exp == nil || !s.exp.running() {
		return ErrNoExport
	}
	s.exp.sess.Cancel()
	return nil
}

func (s *Service) exportSource(source string) (export.Source, error) {
	switch source {
	case SourceSequence:
		seq := s.doc.Sequence()
		if len(seq.Keyframes) < 2 {
			return nil, fmt.Errorf("%w: need two keyframes to export, have %d", core.ErrKeyframeOutOfRange, len(seq.Keyframes))
		}
		m := playback.New(seq, s.deps.Logger)
		m.Play()
		return m, nil
	case SourceAnnotations:
		anns := s.doc.Annotations()
		if len(anns) == 0 {
			return nil, errors.New("no annotations to export")
		}
		live := s.doc.Poses()
		previews := newPreviewSet(s.doc.Previews())
		sched, err := scheduler.New(scheduler.Dependencies{
			Poses:           cache.NewPoseStore(live.Players(), live.Ball()),
			Previews:        previews.list,
			Logger:          s.deps.Logger,
			Timing:          s.deps.Timing,
			OnBatchComplete: func(r scheduler.BatchResult) { previews.consume(r.ConsumedPreviews) },
		})
		if err != nil {
			return nil, err
		}
		if err := sched.EnqueueAnnotations(anns); err != nil {
			s.deps.Logger.Warn("Some movements were left out of the export", "error", err)
		}
		return sched, nil
	default:
		return nil, fmt.Errorf("unknown export source %q", source)
	}
}

func (s *Service) exportFinished(res export.Result) {
	if s.deps.OnExport != nil {
		s.deps.OnExport(res)
	}
}

func (s *Service) exportStatus() *ExportStatus {
	s.expMu.Lock()
	run := s.exp
	s.expMu.Unlock()
	if run == nil {
		return nil
	}
	if run.running() {
		return &ExportStatus{
			Name:      run.name,
			Running:   true,
			Frames:    run.sess.Frames(),
			Estimated: run.sess.EstimatedFrames(),
			Progress:  run.sess.Progress(),
		}
	}
	res := run.sess.Result()
	st := &ExportStatus{
		Name:      run.name,
		Frames:    res.Frames,
		Estimated: run.sess.EstimatedFrames(),
		Progress:  run.sess.Progress(),
		Status:    string(res.Status),
		Path:      res.Path,
	}
	if res.Err != nil {
		st.Error = res.Err.Error()
	}
	return st
}

// exportName builds a file name from the scene name.
func exportName(scene, source string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, scene)
	if name == "" {
		name = "scene"
	}
	return name + "_" + source
}

// previewSet is the export's private copy of the preview ghosts.
type previewSet struct {
	mu    sync.Mutex
	items []core.PreviewGhost
}

func newPreviewSet(items []core.PreviewGhost) *previewSet {
	return &previewSet{items: items}
}

func (p *previewSet) list() []core.PreviewGhost {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.PreviewGhost(nil), p.items...)
}

func (p *previewSet) consume(ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.items[:0]
	for _, g := range p.items {
		if !drop[g.SourceAnnotationID] {
			kept = append(kept, g)
		}
	}
	p.items = kept
}
