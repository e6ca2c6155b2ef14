// Package scheduler runs movement annotations as sequential batches. Every
// movement of a step starts at the same instant; the next step starts only
// once every movement of the current one has finished and been committed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tacticsboard/choreo/internal/kinematics"
	"github.com/tacticsboard/choreo/internal/ordering"
	"github.com/tacticsboard/choreo/internal/queue"
	"github.com/tacticsboard/choreo/internal/resolver"
	"github.com/tacticsboard/choreo/pkg/core"
)

// PoseStore is the committed pose state the scheduler reads and commits to.
type PoseStore interface {
	Player(id string) (core.PlayerPose, bool)
	Players() []core.PlayerPose
	Ball() core.BallPose
	CommitPlayer(p core.PlayerPose) bool
	CommitBall(b core.BallPose)
}

// Skip records a movement dropped from its batch.
type Skip struct {
	AnnotationID string
	Err          error
}

// BatchResult is reported once per completed batch.
type BatchResult struct {
	Step             int
	StartTime        float64
	EndTime          float64
	Committed        []core.PlayerPose
	Ghosts           []core.Ghost
	Ball             *core.BallPose
	ConsumedPreviews []string
	Skipped          []Skip
}

// Dependencies holds everything the scheduler needs from its owner.
type Dependencies struct {
	Poses PoseStore
	// Previews returns the editor's current preview ghosts. Optional.
	Previews func() []core.PreviewGhost
	Logger   *slog.Logger
	Timing   Timing
	// OnBatchComplete is called with the scheduler lock held; it must not
	// call back into the scheduler.
	OnBatchComplete func(BatchResult)
}

type flight struct {
	anim core.RunAnimation
	pre  core.PlayerPose
	has  bool
}

// Scheduler owns the step-ordered movement queue and the in-flight batch.
type Scheduler struct {
	deps Dependencies

	mu      sync.Mutex
	queue   *queue.Queue[core.QueuedAnimation]
	pending map[string]core.Annotation
	order   []string

	now        float64
	origin     float64
	step       int
	batchStart float64
	active     []flight
	done       []flight
	skipped    []Skip
	finished   []core.RunAnimation
	ghosts     []core.Ghost

	ball        core.BallPose
	ballTouched bool
	trail       []core.Vec2
	elevation   float64

	batches  metric.Int64Counter
	skips    metric.Int64Counter
	launched metric.Int64Counter
}

// New creates a Scheduler. Uses the global OTel meter for metrics.
func New(deps Dependencies) (*Scheduler, error) {
	if deps.Poses == nil {
		return nil, errors.New("scheduler: pose store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Timing == (Timing{}) {
		deps.Timing = DefaultTiming()
	}

	s := &Scheduler{
		deps: deps,
		queue: queue.NewOrdered(func(a, b core.QueuedAnimation) bool {
			return a.Step < b.Step
		}),
		pending: make(map[string]core.Annotation),
	}

	m := meter()
	var err error
	s.batches, err = m.Int64Counter(
		"scheduler.batches.completed",
		metric.WithDescription("Total movement batches committed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batches counter: %w", err)
	}
	s.skips, err = m.Int64Counter(
		"scheduler.movements.skipped",
		metric.WithDescription("Movements skipped because a player reference could not be resolved"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	s.launched, err = m.Int64Counter(
		"scheduler.movements.started",
		metric.WithDescription("Movements promoted to in-flight animations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}
	return s, nil
}

// Enqueue adds one movement. Its duration must be strictly positive, since a
// movement that never finishes would stall every later step.
func (s *Scheduler) Enqueue(q core.QueuedAnimation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueue(q)
}

func (s *Scheduler) enqueue(q core.QueuedAnimation) error {
	if !(q.Duration > 0) {
		return fmt.Errorf("%w: %s has %v ms", core.ErrInvalidDuration, q.AnnotationID, q.Duration)
	}
	if q.Step < 1 {
		q.Step = 1
	}
	if s.idle() {
		s.origin = s.now
	}
	s.queue.Push(q)
	return nil
}

// EnqueueAnnotations queues every annotation at its own step, classifying
// one-touch passes first. Invalid movements are reported and left out.
func (s *Scheduler) EnqueueAnnotations(anns []core.Annotation) error {
	oneTouch := ordering.OneTouchSet(anns)

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, a := range anns {
		id := a.Geometry().ID
		if err := s.enqueue(s.deps.Timing.Queued(a, oneTouch[id])); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := s.pending[id]; !ok {
			s.order = append(s.order, id)
		}
		s.pending[id] = a
	}
	return errors.Join(errs...)
}

// Advance moves the scheduler clock by deltaMs and returns the resulting frame.
func (s *Scheduler) Advance(deltaMs float64) core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deltaMs < 0 {
		deltaMs = 0
	}
	s.promote()
	s.now += deltaMs
	s.moveBall()
	s.settle()
	s.expireGhosts()
	return s.frame()
}

// Frame returns the current frame without advancing time.
func (s *Scheduler) Frame() core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame()
}

// Done reports whether nothing is queued or in flight.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle()
}

// Now returns the scheduler clock in ms.
func (s *Scheduler) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Step returns the step of the running batch, or 0 between batches.
func (s *Scheduler) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// InFlight returns the animations of the current batch that have not finished.
func (s *Scheduler) InFlight() []core.RunAnimation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RunAnimation, 0, len(s.active))
	for _, f := range s.active {
		out = append(out, f.anim)
	}
	return out
}

// Finished returns the animations of the most recently completed batch.
func (s *Scheduler) Finished() []core.RunAnimation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RunAnimation, len(s.finished))
	copy(out, s.finished)
	return out
}

// Queued returns the movements that have not started yet, in step order.
func (s *Scheduler) Queued() []core.QueuedAnimation {
	return s.queue.Items()
}

// Ghosts returns the live ghosts.
func (s *Scheduler) Ghosts() []core.Ghost {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Ghost, len(s.ghosts))
	copy(out, s.ghosts)
	return out
}

// EstimatedDuration returns the ms left until the queue drains.
func (s *Scheduler) EstimatedDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining()
}

// Reset drops all queued and in-flight movements without committing them.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Clear()
	s.pending = make(map[string]core.Annotation)
	s.order = nil
	s.step = 0
	s.active, s.done, s.skipped, s.finished = nil, nil, nil, nil
	s.trail = nil
	s.elevation = 0
	s.ballTouched = false
}

func (s *Scheduler) idle() bool {
	return s.step == 0 && len(s.active) == 0 && len(s.done) == 0 && s.queue.Empty()
}

// promote starts the next batch if none is running. Batches whose movements
// were all skipped complete immediately.
func (s *Scheduler) promote() {
	for s.step == 0 && !s.queue.Empty() {
		batch := s.queue.PopRun()
		s.step = batch[0].Step
		s.batchStart = s.now
		s.skipped = nil

		previews := []core.PreviewGhost(nil)
		if s.deps.Previews != nil {
			previews = s.deps.Previews()
		}
		in := resolver.Inputs{
			Live:     s.deps.Poses,
			Finished: s.finished,
			Batch:    batch,
			Previews: previews,
		}

		for _, q := range batch {
			start, end, err := in.Resolve(q)
			if err != nil {
				s.deps.Logger.Warn("Skipping movement", "annotation", q.AnnotationID, "step", q.Step, "error", err)
				s.skips.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", q.Kind.String())))
				s.skipped = append(s.skipped, Skip{AnnotationID: q.AnnotationID, Err: err})
				continue
			}
			anim := core.RunAnimation{
				PlayerID:     q.PlayerID,
				AnnotationID: q.AnnotationID,
				Start:        start,
				End:          end,
				StartTime:    s.now,
				Duration:     q.Duration,
				Kind:         q.Kind,
				TargetID:     q.TargetID,
				OneTouch:     q.OneTouch,
				Lofted:       q.Lofted,
			}
			if q.Curve != nil {
				c := kinematics.CurveControl(start, end, *q.Curve)
				anim.Control = &c
			}
			f := flight{anim: anim}
			if q.PlayerID != "" {
				f.pre, f.has = s.deps.Poses.Player(q.PlayerID)
			}
			s.active = append(s.active, f)
			s.launched.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", q.Kind.String())))
		}

		s.deps.Logger.Debug("Batch started", "step", s.step, "movements", len(s.active), "skipped", len(s.skipped), "at", s.now)
		if len(s.active) == 0 {
			s.complete()
		}
	}
}

// settle moves finished animations out of flight and completes the batch
// once none are left.
func (s *Scheduler) settle() {
	if s.step == 0 {
		return
	}
	still := s.active[:0]
	for _, f := range s.active {
		if f.anim.Finished(s.now) {
			s.done = append(s.done, f)
		} else {
			still = append(still, f)
		}
	}
	s.active = still
	if len(s.active) == 0 {
		s.complete()
		s.promote()
	}
}

func (s *Scheduler) complete() {
	res := BatchResult{
		Step:      s.step,
		StartTime: s.batchStart,
		EndTime:   s.now,
		Skipped:   s.skipped,
	}

	finished := make([]core.RunAnimation, 0, len(s.done))
	for _, f := range s.done {
		a := f.anim
		finished = append(finished, a)
		if a.Kind != core.MotionPass {
			res.ConsumedPreviews = append(res.ConsumedPreviews, a.AnnotationID)
		}
		if a.PlayerID == "" {
			continue
		}
		p, ok := s.deps.Poses.Player(a.PlayerID)
		if !ok {
			s.deps.Logger.Warn("Player vanished before commit", "player", a.PlayerID, "annotation", a.AnnotationID)
			continue
		}
		pre := p
		if f.has {
			pre = f.pre
		}
		p.Pos, p.Facing = endPose(a, p.Facing)
		s.deps.Poses.CommitPlayer(p)
		res.Committed = append(res.Committed, p)

		if pre.Pos.Dist(p.Pos) > 1e-9 {
			g := core.Ghost{
				PlayerID:  pre.ID,
				Team:      pre.Team,
				Number:    pre.Number,
				Pos:       pre.Pos,
				Facing:    pre.Facing,
				ExpiresAt: s.now + s.deps.Timing.GhostMs,
			}
			s.ghosts = append(s.ghosts, g)
			res.Ghosts = append(res.Ghosts, g)
		}
	}

	if s.ballTouched {
		s.deps.Poses.CommitBall(s.ball)
		b := s.ball
		res.Ball = &b
	}

	for _, a := range finished {
		delete(s.pending, a.AnnotationID)
	}
	for _, sk := range s.skipped {
		delete(s.pending, sk.AnnotationID)
	}

	s.finished = finished
	s.done = nil
	s.active = nil
	s.skipped = nil
	s.trail = nil
	s.elevation = 0
	s.ballTouched = false
	s.step = 0

	s.batches.Add(context.Background(), 1)
	s.deps.Logger.Debug("Batch complete", "step", res.Step, "committed", len(res.Committed), "ghosts", len(res.Ghosts), "at", s.now)
	if s.deps.OnBatchComplete != nil {
		s.deps.OnBatchComplete(res)
	}
}

func (s *Scheduler) expireGhosts() {
	kept := s.ghosts[:0]
	for _, g := range s.ghosts {
		if g.ExpiresAt > s.now {
			kept = append(kept, g)
		}
	}
	s.ghosts = kept
}

// remaining sums the rest of the running batch and the longest movement of
// every queued step.
func (s *Scheduler) remaining() float64 {
	var total float64
	if s.step != 0 {
		var end float64
		for _, f := range s.active {
			if e := f.anim.StartTime + f.anim.Duration; e > end {
				end = e
			}
		}
		if end > s.now {
			total += end - s.now
		}
	}
	longest := map[int]float64{}
	for _, q := range s.queue.Items() {
		if q.Duration > longest[q.Step] {
			longest[q.Step] = q.Duration
		}
	}
	for _, d := range longest {
		total += d
	}
	return total
}

func (s *Scheduler) frame() core.Frame {
	players := s.deps.Poses.Players()
	for _, f := range append(append([]flight(nil), s.active...), s.done...) {
		a := f.anim
		if a.PlayerID == "" {
			continue
		}
		i := core.FindPlayer(players, a.PlayerID)
		if i < 0 {
			continue
		}
		players[i].Pos, players[i].Facing = poseAt(a, s.now, players[i].Facing)
	}

	ball := s.deps.Poses.Ball()
	if s.ballTouched {
		ball = s.ball
	}

	var anns []core.VisibleAnnotation
	for _, id := range s.order {
		if a, ok := s.pending[id]; ok {
			anns = append(anns, core.VisibleAnnotation{Annotation: a, EndBound: true})
		}
	}

	var previews []core.PreviewGhost
	if s.deps.Previews != nil {
		previews = s.deps.Previews()
	}

	progress := 1.0
	if span := s.now - s.origin + s.remaining(); span > 0 && !s.idle() {
		progress = (s.now - s.origin) / span
	}

	ghosts := make([]core.Ghost, len(s.ghosts))
	copy(ghosts, s.ghosts)
	trail := make([]core.Vec2, len(s.trail))
	copy(trail, s.trail)

	return core.Frame{
		Time:        s.now,
		Players:     players,
		Ball:        ball,
		Annotations: anns,
		Overlay: core.Overlay{
			Ghosts:    ghosts,
			Previews:  previews,
			Trail:     trail,
			Elevation: s.elevation,
			Progress:  progress,
		},
	}
}
