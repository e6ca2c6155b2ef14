// Package document holds the editor-side scene: the live poses, the drawn
// movement annotations, the preview ghosts they own and the keyframe sequence.
package document

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tacticsboard/choreo/internal/cache"
	"github.com/tacticsboard/choreo/internal/ordering"
	"github.com/tacticsboard/choreo/pkg/core"
)

var (
	// ErrDuplicateAnnotation is returned when adding an annotation whose id is taken.
	ErrDuplicateAnnotation = errors.New("duplicate annotation id")
	// ErrAnnotationNotFound is returned for edits of an unknown annotation.
	ErrAnnotationNotFound = errors.New("annotation not found")
)

// Document is the editor's scene. It is safe for concurrent use.
type Document struct {
	mu          sync.RWMutex
	name        string
	poses       *cache.PoseStore
	initial     []core.PlayerPose
	initialBall core.BallPose
	annotations []core.Annotation
	previews    []core.PreviewGhost
	keyframes   []core.Keyframe
	speed       float64
	logger      *slog.Logger
}

// Scene is the full content of a document, as loaded from or saved to a file.
type Scene struct {
	Name        string
	Players     []core.PlayerPose
	Ball        core.BallPose
	Annotations []core.Annotation
	Keyframes   []core.Keyframe
	Speed       float64
}

// New creates a document from a scene. Annotations are validated the same
// way Add validates them; the first failure is returned.
func New(scene Scene, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Document{logger: logger, poses: cache.NewPoseStore(nil, core.BallPose{})}
	if err := d.Load(scene); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the document content.
func (d *Document) Load(scene Scene) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.name = scene.Name
	d.initial = append([]core.PlayerPose(nil), scene.Players...)
	d.initialBall = scene.Ball
	d.poses.Reset(scene.Players, scene.Ball)
	d.annotations = nil
	d.previews = nil
	for _, a := range scene.Annotations {
		if err := d.add(a); err != nil {
			return err
		}
	}
	d.keyframes = append([]core.Keyframe(nil), scene.Keyframes...)
	d.speed = scene.Speed
	return nil
}

// Name returns the scene name.
func (d *Document) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// Poses returns the live pose store. The batch scheduler commits into it.
func (d *Document) Poses() *cache.PoseStore {
	return d.poses
}

// ResetPoses puts every player and the ball back where the scene started and
// rebuilds the preview ghosts of all annotations.
func (d *Document) ResetPoses() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.poses.Reset(d.initial, d.initialBall)
	d.previews = d.previews[:0]
	for _, a := range d.annotations {
		d.spawnPreview(a)
	}
}

// Annotations returns a copy of the annotations in drawing order.
func (d *Document) Annotations() []core.Annotation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]core.Annotation(nil), d.annotations...)
}

// Annotation looks up one annotation by id.
func (d *Document) Annotation(id string) (core.Annotation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return d.annotations[i], true
}

// Previews returns a copy of the preview ghosts.
func (d *Document) Previews() []core.PreviewGhost {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]core.PreviewGhost(nil), d.previews...)
}

// Add appends an annotation. A run, curved run or dribble drawn from a player
// gets a preview ghost at its end point.
func (d *Document) Add(a core.Annotation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.add(a)
}

func (d *Document) add(a core.Annotation) error {
	l := a.Geometry()
	if l.ID == "" {
		return errors.New("annotation id is required")
	}
	if d.indexOf(l.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateAnnotation, l.ID)
	}
	d.annotations = append(d.annotations, a)
	d.spawnPreview(a)
	return nil
}

// Update replaces an annotation with the same id. Its preview ghost is
// dropped and, if the edited annotation still moves a player, recreated.
func (d *Document) Update(a core.Annotation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := a.Geometry().ID
	i := d.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrAnnotationNotFound, id)
	}
	d.annotations[i] = a
	d.dropPreviews(map[string]bool{id: true})
	d.spawnPreview(a)
	return nil
}

// Remove deletes an annotation together with its preview ghost.
func (d *Document) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrAnnotationNotFound, id)
	}
	d.annotations = append(d.annotations[:i], d.annotations[i+1:]...)
	d.dropPreviews(map[string]bool{id: true})
	return nil
}

// RemovePlayer deletes a player marker. Annotations that reference it stay;
// the scheduler reports them as unresolvable when they run.
func (d *Document) RemovePlayer(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	players := d.poses.Players()
	i := core.FindPlayer(players, id)
	if i < 0 {
		return false
	}
	players = append(players[:i], players[i+1:]...)
	d.poses.Reset(players, d.poses.Ball())
	kept := d.previews[:0]
	for _, p := range d.previews {
		if p.PlayerID != id {
			kept = append(kept, p)
		}
	}
	d.previews = kept
	return true
}

// SetStep assigns a step by hand. Once steps differ, auto-ordering stops
// touching the annotation set.
func (d *Document) SetStep(id string, step int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrAnnotationNotFound, id)
	}
	if step < 1 {
		step = 1
	}
	d.annotations[i] = core.WithStep(d.annotations[i], step)
	return nil
}

// ConsumePreviews removes the preview ghosts realised by the given
// annotations. It is the only way executed movements remove previews.
func (d *Document) ConsumePreviews(annotationIDs []string) int {
	if len(annotationIDs) == 0 {
		return 0
	}
	ids := make(map[string]bool, len(annotationIDs))
	for _, id := range annotationIDs {
		ids[id] = true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropPreviews(ids)
}

// ProposeOrder runs the dependency resolver without changing anything.
func (d *Document) ProposeOrder() ordering.Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return ordering.Resolve(d.annotations)
}

// AutoOrder applies the proposed steps when the resolver produced some.
// It reports whether the steps changed.
func (d *Document) AutoOrder() (ordering.Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := ordering.Resolve(d.annotations)
	if res.Steps == nil {
		d.logger.Debug("Auto-ordering skipped", "reason", res.Ambiguity.String(), "annotations", len(d.annotations))
		return res, false
	}
	changed := false
	for i, step := range res.Steps {
		if d.annotations[i].Geometry().Step != step {
			d.annotations[i] = core.WithStep(d.annotations[i], step)
			changed = true
		}
	}
	return res, changed
}

// CaptureKeyframe appends the current live poses and annotations as a new
// keyframe reached after durationMs.
func (d *Document) CaptureKeyframe(id string, durationMs float64) (core.Keyframe, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.keyframes) == 0 {
		durationMs = 0
	} else if !(durationMs > 0) {
		return core.Keyframe{}, fmt.Errorf("%w: %v", core.ErrInvalidDuration, durationMs)
	}
	k := core.Keyframe{
		ID:          id,
		Players:     d.poses.Players(),
		Ball:        d.poses.Ball(),
		Annotations: append([]core.Annotation(nil), d.annotations...),
		Duration:    durationMs,
	}
	d.keyframes = append(d.keyframes, k)
	return k, nil
}

// KeyframeCount returns the number of keyframes.
func (d *Document) KeyframeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.keyframes)
}

// Sequence returns the keyframe sequence for playback.
func (d *Document) Sequence() core.AnimationSequence {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return core.AnimationSequence{
		Keyframes: append([]core.Keyframe(nil), d.keyframes...),
		Speed:     d.speed,
	}
}

// Scene returns the document content with the live poses.
func (d *Document) Scene() Scene {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Scene{
		Name:        d.name,
		Players:     d.poses.Players(),
		Ball:        d.poses.Ball(),
		Annotations: append([]core.Annotation(nil), d.annotations...),
		Keyframes:   append([]core.Keyframe(nil), d.keyframes...),
		Speed:       d.speed,
	}
}

func (d *Document) indexOf(id string) int {
	for i, a := range d.annotations {
		if a.Geometry().ID == id {
			return i
		}
	}
	return -1
}

func (d *Document) spawnPreview(a core.Annotation) {
	l := a.Geometry()
	if !core.MovesPlayer(a) || l.StartPlayer == "" {
		return
	}
	d.previews = append(d.previews, core.PreviewGhost{
		PlayerID:           l.StartPlayer,
		Pos:                l.End,
		SourceAnnotationID: l.ID,
	})
}

func (d *Document) dropPreviews(ids map[string]bool) int {
	kept := d.previews[:0]
	for _, p := range d.previews {
		if !ids[p.SourceAnnotationID] {
			kept = append(kept, p)
		}
	}
	n := len(d.previews) - len(kept)
	d.previews = kept
	return n
}
