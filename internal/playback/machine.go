// Package playback plays an AnimationSequence keyframe by keyframe.
//
// Machine has a single Advance(deltaMs) core. Live drives it from wall-clock
// timestamps; the export driver drives it with a fixed frame interval.
package playback

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tacticsboard/choreo/internal/keyframe"
	"github.com/tacticsboard/choreo/internal/kinematics"
	"github.com/tacticsboard/choreo/pkg/core"
)

// State of the playback machine.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// completionEpsilon absorbs the rounding of fixed-interval accumulation so
// that n steps of d/n ms complete a d ms transition.
const completionEpsilon = 1e-6

// Machine is the playback state machine. It is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	seq     core.AnimationSequence
	state   State
	index   int
	elapsed float64 // ms into the transition towards index+1, speed applied
	clock   float64
	frame   core.Frame
	logger  *slog.Logger
}

// New creates an idle machine showing the first keyframe of seq.
func New(seq core.AnimationSequence, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{logger: logger}
	m.Load(seq)
	return m
}

// Load replaces the sequence and stops playback.
func (m *Machine) Load(seq core.AnimationSequence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq.Speed = core.ClampSpeed(seq.Speed)
	m.seq = seq
	m.stop()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Index returns the keyframe the current transition starts from.
func (m *Machine) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Progress returns the progress of the current transition in [0,1].
func (m *Machine) Progress() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress()
}

// Speed returns the clamped speed multiplier.
func (m *Machine) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq.Speed
}

// SetSpeed changes the speed multiplier, clamped to [core.MinSpeed, core.MaxSpeed].
func (m *Machine) SetSpeed(s float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq.Speed = core.ClampSpeed(s)
}

// Len returns the number of keyframes.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seq.Keyframes)
}

// Play starts or resumes playback. At the last keyframe it restarts from the first.
func (m *Machine) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		return
	}
	if m.index >= len(m.seq.Keyframes)-1 {
		m.index = 0
		m.elapsed = 0
		m.clock = 0
		m.frame = m.still()
	}
	m.setState(Playing)
}

// Pause freezes a playing machine. It does nothing in any other state.
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		m.setState(Paused)
	}
}

// Stop returns to the first keyframe and goes idle. Safe from any state.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stop()
}

func (m *Machine) stop() {
	m.state = Idle
	m.index = 0
	m.elapsed = 0
	m.clock = 0
	m.frame = m.still()
}

// Seek jumps to keyframe i, keeping the current state.
func (m *Machine) Seek(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.seq.Keyframes) {
		return fmt.Errorf("%w: %d of %d", core.ErrKeyframeOutOfRange, i, len(m.seq.Keyframes))
	}
	m.index = i
	m.elapsed = 0
	m.clock = m.startOf(i)
	m.frame = m.still()
	return nil
}

// Advance moves playback forward by deltaMs of wall time and returns the frame.
// Only a playing machine moves; at most one keyframe boundary is crossed per call.
func (m *Machine) Advance(deltaMs float64) core.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Playing || deltaMs < 0 {
		return m.frame
	}
	last := len(m.seq.Keyframes) - 1
	if m.index >= last {
		m.setState(Idle)
		return m.frame
	}

	m.elapsed += deltaMs * m.seq.Speed
	dur := m.seq.Keyframes[m.index+1].Duration
	if m.elapsed >= dur-completionEpsilon {
		m.index++
		m.elapsed = 0
		m.clock = m.startOf(m.index)
		m.frame = m.still()
		if m.index == last {
			m.setState(Idle)
		}
		return m.frame
	}

	from, to := m.seq.Keyframes[m.index], m.seq.Keyframes[m.index+1]
	f := keyframe.Scene(from, to, kinematics.EaseInOutCubic(m.progress()))
	f.Time = m.startOf(m.index) + m.elapsed
	f.Overlay.Progress = m.overall(f.Time)
	m.clock = f.Time
	m.frame = f
	return f
}

// Frame returns the last computed frame.
func (m *Machine) Frame() core.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// Done reports whether the machine is not playing.
func (m *Machine) Done() bool {
	return m.State() != Playing
}

// EstimatedDuration returns the wall-clock ms left until the last keyframe.
func (m *Machine) EstimatedDuration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for i := m.index + 1; i < len(m.seq.Keyframes); i++ {
		total += m.seq.Keyframes[i].Duration
	}
	total -= m.elapsed
	if total < 0 {
		return 0
	}
	return total / m.seq.Speed
}

func (m *Machine) setState(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("Playback state changed", "from", m.state.String(), "to", s.String(), "keyframe", m.index)
	m.state = s
}

func (m *Machine) progress() float64 {
	if m.index+1 >= len(m.seq.Keyframes) {
		return 0
	}
	dur := m.seq.Keyframes[m.index+1].Duration
	if dur <= 0 {
		return 1
	}
	return kinematics.Clamp01(m.elapsed / dur)
}

// startOf is the sequence time, in authored ms, at which keyframe i is reached.
func (m *Machine) startOf(i int) float64 {
	var t float64
	for k := 1; k <= i && k < len(m.seq.Keyframes); k++ {
		t += m.seq.Keyframes[k].Duration
	}
	return t
}

func (m *Machine) overall(t float64) float64 {
	total := m.startOf(len(m.seq.Keyframes) - 1)
	if total <= 0 {
		return 1
	}
	return kinematics.Clamp01(t / total)
}

func (m *Machine) still() core.Frame {
	if len(m.seq.Keyframes) == 0 {
		return core.Frame{}
	}
	i := m.index
	if i >= len(m.seq.Keyframes) {
		i = len(m.seq.Keyframes) - 1
	}
	f := keyframe.Still(m.seq.Keyframes[i])
	f.Time = m.startOf(i)
	f.Overlay.Progress = m.overall(f.Time)
	return f
}
