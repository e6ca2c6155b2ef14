package playback

import (
	"context"
	"time"

	"github.com/tacticsboard/choreo/pkg/core"
)

// Advancer is anything driven by elapsed milliseconds: the playback machine
// and the batch scheduler both are.
type Advancer interface {
	Advance(deltaMs float64) core.Frame
	Done() bool
}

// Live feeds an Advancer with deltas measured between real timestamps.
type Live struct {
	target Advancer
	last   time.Time
	// MaxDelta caps a single step so a stalled host does not jump a whole
	// transition at once. Zero means no cap.
	MaxDelta time.Duration
}

// NewLive creates a live driver for target.
func NewLive(target Advancer) *Live {
	return &Live{target: target, MaxDelta: 250 * time.Millisecond}
}

// Tick advances the target by the time since the previous tick. The first
// tick after Reset advances by zero.
func (l *Live) Tick(now time.Time) core.Frame {
	var delta time.Duration
	if !l.last.IsZero() {
		delta = now.Sub(l.last)
	}
	l.last = now
	if delta < 0 {
		delta = 0
	}
	if l.MaxDelta > 0 && delta > l.MaxDelta {
		delta = l.MaxDelta
	}
	return l.target.Advance(float64(delta) / float64(time.Millisecond))
}

// Reset forgets the previous timestamp, e.g. after a pause.
func (l *Live) Reset() {
	l.last = time.Time{}
}

// Run ticks every interval until the target is done or ctx is cancelled,
// handing each frame to sink.
func (l *Live) Run(ctx context.Context, interval time.Duration, sink func(core.Frame)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.Reset()
	sink(l.Tick(time.Now()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			sink(l.Tick(now))
			if l.target.Done() {
				return nil
			}
		}
	}
}
