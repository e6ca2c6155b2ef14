// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/tacticsboard/choreo/internal/config"
	"github.com/tacticsboard/choreo/pkg/core"
)

var errNoRun = errors.New("no export run in progress")

// Backend keeps the frames of the current run in memory and writes them
// to a JSON frame log when the run ends
type Backend struct {
	cfg    config.MemoryConfig
	run    *core.ExportRun
	frames []core.FrameRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg: cfg,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new export run
func (b *Backend) StartRun(run *core.ExportRun) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	run.ID = b.idCounter

	r := *run
	b.run = &r
	b.frames = make([]core.FrameRecord, 0, run.EstimatedFrames)
	return nil
}

// RecordFrame records one emitted frame
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return errNoRun
	}
	b.frames = append(b.frames, *f)
	return nil
}

// EndRun finalizes and exports the run
func (b *Backend) EndRun(status core.RunStatus, frames int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return errNoRun
	}
	err := b.exportJSON(status)
	b.run = nil
	b.frames = nil
	return err
}

// Frames returns a copy of the frames recorded for the current run
func (b *Backend) Frames() []core.FrameRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.FrameRecord, len(b.frames))
	copy(out, b.frames)
	return out
}

// GetExportedFilePath returns the path of the last written frame log
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
