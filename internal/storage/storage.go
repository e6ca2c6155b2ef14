// internal/storage/storage.go
package storage

import "github.com/tacticsboard/choreo/pkg/core"

// Backend is the interface all frame recorders must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management (StartRun assigns run.ID)
	StartRun(run *core.ExportRun) error
	EndRun(status core.RunStatus, frames int) error

	// Frame recording
	RecordFrame(f *core.FrameRecord) error
}

// Exportable is an optional interface for recorders that write a file per run.
type Exportable interface {
	GetExportedFilePath() string
}

// Nop discards everything. It is used when recording is disabled.
type Nop struct{}

func (Nop) Init() error { return nil }
func (Nop) Close() error { return nil }
func (Nop) StartRun(*core.ExportRun) error { return nil }
func (Nop) EndRun(core.RunStatus, int) error { return nil }
func (Nop) RecordFrame(*core.FrameRecord) error { return nil }
