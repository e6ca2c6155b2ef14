// Package monitor periodically snapshots the engine and the frame recorder
// backlog into a status file and, when configured, InfluxDB.
package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tacticsboard/choreo/internal/engine"
)

const defaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	// Status is required.
	Status func() engine.Status
	// Backlogs report queued work by name, e.g. the postgres recorder's
	// pending rows or the websocket recorder's dropped frames.
	Backlogs   map[string]func() int
	Logger     *slog.Logger
	StatusPath string
	Interval   time.Duration
	// WritePoint receives one point per snapshot. Optional.
	WritePoint func(*influxdb2_write.Point) error
}

// Snapshot is one status sample.
type Snapshot struct {
	Time     time.Time      `json:"time"`
	Engine   engine.Status  `json:"engine"`
	Backlogs map[string]int `json:"backlogs,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot samples the engine and the backlogs now.
func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{Time: time.Now(), Engine: s.deps.Status()}
	if len(s.deps.Backlogs) > 0 {
		snap.Backlogs = make(map[string]int, len(s.deps.Backlogs))
		for name, f := range s.deps.Backlogs {
			snap.Backlogs[name] = f()
		}
	}
	return snap
}

// Point converts a snapshot to the "engine_status" measurement.
func (snap Snapshot) Point() *influxdb2_write.Point {
	fields := map[string]interface{}{
		"keyframe":    snap.Engine.Keyframe,
		"step":        snap.Engine.Step,
		"queued":      snap.Engine.Queued,
		"annotations": snap.Engine.Annotations,
		"previews":    snap.Engine.Previews,
		"speed":       snap.Engine.Speed,
	}
	if exp := snap.Engine.Export; exp != nil && exp.Running {
		fields["export_progress"] = exp.Progress
	}
	for name, n := range snap.Backlogs {
		fields["backlog_"+name] = n
	}
	return influxdb2_write.NewPoint("engine_status",
		map[string]string{"scene": snap.Engine.Scene, "mode": snap.Engine.Mode},
		fields, snap.Time)
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.loop(s.stopChan)
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) loop(stop <-chan struct{}) {
	defer s.wg.Done()
	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "interval", s.deps.Interval)

	var statusFile *os.File
	if s.deps.StatusPath != "" {
		var err error
		statusFile, err = os.Create(s.deps.StatusPath)
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		} else {
			defer statusFile.Close()
		}
	}

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := s.Snapshot()
			if statusFile != nil {
				if err := writeStatus(statusFile, snap); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
			if s.deps.WritePoint != nil {
				if err := s.deps.WritePoint(snap.Point()); err != nil {
					logger.Error("Error writing status point", "error", err)
				}
			}
		}
	}
}

// writeStatus replaces the file content with the snapshot as indented JSON.
func writeStatus(f *os.File, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}
