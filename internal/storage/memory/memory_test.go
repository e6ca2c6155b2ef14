// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/internal/config"
	"github.com/tacticsboard/choreo/internal/storage"
	v1 "github.com/tacticsboard/choreo/internal/storage/memory/export/v1"
	"github.com/tacticsboard/choreo/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

// Verify Backend implements storage.Exportable interface
var _ storage.Exportable = (*Backend)(nil)

func testRun() *core.ExportRun {
	return &core.ExportRun{
		Name:      "High Press: v2",
		Source:    "sequence",
		FPS:       30,
		StartTime: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func frame(i int, x float64) *core.FrameRecord {
	return &core.FrameRecord{
		Index:   i,
		Time:    float64(i) * 1000 / 30,
		Players: []core.PlayerPose{{ID: "p1", Team: core.TeamHome, Pos: core.Vec2{X: x}}},
		Ball:    core.BallPose{Radius: 0.35},
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestStartRun_AssignsIDs(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})

	r1, r2 := testRun(), testRun()
	require.NoError(t, b.StartRun(r1))
	require.NoError(t, b.EndRun(core.RunCompleted, 0))
	require.NoError(t, b.StartRun(r2))

	assert.Equal(t, uint(1), r1.ID)
	assert.Equal(t, uint(2), r2.ID)
}

func TestRecordFrame_WithoutRun(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.Error(t, b.RecordFrame(frame(0, 0)))
	assert.Error(t, b.EndRun(core.RunCompleted, 0))
}

func TestRecordFrame_Copies(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.StartRun(testRun()))

	f := frame(0, 1)
	require.NoError(t, b.RecordFrame(f))
	f.Index = 99

	frames := b.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, 0, frames[0].Index)
}

func TestEndRun_WritesGzipJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})

	require.NoError(t, b.StartRun(testRun()))
	for i := 0; i < 3; i++ {
		require.NoError(t, b.RecordFrame(frame(i, float64(i))))
	}
	require.NoError(t, b.EndRun(core.RunCompleted, 3))

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "High_Press__v2_20240115_103000.json.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var log v1.FrameLog
	require.NoError(t, json.NewDecoder(gz).Decode(&log))
	assert.Equal(t, 3, log.FrameCount)
	assert.Equal(t, "completed", log.Status)
	require.Len(t, log.Players, 1)
	assert.Equal(t, []float64{2, 0, 0}, log.Players[0].Positions[2])

	assert.Empty(t, b.Frames(), "frames are released after export")
}

func TestEndRun_WritesPlainJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})

	run := testRun()
	run.Name = ""
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.RecordFrame(frame(0, 0)))
	require.NoError(t, b.EndRun(core.RunCancelled, 1))

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "run_20240115_103000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var log v1.FrameLog
	require.NoError(t, json.Unmarshal(data, &log))
	assert.Equal(t, "cancelled", log.Status)
}
