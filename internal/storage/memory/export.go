// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/tacticsboard/choreo/internal/storage/memory/export/v1"
	"github.com/tacticsboard/choreo/pkg/core"
)

// exportJSON writes the run's frames to a (gzipped) JSON file
func (b *Backend) exportJSON(status core.RunStatus) error {
	export := v1.Build(&v1.RunData{
		Run:    *b.run,
		Status: status,
		Frames: b.frames,
	})

	// Build filename
	runName := strings.ReplaceAll(b.run.Name, " ", "_")
	runName = strings.ReplaceAll(runName, ":", "_")
	if runName == "" {
		runName = "run"
	}
	timestamp := b.run.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", runName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", runName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func writeJSON(path string, data v1.FrameLog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data v1.FrameLog) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer func() {
		if cerr := gzWriter.Close(); err == nil {
			err = cerr
		}
	}()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
