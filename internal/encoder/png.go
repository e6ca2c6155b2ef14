package encoder

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
)

// PNGSequence writes one numbered PNG per frame into a directory.
type PNGSequence struct {
	mu     sync.Mutex
	path   string
	tmp    string
	n      int
	enc    png.Encoder
	closed bool
}

// NewPNGSequence prepares a frame directory at path. The directory must not exist yet.
func NewPNGSequence(path string) (*PNGSequence, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, failure("output", fmt.Errorf("%s already exists", path))
	}
	tmp, err := os.MkdirTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, failure("create temp dir", err)
	}
	return &PNGSequence{
		path: path,
		tmp:  tmp,
		enc:  png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

func (s *PNGSequence) Path() string { return s.path }

// FrameName is the file name of frame i inside the sequence directory.
func FrameName(i int) string {
	return fmt.Sprintf("frame_%05d.png", i)
}

func (s *PNGSequence) Append(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("append", errors.New("encoder closed"))
	}

	f, err := os.Create(filepath.Join(s.tmp, FrameName(s.n)))
	if err != nil {
		return failure("create frame", err)
	}
	if err := s.enc.Encode(f, img); err != nil {
		f.Close()
		return failure("encode frame", err)
	}
	if err := f.Close(); err != nil {
		return failure("close frame", err)
	}
	s.n++
	return nil
}

// Close renames the temp directory to the destination.
func (s *PNGSequence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.n == 0 {
		os.RemoveAll(s.tmp)
		return failure("close", errors.New("no frames"))
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.RemoveAll(s.tmp)
		return failure("rename", err)
	}
	s.tmp = ""
	return nil
}

// Abort removes the temp directory and everything in it.
func (s *PNGSequence) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.tmp == "" {
		return nil
	}
	err := os.RemoveAll(s.tmp)
	s.tmp = ""
	if err != nil {
		return failure("abort", err)
	}
	return nil
}
