package encoder

import (
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/draw"
)

// GIF collects dithered frames and writes one animated GIF on Close.
type GIF struct {
	mu     sync.Mutex
	path   string
	fps    int
	pal    color.Palette
	anim   gif.GIF
	closed bool
}

// NewGIF prepares an animated GIF at path.
func NewGIF(path string, fps int) (*GIF, error) {
	dir := filepath.Dir(path)
	if st, err := os.Stat(dir); err != nil {
		return nil, failure("output directory", err)
	} else if !st.IsDir() {
		return nil, failure("output directory", errors.New(dir+" is not a directory"))
	}
	return &GIF{
		path: path,
		fps:  fps,
		pal:  palette.Plan9,
	}, nil
}

func (g *GIF) Path() string { return g.path }

// Append dithers img onto the palette and queues it with a delay that keeps
// the cumulative timing exact at the configured fps.
func (g *GIF) Append(img image.Image) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return failure("append", errors.New("encoder closed"))
	}

	b := img.Bounds()
	p := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), g.pal)
	draw.FloydSteinberg.Draw(p, p.Bounds(), img, b.Min)

	n := len(g.anim.Image)
	g.anim.Image = append(g.anim.Image, p)
	g.anim.Delay = append(g.anim.Delay, g.centis(n+1)-g.centis(n))
	return nil
}

func (g *GIF) centis(frames int) int {
	return int(math.Round(float64(frames) * 100 / float64(g.fps)))
}

// Close writes the animation to a temp file beside the destination and
// renames it into place.
func (g *GIF) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	if len(g.anim.Image) == 0 {
		return failure("close", errors.New("no frames"))
	}

	tmp, err := os.CreateTemp(filepath.Dir(g.path), "."+filepath.Base(g.path)+".*.tmp")
	if err != nil {
		return failure("create temp file", err)
	}
	if err := gif.EncodeAll(tmp, &g.anim); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return failure("encode", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return failure("close temp file", err)
	}
	if err := os.Rename(tmp.Name(), g.path); err != nil {
		os.Remove(tmp.Name())
		return failure("rename", err)
	}
	g.anim = gif.GIF{}
	return nil
}

// Abort drops the buffered frames. Nothing has touched the disk yet.
func (g *GIF) Abort() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.anim = gif.GIF{}
	return nil
}

// Frames returns the number of frames appended so far.
func (g *GIF) Frames() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.anim.Image)
}
