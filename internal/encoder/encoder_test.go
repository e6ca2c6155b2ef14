package encoder

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/pkg/core"
)

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" GIF ")
	require.NoError(t, err)
	assert.Equal(t, FormatGIF, f)

	_, err = ParseFormat("mp4")
	assert.ErrorIs(t, err, core.ErrEncoderFailure)
}

func TestNew_RejectsBadFPS(t *testing.T) {
	_, err := New(FormatGIF, filepath.Join(t.TempDir(), "x.gif"), 0)
	assert.ErrorIs(t, err, core.ErrEncoderFailure)
}

func TestGIF_WritesAnimation(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip.gif")
	enc, err := New(FormatGIF, out, 30)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, enc.Append(solid(color.RGBA{R: uint8(60 * i), A: 0xff})))
	}
	require.NoError(t, enc.Close())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, anim.Image, 4)

	total := 0
	for _, d := range anim.Delay {
		total += d
	}
	assert.Equal(t, 13, total, "4 frames at 30fps is 13.3 centiseconds")

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file was renamed")
}

func TestGIF_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	enc, err := New(FormatGIF, filepath.Join(dir, "clip.gif"), 30)
	require.NoError(t, err)
	require.NoError(t, enc.Append(solid(color.RGBA{A: 0xff})))
	require.NoError(t, enc.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.ErrorIs(t, enc.Append(solid(color.RGBA{A: 0xff})), core.ErrEncoderFailure)
}

func TestGIF_MissingDirectory(t *testing.T) {
	_, err := NewGIF(filepath.Join(t.TempDir(), "nope", "clip.gif"), 30)
	assert.ErrorIs(t, err, core.ErrEncoderFailure)
}

func TestPNGSequence(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frames")
	enc, err := New(FormatPNG, out, 30)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, enc.Append(solid(color.RGBA{G: 0xff, A: 0xff})))
	}
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "nothing at the destination before Close")

	require.NoError(t, enc.Close())
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, FrameName(0), entries[0].Name())
	assert.NoError(t, enc.Abort(), "abort after close keeps the output")
	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestPNGSequence_Abort(t *testing.T) {
	dir := t.TempDir()
	enc, err := NewPNGSequence(filepath.Join(dir, "frames"))
	require.NoError(t, err)
	require.NoError(t, enc.Append(solid(color.RGBA{A: 0xff})))
	require.NoError(t, enc.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPNGSequence_ExistingDestination(t *testing.T) {
	dir := t.TempDir()
	_, err := NewPNGSequence(dir)
	assert.ErrorIs(t, err, core.ErrEncoderFailure)
}
