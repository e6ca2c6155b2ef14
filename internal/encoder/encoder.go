// Package encoder turns painted frames into video output. Output is written
// to a temporary location and only moved into place by a successful Close,
// so a cancelled or failed export never leaves a partial file behind.
package encoder

import (
	"fmt"
	"image"
	"strings"

	"github.com/tacticsboard/choreo/pkg/core"
)

// Encoder receives frames in order.
type Encoder interface {
	// Append adds one frame. The image may be reused by the caller after
	// Append returns.
	Append(img image.Image) error
	// Close finalizes the output and moves it to its destination.
	Close() error
	// Abort discards everything written so far. Safe to call more than once
	// and after Close.
	Abort() error
	// Path is the final destination.
	Path() string
}

// Format names an output format.
type Format string

const (
	FormatGIF Format = "gif"
	FormatPNG Format = "png"
)

// ParseFormat accepts "gif" or "png" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGIF:
		return FormatGIF, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", core.ErrEncoderFailure, s)
	}
}

// Ext returns the file extension for f, empty for directory outputs.
func (f Format) Ext() string {
	if f == FormatGIF {
		return ".gif"
	}
	return ""
}

// New opens an encoder of the given format writing to path.
func New(format Format, path string, fps int) (Encoder, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("%w: fps must be positive, got %d", core.ErrEncoderFailure, fps)
	}
	switch format {
	case FormatGIF:
		return NewGIF(path, fps)
	case FormatPNG:
		return NewPNGSequence(path)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", core.ErrEncoderFailure, format)
	}
}

func failure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrEncoderFailure, op, err)
}
