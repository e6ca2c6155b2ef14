package render

import (
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacticsboard/choreo/pkg/core"
)

func sampleFrame() core.Frame {
	return core.Frame{
		Players: []core.PlayerPose{
			{ID: "p1", Team: core.TeamHome, Number: 7, Pos: core.Vec2{X: 30, Y: 34}},
			{ID: "p2", Team: core.TeamAway, Pos: core.Vec2{X: 70, Y: 20}},
			{ID: "gk", Team: core.TeamHome, Number: 1, Pos: core.Vec2{X: 2, Y: 34}, Goalkeeper: true},
		},
		Ball: core.BallPose{Pos: core.Vec2{X: 31, Y: 34}, Radius: core.DefaultBallRadius},
		Annotations: []core.VisibleAnnotation{
			{Annotation: core.Pass{Line: core.Line{ID: "a", Start: core.Vec2{X: 30, Y: 34}, End: core.Vec2{X: 70, Y: 20}, Color: "#ff0000"}}},
			{Annotation: core.CurvedRun{Line: core.Line{ID: "b", Start: core.Vec2{X: 70, Y: 20}, End: core.Vec2{X: 80, Y: 40}}, Side: core.CurveRight}},
			{Annotation: core.Dribble{Line: core.Line{ID: "c", Start: core.Vec2{X: 30, Y: 34}, End: core.Vec2{X: 40, Y: 50}}}},
			{Annotation: core.Run{Line: core.Line{ID: "d", Start: core.Vec2{X: 50, Y: 50}, End: core.Vec2{X: 50, Y: 50}}}},
		},
		Overlay: core.Overlay{
			Ghosts:    []core.Ghost{{PlayerID: "p1", Pos: core.Vec2{X: 25, Y: 30}}},
			Previews:  []core.PreviewGhost{{PlayerID: "p2", Pos: core.Vec2{X: 80, Y: 40}}},
			Trail:     []core.Vec2{{X: 31, Y: 34}, {X: 35, Y: 33}},
			Elevation: 0.5,
		},
	}
}

func TestNewSurface_RejectsUnusableDimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 100},
		{"negative height", 100, -1},
		{"too large", MaxDimension + 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSurface(tt.w, tt.h, DefaultPitch)
			assert.ErrorIs(t, err, core.ErrCaptureUnsupported)
		})
	}
}

func TestSurface_Paint(t *testing.T) {
	s, err := NewSurface(320, 208, DefaultPitch)
	require.NoError(t, err)

	require.NoError(t, s.Paint(sampleFrame()))

	img := s.Image()
	assert.Equal(t, 320, img.Bounds().Dx())

	x, y := s.ToPixel(core.Vec2{X: 70, Y: 20})
	c := img.RGBAAt(int(x), int(y))
	assert.Greater(t, c.B, c.R, "away player is blue")

	corner := img.RGBAAt(0, 0)
	assert.Equal(t, grass, corner)
}

func TestSurface_PaintAfterRelease(t *testing.T) {
	s, err := NewSurface(64, 64, DefaultPitch)
	require.NoError(t, err)
	s.Release()
	assert.ErrorIs(t, s.Paint(core.Frame{}), core.ErrCaptureUnsupported)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
		ok   bool
	}{
		{"#ff8000", color.RGBA{R: 0xff, G: 0x80, A: 0xff}, true},
		{"#FfF", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, true},
		{"ff8000", color.RGBA{}, false},
		{"#12345", color.RGBA{}, false},
		{"#gg0000", color.RGBA{}, false},
		{"", color.RGBA{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseHexColor(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLayout(t *testing.T) {
	pitch := Pitch{Length: 100, Width: 50}
	f := core.Frame{
		Players: []core.PlayerPose{
			{ID: "p1", Number: 9, Pos: core.Vec2{X: 0, Y: 0}},
			{ID: "p2", Team: core.TeamAway, Pos: core.Vec2{X: 100, Y: 50}},
		},
		Ball: core.BallPose{Pos: core.Vec2{X: 50, Y: 25}},
	}

	g := Layout(f, 11, 6, pitch)
	require.Len(t, g.Cells, 66)

	assert.Equal(t, Cell{Rune: '9', Layer: LayerHome}, g.At(0, 0))
	assert.Equal(t, Cell{Rune: 'A', Layer: LayerAway}, g.At(10, 5))
	assert.Equal(t, 'o', g.At(5, 3).Rune)

	lines := strings.Split(g.String(), "\n")
	assert.Len(t, lines, 6)
	assert.Len(t, lines[0], 11)
}

func TestLayout_AirborneBall(t *testing.T) {
	f := sampleFrame()
	g := Layout(f, 40, 20, DefaultPitch)
	assert.Contains(t, g.String(), "O")
}
