// Package render paints frames. Surface rasterizes onto an off-screen RGBA
// image for export; Grid lays a frame out as terminal cells for the viewer.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/tacticsboard/choreo/internal/kinematics"
	"github.com/tacticsboard/choreo/pkg/core"
)

// MaxDimension bounds each side of an off-screen surface.
const MaxDimension = 8192

// Pitch is the playing area in world units. The origin is the top-left corner.
type Pitch struct {
	Length float64
	Width  float64
}

// DefaultPitch is a regulation pitch.
var DefaultPitch = Pitch{Length: 105, Width: 68}

var (
	grass      = color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	stripe     = color.RGBA{R: 0x33, G: 0x87, B: 0x37, A: 0xff}
	chalk      = color.RGBA{R: 0xf5, G: 0xf5, B: 0xf5, A: 0xff}
	homeColor  = color.RGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}
	awayColor  = color.RGBA{R: 0x19, G: 0x76, B: 0xd2, A: 0xff}
	keeper     = color.RGBA{R: 0xfb, G: 0xc0, B: 0x2d, A: 0xff}
	ballColor  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	shadow     = color.RGBA{A: 0x60}
	trailColor = fade(chalk, 0x70)
	defaultInk = map[core.Kind]color.RGBA{
		core.KindPass:      {R: 0xff, G: 0xeb, B: 0x3b, A: 0xff},
		core.KindRun:       {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		core.KindCurvedRun: {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		core.KindDribble:   {R: 0xff, G: 0x98, B: 0x00, A: 0xff},
	}
)

// Surface is an off-screen canvas mapped onto the pitch.
type Surface struct {
	img   *image.RGBA
	ras   *vector.Rasterizer
	pitch Pitch
	scale float64
	ox    float64
	oy    float64
	face  font.Face
}

// NewSurface allocates a width x height surface. Dimensions that cannot hold a
// frame fail with core.ErrCaptureUnsupported.
func NewSurface(width, height int, pitch Pitch) (*Surface, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: surface %dx%d", core.ErrCaptureUnsupported, width, height)
	}
	if pitch.Length <= 0 || pitch.Width <= 0 {
		pitch = DefaultPitch
	}

	margin := 0.04 * math.Min(float64(width), float64(height))
	scale := math.Min((float64(width)-2*margin)/pitch.Length, (float64(height)-2*margin)/pitch.Width)
	if scale <= 0 {
		return nil, fmt.Errorf("%w: surface %dx%d too small for pitch", core.ErrCaptureUnsupported, width, height)
	}

	return &Surface{
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		ras:   vector.NewRasterizer(width, height),
		pitch: pitch,
		scale: scale,
		ox:    (float64(width) - pitch.Length*scale) / 2,
		oy:    (float64(height) - pitch.Width*scale) / 2,
		face:  basicfont.Face7x13,
	}, nil
}

// Image returns the backing image. It is overwritten by the next Paint.
func (s *Surface) Image() *image.RGBA { return s.img }

// Bounds returns the pixel bounds.
func (s *Surface) Bounds() image.Rectangle { return s.img.Bounds() }

// Release drops the pixel buffers.
func (s *Surface) Release() {
	s.img = nil
	s.ras = nil
}

// Paint draws the whole frame, replacing previous content.
func (s *Surface) Paint(f core.Frame) error {
	if s.img == nil {
		return fmt.Errorf("%w: surface released", core.ErrCaptureUnsupported)
	}
	s.paintPitch()
	for _, g := range f.Overlay.Ghosts {
		s.paintMarker(g.Pos, g.Facing, fade(teamColor(g.Team, false), 0x50), "")
	}
	for _, p := range f.Overlay.Previews {
		s.strokeCircle(p.Pos, 1.0, 0.15, fade(chalk, 0x80))
	}
	for _, a := range f.Annotations {
		s.paintAnnotation(a)
	}
	if len(f.Overlay.Trail) > 1 {
		s.strokePolyline(f.Overlay.Trail, 0.15, trailColor)
	}
	for _, p := range f.Players {
		s.paintMarker(p.Pos, p.Facing, teamColor(p.Team, p.Goalkeeper), shirt(p))
	}
	s.paintBall(f.Ball, f.Overlay.Elevation)
	return nil
}

// ToPixel maps a pitch position to surface pixels.
func (s *Surface) ToPixel(v core.Vec2) (float32, float32) {
	return float32(s.ox + v.X*s.scale), float32(s.oy + v.Y*s.scale)
}

func (s *Surface) paintPitch() {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(grass), image.Point{}, draw.Src)

	bands := 10
	w := s.pitch.Length / float64(bands)
	for i := 0; i < bands; i += 2 {
		x := float64(i) * w
		s.fillPolygon([]core.Vec2{{X: x, Y: 0}, {X: x + w, Y: 0}, {X: x + w, Y: s.pitch.Width}, {X: x, Y: s.pitch.Width}}, stripe)
	}

	L, W := s.pitch.Length, s.pitch.Width
	lw := 0.12
	s.strokePolyline([]core.Vec2{{}, {X: L}, {X: L, Y: W}, {Y: W}, {}}, lw, chalk)
	s.strokeSegment(core.Vec2{X: L / 2}, core.Vec2{X: L / 2, Y: W}, lw, chalk)
	s.strokeCircle(core.Vec2{X: L / 2, Y: W / 2}, 9.15, lw, chalk)
	s.fillCircle(core.Vec2{X: L / 2, Y: W / 2}, 0.3, chalk)

	boxW := math.Min(40.32, W)
	for _, side := range []float64{0, L} {
		dir := 1.0
		if side == L {
			dir = -1
		}
		top, bot := (W-boxW)/2, (W+boxW)/2
		s.strokePolyline([]core.Vec2{
			{X: side, Y: top}, {X: side + dir*16.5, Y: top}, {X: side + dir*16.5, Y: bot}, {X: side, Y: bot},
		}, lw, chalk)
		six := math.Min(18.32, W)
		top, bot = (W-six)/2, (W+six)/2
		s.strokePolyline([]core.Vec2{
			{X: side, Y: top}, {X: side + dir*5.5, Y: top}, {X: side + dir*5.5, Y: bot}, {X: side, Y: bot},
		}, lw, chalk)
		s.fillCircle(core.Vec2{X: side + dir*11, Y: W / 2}, 0.25, chalk)
	}
}

func (s *Surface) paintMarker(pos core.Vec2, facing float64, c color.RGBA, label string) {
	const r = 1.1
	s.fillCircle(pos, r, c)
	s.strokeCircle(pos, r, 0.12, chalk)
	tip := pos.Add(core.Vec2{X: math.Cos(facing), Y: math.Sin(facing)}.Scale(r * 1.6))
	s.strokeSegment(pos.Add(core.Vec2{X: math.Cos(facing), Y: math.Sin(facing)}.Scale(r)), tip, 0.2, c)
	if label != "" {
		s.drawLabel(pos, label)
	}
}

func (s *Surface) paintBall(b core.BallPose, elevation float64) {
	r := b.Radius
	if r <= 0 {
		r = core.DefaultBallRadius
	}
	if elevation > kinematics.AirborneThreshold {
		s.fillCircle(b.Pos, r*1.1, shadow)
		lifted := b.Pos.Sub(core.Vec2{Y: elevation * 0.6})
		s.fillCircle(lifted, r*(1+elevation*0.08), ballColor)
		return
	}
	s.fillCircle(b.Pos, r, ballColor)
	spin := core.Vec2{X: math.Cos(b.RotX + b.RotY), Y: math.Sin(b.RotX + b.RotY)}.Scale(r * 0.6)
	s.fillCircle(b.Pos.Add(spin), r*0.3, color.RGBA{A: 0xff})
}

func (s *Surface) paintAnnotation(v core.VisibleAnnotation) {
	a := v.Annotation
	l := a.Geometry()
	c := ink(a)
	const w = 0.18

	switch ann := a.(type) {
	case core.Pass:
		s.strokeSegment(l.Start, l.End, w, c)
		s.arrowHead(l.Start, l.End, c)
		if ann.Lofted {
			mid := kinematics.LerpVec(l.Start, l.End, 0.5)
			s.strokeCircle(mid, 0.5, 0.1, c)
		}
	case core.Run:
		s.dashed(kinematics.Sample(l.Start, l.End, nil, 24), w, c)
		s.arrowHead(l.Start, l.End, c)
	case core.CurvedRun:
		ctrl := kinematics.CurveControl(l.Start, l.End, ann.Side)
		pts := kinematics.Sample(l.Start, l.End, &ctrl, 32)
		s.dashed(pts, w, c)
		s.arrowHead(pts[len(pts)-2], l.End, c)
	case core.Dribble:
		s.strokePolyline(zigzag(l.Start, l.End), w, c)
		s.arrowHead(l.Start, l.End, c)
	default:
		panic(fmt.Sprintf("render: unhandled annotation %T", a))
	}
}

func (s *Surface) arrowHead(from, to core.Vec2, c color.RGBA) {
	dir := to.Sub(from).Unit()
	if dir.IsZero() {
		return
	}
	back := to.Sub(dir.Scale(1.2))
	side := dir.Perp().Scale(0.6)
	s.fillPolygon([]core.Vec2{to, back.Add(side), back.Sub(side)}, c)
}

func (s *Surface) dashed(pts []core.Vec2, w float64, c color.RGBA) {
	for i := 0; i+1 < len(pts); i += 2 {
		s.strokeSegment(pts[i], pts[i+1], w, c)
	}
}

func (s *Surface) drawLabel(pos core.Vec2, label string) {
	x, y := s.ToPixel(pos)
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(chalk),
		Face: s.face,
	}
	width := d.MeasureString(label)
	d.Dot = fixed.Point26_6{
		X: fixed.Int26_6(int(x)<<6) - width/2,
		Y: fixed.Int26_6((int(y) + 4) << 6),
	}
	d.DrawString(label)
}

func (s *Surface) fillPolygon(pts []core.Vec2, c color.RGBA) {
	if len(pts) < 3 {
		return
	}
	b := s.img.Bounds()
	s.ras.Reset(b.Dx(), b.Dy())
	x, y := s.ToPixel(pts[0])
	s.ras.MoveTo(x, y)
	for _, p := range pts[1:] {
		x, y = s.ToPixel(p)
		s.ras.LineTo(x, y)
	}
	s.ras.ClosePath()
	s.ras.Draw(s.img, b, image.NewUniform(c), image.Point{})
}

func (s *Surface) fillCircle(center core.Vec2, r float64, c color.RGBA) {
	const n = 28
	pts := make([]core.Vec2, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / n
		pts[i] = center.Add(core.Vec2{X: math.Cos(a), Y: math.Sin(a)}.Scale(r))
	}
	s.fillPolygon(pts, c)
}

func (s *Surface) strokeCircle(center core.Vec2, r, w float64, c color.RGBA) {
	const n = 48
	pts := make([]core.Vec2, n+1)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / n
		pts[i] = center.Add(core.Vec2{X: math.Cos(a), Y: math.Sin(a)}.Scale(r))
	}
	s.strokePolyline(pts, w, c)
}

func (s *Surface) strokeSegment(a, b core.Vec2, w float64, c color.RGBA) {
	n := b.Sub(a).Unit().Perp().Scale(w / 2)
	if n.IsZero() {
		return
	}
	s.fillPolygon([]core.Vec2{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)}, c)
}

func (s *Surface) strokePolyline(pts []core.Vec2, w float64, c color.RGBA) {
	for i := 0; i+1 < len(pts); i++ {
		s.strokeSegment(pts[i], pts[i+1], w, c)
	}
}

func zigzag(start, end core.Vec2) []core.Vec2 {
	d := end.Sub(start)
	length := d.Len()
	if length == 0 {
		return nil
	}
	n := d.Unit().Perp()
	teeth := int(math.Max(2, math.Round(length/1.5)))
	pts := make([]core.Vec2, 0, teeth+1)
	for i := 0; i <= teeth; i++ {
		t := float64(i) / float64(teeth)
		p := kinematics.LerpVec(start, end, t)
		if i > 0 && i < teeth {
			off := 0.4
			if i%2 == 1 {
				off = -off
			}
			p = p.Add(n.Scale(off))
		}
		pts = append(pts, p)
	}
	return pts
}

func teamColor(t core.Team, goalkeeper bool) color.RGBA {
	if goalkeeper {
		return keeper
	}
	if t == core.TeamAway {
		return awayColor
	}
	return homeColor
}

func shirt(p core.PlayerPose) string {
	if p.Number > 0 {
		return fmt.Sprint(p.Number)
	}
	return ""
}

func fade(c color.RGBA, alpha uint8) color.RGBA {
	// premultiplied
	f := float64(alpha) / 255
	return color.RGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: alpha,
	}
}

func ink(a core.Annotation) color.RGBA {
	if c, ok := ParseHexColor(a.Geometry().Color); ok {
		return c
	}
	return defaultInk[a.Kind()]
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (color.RGBA, bool) {
	if len(s) == 0 || s[0] != '#' {
		return color.RGBA{}, false
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, false
	}
	var rgb [3]uint8
	for i := range rgb {
		hi, ok1 := nibble(hex[2*i])
		lo, ok2 := nibble(hex[2*i+1])
		if !ok1 || !ok2 {
			return color.RGBA{}, false
		}
		rgb[i] = hi<<4 | lo
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}, true
}

func nibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
