package render

import (
	"math"
	"strings"

	"github.com/tacticsboard/choreo/internal/kinematics"
	"github.com/tacticsboard/choreo/pkg/core"
)

// Layer tells the viewer how to style a cell.
type Layer uint8

const (
	LayerGrass Layer = iota
	LayerLine
	LayerTrail
	LayerAnnotation
	LayerPreview
	LayerGhost
	LayerHome
	LayerAway
	LayerKeeper
	LayerBall
)

// Cell is one terminal character.
type Cell struct {
	Rune  rune
	Layer Layer
}

// Grid is a frame laid out as terminal cells, row-major.
type Grid struct {
	Cols  int
	Rows  int
	Cells []Cell
}

// Layout rasterizes f into a cols x rows grid covering pitch.
func Layout(f core.Frame, cols, rows int, pitch Pitch) Grid {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if pitch.Length <= 0 || pitch.Width <= 0 {
		pitch = DefaultPitch
	}
	g := Grid{Cols: cols, Rows: rows, Cells: make([]Cell, cols*rows)}
	for i := range g.Cells {
		g.Cells[i] = Cell{Rune: ' ', Layer: LayerGrass}
	}

	sx := float64(cols-1) / pitch.Length
	sy := float64(rows-1) / pitch.Width
	put := func(v core.Vec2, r rune, l Layer) {
		c := int(math.Round(v.X * sx))
		w := int(math.Round(v.Y * sy))
		if c < 0 || c >= cols || w < 0 || w >= rows {
			return
		}
		g.Cells[w*cols+c] = Cell{Rune: r, Layer: l}
	}

	for r := 0; r < rows; r++ {
		put(core.Vec2{X: pitch.Length / 2, Y: float64(r) / sy}, '|', LayerLine)
		put(core.Vec2{X: 0, Y: float64(r) / sy}, '|', LayerLine)
		put(core.Vec2{X: pitch.Length, Y: float64(r) / sy}, '|', LayerLine)
	}

	for _, a := range f.Annotations {
		l := a.Annotation.Geometry()
		var ctrl *core.Vec2
		if cr, ok := a.Annotation.(core.CurvedRun); ok {
			c := kinematics.CurveControl(l.Start, l.End, cr.Side)
			ctrl = &c
		}
		steps := int(math.Max(2, l.Start.Dist(l.End)/math.Max(1/sx, 1e-9)))
		for _, p := range kinematics.Sample(l.Start, l.End, ctrl, steps) {
			put(p, annotationRune(a.Annotation), LayerAnnotation)
		}
	}
	for _, p := range f.Overlay.Trail {
		put(p, '.', LayerTrail)
	}
	for _, p := range f.Overlay.Previews {
		put(p.Pos, '+', LayerPreview)
	}
	for _, gh := range f.Overlay.Ghosts {
		put(gh.Pos, 'x', LayerGhost)
	}
	for _, p := range f.Players {
		layer := LayerHome
		switch {
		case p.Goalkeeper:
			layer = LayerKeeper
		case p.Team == core.TeamAway:
			layer = LayerAway
		}
		put(p.Pos, playerRune(p), layer)
	}
	ball := 'o'
	if f.Overlay.Elevation > kinematics.AirborneThreshold {
		ball = 'O'
	}
	put(f.Ball.Pos, ball, LayerBall)
	return g
}

// At returns the cell at column c, row r.
func (g Grid) At(c, r int) Cell {
	return g.Cells[r*g.Cols+c]
}

// String renders the grid without styling.
func (g Grid) String() string {
	var b strings.Builder
	b.Grow((g.Cols + 1) * g.Rows)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			b.WriteRune(g.At(c, r).Rune)
		}
		if r < g.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func playerRune(p core.PlayerPose) rune {
	if p.Number > 0 {
		return rune('0' + p.Number%10)
	}
	if p.Team == core.TeamAway {
		return 'A'
	}
	return 'H'
}

func annotationRune(a core.Annotation) rune {
	switch a.(type) {
	case core.Pass:
		return '-'
	case core.Run, core.CurvedRun:
		return ':'
	case core.Dribble:
		return '~'
	default:
		return '?'
	}
}
