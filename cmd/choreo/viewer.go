package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tacticsboard/choreo/internal/config"
	"github.com/tacticsboard/choreo/internal/engine"
	"github.com/tacticsboard/choreo/internal/playback"
	"github.com/tacticsboard/choreo/internal/render"
	"github.com/tacticsboard/choreo/pkg/core"
)

const speedStep = 0.25

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("22")).
			Padding(0, 1)

	pitchStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("28"))

	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	layerStyles = map[render.Layer]lipgloss.Style{
		render.LayerGrass:      lipgloss.NewStyle().Foreground(lipgloss.Color("22")),
		render.LayerLine:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		render.LayerTrail:      lipgloss.NewStyle().Foreground(lipgloss.Color("229")),
		render.LayerAnnotation: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		render.LayerPreview:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		render.LayerGhost:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		render.LayerHome:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		render.LayerAway:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		render.LayerKeeper:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226")),
		render.LayerBall:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
	}
)

// tickMsg is the live animation-frame callback.
type tickMsg time.Time

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type viewer struct {
	svc      *engine.Service
	live     *playback.Live
	pitch    render.Pitch
	interval time.Duration

	frame  core.Frame
	width  int
	height int
	err    error
}

func newViewer(svc *engine.Service, pitch render.Pitch, interval time.Duration) viewer {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return viewer{
		svc:      svc,
		live:     playback.NewLive(svc),
		pitch:    pitch,
		interval: interval,
		frame:    svc.Frame(),
	}
}

func (m viewer) Init() tea.Cmd {
	return tick(m.interval)
}

func (m viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		if m.svc.Done() {
			m.live.Reset()
			m.frame = m.svc.Frame()
		} else {
			m.frame = m.live.Tick(time.Time(msg))
		}
		return m, tick(m.interval)

	case tea.KeyMsg:
		m.err = nil
		st := m.svc.Status()
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if st.Playback == playback.Playing.String() {
				m.svc.Pause()
			} else {
				m.err = m.svc.Play()
			}
		case "s":
			m.svc.Stop()
		case "left":
			m.err = m.svc.Seek(st.Keyframe - 1)
		case "right":
			m.err = m.svc.Seek(st.Keyframe + 1)
		case "+", "=":
			m.svc.SetSpeed(st.Speed + speedStep)
		case "-":
			m.svc.SetSpeed(st.Speed - speedStep)
		case "r":
			m.err = m.svc.RunAnnotations()
		}
		m.frame = m.svc.Frame()
	}
	return m, nil
}

func (m viewer) View() string {
	if m.width == 0 {
		return "loading...\n"
	}
	st := m.svc.Status()

	header := headerStyle.Render(fmt.Sprintf("%s  %s/%s  keyframe %d/%d  step %d  x%.2f",
		st.Scene, st.Mode, st.Playback, st.Keyframe+1, st.Keyframes, st.Step, st.Speed))

	cols := m.width - 2
	rows := m.height - 5
	if rows < 4 {
		rows = 4
	}
	pitch := pitchStyle.Render(styledGrid(render.Layout(m.frame, cols, rows, m.pitch)))

	footer := helpStyle.Render("space play/pause  s stop  ←/→ seek  +/- speed  r run  q quit")
	if m.err != nil {
		footer = errorStyle.Render(m.err.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, pitch, footer)
}

// styledGrid renders runs of same-layer cells with one style call each.
func styledGrid(g render.Grid) string {
	var b strings.Builder
	for r := 0; r < g.Rows; r++ {
		var run strings.Builder
		layer := g.At(0, r).Layer
		for c := 0; c < g.Cols; c++ {
			cell := g.At(c, r)
			if cell.Layer != layer {
				b.WriteString(layerStyles[layer].Render(run.String()))
				run.Reset()
				layer = cell.Layer
			}
			run.WriteRune(cell.Rune)
		}
		b.WriteString(layerStyles[layer].Render(run.String()))
		if r < g.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	run := fs.Bool("run", false, "run the annotations right away instead of the keyframes")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("play: scene file required")
	}

	svc, err := loadScene(fs.Arg(0), false)
	if err != nil {
		return err
	}
	if *run {
		err = svc.RunAnnotations()
	} else if svc.Status().Keyframes >= 2 {
		err = svc.Play()
	}
	if err != nil {
		return err
	}

	v := newViewer(svc, pitchFromConfig(config.GetPitchConfig()), config.GetPlaybackConfig().TickInterval)
	_, err = tea.NewProgram(v, tea.WithAltScreen()).Run()
	return err
}
