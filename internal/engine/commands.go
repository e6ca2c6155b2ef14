package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tacticsboard/choreo/internal/dispatcher"
	"github.com/tacticsboard/choreo/internal/geo"
	"github.com/tacticsboard/choreo/internal/parser"
	"github.com/tacticsboard/choreo/pkg/core"
)

// noPlayer marks an unbound endpoint in :ADD: arguments.
const noPlayer = "-"

// RegisterCommands binds the bridge commands to the service.
func (s *Service) RegisterCommands(d *dispatcher.Dispatcher) {
	d.Register(":LOAD:", func(e dispatcher.Event) (any, error) {
		path, err := parser.ArgString(e.Args, 0)
		if err != nil {
			return nil, err
		}
		if err := s.LoadFile(path); err != nil {
			return nil, err
		}
		return s.doc.Name(), nil
	}, dispatcher.Logged())

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		path, err := parser.ArgString(e.Args, 0)
		if err != nil {
			return nil, err
		}
		return path, s.SaveFile(path)
	}, dispatcher.Logged())

	d.Register(":ORDER:", func(e dispatcher.Event) (any, error) {
		apply := parser.OptString(e.Args, 0, "") == "auto"
		res, changed := s.Order(apply)
		out := struct {
			Steps     map[string]int `json:"steps,omitempty"`
			Ambiguity string         `json:"ambiguity"`
			Changed   bool           `json:"changed"`
		}{Steps: res.StepsByID(), Ambiguity: res.Ambiguity.String(), Changed: changed}
		return marshal(out)
	}, dispatcher.Logged())

	d.Register(":ADD:", func(e dispatcher.Event) (any, error) {
		a, err := annotationFromArgs(e.Args)
		if err != nil {
			return nil, err
		}
		return a.Geometry().ID, s.doc.Add(a)
	}, dispatcher.Logged())

	d.Register(":REMOVE:", func(e dispatcher.Event) (any, error) {
		id, err := parser.ArgString(e.Args, 0)
		if err != nil {
			return nil, err
		}
		return id, s.doc.Remove(id)
	}, dispatcher.Logged())

	d.Register(":KEYFRAME:", func(e dispatcher.Event) (any, error) {
		id, err := parser.ArgString(e.Args, 0)
		if err != nil {
			return nil, err
		}
		dur, err := parser.ArgFloat(e.Args, 1)
		if err != nil {
			return nil, err
		}
		k, err := s.CaptureKeyframe(id, dur)
		if err != nil {
			return nil, err
		}
		return k.ID, nil
	}, dispatcher.Logged())

	d.Register(":RUN:", func(e dispatcher.Event) (any, error) {
		return "running", s.RunAnnotations()
	}, dispatcher.Logged())

	d.Register(":PLAY:", func(e dispatcher.Event) (any, error) {
		return "playing", s.Play()
	}, dispatcher.Logged())

	d.Register(":PAUSE:", func(e dispatcher.Event) (any, error) {
		s.Pause()
		return "paused", nil
	})

	d.Register(":STOP:", func(e dispatcher.Event) (any, error) {
		s.Stop()
		return "stopped", nil
	})

	d.Register(":RESET:", func(e dispatcher.Event) (any, error) {
		s.ResetPoses()
		return "reset", nil
	})

	d.Register(":SEEK:", func(e dispatcher.Event) (any, error) {
		i, err := parser.ArgInt(e.Args, 0)
		if err != nil {
			return nil, err
		}
		return i, s.Seek(i)
	}, dispatcher.Logged())

	d.Register(":SPEED:", func(e dispatcher.Event) (any, error) {
		v, err := parser.ArgFloat(e.Args, 0)
		if err != nil {
			return nil, err
		}
		return strconv.FormatFloat(s.SetSpeed(v), 'f', -1, 64), nil
	})

	// The export runs in the background; :STATUS: reports its progress.
	d.Register(":EXPORT:", func(e dispatcher.Event) (any, error) {
		req := ExportRequest{
			Source: parser.OptString(e.Args, 0, SourceSequence),
			Name:   parser.OptString(e.Args, 1, ""),
		}
		if err := s.StartExport(req); err != nil {
			return nil, err
		}
		return "exporting", nil
	}, dispatcher.Logged())

	d.Register(":CANCEL:", func(e dispatcher.Event) (any, error) {
		return "cancelling", s.CancelExport()
	}, dispatcher.Logged())

	d.Register(":WAIT:", func(e dispatcher.Event) (any, error) {
		res, err := s.WaitExport(context.Background())
		if err != nil {
			return nil, err
		}
		return res.Path, nil
	})

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		return marshal(s.Status())
	})

	d.Register(":FRAME:", func(e dispatcher.Event) (any, error) {
		return marshal(s.Frame())
	})
}

// annotationFromArgs builds an annotation from
// "kind id x,y x,y [startPlayer] [endPlayer] [step]"; "-" leaves an endpoint
// unbound.
func annotationFromArgs(args []string) (core.Annotation, error) {
	kindName, err := parser.ArgString(args, 0)
	if err != nil {
		return nil, err
	}
	kind, err := core.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	id, err := parser.ArgString(args, 1)
	if err != nil {
		return nil, err
	}
	startRaw, err := parser.ArgString(args, 2)
	if err != nil {
		return nil, err
	}
	endRaw, err := parser.ArgString(args, 3)
	if err != nil {
		return nil, err
	}
	start, err := geo.PointFromString(startRaw)
	if err != nil {
		return nil, fmt.Errorf("start %q: %w", startRaw, err)
	}
	end, err := geo.PointFromString(endRaw)
	if err != nil {
		return nil, fmt.Errorf("end %q: %w", endRaw, err)
	}

	line := core.Line{ID: id, Start: start, End: end}
	if p := parser.OptString(args, 4, noPlayer); p != noPlayer {
		line.StartPlayer = p
	}
	if p := parser.OptString(args, 5, noPlayer); p != noPlayer {
		line.EndPlayer = p
	}
	if len(args) > 6 {
		if line.Step, err = parser.ArgInt(args, 6); err != nil {
			return nil, err
		}
	}

	switch kind {
	case core.KindPass:
		return core.Pass{Line: line}, nil
	case core.KindRun:
		return core.Run{Line: line}, nil
	case core.KindCurvedRun:
		return core.CurvedRun{Line: line}, nil
	default:
		return core.Dribble{Line: line}, nil
	}
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
