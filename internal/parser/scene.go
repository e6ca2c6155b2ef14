// Package parser reads and writes scene files and decodes the string
// arguments of bridge commands.
package parser

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tacticsboard/choreo/internal/document"
	"github.com/tacticsboard/choreo/pkg/core"
)

// ParseScene decodes a YAML scene. Annotation endpoints that are omitted
// default to the position of the player they are bound to.
func ParseScene(data []byte) (document.Scene, error) {
	var f sceneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return document.Scene{}, fmt.Errorf("yaml unmarshal: %w", err)
	}

	players, err := parsePlayers(f.Players)
	if err != nil {
		return document.Scene{}, err
	}
	ball, err := parseBall(f.Ball)
	if err != nil {
		return document.Scene{}, err
	}
	anns, err := parseAnnotations(f.Annotations, players)
	if err != nil {
		return document.Scene{}, err
	}

	scene := document.Scene{
		Name:        f.Name,
		Players:     players,
		Ball:        ball,
		Annotations: anns,
		Speed:       f.Speed,
	}
	for i, kd := range f.Keyframes {
		k, err := parseKeyframe(kd)
		if err != nil {
			return document.Scene{}, fmt.Errorf("keyframe %d: %w", i, err)
		}
		if i > 0 && !(k.Duration > 0) {
			return document.Scene{}, fmt.Errorf("keyframe %d: %w", i, core.ErrInvalidDuration)
		}
		scene.Keyframes = append(scene.Keyframes, k)
	}
	return scene, nil
}

// LoadScene reads a scene file from disk.
func LoadScene(path string) (document.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document.Scene{}, fmt.Errorf("read %s: %w", path, err)
	}
	scene, err := ParseScene(data)
	if err != nil {
		return document.Scene{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return scene, nil
}

// EncodeScene writes a scene back to YAML.
func EncodeScene(scene document.Scene) ([]byte, error) {
	f := sceneFile{
		Name:        scene.Name,
		Speed:       scene.Speed,
		Ball:        encodeBall(scene.Ball),
		Players:     encodePlayers(scene.Players),
		Annotations: encodeAnnotations(scene.Annotations),
	}
	for _, k := range scene.Keyframes {
		f.Keyframes = append(f.Keyframes, keyframeDoc{
			ID:          k.ID,
			Duration:    k.Duration,
			Ball:        encodeBall(k.Ball),
			Players:     encodePlayers(k.Players),
			Annotations: encodeAnnotations(k.Annotations),
		})
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("yaml marshal: %w", err)
	}
	return data, nil
}

// SaveScene encodes a scene and writes it to path.
func SaveScene(path string, scene document.Scene) error {
	data, err := EncodeScene(scene)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func parseKeyframe(kd keyframeDoc) (core.Keyframe, error) {
	players, err := parsePlayers(kd.Players)
	if err != nil {
		return core.Keyframe{}, err
	}
	ball, err := parseBall(kd.Ball)
	if err != nil {
		return core.Keyframe{}, err
	}
	anns, err := parseAnnotations(kd.Annotations, players)
	if err != nil {
		return core.Keyframe{}, err
	}
	return core.Keyframe{
		ID:          kd.ID,
		Players:     players,
		Ball:        ball,
		Annotations: anns,
		Duration:    kd.Duration,
	}, nil
}

func parsePlayers(docs []playerDoc) ([]core.PlayerPose, error) {
	players := make([]core.PlayerPose, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, pd := range docs {
		if pd.ID == "" {
			return nil, fmt.Errorf("player %d: id is required", i)
		}
		if seen[pd.ID] {
			return nil, fmt.Errorf("player %d: duplicate id %q", i, pd.ID)
		}
		seen[pd.ID] = true

		team, err := parseTeam(pd.Team)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", pd.ID, err)
		}
		pos, err := point(pd.Pos)
		if err != nil {
			return nil, fmt.Errorf("player %s: pos: %w", pd.ID, err)
		}
		players = append(players, core.PlayerPose{
			ID:         pd.ID,
			Team:       team,
			Number:     pd.Number,
			Name:       pd.Name,
			Pos:        pos,
			Facing:     pd.Facing * math.Pi / 180,
			Goalkeeper: pd.Goalkeeper,
		})
	}
	return players, nil
}

func parseBall(bd *ballDoc) (core.BallPose, error) {
	ball := core.BallPose{Radius: core.DefaultBallRadius}
	if bd == nil {
		return ball, nil
	}
	pos, err := point(bd.Pos)
	if err != nil {
		return ball, fmt.Errorf("ball: pos: %w", err)
	}
	ball.Pos = pos
	if bd.Radius > 0 {
		ball.Radius = bd.Radius
	}
	return ball, nil
}

func parseAnnotations(docs []annotationDoc, players []core.PlayerPose) ([]core.Annotation, error) {
	var errs []error
	anns := make([]core.Annotation, 0, len(docs))
	for i, ad := range docs {
		a, err := parseAnnotation(ad, players)
		if err != nil {
			errs = append(errs, fmt.Errorf("annotation %d (%s): %w", i, ad.ID, err))
			continue
		}
		anns = append(anns, a)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return anns, nil
}

func parseAnnotation(ad annotationDoc, players []core.PlayerPose) (core.Annotation, error) {
	if ad.ID == "" {
		return nil, errors.New("id is required")
	}
	kind, err := core.ParseKind(ad.Kind)
	if err != nil {
		return nil, err
	}
	start, err := endpoint(ad.Start, ad.From, players)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := endpoint(ad.End, ad.To, players)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	line := core.Line{
		ID:          ad.ID,
		Start:       start,
		End:         end,
		StartPlayer: ad.From,
		EndPlayer:   ad.To,
		Step:        ad.Step,
		Color:       ad.Color,
	}

	switch kind {
	case core.KindPass:
		return core.Pass{Line: line, Lofted: ad.Lofted}, nil
	case core.KindRun:
		return core.Run{Line: line}, nil
	case core.KindCurvedRun:
		side, err := parseSide(ad.Side)
		if err != nil {
			return nil, err
		}
		return core.CurvedRun{Line: line, Side: side}, nil
	case core.KindDribble:
		return core.Dribble{Line: line}, nil
	default:
		return nil, fmt.Errorf("%w: %v", core.ErrUnknownKind, kind)
	}
}

// endpoint takes the literal point when given, otherwise the bound player's position.
func endpoint(raw []float64, playerID string, players []core.PlayerPose) (core.Vec2, error) {
	if len(raw) > 0 {
		return point(raw)
	}
	if playerID == "" {
		return core.Vec2{}, errors.New("needs a point or a player")
	}
	if i := core.FindPlayer(players, playerID); i >= 0 {
		return players[i].Pos, nil
	}
	return core.Vec2{}, fmt.Errorf("%w: %s", core.ErrUnresolvableReference, playerID)
}

func point(raw []float64) (core.Vec2, error) {
	switch len(raw) {
	case 0:
		return core.Vec2{}, nil
	case 2:
		if math.IsNaN(raw[0]) || math.IsNaN(raw[1]) || math.IsInf(raw[0], 0) || math.IsInf(raw[1], 0) {
			return core.Vec2{}, fmt.Errorf("non-finite point %v", raw)
		}
		return core.Vec2{X: raw[0], Y: raw[1]}, nil
	default:
		return core.Vec2{}, fmt.Errorf("point must be [x, y], got %d values", len(raw))
	}
}

func parseTeam(s string) (core.Team, error) {
	switch core.Team(s) {
	case core.TeamHome, "":
		return core.TeamHome, nil
	case core.TeamAway:
		return core.TeamAway, nil
	default:
		return "", fmt.Errorf("unknown team %q", s)
	}
}

func parseSide(s string) (core.CurveSide, error) {
	switch s {
	case "", "left":
		return core.CurveLeft, nil
	case "right":
		return core.CurveRight, nil
	default:
		return 0, fmt.Errorf("unknown curve side %q", s)
	}
}

func encodePlayers(players []core.PlayerPose) []playerDoc {
	docs := make([]playerDoc, 0, len(players))
	for _, p := range players {
		docs = append(docs, playerDoc{
			ID:         p.ID,
			Team:       string(p.Team),
			Number:     p.Number,
			Name:       p.Name,
			Pos:        []float64{p.Pos.X, p.Pos.Y},
			Facing:     p.Facing * 180 / math.Pi,
			Goalkeeper: p.Goalkeeper,
		})
	}
	return docs
}

func encodeBall(b core.BallPose) *ballDoc {
	return &ballDoc{Pos: []float64{b.Pos.X, b.Pos.Y}, Radius: b.Radius}
}

func encodeAnnotations(anns []core.Annotation) []annotationDoc {
	docs := make([]annotationDoc, 0, len(anns))
	for _, a := range anns {
		l := a.Geometry()
		ad := annotationDoc{
			ID:    l.ID,
			Kind:  a.Kind().String(),
			From:  l.StartPlayer,
			To:    l.EndPlayer,
			Start: []float64{l.Start.X, l.Start.Y},
			End:   []float64{l.End.X, l.End.Y},
			Step:  l.Step,
			Color: l.Color,
		}
		switch v := a.(type) {
		case core.Pass:
			ad.Lofted = v.Lofted
		case core.CurvedRun:
			ad.Side = v.Side.String()
		}
		docs = append(docs, ad)
	}
	return docs
}
