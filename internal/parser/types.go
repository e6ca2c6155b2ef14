package parser

// sceneFile is the on-disk layout of a scene. Points are written as [x, y].
type sceneFile struct {
	Name        string          `yaml:"name"`
	Speed       float64         `yaml:"speed,omitempty"`
	Ball        *ballDoc        `yaml:"ball,omitempty"`
	Players     []playerDoc     `yaml:"players"`
	Annotations []annotationDoc `yaml:"annotations,omitempty"`
	Keyframes   []keyframeDoc   `yaml:"keyframes,omitempty"`
}

type playerDoc struct {
	ID         string    `yaml:"id"`
	Team       string    `yaml:"team"`
	Number     int       `yaml:"number,omitempty"`
	Name       string    `yaml:"name,omitempty"`
	Pos        []float64 `yaml:"pos,flow"`
	Facing     float64   `yaml:"facing,omitempty"` // degrees
	Goalkeeper bool      `yaml:"goalkeeper,omitempty"`
}

type ballDoc struct {
	Pos    []float64 `yaml:"pos,flow"`
	Radius float64   `yaml:"radius,omitempty"`
}

type annotationDoc struct {
	ID     string    `yaml:"id"`
	Kind   string    `yaml:"kind"`
	From   string    `yaml:"from,omitempty"`
	To     string    `yaml:"to,omitempty"`
	Start  []float64 `yaml:"start,flow,omitempty"`
	End    []float64 `yaml:"end,flow,omitempty"`
	Step   int       `yaml:"step,omitempty"`
	Color  string    `yaml:"color,omitempty"`
	Side   string    `yaml:"side,omitempty"`
	Lofted bool      `yaml:"lofted,omitempty"`
}

type keyframeDoc struct {
	ID          string          `yaml:"id"`
	Duration    float64         `yaml:"duration,omitempty"` // ms
	Ball        *ballDoc        `yaml:"ball,omitempty"`
	Players     []playerDoc     `yaml:"players"`
	Annotations []annotationDoc `yaml:"annotations,omitempty"`
}
