// Package ordering infers the execution step of movement annotations from
// the four tactical precedence rules and flags one-touch passes.
package ordering

import (
	"github.com/tacticsboard/choreo/pkg/core"
)

// Ambiguity explains why no step order was proposed.
type Ambiguity int

const (
	// Unambiguous means Steps holds a proposal.
	Unambiguous Ambiguity = iota
	// TooFew means there were fewer than two annotations.
	TooFew
	// ManualSteps means the annotations already use more than one step.
	ManualSteps
	// Cycle means the precedence graph has a cycle.
	Cycle
)

func (a Ambiguity) String() string {
	switch a {
	case Unambiguous:
		return "unambiguous"
	case TooFew:
		return "too_few"
	case ManualSteps:
		return "manual_steps"
	case Cycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// Result is the outcome of Resolve. Steps is nil unless Ambiguity is Unambiguous.
// IDs holds the annotation ids in the order Steps refers to them.
type Result struct {
	IDs       []string
	Steps     []int
	Ambiguity Ambiguity
	Edges     [][2]int
}

// StepsByID maps each annotation id to its proposed step, nil without a proposal.
func (r Result) StepsByID() map[string]int {
	if r.Steps == nil {
		return nil
	}
	out := make(map[string]int, len(r.Steps))
	for i, step := range r.Steps {
		if i < len(r.IDs) {
			out[r.IDs[i]] = step
		}
	}
	return out
}

// ComputeStepOrder proposes a 1-based step per annotation, or nil when the
// annotations must not be auto-ordered.
func ComputeStepOrder(anns []core.Annotation) []int {
	return Resolve(anns).Steps
}

// Resolve builds the precedence graph and assigns longest-path steps with
// Kahn's algorithm. A node waits for its latest prerequisite.
func Resolve(anns []core.Annotation) Result {
	res := resolve(anns)
	res.IDs = make([]string, len(anns))
	for i, a := range anns {
		res.IDs[i] = a.Geometry().ID
	}
	return res
}

func resolve(anns []core.Annotation) Result {
	n := len(anns)
	if n <= 1 {
		return Result{Ambiguity: TooFew}
	}
	first := anns[0].Geometry().StepOrDefault()
	for _, a := range anns[1:] {
		if a.Geometry().StepOrDefault() != first {
			return Result{Ambiguity: ManualSteps}
		}
	}

	edges := buildEdges(anns)
	adj := make([][]int, n)
	indeg := make([]int, n)
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		indeg[e[1]]++
	}

	steps := make([]int, n)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		steps[i] = 1
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	processed := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		processed++
		for _, dep := range adj[cur] {
			if steps[cur]+1 > steps[dep] {
				steps[dep] = steps[cur] + 1
			}
			indeg[dep]--
			if indeg[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if processed < n {
		return Result{Ambiguity: Cycle, Edges: edges}
	}
	return Result{Steps: steps, Ambiguity: Unambiguous, Edges: edges}
}

// precedes reports whether a must run before b under the four tactical rules.
func precedes(a, b core.Annotation) bool {
	ga, gb := a.Geometry(), b.Geometry()
	switch a.(type) {
	case core.Pass:
		switch b.(type) {
		case core.Run, core.CurvedRun:
			// pass and go
			return same(ga.StartPlayer, gb.StartPlayer)
		case core.Dribble:
			// receive and advance
			return same(ga.EndPlayer, gb.StartPlayer)
		case core.Pass:
			// one-touch relay
			return same(ga.EndPlayer, gb.StartPlayer)
		}
	case core.Run, core.CurvedRun:
		if _, ok := b.(core.Pass); ok {
			// move to receive
			return same(ga.StartPlayer, gb.EndPlayer)
		}
	case core.Dribble:
		return false
	}
	return false
}

func buildEdges(anns []core.Annotation) [][2]int {
	var edges [][2]int
	for i := range anns {
		for j := range anns {
			if i == j {
				continue
			}
			if precedes(anns[i], anns[j]) {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return edges
}

func same(a, b string) bool {
	return a != "" && a == b
}
