package ordering

import "github.com/tacticsboard/choreo/pkg/core"

// OneTouchIndices returns the indices of passes whose start player receives
// another pass in the same list.
func OneTouchIndices(anns []core.Annotation) []int {
	var out []int
	for i, a := range anns {
		if _, ok := a.(core.Pass); !ok {
			continue
		}
		from := a.Geometry().StartPlayer
		if from == "" {
			continue
		}
		for j, b := range anns {
			if i == j {
				continue
			}
			if _, ok := b.(core.Pass); ok && b.Geometry().EndPlayer == from {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// OneTouchSet is OneTouchIndices keyed by annotation id.
func OneTouchSet(anns []core.Annotation) map[string]bool {
	set := make(map[string]bool)
	for _, i := range OneTouchIndices(anns) {
		set[anns[i].Geometry().ID] = true
	}
	return set
}
