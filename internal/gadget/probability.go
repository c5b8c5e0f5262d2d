package gadget

import (
	"fmt"
	"math/rand/v2"
)

// MissionProbability rolls a presentational success estimate in 0..99%.
// A nil intn uses math/rand/v2.IntN.
func MissionProbability(intn func(n int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	return fmt.Sprintf("%d%% success probability", intn(100))
}

// decorate pairs every gadget with its own freshly rolled probability.
func decorate(gadgets []Gadget, intn func(n int) int) []Listed {
	out := make([]Listed, 0, len(gadgets))
	for _, g := range gadgets {
		out = append(out, Listed{Gadget: g, MissionProbability: MissionProbability(intn)})
	}
	return out
}
