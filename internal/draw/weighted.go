// Package draw holds the weighted random selection used by reveals and card pulls.
package draw

import (
	"math/rand/v2"

	"github.com/luckygrid/platform/internal/domain"
)

// Source is the randomness a draw consumes.
// Float64 returns a value in [0, 1); IntN returns a value in [0, n).
type Source interface {
	Float64() float64
	IntN(n int) int
}

// Weighted selects one category with probability proportional to its weight.
// Weights need not sum to 1. If floating point drift leaves r past the final
// cumulative bound the last entry is returned. An empty table yields "".
func Weighted(categories []domain.WeightedCategory, src Source) domain.Category {
	if len(categories) == 0 {
		return ""
	}
	var total float64
	for _, c := range categories {
		total += c.Probability
	}

	r := src.Float64() * total
	var cumulative float64
	for _, c := range categories {
		cumulative += c.Probability
		if r < cumulative {
			return c.Category
		}
	}
	return categories[len(categories)-1].Category
}

// Uniform picks one element of items. ok is false when items is empty.
func Uniform[T any](items []T, src Source) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[src.IntN(len(items))], true
}

// Default returns the process-wide source. It is safe for concurrent use.
func Default() Source { return globalSource{} }

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
func (globalSource) IntN(n int) int   { return rand.IntN(n) }

// NewSeeded returns a deterministic source. Not safe for concurrent use.
func NewSeeded(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
