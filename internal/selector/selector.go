// Package selector draws weighted test batches from a fact universe.
package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
)

// ErrInsufficientCandidates is returned when more facts are requested than the universe holds.
var ErrInsufficientCandidates = errors.New("selector: insufficient candidates")

// Selector produces randomized fact selections.
type Selector struct {
	rnd *rand.Rand
}

// New returns a Selector seeded with the current time.
func New() *Selector {
	return &Selector{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewWithSource returns a Selector drawing from src.
func NewWithSource(src rand.Source) *Selector {
	return &Selector{rnd: rand.New(src)}
}

// SelectForTest draws count distinct facts from the universe of tables and ops,
// biased by the weights of l.
func (s *Selector) SelectForTest(l *ledger.Ledger, count int, tables []int, ops ...fact.Operator) ([]fact.Fact, error) {
	return s.Select(l, fact.Universe(tables, ops...), count)
}

// Select draws count distinct facts from universe without replacement.
// Repeated facts in universe count once.
//
// Weights are computed once against the whole universe. Each draw picks a
// uniform point in the total weight of the facts still in the pool and walks
// the pool in order until the point is passed. The result is in draw order.
func (s *Selector) Select(l *ledger.Ledger, universe []fact.Fact, count int) ([]fact.Fact, error) {
	if count <= 0 {
		return []fact.Fact{}, nil
	}
	universe = uniqueFacts(universe)
	if count > len(universe) {
		return nil, fmt.Errorf("%w: requested %d, universe has %d", ErrInsufficientCandidates, count, len(universe))
	}
	weights, err := l.Weights(universe)
	if err != nil {
		return nil, err
	}

	pool := universe
	poolWeights := make([]float64, len(weights))
	for i, w := range weights {
		poolWeights[i] = float64(w)
	}

	result := make([]fact.Fact, 0, count)
	for len(result) < count {
		total := 0.0
		for _, w := range poolWeights {
			total += w
		}
		r := s.rnd.Float64() * total
		idx := len(pool) - 1
		for j, w := range poolWeights {
			r -= w
			if r < 0 {
				idx = j
				break
			}
		}
		result = append(result, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
		poolWeights = append(poolWeights[:idx], poolWeights[idx+1:]...)
	}
	return result, nil
}

func uniqueFacts(facts []fact.Fact) []fact.Fact {
	seen := make(map[fact.Fact]struct{}, len(facts))
	out := make([]fact.Fact, 0, len(facts))
	for _, f := range facts {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Shuffle reorders facts in place.
func (s *Selector) Shuffle(facts []fact.Fact) {
	s.rnd.Shuffle(len(facts), func(i, j int) {
		facts[i], facts[j] = facts[j], facts[i]
	})
}
