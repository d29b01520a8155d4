package ledger

import "github.com/verte-zerg/tafels/internal/fact"

// MinWeight and MaxWeight bound the values returned by Weight.
const (
	MinWeight = 1
	MaxWeight = 17
)

// Population is the standing of a fact universe, frozen before sampling.
type Population struct {
	ErrMedian  float64
	ErrStdev   float64
	TimeMedian float64
	TimeStdev  float64
}

// Population computes error-rate and average-time statistics over facts. A
// single fact yields its own values with zero deviation; no facts yield a
// zero Population.
func (l *Ledger) Population(facts []fact.Fact) (Population, error) {
	switch len(facts) {
	case 0:
		return Population{}, nil
	case 1:
		return Population{
			ErrMedian:  l.ErrorRate(facts[0]),
			TimeMedian: l.AverageTime(facts[0]),
		}, nil
	}
	var p Population
	var err error
	if p.ErrMedian, p.ErrStdev, err = l.MedianStdevErrorRates(facts); err != nil {
		return Population{}, err
	}
	if p.TimeMedian, p.TimeStdev, err = l.MedianStdevAverageTimes(facts); err != nil {
		return Population{}, err
	}
	return p, nil
}

// ErrorScore rates f against the population error rate: +1 for a fact
// without history or above median+stdev, -1 below median-stdev, else 0.
func (l *Ledger) ErrorScore(f fact.Fact, median, stdev float64) int {
	rate := l.ErrorRate(f)
	if !l.Seen(f) || rate > median+stdev {
		return 1
	}
	if rate < median-stdev {
		return -1
	}
	return 0
}

// TimeScore rates the cumulative answer time of f against the median and
// stdev of average times: +1 when nothing was answered correctly yet or
// above median+stdev, -1 below median-stdev, else 0.
func (l *Ledger) TimeScore(f fact.Fact, median, stdev float64) int {
	total := l.TotalTime(f)
	if total == 0 || total > median+stdev {
		return 1
	}
	if total < median-stdev {
		return -1
	}
	return 0
}

// Weight returns 1 + (2 + errorScore + timeScore)², in [MinWeight, MaxWeight].
func (l *Ledger) Weight(f fact.Fact, p Population) int {
	base := 2 + l.ErrorScore(f, p.ErrMedian, p.ErrStdev) + l.TimeScore(f, p.TimeMedian, p.TimeStdev)
	return 1 + base*base
}

// Weights returns the weight of each fact, in the order given, scored
// against the population of all facts.
func (l *Ledger) Weights(facts []fact.Fact) ([]int, error) {
	p, err := l.Population(facts)
	if err != nil {
		return nil, err
	}
	weights := make([]int, len(facts))
	for i, f := range facts {
		weights[i] = l.Weight(f, p)
	}
	return weights, nil
}
