package ledger

import (
	"fmt"
	"math"
	"slices"

	"github.com/verte-zerg/tafels/internal/fact"
)

// MedianStdevErrorRates returns the median and sample standard deviation of
// the error rates of facts.
func (l *Ledger) MedianStdevErrorRates(facts []fact.Fact) (median, stdev float64, err error) {
	return medianStdev(collect(facts, l.ErrorRate))
}

// MedianStdevAverageTimes returns the median and sample standard deviation of
// the average answer times of facts.
func (l *Ledger) MedianStdevAverageTimes(facts []fact.Fact) (median, stdev float64, err error) {
	return medianStdev(collect(facts, l.AverageTime))
}

func collect(facts []fact.Fact, metric func(fact.Fact) float64) []float64 {
	values := make([]float64, len(facts))
	for i, f := range facts {
		values[i] = metric(f)
	}
	return values
}

func medianStdev(values []float64) (float64, float64, error) {
	if len(values) < 2 {
		return 0, 0, fmt.Errorf("%w: got %d", ErrTooFewSamples, len(values))
	}
	return Median(values), SampleStdev(values), nil
}

// Median returns the middle value, or the mean of the two middle values for
// an even count. It returns 0 for no values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// SampleStdev returns the sample (n-1) standard deviation. It returns 0 for
// fewer than two values.
func SampleStdev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}
