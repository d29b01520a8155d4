package stats

import (
	"sort"

	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
)

// FactRow is the reported state of one fact.
type FactRow struct {
	Fact      fact.Fact
	Correct   int
	Errors    int
	ErrorRate float64
	AvgTime   float64
	Weight    int
}

// FactRows scores facts against each other and returns them heaviest first,
// ties broken by fact order.
func FactRows(l *ledger.Ledger, facts []fact.Fact) ([]FactRow, error) {
	weights, err := l.Weights(facts)
	if err != nil {
		return nil, err
	}
	rows := make([]FactRow, len(facts))
	for i, f := range facts {
		rows[i] = FactRow{
			Fact:      f,
			Correct:   l.CorrectCount(f),
			Errors:    l.ErrorCount(f),
			ErrorRate: l.ErrorRate(f),
			AvgTime:   l.AverageTime(f),
			Weight:    weights[i],
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Weight == rows[j].Weight {
			return rows[i].Fact.Less(rows[j].Fact)
		}
		return rows[i].Weight > rows[j].Weight
	})
	return rows, nil
}

// Weakest returns the first n rows that have been answered at least once.
// Rows must be sorted as FactRows returns them.
func Weakest(rows []FactRow, n int) []FactRow {
	if n <= 0 {
		return nil
	}
	out := make([]FactRow, 0, n)
	for _, r := range rows {
		if r.Correct+r.Errors == 0 {
			continue
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out
}

// MostPracticed returns up to n answered rows by number of answers, most
// first, ties in fact order.
func MostPracticed(rows []FactRow, n int) []FactRow {
	if n <= 0 {
		return nil
	}
	out := make([]FactRow, 0, len(rows))
	for _, r := range rows {
		if r.Correct+r.Errors > 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].Correct+out[i].Errors, out[j].Correct+out[j].Errors
		if ai == aj {
			return out[i].Fact.Less(out[j].Fact)
		}
		return ai > aj
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// TableSummary aggregates the facts of one table and operator.
type TableSummary struct {
	Table     int
	Op        fact.Operator
	Seen      int
	ErrorRate float64
	AvgTime   float64
	// Times holds the average time per fact, other operand ascending.
	Times []float64
}

// SummarizeTables builds one summary per table and operator.
func SummarizeTables(l *ledger.Ledger, tables []int, ops ...fact.Operator) []TableSummary {
	if len(ops) == 0 {
		ops = fact.AllOperators()
	}
	tables = fact.UniqueTables(tables)
	out := make([]TableSummary, 0, len(tables)*len(ops))
	for _, op := range ops {
		for _, t := range tables {
			s := TableSummary{Table: t, Op: op}
			var correct, errs, timed int
			var timeSum float64
			for f := range fact.Generate([]int{t}, op) {
				c, e := l.CorrectCount(f), l.ErrorCount(f)
				if c+e > 0 {
					s.Seen++
				}
				correct += c
				errs += e
				avg := l.AverageTime(f)
				if c > 0 {
					timeSum += avg
					timed++
				}
				s.Times = append(s.Times, avg)
			}
			if correct+errs > 0 {
				s.ErrorRate = float64(errs) / float64(correct+errs)
			}
			if timed > 0 {
				s.AvgTime = timeSum / float64(timed)
			}
			out = append(out, s)
		}
	}
	return out
}
