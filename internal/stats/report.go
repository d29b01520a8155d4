package stats

import (
	"context"

	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
	"github.com/verte-zerg/tafels/internal/model"
)

// HistorySource lists finished tests, oldest first.
type HistorySource interface {
	ListTestResults(ctx context.Context, last int) ([]model.TestResult, error)
}

// ReportOptions selects what BuildReport covers.
type ReportOptions struct {
	Tables    []int
	Operators []fact.Operator
	// Weak is the number of weakest facts to list.
	Weak int
	// Top is the number of most practiced facts to list.
	Top int
	// Last limits the test history; 0 loads all of it.
	Last int
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Rows    []FactRow
	Weakest []FactRow
	Top     []FactRow
	Tables  []TableSummary
	History []model.TestResult
	// HasHistory is false when the backend keeps no test history.
	HasHistory bool
}

// BuildReport scores the facts of the selected tables and loads test
// history from history when it is not nil.
func BuildReport(ctx context.Context, l *ledger.Ledger, history HistorySource, opts ReportOptions) (Report, error) {
	universe := fact.Universe(opts.Tables, opts.Operators...)
	rows, err := FactRows(l, universe)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Rows:    rows,
		Weakest: Weakest(rows, opts.Weak),
		Top:     MostPracticed(rows, opts.Top),
		Tables:  SummarizeTables(l, opts.Tables, opts.Operators...),
	}
	if history == nil {
		return report, nil
	}
	results, err := history.ListTestResults(ctx, opts.Last)
	if err != nil {
		return Report{}, err
	}
	report.History = results
	report.HasHistory = true
	return report, nil
}
