package stats

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
	"github.com/verte-zerg/tafels/internal/model"
)

func TestMovingAverage(t *testing.T) {
	assert.Equal(t, []float64{2, 3, 5, 7}, MovingAverage([]float64{2, 4, 6, 8}, 2))
	assert.Equal(t, []float64{1, 2}, MovingAverage([]float64{1, 2}, 1))
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, " @", Sparkline([]float64{0, 9}))
	assert.Equal(t, "+++", Sparkline([]float64{3, 3, 3}))
	assert.Empty(t, Sparkline(nil))
}

func sampleLedger() *ledger.Ledger {
	l := ledger.New()
	l.RecordCorrect(fact.New(1, fact.Mul, 2), 1)
	l.RecordCorrect(fact.New(2, fact.Mul, 2), 1)
	l.RecordCorrect(fact.New(3, fact.Mul, 2), 1)
	l.RecordError(fact.New(3, fact.Mul, 2))
	l.RecordError(fact.New(3, fact.Mul, 2))
	l.RecordCorrect(fact.New(3, fact.Mul, 2), 9)
	return l
}

func sampleRows(t *testing.T) []FactRow {
	t.Helper()
	rows, err := FactRows(sampleLedger(), fact.Universe([]int{2}, fact.Mul))
	require.NoError(t, err)
	return rows
}

func TestFactRowsHeaviestFirst(t *testing.T) {
	rows := sampleRows(t)
	require.Len(t, rows, 10)
	for i := 1; i < len(rows); i++ {
		assert.LessOrEqual(t, rows[i].Weight, rows[i-1].Weight, "rows not sorted at %d", i)
	}
	assert.Equal(t, ledger.MaxWeight, rows[0].Weight)
	last := rows[len(rows)-1]
	assert.Equal(t, fact.New(2, fact.Mul, 2), last.Fact)
	assert.Equal(t, 5, last.Weight)

	weak := Weakest(rows, 1)
	require.Len(t, weak, 1)
	assert.Equal(t, fact.New(3, fact.Mul, 2), weak[0].Fact)
	assert.Equal(t, 2, weak[0].Errors)
	assert.Equal(t, 5.0, weak[0].AvgTime)
}

func TestWeakestSkipsUnseen(t *testing.T) {
	rows := []FactRow{{Weight: 17}, {Correct: 1, Weight: 5}, {Errors: 1, Weight: 2}}
	got := Weakest(rows, 5)
	require.Len(t, got, 2)
	assert.Equal(t, 5, got[0].Weight)
	assert.Nil(t, Weakest(rows, 0))
}

func TestMostPracticed(t *testing.T) {
	rows := sampleRows(t)
	top := MostPracticed(rows, 2)
	require.Len(t, top, 2)
	assert.Equal(t, fact.New(3, fact.Mul, 2), top[0].Fact)
	assert.Equal(t, fact.New(1, fact.Mul, 2), top[1].Fact)
	assert.Len(t, MostPracticed(rows, 10), 3)
	assert.Nil(t, MostPracticed(rows, 0))
}

func TestSummarizeTables(t *testing.T) {
	l := sampleLedger()
	l.RecordCorrect(fact.New(10, fact.Div, 5), 4)
	summaries := SummarizeTables(l, []int{2, 5})
	require.Len(t, summaries, 4)

	mul2 := summaries[0]
	assert.Equal(t, 2, mul2.Table)
	assert.Equal(t, fact.Mul, mul2.Op)
	assert.Equal(t, 3, mul2.Seen)
	assert.Len(t, mul2.Times, 10)
	assert.InDelta(t, 2.0/6.0, mul2.ErrorRate, 1e-12)
	assert.InDelta(t, 7.0/3.0, mul2.AvgTime, 1e-12)

	div5 := summaries[3]
	assert.Equal(t, fact.Div, div5.Op)
	assert.Equal(t, 5, div5.Table)
	assert.Equal(t, 1, div5.Seen)
	assert.Equal(t, 4.0, div5.Times[1])
}

func TestSummarizeTablesDropsDuplicates(t *testing.T) {
	summaries := SummarizeTables(ledger.New(), []int{3, 3, 0}, fact.Mul)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].Table)
}

type fakeHistory struct {
	results []model.TestResult
	err     error
	last    int
}

func (h *fakeHistory) ListTestResults(_ context.Context, last int) ([]model.TestResult, error) {
	h.last = last
	return h.results, h.err
}

func TestBuildReport(t *testing.T) {
	l := sampleLedger()
	opts := ReportOptions{Tables: []int{2}, Operators: []fact.Operator{fact.Mul}, Weak: 3, Top: 1, Last: 5}
	ctx := context.Background()

	report, err := BuildReport(ctx, l, nil, opts)
	require.NoError(t, err)
	assert.False(t, report.HasHistory)
	assert.Len(t, report.Rows, 10)
	assert.Len(t, report.Weakest, 3)
	require.Len(t, report.Top, 1)
	assert.Equal(t, fact.New(3, fact.Mul, 2), report.Top[0].Fact)
	assert.Len(t, report.Tables, 1)

	h := &fakeHistory{results: []model.TestResult{{Size: 20, Correct: 18}}}
	report, err = BuildReport(ctx, l, h, opts)
	require.NoError(t, err)
	assert.True(t, report.HasHistory)
	assert.Len(t, report.History, 1)
	assert.Equal(t, 5, h.last)

	h.err = errors.New("boom")
	_, err = BuildReport(ctx, l, h, opts)
	assert.Error(t, err)
}

func TestRenderFactTable(t *testing.T) {
	rows := []FactRow{{Fact: fact.New(3, fact.Mul, 4), Correct: 2, Errors: 1, ErrorRate: 1.0 / 3, AvgTime: 1.5, Weight: 10}}
	var buf bytes.Buffer
	require.NoError(t, RenderFactTable(&buf, "Weakest", rows))
	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "Weakest", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "3 x 4"), lines[2])
	assert.Contains(t, lines[2], "33.33%")
	assert.True(t, strings.HasSuffix(lines[2], "10"), lines[2])

	buf.Reset()
	require.NoError(t, RenderFactTable(&buf, "Weakest", nil))
	assert.Equal(t, "No facts found.\n", buf.String())
}

func TestRenderSummary(t *testing.T) {
	rows := []FactRow{{Correct: 3, Errors: 1, AvgTime: 2}, {Correct: 1, AvgTime: 4}, {}}
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, rows))
	out := buf.String()
	for _, want := range []string{"Facts seen: 2/3", "Errors: 1", "Error rate: 20.00%", "Avg time: 3.00s"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderTableSummary(t *testing.T) {
	summaries := []TableSummary{{Table: 7, Op: fact.Div, Seen: 1, Times: []float64{0, 9}}}
	var buf bytes.Buffer
	require.NoError(t, RenderTableSummary(&buf, summaries))
	assert.Contains(t, buf.String(), "[ @]")
	assert.Contains(t, buf.String(), "1/2")
}

func TestRenderTestHistory(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	results := []model.TestResult{
		{StartedAt: start, EndedAt: start.Add(95 * time.Second), Tables: []int{2, 3}, Size: 20, Correct: 10},
		{StartedAt: start, EndedAt: start.Add(2 * time.Minute), Tables: []int{4}, Size: 20, Correct: 20, TimedOut: true},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderTestHistory(&buf, results, 1))
	out := buf.String()
	for _, want := range []string{"2,3", "10/20", "50%", "1m35s", "yes", "Trend: [ @]"} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	require.NoError(t, RenderTestHistory(&buf, nil, 1))
	assert.Equal(t, "No tests found.\n", buf.String())
}
