// Package stats contains ledger reports rendered as plain text.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/tafels/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints totals over the fact rows.
func RenderSummary(w io.Writer, rows []FactRow) error {
	var seen, correct, errs int
	var timeSum float64
	var timed int
	for _, r := range rows {
		if r.Correct+r.Errors > 0 {
			seen++
		}
		correct += r.Correct
		errs += r.Errors
		if r.Correct > 0 {
			timeSum += r.AvgTime
			timed++
		}
	}
	rate := 0.0
	if correct+errs > 0 {
		rate = float64(errs) / float64(correct+errs)
	}
	avg := 0.0
	if timed > 0 {
		avg = timeSum / float64(timed)
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Facts seen: %d/%d", seen, len(rows)),
		fmt.Sprintf("Correct: %d", correct),
		fmt.Sprintf("Errors: %d", errs),
		fmt.Sprintf("Error rate: %.2f%%", rate*100),
		fmt.Sprintf("Avg time: %.2fs", avg),
		"",
	}
	return writeLines(w, lines)
}

// RenderFactTable prints one line per fact with its counts, metrics and weight.
func RenderFactTable(w io.Writer, title string, rows []FactRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No facts found.")
		return err
	}
	headers := []string{"Fact", "Correct", "Errors", "Error Rate", "Avg Time (s)", "Weight"}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{
			r.Fact.String(),
			fmt.Sprintf("%d", r.Correct),
			fmt.Sprintf("%d", r.Errors),
			fmt.Sprintf("%.2f%%", r.ErrorRate*100),
			fmt.Sprintf("%.2f", r.AvgTime),
			fmt.Sprintf("%d", r.Weight),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
	lines := append([]string{title}, formatTable(headers, tableRows, rightAlign)...)
	return writeLines(w, append(lines, ""))
}

// RenderTableSummary prints one line per table and operator with a
// sparkline of average times over the other operand.
func RenderTableSummary(w io.Writer, summaries []TableSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	headers := []string{"Table", "Op", "Seen", "Error Rate", "Avg Time (s)", "Times 1..10"}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.Table),
			s.Op.String(),
			fmt.Sprintf("%d/%d", s.Seen, len(s.Times)),
			fmt.Sprintf("%.2f%%", s.ErrorRate*100),
			fmt.Sprintf("%.2f", s.AvgTime),
			"[" + Sparkline(s.Times) + "]",
		})
	}
	rightAlign := map[int]bool{0: true, 2: true, 3: true, 4: true}
	lines := append([]string{"Per-Table"}, formatTable(headers, rows, rightAlign)...)
	return writeLines(w, append(lines, ""))
}

// RenderTestHistory prints finished tests oldest first, followed by a
// score trend smoothed over window tests.
func RenderTestHistory(w io.Writer, results []model.TestResult, window int) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No tests found.")
		return err
	}
	headers := []string{"Started", "Tables", "Correct", "Score", "Duration", "Timed Out"}
	rows := make([][]string, 0, len(results))
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score() * 100
		timedOut := "no"
		if r.TimedOut {
			timedOut = "yes"
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			joinInts(r.Tables),
			fmt.Sprintf("%d/%d", r.Correct, r.Size),
			fmt.Sprintf("%.0f%%", scores[i]),
			r.EndedAt.Sub(r.StartedAt).Round(time.Second).String(),
			timedOut,
		})
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true}
	lines := append([]string{"Tests"}, formatTable(headers, rows, rightAlign)...)
	lines = append(lines, "Trend: ["+Sparkline(MovingAverage(scores, window))+"]", "")
	return writeLines(w, lines)
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}
