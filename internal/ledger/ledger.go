// Package ledger tracks per-fact performance and turns it into selection weights.
package ledger

import (
	"errors"
	"maps"
	"math"
	"slices"

	"github.com/verte-zerg/tafels/internal/fact"
)

// SchemaVersion is the current ledger schema version.
const SchemaVersion = 1

// ErrTooFewSamples is returned when a statistic needs at least two facts.
var ErrTooFewSamples = errors.New("ledger: at least two facts are required")

// Ledger holds sparse per-fact counters. A fact without history has no entries.
//
// A Ledger is not safe for concurrent mutation.
type Ledger struct {
	schemaVersion int
	correct       map[fact.Fact]int
	totalTime     map[fact.Fact]float64
	errors        map[fact.Fact]int
}

// Snapshot is the raw state of a ledger, used by encoders.
type Snapshot struct {
	SchemaVersion int
	Correct       map[fact.Fact]int
	TotalTime     map[fact.Fact]float64
	Errors        map[fact.Fact]int
}

// New returns an empty ledger at the current schema version.
func New() *Ledger {
	return &Ledger{
		schemaVersion: SchemaVersion,
		correct:       map[fact.Fact]int{},
		totalTime:     map[fact.Fact]float64{},
		errors:        map[fact.Fact]int{},
	}
}

// FromSnapshot builds a ledger from raw state. The maps are copied.
func FromSnapshot(s Snapshot) *Ledger {
	l := New()
	if s.SchemaVersion != 0 {
		l.schemaVersion = s.SchemaVersion
	}
	maps.Copy(l.correct, s.Correct)
	maps.Copy(l.totalTime, s.TotalTime)
	maps.Copy(l.errors, s.Errors)
	return l
}

// Snapshot returns a copy of the raw state.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		SchemaVersion: l.schemaVersion,
		Correct:       maps.Clone(l.correct),
		TotalTime:     maps.Clone(l.totalTime),
		Errors:        maps.Clone(l.errors),
	}
}

// SchemaVersion returns the schema version the ledger was created or loaded with.
func (l *Ledger) SchemaVersion() int {
	return l.schemaVersion
}

// CorrectCount returns the number of correct answers for f.
func (l *Ledger) CorrectCount(f fact.Fact) int {
	return l.correct[f]
}

// ErrorCount returns the number of wrong answers for f.
func (l *Ledger) ErrorCount(f fact.Fact) int {
	return l.errors[f]
}

// TotalTime returns the cumulative answer time of correct answers for f, in seconds.
func (l *Ledger) TotalTime(f fact.Fact) float64 {
	return l.totalTime[f]
}

// Seen reports whether f has any recorded history.
func (l *Ledger) Seen(f fact.Fact) bool {
	_, c := l.correct[f]
	_, e := l.errors[f]
	return c || e
}

// RecordCorrect adds a correct answer that took elapsedSeconds.
//
// A negative or NaN elapsedSeconds, as from a clock stepping backwards, is
// recorded as zero: the answer still counts as correct but adds no time.
func (l *Ledger) RecordCorrect(f fact.Fact, elapsedSeconds float64) {
	if elapsedSeconds < 0 || math.IsNaN(elapsedSeconds) {
		elapsedSeconds = 0
	}
	l.correct[f]++
	l.totalTime[f] += elapsedSeconds
}

// RecordError adds a wrong answer.
func (l *Ledger) RecordError(f fact.Fact) {
	l.errors[f]++
}

// AverageTime returns the mean time of correct answers, or 0 without any.
func (l *Ledger) AverageTime(f fact.Fact) float64 {
	n := l.CorrectCount(f)
	if n == 0 {
		return 0
	}
	return l.TotalTime(f) / float64(n)
}

// ErrorRate returns errors/(errors+correct), or 0 for a fact never answered.
func (l *Ledger) ErrorRate(f fact.Fact) float64 {
	c, e := l.CorrectCount(f), l.ErrorCount(f)
	if c == 0 && e == 0 {
		return 0
	}
	return float64(e) / float64(e+c)
}

// Facts returns every fact with history, sorted.
func (l *Ledger) Facts() []fact.Fact {
	set := make(map[fact.Fact]struct{}, len(l.correct)+len(l.errors))
	for f := range l.correct {
		set[f] = struct{}{}
	}
	for f := range l.errors {
		set[f] = struct{}{}
	}
	out := slices.Collect(maps.Keys(set))
	slices.SortFunc(out, func(a, b fact.Fact) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return out
}

// Len returns the number of facts with history.
func (l *Ledger) Len() int {
	return len(l.Facts())
}

// Equal reports whether both ledgers hold identical state.
func (l *Ledger) Equal(o *Ledger) bool {
	if l == nil || o == nil {
		return l == o
	}
	return l.schemaVersion == o.schemaVersion &&
		maps.Equal(l.correct, o.correct) &&
		maps.Equal(l.totalTime, o.totalTime) &&
		maps.Equal(l.errors, o.errors)
}
