// Package session drives practice and test runs over a ledger.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
	"github.com/verte-zerg/tafels/internal/model"
	"github.com/verte-zerg/tafels/internal/persist"
	"github.com/verte-zerg/tafels/internal/selector"
)

// Defaults for test runs.
const (
	DefaultTestSize     = 20
	DefaultTestDuration = 2 * time.Minute
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("session: invalid state transition")
	// ErrNoCurrentFact is returned when answering with nothing to answer.
	ErrNoCurrentFact = errors.New("session: no current fact")
)

// State is the phase of a session.
type State int

const (
	// Setup is idle: tables may be chosen and a run started.
	Setup State = iota
	// Practice runs through the whole universe, repeating facts answered wrong.
	Practice
	// Testing runs a timed, weighted selection.
	Testing
)

func (s State) String() string {
	switch s {
	case Setup:
		return "setup"
	case Practice:
		return "practice"
	case Testing:
		return "testing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// HistoryRecorder stores finished tests. Backends that keep history implement it.
type HistoryRecorder interface {
	InsertTestResult(ctx context.Context, result model.TestResult) (int64, error)
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	TestSize     int
	TestDuration time.Duration
	Operators    []fact.Operator
	Now          func() time.Time
	Logger       *slog.Logger
}

// Outcome describes the effect of one answer.
type Outcome struct {
	Fact     fact.Fact
	Given    int
	Correct  bool
	Elapsed  time.Duration
	Finished bool
	// Report is set when the answer finished a test.
	Report *Report
}

// Session is the state machine behind one drill front end.
type Session struct {
	ledger  *ledger.Ledger
	backend persist.Backend
	sel     *selector.Selector
	opts    Options

	state       State
	tables      []int
	queue       []fact.Fact
	total       int
	startedAt   time.Time
	presentedAt time.Time
	deadline    time.Time
	answers     []model.TestAnswer
}

// New returns a session in the Setup state.
func New(l *ledger.Ledger, backend persist.Backend, sel *selector.Selector, opts Options) *Session {
	if opts.TestSize <= 0 {
		opts.TestSize = DefaultTestSize
	}
	if opts.TestDuration <= 0 {
		opts.TestDuration = DefaultTestDuration
	}
	if len(opts.Operators) == 0 {
		opts.Operators = fact.AllOperators()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{ledger: l, backend: backend, sel: sel, opts: opts}
}

// State returns the current phase.
func (s *Session) State() State {
	return s.state
}

// Running reports whether a practice or test run is in progress.
func (s *Session) Running() bool {
	return s.state == Practice || s.state == Testing
}

// Ledger returns the ledger the session records into.
func (s *Session) Ledger() *ledger.Ledger {
	return s.ledger
}

// StartPractice begins a practice run over every fact of tables in random
// order. Duplicate and non-positive tables are dropped before the tables
// are stored.
func (s *Session) StartPractice(ctx context.Context, tables []int) error {
	if s.state != Setup {
		return fmt.Errorf("%w: start practice from %s", ErrInvalidTransition, s.state)
	}
	tables = fact.UniqueTables(tables)
	if err := s.backend.SaveTables(ctx, tables); err != nil {
		return fmt.Errorf("failed to save tables: %w", err)
	}
	queue := fact.Universe(tables, s.opts.Operators...)
	s.sel.Shuffle(queue)
	s.begin(Practice, tables, queue)
	return nil
}

// StartTest begins a timed test over a weighted selection from tables.
func (s *Session) StartTest(ctx context.Context, tables []int) error {
	if s.state != Setup {
		return fmt.Errorf("%w: start test from %s", ErrInvalidTransition, s.state)
	}
	tables = fact.UniqueTables(tables)
	if err := s.backend.SaveTables(ctx, tables); err != nil {
		return fmt.Errorf("failed to save tables: %w", err)
	}
	queue, err := s.sel.SelectForTest(s.ledger, s.opts.TestSize, tables, s.opts.Operators...)
	if err != nil {
		return err
	}
	s.sel.Shuffle(queue)
	s.begin(Testing, tables, queue)
	s.deadline = s.startedAt.Add(s.opts.TestDuration)
	return nil
}

func (s *Session) begin(state State, tables []int, queue []fact.Fact) {
	now := s.opts.Now()
	s.state = state
	s.tables = slices.Clone(tables)
	s.queue = queue
	s.total = len(queue)
	s.startedAt = now
	s.presentedAt = now
	s.deadline = time.Time{}
	s.answers = nil
	s.opts.Logger.Debug("session started", slog.String("state", state.String()), slog.Int("facts", len(queue)))
	if len(queue) == 0 && state == Practice {
		s.state = Setup
	}
}

// Current returns the fact awaiting an answer.
func (s *Session) Current() (fact.Fact, bool) {
	if !s.Running() || len(s.queue) == 0 {
		return fact.Fact{}, false
	}
	return s.queue[len(s.queue)-1], true
}

// Progress returns the number of facts done and the size of the run.
func (s *Session) Progress() (done, total int) {
	return s.total - len(s.queue), s.total
}

// TimeLeft returns the remaining test time, or 0 outside a test.
func (s *Session) TimeLeft() time.Duration {
	if s.state != Testing {
		return 0
	}
	left := s.deadline.Sub(s.opts.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Answer records value as the answer to the current fact.
//
// A correct answer adds the time since the fact was presented; a wrong one
// counts an error. In practice a wrong answer repeats the fact; in a test
// every answer moves on. The ledger is saved after each answer. A save
// failure is returned together with the outcome; the session has already
// advanced.
func (s *Session) Answer(ctx context.Context, value int) (Outcome, error) {
	if !s.Running() {
		return Outcome{}, fmt.Errorf("%w: answer in %s", ErrInvalidTransition, s.state)
	}
	f, ok := s.Current()
	if !ok {
		return Outcome{}, ErrNoCurrentFact
	}
	now := s.opts.Now()
	out := Outcome{
		Fact:    f,
		Given:   value,
		Correct: value == f.Answer(),
		Elapsed: now.Sub(s.presentedAt),
	}
	if out.Correct {
		s.ledger.RecordCorrect(f, out.Elapsed.Seconds())
		s.opts.Logger.Debug("correct answer", slog.String("fact", f.String()), slog.Duration("elapsed", out.Elapsed))
	} else {
		s.ledger.RecordError(f)
		s.opts.Logger.Debug("wrong answer", slog.String("fact", f.String()), slog.Int("given", value))
	}
	var errs []error
	if err := s.backend.SaveLedger(ctx, s.ledger); err != nil {
		errs = append(errs, fmt.Errorf("failed to save ledger: %w", err))
	}

	if s.state == Testing {
		s.answers = append(s.answers, model.TestAnswer{Fact: f, Given: value, Correct: out.Correct})
		s.advance(now)
	} else if out.Correct {
		s.advance(now)
	}

	if len(s.queue) == 0 || (s.state == Testing && !now.Before(s.deadline)) {
		out.Finished = true
		report, err := s.finish(ctx, now)
		if err != nil {
			errs = append(errs, err)
		}
		out.Report = report
	}
	return out, errors.Join(errs...)
}

func (s *Session) advance(now time.Time) {
	s.queue = s.queue[:len(s.queue)-1]
	s.presentedAt = now
}

// Expire finishes a test whose deadline has passed without waiting for an
// answer. It returns a nil report when no test is due.
func (s *Session) Expire(ctx context.Context) (*Report, error) {
	if s.state != Testing {
		return nil, nil
	}
	now := s.opts.Now()
	if now.Before(s.deadline) {
		return nil, nil
	}
	return s.finish(ctx, now)
}

// Stop abandons the current run and returns to Setup.
func (s *Session) Stop() {
	if s.Running() {
		s.opts.Logger.Debug("session stopped", slog.String("state", s.state.String()))
	}
	s.state = Setup
	s.queue = nil
	s.total = 0
	s.answers = nil
	s.deadline = time.Time{}
}

func (s *Session) finish(ctx context.Context, now time.Time) (*Report, error) {
	state := s.state
	s.state = Setup
	if state != Testing {
		s.opts.Logger.Debug("practice finished", slog.Int("facts", s.total))
		return nil, nil
	}
	result := model.TestResult{
		StartedAt: s.startedAt,
		EndedAt:   now,
		Tables:    s.tables,
		Size:      s.opts.TestSize,
		Answered:  len(s.answers),
		TimedOut:  len(s.queue) > 0,
		Answers:   s.answers,
	}
	for _, a := range s.answers {
		if a.Correct {
			result.Correct++
		}
	}
	s.queue = nil
	s.answers = nil
	report := NewReport(result)
	s.opts.Logger.Info("test finished",
		slog.Int("correct", result.Correct),
		slog.Int("size", result.Size),
		slog.String("grade", report.Grade.String()))

	recorder, ok := s.backend.(HistoryRecorder)
	if !ok {
		return &report, nil
	}
	id, err := recorder.InsertTestResult(ctx, result)
	if err != nil {
		return &report, fmt.Errorf("failed to save test result: %w", err)
	}
	report.Result.ID = id
	return &report, nil
}
