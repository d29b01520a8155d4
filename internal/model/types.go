// Package model defines shared data structures.
package model

import (
	"time"

	"github.com/verte-zerg/tafels/internal/fact"
)

// Config defines drill settings after merging flags and the config file.
type Config struct {
	Tables       []int         `flag:"tables" validate:"unique,dive,min=1,max=10"`
	Operators    []string      `flag:"ops" validate:"min=1,dive,oneof=x :"`
	TestSize     int           `flag:"size" validate:"gt=0"`
	TestDuration time.Duration `flag:"duration" validate:"gt=0"`
	Backend      string        `flag:"backend" validate:"oneof=file sqlite"`
	StateDir     string        `flag:"state-dir" validate:"required"`
}

// StatsConfig defines stats report settings.
type StatsConfig struct {
	Weak int `flag:"weak" validate:"gte=0"`
	Top  int `flag:"top" validate:"gte=0"`
	Last int `flag:"last" validate:"gte=0"`
}

// TestResult captures a finished test session.
type TestResult struct {
	ID        int64
	StartedAt time.Time
	EndedAt   time.Time
	Tables    []int
	Size      int
	Answered  int
	Correct   int
	TimedOut  bool
	Answers   []TestAnswer
}

// Score returns the share of correct answers relative to the test size.
func (r TestResult) Score() float64 {
	if r.Size <= 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Size)
}

// TestAnswer is the answer given to one fact during a test.
type TestAnswer struct {
	Fact    fact.Fact
	Given   int
	Correct bool
}
