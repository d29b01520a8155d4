package session

import "github.com/verte-zerg/tafels/internal/model"

// Grade buckets a test score.
type Grade int

const (
	Poor Grade = iota
	Fair
	Good
	Great
	Trophy
)

func (g Grade) String() string {
	switch g {
	case Trophy:
		return "trophy"
	case Great:
		return "great"
	case Good:
		return "good"
	case Fair:
		return "fair"
	default:
		return "poor"
	}
}

// GradeFor maps a score in [0, 1] to a Grade.
func GradeFor(score float64) Grade {
	switch {
	case score >= 1.0:
		return Trophy
	case score >= 0.9:
		return Great
	case score >= 0.8:
		return Good
	case score >= 0.6:
		return Fair
	default:
		return Poor
	}
}

// Report is the graded outcome of a test.
type Report struct {
	Result model.TestResult
	Grade  Grade
}

// NewReport grades result. Unanswered facts count against the score.
func NewReport(result model.TestResult) Report {
	return Report{Result: result, Grade: GradeFor(result.Score())}
}
