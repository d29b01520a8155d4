// Package fact defines arithmetic facts and the generator for fact universes.
package fact

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator is the arithmetic operation of a fact.
type Operator int

const (
	// Mul multiplies the operands.
	Mul Operator = iota + 1
	// Div divides the left operand by the right operand.
	Div
)

// String returns the display symbol of the operator.
func (o Operator) String() string {
	switch o {
	case Mul:
		return "x"
	case Div:
		return ":"
	default:
		return "Operator(" + strconv.Itoa(int(o)) + ")"
	}
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	return o == Mul || o == Div
}

// Apply computes left <op> right. Division truncates; generated facts are always exact.
func (o Operator) Apply(left, right int) int {
	if o == Mul {
		return left * right
	}
	return left / right
}

// ParseOperator maps a display symbol (or name) to an Operator.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "x", "*", "mul":
		return Mul, nil
	case ":", "/", "div":
		return Div, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}

// AllOperators returns every operator in generation order.
func AllOperators() []Operator {
	return []Operator{Mul, Div}
}

// Fact is one arithmetic problem. It is comparable and usable as a map key.
type Fact struct {
	Left  int
	Op    Operator
	Right int
}

// New returns a fact.
func New(left int, op Operator, right int) Fact {
	return Fact{Left: left, Op: op, Right: right}
}

// Valid reports whether f has a known operator and, for division, a
// non-zero divisor.
func (f Fact) Valid() bool {
	if !f.Op.Valid() {
		return false
	}
	return f.Op != Div || f.Right != 0
}

// Answer returns the expected result.
func (f Fact) Answer() int {
	return f.Op.Apply(f.Left, f.Right)
}

// String renders the fact as "<left> <symbol> <right>".
func (f Fact) String() string {
	return strconv.Itoa(f.Left) + " " + f.Op.String() + " " + strconv.Itoa(f.Right)
}

// Less orders facts by operator, then left, then right.
func (f Fact) Less(o Fact) bool {
	if f.Op != o.Op {
		return f.Op < o.Op
	}
	if f.Left != o.Left {
		return f.Left < o.Left
	}
	return f.Right < o.Right
}

// Parse reads a fact in its display form, e.g. "3 x 4" or "12 : 3".
func Parse(s string) (Fact, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return Fact{}, fmt.Errorf("invalid fact %q", s)
	}
	left, err := strconv.Atoi(parts[0])
	if err != nil {
		return Fact{}, fmt.Errorf("invalid fact %q: %w", s, err)
	}
	op, err := ParseOperator(parts[1])
	if err != nil {
		return Fact{}, fmt.Errorf("invalid fact %q: %w", s, err)
	}
	right, err := strconv.Atoi(parts[2])
	if err != nil {
		return Fact{}, fmt.Errorf("invalid fact %q: %w", s, err)
	}
	f := Fact{Left: left, Op: op, Right: right}
	if !f.Valid() {
		return Fact{}, fmt.Errorf("invalid fact %q: division by zero", s)
	}
	return f, nil
}
