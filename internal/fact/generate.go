package fact

import "iter"

// MinOperand and MaxOperand bound the free operand of every table.
const (
	MinOperand = 1
	MaxOperand = 10
)

// DefaultTables returns the full table range 1..10.
func DefaultTables() []int {
	tables := make([]int, 0, MaxOperand-MinOperand+1)
	for t := MinOperand; t <= MaxOperand; t++ {
		tables = append(tables, t)
	}
	return tables
}

// UniqueTables returns the positive entries of tables in first-seen order
// with duplicates removed.
func UniqueTables(tables []int) []int {
	seen := make(map[int]struct{}, len(tables))
	out := make([]int, 0, len(tables))
	for _, t := range tables {
		if t < 1 {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Generate yields every fact for the given tables and operators.
//
// Tables are reduced with UniqueTables first. Facts are ordered by
// operator, then by the free operand 1..10, then by table in the supplied
// order. Division facts are built from the matching
// product so that every answer is an exact integer. With no operators
// both Mul and Div are generated. The sequence can be ranged over any
// number of times.
func Generate(tables []int, ops ...Operator) iter.Seq[Fact] {
	if len(ops) == 0 {
		ops = AllOperators()
	}
	tables = UniqueTables(tables)
	ops = append([]Operator(nil), ops...)
	return func(yield func(Fact) bool) {
		for _, op := range ops {
			for left := MinOperand; left <= MaxOperand; left++ {
				for _, right := range tables {
					f := Fact{Left: left, Op: op, Right: right}
					if op == Div {
						f.Left = left * right
					}
					if !yield(f) {
						return
					}
				}
			}
		}
	}
}

// Universe collects Generate into a slice.
func Universe(tables []int, ops ...Operator) []Fact {
	n := len(ops)
	if n == 0 {
		n = len(AllOperators())
	}
	out := make([]Fact, 0, n*len(UniqueTables(tables))*(MaxOperand-MinOperand+1))
	for f := range Generate(tables, ops...) {
		out = append(out, f)
	}
	return out
}
