package fact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorString(t *testing.T) {
	assert.Equal(t, "x", Mul.String())
	assert.Equal(t, ":", Div.String())
}

func TestOperatorApply(t *testing.T) {
	assert.Equal(t, 8, Mul.Apply(4, 2))
	assert.Equal(t, 2, Div.Apply(4, 2))
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in      string
		want    Operator
		wantErr bool
	}{
		{in: "x", want: Mul},
		{in: "*", want: Mul},
		{in: ":", want: Div},
		{in: "div", want: Div},
		{in: "+", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperator(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFactString(t *testing.T) {
	assert.Equal(t, "2 x 4", New(2, Mul, 4).String())
	assert.Equal(t, "20 : 4", New(20, Div, 4).String())
}

func TestFactAnswer(t *testing.T) {
	assert.Equal(t, 8, New(2, Mul, 4).Answer())
	assert.Equal(t, 5, New(20, Div, 4).Answer())
}

func TestFactIsMapKey(t *testing.T) {
	m := map[Fact]int{}
	m[New(2, Mul, 2)]++
	m[New(2, Mul, 2)]++
	assert.Equal(t, 2, m[New(2, Mul, 2)])
	assert.Len(t, m, 1)
}

func TestGenerateSingleTable(t *testing.T) {
	facts := Universe([]int{2})
	require.Len(t, facts, 20)
	assert.Equal(t, New(1, Mul, 2), facts[0])
	assert.Equal(t, New(5, Mul, 2), facts[4])
	assert.Equal(t, New(10, Div, 2), facts[14])
	assert.Equal(t, New(20, Div, 2), facts[19])
}

func TestGenerateAllTables(t *testing.T) {
	facts := Universe(DefaultTables())
	require.Len(t, facts, 200)
	assert.Equal(t, New(1, Mul, 1), facts[0])
	assert.Equal(t, New(5, Mul, 3), facts[42])
	assert.Equal(t, New(6, Mul, 6), facts[55])
	assert.Equal(t, New(1, Div, 1), facts[100])
	assert.Equal(t, New(12, Div, 3), facts[132])
	assert.Equal(t, New(100, Div, 10), facts[199])
}

func TestGenerateDivisionIsExact(t *testing.T) {
	for f := range Generate(DefaultTables(), Div) {
		assert.Equal(t, f.Left, f.Answer()*f.Right, f.String())
	}
}

func TestGenerateRestartable(t *testing.T) {
	seq := Generate([]int{3, 7}, Mul)
	var first, second []Fact
	for f := range seq {
		first = append(first, f)
	}
	for f := range seq {
		second = append(second, f)
	}
	assert.Len(t, first, 20)
	assert.Equal(t, first, second)
}

func TestGenerateEarlyBreak(t *testing.T) {
	n := 0
	for range Generate(DefaultTables()) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestGenerateEmptyTables(t *testing.T) {
	assert.Empty(t, Universe(nil))
}

func TestGenerateKeepsTableOrder(t *testing.T) {
	facts := Universe([]int{5, 2}, Mul)
	assert.Equal(t, New(1, Mul, 5), facts[0])
	assert.Equal(t, New(1, Mul, 2), facts[1])
}

func TestParse(t *testing.T) {
	f, err := Parse("12 : 3")
	require.NoError(t, err)
	assert.Equal(t, New(12, Div, 3), f)

	f, err = Parse(New(7, Mul, 8).String())
	require.NoError(t, err)
	assert.Equal(t, New(7, Mul, 8), f)

	for _, in := range []string{"", "1 x", "a x 2", "1 + 2", "1 x b", "0 : 0", "4 : 0"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestUniqueTables(t *testing.T) {
	assert.Equal(t, []int{3, 2, 7}, UniqueTables([]int{3, 2, 3, 0, -1, 7, 2}))
	assert.Empty(t, UniqueTables([]int{0, -4}))
}

func TestGenerateDropsDuplicateAndNonPositiveTables(t *testing.T) {
	facts := Universe([]int{2, 2, 0, -3})
	require.Len(t, facts, 20)
	assert.Equal(t, Universe([]int{2}), facts)
	for _, f := range facts {
		assert.True(t, f.Valid(), f.String())
	}
}

func TestFactValid(t *testing.T) {
	assert.True(t, New(0, Mul, 0).Valid())
	assert.True(t, New(12, Div, 3).Valid())
	assert.False(t, New(0, Div, 0).Valid())
	assert.False(t, New(1, Operator(7), 1).Valid())
}
