package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExprString(t *testing.T) {
	assert.Equal(t, "a + 1", Bin(Id("a"), OpAdd, Int(1)).String())
	assert.Equal(t, "a - b - c", Bin(Bin(Id("a"), OpSub, Id("b")), OpSub, Id("c")).String())
	assert.Equal(t, "a - (b - c)", Bin(Id("a"), OpSub, Bin(Id("b"), OpSub, Id("c"))).String())
	assert.Equal(t, "i % 2", Bin(Id("i"), OpRem, Int(2)).String())
}

func TestProgramString(t *testing.T) {
	p := NewProgram(
		&Assign{Target: "a", Value: Int(41)},
		&DoWhile{
			Body: []Statement{&Assign{Target: "a", Value: Bin(Id("a"), OpAdd, Int(1))}},
			Cond: Bin(Id("a"), OpLess, Int(42)),
		},
		&While{
			Cond: Bin(Id("a"), OpLess, Int(50)),
			Body: []Statement{&If{
				Cond: Bin(Id("a"), OpLess, Int(45)),
				Body: []Statement{&Assign{Target: "a", Value: Bin(Id("a"), OpDiv, Int(2))}},
			}},
		},
		&Return{Value: Id("a")},
	)

	want := `a = 41;
do {
  a = a + 1;
} while (a < 42);
while (a < 50) {
  if (a < 45) {
    a = a / 2;
  }
}
return a;
`
	assert.Equal(t, want, p.String())
}

func TestOperatorString(t *testing.T) {
	ops := map[Operator]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpRem: "%", OpLess: "<", Operator(99): "?"}
	for op, want := range ops {
		assert.Equal(t, want, op.String())
	}
}
