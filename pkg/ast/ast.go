// Package ast defines the syntax tree of the analysed language: programs made of
// assignments, returns, if, while and do-while statements over integer and
// identifier expressions.
package ast

import (
	"strconv"
	"strings"
)

// Operator is a binary operator.
type Operator int

const (
	OpAdd  Operator = iota // +
	OpSub                  // -
	OpMul                  // *
	OpDiv                  // /
	OpRem                  // %
	OpLess                 // <
)

func (o Operator) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpRem:
		return "%"
	case OpLess:
		return "<"
	default:
		return "?"
	}
}

// Expr is an expression node. The set of implementations is closed.
type Expr interface {
	exprNode()
	String() string
}

// Ident is a variable reference.
type Ident struct {
	Name string
}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
}

// BinaryExpr is Left Op Right.
type BinaryExpr struct {
	Left  Expr
	Op    Operator
	Right Expr
}

func (*Ident) exprNode()      {}
func (*IntLit) exprNode()     {}
func (*BinaryExpr) exprNode() {}

func (e *Ident) String() string  { return e.Name }
func (e *IntLit) String() string { return strconv.FormatInt(e.Value, 10) }

// String renders e left-associatively; a binary right operand is parenthesised
// so the output parses back to the same tree.
func (e *BinaryExpr) String() string {
	right := e.Right.String()
	if _, ok := e.Right.(*BinaryExpr); ok {
		right = "(" + right + ")"
	}
	return e.Left.String() + " " + e.Op.String() + " " + right
}

// Statement is a statement node. The set of implementations is closed.
type Statement interface {
	stmtNode()
}

// Assign is Target = Value;
type Assign struct {
	Target string
	Value  Expr
}

// Return is return Value;
type Return struct {
	Value Expr
}

// If is if (Cond) { Body }
type If struct {
	Cond Expr
	Body []Statement
}

// While is while (Cond) { Body }
type While struct {
	Cond Expr
	Body []Statement
}

// DoWhile is do { Body } while (Cond);
type DoWhile struct {
	Body []Statement
	Cond Expr
}

func (*Assign) stmtNode()  {}
func (*Return) stmtNode()  {}
func (*If) stmtNode()      {}
func (*While) stmtNode()   {}
func (*DoWhile) stmtNode() {}

// Program is the root of the tree.
type Program struct {
	Statements []Statement
}

// NewProgram returns a program holding stmts.
func NewProgram(stmts ...Statement) *Program {
	return &Program{Statements: stmts}
}

// String pretty-prints the program with two-space indentation.
func (p *Program) String() string {
	var sb strings.Builder
	writeStatements(&sb, p.Statements, 0)
	return sb.String()
}

func writeStatements(sb *strings.Builder, stmts []Statement, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, s := range stmts {
		switch s := s.(type) {
		case *Assign:
			sb.WriteString(indent + s.Target + " = " + s.Value.String() + ";\n")
		case *Return:
			sb.WriteString(indent + "return " + s.Value.String() + ";\n")
		case *If:
			sb.WriteString(indent + "if (" + s.Cond.String() + ") {\n")
			writeStatements(sb, s.Body, depth+1)
			sb.WriteString(indent + "}\n")
		case *While:
			sb.WriteString(indent + "while (" + s.Cond.String() + ") {\n")
			writeStatements(sb, s.Body, depth+1)
			sb.WriteString(indent + "}\n")
		case *DoWhile:
			sb.WriteString(indent + "do {\n")
			writeStatements(sb, s.Body, depth+1)
			sb.WriteString(indent + "} while (" + s.Cond.String() + ");\n")
		}
	}
}

// Helpers for building trees by hand, mostly in tests.

// Id returns an identifier expression.
func Id(name string) *Ident { return &Ident{Name: name} }

// Int returns an integer literal.
func Int(v int64) *IntLit { return &IntLit{Value: v} }

// Bin returns l op r.
func Bin(l Expr, op Operator, r Expr) *BinaryExpr {
	return &BinaryExpr{Left: l, Op: op, Right: r}
}
