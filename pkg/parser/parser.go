// Package parser builds an ast.Program from source text by recursive descent.
//
// Grammar:
//
//	program := stmt*
//	stmt    := IDENT '=' expr ';'
//	         | 'return' expr ';'
//	         | 'if' '(' expr ')' '{' stmt* '}'
//	         | 'while' '(' expr ')' '{' stmt* '}'
//	         | 'do' '{' stmt* '}' 'while' '(' expr ')' ';'
//	expr    := operand (op operand)*
//	operand := IDENT | INT | '(' expr ')'
//
// Binary operators have equal precedence and associate to the left.
package parser

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-liveness/pkg/ast"
	"github.com/l3aro/go-liveness/pkg/lexer"
)

// SyntaxError reports malformed input at a source position.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

var binaryOps = map[lexer.Kind]ast.Operator{
	lexer.Plus:    ast.OpAdd,
	lexer.Minus:   ast.OpSub,
	lexer.Star:    ast.OpMul,
	lexer.Slash:   ast.OpDiv,
	lexer.Percent: ast.OpRem,
	lexer.Less:    ast.OpLess,
}

// Parser consumes a token slice.
type Parser struct {
	tokens  []lexer.Token
	current int
}

// New creates a parser over tokens. The slice must end with an EOF token.
func New(tokens []lexer.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != lexer.EOF {
		tokens = append(tokens, lexer.Token{Kind: lexer.EOF})
	}
	return &Parser{tokens: tokens}
}

// Parse tokenizes and parses src.
func Parse(src string) (*ast.Program, error) {
	tokens, err := lexer.New(src).Tokenize()
	if err != nil {
		var lexErr *lexer.Error
		if errors.As(err, &lexErr) {
			return nil, &SyntaxError{Line: lexErr.Line, Column: lexErr.Column, Msg: lexErr.Msg}
		}
		return nil, err
	}
	return New(tokens).ParseProgram()
}

// MustParse is like Parse but panics on error.
func MustParse(src string) *ast.Program {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	stmts, err := p.statements(lexer.EOF)
	if err != nil {
		return nil, err
	}
	return ast.NewProgram(stmts...), nil
}

// statements parses until the closing token, which is left unconsumed.
func (p *Parser) statements(closing lexer.Kind) ([]ast.Statement, error) {
	var stmts []ast.Statement
	for p.peek().Kind != closing {
		if p.peek().Kind == lexer.EOF {
			return nil, p.errorf(p.peek(), "expected %s, got EOF", closing)
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *Parser) statement() (ast.Statement, error) {
	tok := p.peek()
	switch tok.Kind {
	case lexer.Ident:
		return p.assignment()
	case lexer.Keyword:
		switch tok.Text {
		case "return":
			return p.returnStmt()
		case "if":
			return p.ifStmt()
		case "while":
			return p.whileStmt()
		case "do":
			return p.doWhileStmt()
		}
	}
	return nil, p.errorf(tok, "unexpected %s at start of statement", tok)
}

func (p *Parser) assignment() (ast.Statement, error) {
	target := p.next()
	if _, err := p.expect(lexer.Assign); err != nil {
		return nil, err
	}
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semicolon); err != nil {
		return nil, err
	}
	return &ast.Assign{Target: target.Text, Value: value}, nil
}

func (p *Parser) returnStmt() (ast.Statement, error) {
	p.next()
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semicolon); err != nil {
		return nil, err
	}
	return &ast.Return{Value: value}, nil
}

func (p *Parser) ifStmt() (ast.Statement, error) {
	p.next()
	cond, err := p.parenExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Body: body}, nil
}

func (p *Parser) whileStmt() (ast.Statement, error) {
	p.next()
	cond, err := p.parenExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body}, nil
}

func (p *Parser) doWhileStmt() (ast.Statement, error) {
	p.next()
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("while"); err != nil {
		return nil, err
	}
	cond, err := p.parenExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semicolon); err != nil {
		return nil, err
	}
	return &ast.DoWhile{Body: body, Cond: cond}, nil
}

func (p *Parser) block() ([]ast.Statement, error) {
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	body, err := p.statements(lexer.RBrace)
	if err != nil {
		return nil, err
	}
	p.next()
	return body, nil
}

func (p *Parser) parenExpr() (ast.Expr, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *Parser) expr() (ast.Expr, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := binaryOps[p.peek().Kind]
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.operand()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
}

func (p *Parser) operand() (ast.Expr, error) {
	tok := p.next()
	switch tok.Kind {
	case lexer.Ident:
		return &ast.Ident{Name: tok.Text}, nil
	case lexer.Int:
		return &ast.IntLit{Value: tok.Value}, nil
	case lexer.LParen:
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.errorf(tok, "expected expression, got %s", tok)
	}
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

// next consumes a token. EOF is never consumed.
func (p *Parser) next() lexer.Token {
	tok := p.tokens[p.current]
	if tok.Kind != lexer.EOF {
		p.current++
	}
	return tok
}

func (p *Parser) expect(kind lexer.Kind) (lexer.Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errorf(tok, "expected %s, got %s", kind, tok)
	}
	return p.next(), nil
}

func (p *Parser) expectKeyword(kw string) error {
	tok := p.peek()
	if tok.Kind != lexer.Keyword || tok.Text != kw {
		return p.errorf(tok, "expected %q, got %s", kw, tok)
	}
	p.next()
	return nil
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...interface{}) error {
	return &SyntaxError{Line: tok.Line, Column: tok.Column, Msg: fmt.Sprintf(format, args...)}
}
