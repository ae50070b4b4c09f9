// Package lexer splits program text into tokens.
package lexer

import (
	"fmt"
	"strconv"
	"unicode"
)

// Kind represents the type of a token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Int
	Keyword
	Assign    // =
	Plus      // +
	Minus     // -
	Star      // *
	Slash     // /
	Percent   // %
	Less      // <
	Greater   // >
	Semicolon // ;
	LParen    // (
	RParen    // )
	LBrace    // {
	RBrace    // }
)

var kindNames = map[Kind]string{
	EOF:       "EOF",
	Ident:     "identifier",
	Int:       "integer",
	Keyword:   "keyword",
	Assign:    "'='",
	Plus:      "'+'",
	Minus:     "'-'",
	Star:      "'*'",
	Slash:     "'/'",
	Percent:   "'%'",
	Less:      "'<'",
	Greater:   "'>'",
	Semicolon: "';'",
	LParen:    "'('",
	RParen:    "')'",
	LBrace:    "'{'",
	RBrace:    "'}'",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

var punct = map[rune]Kind{
	'=': Assign,
	'+': Plus,
	'-': Minus,
	'*': Star,
	'/': Slash,
	'%': Percent,
	'<': Less,
	'>': Greater,
	';': Semicolon,
	'(': LParen,
	')': RParen,
	'{': LBrace,
	'}': RBrace,
}

var keywords = map[string]bool{
	"if":     true,
	"while":  true,
	"do":     true,
	"return": true,
	"break":  true,
}

// Token is one lexeme with its 1-based source position.
type Token struct {
	Kind   Kind
	Text   string
	Value  int64 // Int tokens only
	Line   int
	Column int
}

func (t Token) String() string {
	switch t.Kind {
	case Ident, Keyword, Int:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	default:
		return t.Kind.String()
	}
}

// Error is a lexical error at a source position.
type Error struct {
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

// Lexer scans a source string.
type Lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

// Tokenize scans the whole input. The last token is always EOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

// Next returns the next token. Whitespace and // comments are skipped.
func (l *Lexer) Next() (Token, error) {
	l.skipSpaceAndComments()

	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Line: l.line, Column: l.col}, nil
	}

	line, col := l.line, l.col
	c := l.src[l.pos]

	switch {
	case unicode.IsLetter(c) || c == '_':
		text := l.scanWhile(func(r rune) bool { return unicode.IsLetter(r) || isDigit(r) || r == '_' })
		kind := Ident
		if keywords[text] {
			kind = Keyword
		}
		return Token{Kind: kind, Text: text, Line: line, Column: col}, nil

	case isDigit(c):
		text := l.scanWhile(isDigit)
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Token{}, &Error{Line: line, Column: col, Msg: fmt.Sprintf("integer literal %s out of range", text)}
		}
		return Token{Kind: Int, Text: text, Value: v, Line: line, Column: col}, nil
	}

	if kind, ok := punct[c]; ok {
		l.advance()
		return Token{Kind: kind, Text: string(c), Line: line, Column: col}, nil
	}

	return Token{}, &Error{Line: line, Column: col, Msg: fmt.Sprintf("unexpected character %q", c)}
}

// isDigit matches ASCII digits only; other Unicode digits are not valid in literals.
func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func (l *Lexer) advance() {
	if l.src[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) scanWhile(pred func(rune) bool) string {
	start := l.pos
	for l.pos < len(l.src) && pred(l.src[l.pos]) {
		l.advance()
	}
	return string(l.src[start:l.pos])
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case unicode.IsSpace(c):
			l.advance()
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}
