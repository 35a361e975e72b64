package bst

import (
	"strconv"

	"github.com/chazu/bibtex/scan"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for style programs
// ---------------------------------------------------------------------------

// Lexer tokenizes a style program. A '%' starts a comment running to end
// of line. Strings may not span lines.
type Lexer struct {
	input     string
	pos       int
	line      int
	lineStart int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1}
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.pos - l.lineStart + 1}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	if l.input[l.pos] == '\n' {
		l.line++
		l.lineStart = l.pos + 1
	}
	l.pos++
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case scan.IsWhite(c):
			l.advance()
		case c == '%':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// IsNameChar reports whether c may appear in a style-program name. '=' is
// allowed so that the comparison and assignment built-ins lex as names.
func IsNameChar(c byte) bool {
	return scan.IsIDChar(c) || c == '='
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()
	pos := l.position()
	c := l.peek()
	switch {
	case l.pos >= len(l.input):
		return Token{Type: TokenEOF, Pos: pos}
	case c == '{':
		l.advance()
		return Token{Type: TokenLBrace, Literal: "{", Pos: pos}
	case c == '}':
		l.advance()
		return Token{Type: TokenRBrace, Literal: "}", Pos: pos}
	case c == '"':
		return l.readString(pos)
	case c == '#':
		return l.readInteger(pos)
	case c == '\'':
		l.advance()
		name := l.readName()
		if name == "" {
			return Token{Type: TokenError, Literal: "illegal quoted function name", Pos: pos}
		}
		return Token{Type: TokenQuote, Literal: name, Pos: pos}
	case IsNameChar(c) && !scan.IsNumeric(c):
		return Token{Type: TokenIdentifier, Literal: l.readName(), Pos: pos}
	}
	l.advance()
	return Token{Type: TokenError, Literal: "unexpected character " + strconv.QuoteRune(rune(c)), Pos: pos}
}

// All returns every token up to and including EOF.
func (l *Lexer) All() []Token {
	var toks []Token
	for {
		t := l.NextToken()
		toks = append(toks, t)
		if t.Type == TokenEOF {
			return toks
		}
	}
}

func (l *Lexer) readName() string {
	start := l.pos
	for l.pos < len(l.input) && IsNameChar(l.input[l.pos]) {
		l.advance()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readString(pos Position) Token {
	l.advance()
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		if l.input[l.pos] == '\n' {
			return Token{Type: TokenError, Literal: "no closing quote on this line", Pos: pos}
		}
		l.advance()
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenError, Literal: "no closing quote", Pos: pos}
	}
	s := l.input[start:l.pos]
	l.advance()
	return Token{Type: TokenString, Literal: s, Pos: pos}
}

func (l *Lexer) readInteger(pos Position) Token {
	l.advance()
	start := l.pos
	if l.peek() == '+' || l.peek() == '-' {
		l.advance()
	}
	digits := l.pos
	for l.pos < len(l.input) && scan.IsNumeric(l.input[l.pos]) {
		l.advance()
	}
	if l.pos == digits {
		return Token{Type: TokenError, Literal: "illegal integer in integer literal", Pos: pos}
	}
	lit := l.input[start:l.pos]
	n, err := strconv.Atoi(lit)
	if err != nil {
		return Token{Type: TokenError, Literal: "integer literal out of range", Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: lit, Int: n, Pos: pos}
}
