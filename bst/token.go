package bst

import "fmt"

// ---------------------------------------------------------------------------
// Token types for style programs
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenIdentifier // ITERATE, format.name$, :=
	TokenInteger    // #12, #-3
	TokenString     // "text"
	TokenQuote      // 'skip$
	TokenLBrace     // {
	TokenRBrace     // }
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenIdentifier: "IDENTIFIER",
	TokenInteger:    "INTEGER",
	TokenString:     "STRING",
	TokenQuote:      "QUOTE",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a place in a style file. Line and Column are 1-based.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token. For quotes Literal holds the quoted
// name without the apostrophe; for strings it holds the text between the
// quotes.
type Token struct {
	Type    TokenType
	Literal string
	Int     int
	Pos     Position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}
