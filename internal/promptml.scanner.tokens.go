package internal

import "fmt"

// Position represents a location in the source text
type Position struct {
	Offset int // Byte offset from start
	Line   int // 1-indexed line number
	Column int // 1-indexed column number, counted in runes
}

// String returns a human-readable position string
func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// TokenType identifies which grammar alternative produced a token
type TokenType int

// Token type constants
const (
	TokenTypeEscape TokenType = iota
	TokenTypeControl
	TokenTypeText
)

// Token type names for debugging
const (
	TokenTypeNameEscape  = "ESCAPE"
	TokenTypeNameControl = "CONTROL"
	TokenTypeNameText    = "TEXT"
)

// String returns the name of the token type
func (t TokenType) String() string {
	switch t {
	case TokenTypeEscape:
		return TokenTypeNameEscape
	case TokenTypeControl:
		return TokenTypeNameControl
	default:
		return TokenTypeNameText
	}
}

// Token is one matched grammar alternative.
// For escapes Value is the escaped character, for text the literal run,
// for controls the control name. Options holds raw option tokens in source
// order (duplicates kept) and is non-nil only for controls.
type Token struct {
	Type     TokenType
	Value    string
	Options  []string
	Position Position
}

// String returns a human-readable representation of the token
func (t Token) String() string {
	if t.Type == TokenTypeControl {
		return fmt.Sprintf("Token{%s: %q %v @ %s}", t.Type, t.Value, t.Options, t.Position)
	}
	return fmt.Sprintf("Token{%s: %q @ %s}", t.Type, t.Value, t.Position)
}

// IsPlain reports whether the token produces a plain text fragment
func (t Token) IsPlain() bool {
	return t.Type != TokenTypeControl
}

// Stop describes where and why scanning ended
type Stop struct {
	Position Position
	Reason   string // StopReasonNone when the whole input was consumed
}

// Complete reports whether the scan consumed the entire input
func (s Stop) Complete() bool {
	return s.Reason == StopReasonNone
}
