package promptml

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/itsatony/go-promptml/internal"
)

// Parser turns promptml source into fragments.
// A Parser is immutable after construction and safe for concurrent use.
type Parser struct {
	config *parserConfig
	logger *zap.Logger
}

// Result is the detailed outcome of a parse
type Result struct {
	// Fragments holds the folded fragments matched before scanning stopped
	Fragments []Fragment
	// Consumed is the number of source bytes that produced Fragments
	Consumed int
	// Complete is true when the whole source was consumed
	Complete bool
	// Position is where scanning stopped
	Position Position
	// Reason describes the mismatch when Complete is false
	Reason string
}

// defaultParser backs the package-level parse functions
var defaultParser = NewParser()

// NewParser creates a parser with the given options
func NewParser(opts ...Option) *Parser {
	config := defaultParserConfig()
	for _, opt := range opts {
		opt(config)
	}
	logger := config.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{config: config, logger: logger}
}

// Strict reports whether the parser reports truncated input as an error
func (p *Parser) Strict() bool {
	return p.config.strict
}

// Parse parses source into fragments.
// It stops silently at the first position no grammar alternative matches
// and returns the fragments parsed so far. Only invalid UTF-8 is an error.
func Parse(source string) ([]Fragment, error) {
	return defaultParser.Parse(source)
}

// ParseBytes parses source held in a byte slice
func ParseBytes(source []byte) ([]Fragment, error) {
	return defaultParser.ParseBytes(source)
}

// Parse parses source into fragments. A strict parser returns the fragments
// parsed so far together with a syntax error when input is left over.
func (p *Parser) Parse(source string) ([]Fragment, error) {
	result, err := p.ParseResult(source)
	if result == nil {
		return nil, err
	}
	return result.Fragments, err
}

// ParseBytes parses source held in a byte slice
func (p *Parser) ParseBytes(source []byte) ([]Fragment, error) {
	if !utf8.Valid(source) {
		return nil, NewEncodingError(invalidUTF8Offset(string(source)))
	}
	return p.Parse(string(source))
}

// ParseTemplate parses source into a Template
func (p *Parser) ParseTemplate(source string) (*Template, error) {
	fragments, err := p.Parse(source)
	if err != nil {
		return nil, err
	}
	return &Template{fragments: fragments}, nil
}

// ParseResult parses source and reports where scanning stopped.
// The returned Result is nil only for an encoding error.
func (p *Parser) ParseResult(source string) (*Result, error) {
	if !utf8.ValidString(source) {
		return nil, NewEncodingError(invalidUTF8Offset(source))
	}

	p.logger.Debug(LogMsgParseStart, zap.Int(LogFieldSourceLength, len(source)))

	scanner := internal.NewScanner(source, p.logger)
	tokens, stop := scanner.Tokenize()

	result := &Result{
		Fragments: fold(tokens),
		Consumed:  stop.Position.Offset,
		Complete:  stop.Complete(),
		Position:  stop.Position,
		Reason:    stop.Reason,
	}

	if !result.Complete {
		p.logger.Warn(LogMsgParseTruncated,
			zap.Int(LogFieldOffset, stop.Position.Offset),
			zap.String(LogFieldReason, stop.Reason))
	}
	p.logger.Debug(LogMsgParseEnd,
		zap.Int(LogFieldFragments, len(result.Fragments)),
		zap.Int(LogFieldConsumed, result.Consumed))

	if p.config.strict && !result.Complete {
		return result, NewSyntaxError(stop.Reason, stop.Position)
	}
	return result, nil
}

// fold converts tokens to fragments, merging adjacent plain pieces.
// Control tokens always start a new fragment.
func fold(tokens []internal.Token) []Fragment {
	fragments := make([]Fragment, 0, len(tokens))
	var text strings.Builder
	inText := false

	flush := func() {
		if inText {
			fragments = append(fragments, NewText(text.String()))
			text.Reset()
			inText = false
		}
	}

	for _, tok := range tokens {
		if tok.IsPlain() {
			text.WriteString(tok.Value)
			inText = true
			continue
		}
		flush()
		fragments = append(fragments, NewControl(tok.Value, tok.Options...))
	}
	flush()
	return fragments
}

// invalidUTF8Offset returns the byte offset of the first invalid sequence
func invalidUTF8Offset(s string) int {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return i
			}
		}
	}
	return len(s)
}
