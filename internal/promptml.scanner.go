package internal

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Scanner walks markup source left to right, matching one grammar
// alternative per step: escape, then control block, then literal text.
// It never backtracks past the current position. When no alternative
// matches it stops and records why.
type Scanner struct {
	source string
	pos    int // Current byte position
	line   int // Current line (1-indexed)
	column int // Current column (1-indexed)
	stop   *Stop
	logger *zap.Logger
}

// NewScanner creates a scanner over source
func NewScanner(source string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug(LogMsgScannerCreated, zap.Int(LogFieldSource, len(source)))
	return &Scanner{
		source: source,
		line:   1,
		column: 1,
		logger: logger,
	}
}

// Tokenize scans the whole source and returns the matched tokens together
// with the stop record. Tokens matched before a mismatch are always returned.
func (s *Scanner) Tokenize() ([]Token, Stop) {
	s.logger.Debug(LogMsgScanStart)
	var tokens []Token
	for {
		tok, ok := s.Next()
		if !ok {
			break
		}
		tokens = append(tokens, tok)
	}
	stop := s.Stop()
	if !stop.Complete() {
		s.logger.Debug(LogMsgScanStopped,
			zap.Int(LogFieldOffset, stop.Position.Offset),
			zap.String(LogFieldReason, stop.Reason))
	}
	s.logger.Debug(LogMsgScanEnd, zap.Int(LogFieldTokens, len(tokens)))
	return tokens, stop
}

// Next returns the next token. It returns false once the input is exhausted
// or no alternative matches; Stop then reports which of the two happened.
func (s *Scanner) Next() (Token, bool) {
	if s.stop != nil {
		return Token{}, false
	}
	if s.isAtEnd() {
		s.stopWith(StopReasonNone)
		return Token{}, false
	}

	start := s.currentPosition()
	switch s.source[s.pos] {
	case CharBackslash:
		if s.pos+1 >= len(s.source) {
			s.stopWith(StopReasonDanglingEscape)
			return Token{}, false
		}
		next := s.source[s.pos+1]
		if strings.IndexByte(EscapableChars, next) < 0 {
			s.stopWith(StopReasonInvalidEscape)
			return Token{}, false
		}
		s.advanceTo(s.pos + 2)
		return Token{Type: TokenTypeEscape, Value: string(next), Position: start}, true

	case CharOpenBracket:
		end, name, options, reason := s.matchControl(s.pos)
		if reason != StopReasonNone {
			s.stopWith(reason)
			return Token{}, false
		}
		s.advanceTo(end)
		return Token{Type: TokenTypeControl, Value: name, Options: options, Position: start}, true

	case CharCloseBracket:
		s.stopWith(StopReasonUnexpectedClosing)
		return Token{}, false
	}

	end := s.pos + runLength(s.source[s.pos:], TextStopChars)
	value := s.source[s.pos:end]
	s.advanceTo(end)
	return Token{Type: TokenTypeText, Value: value, Position: start}, true
}

// Stop returns the stop record. Before scanning has ended it describes
// the current position with no reason.
func (s *Scanner) Stop() Stop {
	if s.stop == nil {
		return Stop{Position: s.currentPosition()}
	}
	return *s.stop
}

// matchControl matches `[name]` or `[name|opt(sep+opt)*]` starting at the
// open bracket at p. It returns the offset just past the closing bracket,
// or a non-empty reason when the block does not match.
func (s *Scanner) matchControl(p int) (int, string, []string, string) {
	src := s.source
	q := p + 1

	n := runLength(src[q:], ControlStopChars)
	if n == 0 {
		return 0, "", nil, s.controlFailure(q, StopReasonEmptyName)
	}
	name := src[q : q+n]
	q += n

	options := []string{}
	if q < len(src) && src[q] == CharPipe {
		q++
		n = runLength(src[q:], ControlStopChars)
		if n == 0 {
			return 0, "", nil, s.controlFailure(q, StopReasonEmptyOption)
		}
		options = append(options, src[q:q+n])
		q += n

		for q < len(src) {
			sep := spanLength(src[q:], OptionSeparatorChars)
			if sep == 0 {
				break
			}
			q += sep
			n = runLength(src[q:], ControlStopChars)
			if n == 0 {
				return 0, "", nil, s.controlFailure(q, StopReasonEmptyOption)
			}
			options = append(options, src[q:q+n])
			q += n
		}
	}

	if q >= len(src) {
		return 0, "", nil, StopReasonUnterminated
	}
	if src[q] != CharCloseBracket {
		return 0, "", nil, StopReasonMalformedControl
	}
	return q + 1, name, options, StopReasonNone
}

// controlFailure picks the reason for a control block that failed at q
func (s *Scanner) controlFailure(q int, reason string) string {
	if q >= len(s.source) {
		return StopReasonUnterminated
	}
	return reason
}

// Helper methods

func (s *Scanner) stopWith(reason string) {
	s.stop = &Stop{Position: s.currentPosition(), Reason: reason}
}

// currentPosition returns the current position
func (s *Scanner) currentPosition() Position {
	return Position{
		Offset: s.pos,
		Line:   s.line,
		Column: s.column,
	}
}

// isAtEnd returns true if we've reached the end of source
func (s *Scanner) isAtEnd() bool {
	return s.pos >= len(s.source)
}

// advanceTo moves to byte offset end, keeping line and column current
func (s *Scanner) advanceTo(end int) {
	for s.pos < end {
		r, size := utf8.DecodeRuneInString(s.source[s.pos:])
		s.pos += size
		if r == CharNewline {
			s.line++
			s.column = 1
		} else {
			s.column++
		}
	}
}

// runLength returns the byte length of the prefix of s containing none of stop.
// All stop characters are ASCII, so a byte scan is safe on UTF-8 input.
func runLength(s, stop string) int {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(stop, s[i]) >= 0 {
			return i
		}
	}
	return len(s)
}

// spanLength returns the byte length of the prefix of s made only of chars
func spanLength(s, chars string) int {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(chars, s[i]) < 0 {
			return i
		}
	}
	return len(s)
}
