package promptml

import (
	"go.uber.org/zap"
)

// Option is a functional option for configuring a Parser.
type Option func(*parserConfig)

// parserConfig holds the internal configuration for a Parser.
type parserConfig struct {
	strict bool
	logger *zap.Logger
}

// defaultParserConfig returns the default parser configuration.
func defaultParserConfig() *parserConfig {
	return &parserConfig{
		strict: false,
		logger: nil,
	}
}

// WithStrict makes the parser report input it could not consume as a
// syntax error instead of silently discarding it.
// Default: false
func WithStrict(strict bool) Option {
	return func(c *parserConfig) {
		c.strict = strict
	}
}

// WithLogger sets the logger for the parser.
// Default: nil (no logging)
func WithLogger(logger *zap.Logger) Option {
	return func(c *parserConfig) {
		c.logger = logger
	}
}
