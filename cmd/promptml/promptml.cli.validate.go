package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/itsatony/go-promptml"
)

// validateConfig holds parsed validate command configuration
type validateConfig struct {
	templatePath string
	format       string
}

// validationOutput represents JSON output for validation
type validationOutput struct {
	Valid     bool                   `json:"valid"`
	Fragments int                    `json:"fragments"`
	Error     *validationErrorOutput `json:"error,omitempty"`
}

type validationErrorOutput struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Offset  int    `json:"offset"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

func runValidate(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseValidateFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgInvalidFlags, err)
		return ExitCodeUsageError
	}

	source, err := readInput(cfg.templatePath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgReadFileFailed, err)
		return ExitCodeInputError
	}

	parser := promptml.NewParser(promptml.WithStrict(true))
	result, err := parser.ParseResult(string(source))
	if result == nil {
		// Only an encoding error produces no result.
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgParseTemplateFailed, err)
		return ExitCodeValidationError
	}

	output := validationOutput{Valid: err == nil, Fragments: len(result.Fragments)}
	if err != nil {
		output.Error = &validationErrorOutput{
			Message: err.Error(),
			Reason:  result.Reason,
			Offset:  result.Position.Offset,
			Line:    result.Position.Line,
			Column:  result.Position.Column,
		}
	}

	if cfg.format == OutputFormatJSON {
		return outputValidationJSON(output, stdout, stderr)
	}
	return outputValidationText(output, result.Position, stdout)
}

func parseValidateFlags(args []string) (*validateConfig, error) {
	fs := flag.NewFlagSet(CmdNameValidate, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &validateConfig{}

	fs.StringVar(&cfg.templatePath, FlagTemplate, "", "")
	fs.StringVar(&cfg.templatePath, FlagTemplateShort, "", "")
	fs.StringVar(&cfg.format, FlagFormat, FlagDefaultFormat, "")
	fs.StringVar(&cfg.format, FlagFormatShort, FlagDefaultFormat, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.templatePath == "" {
		return nil, errors.New(ErrMsgMissingTemplate)
	}
	if !validFormat(cfg.format) {
		return nil, errors.New(ErrMsgInvalidFormat)
	}

	return cfg, nil
}

func outputValidationText(output validationOutput, pos promptml.Position, stdout io.Writer) int {
	if output.Valid {
		fmt.Fprintf(stdout, ValidationTextSuccess+FmtNewline, output.Fragments)
		return ExitCodeSuccess
	}

	fmt.Fprintf(stdout, ValidationTextFailure+FmtNewline, pos, output.Error.Offset, output.Error.Reason)
	return ExitCodeValidationError
}

func outputValidationJSON(output validationOutput, stdout, stderr io.Writer) int {
	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgJSONMarshalFailed, err)
		return ExitCodeError
	}
	fmt.Fprintln(stdout, string(jsonBytes))

	if !output.Valid {
		return ExitCodeValidationError
	}
	return ExitCodeSuccess
}
