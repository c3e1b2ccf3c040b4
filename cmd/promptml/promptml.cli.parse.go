package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/itsatony/go-promptml"
)

// parseConfig holds parsed parse command configuration
type parseConfig struct {
	templatePath string
	format       string
	verbose      bool
}

func runParse(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseParseFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgInvalidFlags, err)
		return ExitCodeUsageError
	}

	source, err := readInput(cfg.templatePath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgReadFileFailed, err)
		return ExitCodeInputError
	}

	logger := newLogger(cfg.verbose, stderr)
	defer func() { _ = logger.Sync() }()

	parser := promptml.NewParser(promptml.WithLogger(logger))
	fragments, err := parser.ParseBytes(source)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgParseTemplateFailed, err)
		return ExitCodeInputError
	}

	if cfg.format == OutputFormatJSON {
		return outputFragmentsJSON(fragments, stdout, stderr)
	}
	return outputFragmentsText(fragments, stdout)
}

func parseParseFlags(args []string) (*parseConfig, error) {
	fs := flag.NewFlagSet(CmdNameParse, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &parseConfig{}

	fs.StringVar(&cfg.templatePath, FlagTemplate, "", "")
	fs.StringVar(&cfg.templatePath, FlagTemplateShort, "", "")
	fs.StringVar(&cfg.format, FlagFormat, FlagDefaultFormat, "")
	fs.StringVar(&cfg.format, FlagFormatShort, FlagDefaultFormat, "")
	fs.BoolVar(&cfg.verbose, FlagVerbose, false, "")
	fs.BoolVar(&cfg.verbose, FlagVerboseShort, false, "")

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

func outputFragmentsText(fragments []promptml.Fragment, stdout io.Writer) int {
	for i, f := range fragments {
		if f.IsControl() {
			fmt.Fprintf(stdout, ParseControlFormat, i, f.Kind, f.Text, strings.Join(f.Options(), promptml.OptionJoiner))
			continue
		}
		fmt.Fprintf(stdout, ParseTextFormat, i, f.Kind, f.Text)
	}
	return ExitCodeSuccess
}

func outputFragmentsJSON(fragments []promptml.Fragment, stdout, stderr io.Writer) int {
	jsonBytes, err := json.MarshalIndent(fragments, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgJSONMarshalFailed, err)
		return ExitCodeError
	}
	fmt.Fprintln(stdout, string(jsonBytes))
	return ExitCodeSuccess
}
