package main

// Command names
const (
	CmdNameParse    = "parse"
	CmdNameRender   = "render"
	CmdNameValidate = "validate"
	CmdNameStore    = "store"
	CmdNameVersion  = "version"
	CmdNameHelp     = "help"
)

// Store subcommand names
const (
	StoreCmdSave     = "save"
	StoreCmdGet      = "get"
	StoreCmdList     = "list"
	StoreCmdVersions = "versions"
	StoreCmdDelete   = "delete"
)

// Flag names - long form
const (
	FlagTemplate    = "template"
	FlagOutput      = "output"
	FlagFormat      = "format"
	FlagSource      = "source"
	FlagVerbose     = "verbose"
	FlagDriver      = "driver"
	FlagDSN         = "dsn"
	FlagConfig      = "config"
	FlagName        = "name"
	FlagVersion     = "version"
	FlagTag         = "tag"
	FlagMeta        = "meta"
	FlagCreatedBy   = "created-by"
	FlagPrefix      = "prefix"
	FlagContains    = "contains"
	FlagLimit       = "limit"
	FlagOffset      = "offset"
	FlagAllVersions = "all-versions"
)

// Flag names - short form
const (
	FlagTemplateShort = "t"
	FlagOutputShort   = "o"
	FlagFormatShort   = "F"
	FlagVerboseShort  = "v"
	FlagNameShort     = "n"
)

// Flag default values
const (
	FlagDefaultOutput = "-" // stdout
	FlagDefaultFormat = "text"
	FlagDefaultDriver = "filesystem"
	FlagDefaultDSN    = ".promptml"
)

// Output formats
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
)

// Exit codes
const (
	ExitCodeSuccess         = 0
	ExitCodeError           = 1
	ExitCodeUsageError      = 2
	ExitCodeValidationError = 3
	ExitCodeInputError      = 4
	ExitCodeNotFound        = 5
)

// Input source indicators
const (
	InputSourceStdin = "-"
)

// Metadata flag separator, as in --meta key=value
const MetaSeparator = "="

// Error messages - ALL must be constants
const (
	ErrMsgUnknownCommand      = "unknown command"
	ErrMsgUnknownSubcommand   = "unknown store subcommand"
	ErrMsgMissingSubcommand   = "store subcommand required"
	ErrMsgMissingTemplate     = "template source required"
	ErrMsgMissingName         = "template name required"
	ErrMsgInvalidFlags        = "invalid flags"
	ErrMsgReadFileFailed      = "failed to read file"
	ErrMsgWriteOutputFailed   = "failed to write output"
	ErrMsgParseTemplateFailed = "template parsing failed"
	ErrMsgInvalidFormat       = "invalid output format"
	ErrMsgInvalidMeta         = "metadata must be key=value"
	ErrMsgInvalidConfig       = "invalid config file"
	ErrMsgOpenStorageFailed   = "failed to open storage"
	ErrMsgStoreFailed         = "store operation failed"
	ErrMsgJSONMarshalFailed   = "failed to marshal JSON"
)

// Help text templates
const (
	HelpMainUsage = `go-promptml - promptml markup CLI

Usage:
    promptml <command> [options]

Commands:
    parse       Print the fragments of a template
    render      Print a template in display or persisted form
    validate    Check that a template parses completely
    store       Save and load templates in a storage backend
    version     Show version information
    help        Show help for a command

Use "promptml help <command>" for more information about a command.`

	HelpParseUsage = `Print the fragments of a template

Usage:
    promptml parse [options]

Options:
    -t, --template <file>   Template file (use "-" for stdin)
    -F, --format <format>   Output format: text, json (default: text)
    -v, --verbose           Log parser activity to stderr

Examples:
    promptml parse -t greeting.pml
    echo 'Hi [name|formal]' | promptml parse -t - -F json`

	HelpRenderUsage = `Print a template in display or persisted form

Usage:
    promptml render [options]

Options:
    -t, --template <file>   Template file (use "-" for stdin)
    -o, --output <file>     Output file (default: stdout)
    --source                Write the escaped persisted form
    -v, --verbose           Log parser activity to stderr

Examples:
    promptml render -t greeting.pml
    promptml render -t greeting.pml --source -o greeting.src`

	HelpValidateUsage = `Check that a template parses completely

Usage:
    promptml validate [options]

Options:
    -t, --template <file>   Template file (use "-" for stdin)
    -F, --format <format>   Output format: text, json (default: text)

Exit status is 3 when input would be discarded by the parser.

Examples:
    promptml validate -t greeting.pml
    cat greeting.pml | promptml validate -t - -F json`

	HelpStoreUsage = `Save and load templates in a storage backend

Usage:
    promptml store <subcommand> [options]

Subcommands:
    save        Save a template as a new version
    get         Print a stored template
    list        List stored templates
    versions    List the versions of a template
    delete      Delete a template or one version

Storage options:
    --driver <name>         Storage driver: memory, filesystem, postgres (default: filesystem)
    --dsn <string>          Driver connection string (default: .promptml)
    --config <file>         YAML config file with driver, dsn, postgres and cache sections
    -v, --verbose           Log storage activity to stderr

Subcommand options:
    -n, --name <name>       Template name (save, get, versions, delete)
    -t, --template <file>   Template file for save (use "-" for stdin)
    --tag <tag>             Tag, repeatable (save, list)
    --meta <key=value>      Metadata entry, repeatable (save)
    --created-by <who>      Creator (save, list)
    --version <n>           Version (get, delete)
    --source                Print the persisted form (get)
    -F, --format <format>   Output format: text, json (get, list)
    --prefix <p>            Name prefix filter (list)
    --contains <s>          Name substring filter (list)
    --limit <n>             Maximum results (list)
    --offset <n>            Results to skip (list)
    --all-versions          Include every version (list)

Examples:
    promptml store save -n greeting -t greeting.pml --tag onboarding
    promptml store get -n greeting --version 1
    promptml store list --driver postgres --dsn postgres://localhost/promptml
    promptml store delete -n greeting --config promptml.yaml`

	HelpVersionUsage = `Show version information

Usage:
    promptml version [options]

Options:
    -F, --format <format>   Output format: text, json (default: text)`

	HelpHelpUsage = `Show help for a command

Usage:
    promptml help [command]

Commands:
    parse       Show help for parse command
    render      Show help for render command
    validate    Show help for validate command
    store       Show help for store command
    version     Show help for version command`
)

// Version output format templates
const (
	VersionTextTemplate = "go-promptml version %s\nCommit: %s\nBranch: %s\nBuilt: %s\nGo: %s"
	VersionUnknown      = "unknown"
)

// Parse output format templates
const (
	ParseTextFormat    = "%d\t%s\t%q\n"
	ParseControlFormat = "%d\t%s\t%s\t%s\n"
)

// Validation output format templates
const (
	ValidationTextSuccess = "Template is valid (%d fragments)"
	ValidationTextFailure = "Template is truncated at %s (offset %d): %s"
)

// Store output format templates
const (
	StoreTextSaved   = "Saved %s version %d\n"
	StoreTextDeleted = "Deleted %s\n"
	StoreTextListRow = "%s\tv%d\t%s\n"
)

// CLI metadata
const (
	CLIName        = "promptml"
	CLIDescription = "promptml markup CLI"
)

// File permission constant
const (
	FilePermissions = 0644
)

// Format string constants
const (
	FmtErrorWithDetail = "%s: %s\n"
	FmtErrorWithCause  = "%s: %v\n"
	FmtNewline         = "\n"
	FmtNameVersion     = "%s v%d"
	FmtWrapDetail      = "%s: %s"
	FmtWrapCause       = "%s: %w"
)
