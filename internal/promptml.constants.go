package internal

// Character constants for the markup grammar
const (
	CharBackslash    = '\\'
	CharOpenBracket  = '['
	CharCloseBracket = ']'
	CharPipe         = '|'
	CharHash         = '#'
	CharComma        = ','
	CharNewline      = '\n'
)

// Character sets used by the scanner
const (
	// TextStopChars end a literal text run
	TextStopChars = "\\[]"
	// ControlStopChars end a control name or option token
	ControlStopChars = "[]|#,"
	// OptionSeparatorChars separate option tokens; a run counts as one separator
	OptionSeparatorChars = "#,"
	// EscapableChars may follow a backslash
	EscapableChars = "\\[]"
)

// Stop reasons reported when no grammar alternative matches
const (
	StopReasonNone              = ""
	StopReasonInvalidEscape     = "invalid escape sequence"
	StopReasonDanglingEscape    = "dangling escape at end of input"
	StopReasonUnterminated      = "unterminated control block"
	StopReasonEmptyName         = "empty control name"
	StopReasonEmptyOption       = "empty option token"
	StopReasonMalformedControl  = "malformed control block"
	StopReasonUnexpectedClosing = "unexpected closing bracket"
)

// Log message constants
const (
	LogMsgScannerCreated = "scanner created"
	LogMsgScanStart      = "starting scan"
	LogMsgScanEnd        = "scan complete"
	LogMsgScanStopped    = "scan stopped before end of input"
)

// Log field constants
const (
	LogFieldSource = "source_length"
	LogFieldTokens = "token_count"
	LogFieldOffset = "offset"
	LogFieldReason = "reason"
)
