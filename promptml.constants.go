package promptml

import "time"

// Markup characters
const (
	CharBackslash    = '\\'
	CharOpenBracket  = '['
	CharCloseBracket = ']'
	CharPipe         = '|'
	CharComma        = ','
)

// Rendering constants
const (
	// OptionJoiner joins options in the canonical control rendering
	OptionJoiner = ","
	// ReservedControlChars may not appear in control names or options
	ReservedControlChars = "[]|#,"
	// EscapedChars are escaped when plain text is written in persisted form
	EscapedChars = "\\[]"
)

// Fragment kind names for debugging
const (
	FragmentKindNameText    = "TEXT"
	FragmentKindNameControl = "CONTROL"
)

// Error message constants - ALL error messages must be constants (NO MAGIC STRINGS)
const (
	ErrMsgSyntax              = "template syntax error"
	ErrMsgInvalidUTF8         = "template source is not valid UTF-8"
	ErrMsgInvalidFragment     = "invalid fragment"
	ErrMsgEmptyControlName    = "control name cannot be empty"
	ErrMsgReservedInName      = "control name contains a reserved character"
	ErrMsgEmptyOption         = "control option cannot be empty"
	ErrMsgReservedInOption    = "control option contains a reserved character"
	ErrMsgTextHasOptions      = "text fragment cannot carry options"
	ErrMsgIndexOutOfRange     = "fragment index out of range"
	ErrMsgDecodeFailed        = "template decoding failed"
	ErrMsgEncodeFailed        = "template encoding failed"
	ErrMsgNilTemplate         = "template is nil"
	ErrMsgNilStorage          = "storage cannot be nil"
	ErrMsgTemplateNotFound    = "template not found"
	ErrMsgVersionNotFound     = "template version not found"
	ErrMsgInvalidTemplateName = "invalid template name"
)

// Error code constants for categorization
const (
	ErrCodeSyntax     = "PROMPTML_SYNTAX"
	ErrCodeEncoding   = "PROMPTML_ENCODING"
	ErrCodeValidation = "PROMPTML_VALIDATION"
	ErrCodeSerialize  = "PROMPTML_SERIALIZE"
	ErrCodeStorage    = "PROMPTML_STORAGE"
)

// Error metadata keys
const (
	MetaKeyLine         = "line"
	MetaKeyColumn       = "column"
	MetaKeyOffset       = "offset"
	MetaKeyReason       = "reason"
	MetaKeyIndex        = "index"
	MetaKeyLength       = "length"
	MetaKeyFragment     = "fragment"
	MetaKeyTemplateName = "template_name"
	MetaKeyVersion      = "version"
	MetaKeyDriverName   = "driver"
)

// Log message constants
const (
	LogMsgParseStart     = "starting parse"
	LogMsgParseEnd       = "parse complete"
	LogMsgParseTruncated = "parse stopped early, trailing input discarded"
	LogMsgLibrarySave    = "template saved"
	LogMsgLibraryLoad    = "template loaded"
	LogMsgLibraryCached  = "parsed template served from cache"
)

// Log field constants
const (
	LogFieldSourceLength = "source_length"
	LogFieldFragments    = "fragments"
	LogFieldConsumed     = "consumed"
	LogFieldOffset       = "offset"
	LogFieldReason       = "reason"
	LogFieldName         = "name"
	LogFieldVersion      = "version"
)

// Storage driver names
const (
	StorageDriverNameMemory     = "memory"
	StorageDriverNameFilesystem = "filesystem"
	StorageDriverNamePostgres   = "postgres"
)

// Template ID constants
const (
	TemplateIDPrefix    = "tmpl_"
	TemplateIDByteCount = 12
)

// Filesystem storage constants
const (
	FilesystemDirPermissions = 0755
	FilesystemVersionPrefix  = "v"
	FilesystemVersionSuffix  = ".json"
	FilesystemForbiddenChars = "/\\:*?\"<>|"
	FilesystemParentDir      = ".."
)

// PostgreSQL storage constants
const (
	PostgresDriverName             = "postgres"
	PostgresTablePrefix            = "promptml_"
	PostgresTemplatesTable         = "templates"
	PostgresMigrationsTable        = "schema_migrations"
	PostgresSerializationFailure   = "40001"
	PostgresMaxSaveAttempts        = 3
	PostgresDefaultMaxOpenConns    = 25
	PostgresDefaultMaxIdleConns    = 5
	PostgresDefaultConnMaxLifetime = 5 * time.Minute
	PostgresDefaultConnMaxIdleTime = 5 * time.Minute
	PostgresDefaultQueryTimeout    = 30 * time.Second
)

// Cache defaults
const (
	CacheDefaultTTL         = 5 * time.Minute
	CacheDefaultMaxEntries  = 1000
	CacheDefaultNegativeTTL = 30 * time.Second
)

// Storage error messages
const (
	ErrMsgNilStorageDriver          = "storage driver is nil"
	ErrMsgDriverAlreadyRegistered   = "storage driver already registered"
	ErrMsgStorageDriverNotFound     = "storage driver not found"
	ErrMsgStorageClosed             = "storage is closed"
	ErrMsgInvalidStorageRoot        = "storage root directory cannot be empty"
	ErrMsgGenerateTemplateID        = "failed to generate template id"
	ErrMsgCreateStorageDir          = "failed to create storage directory"
	ErrMsgReadStorageDir            = "failed to read storage directory"
	ErrMsgReadTemplate              = "failed to read template file"
	ErrMsgWriteTemplate             = "failed to write template file"
	ErrMsgRemoveTemplate            = "failed to remove template file"
	ErrMsgMarshalTemplate           = "failed to marshal template"
	ErrMsgUnmarshalTemplate         = "failed to unmarshal template"
	ErrMsgPathTraversalDetected     = "path traversal detected in template name"
	ErrMsgPostgresConnectionFailed  = "failed to connect to PostgreSQL"
	ErrMsgPostgresQueryFailed       = "PostgreSQL query failed"
	ErrMsgPostgresTransactionFailed = "PostgreSQL transaction failed"
	ErrMsgPostgresScanFailed        = "failed to scan PostgreSQL result"
	ErrMsgPostgresMarshalFailed     = "failed to marshal data for PostgreSQL"
	ErrMsgPostgresUnmarshalFailed   = "failed to unmarshal PostgreSQL data"
	ErrMsgPostgresMigrationFailed   = "PostgreSQL migration failed"
	ErrMsgPostgresEmptyConnString   = "PostgreSQL connection string is empty"
	ErrMsgPostgresAlreadyClosed     = "PostgreSQL storage is already closed"
)
