package promptml

import (
	"strconv"

	"github.com/itsatony/go-cuserr"

	"github.com/itsatony/go-promptml/internal"
)

// Position represents a location in the source template
type Position = internal.Position

// NewSyntaxError creates a syntax error for input the grammar could not consume.
// Only strict parsers return it.
func NewSyntaxError(reason string, pos Position) error {
	return cuserr.NewValidationError(ErrCodeSyntax, ErrMsgSyntax).
		WithMetadata(MetaKeyReason, reason).
		WithMetadata(MetaKeyLine, strconv.Itoa(pos.Line)).
		WithMetadata(MetaKeyColumn, strconv.Itoa(pos.Column)).
		WithMetadata(MetaKeyOffset, strconv.Itoa(pos.Offset))
}

// NewEncodingError creates an error for source text that is not valid UTF-8.
// offset is the byte offset of the first invalid byte.
func NewEncodingError(offset int) error {
	return cuserr.NewValidationError(ErrCodeEncoding, ErrMsgInvalidUTF8).
		WithMetadata(MetaKeyOffset, strconv.Itoa(offset))
}

// NewInvalidFragmentError creates an error for a fragment that cannot be
// written in persisted form. index is -1 for a standalone fragment.
func NewInvalidFragmentError(reason string, index int, fragment string) error {
	return cuserr.NewValidationError(ErrCodeValidation, ErrMsgInvalidFragment).
		WithMetadata(MetaKeyReason, reason).
		WithMetadata(MetaKeyIndex, strconv.Itoa(index)).
		WithMetadata(MetaKeyFragment, fragment)
}

// NewIndexOutOfRangeError creates an error for fragment access past the end
func NewIndexOutOfRangeError(index, length int) error {
	return cuserr.NewValidationError(ErrCodeValidation, ErrMsgIndexOutOfRange).
		WithMetadata(MetaKeyIndex, strconv.Itoa(index)).
		WithMetadata(MetaKeyLength, strconv.Itoa(length))
}

// NewDecodeError wraps a failure to restore a template from its persisted form
func NewDecodeError(cause error) error {
	return cuserr.WrapStdError(cause, ErrCodeSerialize, ErrMsgDecodeFailed)
}

// NewEncodeError wraps a failure to write a template in persisted form
func NewEncodeError(cause error) error {
	return cuserr.WrapStdError(cause, ErrCodeSerialize, ErrMsgEncodeFailed)
}
