package promptml

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FragmentKind distinguishes plain text from control placeholders
type FragmentKind int

// Fragment kind constants
const (
	KindText FragmentKind = iota
	KindControl
)

// String returns the name of the fragment kind
func (k FragmentKind) String() string {
	if k == KindControl {
		return FragmentKindNameControl
	}
	return FragmentKindNameText
}

// Fragment is one parsed unit of a template: literal text, or a named
// control placeholder with a set of options.
//
// For text fragments Text is emitted verbatim. For control fragments Text is
// the control name. A control may have an empty option set, which is a
// different state from a text fragment having no options at all.
type Fragment struct {
	Kind FragmentKind
	Text string

	// options is sorted and deduplicated; nil for text fragments
	options []string
}

// NewText creates a plain text fragment
func NewText(text string) Fragment {
	return Fragment{Kind: KindText, Text: text}
}

// NewControl creates a control fragment. Duplicate options collapse and
// order is not significant.
func NewControl(name string, options ...string) Fragment {
	return Fragment{
		Kind:    KindControl,
		Text:    name,
		options: canonicalOptions(options),
	}
}

// IsControl reports whether f is a control placeholder
func (f Fragment) IsControl() bool {
	return f.Kind == KindControl
}

// IsText reports whether f is plain text
func (f Fragment) IsText() bool {
	return f.Kind == KindText
}

// Options returns a sorted copy of the option set.
// It is nil for text fragments and empty, non-nil for controls without options.
func (f Fragment) Options() []string {
	if f.Kind != KindControl {
		return nil
	}
	out := make([]string, len(f.options))
	copy(out, f.options)
	return out
}

// HasOption reports whether the control carries option
func (f Fragment) HasOption(option string) bool {
	_, found := slices.BinarySearch(f.options, option)
	return found
}

// WithOptions returns a control fragment with the same name and the given
// options. A text fragment is returned unchanged.
func (f Fragment) WithOptions(options ...string) Fragment {
	if f.Kind != KindControl {
		return f
	}
	return NewControl(f.Text, options...)
}

// String renders the canonical text form: raw text for plain fragments,
// [name] or [name|a,b] for controls.
func (f Fragment) String() string {
	var sb strings.Builder
	f.render(&sb)
	return sb.String()
}

// GoString returns a debug form: plain text quoted, controls as [name].
func (f Fragment) GoString() string {
	if f.Kind == KindControl {
		return string(CharOpenBracket) + f.Text + string(CharCloseBracket)
	}
	return strconv.Quote(f.Text)
}

// Equal reports whether both fragments render to the same canonical text
func (f Fragment) Equal(other Fragment) bool {
	return f.String() == other.String()
}

// Hash returns a stable hash of the canonical rendering
func (f Fragment) Hash() uint64 {
	return xxhash.Sum64String(f.String())
}

// Validate checks that f can be written in persisted form and parsed back
// unchanged: control names and options must be non-empty and must not
// contain reserved characters.
func (f Fragment) Validate() error {
	return f.validate(-1)
}

func (f Fragment) validate(index int) error {
	if f.Kind != KindControl {
		if f.options != nil {
			return NewInvalidFragmentError(ErrMsgTextHasOptions, index, f.GoString())
		}
		return nil
	}
	if f.Text == "" {
		return NewInvalidFragmentError(ErrMsgEmptyControlName, index, f.GoString())
	}
	if strings.ContainsAny(f.Text, ReservedControlChars) {
		return NewInvalidFragmentError(ErrMsgReservedInName, index, f.GoString())
	}
	for _, opt := range f.options {
		if opt == "" {
			return NewInvalidFragmentError(ErrMsgEmptyOption, index, f.GoString())
		}
		if strings.ContainsAny(opt, ReservedControlChars) {
			return NewInvalidFragmentError(ErrMsgReservedInOption, index, f.GoString())
		}
	}
	return nil
}

// render writes the canonical display form
func (f Fragment) render(sb *strings.Builder) {
	if f.Kind != KindControl {
		sb.WriteString(f.Text)
		return
	}
	f.renderControl(sb)
}

// renderSource writes the persisted form, escaping plain text
func (f Fragment) renderSource(sb *strings.Builder) {
	if f.Kind != KindControl {
		writeEscaped(sb, f.Text)
		return
	}
	f.renderControl(sb)
}

func (f Fragment) renderControl(sb *strings.Builder) {
	sb.WriteByte(CharOpenBracket)
	sb.WriteString(f.Text)
	if len(f.options) > 0 {
		sb.WriteByte(CharPipe)
		sb.WriteString(strings.Join(f.options, OptionJoiner))
	}
	sb.WriteByte(CharCloseBracket)
}

// canonicalOptions returns a sorted, deduplicated, never-nil copy
func canonicalOptions(options []string) []string {
	out := make([]string, len(options))
	copy(out, options)
	slices.Sort(out)
	return slices.Compact(out)
}
