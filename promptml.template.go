package promptml

import (
	"iter"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Template is an ordered sequence of fragments.
// A Template is not safe for concurrent mutation.
type Template struct {
	fragments []Fragment
}

// NewTemplate parses source with the default parser
func NewTemplate(source string) (*Template, error) {
	return defaultParser.ParseTemplate(source)
}

// MustNewTemplate is like NewTemplate but panics on error
func MustNewTemplate(source string) *Template {
	tmpl, err := NewTemplate(source)
	if err != nil {
		panic(err)
	}
	return tmpl
}

// FromFragments wraps fragments as given, without folding
func FromFragments(fragments ...Fragment) *Template {
	return &Template{fragments: slices.Clone(fragments)}
}

// Len returns the number of fragments
func (t *Template) Len() int {
	return len(t.fragments)
}

// At returns the fragment at index i
func (t *Template) At(i int) (Fragment, error) {
	if i < 0 || i >= len(t.fragments) {
		return Fragment{}, NewIndexOutOfRangeError(i, len(t.fragments))
	}
	return t.fragments[i], nil
}

// Set replaces the fragment at index i
func (t *Template) Set(i int, f Fragment) error {
	if i < 0 || i >= len(t.fragments) {
		return NewIndexOutOfRangeError(i, len(t.fragments))
	}
	t.fragments[i] = f
	return nil
}

// Append adds fragments to the end of the template, without folding
func (t *Template) Append(fragments ...Fragment) {
	t.fragments = append(t.fragments, fragments...)
}

// Fragments returns a copy of the fragment sequence
func (t *Template) Fragments() []Fragment {
	return slices.Clone(t.fragments)
}

// All iterates over index and fragment. Each iteration walks a snapshot
// taken when it starts, so changes made during iteration are not observed.
func (t *Template) All() iter.Seq2[int, Fragment] {
	return func(yield func(int, Fragment) bool) {
		snapshot := slices.Clone(t.fragments)
		for i, f := range snapshot {
			if !yield(i, f) {
				return
			}
		}
	}
}

// Controls returns the control fragments in order
func (t *Template) Controls() []Fragment {
	var out []Fragment
	for _, f := range t.fragments {
		if f.IsControl() {
			out = append(out, f)
		}
	}
	return out
}

// Names returns the distinct control names in first-seen order
func (t *Template) Names() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, f := range t.fragments {
		if !f.IsControl() {
			continue
		}
		if _, ok := seen[f.Text]; ok {
			continue
		}
		seen[f.Text] = struct{}{}
		names = append(names, f.Text)
	}
	return names
}

// String returns the display form: plain text raw, controls canonical
func (t *Template) String() string {
	var sb strings.Builder
	for _, f := range t.fragments {
		f.render(&sb)
	}
	return sb.String()
}

// Source returns the persisted form. Plain text has backslashes and
// brackets escaped, so parsing Source yields the same fragments for a
// template that passes Validate and has no adjacent plain fragments.
func (t *Template) Source() string {
	var sb strings.Builder
	for _, f := range t.fragments {
		f.renderSource(&sb)
	}
	return sb.String()
}

// Equal reports whether both templates render to the same display form
func (t *Template) Equal(other *Template) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.String() == other.String()
}

// Hash returns a stable hash of the display form
func (t *Template) Hash() uint64 {
	return xxhash.Sum64String(t.String())
}

// Validate checks every fragment. The returned error carries the index of
// the first invalid fragment.
func (t *Template) Validate() error {
	for i, f := range t.fragments {
		if err := f.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an independent copy
func (t *Template) Clone() *Template {
	return &Template{fragments: slices.Clone(t.fragments)}
}
