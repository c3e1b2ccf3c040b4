package promptml

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Escape returns s with backslashes and brackets escaped, so that it parses
// back to a single plain fragment holding s.
func Escape(s string) string {
	if !strings.ContainsAny(s, EscapedChars) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	writeEscaped(&sb, s)
	return sb.String()
}

func writeEscaped(sb *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(EscapedChars, c) >= 0 {
			sb.WriteByte(CharBackslash)
		}
		sb.WriteByte(c)
	}
}

// MarshalText implements encoding.TextMarshaler using the persisted form
func (t *Template) MarshalText() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []byte(t.Source()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler by re-parsing text
func (t *Template) UnmarshalText(text []byte) error {
	fragments, err := ParseBytes(text)
	if err != nil {
		return err
	}
	t.fragments = fragments
	return nil
}

type templateJSON struct {
	Template string `json:"template"`
}

// MarshalJSON encodes the template as {"template": "<source>"}
func (t *Template) MarshalJSON() ([]byte, error) {
	source, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(templateJSON{Template: string(source)})
}

// UnmarshalJSON decodes {"template": "<source>"} and re-parses the source
func (t *Template) UnmarshalJSON(data []byte) error {
	var raw templateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewDecodeError(err)
	}
	return t.UnmarshalText([]byte(raw.Template))
}

// MarshalYAML encodes the template as its persisted source string
func (t *Template) MarshalYAML() (interface{}, error) {
	source, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(source), nil
}

// UnmarshalYAML decodes a source string and re-parses it
func (t *Template) UnmarshalYAML(value *yaml.Node) error {
	var source string
	if err := value.Decode(&source); err != nil {
		return NewDecodeError(err)
	}
	return t.UnmarshalText([]byte(source))
}

type fragmentJSON struct {
	Text    string    `json:"text"`
	Options *[]string `json:"options,omitempty"`
}

// MarshalJSON encodes the fragment as {"text": ..., "options": [...]}.
// options is omitted for plain fragments.
func (f Fragment) MarshalJSON() ([]byte, error) {
	raw := fragmentJSON{Text: f.Text}
	if f.IsControl() {
		opts := f.Options()
		raw.Options = &opts
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes a fragment. A present options field, even an empty
// one, makes a control fragment.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var raw fragmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewDecodeError(err)
	}
	if raw.Options == nil {
		*f = NewText(raw.Text)
		return nil
	}
	*f = NewControl(raw.Text, *raw.Options...)
	return nil
}
