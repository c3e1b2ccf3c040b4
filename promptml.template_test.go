package promptml

import (
	"errors"
	"testing"

	"github.com/itsatony/go-cuserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Basics(t *testing.T) {
	tmpl := MustNewTemplate("Hello [name|formal] and [name] from [place]")

	assert.Equal(t, 6, tmpl.Len())

	f, err := tmpl.At(1)
	require.NoError(t, err)
	assert.Equal(t, NewControl("name", "formal"), f)

	_, err = tmpl.At(6)
	require.Error(t, err)
	var custErr *cuserr.CustomError
	require.True(t, errors.As(err, &custErr))
	length, _ := custErr.GetMetadata(MetaKeyLength)
	assert.Equal(t, "6", length)

	_, err = tmpl.At(-1)
	assert.Error(t, err)

	assert.Equal(t, []string{"name", "place"}, tmpl.Names())
	assert.Len(t, tmpl.Controls(), 3)
}

func TestTemplate_Mutation(t *testing.T) {
	tmpl := MustNewTemplate("a[b]")

	require.NoError(t, tmpl.Set(1, NewControl("c", "x")))
	assert.Equal(t, "a[c|x]", tmpl.String())

	assert.Error(t, tmpl.Set(5, NewText("nope")))

	tmpl.Append(NewText("!"), NewText("?"))
	assert.Equal(t, 4, tmpl.Len(), "append does not fold")
	assert.Equal(t, "a[c|x]!?", tmpl.String())
}

func TestTemplate_FragmentsIsCopy(t *testing.T) {
	tmpl := MustNewTemplate("a[b]")
	fragments := tmpl.Fragments()
	fragments[0] = NewText("changed")
	assert.Equal(t, "a[b]", tmpl.String())
}

func TestTemplate_FromFragments(t *testing.T) {
	in := []Fragment{NewText("x"), NewText("y"), NewControl("z")}
	tmpl := FromFragments(in...)
	in[0] = NewText("changed")

	assert.Equal(t, 3, tmpl.Len())
	assert.Equal(t, "xy[z]", tmpl.String())
}

func TestTemplate_All(t *testing.T) {
	tmpl := MustNewTemplate("a[b]c")

	var texts []string
	for i, f := range tmpl.All() {
		texts = append(texts, f.Text)
		if i == 0 {
			// mutation during iteration is not observed
			require.NoError(t, tmpl.Set(2, NewText("changed")))
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts)

	t.Run("restartable", func(t *testing.T) {
		count := 0
		for range tmpl.All() {
			count++
		}
		for range tmpl.All() {
			count++
		}
		assert.Equal(t, 6, count)
	})

	t.Run("early break", func(t *testing.T) {
		count := 0
		for range tmpl.All() {
			count++
			break
		}
		assert.Equal(t, 1, count)
	})
}

func TestTemplate_SourceRoundTrip(t *testing.T) {
	sources := []string{
		`Say \[hi\] to [name]`,
		`path C:\\dir [x|a,b]`,
		`[a][b|c#d]\]`,
		"",
		"plain",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			tmpl := MustNewTemplate(src)
			restored := MustNewTemplate(tmpl.Source())
			assert.Equal(t, tmpl.Fragments(), restored.Fragments())
		})
	}

	tmpl := MustNewTemplate(`Say \[hi\] to [name]`)
	assert.Equal(t, "Say [hi] to [name]", tmpl.String())
	assert.Equal(t, `Say \[hi\] to [name]`, tmpl.Source())
}

func TestTemplate_EqualAndHash(t *testing.T) {
	a := MustNewTemplate("x[y|b,a]")
	b := FromFragments(NewText("x"), NewControl("y", "a", "b"))
	c := MustNewTemplate("x[y]")

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(c))

	var nilTmpl *Template
	assert.False(t, a.Equal(nilTmpl))
	assert.True(t, nilTmpl.Equal(nil))
}

func TestTemplate_Validate(t *testing.T) {
	assert.NoError(t, MustNewTemplate("a[b|c]").Validate())

	tmpl := FromFragments(NewText("ok"), NewControl("bad]name"))
	err := tmpl.Validate()
	require.Error(t, err)

	var custErr *cuserr.CustomError
	require.True(t, errors.As(err, &custErr))
	index, _ := custErr.GetMetadata(MetaKeyIndex)
	assert.Equal(t, "1", index)
}

func TestTemplate_Clone(t *testing.T) {
	tmpl := MustNewTemplate("a[b]")
	clone := tmpl.Clone()
	require.NoError(t, clone.Set(0, NewText("z")))
	assert.Equal(t, "a[b]", tmpl.String())
	assert.Equal(t, "z[b]", clone.String())
}

func TestMustNewTemplate_PanicsOnInvalidUTF8(t *testing.T) {
	assert.Panics(t, func() {
		MustNewTemplate("\xff")
	})
}

func TestNewTemplate_Empty(t *testing.T) {
	tmpl, err := NewTemplate("")
	require.NoError(t, err)
	assert.Equal(t, 0, tmpl.Len())
	assert.Equal(t, "", tmpl.String())
}
