package promptml

import (
	"context"
	"errors"
	"testing"

	"github.com/itsatony/go-cuserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestLibrary(t *testing.T, config LibraryConfig) *Library {
	t.Helper()
	if config.Storage == nil {
		config.Storage = NewMemoryStorage()
	}
	lib, err := NewLibrary(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func TestNewLibrary(t *testing.T) {
	t.Run("nil storage", func(t *testing.T) {
		_, err := NewLibrary(LibraryConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgNilStorage)
		assert.Panics(t, func() { MustNewLibrary(LibraryConfig{}) })
	})

	t.Run("defaults", func(t *testing.T) {
		storage := NewMemoryStorage()
		lib := MustNewLibrary(LibraryConfig{Storage: storage})
		assert.Same(t, storage, lib.Storage())
		require.NotNil(t, lib.Parser())
		assert.False(t, lib.Parser().Strict())
		assert.True(t, lib.ParsedCacheStats().Enabled)
	})

	t.Run("custom parser", func(t *testing.T) {
		parser := NewParser(WithStrict(true))
		lib := newTestLibrary(t, LibraryConfig{Parser: parser})
		assert.Same(t, parser, lib.Parser())
	})
}

func TestLibrary_SaveAndLoad(t *testing.T) {
	lib := newTestLibrary(t, LibraryConfig{})
	ctx := context.Background()

	original := FromFragments(
		NewText(`literal [brackets] and \ backslash `),
		NewControl("name", "formal", "short"),
		NewText("!"),
	)

	stored, err := lib.Save(ctx, "greeting", original)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, original.Source(), stored.Source)
	assert.Equal(t, original.Hash(), stored.Hash)

	loaded, err := lib.Load(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, original.Fragments(), loaded.Fragments())
	assert.True(t, original.Equal(loaded))
}

func TestLibrary_Versions(t *testing.T) {
	lib := newTestLibrary(t, LibraryConfig{})
	ctx := context.Background()

	_, err := lib.Save(ctx, "t", MustNewTemplate("first [a]"))
	require.NoError(t, err)
	_, err = lib.Save(ctx, "t", MustNewTemplate("second [b]"))
	require.NoError(t, err)

	latest, err := lib.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "second [b]", latest.String())

	first, err := lib.LoadVersion(ctx, "t", 1)
	require.NoError(t, err)
	assert.Equal(t, "first [a]", first.String())

	versions, err := lib.ListVersions(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, versions)

	exists, err := lib.Exists(ctx, "t")
	require.NoError(t, err)
	assert.True(t, exists)

	list, err := lib.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Version)
}

func TestLibrary_SaveOptions(t *testing.T) {
	lib := newTestLibrary(t, LibraryConfig{})
	ctx := context.Background()

	_, err := lib.Save(ctx, "t", MustNewTemplate("x"),
		WithMetadata(map[string]string{"team": "docs"}),
		WithMetadata(map[string]string{"lang": "en"}),
		WithTags("a", "b"),
		WithCreatedBy("ann"),
	)
	require.NoError(t, err)

	stored, err := lib.Storage().Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "docs", "lang": "en"}, stored.Metadata)
	assert.Equal(t, []string{"a", "b"}, stored.Tags)
	assert.Equal(t, "ann", stored.CreatedBy)

	tagged, err := lib.List(ctx, &TemplateQuery{Tags: []string{"b"}})
	require.NoError(t, err)
	assert.Len(t, tagged, 1)
}

func TestLibrary_SaveRejects(t *testing.T) {
	lib := newTestLibrary(t, LibraryConfig{})
	ctx := context.Background()

	t.Run("nil template", func(t *testing.T) {
		_, err := lib.Save(ctx, "t", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgNilTemplate)
	})

	t.Run("invalid fragment", func(t *testing.T) {
		_, err := lib.Save(ctx, "t", FromFragments(NewText("ok"), NewControl("bad|name")))
		require.Error(t, err)

		var custErr *cuserr.CustomError
		require.True(t, errors.As(err, &custErr))
		index, ok := custErr.GetMetadata(MetaKeyIndex)
		require.True(t, ok)
		assert.Equal(t, "1", index)

		exists, err := lib.Exists(ctx, "t")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := lib.Save(ctx, "", MustNewTemplate("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgInvalidTemplateName)
	})
}

func TestLibrary_NotFound(t *testing.T) {
	lib := newTestLibrary(t, LibraryConfig{})
	ctx := context.Background()

	_, err := lib.Load(ctx, "missing")
	assert.True(t, IsNotFound(err))

	_, err = lib.LoadVersion(ctx, "missing", 3)
	assert.True(t, IsNotFound(err))

	assert.True(t, IsNotFound(lib.Delete(ctx, "missing")))
	assert.True(t, IsNotFound(lib.DeleteVersion(ctx, "missing", 1)))
}

func TestLibrary_ParsedCache(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lib := newTestLibrary(t, LibraryConfig{Logger: zap.New(core)})
	ctx := context.Background()

	_, err := lib.Save(ctx, "t", MustNewTemplate("Hello [name]"))
	require.NoError(t, err)
	assert.Equal(t, 0, lib.ParsedCacheStats().Entries)

	first, err := lib.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 1, lib.ParsedCacheStats().Entries)
	assert.Equal(t, 1, logs.FilterMessage(LogMsgLibraryLoad).Len())

	t.Run("hits return independent copies", func(t *testing.T) {
		first.Append(NewText(" mutated"))

		second, err := lib.Load(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, "Hello [name]", second.String())
		assert.Equal(t, 1, logs.FilterMessage(LogMsgLibraryCached).Len())
	})

	t.Run("version shares cache entry", func(t *testing.T) {
		_, err := lib.LoadVersion(ctx, "t", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, lib.ParsedCacheStats().Entries)
		assert.Equal(t, 2, logs.FilterMessage(LogMsgLibraryCached).Len())
	})

	t.Run("delete version drops entry", func(t *testing.T) {
		_, err := lib.Save(ctx, "t", MustNewTemplate("v2"))
		require.NoError(t, err)
		_, err = lib.Load(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, 2, lib.ParsedCacheStats().Entries)

		require.NoError(t, lib.DeleteVersion(ctx, "t", 2))
		assert.Equal(t, 1, lib.ParsedCacheStats().Entries)
	})

	t.Run("delete drops all entries", func(t *testing.T) {
		require.NoError(t, lib.Delete(ctx, "t"))
		assert.Equal(t, 0, lib.ParsedCacheStats().Entries)
	})
}

func TestLibrary_ParsedCacheDisabled(t *testing.T) {
	lib := newTestLibrary(t, LibraryConfig{DisableParsedCache: true})
	ctx := context.Background()

	_, err := lib.Save(ctx, "t", MustNewTemplate("x"))
	require.NoError(t, err)
	_, err = lib.Load(ctx, "t")
	require.NoError(t, err)

	stats := lib.ParsedCacheStats()
	assert.False(t, stats.Enabled)
	assert.Equal(t, 0, stats.Entries)
}

func TestLibrary_WithCachedFilesystemStorage(t *testing.T) {
	fs, err := NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)
	lib := newTestLibrary(t, LibraryConfig{Storage: NewCachedStorage(fs, DefaultCacheConfig())})
	ctx := context.Background()

	tmpl := MustNewTemplate(`Reply to [sender|brief,polite] about \[ticket\]`)
	_, err = lib.Save(ctx, "reply", tmpl)
	require.NoError(t, err)

	loaded, err := lib.Load(ctx, "reply")
	require.NoError(t, err)
	assert.Equal(t, tmpl.Fragments(), loaded.Fragments())
	assert.Equal(t, []string{"sender"}, loaded.Names())
}

func TestLibrary_SharedFilesystemRoot(t *testing.T) {
	root := t.TempDir()
	open := func() *Library {
		fs, err := NewFilesystemStorage(root)
		require.NoError(t, err)
		return newTestLibrary(t, LibraryConfig{Storage: fs})
	}
	libA, libB := open(), open()
	ctx := context.Background()

	_, err := libA.Save(ctx, "greet", MustNewTemplate("hello [name]"))
	require.NoError(t, err)
	loaded, err := libA.Load(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, "hello [name]", loaded.String())

	// libB reissues version 1 behind libA's parsed cache.
	require.NoError(t, libB.Delete(ctx, "greet"))
	stored, err := libB.Save(ctx, "greet", MustNewTemplate("bye [who|x]"))
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)

	loaded, err = libA.Load(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, "bye [who|x]", loaded.String())

	loaded, err = libA.LoadVersion(ctx, "greet", 1)
	require.NoError(t, err)
	assert.Equal(t, "bye [who|x]", loaded.String())
	assert.Equal(t, 1, libA.ParsedCacheStats().Entries)
}

func TestLibrary_Close(t *testing.T) {
	storage := NewMemoryStorage()
	lib := MustNewLibrary(LibraryConfig{Storage: storage})
	require.NoError(t, lib.Close())

	_, err := lib.Load(context.Background(), "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMsgStorageClosed)
}
