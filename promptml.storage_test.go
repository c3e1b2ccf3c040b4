package promptml

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStorageSuite exercises the behaviour every TemplateStorage must share.
func runStorageSuite(t *testing.T, open func(t *testing.T) TemplateStorage) {
	ctx := context.Background()

	t.Run("save assigns id and versions", func(t *testing.T) {
		storage := open(t)

		first := &StoredTemplate{Name: "greeting", Source: "Hello [name]"}
		require.NoError(t, storage.Save(ctx, first))
		assert.True(t, strings.HasPrefix(string(first.ID), TemplateIDPrefix))
		assert.Equal(t, 1, first.Version)
		assert.False(t, first.CreatedAt.IsZero())

		second := &StoredTemplate{Name: "greeting", Source: "Hi [name|formal]"}
		require.NoError(t, storage.Save(ctx, second))
		assert.Equal(t, 2, second.Version)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("get returns latest version", func(t *testing.T) {
		storage := open(t)
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "t", Source: "one"}))
		require.NoError(t, storage.Save(ctx, &StoredTemplate{
			Name:      "t",
			Source:    "two",
			Metadata:  map[string]string{"author": "ann"},
			Tags:      []string{"x"},
			CreatedBy: "ann",
			Hash:      42,
		}))

		got, err := storage.Get(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, "two", got.Source)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, "ann", got.Metadata["author"])
		assert.Equal(t, []string{"x"}, got.Tags)
		assert.Equal(t, "ann", got.CreatedBy)
		assert.Equal(t, uint64(42), got.Hash)
	})

	t.Run("get version", func(t *testing.T) {
		storage := open(t)
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "t", Source: "one"}))
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "t", Source: "two"}))

		got, err := storage.GetVersion(ctx, "t", 1)
		require.NoError(t, err)
		assert.Equal(t, "one", got.Source)

		_, err = storage.GetVersion(ctx, "t", 9)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("get missing template", func(t *testing.T) {
		storage := open(t)
		_, err := storage.Get(ctx, "missing")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))

		var storageErr *StorageError
		require.True(t, errors.As(err, &storageErr))
		assert.Equal(t, "missing", storageErr.Name)
	})

	t.Run("returned templates are copies", func(t *testing.T) {
		storage := open(t)
		require.NoError(t, storage.Save(ctx, &StoredTemplate{
			Name: "t", Source: "s", Metadata: map[string]string{"k": "v"},
		}))

		got, err := storage.Get(ctx, "t")
		require.NoError(t, err)
		got.Metadata["k"] = "changed"

		again, err := storage.Get(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, "v", again.Metadata["k"])
	})

	t.Run("exists and list versions", func(t *testing.T) {
		storage := open(t)
		exists, err := storage.Exists(ctx, "t")
		require.NoError(t, err)
		assert.False(t, exists)

		versions, err := storage.ListVersions(ctx, "t")
		require.NoError(t, err)
		assert.Empty(t, versions)

		for i := 0; i < 3; i++ {
			require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "t", Source: "s"}))
		}

		exists, err = storage.Exists(ctx, "t")
		require.NoError(t, err)
		assert.True(t, exists)

		versions, err = storage.ListVersions(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, []int{3, 2, 1}, versions)
	})

	t.Run("delete", func(t *testing.T) {
		storage := open(t)
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "t", Source: "s"}))
		require.NoError(t, storage.Delete(ctx, "t"))

		exists, err := storage.Exists(ctx, "t")
		require.NoError(t, err)
		assert.False(t, exists)

		err = storage.Delete(ctx, "t")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("delete version", func(t *testing.T) {
		storage := open(t)
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "t", Source: "one"}))
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "t", Source: "two"}))

		require.NoError(t, storage.DeleteVersion(ctx, "t", 2))
		got, err := storage.Get(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version)

		err = storage.DeleteVersion(ctx, "t", 2)
		assert.True(t, IsNotFound(err))

		require.NoError(t, storage.DeleteVersion(ctx, "t", 1))
		exists, err := storage.Exists(ctx, "t")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("list filters and orders", func(t *testing.T) {
		storage := open(t)
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "b-one", Source: "1", Tags: []string{"a", "b"}}))
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "a-two", Source: "1", CreatedBy: "bob"}))
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "a-two", Source: "2", CreatedBy: "bob"}))
		require.NoError(t, storage.Save(ctx, &StoredTemplate{Name: "c-three", Source: "1", Tags: []string{"a"}}))

		all, err := storage.List(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a-two", all[0].Name)
		assert.Equal(t, 2, all[0].Version)
		assert.Equal(t, "b-one", all[1].Name)
		assert.Equal(t, "c-three", all[2].Name)

		everything, err := storage.List(ctx, &TemplateQuery{IncludeAllVersions: true})
		require.NoError(t, err)
		require.Len(t, everything, 4)
		assert.Equal(t, 2, everything[0].Version)
		assert.Equal(t, 1, everything[1].Version)

		tagged, err := storage.List(ctx, &TemplateQuery{Tags: []string{"a", "b"}})
		require.NoError(t, err)
		require.Len(t, tagged, 1)
		assert.Equal(t, "b-one", tagged[0].Name)

		byCreator, err := storage.List(ctx, &TemplateQuery{CreatedBy: "bob"})
		require.NoError(t, err)
		require.Len(t, byCreator, 1)

		prefixed, err := storage.List(ctx, &TemplateQuery{NamePrefix: "a-"})
		require.NoError(t, err)
		require.Len(t, prefixed, 1)

		contains, err := storage.List(ctx, &TemplateQuery{NameContains: "e"})
		require.NoError(t, err)
		require.Len(t, contains, 2)

		page, err := storage.List(ctx, &TemplateQuery{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "b-one", page[0].Name)

		empty, err := storage.List(ctx, &TemplateQuery{NamePrefix: "zzz"})
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		storage := open(t)
		err := storage.Save(ctx, &StoredTemplate{Source: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgInvalidTemplateName)
	})

	t.Run("cancelled context", func(t *testing.T) {
		storage := open(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := storage.Get(cancelled, "t")
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, storage.Save(cancelled, &StoredTemplate{Name: "t"}), context.Canceled)
	})

	t.Run("closed storage", func(t *testing.T) {
		storage := open(t)
		require.NoError(t, storage.Close())

		_, err := storage.Get(ctx, "t")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgStorageClosed)

		err = storage.Save(ctx, &StoredTemplate{Name: "t", Source: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgStorageClosed)
	})
}

func TestStorageRegistry(t *testing.T) {
	drivers := ListStorageDrivers()
	assert.Contains(t, drivers, StorageDriverNameMemory)
	assert.Contains(t, drivers, StorageDriverNameFilesystem)
	assert.Contains(t, drivers, StorageDriverNamePostgres)
	assert.IsIncreasing(t, drivers)

	t.Run("open memory", func(t *testing.T) {
		storage, err := OpenStorage(StorageDriverNameMemory, "")
		require.NoError(t, err)
		defer storage.Close()
		assert.IsType(t, &MemoryStorage{}, storage)
	})

	t.Run("open filesystem", func(t *testing.T) {
		storage, err := OpenStorage(StorageDriverNameFilesystem, t.TempDir())
		require.NoError(t, err)
		defer storage.Close()
		assert.IsType(t, &FilesystemStorage{}, storage)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStorage("nope", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgStorageDriverNotFound)
		assert.False(t, IsNotFound(err))
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		assert.Panics(t, func() {
			RegisterStorageDriver(StorageDriverNameMemory, &MemoryStorageDriver{})
		})
	})

	t.Run("nil driver panics", func(t *testing.T) {
		assert.Panics(t, func() {
			RegisterStorageDriver("nil-driver", nil)
		})
	})
}

func TestStorageError(t *testing.T) {
	tests := []struct {
		name     string
		err      *StorageError
		expected string
	}{
		{"message only", &StorageError{Message: "boom"}, "boom"},
		{"with name", &StorageError{Message: "boom", Name: "t"}, "boom: t"},
		{"with version", &StorageError{Message: "boom", Name: "t", Version: 2}, "boom: t v2"},
		{"with cause", &StorageError{Message: "boom", Cause: errors.New("disk")}, "boom: disk"},
		{"not found cause hidden", &StorageError{Message: "gone", Name: "t", Cause: ErrNotFound}, "gone: t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}

	cause := errors.New("root")
	wrapped := &StorageError{Message: "m", Cause: cause}
	assert.ErrorIs(t, wrapped, cause)
}

func TestGenerateTemplateID(t *testing.T) {
	seen := make(map[TemplateID]bool)
	for i := 0; i < 100; i++ {
		id := generateTemplateID()
		assert.True(t, strings.HasPrefix(string(id), TemplateIDPrefix))
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestGenerateTemplateID_RandomSourceFailure(t *testing.T) {
	original := randRead
	t.Cleanup(func() { randRead = original })
	randRead = func([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

	assert.PanicsWithError(t, ErrMsgGenerateTemplateID+": entropy exhausted", func() {
		generateTemplateID()
	})
}
