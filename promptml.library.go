package promptml

import (
	"context"
	"maps"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Library joins a storage backend with a parser. Templates are saved in
// persisted form and re-parsed on load.
type Library struct {
	storage TemplateStorage
	parser  *Parser
	logger  *zap.Logger

	mu           sync.RWMutex
	parsedCache  map[string]parsedEntry // versionCacheKey -> parsed template
	cacheEnabled bool
}

// parsedEntry is a parsed template along with the ID of the stored record it
// came from. Version numbers can be reissued after a delete, so a hit is only
// served when the ID still matches.
type parsedEntry struct {
	id       TemplateID
	template *Template
}

// LibraryConfig configures a Library.
type LibraryConfig struct {
	// Storage is the template storage backend (required).
	Storage TemplateStorage

	// Parser parses stored sources. If nil, a default parser is used.
	Parser *Parser

	// Logger receives debug logs. If nil, logging is disabled.
	Logger *zap.Logger

	// DisableParsedCache disables caching of parsed templates.
	// By default each stored record is parsed once.
	DisableParsedCache bool
}

// SaveOption sets optional fields on a template being saved.
type SaveOption func(*StoredTemplate)

// WithMetadata attaches key-value metadata to the saved version.
func WithMetadata(metadata map[string]string) SaveOption {
	return func(st *StoredTemplate) {
		if st.Metadata == nil {
			st.Metadata = make(map[string]string, len(metadata))
		}
		maps.Copy(st.Metadata, metadata)
	}
}

// WithTags attaches tags to the saved version.
func WithTags(tags ...string) SaveOption {
	return func(st *StoredTemplate) {
		st.Tags = append(st.Tags, tags...)
	}
}

// WithCreatedBy records who created the saved version.
func WithCreatedBy(createdBy string) SaveOption {
	return func(st *StoredTemplate) {
		st.CreatedBy = createdBy
	}
}

// NewLibrary creates a Library with the given configuration.
func NewLibrary(config LibraryConfig) (*Library, error) {
	if config.Storage == nil {
		return nil, &StorageError{Message: ErrMsgNilStorage}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := config.Parser
	if parser == nil {
		parser = NewParser(WithLogger(logger))
	}

	return &Library{
		storage:      config.Storage,
		parser:       parser,
		logger:       logger,
		parsedCache:  make(map[string]parsedEntry),
		cacheEnabled: !config.DisableParsedCache,
	}, nil
}

// MustNewLibrary creates a Library, panicking on error.
func MustNewLibrary(config LibraryConfig) *Library {
	lib, err := NewLibrary(config)
	if err != nil {
		panic(err)
	}
	return lib
}

// Save stores tmpl under name as a new version. The template must pass
// Validate, so that its persisted form parses back to the same fragments.
func (l *Library) Save(ctx context.Context, name string, tmpl *Template, opts ...SaveOption) (*StoredTemplate, error) {
	if tmpl == nil {
		return nil, &StorageError{Message: ErrMsgNilTemplate, Name: name}
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	stored := &StoredTemplate{
		Name:   name,
		Source: tmpl.Source(),
		Hash:   tmpl.Hash(),
	}
	for _, opt := range opts {
		opt(stored)
	}

	if err := l.storage.Save(ctx, stored); err != nil {
		return nil, err
	}
	l.logger.Debug(LogMsgLibrarySave,
		zap.String(LogFieldName, name),
		zap.Int(LogFieldVersion, stored.Version))
	return stored, nil
}

// Load returns the latest version of the named template.
func (l *Library) Load(ctx context.Context, name string) (*Template, error) {
	stored, err := l.storage.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return l.parseStored(stored)
}

// LoadVersion returns a specific version of the named template.
func (l *Library) LoadVersion(ctx context.Context, name string, version int) (*Template, error) {
	stored, err := l.storage.GetVersion(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return l.parseStored(stored)
}

// Delete removes all versions of a template.
func (l *Library) Delete(ctx context.Context, name string) error {
	if err := l.storage.Delete(ctx, name); err != nil {
		return err
	}
	l.invalidateParsedCache(name)
	return nil
}

// DeleteVersion removes a specific version of a template.
func (l *Library) DeleteVersion(ctx context.Context, name string, version int) error {
	if err := l.storage.DeleteVersion(ctx, name, version); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.parsedCache, versionCacheKey(name, version))
	l.mu.Unlock()
	return nil
}

// List returns stored templates matching the query.
func (l *Library) List(ctx context.Context, query *TemplateQuery) ([]*StoredTemplate, error) {
	return l.storage.List(ctx, query)
}

// ListVersions returns all version numbers for a template, newest first.
func (l *Library) ListVersions(ctx context.Context, name string) ([]int, error) {
	return l.storage.ListVersions(ctx, name)
}

// Exists checks if a template exists in storage.
func (l *Library) Exists(ctx context.Context, name string) (bool, error) {
	return l.storage.Exists(ctx, name)
}

// Storage returns the underlying storage backend.
func (l *Library) Storage() TemplateStorage {
	return l.storage
}

// Parser returns the parser used for stored sources.
func (l *Library) Parser() *Parser {
	return l.parser
}

// Close drops the parsed cache and closes the underlying storage.
func (l *Library) Close() error {
	l.mu.Lock()
	l.parsedCache = make(map[string]parsedEntry)
	l.mu.Unlock()

	return l.storage.Close()
}

// ParsedCacheStats contains parsed cache statistics.
type ParsedCacheStats struct {
	Entries int
	Enabled bool
}

// ParsedCacheStats returns statistics about the parsed template cache.
func (l *Library) ParsedCacheStats() ParsedCacheStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return ParsedCacheStats{
		Entries: len(l.parsedCache),
		Enabled: l.cacheEnabled,
	}
}

// parseStored parses a stored source, serving repeated records from the
// cache. Callers always receive their own copy.
func (l *Library) parseStored(stored *StoredTemplate) (*Template, error) {
	key := versionCacheKey(stored.Name, stored.Version)

	if l.cacheEnabled {
		l.mu.RLock()
		cached, ok := l.parsedCache[key]
		l.mu.RUnlock()

		if ok && cached.id == stored.ID {
			l.logger.Debug(LogMsgLibraryCached,
				zap.String(LogFieldName, stored.Name),
				zap.Int(LogFieldVersion, stored.Version))
			return cached.template.Clone(), nil
		}
	}

	tmpl, err := l.parser.ParseTemplate(stored.Source)
	if err != nil {
		return nil, err
	}
	l.logger.Debug(LogMsgLibraryLoad,
		zap.String(LogFieldName, stored.Name),
		zap.Int(LogFieldVersion, stored.Version))

	if l.cacheEnabled {
		l.mu.Lock()
		l.parsedCache[key] = parsedEntry{id: stored.ID, template: tmpl.Clone()}
		l.mu.Unlock()
	}
	return tmpl, nil
}

// invalidateParsedCache removes every cached version of name.
func (l *Library) invalidateParsedCache(name string) {
	prefix := name + cacheKeySeparator
	l.mu.Lock()
	for key := range l.parsedCache {
		if strings.HasPrefix(key, prefix) {
			delete(l.parsedCache, key)
		}
	}
	l.mu.Unlock()
}
