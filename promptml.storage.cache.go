package promptml

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// CachedStorage wraps any TemplateStorage with an in-memory cache.
// Entries expire after the TTL. Writes through the cache invalidate the
// template's entries; writes made directly on the backend are seen once the
// TTL passes.
type CachedStorage struct {
	storage TemplateStorage
	config  CacheConfig
	now     func() time.Time

	mu     sync.Mutex
	cache  map[string]*cacheEntry
	closed bool
}

// CacheConfig configures the caching behavior.
type CacheConfig struct {
	// TTL is how long cached entries remain valid.
	// Default: 5 minutes.
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries is the maximum number of cached entries.
	// When exceeded, the least recently used entry is evicted.
	// Default: 1000.
	MaxEntries int `yaml:"max_entries"`

	// NegativeCacheTTL is how long to cache "not found" results.
	// Set to 0 to disable negative caching.
	// Default: 30 seconds.
	NegativeCacheTTL time.Duration `yaml:"negative_ttl"`
}

// DefaultCacheConfig returns the default caching configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:              CacheDefaultTTL,
		MaxEntries:       CacheDefaultMaxEntries,
		NegativeCacheTTL: CacheDefaultNegativeTTL,
	}
}

// cacheEntry is one cached lookup result.
type cacheEntry struct {
	template   *StoredTemplate
	notFound   bool
	err        error // original not found error, for negative entries
	cachedAt   time.Time
	accessedAt time.Time
	key        string
	name       string
}

// NewCachedStorage wraps storage with caching.
func NewCachedStorage(storage TemplateStorage, config CacheConfig) *CachedStorage {
	if config.TTL == 0 {
		config.TTL = CacheDefaultTTL
	}
	if config.MaxEntries == 0 {
		config.MaxEntries = CacheDefaultMaxEntries
	}

	return &CachedStorage{
		storage: storage,
		config:  config,
		now:     time.Now,
		cache:   make(map[string]*cacheEntry),
	}
}

// Get retrieves the latest version of a template, using the cache when valid.
func (s *CachedStorage) Get(ctx context.Context, name string) (*StoredTemplate, error) {
	return s.cached(ctx, name, latestCacheKey(name), func() (*StoredTemplate, error) {
		return s.storage.Get(ctx, name)
	})
}

// GetVersion retrieves a specific version, using the cache when available.
func (s *CachedStorage) GetVersion(ctx context.Context, name string, version int) (*StoredTemplate, error) {
	return s.cached(ctx, name, versionCacheKey(name, version), func() (*StoredTemplate, error) {
		return s.storage.GetVersion(ctx, name, version)
	})
}

func (s *CachedStorage) cached(ctx context.Context, name, key string, fetch func() (*StoredTemplate, error)) (*StoredTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, NewStorageClosedError()
	}
	if entry, ok := s.cache[key]; ok && s.isValid(entry) {
		entry.accessedAt = s.now()
		tmpl, cachedErr := copyStoredTemplate(entry.template), entry.err
		s.mu.Unlock()
		if cachedErr != nil {
			return nil, cachedErr
		}
		return tmpl, nil
	}
	s.mu.Unlock()

	tmpl, err := fetch()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}
	if err != nil {
		if IsNotFound(err) && s.config.NegativeCacheTTL > 0 {
			s.addEntry(key, name, nil, err)
		}
		return nil, err
	}
	s.addEntry(key, name, copyStoredTemplate(tmpl), nil)
	return tmpl, nil
}

// Save stores a template and invalidates cached entries for its name.
func (s *CachedStorage) Save(ctx context.Context, tmpl *StoredTemplate) error {
	if err := s.storage.Save(ctx, tmpl); err != nil {
		return err
	}
	s.Invalidate(tmpl.Name)
	return nil
}

// Delete removes a template and invalidates cached entries for its name.
func (s *CachedStorage) Delete(ctx context.Context, name string) error {
	if err := s.storage.Delete(ctx, name); err != nil {
		return err
	}
	s.Invalidate(name)
	return nil
}

// DeleteVersion removes a specific version and invalidates cached entries.
func (s *CachedStorage) DeleteVersion(ctx context.Context, name string, version int) error {
	if err := s.storage.DeleteVersion(ctx, name, version); err != nil {
		return err
	}
	s.Invalidate(name)
	return nil
}

// List returns templates matching the query (bypasses cache).
func (s *CachedStorage) List(ctx context.Context, query *TemplateQuery) ([]*StoredTemplate, error) {
	return s.storage.List(ctx, query)
}

// Exists checks if a template exists, answering from the cache when it can.
func (s *CachedStorage) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, NewStorageClosedError()
	}
	if entry, ok := s.cache[latestCacheKey(name)]; ok && s.isValid(entry) {
		s.mu.Unlock()
		return !entry.notFound, nil
	}
	s.mu.Unlock()

	return s.storage.Exists(ctx, name)
}

// ListVersions returns version numbers (bypasses cache).
func (s *CachedStorage) ListVersions(ctx context.Context, name string) ([]int, error) {
	return s.storage.ListVersions(ctx, name)
}

// Close drops the cache and closes the underlying storage.
func (s *CachedStorage) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cache = nil
	s.mu.Unlock()

	return s.storage.Close()
}

// Invalidate removes every cached entry for name.
func (s *CachedStorage) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.cache {
		if entry.name == name {
			delete(s.cache, key)
		}
	}
}

// InvalidateAll clears the entire cache.
func (s *CachedStorage) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.cache = make(map[string]*cacheEntry)
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Entries         int
	ValidEntries    int
	NegativeEntries int
}

// Stats returns cache statistics.
func (s *CachedStorage) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats CacheStats
	stats.Entries = len(s.cache)
	for _, entry := range s.cache {
		if !s.isValid(entry) {
			continue
		}
		if entry.notFound {
			stats.NegativeEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats
}

// isValid checks if a cache entry is still valid. Caller holds the lock.
func (s *CachedStorage) isValid(entry *cacheEntry) bool {
	ttl := s.config.TTL
	if entry.notFound {
		ttl = s.config.NegativeCacheTTL
	}
	return s.now().Sub(entry.cachedAt) < ttl
}

// addEntry adds an entry, evicting the least recently used one at capacity.
// Caller holds the lock.
func (s *CachedStorage) addEntry(key, name string, tmpl *StoredTemplate, notFoundErr error) {
	if _, exists := s.cache[key]; !exists && len(s.cache) >= s.config.MaxEntries {
		s.evictOldest()
	}

	now := s.now()
	notFound := notFoundErr != nil
	s.cache[key] = &cacheEntry{
		template:   tmpl,
		notFound:   notFound,
		err:        notFoundErr,
		cachedAt:   now,
		accessedAt: now,
		key:        key,
		name:       name,
	}
}

// evictOldest removes the least recently accessed entry. Caller holds the lock.
func (s *CachedStorage) evictOldest() {
	var oldest *cacheEntry
	for _, entry := range s.cache {
		if oldest == nil || entry.accessedAt.Before(oldest.accessedAt) {
			oldest = entry
		}
	}
	if oldest != nil {
		delete(s.cache, oldest.key)
	}
}

// cacheKeySeparator cannot appear in names accepted by the storage drivers
const cacheKeySeparator = "\x00"

func latestCacheKey(name string) string {
	return name
}

func versionCacheKey(name string, version int) string {
	return name + cacheKeySeparator + strconv.Itoa(version)
}
