package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/metrics"
)

// cacheExts is the lookup order for cached files.
var cacheExts = []string{"xml", "txt", "json"}

// Cache stores raw payloads as <dir>/<DATABASE>/<IDENTIFIER>.<ext> and
// pins database releases in <dir>/DatabaseVersions.csv.
type Cache struct {
	dir      string
	versions *Versions
	logger   *slog.Logger
}

// NewCache returns a cache rooted at dir. The directory is created lazily.
func NewCache(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{dir: dir, versions: NewVersions(dir, logger), logger: logger}
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// Versions returns the release ledger of the cache.
func (c *Cache) Versions() *Versions { return c.versions }

func safeName(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(s))
}

func (c *Cache) path(database, identifier, ext string) string {
	return filepath.Join(c.dir, safeName(database), safeName(identifier)+"."+ext)
}

// Get returns the cached payload, if any.
func (c *Cache) Get(identifier, database string) (Payload, bool, error) {
	for _, ext := range cacheExts {
		data, err := os.ReadFile(c.path(database, identifier, ext))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Payload{}, false, fmt.Errorf("reading cache: %w", err)
		}
		return Payload{Data: data, Ext: ext, Database: database}, true, nil
	}
	return Payload{}, false, nil
}

// Put stores p under identifier. The write goes through a temporary file
// so readers never see a partial record.
func (c *Cache) Put(identifier string, p Payload) error {
	path := c.path(p.Database, identifier, p.Ext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := tmp.Write(p.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing cache file: %w", err)
	}
	c.logger.Debug("cached record", "identifier", identifier, "database", p.Database, "path", path)
	return nil
}

// Invalidate deletes the cached records of database and its release pin.
// With an empty database every database directory and the whole ledger go;
// other files in the cache root are left alone.
func (c *Cache) Invalidate(database string) error {
	if database != "" {
		target := filepath.Join(c.dir, safeName(database))
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("invalidating cache: %w", err)
		}
		if err := c.versions.Forget(database); err != nil {
			return fmt.Errorf("invalidating cache: %w", err)
		}
		c.logger.Info("cache invalidated", "path", target)
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("invalidating cache: %w", err)
		}
	}
	if err := c.versions.Forget(""); err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "path", c.dir)
	return nil
}

// CachedFetcher serves records from a Cache and falls back to another
// Fetcher on a miss. A nil fallback makes the fetcher offline.
type CachedFetcher struct {
	cache  *Cache
	next   Fetcher
	logger *slog.Logger
}

// NewCachedFetcher wraps next with cache.
func NewCachedFetcher(cache *Cache, next Fetcher, logger *slog.Logger) *CachedFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{cache: cache, next: next, logger: logger}
}

// Fetch implements Fetcher.
func (f *CachedFetcher) Fetch(ctx context.Context, identifier, database string) (Payload, error) {
	p, ok, err := f.cache.Get(identifier, database)
	if err != nil {
		return Payload{}, err
	}
	if ok {
		metrics.Inc(metrics.CacheHits)
		f.logger.Debug("cache hit", "identifier", identifier, "database", database)
		return p, nil
	}
	metrics.Inc(metrics.CacheMisses)
	if f.next == nil {
		return Payload{}, fmt.Errorf("%w: %s:%s not cached", ErrNotFound, database, identifier)
	}
	p, err = f.next.Fetch(ctx, identifier, database)
	if err != nil {
		return Payload{}, err
	}
	p.Database = database
	if err := f.cache.versions.Check(database, p.Version); err != nil {
		return Payload{}, fmt.Errorf("fetching %s:%s: %w", database, identifier, err)
	}
	if err := f.cache.Put(identifier, p); err != nil {
		f.logger.Warn("caching record failed", "identifier", identifier, "error", err)
	}
	return p, nil
}
