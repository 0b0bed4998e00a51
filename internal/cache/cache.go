package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func(ctx context.Context) (T, error)

// CacheDB manages the SQLite database connection for caching.
// Reads are always attempted; writes only happen when enabled.
type CacheDB struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	writes bool
	flight singleflight.Group
}

// Option configures a CacheDB.
type Option func(*CacheDB)

// WithWrites enables or disables persisting new entries.
func WithWrites(enabled bool) Option {
	return func(c *CacheDB) {
		c.writes = enabled
	}
}

var (
	globalCache     *CacheDB
	globalCacheOnce sync.Once
)

// ResetGlobalCache closes the current global cache and resets the singleton
// so the next call to GetGlobalCache will create a new instance.
// This is primarily for testing purposes.
func ResetGlobalCache() error {
	if globalCache != nil {
		if err := globalCache.Close(); err != nil {
			return err
		}
	}
	globalCache = nil
	globalCacheOnce = sync.Once{}
	return nil
}

// GetGlobalCache returns the singleton cache database instance configured
// from cache.dbfile and cache.write.
func GetGlobalCache() (*CacheDB, error) {
	var initErr error
	globalCacheOnce.Do(func() {
		dbPath := viper.GetString("cache.dbfile")
		if dbPath == "" {
			dbPath = "./cache.db"
		}
		globalCache, initErr = NewCacheDB(dbPath, WithWrites(viper.GetBool("cache.write")))
	})
	if initErr != nil {
		return nil, initErr
	}
	return globalCache, nil
}

// NewCacheDB opens the database at dbPath and creates every cache table.
func NewCacheDB(dbPath string, opts ...Option) (*CacheDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	c := &CacheDB{
		db:   db,
		path: dbPath,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, schema := range AllCacheSchemas {
		if _, err := db.Exec(schema); err != nil {
			closeErr := db.Close()
			return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), closeErr)
		}
	}

	return c, nil
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (c *CacheDB) Path() string {
	return c.path
}

// WritesEnabled reports whether Put persists entries.
func (c *CacheDB) WritesEnabled() bool {
	return c.writes
}

// Get looks up key. When expectedTitle is non-empty the payload's embedded
// "title" field must match it case-insensitively, otherwise the entry is
// reported as a miss.
func (c *CacheDB) Get(ctx context.Context, key Key, expectedTitle string) (json.RawMessage, bool, error) {
	table, err := key.Source.table()
	if err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`SELECT data FROM %s WHERE cache_key = ?`, table)

	var data string
	err = c.db.QueryRowContext(ctx, query, key.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache: %w", err)
	}

	if expectedTitle != "" && !titleMatches(data, expectedTitle) {
		slog.Warn("Cached entry title mismatch, ignoring", "source", key.Source, "key", key.String(), "expected", expectedTitle)
		return nil, false, nil
	}

	return json.RawMessage(data), true, nil
}

// Put stores payload under key. It is a no-op when writes are disabled.
func (c *CacheDB) Put(ctx context.Context, key Key, payload any) error {
	table, err := key.Source.table()
	if err != nil {
		return err
	}

	if !c.writes {
		slog.Debug("Cache writes disabled, not storing", "source", key.Source, "key", key.String())
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, cached_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`, table)

	if _, err := c.db.ExecContext(ctx, query, key.String(), string(data)); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// InvalidateSource deletes all entries for source.
// Returns the number of rows deleted
func (c *CacheDB) InvalidateSource(source Source) (int64, error) {
	table, err := source.table()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Debug("Cache table cleared", "table", table, "rows_deleted", rowsAffected)
	return rowsAffected, nil
}

// Clear deletes every cache entry from every source.
func (c *CacheDB) Clear() (int64, error) {
	var total int64
	for _, source := range Sources() {
		n, err := c.InvalidateSource(source)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func titleMatches(data, expected string) bool {
	var embedded struct {
		Title *string `json:"title"`
	}
	if err := json.Unmarshal([]byte(data), &embedded); err != nil || embedded.Title == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*embedded.Title), strings.TrimSpace(expected))
}

// GetOrFetch retrieves data from cache or fetches it using the provided function.
// expectedTitle is checked against the cached payload (see Get); pass "" to skip.
// Concurrent misses for the same key share a single fetch.
// A nil CacheDB fetches directly.
func GetOrFetch[T any](ctx context.Context, c *CacheDB, key Key, expectedTitle string, fetchFunc FetchFunc[T]) (T, bool, error) {
	return GetOrFetchWithPolicy(ctx, c, key, expectedTitle, fetchFunc, nil)
}

// GetOrFetchWithPolicy is GetOrFetch with control over whether a fetched value
// should be cached. If shouldCache is nil, all fetched values are cached.
func GetOrFetchWithPolicy[T any](ctx context.Context, c *CacheDB, key Key, expectedTitle string, fetchFunc FetchFunc[T], shouldCache func(T) bool) (T, bool, error) {
	var zero T

	if c == nil {
		data, err := fetchFunc(ctx)
		return data, false, err
	}

	cached, fromCache, err := c.Get(ctx, key, expectedTitle)
	if err != nil {
		slog.Warn("Cache lookup failed, fetching directly", "source", key.Source, "key", key.String(), "error", err)
	}
	if fromCache {
		var result T
		if err := json.Unmarshal(cached, &result); err == nil {
			slog.Debug("Cache hit", "source", key.Source, "key", key.String())
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "source", key.Source, "key", key.String(), "error", err)
	}

	slog.Debug("Cache miss, fetching data", "source", key.Source, "key", key.String())
	v, err, shared := c.flight.Do(key.String(), func() (any, error) {
		data, err := fetchFunc(ctx)
		if err != nil {
			return data, err
		}

		if shouldCache != nil && !shouldCache(data) {
			slog.Debug("Skipping cache store per policy", "source", key.Source, "key", key.String())
			return data, nil
		}

		if err := c.Put(ctx, key, data); err != nil {
			slog.Warn("Failed to cache data", "source", key.Source, "key", key.String(), "error", err)
		}
		return data, nil
	})
	if err != nil {
		return zero, false, fmt.Errorf("failed to fetch data: %w", err)
	}
	if shared {
		slog.Debug("Shared in-flight fetch", "source", key.Source, "key", key.String())
	}

	result, _ := v.(T)
	return result, false, nil
}
