package cache

import (
	"fmt"
	"log/slog"
)

// ClearCacheCmd represents the cache clear subcommand
type ClearCacheCmd struct {
	Source string `help:"Only clear this source (google-books, open-library, open-library-isbn, wikidata-author, wikidata-publisher, amazon-search)" optional:""`
}

func (c *ClearCacheCmd) Run() error {
	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	if c.Source == "" {
		rowsDeleted, err := cacheInstance.Clear()
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		slog.Info("Cache cleared", "database", cacheInstance.Path(), "rows_deleted", rowsDeleted)
		return nil
	}

	source, err := ParseSource(c.Source)
	if err != nil {
		return err
	}

	slog.Info("Invalidating cache", "source", source, "database", cacheInstance.Path())

	rowsDeleted, err := cacheInstance.InvalidateSource(source)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", source, "rows_deleted", rowsDeleted)
	return nil
}
