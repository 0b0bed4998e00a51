package cache

// SQL schemas for cache tables
// All cache tables use "cache_key" as the primary key column for consistency.
// cached_at is informational only; entries never expire.

const googleBooksCacheSchema = `
CREATE TABLE IF NOT EXISTS googlebooks_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const openLibraryCacheSchema = `
CREATE TABLE IF NOT EXISTS openlibrary_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const openLibraryISBNCacheSchema = `
CREATE TABLE IF NOT EXISTS openlibrary_isbn_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const wikidataAuthorCacheSchema = `
CREATE TABLE IF NOT EXISTS wikidata_author_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const wikidataPublisherCacheSchema = `
CREATE TABLE IF NOT EXISTS wikidata_publisher_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const amazonSearchCacheSchema = `
CREATE TABLE IF NOT EXISTS amazon_search_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// AllCacheSchemas contains all cache table schemas for initialization
var AllCacheSchemas = []string{
	googleBooksCacheSchema,
	openLibraryCacheSchema,
	openLibraryISBNCacheSchema,
	wikidataAuthorCacheSchema,
	wikidataPublisherCacheSchema,
	amazonSearchCacheSchema,
}

// sourceTables maps each cache source to its table. It doubles as the
// whitelist for table names interpolated into SQL.
var sourceTables = map[Source]string{
	SourceGoogleBooks:       "googlebooks_cache",
	SourceOpenLibrary:       "openlibrary_cache",
	SourceOpenLibraryISBN:   "openlibrary_isbn_cache",
	SourceWikidataAuthor:    "wikidata_author_cache",
	SourceWikidataPublisher: "wikidata_publisher_cache",
	SourceAmazonSearch:      "amazon_search_cache",
}
