package cache

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Source identifies which upstream produced a cached payload.
type Source string

const (
	SourceGoogleBooks       Source = "google-books"
	SourceOpenLibrary       Source = "open-library"
	SourceOpenLibraryISBN   Source = "open-library-isbn"
	SourceWikidataAuthor    Source = "wikidata-author"
	SourceWikidataPublisher Source = "wikidata-publisher"
	SourceAmazonSearch      Source = "amazon-search"
)

// Sources returns every known cache source in a stable order.
func Sources() []Source {
	sources := make([]Source, 0, len(sourceTables))
	for s := range sourceTables {
		sources = append(sources, s)
	}
	slices.Sort(sources)
	return sources
}

// ParseSource validates a user-supplied source name.
func ParseSource(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := sourceTables[s]; !ok {
		return "", fmt.Errorf("invalid cache source %q; valid sources are: %s", name, joinSources(Sources()))
	}
	return s, nil
}

func (s Source) table() (string, error) {
	table, ok := sourceTables[s]
	if !ok {
		return "", fmt.Errorf("invalid cache source: %s", s)
	}
	return table, nil
}

func joinSources(sources []Source) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

var whitespace = regexp.MustCompile(`\s+`)

// Key identifies one cached response. Parts are usually title and author,
// or a single entity name for knowledge-graph lookups.
type Key struct {
	Source Source
	Parts  []string
}

// NewKey builds a key for source from the given parts.
func NewKey(source Source, parts ...string) Key {
	return Key{Source: source, Parts: parts}
}

// String renders the key as "<source>-<part>-<part>", lowercased with
// whitespace runs collapsed to a single dash.
func (k Key) String() string {
	raw := strings.Join(append([]string{string(k.Source)}, k.Parts...), "-")
	return strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(raw), "-"))
}
