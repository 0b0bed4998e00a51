// Package overrides provides hand-maintained corrections for titles the
// catalogs are known to get wrong or miss.
package overrides

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/isbn"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Priority places overrides after both catalogs in the merge order.
const Priority = 3

// Override is one known-title correction.
type Override struct {
	Title         string            `yaml:"title"`
	PublishedYear *int              `yaml:"publishedYear,omitempty"`
	BookType      *book.Type        `yaml:"bookType,omitempty"`
	Genres        []string          `yaml:"genres,omitempty"`
	Identifiers   []book.Identifier `yaml:"identifiers,omitempty"`
}

// Provider looks up overrides by title.
type Provider interface {
	Lookup(title string) (Override, bool)
}

// Table is an in-memory Provider keyed by case-insensitive title.
type Table struct {
	entries map[string]Override
}

// NewTable builds a table from entries. Later entries replace earlier ones
// with the same title.
func NewTable(entries ...Override) *Table {
	t := &Table{entries: make(map[string]Override, len(entries))}
	for _, e := range entries {
		t.entries[normalize(e.Title)] = e
	}
	return t
}

// Default returns the built-in table.
func Default() *Table {
	t, err := parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("overrides: embedded defaults are invalid: %v", err))
	}
	return t
}

// Load returns the built-in table extended with the entries from path.
// An empty path returns the built-in table.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overrides file: %w", err)
	}
	extra, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing overrides file %s: %w", path, err)
	}
	for k, v := range extra.entries {
		t.entries[k] = v
	}
	return t, nil
}

func parse(data []byte) (*Table, error) {
	var entries []Override
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("entry %d has no title", i)
		}
		if e.BookType != nil {
			switch *e.BookType {
			case book.TypeNovel, book.TypeShortStory, book.TypeOther:
			default:
				return nil, fmt.Errorf("entry %q has unknown bookType %q", e.Title, *e.BookType)
			}
		}
	}
	return NewTable(entries...), nil
}

// Lookup implements Provider.
func (t *Table) Lookup(title string) (Override, bool) {
	o, ok := t.entries[normalize(title)]
	return o, ok
}

// Entries returns all overrides sorted by title.
func (t *Table) Entries() []Override {
	out := make([]Override, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Override) int {
		return strings.Compare(normalize(a.Title), normalize(b.Title))
	})
	return out
}

func normalize(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// ISBN13 returns the override's ISBN-13, deriving it from an ISBN-10 when
// that is all it has.
func (o Override) ISBN13() string {
	var isbn10 string
	for _, id := range o.Identifiers {
		switch id.Type {
		case isbn.TypeISBN13:
			return isbn.Normalize(id.Identifier)
		case isbn.TypeISBN10:
			isbn10 = isbn.Normalize(id.Identifier)
		}
	}
	return isbn.To13(isbn10)
}

// EnrichmentData converts the override into a partial record.
func (o Override) EnrichmentData() *book.EnrichmentData {
	return &book.EnrichmentData{
		PublishedYear:       o.PublishedYear,
		BookType:            o.BookType,
		Genres:              o.Genres,
		IndustryIdentifiers: o.Identifiers,
	}
}

// Enricher exposes a Provider as a merge stage.
type Enricher struct {
	provider Provider
}

var _ book.Enricher = (*Enricher)(nil)

// NewEnricher wraps provider.
func NewEnricher(provider Provider) *Enricher {
	return &Enricher{provider: provider}
}

// Name implements book.Enricher.
func (e *Enricher) Name() string { return "Known titles" }

// Priority implements book.Enricher.
func (e *Enricher) Priority() int { return Priority }

// Fetch implements book.Enricher. The author is not consulted.
func (e *Enricher) Fetch(_ context.Context, title, _ string) (*book.EnrichmentData, error) {
	o, ok := e.provider.Lookup(title)
	if !ok {
		return nil, nil
	}
	return o.EnrichmentData(), nil
}
