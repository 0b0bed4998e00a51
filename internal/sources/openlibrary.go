package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"

	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/isbn"
	"github.com/lepinkainen/deepresearch/internal/overrides"
)

const (
	openLibraryBaseURL   = "https://openlibrary.org"
	openLibraryCoversURL = "https://covers.openlibrary.org"
	openLibraryPriority  = 2
	openLibrarySource    = "openlibrary"

	maxIdentifiers = 10
)

// OpenLibrary is the secondary catalog adapter. When the search result
// carries no ISBNs and the title has a known identifier, it makes an extra
// ISBN lookup to recover a cover and a circulation figure.
type OpenLibrary struct {
	base
	known overrides.Provider
}

// Compile-time check that OpenLibrary implements book.Enricher.
var _ book.Enricher = (*OpenLibrary)(nil)

// NewOpenLibrary creates an Open Library adapter. known may be nil.
func NewOpenLibrary(known overrides.Provider, opts ...Option) *OpenLibrary {
	return &OpenLibrary{
		base:  newBase(openLibraryBaseURL, "OpenLibrary", 1, opts),
		known: known,
	}
}

// Name returns the human-readable name of this enricher.
func (o *OpenLibrary) Name() string {
	return "Open Library"
}

// Priority returns the priority for merging data (lower = higher precedence).
func (o *OpenLibrary) Priority() int {
	return openLibraryPriority
}

// Fetch searches by title and author.
func (o *OpenLibrary) Fetch(ctx context.Context, title, author string) (*book.EnrichmentData, error) {
	key := cache.NewKey(cache.SourceOpenLibrary, title, author)

	cached, _, err := cache.GetOrFetchWithPolicy(ctx, o.cache, key, title, func(ctx context.Context) (*cachedRecord, error) {
		var record *cachedRecord
		err := o.admit(ctx, func(ctx context.Context) error {
			var err error
			record, err = o.fetchFromAPI(ctx, title, author)
			return err
		})
		return record, err
	}, hasData)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from Open Library API: %w", err)
	}
	if !hasData(cached) {
		return nil, nil
	}

	data := *cached.Data
	if len(data.IndustryIdentifiers) == 0 {
		o.applyKnownISBN(ctx, title, &data)
	}
	return &data, nil
}

type openLibrarySearchResponse struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Title            string   `json:"title"`
	CoverID          int      `json:"cover_i"`
	ISBN             []string `json:"isbn"`
	Subject          []string `json:"subject"`
	Publisher        []string `json:"publisher"`
	Language         []string `json:"language"`
	FirstPublishYear int      `json:"first_publish_year"`
	PagesMedian      int      `json:"number_of_pages_median"`
	Key              string   `json:"key"`
}

func (o *OpenLibrary) fetchFromAPI(ctx context.Context, title, author string) (*cachedRecord, error) {
	endpoint := fmt.Sprintf("%s/search.json?q=%s&limit=1", o.baseURL, url.QueryEscape(title+" "+author))

	var resp openLibrarySearchResponse
	if err := o.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if len(resp.Docs) == 0 {
		slog.Warn("No book data found in Open Library", "title", title, "author", author)
		return &cachedRecord{Title: title}, nil
	}

	slog.Debug("Open Library match", "title", title, "matched", resp.Docs[0].Title)
	return &cachedRecord{Title: title, Data: o.shapeDoc(resp.Docs[0])}, nil
}

func (o *OpenLibrary) shapeDoc(doc openLibraryDoc) *book.EnrichmentData {
	data := &book.EnrichmentData{
		PublishedYear: positive(doc.FirstPublishYear),
		Pages:         positive(doc.PagesMedian),
	}

	subjects := doc.Subject
	if len(subjects) > maxGenres {
		subjects = subjects[:maxGenres]
	}
	data.Genres = book.DedupeFold(subjects)
	if containsFold(doc.Subject, "Short stories") {
		data.BookType = book.Ptr(book.TypeShortStory)
		if !containsFold(data.Genres, book.ShortStoriesGenre) {
			data.Genres = append(data.Genres, book.ShortStoriesGenre)
		}
	}

	if len(doc.Publisher) > 0 {
		data.Publisher = nonEmpty(doc.Publisher[0])
	}
	if len(doc.Language) > 0 {
		data.Language = nonEmpty(doc.Language[0])
	}
	if doc.Key != "" {
		data.CanonicalLink = nonEmpty(o.baseURL + doc.Key)
	}

	seen := make(map[string]bool)
	for _, raw := range doc.ISBN {
		if len(data.IndustryIdentifiers) >= maxIdentifiers {
			break
		}
		id := isbn.Normalize(raw)
		kind := isbn.Type(id)
		if kind == "" || seen[id] {
			continue
		}
		seen[id] = true
		data.IndustryIdentifiers = append(data.IndustryIdentifiers, book.Identifier{Type: kind, Identifier: id})
	}

	if doc.CoverID > 0 {
		data.CoverCandidates = append(data.CoverCandidates, book.ImageCandidate{
			URL:    fmt.Sprintf("%s/b/id/%d-L.jpg", openLibraryCoversURL, doc.CoverID),
			Source: openLibrarySource,
		})
	}

	return data
}

// isbnLookup is the cached result of the ISBN sub-lookup.
type isbnLookup struct {
	ISBN       string               `json:"isbn"`
	Cover      *book.ImageCandidate `json:"cover,omitempty"`
	CopiesSold *int                 `json:"copiesSold,omitempty"`
}

// applyKnownISBN fills a cover and circulation figure from the ISBN the
// known-titles table holds for title. Failures only cost the extra data.
func (o *OpenLibrary) applyKnownISBN(ctx context.Context, title string, data *book.EnrichmentData) {
	if o.known == nil {
		return
	}
	entry, ok := o.known.Lookup(title)
	if !ok {
		return
	}
	isbn13 := entry.ISBN13()
	if isbn13 == "" {
		return
	}

	key := cache.NewKey(cache.SourceOpenLibraryISBN, isbn13)
	lookup, _, err := cache.GetOrFetch(ctx, o.cache, key, "", func(ctx context.Context) (*isbnLookup, error) {
		var result *isbnLookup
		err := o.admit(ctx, func(ctx context.Context) error {
			var err error
			result, err = o.lookupISBN(ctx, isbn13)
			return err
		})
		return result, err
	})
	if err != nil {
		slog.Warn("Open Library ISBN lookup failed", "title", title, "isbn", isbn13, "error", err)
		return
	}
	if lookup == nil {
		return
	}

	if lookup.Cover != nil {
		data.CoverCandidates = append(slices.Clip(data.CoverCandidates), *lookup.Cover)
	}
	if data.CopiesSold == nil && lookup.CopiesSold != nil {
		data.CopiesSold = lookup.CopiesSold
	}
}

type openLibraryBooksEntry struct {
	Details struct {
		Covers []int `json:"covers"`
		Works  []struct {
			Key string `json:"key"`
		} `json:"works"`
		Description json.RawMessage `json:"description"`
	} `json:"details"`
}

type openLibraryWork struct {
	Description json.RawMessage `json:"description"`
}

func (o *OpenLibrary) lookupISBN(ctx context.Context, isbn13 string) (*isbnLookup, error) {
	bibkey := "ISBN:" + isbn13
	endpoint := fmt.Sprintf("%s/api/books?bibkeys=%s&jscmd=details&format=json", o.baseURL, url.QueryEscape(bibkey))

	var entries map[string]openLibraryBooksEntry
	if err := o.client.GetJSON(ctx, endpoint, &entries); err != nil {
		return nil, err
	}

	result := &isbnLookup{ISBN: isbn13}
	entry, ok := entries[bibkey]
	if !ok {
		return result, nil
	}

	if len(entry.Details.Covers) > 0 && entry.Details.Covers[0] > 0 {
		result.Cover = &book.ImageCandidate{
			URL:    fmt.Sprintf("%s/b/id/%d-L.jpg", openLibraryCoversURL, entry.Details.Covers[0]),
			Source: openLibrarySource,
		}
	}

	description := extractDescription(entry.Details.Description)
	if description == "" && len(entry.Details.Works) > 0 && entry.Details.Works[0].Key != "" {
		var work openLibraryWork
		workURL := o.baseURL + entry.Details.Works[0].Key + ".json"
		if err := o.client.GetJSON(ctx, workURL, &work); err != nil {
			return nil, err
		}
		description = extractDescription(work.Description)
	}

	result.CopiesSold = parseCirculation(description)
	return result, nil
}

// parseCirculation finds figures like "1,200,000 copies sold" in free text.
func parseCirculation(text string) *int {
	m := copiesPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, ok := parseCount(m[1])
	if !ok || n <= 0 {
		return nil
	}
	return &n
}
