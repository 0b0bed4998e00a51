package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/isbn"
)

const (
	googleBooksBaseURL  = "https://www.googleapis.com/books/v1"
	googleBooksPriority = 1
	googleBooksSource   = "googlebooks"

	maxGenres         = 10
	maxDescriptionLen = 2000
)

// GoogleBooks is the primary catalog adapter.
type GoogleBooks struct {
	base
}

// Compile-time check that GoogleBooks implements book.Enricher.
var _ book.Enricher = (*GoogleBooks)(nil)

// NewGoogleBooks creates a Google Books adapter.
func NewGoogleBooks(opts ...Option) *GoogleBooks {
	return &GoogleBooks{base: newBase(googleBooksBaseURL, "GoogleBooks", 1, opts)}
}

// Name returns the human-readable name of this enricher.
func (g *GoogleBooks) Name() string {
	return "Google Books"
}

// Priority returns the priority for merging data (lower = higher precedence).
func (g *GoogleBooks) Priority() int {
	return googleBooksPriority
}

// Fetch searches volumes by title and author and shapes the best match.
func (g *GoogleBooks) Fetch(ctx context.Context, title, author string) (*book.EnrichmentData, error) {
	key := cache.NewKey(cache.SourceGoogleBooks, title, author)

	cached, _, err := cache.GetOrFetchWithPolicy(ctx, g.cache, key, title, func(ctx context.Context) (*cachedRecord, error) {
		var record *cachedRecord
		err := g.admit(ctx, func(ctx context.Context) error {
			var err error
			record, err = g.fetchFromAPI(ctx, title, author)
			return err
		})
		return record, err
	}, hasData)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from Google Books API: %w", err)
	}
	if !hasData(cached) {
		return nil, nil
	}
	return cached.Data, nil
}

// googleBooksResponse matches the Google Books API response structure.
type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo googleVolumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type googleVolumeInfo struct {
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	Authors             []string `json:"authors"`
	Publisher           string   `json:"publisher"`
	PublishedDate       string   `json:"publishedDate"`
	Description         string   `json:"description"`
	PageCount           int      `json:"pageCount"`
	Categories          []string `json:"categories"`
	Language            string   `json:"language"`
	MaturityRating      string   `json:"maturityRating"`
	CanonicalVolumeLink string   `json:"canonicalVolumeLink"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks struct {
		ExtraLarge string `json:"extraLarge"`
		Large      string `json:"large"`
		Medium     string `json:"medium"`
		Thumbnail  string `json:"thumbnail"`
	} `json:"imageLinks"`
}

func (g *GoogleBooks) fetchFromAPI(ctx context.Context, title, author string) (*cachedRecord, error) {
	endpoint := fmt.Sprintf("%s/volumes?q=%s&maxResults=1", g.baseURL, url.QueryEscape(title+" "+author))
	if g.apiKey != "" {
		endpoint += "&key=" + url.QueryEscape(g.apiKey)
	}

	var resp googleBooksResponse
	if err := g.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if len(resp.Items) == 0 {
		slog.Warn("No book data found in Google Books", "title", title, "author", author)
		return &cachedRecord{Title: title}, nil
	}

	slog.Debug("Google Books match", "title", title, "matched", resp.Items[0].VolumeInfo.Title)
	return &cachedRecord{Title: title, Data: shapeGoogleVolume(resp.Items[0].VolumeInfo)}, nil
}

func shapeGoogleVolume(info googleVolumeInfo) *book.EnrichmentData {
	genres := book.DedupeFold(info.Categories)
	if len(genres) > maxGenres {
		genres = genres[:maxGenres]
	}
	if mentionsShortStories(info.Description) && !containsFold(genres, book.ShortStoriesGenre) {
		genres = append(genres, book.ShortStoriesGenre)
	}

	description := promoPattern.ReplaceAllString(info.Description, "")
	description = truncate(strings.TrimSpace(description), maxDescriptionLen)

	data := &book.EnrichmentData{
		Subtitle:       nonEmpty(info.Subtitle),
		PublishedYear:  firstYear(info.PublishedDate),
		Genres:         genres,
		Language:       nonEmpty(info.Language),
		Pages:          positive(info.PageCount),
		Description:    nonEmpty(description),
		MaturityRating: nonEmpty(info.MaturityRating),
		CanonicalLink:  nonEmpty(info.CanonicalVolumeLink),
		Publisher:      nonEmpty(info.Publisher),
	}

	for _, id := range info.IndustryIdentifiers {
		if id.Type != isbn.TypeISBN10 && id.Type != isbn.TypeISBN13 {
			continue
		}
		data.IndustryIdentifiers = append(data.IndustryIdentifiers, book.Identifier{
			Type:       id.Type,
			Identifier: isbn.Normalize(id.Identifier),
		})
	}

	links := []string{
		info.ImageLinks.ExtraLarge,
		info.ImageLinks.Large,
		info.ImageLinks.Medium,
		strings.Replace(info.ImageLinks.Thumbnail, "zoom=5", "zoom=1", 1),
	}
	for _, link := range slices.Compact(links) {
		if link == "" {
			continue
		}
		data.CoverCandidates = append(data.CoverCandidates, book.ImageCandidate{
			URL:    strings.Replace(link, "http://", "https://", 1),
			Source: googleBooksSource,
		})
	}

	return data
}
