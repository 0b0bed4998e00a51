package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/images"
	"github.com/lepinkainen/deepresearch/internal/isbn"
	"github.com/lepinkainen/deepresearch/internal/overrides"
	"github.com/lepinkainen/deepresearch/internal/scrape"
	"github.com/lepinkainen/deepresearch/internal/sources"
)

// run executes the stages in order. Only this goroutine touches result.
func (e *Engine) run(ctx context.Context, req Request, result *Result) {
	slog.Info("Starting deep research", "title", req.Title, "author", req.Author)

	merged := e.collectCatalogs(ctx, req, result)
	applyCatalogData(result, merged)

	e.stage(StageCover, result, func() {
		if len(merged.CoverCandidates) == 0 {
			return
		}
		result.Book.CoverImage = e.images.Select(ctx, merged.CoverCandidates, e.minWidth, e.minHeight)
	})

	e.stage(StageAuthor, result, func() { e.researchAuthor(ctx, req, result) })

	if result.Publisher.Name != nil {
		e.stage(StagePublisher, result, func() { e.researchPublisher(ctx, result) })
	} else {
		e.skip(StagePublisher)
	}

	if e.useScraping(req) {
		e.stage(StageScraping, result, func() { e.scrapeSignals(ctx, req, result) })
	} else {
		e.skip(StageScraping)
	}

	if result.Book.CoverImage == nil && result.Book.SecondaryCoverImage != nil {
		e.stage(StageCover, result, func() {
			result.Book.CoverImage = e.images.Select(ctx, []images.Candidate{
				{URL: *result.Book.SecondaryCoverImage, Source: "amazon"},
			}, e.minWidth, e.minHeight)
		})
	}

	e.stage(StageReconcile, result, func() { reconcile(result) })
}

// collectCatalogs queries every catalog and the known-title table, then
// merges them so that earlier stages win field by field.
func (e *Engine) collectCatalogs(ctx context.Context, req Request, result *Result) *book.EnrichmentData {
	results := make([]book.EnricherResult, 0, len(e.catalogs)+1)
	for _, catalog := range e.catalogs {
		results = e.fetchCatalog(ctx, catalog, req, result, results, true)
	}
	results = e.fetchCatalog(ctx, overrides.NewEnricher(e.overrides), req, result, results, false)

	return e.merger.Merge(results)
}

// fetchCatalog runs one enricher as a stage and appends its data to
// results. A source without a match counts as a failure when reportMissing
// is set.
func (e *Engine) fetchCatalog(ctx context.Context, enricher book.Enricher, req Request, result *Result, results []book.EnricherResult, reportMissing bool) []book.EnricherResult {
	e.stage(enricher.Name(), result, func() {
		data, err := enricher.Fetch(ctx, req.Title, req.Author)
		switch {
		case err != nil:
			slog.Warn("Catalog lookup failed", "source", enricher.Name(), "error", err)
			result.addError(err.Error())
		case data == nil:
			slog.Debug("No catalog match", "source", enricher.Name(), "title", req.Title)
			if reportMissing {
				result.addError(fmt.Sprintf("%s: no results for %q by %s", enricher.Name(), req.Title, req.Author))
			}
		default:
			results = append(results, book.EnricherResult{
				Data:     data,
				Source:   enricher.Name(),
				Priority: enricher.Priority(),
			})
		}
	})
	return results
}

func applyCatalogData(result *Result, data *book.EnrichmentData) {
	b := &result.Book
	b.Subtitle = data.Subtitle
	b.BookType = data.BookType
	b.PublishedYear = data.PublishedYear
	b.Language = data.Language
	b.Pages = data.Pages
	b.Description = data.Description
	b.MaturityRating = data.MaturityRating
	b.CanonicalLink = data.CanonicalLink
	b.Publisher = data.Publisher
	b.Sales.CopiesSold = data.CopiesSold
	if len(data.IndustryIdentifiers) > 0 {
		b.IndustryIdentifiers = data.IndustryIdentifiers
	}
	if len(data.Genres) > 0 {
		b.Genres = data.Genres
	}
	result.Publisher.Name = data.Publisher
}

func (e *Engine) researchAuthor(ctx context.Context, req Request, result *Result) {
	data, err := e.authors.Fetch(ctx, req.Author)
	if err != nil {
		slog.Warn("Author lookup failed", "author", req.Author, "error", err)
		result.addError(err.Error())
		return
	}
	if data == nil {
		result.addError(fmt.Sprintf("Wikidata: no author found for %q", req.Author))
		return
	}

	a := &result.Author
	a.BirthDate = data.BirthDate
	a.BirthPlace = data.BirthPlace
	a.Biography = data.Biography
	if len(data.Professions) > 0 {
		a.Professions = data.Professions
	}
	if data.ImageURL != nil {
		a.ProfileImage = e.images.Select(ctx, []images.Candidate{{URL: *data.ImageURL, Source: "wikimedia"}}, e.minWidth, e.minHeight)
	}
}

func (e *Engine) researchPublisher(ctx context.Context, result *Result) {
	name := *result.Publisher.Name
	data, err := e.publishers.Fetch(ctx, name)
	if err != nil {
		slog.Warn("Publisher lookup failed", "publisher", name, "error", err)
		result.addError(err.Error())
		return
	}
	if data == nil {
		result.addError(fmt.Sprintf("Wikidata: no publisher found for %q", name))
		return
	}

	p := &result.Publisher
	p.Founded = data.Founded
	p.Headquarters = data.Headquarters
	p.Website = data.Website
	p.Description = data.Description
	if data.LogoURL != nil {
		p.Logo = e.images.Select(ctx, []images.Candidate{{URL: *data.LogoURL, Source: "wikimedia"}}, e.minWidth, e.minHeight)
	}
}

func (e *Engine) scrapeSignals(ctx context.Context, req Request, result *Result) {
	q := scrape.Query{Title: req.Title, Author: req.Author}
	for _, id := range result.Book.IndustryIdentifiers {
		switch id.Type {
		case isbn.TypeISBN13:
			if q.ISBN13 == "" {
				q.ISBN13 = isbn.Normalize(id.Identifier)
			}
		case isbn.TypeISBN10:
			if q.ISBN10 == "" {
				q.ISBN10 = isbn.Normalize(id.Identifier)
			}
		}
	}

	signals, errs := e.scraper.Scrape(ctx, q)
	for _, msg := range errs {
		result.addError(msg)
	}
	if signals == nil {
		return
	}
	applySignals(result, signals)
}

func applySignals(result *Result, s *scrape.Signals) {
	b := &result.Book
	b.Ratings[book.RatingGoodreads] = book.Rating{Score: s.Goodreads.Score, Votes: s.Goodreads.Votes}
	b.Ratings[book.RatingAmazon] = book.Rating{Score: s.Amazon.Score, Votes: s.Amazon.Votes}
	b.Sales.BestSellerRank = s.Amazon.BestSellerRank

	if b.Sales.CopiesSold == nil {
		b.Sales.CopiesSold = s.Goodreads.CopiesSold
	}
	if b.Sales.CopiesSold == nil {
		b.Sales.CopiesSold = s.Amazon.CopiesSold
	}
	if b.Sales.CopiesSold == nil {
		b.Sales.CopiesSold = EstimateCopiesSold(b.Sales.BestSellerRank, s.Amazon.Votes)
	}

	if s.Amazon.CoverURL != "" {
		cover := s.Amazon.CoverURL
		b.SecondaryCoverImage = &cover
	}
}

// Compile-time checks for the default collaborators.
var (
	_ AuthorSource    = (*sources.WikidataAuthor)(nil)
	_ PublisherSource = (*sources.WikidataPublisher)(nil)
	_ ImageSelector   = (*images.Resolver)(nil)
	_ Scraper         = (*scrape.Scraper)(nil)
)
