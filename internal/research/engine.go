// Package research orchestrates a deep research run: catalog lookups,
// known-title corrections, image selection, knowledge-graph lookups and
// browser scraping, merged into one Result.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/crashlog"
	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/errors"
	"github.com/lepinkainen/deepresearch/internal/gate"
	"github.com/lepinkainen/deepresearch/internal/images"
	"github.com/lepinkainen/deepresearch/internal/overrides"
	"github.com/lepinkainen/deepresearch/internal/scrape"
	"github.com/lepinkainen/deepresearch/internal/sources"
)

// AuthorSource looks up an author by name.
type AuthorSource interface {
	Fetch(ctx context.Context, name string) (*book.AuthorData, error)
}

// PublisherSource looks up a publisher by name.
type PublisherSource interface {
	Fetch(ctx context.Context, name string) (*book.PublisherData, error)
}

// ImageSelector picks the best image among candidates, or nil.
type ImageSelector interface {
	Select(ctx context.Context, candidates []images.Candidate, minWidth, minHeight int) *images.Selected
}

// Scraper collects rating and sales signals for a book.
type Scraper interface {
	Scrape(ctx context.Context, q scrape.Query) (*scrape.Signals, []string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the response cache used by the default adapters.
func WithCache(c *cache.CacheDB) Option {
	return func(e *Engine) { e.cache = c }
}

// WithGate sets the gate shared by the default adapters, images and scraper.
func WithGate(g *gate.Gate) Option {
	return func(e *Engine) {
		if g != nil {
			e.gate = g
		}
	}
}

// WithCatalogs replaces the catalog adapters. They run in the given order
// and merge by priority.
func WithCatalogs(catalogs ...book.Enricher) Option {
	return func(e *Engine) { e.catalogs = append([]book.Enricher{}, catalogs...) }
}

// WithOverrides sets the known-title provider.
func WithOverrides(p overrides.Provider) Option {
	return func(e *Engine) {
		if p != nil {
			e.overrides = p
		}
	}
}

// WithAuthorSource replaces the author lookup.
func WithAuthorSource(s AuthorSource) Option {
	return func(e *Engine) { e.authors = s }
}

// WithPublisherSource replaces the publisher lookup.
func WithPublisherSource(s PublisherSource) Option {
	return func(e *Engine) { e.publishers = s }
}

// WithImages replaces the image selector.
func WithImages(s ImageSelector) Option {
	return func(e *Engine) { e.images = s }
}

// WithImageMinimums sets the preferred image dimensions.
func WithImageMinimums(width, height int) Option {
	return func(e *Engine) {
		e.minWidth = width
		e.minHeight = height
	}
}

// WithScraper replaces the browser scraper.
func WithScraper(s Scraper) Option {
	return func(e *Engine) { e.scraper = s }
}

// WithScrapingDefault sets whether requests without UseScraping scrape.
func WithScrapingDefault(enabled bool) Option {
	return func(e *Engine) { e.scrapeByDefault = enabled }
}

// WithCrashLog sets where recovered panics are recorded.
func WithCrashLog(l *crashlog.Logger) Option {
	return func(e *Engine) { e.crashLog = l }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine runs deep research requests. It is safe for concurrent use as
// long as its collaborators are.
type Engine struct {
	cache           *cache.CacheDB
	gate            *gate.Gate
	catalogs        []book.Enricher
	overrides       overrides.Provider
	authors         AuthorSource
	publishers      PublisherSource
	images          ImageSelector
	scraper         Scraper
	crashLog        *crashlog.Logger
	observer        Observer
	merger          book.Merger
	minWidth        int
	minHeight       int
	scrapeByDefault bool
}

// New creates an Engine. Collaborators that are not set through options
// are built from the production adapters sharing one gate of size 2.
func New(opts ...Option) *Engine {
	e := &Engine{
		gate:            gate.New(gate.DefaultSize),
		merger:          book.NewPriorityMerger(),
		minWidth:        images.DefaultMinWidth,
		minHeight:       images.DefaultMinHeight,
		scrapeByDefault: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.overrides == nil {
		e.overrides = overrides.Default()
	}
	srcOpts := []sources.Option{sources.WithCache(e.cache), sources.WithGate(e.gate)}
	if e.catalogs == nil {
		e.catalogs = []book.Enricher{
			sources.NewGoogleBooks(srcOpts...),
			sources.NewOpenLibrary(e.overrides, srcOpts...),
		}
	}
	if e.authors == nil {
		e.authors = sources.NewWikidataAuthor(srcOpts...)
	}
	if e.publishers == nil {
		e.publishers = sources.NewWikidataPublisher(srcOpts...)
	}
	if e.images == nil {
		e.images = images.New(defaultImageDir, images.WithGate(e.gate))
	}
	if e.scraper == nil {
		e.scraper = scrape.New(scrape.WithGate(e.gate), scrape.WithCache(e.cache))
	}
	return e
}

const defaultImageDir = "./public/images"

// DeepResearch enriches req. The only error it returns is
// ErrInvalidRequest; every other failure is recorded in Result.Errors.
//
// The pipeline runs in its own goroutine. A panic inside it is recovered,
// written to the crash log and reported as an error entry, and the
// partially populated result is returned.
func (e *Engine) DeepResearch(ctx context.Context, req Request) (*Result, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if req.Author == "" {
		return nil, fmt.Errorf("%w: author is required", ErrInvalidRequest)
	}

	result := newResult(req)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer e.recoverInto(result, req)
		e.run(ctx, req, result)
	}()
	<-done

	slog.Info("Deep research finished", "title", req.Title, "author", req.Author, "errors", len(result.Errors))
	return result, nil
}

func (e *Engine) recoverInto(result *Result, req Request) {
	r := recover()
	if r == nil {
		return
	}
	// Panics re-raised from worker goroutines already carry their own stack.
	crash, ok := r.(*errors.CatastrophicError)
	if !ok {
		crash = errors.NewCatastrophicError(r, debug.Stack())
	}
	slog.Error("Deep research panicked", "title", req.Title, "author", req.Author, "error", crash)
	if err := e.crashLog.Record("deep research", crash.Value, crash.Stack); err != nil {
		slog.Warn("Failed to write crash log", "path", e.crashLog.Path(), "error", err)
	}
	result.addError(crash.Error())
}

func (e *Engine) useScraping(req Request) bool {
	if req.UseScraping != nil {
		return *req.UseScraping
	}
	return e.scrapeByDefault
}

func (e *Engine) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

// stage runs fn and reports it. Errors added by fn mark the stage failed.
func (e *Engine) stage(name string, result *Result, fn func()) {
	before := len(result.Errors)
	e.emit(Event{Kind: StageStarted, Stage: name})
	fn()
	if added := result.Errors[before:]; len(added) > 0 {
		e.emit(Event{Kind: StageFailed, Stage: name, Errors: append([]string(nil), added...)})
		return
	}
	e.emit(Event{Kind: StageFinished, Stage: name})
}

func (e *Engine) skip(name string) {
	e.emit(Event{Kind: StageSkipped, Stage: name})
}
