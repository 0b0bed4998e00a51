// Package scrape reads rating and sales signals from Goodreads and Amazon
// through a headless browser.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/deepresearch/internal/automation"
	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/errors"
	"github.com/lepinkainen/deepresearch/internal/gate"
	"github.com/lepinkainen/deepresearch/internal/isbn"
	"golang.org/x/sync/errgroup"
)

const (
	goodreadsBaseURL = "https://www.goodreads.com"
	amazonBaseURL    = "https://www.amazon.com"
)

// Query identifies the book to look up.
type Query struct {
	Title  string
	Author string
	ISBN10 string
	ISBN13 string
}

// Signals holds everything scraping found. Goodreads and Amazon values are
// kept apart so the caller can apply its own precedence.
type Signals struct {
	Goodreads GoodreadsSignals `json:"goodreads"`
	Amazon    AmazonSignals    `json:"amazon"`
}

// Launcher starts a browser for one scraping run.
type Launcher func(ctx context.Context) (automation.Browser, error)

// Option configures a Scraper.
type Option func(*Scraper)

// WithLauncher sets how the browser is started.
func WithLauncher(l Launcher) Option {
	return func(s *Scraper) {
		if l != nil {
			s.launch = l
		}
	}
}

// WithNavigator sets the navigation retry policy.
func WithNavigator(n *automation.Navigator) Option {
	return func(s *Scraper) {
		if n != nil {
			s.navigator = n
		}
	}
}

// WithGate makes each page visit wait for a slot in g.
func WithGate(g *gate.Gate) Option {
	return func(s *Scraper) {
		s.gate = g
	}
}

// WithCache caches resolved Amazon search links.
func WithCache(c *cache.CacheDB) Option {
	return func(s *Scraper) {
		s.cache = c
	}
}

// WithBaseURLs points the scraper at other hosts.
func WithBaseURLs(goodreads, amazon string) Option {
	return func(s *Scraper) {
		if goodreads != "" {
			s.goodreadsBase = strings.TrimRight(goodreads, "/")
		}
		if amazon != "" {
			s.amazonBase = strings.TrimRight(amazon, "/")
		}
	}
}

// Scraper runs the Goodreads and Amazon tasks for a book.
type Scraper struct {
	launch        Launcher
	navigator     *automation.Navigator
	gate          *gate.Gate
	cache         *cache.CacheDB
	goodreadsBase string
	amazonBase    string
}

// New creates a Scraper. Without WithLauncher it starts a headless Chrome.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		launch: func(ctx context.Context) (automation.Browser, error) {
			return automation.Launch(ctx, automation.Options{Headless: true})
		},
		navigator:     automation.NewNavigator(),
		goodreadsBase: goodreadsBaseURL,
		amazonBase:    amazonBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errorLog collects error strings from concurrent tasks in arrival order.
type errorLog struct {
	mu   sync.Mutex
	errs []string
}

func (l *errorLog) add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("Scraping problem", "error", msg)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

func (l *errorLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errs...)
}

// taskCrash holds the first panic of a scraping goroutine so that raise can
// panic again on the caller's goroutine, where the request's recover runs.
type taskCrash struct {
	mu  sync.Mutex
	err *errors.CatastrophicError
}

func (c *taskCrash) capture() {
	r := recover()
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = errors.NewCatastrophicError(r, debug.Stack())
	}
}

func (c *taskCrash) raise() {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		panic(err)
	}
}

// Scrape visits Goodreads and Amazon concurrently and returns what it
// found together with any error strings. It never returns nil signals.
// A panic in either site task is raised again on the calling goroutine as
// an *errors.CatastrophicError once the browser is closed.
func (s *Scraper) Scrape(ctx context.Context, q Query) (*Signals, []string) {
	signals := &Signals{}
	var log errorLog

	if q.ISBN10 == "" && q.ISBN13 != "" {
		q.ISBN10 = isbn.To10(q.ISBN13)
	}

	browser, err := s.launch(ctx)
	if err != nil {
		log.add("Browser error: %v", err)
		return signals, log.list()
	}
	defer func() {
		if err := browser.Close(); err != nil {
			slog.Warn("Failed to close browser", "error", err)
		}
	}()

	var (
		g           errgroup.Group
		crash       taskCrash
		amazonFound bool
	)
	g.Go(func() error {
		defer crash.capture()
		signals.Goodreads = s.goodreads(ctx, browser, q, &log)
		return nil
	})
	g.Go(func() error {
		defer crash.capture()
		signals.Amazon, amazonFound = s.amazonByISBN(ctx, browser, q)
		return nil
	})
	_ = g.Wait()
	crash.raise()

	if !amazonFound {
		if am, ok := s.amazonBySearch(ctx, browser, q, &log); ok {
			signals.Amazon = am
		}
	}

	return signals, log.list()
}

// visit opens a page, navigates to target and parses the result while
// holding a gate slot. A nil document with a nil error means the page
// does not exist.
func (s *Scraper) visit(ctx context.Context, browser automation.Browser, target string) (*goquery.Document, error) {
	var doc *goquery.Document
	task := func(ctx context.Context) error {
		page, err := browser.NewPage(ctx)
		if err != nil {
			return fmt.Errorf("opening page: %w", err)
		}
		defer func() {
			if err := page.Close(); err != nil {
				slog.Warn("Failed to close page", "error", err)
			}
		}()

		outcome, err := s.navigator.Navigate(ctx, page, target)
		if err != nil {
			return err
		}
		if outcome == automation.NotFound {
			return nil
		}

		html, err := page.HTML(ctx)
		if err != nil {
			return fmt.Errorf("failed to extract data from %s: %w", target, err)
		}
		doc, err = goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return fmt.Errorf("failed to extract data from %s: %w", target, err)
		}
		return nil
	}

	if s.gate == nil {
		return doc, task(ctx)
	}
	err := s.gate.Do(ctx, task)
	return doc, err
}

func (s *Scraper) goodreadsURL(q Query) string {
	term := q.ISBN13
	if term == "" {
		term = q.ISBN10
	}
	if term == "" {
		term = q.Title + " " + q.Author
	}
	return s.goodreadsBase + "/search?q=" + url.QueryEscape(term)
}

func (s *Scraper) goodreads(ctx context.Context, browser automation.Browser, q Query, log *errorLog) GoodreadsSignals {
	target := s.goodreadsURL(q)
	slog.Debug("Scraping Goodreads", "url", target)

	doc, err := s.visit(ctx, browser, target)
	if err != nil {
		log.add("Goodreads: %v", err)
		return GoodreadsSignals{}
	}
	if doc == nil {
		log.add("Goodreads: page not found: %s", target)
		return GoodreadsSignals{}
	}

	signals := ParseGoodreads(ctx, doc)
	slog.Info("Extracted Goodreads data", "url", target, "score", deref(signals.Score), "votes", deref(signals.Votes), "copies_sold", deref(signals.CopiesSold))
	return signals
}

// amazonByISBN tries the product page for the ISBN-10. Failures are left
// to the search fallback to report.
func (s *Scraper) amazonByISBN(ctx context.Context, browser automation.Browser, q Query) (AmazonSignals, bool) {
	if q.ISBN10 == "" {
		return AmazonSignals{}, false
	}
	target := s.amazonBase + "/dp/" + q.ISBN10
	slog.Debug("Scraping Amazon", "url", target)

	doc, err := s.visit(ctx, browser, target)
	if err != nil {
		slog.Warn("Amazon ISBN lookup failed", "url", target, "error", err)
		return AmazonSignals{}, false
	}
	if doc == nil {
		slog.Warn("Amazon ISBN page not found", "url", target)
		return AmazonSignals{}, false
	}
	if IsBotChallenge(doc) {
		slog.Warn("Amazon served a bot challenge", "url", target)
		return AmazonSignals{}, false
	}

	return s.extractAmazon(ctx, target, doc), true
}

// amazonSearchLink is the cached result of a keyword search.
type amazonSearchLink struct {
	Title    string `json:"title"`
	BookLink string `json:"bookLink"`
}

func (s *Scraper) amazonBySearch(ctx context.Context, browser automation.Browser, q Query, log *errorLog) (AmazonSignals, bool) {
	searchURL := s.amazonBase + "/s?k=" + url.QueryEscape(q.Title+" "+q.Author)
	key := cache.NewKey(cache.SourceAmazonSearch, q.Title, q.Author)

	var searchFailed bool
	result, fromCache, _ := cache.GetOrFetchWithPolicy(ctx, s.cache, key, q.Title, func(ctx context.Context) (*amazonSearchLink, error) {
		doc, err := s.visit(ctx, browser, searchURL)
		if err != nil {
			searchFailed = true
			log.add("Amazon: search failed: %v", err)
			return &amazonSearchLink{Title: q.Title}, nil
		}
		if doc == nil {
			searchFailed = true
			log.add("Amazon: search page not found: %s", searchURL)
			return &amazonSearchLink{Title: q.Title}, nil
		}
		if IsBotChallenge(doc) {
			searchFailed = true
			log.add("Amazon: bot challenge on Amazon search: %s", searchURL)
			return &amazonSearchLink{Title: q.Title}, nil
		}
		return &amazonSearchLink{Title: q.Title, BookLink: FirstProductLink(doc)}, nil
	}, func(r *amazonSearchLink) bool { return r != nil && r.BookLink != "" })
	if fromCache {
		slog.Info("Using cached Amazon search result", "url", searchURL)
	}

	if result == nil || result.BookLink == "" {
		if !searchFailed {
			log.add("Amazon: no book link found on Amazon search: %s", searchURL)
		}
		return AmazonSignals{}, false
	}

	target := result.BookLink
	if strings.HasPrefix(target, "/") {
		target = s.amazonBase + target
	}
	slog.Debug("Navigating to Amazon book page", "url", target)

	doc, err := s.visit(ctx, browser, target)
	if err != nil {
		log.add("Amazon: %v", err)
		return AmazonSignals{}, false
	}
	if doc == nil {
		log.add("Amazon: page not found: %s", target)
		return AmazonSignals{}, false
	}
	if IsBotChallenge(doc) {
		log.add("Amazon: bot challenge at %s", target)
		return AmazonSignals{}, false
	}

	slog.Info("Amazon fallback successful", "url", target)
	return s.extractAmazon(ctx, target, doc), true
}

func (s *Scraper) extractAmazon(ctx context.Context, target string, doc *goquery.Document) AmazonSignals {
	signals := ParseAmazon(ctx, doc)
	slog.Info("Extracted Amazon data", "url", target,
		"score", deref(signals.Score),
		"votes", deref(signals.Votes),
		"best_seller_rank", deref(signals.BestSellerRank),
		"copies_sold", deref(signals.CopiesSold),
		"cover", signals.CoverURL,
	)
	return signals
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
