package research

import (
	"context"
	"sync"

	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/images"
	"github.com/lepinkainen/deepresearch/internal/scrape"
)

type fakeCatalog struct {
	name     string
	priority int
	data     *book.EnrichmentData
	err      error
	calls    int
}

func (f *fakeCatalog) Name() string  { return f.name }
func (f *fakeCatalog) Priority() int { return f.priority }

func (f *fakeCatalog) Fetch(context.Context, string, string) (*book.EnrichmentData, error) {
	f.calls++
	return f.data, f.err
}

type fakeAuthors struct {
	data   *book.AuthorData
	err    error
	panics any
	names  []string
}

func (f *fakeAuthors) Fetch(_ context.Context, name string) (*book.AuthorData, error) {
	f.names = append(f.names, name)
	if f.panics != nil {
		panic(f.panics)
	}
	return f.data, f.err
}

type fakePublishers struct {
	data  *book.PublisherData
	err   error
	names []string
}

func (f *fakePublishers) Fetch(_ context.Context, name string) (*book.PublisherData, error) {
	f.names = append(f.names, name)
	return f.data, f.err
}

// fakeImages selects the first candidate whose URL is in accept.
type fakeImages struct {
	accept map[string]bool

	mu    sync.Mutex
	calls [][]images.Candidate
}

func (f *fakeImages) Select(_ context.Context, candidates []images.Candidate, _, _ int) *images.Selected {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, candidates)
	for _, c := range candidates {
		if f.accept[c.URL] {
			return &images.Selected{URL: "/images/" + c.Source + ".jpg", PublicID: "image-" + c.Source}
		}
	}
	return nil
}

type fakeScraper struct {
	signals *scrape.Signals
	errs    []string
	queries []scrape.Query
}

func (f *fakeScraper) Scrape(_ context.Context, q scrape.Query) (*scrape.Signals, []string) {
	f.queries = append(f.queries, q)
	return f.signals, f.errs
}

// newFakeEngine wires an engine with empty fakes that the caller can
// replace through opts.
func newFakeEngine(opts ...Option) *Engine {
	base := []Option{
		WithCatalogs(),
		WithAuthorSource(&fakeAuthors{data: &book.AuthorData{Name: "x"}}),
		WithPublisherSource(&fakePublishers{data: &book.PublisherData{}}),
		WithImages(&fakeImages{}),
		WithScraper(&fakeScraper{signals: &scrape.Signals{}}),
	}
	return New(append(base, opts...)...)
}
