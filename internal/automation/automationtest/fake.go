// Package automationtest provides an in-memory Browser for tests.
package automationtest

import (
	"context"
	"sync"

	"github.com/lepinkainen/deepresearch/internal/automation"
)

// Response is what a fake page returns for one navigation.
type Response struct {
	Status int
	HTML   string
	Err    error
}

// OK returns a 200 response with html.
func OK(html string) Response {
	return Response{Status: 200, HTML: html}
}

// Status returns an empty response with the given status.
func Status(code int) Response {
	return Response{Status: code}
}

// Browser serves scripted responses per URL. Each navigation to a URL
// consumes the next response; the last one repeats. Unrouted URLs get
// Fallback, which defaults to a 404.
type Browser struct {
	Fallback Response
	// NewPageErr makes NewPage fail.
	NewPageErr error
	// OnNavigate, when set, runs before each navigation returns.
	OnNavigate func(url string)

	mu          sync.Mutex
	routes      map[string][]Response
	served      map[string]int
	navigations []string
	opened      int
	pagesClosed int
	closed      bool
}

var _ automation.Browser = (*Browser)(nil)

// NewBrowser creates an empty fake browser.
func NewBrowser() *Browser {
	return &Browser{
		Fallback: Status(404),
		routes:   make(map[string][]Response),
		served:   make(map[string]int),
	}
}

// Route scripts the responses for url.
func (b *Browser) Route(url string, responses ...Response) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[url] = responses
	return b
}

// NewPage implements automation.Browser.
func (b *Browser) NewPage(ctx context.Context) (automation.Page, error) {
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return &Page{browser: b}, nil
}

// Close implements automation.Browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Navigations lists every URL navigated to, in order.
func (b *Browser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.navigations...)
}

// NavigationCount returns how many times url was navigated to.
func (b *Browser) NavigationCount(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.served[url]
}

// PagesOpened returns how many pages were opened.
func (b *Browser) PagesOpened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// PagesClosed returns how many pages were closed.
func (b *Browser) PagesClosed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pagesClosed
}

func (b *Browser) next(url string) Response {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.navigations = append(b.navigations, url)
	n := b.served[url]
	b.served[url] = n + 1

	responses, ok := b.routes[url]
	if !ok || len(responses) == 0 {
		return b.Fallback
	}
	if n >= len(responses) {
		n = len(responses) - 1
	}
	return responses[n]
}

// Page is a fake tab.
type Page struct {
	browser *Browser

	mu          sync.Mutex
	current     Response
	evaluations []string
	screenshots int
}

var _ automation.Page = (*Page)(nil)

// Navigate implements automation.Page.
func (p *Page) Navigate(ctx context.Context, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp := p.browser.next(url)
	if p.browser.OnNavigate != nil {
		p.browser.OnNavigate(url)
	}

	p.mu.Lock()
	p.current = resp
	p.mu.Unlock()

	if resp.Err != nil {
		return 0, resp.Err
	}
	return resp.Status, nil
}

// Evaluate implements automation.Page.
func (p *Page) Evaluate(_ context.Context, script string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evaluations = append(p.evaluations, script)
	return nil
}

// HTML implements automation.Page.
func (p *Page) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.HTML, nil
}

// Screenshot implements automation.Page.
func (p *Page) Screenshot(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots++
	return []byte("\x89PNG fake"), nil
}

// Close implements automation.Page.
func (p *Page) Close() error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	p.browser.pagesClosed++
	return nil
}

// Evaluations returns the scripts run on this page.
func (p *Page) Evaluations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evaluations...)
}

// Screenshots returns how many screenshots were taken.
func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenshots
}
