// Package automation drives a headless Chrome for pages that need a real
// browser to render.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// Browser hands out pages. Close releases every page and the browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url and reports the main document's HTTP status.
	Navigate(ctx context.Context, url string) (int, error)
	// Evaluate runs script in the page for its side effects.
	Evaluate(ctx context.Context, script string) error
	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

const (
	defaultNavigationTimeout = 10 * time.Second
	defaultViewportWidth     = 1280
	defaultViewportHeight    = 720
	viewportJitter           = 100
)

// DefaultUserAgents are rotated per page.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
}

// Options holds browser launch configuration.
type Options struct {
	Headless          bool
	NavigationTimeout time.Duration
	UserAgents        []string
}

var (
	chromedpExecAllocator = chromedp.NewExecAllocator
	chromedpContext       = chromedp.NewContext
	chromedpRunner        = chromedp.Run
	chromedpRunResponse   = chromedp.RunResponse
)

func buildExecAllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-webgl", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("mute-audio", true),
	}
}

// ChromeBrowser is a Browser backed by chromedp.
type ChromeBrowser struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

var _ Browser = (*ChromeBrowser)(nil)

// Launch starts a browser process. The browser outlives ctx only until
// Close is called or ctx is cancelled.
func Launch(ctx context.Context, opts Options) (*ChromeBrowser, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaultNavigationTimeout
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents
	}

	allocCtx, cancelAllocator := chromedpExecAllocator(ctx, buildExecAllocatorOptions(opts)...)
	browserCtx, cancelBrowser := chromedpContext(allocCtx)

	// The first Run on a fresh context starts the process.
	if err := chromedpRunner(browserCtx); err != nil {
		cancelBrowser()
		cancelAllocator()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	slog.Debug("Browser launched", "headless", opts.Headless)
	return &ChromeBrowser{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAllocator()
		},
		opts: opts,
	}, nil
}

// NewPage opens a tab with a randomized user agent and viewport.
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedpContext(b.ctx)

	ua := b.opts.UserAgents[rand.IntN(len(b.opts.UserAgents))]
	width := defaultViewportWidth + rand.IntN(viewportJitter)
	height := defaultViewportHeight + rand.IntN(viewportJitter)

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedpRunner(tabCtx,
		emulation.SetUserAgentOverride(ua),
		chromedp.EmulateViewport(int64(width), int64(height)),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &chromePage{ctx: tabCtx, cancel: cancel, timeout: b.opts.NavigationTimeout}, nil
}

// Close shuts the browser down.
func (b *ChromeBrowser) Close() error {
	b.cancel()
	slog.Debug("Browser closed")
	return nil
}

type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := fn(runCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) (int, error) {
	var status int
	err := p.run(ctx, p.timeout, func(ctx context.Context) error {
		resp, err := chromedpRunResponse(ctx, chromedp.Navigate(url))
		if err != nil {
			return err
		}
		if resp != nil {
			status = int(resp.Status)
		}
		return chromedpRunner(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
	})
	return status, err
}

func (p *chromePage) Evaluate(ctx context.Context, script string) error {
	return p.run(ctx, p.timeout, func(ctx context.Context) error {
		var done bool
		wrapped := "(function() {\n" + script + "\nreturn true;\n})()"
		return chromedpRunner(ctx, chromedp.Evaluate(wrapped, &done))
	})
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.timeout, func(ctx context.Context) error {
		return chromedpRunner(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	})
	return html, err
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, p.timeout, func(ctx context.Context) error {
		return chromedpRunner(ctx, chromedp.FullScreenshot(&buf, 100))
	})
	return buf, err
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
