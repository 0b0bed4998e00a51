package automation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lepinkainen/deepresearch/internal/backoff"
	"github.com/lepinkainen/deepresearch/internal/errors"
	"github.com/lepinkainen/deepresearch/internal/fileutil"
)

// Outcome is the result class of a navigation.
type Outcome int

const (
	Success Outcome = iota
	RateLimited
	NotFound
	TransientError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RateLimited:
		return "rate-limited"
	case NotFound:
		return "not-found"
	case TransientError:
		return "transient-error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const (
	defaultNavigationRetries = 2
	defaultRateLimitBackoff  = 10 * time.Second
	defaultErrorBackoff      = 5 * time.Second
	defaultSettleDelay       = 2 * time.Second
)

// humanizeScript scrolls a random distance and moves the pointer.
const humanizeScript = `
window.scrollTo(0, Math.floor(Math.random() * 400) + 100);
document.dispatchEvent(new MouseEvent('mousemove', {
	clientX: Math.floor(Math.random() * window.innerWidth),
	clientY: Math.floor(Math.random() * window.innerHeight),
	bubbles: true
}));
`

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithRetries sets how many times a navigation is retried after the first try.
func WithRetries(n int) NavigatorOption {
	return func(nav *Navigator) {
		if n >= 0 {
			nav.retries = n
		}
	}
}

// WithScreenshotDir sets where failure screenshots are written. Empty
// disables them.
func WithScreenshotDir(dir string) NavigatorOption {
	return func(nav *Navigator) {
		nav.screenshotDir = dir
	}
}

// WithSleeper replaces the wait used for backoff and settling.
func WithSleeper(s backoff.Sleeper) NavigatorOption {
	return func(nav *Navigator) {
		if s != nil {
			nav.sleep = s
		}
	}
}

// Navigator loads pages with status-aware retries.
//
// A 404 ends navigation at once. A 429 is retried after
// rateLimitBackoff × attempt and reported as a RateLimitError when retries
// run out. Load errors take a screenshot and are retried after
// errorBackoff × attempt. A successful load runs a short scroll and
// pointer script and then waits for the page to settle.
type Navigator struct {
	retries          int
	rateLimitBackoff time.Duration
	errorBackoff     time.Duration
	settleDelay      time.Duration
	screenshotDir    string
	sleep            backoff.Sleeper
}

// NewNavigator creates a Navigator with the default retry policy.
func NewNavigator(opts ...NavigatorOption) *Navigator {
	nav := &Navigator{
		retries:          defaultNavigationRetries,
		rateLimitBackoff: defaultRateLimitBackoff,
		errorBackoff:     defaultErrorBackoff,
		settleDelay:      defaultSettleDelay,
		sleep:            backoff.Sleep,
	}
	for _, opt := range opts {
		opt(nav)
	}
	return nav
}

// Retries returns the configured retry count.
func (n *Navigator) Retries() int {
	return n.retries
}

// Navigate loads url in page. The error is non-nil for RateLimited and
// TransientError outcomes.
func (n *Navigator) Navigate(ctx context.Context, page Page, url string) (Outcome, error) {
	attempts := n.retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := page.Navigate(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return TransientError, fmt.Errorf("failed to navigate to %s: %w", url, ctx.Err())
			}
			lastErr = err
			slog.Warn("Navigation failed", "url", url, "attempt", attempt, "error", err)
			n.screenshot(ctx, page)

			if attempt == attempts {
				break
			}
			if err := n.sleep(ctx, backoff.Linear(n.errorBackoff, attempt)); err != nil {
				return TransientError, fmt.Errorf("failed to navigate to %s: %w", url, err)
			}
			continue
		}

		switch status {
		case http.StatusNotFound:
			slog.Debug("Page not found", "url", url)
			return NotFound, nil

		case http.StatusTooManyRequests:
			slog.Warn("Rate limited", "url", url, "attempt", attempt)
			if attempt == attempts {
				return RateLimited, errors.NewRateLimitErrorWithAttempts("rate limited by "+url, attempts)
			}
			if err := n.sleep(ctx, backoff.Linear(n.rateLimitBackoff, attempt)); err != nil {
				return TransientError, fmt.Errorf("failed to navigate to %s: %w", url, err)
			}
			continue
		}

		if status >= 400 {
			slog.Debug("Page loaded with error status", "url", url, "status", status)
		}

		if err := page.Evaluate(ctx, humanizeScript); err != nil {
			slog.Debug("Page interaction script failed", "url", url, "error", err)
		}
		if err := n.sleep(ctx, n.settleDelay); err != nil {
			return TransientError, fmt.Errorf("failed to navigate to %s: %w", url, err)
		}
		return Success, nil
	}

	return TransientError, fmt.Errorf("failed to navigate to %s: %w", url, lastErr)
}

// screenshot saves the current page for later inspection. Failures are
// only logged.
func (n *Navigator) screenshot(ctx context.Context, page Page) {
	if n.screenshotDir == "" {
		return
	}
	buf, err := page.Screenshot(ctx)
	if err != nil {
		slog.Debug("Failed to capture error screenshot", "error", err)
		return
	}
	path := filepath.Join(n.screenshotDir, fmt.Sprintf("error-%s.png", uuid.NewString()))
	if _, err := fileutil.WriteFileWithOverwrite(path, buf, 0o644, true); err != nil {
		slog.Debug("Failed to save error screenshot", "path", path, "error", err)
		return
	}
	slog.Info("Saved error screenshot", "path", path)
}
