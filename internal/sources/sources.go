// Package sources implements the catalog and knowledge-graph adapters.
//
// Every adapter checks the cache first, issues its requests through the
// retrying client while holding a gate slot, and writes successful
// results back to the cache. A nil result with a nil error means the
// source had no match.
package sources

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lepinkainen/deepresearch/internal/backoff"
	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/gate"
	"github.com/lepinkainen/deepresearch/internal/httpclient"
	"github.com/lepinkainen/deepresearch/internal/ratelimit"
)

// Option configures an adapter.
type Option func(*base)

// WithClient sets the request client.
func WithClient(c *httpclient.Client) Option {
	return func(b *base) {
		if c != nil {
			b.client = c
		}
	}
}

// WithCache sets the response cache. Without one every call goes out.
func WithCache(c *cache.CacheDB) Option {
	return func(b *base) {
		b.cache = c
	}
}

// WithGate makes outbound calls wait for a slot in g.
func WithGate(g *gate.Gate) Option {
	return func(b *base) {
		b.gate = g
	}
}

// WithBaseURL points the adapter at a different API root.
func WithBaseURL(u string) Option {
	return func(b *base) {
		if u != "" {
			b.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithSleeper replaces the politeness delay sleep.
func WithSleeper(s backoff.Sleeper) Option {
	return func(b *base) {
		if s != nil {
			b.sleep = s
		}
	}
}

// WithAPIKey sets an API key for sources that accept one.
func WithAPIKey(key string) Option {
	return func(b *base) {
		b.apiKey = key
	}
}

type base struct {
	client  *httpclient.Client
	cache   *cache.CacheDB
	gate    *gate.Gate
	baseURL string
	apiKey  string
	sleep   backoff.Sleeper
}

func newBase(defaultURL, limiterName string, requestsPerSecond float64, opts []Option) base {
	b := base{
		baseURL: defaultURL,
		sleep:   backoff.Sleep,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.client == nil {
		b.client = httpclient.New(httpclient.WithLimiter(ratelimit.Shared(limiterName, requestsPerSecond)))
	}
	return b
}

// admit runs fn while holding a gate slot.
func (b *base) admit(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.gate == nil {
		return fn(ctx)
	}
	return b.gate.Do(ctx, fn)
}

// cachedRecord is the cached form of a catalog result. Title is the
// requested title and is what cache reads validate against.
type cachedRecord struct {
	Title string               `json:"title"`
	Data  *book.EnrichmentData `json:"data"`
}

func hasData(r *cachedRecord) bool {
	return r != nil && r.Data != nil
}

var (
	yearPattern     = regexp.MustCompile(`\d{4}`)
	datePattern     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	promoPattern    = regexp.MustCompile(`[*_].*?[*_]`)
	copiesPattern   = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*)\s*(?:copies\s*sold|circulation)`)
	shortStoryWords = "short stor"
)

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func firstYear(s string) *int {
	m := yearPattern.FindString(s)
	if m == "" {
		return nil
	}
	year, err := strconv.Atoi(m)
	if err != nil || year == 0 {
		return nil
	}
	return &year
}

func parseCount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func mentionsShortStories(text string) bool {
	return strings.Contains(strings.ToLower(text), shortStoryWords)
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// extractDescription handles fields that are either a plain string or an
// object with a "value" key.
func extractDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}
	return ""
}
