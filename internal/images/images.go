// Package images picks the best cover image from a set of candidate URLs.
//
// Candidates are grouped into source tiers. Tiers are tried in order and
// the first image meeting the minimum size wins. When nothing meets the
// minimum, the largest image downloaded so far is used.
package images

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/fallback"
	"github.com/lepinkainen/deepresearch/internal/fileutil"
	"github.com/lepinkainen/deepresearch/internal/gate"
	"github.com/lepinkainen/deepresearch/internal/httpclient"
)

const (
	// DefaultMinWidth and DefaultMinHeight are the preferred cover dimensions.
	DefaultMinWidth  = 500
	DefaultMinHeight = 700

	defaultDownloadTimeout = 40 * time.Second
	publicPathPrefix       = "/images/"
)

type (
	Candidate = book.ImageCandidate
	Selected  = book.SelectedImage
)

// Tier is a group of image hosts of equal preference.
type Tier struct {
	Name  string
	Hosts []string
}

// DefaultTiers lists the image sources in order of preference.
var DefaultTiers = []Tier{
	{Name: "openlibrary", Hosts: []string{"openlibrary.org"}},
	{Name: "amazon", Hosts: []string{"amazon.com", "amazon.in", "media-amazon.com"}},
	{Name: "wikimedia", Hosts: []string{"wikimedia.org"}},
	{Name: "googlebooks", Hosts: []string{"books.google.com", "googleusercontent.com"}},
}

// Matches reports whether rawURL is served by one of the tier's hosts.
func (t Tier) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range t.Hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClient sets the download client.
func WithClient(c *httpclient.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithGate makes each download wait for a slot in g.
func WithGate(g *gate.Gate) Option {
	return func(r *Resolver) {
		r.gate = g
	}
}

// WithTiers replaces the tier list.
func WithTiers(tiers []Tier) Option {
	return func(r *Resolver) {
		r.tiers = tiers
	}
}

// Resolver downloads candidate images into a directory and keeps the best one.
type Resolver struct {
	dir    string
	client *httpclient.Client
	gate   *gate.Gate
	tiers  []Tier
}

// New creates a Resolver that stores images in dir.
func New(dir string, opts ...Option) *Resolver {
	r := &Resolver{
		dir:   dir,
		tiers: DefaultTiers,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = httpclient.New(httpclient.WithRetries(1), httpclient.WithTimeout(defaultDownloadTimeout))
	}
	return r
}

// download is one image saved to disk.
type download struct {
	candidate Candidate
	id        string
	path      string
	width     int
	height    int
}

func (d download) area() int {
	return d.width * d.height
}

// Select returns the chosen image, or nil when no candidate could be
// downloaded. Non-positive minimums fall back to the defaults.
func (r *Resolver) Select(ctx context.Context, candidates []Candidate, minWidth, minHeight int) *Selected {
	if len(candidates) == 0 {
		return nil
	}
	if minWidth <= 0 {
		minWidth = DefaultMinWidth
	}
	if minHeight <= 0 {
		minHeight = DefaultMinHeight
	}

	var downloads []download
	chain := make(fallback.Chain[[]Candidate, download], 0, len(r.tiers))
	for _, tier := range r.tiers {
		chain = append(chain, fallback.Strategy[[]Candidate, download]{
			Name: tier.Name,
			Try: func(ctx context.Context, all []Candidate) (download, bool) {
				for _, c := range all {
					if !tier.Matches(c.URL) {
						continue
					}
					d, err := r.fetch(ctx, c)
					if err != nil {
						slog.Debug("Image candidate failed", "url", c.URL, "tier", tier.Name, "error", err)
						continue
					}
					downloads = append(downloads, d)
					if d.width >= minWidth && d.height >= minHeight {
						return d, true
					}
				}
				return download{}, false
			},
		})
	}

	best, tier, ok := chain.First(ctx, candidates)
	if !ok {
		if len(downloads) == 0 {
			slog.Debug("No usable cover image", "candidates", len(candidates))
			return nil
		}
		best = downloads[0]
		for _, d := range downloads[1:] {
			if d.area() > best.area() {
				best = d
			}
		}
		tier = "largest"
	}

	for _, d := range downloads {
		if d.path == best.path {
			continue
		}
		if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
			slog.Debug("Failed to remove unused image", "path", d.path, "error", err)
		}
	}

	slog.Debug("Selected cover image", "url", best.candidate.URL, "tier", tier, "width", best.width, "height", best.height)
	return &Selected{
		URL:      publicPathPrefix + filepath.Base(best.path),
		PublicID: "image-" + best.id,
	}
}

func (r *Resolver) fetch(ctx context.Context, c Candidate) (download, error) {
	var body []byte
	get := func(ctx context.Context) error {
		var err error
		body, err = r.client.GetWithRetries(ctx, c.URL, 1)
		return err
	}

	var err error
	if r.gate != nil {
		err = r.gate.Do(ctx, get)
	} else {
		err = get(ctx)
	}
	if err != nil {
		return download{}, err
	}

	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return download{}, fmt.Errorf("decoding image: %w", err)
	}

	source := c.Source
	if source == "" {
		source = "image"
	}
	id := uuid.NewString()
	path := filepath.Join(r.dir, fmt.Sprintf("%s-%s.jpg", id, fileutil.SanitizeFilename(source)))
	if _, err := fileutil.WriteFileWithOverwrite(path, body, 0o644, true); err != nil {
		return download{}, fmt.Errorf("saving image: %w", err)
	}

	bounds := img.Bounds()
	return download{
		candidate: c,
		id:        id,
		path:      path,
		width:     bounds.Dx(),
		height:    bounds.Dy(),
	}, nil
}
