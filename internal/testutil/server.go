package testutil

import (
	"bytes"
	"image"
	"image/color"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// NewIPv4Server starts a test server bound to IPv4 loopback to avoid IPv6 listener issues.
func NewIPv4Server(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()

	t.Cleanup(server.Close)
	return server
}

// RedirectClient returns an HTTP client that sends every request to server
// while keeping the original path and query. Handlers can inspect the
// original host through r.Host.
func RedirectClient(server *httptest.Server) *http.Client {
	target, _ := url.Parse(server.URL)
	return &http.Client{
		Transport: &redirectTransport{target: target, next: server.Client().Transport},
	}
}

type redirectTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (rt *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Host = req.URL.Host
	clone.URL.Scheme = rt.target.Scheme
	clone.URL.Host = rt.target.Host
	return rt.next.RoundTrip(clone)
}

// HitCounter wraps a handler and counts how many requests reached it.
type HitCounter struct {
	handler http.Handler
	hits    atomic.Int64
}

// CountHits wraps handler in a HitCounter.
func CountHits(handler http.Handler) *HitCounter {
	return &HitCounter{handler: handler}
}

func (h *HitCounter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hits.Add(1)
	h.handler.ServeHTTP(w, r)
}

// Hits returns the number of requests served so far.
func (h *HitCounter) Hits() int {
	return int(h.hits.Load())
}

// JPEGBytes renders a solid-colour JPEG of the given size.
func JPEGBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := imaging.New(width, height, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, image.Image(img), imaging.JPEG))
	return buf.Bytes()
}
