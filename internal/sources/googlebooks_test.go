package sources

import (
	"context"
	"net/http"
	"testing"

	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/gate"
	"github.com/lepinkainen/deepresearch/internal/httpclient"
	"github.com/lepinkainen/deepresearch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func googleVolume() map[string]any {
	return map[string]any{
		"totalItems": 1,
		"items": []any{
			map[string]any{
				"volumeInfo": map[string]any{
					"title":               "After the Quake",
					"subtitle":            "Stories",
					"publisher":           "Vintage",
					"publishedDate":       "2003-08-12",
					"description":         "Six short stories set after the Kobe earthquake. _Now in paperback_",
					"pageCount":           181,
					"categories":          []string{"Fiction", "fiction", "Literary"},
					"language":            "en",
					"maturityRating":      "NOT_MATURE",
					"canonicalVolumeLink": "https://books.google.com/books/about/After_the_Quake.html",
					"industryIdentifiers": []any{
						map[string]string{"type": "ISBN_10", "identifier": "0375713271"},
						map[string]string{"type": "ISBN_13", "identifier": "9780375713279"},
						map[string]string{"type": "OTHER", "identifier": "UOM:39015056273838"},
					},
					"imageLinks": map[string]string{
						"thumbnail": "http://books.google.com/books/content?id=x&printsec=frontcover&img=1&zoom=5",
					},
				},
			},
		},
	}
}

func TestGoogleBooksShapesVolume(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		assert.Equal(t, "After the Quake Haruki Murakami", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("maxResults"))
		writeJSON(t, w, googleVolume())
	}))

	gb := NewGoogleBooks(WithClient(newTestClient(server)), WithBaseURL(server.URL))
	data, err := gb.Fetch(context.Background(), "After the Quake", "Haruki Murakami")
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, "Stories", *data.Subtitle)
	assert.Equal(t, "Vintage", *data.Publisher)
	assert.Equal(t, 2003, *data.PublishedYear)
	assert.Equal(t, 181, *data.Pages)
	assert.Equal(t, "en", *data.Language)
	assert.Equal(t, "NOT_MATURE", *data.MaturityRating)
	assert.Equal(t, "Six short stories set after the Kobe earthquake.", *data.Description)
	assert.Equal(t, []string{"Fiction", "Literary", book.ShortStoriesGenre}, data.Genres)
	assert.Nil(t, data.BookType)

	assert.Equal(t, []book.Identifier{
		{Type: "ISBN_10", Identifier: "0375713271"},
		{Type: "ISBN_13", Identifier: "9780375713279"},
	}, data.IndustryIdentifiers)

	require.Len(t, data.CoverCandidates, 1)
	assert.Equal(t, "https://books.google.com/books/content?id=x&printsec=frontcover&img=1&zoom=1", data.CoverCandidates[0].URL)
	assert.Equal(t, "googlebooks", data.CoverCandidates[0].Source)
}

func TestGoogleBooksCapsGenresAndDescription(t *testing.T) {
	categories := make([]string, 0, 15)
	for _, c := range "ABCDEFGHIJKLMNO" {
		categories = append(categories, string(c))
	}
	long := make([]rune, 2500)
	for i := range long {
		long[i] = 'x'
	}

	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"items": []any{map[string]any{"volumeInfo": map[string]any{
				"categories":  categories,
				"description": string(long),
			}}},
		})
	}))

	gb := NewGoogleBooks(WithClient(newTestClient(server)), WithBaseURL(server.URL))
	data, err := gb.Fetch(context.Background(), "Long", "Writer")
	require.NoError(t, err)

	assert.Len(t, data.Genres, 10)
	assert.Len(t, *data.Description, 2000)
	assert.Nil(t, data.PublishedYear)
	assert.Empty(t, data.CoverCandidates)
}

func TestGoogleBooksNoItems(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"totalItems": 0})
	}))

	gb := NewGoogleBooks(WithClient(newTestClient(server)), WithBaseURL(server.URL))
	data, err := gb.Fetch(context.Background(), "Nothing", "Nobody")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGoogleBooksCachesMatches(t *testing.T) {
	counter := testutil.CountHits(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, googleVolume())
	}))
	server := testutil.NewIPv4Server(t, counter)

	gb := NewGoogleBooks(
		WithClient(newTestClient(server)),
		WithBaseURL(server.URL),
		WithCache(newTestCache(t)),
	)

	first, err := gb.Fetch(context.Background(), "After the Quake", "Haruki Murakami")
	require.NoError(t, err)
	second, err := gb.Fetch(context.Background(), "After the Quake", "Haruki Murakami")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counter.Hits())
}

func TestGoogleBooksDoesNotCacheMisses(t *testing.T) {
	counter := testutil.CountHits(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"totalItems": 0})
	}))
	server := testutil.NewIPv4Server(t, counter)

	gb := NewGoogleBooks(
		WithClient(newTestClient(server)),
		WithBaseURL(server.URL),
		WithCache(newTestCache(t)),
	)

	for range 2 {
		data, err := gb.Fetch(context.Background(), "Nothing", "Nobody")
		require.NoError(t, err)
		assert.Nil(t, data)
	}
	assert.Equal(t, 2, counter.Hits())
}

func TestGoogleBooksSendsAPIKey(t *testing.T) {
	var gotKey string
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		writeJSON(t, w, map[string]any{})
	}))

	gb := NewGoogleBooks(WithClient(newTestClient(server)), WithBaseURL(server.URL), WithAPIKey("secret"))
	_, err := gb.Fetch(context.Background(), "Any", "One")
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
}

func TestGoogleBooksServerError(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	gb := NewGoogleBooks(
		WithClient(newTestClient(server, httpclient.WithRetries(1))),
		WithBaseURL(server.URL),
	)
	data, err := gb.Fetch(context.Background(), "Any", "One")
	require.Error(t, err)
	assert.Nil(t, data)
	assert.Contains(t, err.Error(), "failed to fetch data from Google Books API")
}

func TestGoogleBooksHoldsGateSlot(t *testing.T) {
	g := gate.New(1)
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, 1, g.InFlight())
		writeJSON(t, w, googleVolume())
	}))

	gb := NewGoogleBooks(WithClient(newTestClient(server)), WithBaseURL(server.URL), WithGate(g))
	_, err := gb.Fetch(context.Background(), "After the Quake", "Haruki Murakami")
	require.NoError(t, err)
	assert.Equal(t, 0, g.InFlight())
	assert.Equal(t, 1, g.Peak())
}
