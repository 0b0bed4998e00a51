package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lepinkainen/deepresearch/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
}

func setupTestCache(t *testing.T, opts ...Option) *CacheDB {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	env := testutil.NewTestEnv(t)
	c, err := NewCacheDB(filepath.Join(env.RootDir(), "test_cache.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func withGlobalCache(t *testing.T, c *CacheDB) {
	t.Helper()

	oldCache := globalCache
	globalCache = c
	globalCacheOnce = sync.Once{}
	globalCacheOnce.Do(func() {})

	t.Cleanup(func() {
		globalCache = oldCache
		globalCacheOnce = sync.Once{}
	})
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "title and author",
			key:  NewKey(SourceGoogleBooks, "Kafka on the Shore", "Haruki Murakami"),
			want: "google-books-kafka-on-the-shore-haruki-murakami",
		},
		{
			name: "collapses whitespace runs",
			key:  NewKey(SourceAmazonSearch, "After  the\tQuake", "Haruki Murakami"),
			want: "amazon-search-after-the-quake-haruki-murakami",
		},
		{
			name: "single part",
			key:  NewKey(SourceWikidataPublisher, "Vintage Books"),
			want: "wikidata-publisher-vintage-books",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
		})
	}
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource(" Google-Books ")
	require.NoError(t, err)
	assert.Equal(t, SourceGoogleBooks, s)

	_, err = ParseSource("tmdb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amazon-search")
}

func TestPutGetRoundTrip(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	ctx := context.Background()
	key := NewKey(SourceGoogleBooks, "Kafka on the Shore", "Haruki Murakami")

	require.NoError(t, c.Put(ctx, key, testPayload{Title: "Kafka on the Shore", Year: 2005}))

	data, ok, err := c.Get(ctx, key, "KAFKA ON THE SHORE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"Kafka on the Shore","year":2005}`, string(data))
}

func TestGetRejectsMismatchedTitle(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	ctx := context.Background()
	key := NewKey(SourceOpenLibrary, "shared", "key")

	require.NoError(t, c.Put(ctx, key, testPayload{Title: "X"}))

	_, ok, err := c.Get(ctx, key, "Y")
	require.NoError(t, err)
	assert.False(t, ok, "entry written for another title must be a miss")

	_, ok, err = c.Get(ctx, key, "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetWithoutTitleSkipsValidation(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	ctx := context.Background()
	key := NewKey(SourceAmazonSearch, "t", "a")

	require.NoError(t, c.Put(ctx, key, map[string]string{"bookLink": "https://www.amazon.com/dp/1"}))

	_, ok, err := c.Get(ctx, key, "")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = c.Get(ctx, key, "t")
	require.NoError(t, err)
	assert.False(t, ok, "payload without an embedded title cannot match an expected title")
}

func TestPutDisabledWritesNothing(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	key := NewKey(SourceGoogleBooks, "t", "a")

	require.False(t, c.WritesEnabled())
	require.NoError(t, c.Put(ctx, key, testPayload{Title: "t"}))

	_, ok, err := c.Get(ctx, key, "t")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownSourceIsRejected(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))

	err := c.Put(context.Background(), NewKey(Source("tmdb"), "x"), testPayload{})
	require.Error(t, err)

	_, _, err = c.Get(context.Background(), NewKey(Source("x; DROP TABLE"), "x"), "")
	require.Error(t, err)
}

func TestGetOrFetchIsIdempotent(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	ctx := context.Background()
	key := NewKey(SourceGoogleBooks, "Kafka on the Shore", "Haruki Murakami")

	var calls atomic.Int32
	fetch := func(context.Context) (*testPayload, error) {
		calls.Add(1)
		return &testPayload{Title: "Kafka on the Shore", Year: 2005}, nil
	}

	first, fromCache, err := GetOrFetch(ctx, c, key, "Kafka on the Shore", fetch)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2005, first.Year)

	second, fromCache, err := GetOrFetch(ctx, c, key, "Kafka on the Shore", fetch)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrFetchWithoutWritesAlwaysFetches(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	key := NewKey(SourceGoogleBooks, "t", "a")

	var calls atomic.Int32
	fetch := func(context.Context) (testPayload, error) {
		calls.Add(1)
		return testPayload{Title: "t"}, nil
	}

	for range 2 {
		_, fromCache, err := GetOrFetch(ctx, c, key, "t", fetch)
		require.NoError(t, err)
		assert.False(t, fromCache)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrFetchWithPolicySkipsEmptyResults(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	ctx := context.Background()
	key := NewKey(SourceOpenLibrary, "missing", "nobody")

	var calls atomic.Int32
	fetch := func(context.Context) (*testPayload, error) {
		calls.Add(1)
		return nil, nil
	}
	nonNil := func(p *testPayload) bool { return p != nil }

	for range 2 {
		got, _, err := GetOrFetchWithPolicy(ctx, c, key, "missing", fetch, nonNil)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrFetchPropagatesFetchError(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	boom := errors.New("boom")

	_, _, err := GetOrFetch(context.Background(), c, NewKey(SourceGoogleBooks, "t"), "t",
		func(context.Context) (testPayload, error) { return testPayload{}, boom })

	require.ErrorIs(t, err, boom)
}

func TestGetOrFetchCollapsesConcurrentMisses(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	key := NewKey(SourceWikidataAuthor, "Haruki Murakami")

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (testPayload, error) {
		calls.Add(1)
		<-release
		return testPayload{Title: "Haruki Murakami"}, nil
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := GetOrFetch(context.Background(), c, key, "", fetch)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(4))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestGetOrFetchNilCacheFetchesDirectly(t *testing.T) {
	got, fromCache, err := GetOrFetch(context.Background(), nil, NewKey(SourceGoogleBooks, "t"), "t",
		func(context.Context) (int, error) { return 7, nil })

	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 7, got)
}

func TestInvalidateSourceAndClear(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, NewKey(SourceGoogleBooks, "a"), testPayload{Title: "a"}))
	require.NoError(t, c.Put(ctx, NewKey(SourceGoogleBooks, "b"), testPayload{Title: "b"}))
	require.NoError(t, c.Put(ctx, NewKey(SourceOpenLibrary, "a"), testPayload{Title: "a"}))

	n, err := c.InvalidateSource(SourceGoogleBooks)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, ok, err := c.Get(ctx, NewKey(SourceOpenLibrary, "a"), "a")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = c.Clear()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestClearCacheCmd(t *testing.T) {
	c := setupTestCache(t, WithWrites(true))
	withGlobalCache(t, c)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, NewKey(SourceAmazonSearch, "a"), map[string]string{"bookLink": "x"}))
	require.NoError(t, c.Put(ctx, NewKey(SourceGoogleBooks, "a"), testPayload{Title: "a"}))

	require.NoError(t, (&ClearCacheCmd{Source: "amazon-search"}).Run())
	_, ok, _ := c.Get(ctx, NewKey(SourceAmazonSearch, "a"), "")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, NewKey(SourceGoogleBooks, "a"), "a")
	assert.True(t, ok)

	require.Error(t, (&ClearCacheCmd{Source: "steam"}).Run())

	require.NoError(t, (&ClearCacheCmd{}).Run())
	_, ok, _ = c.Get(ctx, NewKey(SourceGoogleBooks, "a"), "a")
	assert.False(t, ok)
}

func TestGetGlobalCacheUsesViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	require.NoError(t, ResetGlobalCache())
	t.Cleanup(func() { _ = ResetGlobalCache() })

	env := testutil.NewTestEnv(t)
	viper.Set("cache.dbfile", env.Path("global.db"))
	viper.Set("cache.write", true)

	c, err := GetGlobalCache()
	require.NoError(t, err)
	assert.True(t, c.WritesEnabled())
	assert.Equal(t, env.Path("global.db"), c.Path())

	again, err := GetGlobalCache()
	require.NoError(t, err)
	assert.Same(t, c, again)
}
