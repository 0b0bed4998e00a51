package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/config"
	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/images"
	"github.com/lepinkainen/deepresearch/internal/overrides"
	"github.com/lepinkainen/deepresearch/internal/research"
	"github.com/lepinkainen/deepresearch/internal/testutil"
)

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	cli := &CLI{}
	parser, err := newParser(cli, kong.Exit(func(code int) {
		t.Fatalf("unexpected Kong exit %d", code)
	}))
	require.NoError(t, err)

	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return cli, ctx
}

// captureStdout redirects command output into a buffer for the test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = orig })
	return &buf
}

type stubCatalog struct{}

func (stubCatalog) Name() string  { return "Google Books" }
func (stubCatalog) Priority() int { return 1 }

func (stubCatalog) Fetch(context.Context, string, string) (*book.EnrichmentData, error) {
	return &book.EnrichmentData{
		PublishedYear: book.Ptr(2005),
		Publisher:     book.Ptr("Vintage"),
		Genres:        []string{"Fiction"},
	}, nil
}

type stubAuthors struct{}

func (stubAuthors) Fetch(_ context.Context, name string) (*book.AuthorData, error) {
	return &book.AuthorData{Name: name, BirthPlace: book.Ptr("Kyoto")}, nil
}

type stubPublishers struct{}

func (stubPublishers) Fetch(context.Context, string) (*book.PublisherData, error) {
	return nil, nil
}

type stubImages struct{}

func (stubImages) Select(context.Context, []images.Candidate, int, int) *images.Selected {
	return nil
}

// setupCommandTest sandboxes config and the global cache for a command run.
func setupCommandTest(t *testing.T, env *testutil.TestEnv) {
	t.Helper()
	testutil.SetTestConfig(t, env)
	env.MkdirAll("cache")
	require.NoError(t, cache.ResetGlobalCache())
	t.Cleanup(func() { _ = cache.ResetGlobalCache() })
}

// stubEngine swaps the production engine for one backed by in-memory sources.
func stubEngine(t *testing.T) *[]research.Observer {
	t.Helper()
	var observers []research.Observer
	orig := newEngine
	newEngine = func(c *cache.CacheDB, table overrides.Provider, observer research.Observer) *research.Engine {
		observers = append(observers, observer)
		return research.New(
			research.WithCache(c),
			research.WithOverrides(table),
			research.WithCatalogs(stubCatalog{}),
			research.WithAuthorSource(stubAuthors{}),
			research.WithPublisherSource(stubPublishers{}),
			research.WithImages(stubImages{}),
			research.WithScrapingDefault(false),
			research.WithObserver(observer),
		)
	}
	t.Cleanup(func() { newEngine = orig })
	return &observers
}

func TestUpdateGlobalConfig(t *testing.T) {
	testutil.ResetConfig(t)

	cli := &CLI{CacheDBFile: "/tmp/cache.db", CacheWrite: true}
	updateGlobalConfig(cli)

	assert.True(t, config.CacheWriteEnabled)
	assert.True(t, viper.GetBool("cache.write"))
	assert.Equal(t, "/tmp/cache.db", viper.GetString("cache.dbfile"))
}

func TestUpdateGlobalConfigLeavesUnsetFlags(t *testing.T) {
	testutil.ResetConfig(t)
	viper.Set("cache.dbfile", "./from-config.db")
	config.CacheWriteEnabled = false

	updateGlobalConfig(&CLI{})

	assert.False(t, config.CacheWriteEnabled)
	assert.Equal(t, "./from-config.db", viper.GetString("cache.dbfile"))
}

func TestResearchCommandParsing(t *testing.T) {
	testutil.ResetConfig(t)

	cli, ctx := parseCLI(t, "research", "-t", "Kafka on the Shore", "-a", "Haruki Murakami", "--no-scraping", "--json", "--no-progress")

	assert.Equal(t, "research", ctx.Command())
	assert.Equal(t, "Kafka on the Shore", cli.Research.Title)
	assert.Equal(t, "Haruki Murakami", cli.Research.Author)
	assert.True(t, cli.Research.NoScraping)
	assert.True(t, cli.Research.JSON)
	assert.False(t, cli.Research.Progress)
}

func TestResearchCommandDefaults(t *testing.T) {
	testutil.ResetConfig(t)

	cli, _ := parseCLI(t, "research", "--title", "Norwegian Wood", "--author", "Haruki Murakami")

	assert.True(t, cli.Research.Progress)
	assert.False(t, cli.Research.NoScraping)
	assert.Empty(t, cli.Research.DatasetteURL)
}

func TestGlobalFlagsParsing(t *testing.T) {
	testutil.ResetConfig(t)

	cli, ctx := parseCLI(t, "-v", "--cache-db-file", "/tmp/c.db", "--cache-write", "cache", "clear", "--source", "wikidata-author")

	assert.Equal(t, "cache clear", ctx.Command())
	assert.True(t, cli.Verbose)
	assert.True(t, cli.CacheWrite)
	assert.Equal(t, "/tmp/c.db", cli.CacheDBFile)
	assert.Equal(t, "wikidata-author", cli.Cache.Clear.Source)
}

func TestCommandStructure(t *testing.T) {
	parser, err := newParser(&CLI{})
	require.NoError(t, err)

	var names []string
	for _, node := range parser.Model.Children {
		names = append(names, node.Name)
	}
	assert.ElementsMatch(t, []string{"research", "cache", "overrides"}, names)
}

func TestInitConfigBindsEnvironment(t *testing.T) {
	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	t.Chdir(env.RootDir())
	t.Setenv("ENABLE_CACHE_WRITE", "true")
	t.Setenv("GOOGLE_BOOKS_API_KEY", "secret")

	require.NoError(t, initConfig())

	assert.True(t, config.CacheWriteEnabled)
	assert.Equal(t, "secret", config.GoogleBooksAPIKey)
	assert.Equal(t, "./json/", viper.GetString("jsonoutputdir"))
	env.RequireFileExists("config.yaml")
}

func TestInitLogging(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	initLogging(true)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	initLogging(false)
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}

func TestResearchCmdWritesJSON(t *testing.T) {
	env := testutil.NewTestEnv(t)
	setupCommandTest(t, env)
	observers := stubEngine(t)
	out := captureStdout(t)

	cmd := &ResearchCmd{
		Title:      "Kafka on the Shore",
		Author:     "Haruki Murakami",
		JSON:       true,
		JSONOutput: env.Path("out", "kafka.json"),
		Progress:   true,
	}
	require.NoError(t, cmd.Run())

	// stdout is not a terminal under test, so no progress view is attached.
	require.Len(t, *observers, 1)
	assert.Nil(t, (*observers)[0])
	assert.Contains(t, out.String(), "Kafka on the Shore")

	var result research.Result
	require.NoError(t, json.Unmarshal(env.ReadFile("out/kafka.json"), &result))
	assert.Equal(t, 2005, *result.Book.PublishedYear)
	assert.Equal(t, "Vintage", *result.Book.Publisher)
	assert.Equal(t, "Kyoto", *result.Author.BirthPlace)
	assert.Contains(t, result.Errors, "Wikidata: no publisher found for \"Vintage\"")
	// ISBNs come from the built-in corrections.
	assert.Contains(t, result.Book.IndustryIdentifiers, book.Identifier{Type: "ISBN_13", Identifier: "9781400079278"})
}

func TestResearchCmdDefaultJSONPath(t *testing.T) {
	env := testutil.NewTestEnv(t)
	setupCommandTest(t, env)
	viper.Set("jsonoutputdir", env.Path("json"))
	stubEngine(t)
	captureStdout(t)

	cmd := &ResearchCmd{Title: "Kafka on the Shore", Author: "Haruki Murakami", JSON: true}
	require.NoError(t, cmd.Run())

	env.RequireFileExists("json/Kafka on the Shore.json")
}

func TestResearchCmdExportsToSQLite(t *testing.T) {
	env := testutil.NewTestEnv(t)
	setupCommandTest(t, env)
	dbPath := env.Path("results.db")
	viper.Set("datasette.dbfile", dbPath)
	stubEngine(t)
	captureStdout(t)

	origNow := now
	now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = origNow })

	cmd := &ResearchCmd{Title: "Kafka on the Shore", Author: "Haruki Murakami", Datasette: true}
	require.NoError(t, cmd.Run())

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var title, researchedAt string
	var year int
	err = db.QueryRow("SELECT title, researched_at, published_year FROM research_results").Scan(&title, &researchedAt, &year)
	require.NoError(t, err)
	assert.Equal(t, "Kafka on the Shore", title)
	assert.Equal(t, "2024-03-01T12:00:00Z", researchedAt)
	assert.Equal(t, 2005, year)
}

func TestResearchCmdRejectsBlankTitle(t *testing.T) {
	env := testutil.NewTestEnv(t)
	setupCommandTest(t, env)
	stubEngine(t)
	captureStdout(t)

	err := (&ResearchCmd{Title: "  ", Author: "Haruki Murakami"}).Run()
	assert.ErrorIs(t, err, research.ErrInvalidRequest)
}

func TestOverridesListCmd(t *testing.T) {
	env := testutil.NewTestEnv(t)
	testutil.SetTestConfig(t, env)
	env.WriteFileString("overrides.yaml", "- title: The Elephant Vanishes\n  bookType: ShortStory\n")
	config.OverridesFile = env.Path("overrides.yaml")
	out := captureStdout(t)

	require.NoError(t, (&OverridesListCmd{}).Run())

	assert.Contains(t, out.String(), "Kafka on the Shore  year=2005  type=Novel  isbn13=9781400079278  genres=Fiction")
	assert.Contains(t, out.String(), "The Elephant Vanishes  type=ShortStory")
}

func TestCacheClearCommand(t *testing.T) {
	env := testutil.NewTestEnv(t)
	setupCommandTest(t, env)

	c, err := cache.GetGlobalCache()
	require.NoError(t, err)
	require.NoError(t, c.Put(context.Background(), cache.NewKey(cache.SourceWikidataAuthor, "Haruki Murakami"), map[string]string{"name": "Haruki Murakami"}))

	_, ctx := parseCLI(t, "cache", "clear")
	require.NoError(t, ctx.Run())

	_, found, err := c.Get(context.Background(), cache.NewKey(cache.SourceWikidataAuthor, "Haruki Murakami"), "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStdoutIsTerminalFalseForFiles(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdout")
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = f
	t.Cleanup(func() {
		os.Stdout = orig
		_ = f.Close()
	})

	assert.False(t, stdoutIsTerminal())
}
