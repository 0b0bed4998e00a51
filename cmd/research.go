package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/lepinkainen/deepresearch/internal/automation"
	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/config"
	"github.com/lepinkainen/deepresearch/internal/crashlog"
	"github.com/lepinkainen/deepresearch/internal/datastore"
	"github.com/lepinkainen/deepresearch/internal/fileutil"
	"github.com/lepinkainen/deepresearch/internal/gate"
	"github.com/lepinkainen/deepresearch/internal/httpclient"
	"github.com/lepinkainen/deepresearch/internal/images"
	"github.com/lepinkainen/deepresearch/internal/overrides"
	"github.com/lepinkainen/deepresearch/internal/ratelimit"
	"github.com/lepinkainen/deepresearch/internal/research"
	"github.com/lepinkainen/deepresearch/internal/scrape"
	"github.com/lepinkainen/deepresearch/internal/sources"
	"github.com/lepinkainen/deepresearch/internal/tui"
	"github.com/spf13/viper"
)

// Seams for tests.
var (
	newEngine            = buildEngine
	stdout     io.Writer = os.Stdout
	isTerminal           = stdoutIsTerminal
	openStore            = openResultStore
	now                  = time.Now
)

// ResearchCmd runs one deep research request
type ResearchCmd struct {
	Title        string `short:"t" help:"Book title" required:""`
	Author       string `short:"a" help:"Book author" required:""`
	NoScraping   bool   `help:"Skip browser scraping of ratings and sales"`
	JSON         bool   `help:"Write the result to a JSON file"`
	JSONOutput   string `help:"Path to JSON output file (defaults to json/<title>.json)"`
	Overwrite    bool   `help:"Overwrite an existing JSON output file"`
	Datasette    bool   `help:"Export the result to the SQLite database in datasette.dbfile"`
	DatasetteURL string `help:"Export the result to a remote Datasette instance instead of the local database"`
	Progress     bool   `help:"Show a live progress view when stdout is a terminal" default:"true" negatable:""`
}

func (r *ResearchCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := cache.GetGlobalCache()
	if err != nil {
		slog.Warn("Cache unavailable, continuing without it", "error", err)
		c = nil
	}

	table, err := overrides.Load(config.OverridesFile)
	if err != nil {
		return err
	}

	var (
		progress *tui.Progress
		observer research.Observer
	)
	if r.Progress && isTerminal() {
		progress = tui.StartProgress(r.Title, stdout)
		observer = progress.Observe
	}

	req := research.Request{Title: r.Title, Author: r.Author}
	if r.NoScraping {
		disabled := false
		req.UseScraping = &disabled
	}

	result, err := newEngine(c, table, observer).DeepResearch(ctx, req)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(stdout, tui.Summary(result))

	if r.JSON {
		if err := r.writeJSON(result); err != nil {
			return err
		}
	}
	if r.Datasette || r.DatasetteURL != "" {
		if err := r.export(result); err != nil {
			return err
		}
	}
	return nil
}

func (r *ResearchCmd) writeJSON(result *research.Result) error {
	path := r.JSONOutput
	if path == "" {
		dir := viper.GetString("jsonoutputdir")
		if dir == "" {
			dir = "json"
		}
		path = filepath.Join(dir, fileutil.SanitizeFilename(r.Title)+".json")
	}
	if _, err := fileutil.WriteJSONFile(result, path, r.Overwrite); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

func (r *ResearchCmd) export(result *research.Result) error {
	store := openStore(r.DatasetteURL)
	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to result store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close result store", "error", err)
		}
	}()

	if err := datastore.ExportResults(store, now(), result); err != nil {
		return err
	}
	slog.Info("Exported research result", "table", datastore.ResultsTable)
	return nil
}

func openResultStore(remoteURL string) datastore.Store {
	if remoteURL != "" {
		return datastore.NewDatasetteClient(remoteURL, viper.GetString("datasette.token"))
	}
	return datastore.NewSQLiteStore(viper.GetString("datasette.dbfile"))
}

// buildEngine wires the production adapters from the resolved config.
func buildEngine(c *cache.CacheDB, table overrides.Provider, observer research.Observer) *research.Engine {
	g := gate.New(config.Concurrency)
	sourceOpts := func(limiter string, extra ...sources.Option) []sources.Option {
		client := httpclient.New(
			httpclient.WithTimeout(config.HTTPTimeout),
			httpclient.WithRetries(config.HTTPRetries),
			httpclient.WithLimiter(ratelimit.Shared(limiter, 1)),
		)
		return append([]sources.Option{sources.WithCache(c), sources.WithGate(g), sources.WithClient(client)}, extra...)
	}

	resolver := images.New(config.ImageDir,
		images.WithGate(g),
		images.WithClient(httpclient.New(httpclient.WithRetries(1), httpclient.WithTimeout(config.ImageTimeout))),
	)

	navigator := automation.NewNavigator(
		automation.WithRetries(config.NavigationRetries),
		automation.WithScreenshotDir(config.ScreenshotDir),
	)
	scraper := scrape.New(
		scrape.WithGate(g),
		scrape.WithCache(c),
		scrape.WithNavigator(navigator),
		scrape.WithLauncher(func(ctx context.Context) (automation.Browser, error) {
			browser, err := automation.Launch(ctx, automation.Options{
				Headless:          config.BrowserHeadless,
				NavigationTimeout: config.NavigationTimeout,
			})
			if err != nil {
				return nil, err
			}
			return browser, nil
		}),
	)

	return research.New(
		research.WithGate(g),
		research.WithCache(c),
		research.WithOverrides(table),
		research.WithCatalogs(
			sources.NewGoogleBooks(sourceOpts("GoogleBooks", sources.WithAPIKey(config.GoogleBooksAPIKey))...),
			sources.NewOpenLibrary(table, sourceOpts("OpenLibrary")...),
		),
		research.WithAuthorSource(sources.NewWikidataAuthor(sourceOpts("Wikidata")...)),
		research.WithPublisherSource(sources.NewWikidataPublisher(sourceOpts("Wikidata")...)),
		research.WithImages(resolver),
		research.WithImageMinimums(config.MinWidth, config.MinHeight),
		research.WithScraper(scraper),
		research.WithScrapingDefault(config.UseScraping),
		research.WithCrashLog(crashlog.New(config.CrashLogFile)),
		research.WithObserver(observer),
	)
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
