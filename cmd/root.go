package cmd

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/config"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

// CLI represents the complete command structure for the deepresearch application
type CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file (overrides cache.dbfile)"`
	CacheWrite  bool   `help:"Persist fetched source responses to the cache (overrides cache.write)"`

	Research  ResearchCmd  `cmd:"" help:"Research a book by title and author"`
	Cache     CacheCmd     `cmd:"" help:"Manage the source response cache"`
	Overrides OverridesCmd `cmd:"" help:"Inspect the known-title corrections"`
}

// CacheCmd groups the cache subcommands
type CacheCmd struct {
	Clear cache.ClearCacheCmd `cmd:"" help:"Delete cached source responses"`
}

// OverridesCmd groups the override subcommands
type OverridesCmd struct {
	List OverridesListCmd `cmd:"" help:"List the known-title corrections in effect"`
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("deepresearch"),
		kong.Description("Enrich a book record from catalogs, Wikidata and rating sites."),
		kong.UsageOnError(),
	}
	return kong.New(cli, append(base, options...)...)
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		slog.Error("Failed to build command line parser", "error", err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	initLogging(cli.Verbose)
	if err := initConfig(); err != nil {
		slog.Error("Fatal error config file", "error", err)
		os.Exit(1)
	}
	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() error {
	for key, value := range config.Defaults {
		viper.SetDefault(key, value)
	}
	viper.SetDefault("jsonoutputdir", "./json/")

	// Enable environment variable support
	viper.AutomaticEnv()
	// Bind specific environment variables to config keys
	if err := viper.BindEnv("cache.write", "ENABLE_CACHE_WRITE"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}
	if err := viper.BindEnv("googlebooks.apikey", "GOOGLE_BOOKS_API_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		slog.Info("Config file not found, writing default config file...")
		if err := viper.SafeWriteConfig(); err != nil {
			slog.Warn("Error writing config file", "error", err)
		}
	}

	config.InitConfig()
	return nil
}

// updateGlobalConfig applies global flags on top of the config file.
func updateGlobalConfig(cli *CLI) {
	if cli.CacheDBFile != "" {
		viper.Set("cache.dbfile", cli.CacheDBFile)
	}
	if cli.CacheWrite {
		viper.Set("cache.write", true)
		config.SetCacheWriteEnabled(true)
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Logs go to stderr so the progress view and summary own stdout.
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
