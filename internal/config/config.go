package config

import (
	"time"

	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// CacheWriteEnabled controls whether fetched source responses are persisted.
	// Cache reads are always attempted regardless of this flag.
	CacheWriteEnabled bool
	// UseScraping is the default for requests that do not set it explicitly.
	UseScraping bool
	// Concurrency is the size of the research concurrency gate.
	Concurrency int
	// GoogleBooksAPIKey is optional; requests are anonymous without it.
	GoogleBooksAPIKey string

	HTTPTimeout  time.Duration
	HTTPRetries  int
	ImageTimeout time.Duration
	ImageDir     string
	MinWidth     int
	MinHeight    int

	BrowserHeadless   bool
	NavigationTimeout time.Duration
	NavigationRetries int
	ScreenshotDir     string
	CrashLogFile      string
	OverridesFile     string
)

// Defaults shared by InitConfig and the CLI's config file bootstrap.
var Defaults = map[string]any{
	"cache.dbfile":          "./cache.db",
	"cache.write":           false,
	"research.scraping":     true,
	"research.concurrency":  2,
	"http.timeout":          "15s",
	"http.retries":          3,
	"images.dir":            "./public/images",
	"images.timeout":        "40s",
	"images.minwidth":       500,
	"images.minheight":      700,
	"browser.headless":      true,
	"browser.navtimeout":    "10s",
	"browser.retries":       2,
	"browser.screenshotdir": "./screenshots",
	"crash.logfile":         "./crash.log",
	"overrides.file":        "",
	"googlebooks.apikey":    "",
	"datasette.dbfile":      "./deepresearch.db",
	"datasette.token":       "",
}

// InitConfig initializes the global configuration
func InitConfig() {
	for key, value := range Defaults {
		viper.SetDefault(key, value)
	}

	CacheWriteEnabled = viper.GetBool("cache.write")
	UseScraping = viper.GetBool("research.scraping")
	Concurrency = viper.GetInt("research.concurrency")
	GoogleBooksAPIKey = viper.GetString("googlebooks.apikey")

	HTTPTimeout = viper.GetDuration("http.timeout")
	HTTPRetries = viper.GetInt("http.retries")
	ImageTimeout = viper.GetDuration("images.timeout")
	ImageDir = viper.GetString("images.dir")
	MinWidth = viper.GetInt("images.minwidth")
	MinHeight = viper.GetInt("images.minheight")

	BrowserHeadless = viper.GetBool("browser.headless")
	NavigationTimeout = viper.GetDuration("browser.navtimeout")
	NavigationRetries = viper.GetInt("browser.retries")
	ScreenshotDir = viper.GetString("browser.screenshotdir")
	CrashLogFile = viper.GetString("crash.logfile")
	OverridesFile = viper.GetString("overrides.file")

	if Concurrency < 1 {
		Concurrency = 1
	}
}

// SetCacheWriteEnabled sets the CacheWriteEnabled flag
func SetCacheWriteEnabled(enabled bool) {
	CacheWriteEnabled = enabled
}

// SetUseScraping sets the UseScraping flag
func SetUseScraping(enabled bool) {
	UseScraping = enabled
}
