package testutil

import (
	"testing"
	"time"

	"github.com/lepinkainen/deepresearch/internal/config"
	"github.com/spf13/viper"
)

// ConfigState holds the state of the config package variables.
type ConfigState struct {
	CacheWriteEnabled bool
	UseScraping       bool
	Concurrency       int
	GoogleBooksAPIKey string
	NavigationTimeout time.Duration
	NavigationRetries int
	ImageDir          string
	ScreenshotDir     string
	CrashLogFile      string
}

// SaveConfigState captures the current state of config package variables.
func SaveConfigState() ConfigState {
	return ConfigState{
		CacheWriteEnabled: config.CacheWriteEnabled,
		UseScraping:       config.UseScraping,
		Concurrency:       config.Concurrency,
		GoogleBooksAPIKey: config.GoogleBooksAPIKey,
		NavigationTimeout: config.NavigationTimeout,
		NavigationRetries: config.NavigationRetries,
		ImageDir:          config.ImageDir,
		ScreenshotDir:     config.ScreenshotDir,
		CrashLogFile:      config.CrashLogFile,
	}
}

// RestoreConfigState restores the config package variables to a saved state.
func RestoreConfigState(state ConfigState) {
	config.CacheWriteEnabled = state.CacheWriteEnabled
	config.UseScraping = state.UseScraping
	config.Concurrency = state.Concurrency
	config.GoogleBooksAPIKey = state.GoogleBooksAPIKey
	config.NavigationTimeout = state.NavigationTimeout
	config.NavigationRetries = state.NavigationRetries
	config.ImageDir = state.ImageDir
	config.ScreenshotDir = state.ScreenshotDir
	config.CrashLogFile = state.CrashLogFile
}

// ResetConfig saves the current config state and schedules restoration
// when the test completes. It also resets viper.
func ResetConfig(t *testing.T) {
	t.Helper()

	state := SaveConfigState()
	viper.Reset()

	t.Cleanup(func() {
		RestoreConfigState(state)
		viper.Reset()
	})
}

// SetTestConfig points every file-producing setting at the test sandbox and
// enables cache writes. The previous state is restored on cleanup.
func SetTestConfig(t *testing.T, env *TestEnv) {
	t.Helper()

	ResetConfig(t)
	config.InitConfig()

	config.CacheWriteEnabled = true
	config.ImageDir = env.Path("images")
	config.ScreenshotDir = env.Path("screenshots")
	config.CrashLogFile = env.Path("crash.log")
	viper.Set("cache.dbfile", env.Path("cache", "test-cache.db"))
	viper.Set("cache.write", true)
}

// SetViperValue sets a viper configuration value and schedules cleanup.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)

	viper.Set(key, value)

	t.Cleanup(func() {
		if hadValue {
			viper.Set(key, oldValue)
		}
		// Note: viper doesn't have an Unset function, so we can't
		// restore the "unset" state.
	})
}

// SetupTestCache configures viper for test caching with a temporary directory.
// Returns the database path.
func SetupTestCache(t *testing.T, env *TestEnv) string {
	t.Helper()

	env.MkdirAll("cache")
	dbPath := env.Path("cache", "test-cache.db")
	SetViperValue(t, "cache.dbfile", dbPath)

	return dbPath
}
