package testutil

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/lepinkainen/deepresearch/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestEnv_Path(t *testing.T) {
	env := NewTestEnv(t)

	path := env.Path("subdir", "file.txt")
	assert.True(t, filepath.IsAbs(path))
	assert.Contains(t, path, "subdir")
	assert.Contains(t, path, "file.txt")
}

func TestTestEnv_WriteReadFile(t *testing.T) {
	env := NewTestEnv(t)

	content := []byte("test content")
	env.WriteFile("nested/test.txt", content)

	assert.Equal(t, content, env.ReadFile("nested/test.txt"))
	assert.Equal(t, "test content", env.ReadFileString("nested/test.txt"))
}

func TestTestEnv_MkdirAll(t *testing.T) {
	env := NewTestEnv(t)

	env.MkdirAll("nested/dir/structure")

	info, err := os.Stat(env.Path("nested/dir/structure"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestTestEnv_FileExists(t *testing.T) {
	env := NewTestEnv(t)

	assert.False(t, env.FileExists("nonexistent.txt"))

	env.WriteFileString("exists.txt", "content")
	assert.True(t, env.FileExists("exists.txt"))
	env.RequireFileExists("exists.txt")
}

func TestTestEnv_ListFiles(t *testing.T) {
	env := NewTestEnv(t)

	env.WriteFileString("file1.txt", "1")
	env.WriteFileString("file2.txt", "2")
	env.MkdirAll("subdir")

	files := env.ListFiles(".")
	assert.ElementsMatch(t, []string{"file1.txt", "file2.txt", "subdir"}, files)
}

func TestResetConfig(t *testing.T) {
	config.CacheWriteEnabled = true
	t.Cleanup(func() { config.CacheWriteEnabled = false })

	t.Run("inner", func(t *testing.T) {
		ResetConfig(t)
		config.CacheWriteEnabled = false
		viper.Set("cache.write", false)
	})

	assert.True(t, config.CacheWriteEnabled)
	assert.False(t, viper.IsSet("cache.write"))
}

func TestSetTestConfig(t *testing.T) {
	env := NewTestEnv(t)
	SetTestConfig(t, env)

	assert.True(t, config.CacheWriteEnabled)
	assert.Equal(t, env.Path("images"), config.ImageDir)
	assert.Equal(t, env.Path("crash.log"), config.CrashLogFile)
	assert.Equal(t, env.Path("cache", "test-cache.db"), viper.GetString("cache.dbfile"))
}

func TestSetupTestCache(t *testing.T) {
	ResetConfig(t)
	env := NewTestEnv(t)

	dbPath := SetupTestCache(t, env)

	assert.Equal(t, dbPath, viper.GetString("cache.dbfile"))
	assert.True(t, env.FileExists("cache"))
}

func TestRedirectClientKeepsOriginalHost(t *testing.T) {
	var gotHost, gotPath string
	server := NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotPath = r.URL.RequestURI()
		_, _ = io.WriteString(w, "ok")
	}))

	resp, err := RedirectClient(server).Get("http://covers.openlibrary.org/b/id/1-L.jpg?x=1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "covers.openlibrary.org", gotHost)
	assert.Equal(t, "/b/id/1-L.jpg?x=1", gotPath)
}

func TestCountHits(t *testing.T) {
	counter := CountHits(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server := NewIPv4Server(t, counter)

	for range 3 {
		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, 3, counter.Hits())
}

func TestJPEGBytes(t *testing.T) {
	data := JPEGBytes(t, 60, 80)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}
