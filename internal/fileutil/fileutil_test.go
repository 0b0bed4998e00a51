package fileutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/deepresearch/internal/testutil"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain title", input: "Kafka on the Shore", want: "Kafka on the Shore"},
		{name: "colon", input: "Dune: Messiah", want: "Dune - Messiah"},
		{name: "slashes", input: "AC/DC\\Live", want: "AC-DC-Live"},
		{name: "shell characters", input: `What? "Why" <now>*|`, want: "What- -Why- -now---"},
		{name: "extra whitespace", input: "  1Q84   Book  3 ", want: "1Q84 Book 3"},
		{name: "empty", input: "   ", want: "untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func TestFileExists(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("present.txt", "x")
	env.MkdirAll("dir")

	assert.True(t, FileExists(env.Path("present.txt")))
	assert.False(t, FileExists(env.Path("missing.txt")))
	assert.False(t, FileExists(env.Path("dir")))
}

func TestWriteFileWithOverwrite(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("nested", "deeper", "file.txt")

	written, err := WriteFileWithOverwrite(path, []byte("first"), 0o644, false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = WriteFileWithOverwrite(path, []byte("second"), 0o644, false)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, "first", env.ReadFileString("nested/deeper/file.txt"))

	written, err = WriteFileWithOverwrite(path, []byte("third"), 0o644, true)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, "third", env.ReadFileString("nested/deeper/file.txt"))
}

func TestWriteJSONFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("json", "result.json")
	data := map[string]any{"title": "Kafka on the Shore", "publishedYear": 2005}

	written, err := WriteJSONFile(data, path, false)
	require.NoError(t, err)
	assert.True(t, written)

	content := env.ReadFileString("json/result.json")
	assert.Contains(t, content, "\n  \"publishedYear\": 2005", "output is indented")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	assert.Equal(t, "Kafka on the Shore", decoded["title"])

	written, err = WriteJSONFile(map[string]any{"title": "other"}, path, false)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Contains(t, env.ReadFileString("json/result.json"), "Kafka on the Shore")
}

func TestWriteJSONFileInvalidData(t *testing.T) {
	env := testutil.NewTestEnv(t)

	written, err := WriteJSONFile(make(chan int), env.Path("bad.json"), true)
	assert.False(t, written)
	assert.ErrorContains(t, err, "failed to marshal JSON")
	assert.False(t, env.FileExists("bad.json"))
}
