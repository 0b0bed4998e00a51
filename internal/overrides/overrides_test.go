package overrides

import (
	"context"
	"testing"

	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := Default()

	kafka, ok := table.Lookup("  KAFKA on the   shore ")
	require.True(t, ok)
	require.NotNil(t, kafka.PublishedYear)
	assert.Equal(t, 2005, *kafka.PublishedYear)
	assert.Equal(t, book.TypeNovel, *kafka.BookType)
	assert.Equal(t, "9781400079278", kafka.ISBN13())

	quake, ok := table.Lookup("After the Quake")
	require.True(t, ok)
	assert.Equal(t, book.TypeShortStory, *quake.BookType)
	assert.Equal(t, []string{"Short Stories"}, quake.Genres)
	assert.Equal(t, "9780375713279", quake.ISBN13())

	_, ok = table.Lookup("Norwegian Wood")
	assert.False(t, ok)
}

func TestLoadExtendsDefaults(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("overrides.yaml", `
- title: Norwegian Wood
  publishedYear: 1987
  identifiers:
    - type: ISBN_10
      identifier: "0-375-70402-4"
- title: Kafka on the Shore
  publishedYear: 2002
`)

	table, err := Load(env.Path("overrides.yaml"))
	require.NoError(t, err)

	wood, ok := table.Lookup("norwegian wood")
	require.True(t, ok)
	assert.Equal(t, 1987, *wood.PublishedYear)
	assert.Equal(t, "9780375704024", wood.ISBN13(), "ISBN-13 is derived from the ISBN-10")

	kafka, ok := table.Lookup("Kafka on the Shore")
	require.True(t, ok)
	assert.Equal(t, 2002, *kafka.PublishedYear, "file entries replace built-in ones")

	_, ok = table.Lookup("After the Quake")
	assert.True(t, ok)
	assert.Len(t, table.Entries(), 3)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("no-title.yaml", "- publishedYear: 2000\n")
	env.WriteFileString("bad-type.yaml", "- title: X\n  bookType: Poem\n")

	_, err := Load(env.Path("no-title.yaml"))
	require.Error(t, err)

	_, err = Load(env.Path("bad-type.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Poem")

	_, err = Load(env.Path("missing.yaml"))
	require.Error(t, err)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.Len(t, table.Entries(), 2)
}

func TestEnricher(t *testing.T) {
	e := NewEnricher(NewTable(Override{Title: "X", Genres: []string{"Fiction"}}))

	data, err := e.Fetch(context.Background(), "x", "anyone")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, []string{"Fiction"}, data.Genres)
	assert.Equal(t, Priority, e.Priority())

	data, err = e.Fetch(context.Background(), "Y", "anyone")
	require.NoError(t, err)
	assert.Nil(t, data)
}
