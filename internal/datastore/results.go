package datastore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/isbn"
	"github.com/lepinkainen/deepresearch/internal/research"
)

const (
	// ResultsTable is the table research results are exported to.
	ResultsTable = "research_results"
	// DatabaseName is the Datasette database name.
	DatabaseName = "deepresearch"
)

// ResultsSchema creates the export table.
const ResultsSchema = `CREATE TABLE IF NOT EXISTS research_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	researched_at TEXT NOT NULL,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	subtitle TEXT,
	book_type TEXT,
	published_year INTEGER,
	isbn_10 TEXT,
	isbn_13 TEXT,
	genres TEXT,
	language TEXT,
	pages INTEGER,
	publisher TEXT,
	cover_image TEXT,
	goodreads_score REAL,
	goodreads_votes INTEGER,
	amazon_score REAL,
	amazon_votes INTEGER,
	best_seller_rank INTEGER,
	copies_sold INTEGER,
	author_birth_date TEXT,
	author_birth_place TEXT,
	publisher_founded INTEGER,
	publisher_headquarters TEXT,
	errors TEXT,
	result_json TEXT NOT NULL
)`

// ResultRecord flattens r into a row for ResultsTable. The full result is
// kept as JSON alongside the flat columns.
func ResultRecord(r *research.Result, at time.Time) (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	b := r.Book
	record := map[string]any{
		"researched_at":          at.UTC().Format(time.RFC3339),
		"title":                  b.Title,
		"author":                 r.Author.Name,
		"subtitle":               value(b.Subtitle),
		"book_type":              value(b.BookType),
		"published_year":         value(b.PublishedYear),
		"isbn_10":                nil,
		"isbn_13":                nil,
		"genres":                 strings.Join(b.Genres, ","),
		"language":               value(b.Language),
		"pages":                  value(b.Pages),
		"publisher":              value(b.Publisher),
		"cover_image":            nil,
		"goodreads_score":        value(b.Ratings[book.RatingGoodreads].Score),
		"goodreads_votes":        value(b.Ratings[book.RatingGoodreads].Votes),
		"amazon_score":           value(b.Ratings[book.RatingAmazon].Score),
		"amazon_votes":           value(b.Ratings[book.RatingAmazon].Votes),
		"best_seller_rank":       value(b.Sales.BestSellerRank),
		"copies_sold":            value(b.Sales.CopiesSold),
		"author_birth_date":      value(r.Author.BirthDate),
		"author_birth_place":     value(r.Author.BirthPlace),
		"publisher_founded":      value(r.Publisher.Founded),
		"publisher_headquarters": value(r.Publisher.Headquarters),
		"errors":                 strings.Join(r.Errors, "\n"),
		"result_json":            string(raw),
	}
	for _, id := range b.IndustryIdentifiers {
		switch id.Type {
		case isbn.TypeISBN10:
			record["isbn_10"] = id.Identifier
		case isbn.TypeISBN13:
			record["isbn_13"] = id.Identifier
		}
	}
	if b.CoverImage != nil {
		record["cover_image"] = b.CoverImage.URL
	}
	return record, nil
}

// ExportResults creates the results table if needed and inserts results.
func ExportResults(store Store, at time.Time, results ...*research.Result) error {
	records := make([]map[string]any, 0, len(results))
	for _, r := range results {
		record, err := ResultRecord(r, at)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	if err := store.CreateTable(ResultsSchema); err != nil {
		return err
	}
	if err := store.BatchInsert(DatabaseName, ResultsTable, records); err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}
	return nil
}

// value turns a nil pointer into a SQL NULL.
func value[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
