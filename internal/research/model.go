package research

import (
	"errors"

	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
)

// ErrInvalidRequest is returned when a request lacks a title or an author.
var ErrInvalidRequest = errors.New("invalid research request")

// Request is a sparse book record to enrich.
type Request struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	// UseScraping enables the browser stage. Nil uses the engine default.
	UseScraping *bool `json:"useScraping,omitempty"`
}

type (
	Book      = book.Book
	Author    = book.Author
	Publisher = book.Publisher
)

// Result is the enriched record. Errors lists every failed sub-step in the
// order it happened; a failure never prevents other fields from being set.
type Result struct {
	Book      Book      `json:"book"`
	Author    Author    `json:"author"`
	Publisher Publisher `json:"publisher"`
	Errors    []string  `json:"errors"`
}

func newResult(req Request) *Result {
	return &Result{
		Book:   book.NewBook(req.Title),
		Author: Author{Name: req.Author, Professions: []string{}},
		Errors: []string{},
	}
}

func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}
