// Package book holds the research data model shared by the source adapters
// and the orchestrator, and the first-wins merge of catalog results.
package book

import (
	"context"
)

// Enricher defines the interface for fetching book information from a
// catalog-like source.
type Enricher interface {
	// Name returns the human-readable name of the source (e.g., "Open Library").
	Name() string

	// Priority returns the pipeline position when merging data. Lower values
	// win over higher ones.
	Priority() int

	// Fetch retrieves book information for the given title and author.
	// Returns nil, nil if the book was not found.
	// Returns nil, error for actual errors (network issues, rate limits, etc.)
	Fetch(ctx context.Context, title, author string) (*EnrichmentData, error)
}

// EnrichmentData contains book metadata extracted from one source.
// Pointer fields distinguish "not set" from zero values.
type EnrichmentData struct {
	Subtitle            *string      `json:"subtitle,omitempty"`
	BookType            *Type        `json:"bookType,omitempty"`
	PublishedYear       *int         `json:"publishedYear,omitempty"`
	IndustryIdentifiers []Identifier `json:"industryIdentifiers,omitempty"`
	Genres              []string     `json:"genres,omitempty"`
	Language            *string      `json:"language,omitempty"`
	Pages               *int         `json:"pages,omitempty"`
	Description         *string      `json:"description,omitempty"`
	MaturityRating      *string      `json:"maturityRating,omitempty"`
	CanonicalLink       *string      `json:"canonicalLink,omitempty"`
	Publisher           *string      `json:"publisher,omitempty"`
	CopiesSold          *int         `json:"copiesSold,omitempty"`

	// CoverCandidates are image URLs in the source's own preference order.
	CoverCandidates []ImageCandidate `json:"coverCandidates,omitempty"`
}
