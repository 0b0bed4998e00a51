package research

import (
	"math"
	"strings"

	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
	"github.com/lepinkainen/deepresearch/internal/sources"
)

// maxEstimatedCopies rejects sales estimates that are implausibly high.
const maxEstimatedCopies = 1_000_000

// EstimateCopiesSold derives a circulation figure from the marketplace
// rank and vote count as round(rank^-0.5 × votes × 1000). It returns nil
// when an input is missing or the estimate reaches 1,000,000.
func EstimateCopiesSold(rank, votes *int) *int {
	if rank == nil || votes == nil || *rank <= 0 || *votes <= 0 {
		return nil
	}
	estimate := math.Round(math.Pow(float64(*rank), -0.5) * float64(*votes) * 1000)
	if estimate >= maxEstimatedCopies {
		return nil
	}
	n := int(estimate)
	return &n
}

// reconcile settles book type and the short-story genre marker. Genres
// no source supplied stay empty.
func reconcile(result *Result) {
	b := &result.Book
	if isShortStoryCollection(b) {
		b.BookType = book.Ptr(book.TypeShortStory)
		if !containsFold(b.Genres, book.ShortStoriesGenre) {
			b.Genres = append(b.Genres, book.ShortStoriesGenre)
		}
	} else if b.BookType == nil {
		b.BookType = book.Ptr(book.TypeNovel)
	}
	if len(result.Author.Professions) == 0 {
		result.Author.Professions = []string{sources.DefaultProfession}
	}
}

func isShortStoryCollection(b *book.Book) bool {
	if b.BookType != nil && *b.BookType == book.TypeShortStory {
		return true
	}
	if b.Description != nil && strings.Contains(strings.ToLower(*b.Description), "short stor") {
		return true
	}
	for _, g := range b.Genres {
		if strings.Contains(strings.ToLower(g), "short stories") {
			return true
		}
	}
	return false
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
