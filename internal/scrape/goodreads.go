package scrape

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// GoodreadsSignals are the values read from a Goodreads book page.
type GoodreadsSignals struct {
	Score      *float64 `json:"score,omitempty"`
	Votes      *int     `json:"votes,omitempty"`
	CopiesSold *int     `json:"copiesSold,omitempty"`
}

var (
	goodreadsScore = chain(parseScore,
		text(".RatingStatistics__rating"),
		text("span[itemprop='ratingValue']"),
		text(".BookPageMetadataSection__rating span"),
		attr("div.RatingStars", "aria-label"),
	)
	goodreadsVotes = chain(countParser(goodreadsVotesPattern),
		text(`span[data-testid="ratingsCount"]`),
		text("span[itemprop='ratingCount']"),
		text(".BookPageMetadataSection__ratingStats span"),
		text("div.ReviewsSectionStatistics div span"),
	)
	goodreadsCopies = chain(countParser(goodreadsCopiesPattern),
		text(".BookPageMetadataSection__stats"),
		text(`[data-testid="bookDetails"]`),
		text(".BookDetails"),
		text(".BookPage__stats"),
		text(".BookDetails__circulation"),
	)
)

// ParseGoodreads extracts rating and circulation figures. Fields that
// cannot be read stay nil.
func ParseGoodreads(ctx context.Context, doc *goquery.Document) GoodreadsSignals {
	score, scoreOK := goodreadsScore.Value(ctx, doc)
	votes, votesOK := goodreadsVotes.Value(ctx, doc)
	copies, copiesOK := goodreadsCopies.Value(ctx, doc)

	return GoodreadsSignals{
		Score:      optional(score, scoreOK),
		Votes:      below(votes, votesOK, maxGoodreadsVotes),
		CopiesSold: optional(copies, copiesOK),
	}
}
