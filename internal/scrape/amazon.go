package scrape

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AmazonSignals are the values read from an Amazon product page.
type AmazonSignals struct {
	Score          *float64 `json:"score,omitempty"`
	Votes          *int     `json:"votes,omitempty"`
	BestSellerRank *int     `json:"bestSellerRank,omitempty"`
	CopiesSold     *int     `json:"copiesSold,omitempty"`
	CoverURL       string   `json:"coverUrl,omitempty"`
}

var (
	amazonScore = chain(parseScore,
		text("#averageCustomerReviews span.a-icon-alt"),
		text(".a-row.a-spacing-small .a-size-base"),
		text("#cm_cr-review_stars span"),
		text(".reviewCountTextLinkedHistogram"),
	)
	amazonVotes = chain(countParser(amazonVotesPattern),
		text("#acrCustomerReviewText"),
		nextText("#averageCustomerReviews"),
		nextText(".a-row.a-spacing-small .a-size-base"),
		text(".a-row.a-spacing-small .a-size-base"),
	)
	amazonRank = chain(countParser(rankPattern),
		parentText(`span:contains("Best Sellers Rank")`),
		text("#SalesRank"),
		text(".product-facts-detail"),
		text("#detailBullets_feature_div li"),
	)
	amazonCopies = chain(countParser(amazonCopiesPattern),
		text(".product-facts-detail"),
		text("#productDetailsTable"),
		text(".book-details"),
		text("#detailBullets_feature_div"),
		text(".rpi-attribute-value"),
	)
	amazonCover = chain(parseHTTPURL,
		attr("#imgBlkFront", "src"),
		attr("#landingImage", "src"),
		attr(".a-dynamic-image", "src"),
		attr("#main-image", "src"),
		attr("#ebooksImgBlkFront", "src"),
	)
)

// IsBotChallenge reports whether doc is Amazon's robot check instead of a
// product page.
func IsBotChallenge(doc *goquery.Document) bool {
	if doc.Find(`form[action*="validateCaptcha"]`).Length() > 0 {
		return true
	}
	title := strings.ToLower(doc.Find("title").Text())
	return strings.Contains(title, "robot check")
}

// ParseAmazon extracts rating, rank, circulation and cover figures. Fields
// that cannot be read stay nil.
func ParseAmazon(ctx context.Context, doc *goquery.Document) AmazonSignals {
	score, scoreOK := amazonScore.Value(ctx, doc)
	votes, votesOK := amazonVotes.Value(ctx, doc)
	rank, rankOK := amazonRank.Value(ctx, doc)
	copies, copiesOK := amazonCopies.Value(ctx, doc)
	cover, _ := amazonCover.Value(ctx, doc)

	return AmazonSignals{
		Score:          optional(score, scoreOK),
		Votes:          below(votes, votesOK, maxAmazonVotes),
		BestSellerRank: optional(rank, rankOK),
		CopiesSold:     optional(copies, copiesOK),
		CoverURL:       cover,
	}
}

// FirstProductLink returns the first product link on a search results page
// that is not an audiobook.
func FirstProductLink(doc *goquery.Document) string {
	var link string
	doc.Find(`a[href*="/dp/"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "/dp/") && !strings.Contains(strings.ToLower(href), "audiobook") {
			link = href
			return false
		}
		return true
	})
	return link
}
