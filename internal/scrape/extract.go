package scrape

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/deepresearch/internal/fallback"
)

const (
	maxGoodreadsVotes = 10_000_000
	maxAmazonVotes    = 1_000_000
)

var (
	scorePattern           = regexp.MustCompile(`\d+(?:\.\d+)?`)
	goodreadsVotesPattern  = regexp.MustCompile(`(\d[\d,]*)\s*(?:ratings|votes)`)
	goodreadsCopiesPattern = regexp.MustCompile(`(?i)(\d[\d,]*)\s*(?:copies\s*sold|circulation|sales)`)
	amazonVotesPattern     = regexp.MustCompile(`(?i)(\d[\d,]*)\s*rating`)
	amazonCopiesPattern    = regexp.MustCompile(`(?i)(\d[\d,]*)\s*(?:copies\s*sold|sales)`)
	rankPattern            = regexp.MustCompile(`#\s*(\d[\d,]*)`)
)

// probe pulls one piece of text out of a document.
type probe struct {
	name    string
	extract func(doc *goquery.Document) string
}

func text(selector string) probe {
	return probe{name: selector, extract: func(doc *goquery.Document) string {
		return normalizeSpace(doc.Find(selector).Text())
	}}
}

func attr(selector, name string) probe {
	return probe{name: selector + "@" + name, extract: func(doc *goquery.Document) string {
		v, _ := doc.Find(selector).First().Attr(name)
		return strings.TrimSpace(v)
	}}
}

func nextText(selector string) probe {
	return probe{name: selector + "+", extract: func(doc *goquery.Document) string {
		return normalizeSpace(doc.Find(selector).Next().Text())
	}}
}

func parentText(selector string) probe {
	return probe{name: selector + "<", extract: func(doc *goquery.Document) string {
		return normalizeSpace(doc.Find(selector).First().Parent().Text())
	}}
}

// chain builds an ordered fallback list where each probe's text must also
// parse before it counts.
func chain[T any](parse func(string) (T, bool), probes ...probe) fallback.Chain[*goquery.Document, T] {
	c := make(fallback.Chain[*goquery.Document, T], 0, len(probes))
	for _, p := range probes {
		c = append(c, fallback.Strategy[*goquery.Document, T]{
			Name: p.name,
			Try: func(_ context.Context, doc *goquery.Document) (T, bool) {
				var zero T
				s := p.extract(doc)
				if s == "" {
					return zero, false
				}
				return parse(s)
			},
		})
	}
	return c
}

// normalizeSpace collapses all whitespace, including non-breaking spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseScore(s string) (float64, bool) {
	m := scorePattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 || v > 5 {
		return 0, false
	}
	return v, true
}

func countParser(pattern *regexp.Regexp) func(string) (int, bool) {
	return func(s string) (int, bool) {
		m := pattern.FindStringSubmatch(s)
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
}

func parseHTTPURL(s string) (string, bool) {
	if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
		return s, true
	}
	return "", false
}

// below applies an implausibility guard to an extracted count.
func below(v int, ok bool, limit int) *int {
	if !ok || v >= limit {
		return nil
	}
	return &v
}

func optional[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}
