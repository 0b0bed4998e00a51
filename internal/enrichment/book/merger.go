package book

import (
	"slices"
	"sort"
	"strings"
)

// Merger defines the interface for merging book information from multiple sources.
type Merger interface {
	// Merge combines multiple EnricherResults into a single EnrichmentData.
	// Results are merged by priority (lower priority number = higher precedence).
	Merge(results []EnricherResult) *EnrichmentData
}

// PriorityMerger implements Merger using priority-based field selection.
// For each field, it uses the first non-empty value from the sorted results;
// later results never overwrite it. Lists follow the same rule and are not
// concatenated. Cover candidates are the exception: all of them are kept,
// in priority order, because image selection ranks them later.
type PriorityMerger struct{}

// NewPriorityMerger creates a new PriorityMerger.
func NewPriorityMerger() *PriorityMerger {
	return &PriorityMerger{}
}

// Merge combines multiple EnricherResults into a single EnrichmentData.
// It returns an empty, non-nil value when no result carries data.
func (m *PriorityMerger) Merge(results []EnricherResult) *EnrichmentData {
	sorted := make([]EnricherResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	merged := &EnrichmentData{}
	for _, result := range sorted {
		MergeInto(merged, result.Data)
	}
	return merged
}

// MergeInto fills the unset fields of dst from src.
func MergeInto(dst, src *EnrichmentData) {
	if dst == nil || src == nil {
		return
	}

	setString(&dst.Subtitle, src.Subtitle)
	setString(&dst.Language, src.Language)
	setString(&dst.Description, src.Description)
	setString(&dst.MaturityRating, src.MaturityRating)
	setString(&dst.CanonicalLink, src.CanonicalLink)
	setString(&dst.Publisher, src.Publisher)
	setPositive(&dst.PublishedYear, src.PublishedYear)
	setPositive(&dst.Pages, src.Pages)
	setPositive(&dst.CopiesSold, src.CopiesSold)

	if dst.BookType == nil && src.BookType != nil && *src.BookType != "" {
		dst.BookType = src.BookType
	}
	if len(dst.IndustryIdentifiers) == 0 && len(src.IndustryIdentifiers) > 0 {
		dst.IndustryIdentifiers = slices.Clone(src.IndustryIdentifiers)
	}
	if len(dst.Genres) == 0 && len(src.Genres) > 0 {
		dst.Genres = DedupeFold(src.Genres)
	}

	dst.CoverCandidates = appendCandidates(dst.CoverCandidates, src.CoverCandidates)
}

func setString(dst **string, src *string) {
	if *dst == nil && src != nil && strings.TrimSpace(*src) != "" {
		*dst = src
	}
}

func setPositive(dst **int, src *int) {
	if *dst == nil && src != nil && *src > 0 {
		*dst = src
	}
}

func appendCandidates(dst, src []ImageCandidate) []ImageCandidate {
	seen := make(map[string]bool, len(dst))
	for _, c := range dst {
		seen[c.URL] = true
	}
	for _, c := range src {
		if c.URL == "" || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		dst = append(dst, c)
	}
	return dst
}

// DedupeFold removes case-insensitive duplicates and blanks, keeping the
// first spelling and the original order. It returns nil when nothing is
// left.
func DedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	var result []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, v)
	}
	return result
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
