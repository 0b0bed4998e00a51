package sources

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
)

const (
	propBirthDate  = "P569"
	propBirthPlace = "P19"
	propImage      = "P18"
	propOccupation = "P106"

	authorImageWidth = 1000
)

// DefaultProfession is used when an author has no recognized occupation.
const DefaultProfession = "Author"

var occupations = map[string]string{
	"Q36180":    "Author",
	"Q6625963":  "Novelist",
	"Q49757":    "Poet",
	"Q1930187":  "Journalist",
	"Q333634":   "Translator",
	"Q11774202": "Essayist",
	"Q4964182":  "Philosopher",
	"Q1622272":  "University teacher",
}

// WikidataAuthor looks up biographical data for an author.
type WikidataAuthor struct {
	wikidata
}

// NewWikidataAuthor creates an author adapter.
func NewWikidataAuthor(opts ...Option) *WikidataAuthor {
	return &WikidataAuthor{wikidata: newWikidata(opts)}
}

// Fetch returns the author's record, or nil when Wikidata has no match.
func (w *WikidataAuthor) Fetch(ctx context.Context, name string) (*book.AuthorData, error) {
	key := cache.NewKey(cache.SourceWikidataAuthor, name)

	data, _, err := cache.GetOrFetchWithPolicy(ctx, w.cache, key, "", func(ctx context.Context) (*book.AuthorData, error) {
		if err := w.sleep(ctx, politenessDelay); err != nil {
			return nil, err
		}
		var result *book.AuthorData
		err := w.admit(ctx, func(ctx context.Context) error {
			var err error
			result, err = w.fetchFromAPI(ctx, name)
			return err
		})
		return result, err
	}, func(d *book.AuthorData) bool { return d != nil })
	if err != nil {
		return nil, fmt.Errorf("failed to fetch author data from Wikidata: %w", err)
	}
	return data, nil
}

func (w *WikidataAuthor) fetchFromAPI(ctx context.Context, name string) (*book.AuthorData, error) {
	id, err := w.search(ctx, name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		slog.Warn("No Wikidata entity found for author", "author", name)
		return nil, nil
	}

	entity, err := w.entity(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	data := &book.AuthorData{
		Name:        name,
		Biography:   nonEmpty(entity.description()),
		ImageURL:    nonEmpty(commonsImageURL(entity.claimString(propImage), authorImageWidth)),
		Professions: professions(entity.claimEntityIDs(propOccupation)),
	}

	if date := datePattern.FindString(entity.claimTime(propBirthDate)); date != "" {
		data.BirthDate = &date
	}

	if places := entity.claimEntityIDs(propBirthPlace); len(places) > 0 {
		place, err := w.label(ctx, places[0])
		if err != nil {
			slog.Warn("Failed to resolve birthplace label", "author", name, "entity", places[0], "error", err)
		} else {
			data.BirthPlace = nonEmpty(place)
		}
	}

	return data, nil
}

func professions(ids []string) []string {
	var out []string
	for _, id := range ids {
		if label, ok := occupations[id]; ok {
			out = append(out, label)
		}
	}
	out = book.DedupeFold(out)
	if len(out) == 0 {
		return []string{DefaultProfession}
	}
	return out
}
