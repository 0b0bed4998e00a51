package sources

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/deepresearch/internal/cache"
	"github.com/lepinkainen/deepresearch/internal/enrichment/book"
)

const (
	propInception    = "P571"
	propHeadquarters = "P159"
	propWebsite      = "P856"
	propLogo         = "P154"

	logoWidth = 500
)

// WikidataPublisher looks up organizational data for a publisher.
type WikidataPublisher struct {
	wikidata
}

// NewWikidataPublisher creates a publisher adapter.
func NewWikidataPublisher(opts ...Option) *WikidataPublisher {
	return &WikidataPublisher{wikidata: newWikidata(opts)}
}

// Fetch returns the publisher's record, or nil when Wikidata has no match.
func (w *WikidataPublisher) Fetch(ctx context.Context, name string) (*book.PublisherData, error) {
	key := cache.NewKey(cache.SourceWikidataPublisher, name)

	data, _, err := cache.GetOrFetchWithPolicy(ctx, w.cache, key, "", func(ctx context.Context) (*book.PublisherData, error) {
		if err := w.sleep(ctx, politenessDelay); err != nil {
			return nil, err
		}
		var result *book.PublisherData
		err := w.admit(ctx, func(ctx context.Context) error {
			var err error
			result, err = w.fetchFromAPI(ctx, name)
			return err
		})
		return result, err
	}, func(d *book.PublisherData) bool { return d != nil })
	if err != nil {
		return nil, fmt.Errorf("failed to fetch publisher data from Wikidata: %w", err)
	}
	return data, nil
}

func (w *WikidataPublisher) fetchFromAPI(ctx context.Context, name string) (*book.PublisherData, error) {
	id, err := w.search(ctx, name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		slog.Warn("No Wikidata entity found for publisher", "publisher", name)
		return nil, nil
	}

	entity, err := w.entity(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	data := &book.PublisherData{
		Name:        name,
		Founded:     firstYear(entity.claimTime(propInception)),
		Website:     nonEmpty(entity.claimString(propWebsite)),
		Description: nonEmpty(entity.description()),
		LogoURL:     nonEmpty(commonsImageURL(entity.claimString(propLogo), logoWidth)),
	}

	if hq := entity.claimEntityIDs(propHeadquarters); len(hq) > 0 {
		label, err := w.label(ctx, hq[0])
		if err != nil {
			slog.Warn("Failed to resolve headquarters label", "publisher", name, "entity", hq[0], "error", err)
		} else {
			data.Headquarters = nonEmpty(label)
		}
	}

	return data, nil
}
