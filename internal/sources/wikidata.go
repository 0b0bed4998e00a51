package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	wikidataBaseURL  = "https://www.wikidata.org"
	commonsFilePath  = "https://commons.wikimedia.org/wiki/Special:FilePath/"
	politenessDelay  = time.Second
	maxBiographyLen  = 1000
	wikidataLanguage = "en"
)

// wikidata holds the lookups shared by the author and publisher adapters.
type wikidata struct {
	base
}

func newWikidata(opts []Option) wikidata {
	return wikidata{base: newBase(wikidataBaseURL, "Wikidata", 1, opts)}
}

type wikidataSearchResponse struct {
	Search []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"search"`
}

type wikidataEntityResponse struct {
	Entities map[string]wikidataEntity `json:"entities"`
}

type wikidataEntity struct {
	Labels       map[string]wikidataText    `json:"labels"`
	Descriptions map[string]wikidataText    `json:"descriptions"`
	Claims       map[string][]wikidataClaim `json:"claims"`
}

type wikidataText struct {
	Value string `json:"value"`
}

type wikidataClaim struct {
	Mainsnak struct {
		Datavalue struct {
			Value json.RawMessage `json:"value"`
			Type  string          `json:"type"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

// search returns the id of the best matching entity, or "" when there is none.
func (w *wikidata) search(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/w/api.php?action=wbsearchentities&search=%s&format=json&language=%s&type=item",
		w.baseURL, url.QueryEscape(name), wikidataLanguage)

	var resp wikidataSearchResponse
	if err := w.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return "", err
	}
	if len(resp.Search) == 0 {
		return "", nil
	}
	return resp.Search[0].ID, nil
}

// entity fetches the full record for id. A missing entity is not an error.
func (w *wikidata) entity(ctx context.Context, id string) (*wikidataEntity, error) {
	endpoint := fmt.Sprintf("%s/wiki/Special:EntityData/%s.json", w.baseURL, url.PathEscape(id))

	var resp wikidataEntityResponse
	if err := w.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	entity, ok := resp.Entities[id]
	if !ok {
		return nil, nil
	}
	return &entity, nil
}

// label resolves an entity id to its English label.
func (w *wikidata) label(ctx context.Context, id string) (string, error) {
	e, err := w.entity(ctx, id)
	if err != nil || e == nil {
		return "", err
	}
	return e.Labels[wikidataLanguage].Value, nil
}

func (e *wikidataEntity) description() string {
	return truncate(strings.TrimSpace(e.Descriptions[wikidataLanguage].Value), maxBiographyLen)
}

func (e *wikidataEntity) first(property string) (wikidataClaim, bool) {
	claims := e.Claims[property]
	if len(claims) == 0 {
		return wikidataClaim{}, false
	}
	return claims[0], true
}

// claimString reads a string-valued claim such as an image file name or URL.
func (e *wikidataEntity) claimString(property string) string {
	c, ok := e.first(property)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &s); err != nil {
		return ""
	}
	return s
}

// claimTime reads the raw time string of a time-valued claim, e.g.
// "+1949-01-12T00:00:00Z".
func (e *wikidataEntity) claimTime(property string) string {
	c, ok := e.first(property)
	if !ok {
		return ""
	}
	var v struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &v); err != nil {
		return ""
	}
	return v.Time
}

// claimEntityIDs returns the entity ids referenced by all claims of property.
func (e *wikidataEntity) claimEntityIDs(property string) []string {
	var ids []string
	for _, c := range e.Claims[property] {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &v); err != nil || v.ID == "" {
			continue
		}
		ids = append(ids, v.ID)
	}
	return ids
}

func commonsImageURL(file string, width int) string {
	if file == "" {
		return ""
	}
	name := strings.ReplaceAll(file, " ", "_")
	return fmt.Sprintf("%s%s?width=%d", commonsFilePath, url.PathEscape(name), width)
}
