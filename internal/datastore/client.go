package datastore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"
)

const datasetteTimeout = 30 * time.Second

// DatasetteClient exports result rows to a remote Datasette instance through
// its /-/insert JSON endpoint. The instance creates the results table on the
// first insert, so CreateTable has nothing to do.
type DatasetteClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewDatasetteClient targets the Datasette instance at baseURL. apiToken is
// sent as a bearer token when set.
func NewDatasetteClient(baseURL, apiToken string) *DatasetteClient {
	return &DatasetteClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: datasetteTimeout},
	}
}

// Connect only validates the URL; the first request happens on export.
func (c *DatasetteClient) Connect() error {
	_, err := c.endpoint()
	return err
}

func (c *DatasetteClient) CreateTable(string) error { return nil }

// BatchInsert posts research result rows to /-/insert/<database>/<table>.
func (c *DatasetteClient) BatchInsert(database string, table string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	u, err := c.endpoint()
	if err != nil {
		return err
	}
	u.Path = path.Join(u.Path, "-/insert", database, table)

	body, err := json.Marshal(map[string]any{"rows": records})
	if err != nil {
		return fmt.Errorf("encoding %d result rows: %w", len(records), err)
	}

	req, err := http.NewRequest(http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building Datasette export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("exporting results to %s: %w", u.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	var apiErr map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		return fmt.Errorf("export of %d result rows rejected with status %d", len(records), resp.StatusCode)
	}
	return fmt.Errorf("export of %d result rows rejected with status %d: %v", len(records), resp.StatusCode, apiErr)
}

func (c *DatasetteClient) Close() error { return nil }

func (c *DatasetteClient) endpoint() (*url.URL, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Datasette URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid Datasette URL %q: scheme must be http or https", c.baseURL)
	}
	return u, nil
}
