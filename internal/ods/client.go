// Package ods fetches stop records from an Opendatasoft Explore
// dataset-records endpoint, transparently paging through results for
// the requested viewport.
package ods

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"stoplayer.opentransportdata.swiss/internal/metrics"
	"stoplayer.opentransportdata.swiss/internal/models"
)

// DefaultPageSize is the fixed page size of the records endpoint.
const DefaultPageSize = 50

// DefaultGeoField is the geo column used in the bounding-box filter.
const DefaultGeoField = "geopos_haltestelle"

// Client talks to one Opendatasoft dataset.
type Client struct {
	BaseURL    string
	Dataset    string
	GeoField   string
	PageSize   int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient returns a Client for the given dataset. The HTTP client is
// optional; a default with a 10 second timeout is used when nil.
func NewClient(baseURL, dataset string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		BaseURL:    baseURL,
		Dataset:    dataset,
		GeoField:   DefaultGeoField,
		PageSize:   DefaultPageSize,
		HTTPClient: httpClient,
		Logger:     logger,
	}
}

// Records starts a forward-only cursor over all records intersecting
// the viewport. The cursor is finite and non-restartable; calling
// Records again issues a fresh query from offset 0.
func (c *Client) Records(viewport models.Viewport) *Cursor {
	return &Cursor{client: c, viewport: viewport}
}

// Cursor pages through one bounding-box query. A page shorter than the
// page size is the only end-of-data signal, so a dataset whose true
// size is an exact multiple of the page size costs one extra,
// empty-result round trip; callers must tolerate the empty batch.
type Cursor struct {
	client   *Client
	viewport models.Viewport
	offset   int
	done     bool
}

// More reports whether another page may be available. It is true until
// an under-full page is seen or a fetch fails.
func (cur *Cursor) More() bool {
	return !cur.done
}

// Next fetches and returns the next page. A fetch error closes the
// cursor and propagates; there is no retry at this level.
func (cur *Cursor) Next(ctx context.Context) ([]models.StopRecord, error) {
	if cur.done {
		return nil, nil
	}
	page, err := cur.client.fetchPage(ctx, cur.viewport, cur.offset)
	if err != nil {
		cur.done = true
		return nil, err
	}

	pageSize := cur.client.pageSize()
	if len(page) < pageSize {
		cur.done = true
	} else {
		cur.offset += pageSize
	}

	metrics.FetchPages.WithLabelValues(cur.client.Dataset).Inc()
	metrics.FetchRecords.WithLabelValues(cur.client.Dataset).Add(float64(len(page)))
	return page, nil
}

func (c *Client) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return DefaultPageSize
}

func (c *Client) geoField() string {
	if c.GeoField != "" {
		return c.GeoField
	}
	return DefaultGeoField
}

type recordsResponse struct {
	Results []models.StopRecord `json:"results"`
}

func (c *Client) fetchPage(ctx context.Context, viewport models.Viewport, offset int) ([]models.StopRecord, error) {
	endpoint := fmt.Sprintf("%s/catalog/datasets/%s/records", c.BaseURL, c.Dataset)

	// The provider expects lat,lon pairs in the in_bbox filter.
	params := url.Values{}
	params.Set("where", fmt.Sprintf("in_bbox(%s,%v,%v,%v,%v)",
		c.geoField(), viewport.MinLat, viewport.MinLon, viewport.MaxLat, viewport.MaxLon))
	params.Set("limit", fmt.Sprintf("%d", c.pageSize()))
	params.Set("offset", fmt.Sprintf("%d", offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build records request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records from %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status code from %s: %d", endpoint, resp.StatusCode)
	}

	var decoded recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode records from %s: %w", endpoint, err)
	}

	if c.Logger != nil {
		c.Logger.Debug("fetched dataset page", "dataset", c.Dataset, "offset", offset, "records", len(decoded.Results))
	}
	return decoded.Results, nil
}
