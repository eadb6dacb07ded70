// Package venues is an HTTP client for a venue directory API. It
// implements the venue half of the host capability contract consumed by
// the layer engine: list, read, create and partially update venues.
package venues

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"stoplayer.opentransportdata.swiss/internal/models"
)

// Client talks to one venue directory.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient returns a Client for the directory at baseURL. The HTTP
// client is optional; a default with a 10 second timeout is used when
// nil.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{BaseURL: baseURL, HTTPClient: httpClient, Logger: logger}
}

type venueListResponse struct {
	Venues []models.Venue `json:"venues"`
}

// Venues returns every venue the directory currently knows. The engine
// deliberately re-fetches this per render pass instead of caching, to
// bound staleness against concurrent editors.
func (c *Client) Venues(ctx context.Context) ([]models.Venue, error) {
	var decoded venueListResponse
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/venues", nil, &decoded); err != nil {
		return nil, err
	}
	return decoded.Venues, nil
}

// Venue returns a single venue by id.
func (c *Client) Venue(ctx context.Context, id string) (models.Venue, error) {
	var venue models.Venue
	err := c.do(ctx, http.MethodGet, c.BaseURL+"/venues/"+id, nil, &venue)
	return venue, err
}

type venueDraftJSON struct {
	Name       string            `json:"name"`
	Categories []string          `json:"categories"`
	Geometry   *geojson.Geometry `json:"geometry"`
}

// AddVenue creates a new venue and returns the created entity.
func (c *Client) AddVenue(ctx context.Context, draft models.VenueDraft) (models.Venue, error) {
	payload := venueDraftJSON{
		Name:       draft.Name,
		Categories: draft.Categories,
		Geometry:   geojson.NewGeometry(draft.Point),
	}
	var created models.Venue
	err := c.do(ctx, http.MethodPost, c.BaseURL+"/venues", payload, &created)
	return created, err
}

type venueUpdateJSON struct {
	Name       string            `json:"name,omitempty"`
	Aliases    []string          `json:"aliases,omitempty"`
	Categories []string          `json:"categories,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry,omitempty"`
}

// UpdateVenue applies a partial update. A nil update geometry leaves
// the venue's geometry untouched.
func (c *Client) UpdateVenue(ctx context.Context, id string, update models.VenueUpdate) error {
	payload := venueUpdateJSON{
		Name:       update.Name,
		Aliases:    update.Aliases,
		Categories: update.Categories,
	}
	if update.Geometry != nil {
		payload.Geometry = geojson.NewGeometry(update.Geometry)
	}
	return c.do(ctx, http.MethodPatch, c.BaseURL+"/venues/"+id, payload, nil)
}

func (c *Client) do(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode venue payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build venue request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("venue request %s %s failed: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status code from %s: %d", url, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode venue response from %s: %w", url, err)
	}
	return nil
}
