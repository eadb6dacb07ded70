package app

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"stoplayer.opentransportdata.swiss/internal/config"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()

	cfg := config.NewConfig(4000, "testing", config.Monitoring{
		Regions: []config.Region{{
			Name:   "Neuchâtel",
			MinLon: 6.8, MinLat: 46.9, MaxLon: 7.0, MaxLat: 47.1,
			Zoom: 17,
		}},
	})
	cfg.DatasetURL = "https://data.example.com"
	cfg.Dataset = "stops"
	cfg.VenuesURL = "https://venues.example.com"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(cfg, logger, &http.Client{}, "test-version")
}
