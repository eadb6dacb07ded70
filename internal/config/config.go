package config

import (
	"sync"
	"time"

	"stoplayer.opentransportdata.swiss/internal/layer"
	"stoplayer.opentransportdata.swiss/internal/models"
)

// Region is one monitored map area: an extent swept for unmatched
// stops and the zoom the sweep pretends to run at.
type Region struct {
	Name   string  `json:"name"`
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
	Zoom   float64 `json:"zoom"`
}

// Viewport returns the region's extent as an engine viewport.
func (r Region) Viewport() models.Viewport {
	return models.Viewport{
		MinLon: r.MinLon,
		MinLat: r.MinLat,
		MaxLon: r.MaxLon,
		MaxLat: r.MaxLat,
	}
}

// Monitoring is the remotely refreshable part of the configuration:
// which regions to sweep and which tile overlays to register.
type Monitoring struct {
	Regions    []Region          `json:"regions"`
	TileLayers []layer.TileLayer `json:"tile_layers"`
}

// Config holds all the configuration settings for the daemon.
type Config struct {
	Port              int
	Env               string
	Locale            string
	DatasetURL        string
	Dataset           string
	VenuesURL         string
	GtfsBundle        string
	FetchInterval     time.Duration
	MergeRadiusMeters float64

	Mu         sync.RWMutex
	Monitoring Monitoring
}

// NewConfig creates a new instance of a Config struct.
func NewConfig(port int, env string, monitoring Monitoring) *Config {
	return &Config{
		Port:       port,
		Env:        env,
		Monitoring: monitoring,
	}
}

// UpdateMonitoring safely replaces the refreshable configuration.
func (cfg *Config) UpdateMonitoring(monitoring Monitoring) {
	cfg.Mu.Lock()
	defer cfg.Mu.Unlock()
	cfg.Monitoring = monitoring
}

// GetRegions safely returns a copy of the region list to avoid
// concurrent modification issues.
func (cfg *Config) GetRegions() []Region {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return append([]Region(nil), cfg.Monitoring.Regions...)
}

// GetTileLayers safely returns a copy of the tile overlay list.
func (cfg *Config) GetTileLayers() []layer.TileLayer {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return append([]layer.TileLayer(nil), cfg.Monitoring.TileLayers...)
}
