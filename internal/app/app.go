package app

import (
	"context"
	"log/slog"
	"net/http"

	"stoplayer.opentransportdata.swiss/internal/config"
	"stoplayer.opentransportdata.swiss/internal/gtfssource"
	"stoplayer.opentransportdata.swiss/internal/i18n"
	"stoplayer.opentransportdata.swiss/internal/layer"
	"stoplayer.opentransportdata.swiss/internal/models"
	"stoplayer.opentransportdata.swiss/internal/monitor"
	"stoplayer.opentransportdata.swiss/internal/ods"
	"stoplayer.opentransportdata.swiss/internal/venues"
)

// Application wires the daemon's services together: configuration, the
// stop dataset client, the venue directory client and the region
// monitor.
type Application struct {
	ConfigService  *config.ConfigService
	MonitorService *monitor.Service
	Logger         *slog.Logger
	Version        string
}

// New creates and wires all dependencies for the Application.
func New(cfg *config.Config, logger *slog.Logger, client *http.Client, version string) *Application {
	configService := config.NewConfigService(logger, client, cfg)

	stops := ods.NewClient(cfg.DatasetURL, cfg.Dataset, client, logger)
	fetch := func(ctx context.Context, viewport models.Viewport) layer.Cursor[models.StopRecord] {
		return stops.Records(viewport)
	}

	// A local GTFS bundle replaces the live dataset as the stop source,
	// for offline runs and for datasets without an API.
	if cfg.GtfsBundle != "" {
		if source, err := gtfssource.FromBundle(cfg.GtfsBundle, logger); err != nil {
			logger.Error("Failed to load GTFS bundle, falling back to the dataset API",
				"bundle", cfg.GtfsBundle, "error", err)
		} else {
			fetch = source.Fetch
		}
	}

	venueDirectory := venues.NewClient(cfg.VenuesURL, client, logger)
	translator := i18n.New(cfg.Locale, i18n.DefaultResources())

	monitorService := monitor.New(cfg, fetch, venueDirectory, translator, logger)

	return &Application{
		ConfigService:  configService,
		MonitorService: monitorService,
		Logger:         logger,
		Version:        version,
	}
}
