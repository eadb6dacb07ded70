// Package monitor periodically sweeps the configured regions for
// transit stops that have no matching venue yet, and exports the
// counts as Prometheus metrics. Each sweep drives the same layer
// engine the editor integration uses, against a headless host.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"stoplayer.opentransportdata.swiss/internal/config"
	"stoplayer.opentransportdata.swiss/internal/i18n"
	"stoplayer.opentransportdata.swiss/internal/layer"
	"stoplayer.opentransportdata.swiss/internal/metrics"
	"stoplayer.opentransportdata.swiss/internal/models"
	"stoplayer.opentransportdata.swiss/internal/report"
	"stoplayer.opentransportdata.swiss/internal/utils"
)

// defaultRegionZoom is used when a region omits its zoom; it sits above
// the stops layer's minimum so sweeps are never skipped as zoomed out.
const defaultRegionZoom = 17

// Service owns the sweep loop.
type Service struct {
	cfg        *config.Config
	fetch      layer.StopFetchFunc
	venues     layer.VenueDirectory
	translator *i18n.Translator
	logger     *slog.Logger
	backoffs   *config.BackoffStore
}

// New wires a monitor over the given stop and venue backends.
func New(cfg *config.Config, fetch layer.StopFetchFunc, venues layer.VenueDirectory, translator *i18n.Translator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        cfg,
		fetch:      fetch,
		venues:     venues,
		translator: translator,
		logger:     logger,
		backoffs:   config.NewBackoffStore(),
	}
}

// Run sweeps all regions once immediately, then at every interval tick
// until the context is canceled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.SweepAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping region sweep loop")
			return
		case <-ticker.C:
			s.SweepAll(ctx)
		}
	}
}

// SweepAll sweeps every configured region, honoring per-region backoff
// so one flapping dataset does not hammer the APIs.
func (s *Service) SweepAll(ctx context.Context) {
	for _, region := range s.cfg.GetRegions() {
		if next, scheduled := s.backoffs.NextRetryAt(region.Name); scheduled && time.Now().UTC().Before(next) {
			s.logger.Debug("skipping region in backoff", "region", region.Name, "next_retry_at", next)
			continue
		}

		if err := s.sweepRegion(ctx, region); err != nil {
			metrics.RegionCheckFailures.WithLabelValues(region.Name).Inc()
			s.backoffs.UpdateBackoff(region.Name)
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Tags:  utils.MakeMap("region", region.Name),
				Level: sentry.LevelError,
			})
			s.logger.Error("Region sweep failed", "region", region.Name, "error", err)
			continue
		}
		s.backoffs.ResetBackoff(region.Name)
	}
}

func (s *Service) sweepRegion(ctx context.Context, region config.Region) error {
	stops := layer.NewStopsLayer(s.fetch, s.venues, nopSelector{}, cancelPrompter{}, s.translator, s.logger)
	if s.cfg.MergeRadiusMeters > 0 {
		stops.SetMergeRadius(s.cfg.MergeRadiusMeters)
	}

	zoom := region.Zoom
	if zoom == 0 {
		zoom = defaultRegionZoom
	}

	canvas := headlessCanvas{}
	engine := layer.NewEngine[models.StopRecord](stops, layer.Host{
		Canvas:   canvas,
		View:     &regionView{viewport: region.Viewport(), zoom: zoom},
		Switcher: alwaysOn{},
		Bus:      nopBus{},
	}, 650, s.logger)

	// Same startup sequence as the editor: overlays first, then the
	// vector layer and its initial render.
	if err := layer.RegisterTileLayers(canvas, s.cfg.GetTileLayers(), s.logger); err != nil {
		return fmt.Errorf("region %s: %w", region.Name, err)
	}
	if err := engine.Enable(ctx); err != nil {
		return fmt.Errorf("region %s: %w", region.Name, err)
	}

	unmatched := engine.VisibleCount()
	metrics.StopsWithoutVenue.WithLabelValues(region.Name).Set(float64(unmatched))
	s.logger.Info("Region sweep complete",
		"region", region.Name,
		"unmatched_stops", unmatched,
		"cached_records", engine.CachedCount())
	return nil
}
