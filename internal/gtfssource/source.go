// Package gtfssource adapts a parsed GTFS static bundle to the layer
// engine's record cursor. It is the offline alternative to the live
// dataset API: the daemon can sweep a region against a downloaded
// bundle when the dataset endpoint is unreachable or rate limited.
package gtfssource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	remoteGtfs "github.com/jamespfennell/gtfs"

	"stoplayer.opentransportdata.swiss/internal/layer"
	"stoplayer.opentransportdata.swiss/internal/models"
)

const defaultPageSize = 50

// StopSource serves stop records out of one GTFS static bundle.
type StopSource struct {
	static   *remoteGtfs.Static
	operator string
	pageSize int
	logger   *slog.Logger

	// DefaultMode is used as the transport mode for every stop; GTFS
	// static does not carry a per-stop mode.
	DefaultMode string
}

// New wraps an already parsed bundle. The first agency's name is used
// as the operator description on every record.
func New(static *remoteGtfs.Static, logger *slog.Logger) *StopSource {
	if logger == nil {
		logger = slog.Default()
	}
	operator := ""
	if len(static.Agencies) > 0 {
		operator = static.Agencies[0].Name
	}
	return &StopSource{
		static:      static,
		operator:    operator,
		pageSize:    defaultPageSize,
		logger:      logger,
		DefaultMode: "BUS",
	}
}

// FromBundle reads and parses a GTFS zip bundle from disk.
func FromBundle(path string, logger *slog.Logger) (*StopSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GTFS bundle %s: %w", path, err)
	}
	static, err := remoteGtfs.ParseStatic(data, remoteGtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GTFS bundle %s: %w", path, err)
	}
	return New(static, logger), nil
}

// Fetch returns a cursor over the bundle's stops inside the viewport,
// paged like the remote dataset so the engine treats both the same.
func (s *StopSource) Fetch(ctx context.Context, viewport models.Viewport) layer.Cursor[models.StopRecord] {
	var records []models.StopRecord
	for _, stop := range s.static.Stops {
		if stop.Latitude == nil || stop.Longitude == nil {
			continue
		}
		if !viewport.Contains(*stop.Latitude, *stop.Longitude) {
			continue
		}
		records = append(records, s.record(stop))
	}

	var pages [][]models.StopRecord
	for len(records) > 0 {
		n := s.pageSize
		if n > len(records) {
			n = len(records)
		}
		pages = append(pages, records[:n])
		records = records[n:]
	}
	return &pagedCursor{pages: pages}
}

func (s *StopSource) record(stop remoteGtfs.Stop) models.StopRecord {
	return models.StopRecord{
		Number:              json.Number(stop.Id),
		Designation:         stop.Name,
		DesignationOfficial: stop.Name,
		MeansOfTransport:    s.DefaultMode,
		OperatorDescription: s.operator,
		Position: &models.GeoPosition{
			Lat: json.Number(strconv.FormatFloat(*stop.Latitude, 'f', -1, 64)),
			Lon: json.Number(strconv.FormatFloat(*stop.Longitude, 'f', -1, 64)),
		},
	}
}

type pagedCursor struct {
	pages [][]models.StopRecord
	next  int
}

func (c *pagedCursor) More() bool {
	return c.next < len(c.pages)
}

func (c *pagedCursor) Next(ctx context.Context) ([]models.StopRecord, error) {
	if err := ctx.Err(); err != nil {
		c.next = len(c.pages)
		return nil, err
	}
	if c.next >= len(c.pages) {
		return nil, nil
	}
	page := c.pages[c.next]
	c.next++
	return page, nil
}
