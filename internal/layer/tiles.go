package layer

import (
	"fmt"
	"log/slog"
)

// TileLayer describes one static raster overlay (a WMTS/XYZ URL
// template) to register on the host canvas alongside the vector layers.
type TileLayer struct {
	Name        string `json:"name"`
	URLTemplate string `json:"url_template"`
	ZIndex      int    `json:"z_index"`
}

// RegisterTileLayers adds every overlay to the canvas, stopping at the
// first failure.
func RegisterTileLayers(canvas Canvas, layers []TileLayer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, tile := range layers {
		if err := canvas.AddTileLayer(tile.Name, tile.URLTemplate, tile.ZIndex); err != nil {
			return fmt.Errorf("failed to register tile layer %s: %w", tile.Name, err)
		}
		logger.Info("registered tile layer", slog.String("layer", tile.Name))
	}
	return nil
}
