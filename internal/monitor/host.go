package monitor

import (
	"context"

	"stoplayer.opentransportdata.swiss/internal/layer"
	"stoplayer.opentransportdata.swiss/internal/models"
)

// Headless implementations of the editor-side ports. A sweep runs the
// exact engine code path the editor integration runs, minus anything to
// look at or click on.

type headlessCanvas struct{}

func (headlessCanvas) AddVectorLayer(name string, zIndex int) error { return nil }

func (headlessCanvas) AddTileLayer(name, urlTemplate string, zIndex int) error { return nil }

func (headlessCanvas) RemoveLayer(name string) error { return nil }

func (headlessCanvas) AddFeatures(layerName string, features []layer.Feature) error {
	return nil
}
func (headlessCanvas) RemoveFeature(layerName, featureID string) error { return nil }


// regionView pins the camera to one configured region. It never loads
// tiles, so the engine's idle-wait returns immediately.
type regionView struct {
	viewport models.Viewport
	zoom     float64
}

func (v *regionView) Viewport() models.Viewport { return v.viewport }

func (v *regionView) Zoom() float64 { return v.zoom }

func (v *regionView) Loading() bool { return false }

func (v *regionView) SetCenterAndZoom(lon, lat, z float64) {}

// alwaysOn keeps the swept layer permanently checked; there is no
// switcher UI to toggle it from.
type alwaysOn struct{}

func (alwaysOn) AddCheckbox(layerName string) error { return nil }

func (alwaysOn) SetChecked(layerName string, checked bool) {}

func (alwaysOn) Checked(layerName string) bool { return true }

type nopBus struct{}

func (nopBus) Subscribe(event string, fn func(layer.Event)) func() error {
	return func() error { return nil }
}

type nopSelector struct{}

func (nopSelector) Select(ids []string, objectType string) {}

// cancelPrompter answers every dialog with cancel. Sweeps never click
// features, so this only exists to satisfy the layer's constructor.
type cancelPrompter struct{}

func (cancelPrompter) Choose(ctx context.Context, question string, choices []layer.Choice) (string, error) {
	return "cancel", nil
}
